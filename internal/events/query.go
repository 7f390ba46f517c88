package events

import "time"

// QueryStart is emitted after a query compiles, before execution.
type QueryStart struct {
	Query         string
	OperationName string
}

// QueryFinish is emitted when execution returns, whether or not the
// result carries errors.
type QueryFinish struct {
	Query         string
	OperationName string
	Errors        int
	Duration      time.Duration
}
