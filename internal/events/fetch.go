package events

import "time"

// FetchStart is emitted before one batched provider round trip.
type FetchStart struct {
	Entity string
	Field  string
	Keys   int
}

// FetchFinish is emitted when the round trip returns.
type FetchFinish struct {
	Entity   string
	Field    string
	Keys     int
	Duration time.Duration
	Err      error
}
