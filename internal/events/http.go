// Package events declares the event types published on the bus while
// serving queries. Subscribers (logging, metrics, tracing) are wired in
// main and stay out of the request path.
package events

import "time"

// HTTPStart is emitted when a request reaches the query endpoint.
type HTTPStart struct {
	Method string
	Path   string
	Remote string
}

// HTTPFinish is emitted after the response is written.
type HTTPFinish struct {
	Method   string
	Path     string
	Status   int
	Duration time.Duration
}
