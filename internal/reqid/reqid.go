// Package reqid stamps each incoming request with a short random ID so
// log lines and spans from one request can be correlated.
package reqid

import (
	"context"
	"math/rand/v2"
	"strconv"
)

type key struct{}

// NewContext returns a copy of parent carrying a fresh request ID, plus
// the ID itself.
func NewContext(parent context.Context) (context.Context, string) {
	id := strconv.FormatUint(rand.Uint64(), 16)
	return context.WithValue(parent, key{}, id), id
}

// FromContext extracts the request ID, reporting whether one was set.
func FromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(key{}).(string)
	return id, ok
}
