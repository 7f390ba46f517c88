// Package provider abstracts the storage of variation documents. A
// provider answers batched lookups: given an entity, one of its
// collections and a set of keys, it returns one document group per key,
// preserving both the key order of the request and the stored order
// within each group.
package provider

import (
	"context"
	"time"

	"github.com/varigraph/varigraph/internal/eventbus"
	"github.com/varigraph/varigraph/internal/events"
)

// Record is one stored document. Records reach the response tree
// unchanged, so their keys follow the schema's field names.
type Record = map[string]any

// Group holds the documents stored under one (entity, field, key). A nil
// group means nothing is stored for the key.
type Group = []Record

// Provider serves batched document lookups. Fetch returns exactly one
// group per requested key, in key order. A missing key yields a nil
// group, not an error; errors are reserved for storage failures.
type Provider interface {
	Fetch(ctx context.Context, entity, field string, keys []string) ([]Group, error)
}

// Document is the interchange form used by seed files and bulk loading.
type Document struct {
	Entity string `json:"entity"`
	Field  string `json:"field"`
	Key    string `json:"key"`
	Docs   Group  `json:"docs"`
}

type instrumented struct {
	next Provider
}

// Instrument wraps a provider so every round trip is published on the
// event bus for the logging and metrics subscribers.
func Instrument(p Provider) Provider { return &instrumented{next: p} }

func (p *instrumented) Fetch(ctx context.Context, entity, field string, keys []string) ([]Group, error) {
	eventbus.Publish(ctx, events.FetchStart{Entity: entity, Field: field, Keys: len(keys)})
	start := time.Now()
	groups, err := p.next.Fetch(ctx, entity, field, keys)
	eventbus.Publish(ctx, events.FetchFinish{
		Entity:   entity,
		Field:    field,
		Keys:     len(keys),
		Duration: time.Since(start),
		Err:      err,
	})
	return groups, err
}
