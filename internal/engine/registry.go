package engine

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/varigraph/varigraph/internal/schema"
)

// SyncFunc resolves a field directly from its parent value, without
// touching the data provider. Used for projection fields.
type SyncFunc func(ctx context.Context, source any, args map[string]any) (any, error)

// BatchFunc resolves a field for a whole group of distinct parent keys in
// one call. It must return exactly one result per key, in key order, so
// the engine can zip results back to their consumers positionally.
// Failures are per-element; one bad key never fails the batch.
type BatchFunc func(ctx context.Context, keys []string, sources []any, args []map[string]any) []BatchResult

// BatchResult is the outcome for a single key of a batched invocation.
type BatchResult struct {
	Value any
	Err   error
}

// KeyFunc derives the dedup identity of a batched fetch from the parent
// value and the coerced field arguments. Tasks sharing a key within one
// execution are fetched once and fanned back out.
type KeyFunc func(source any, args map[string]any) (string, error)

// Resolver produces values for one (type, field) pair. Exactly one of
// Sync or Batch must be set; Batch resolvers must also carry Key.
type Resolver struct {
	Sync  SyncFunc
	Batch BatchFunc
	Key   KeyFunc
}

type fieldRef struct {
	typeName string
	field    string
}

// Registry maps (type, field) pairs to resolvers. It is populated at
// startup and validated against the schema before any query runs; a
// missing registration is a configuration error, never a runtime one.
type Registry struct {
	resolvers map[fieldRef]Resolver
}

func NewRegistry() *Registry {
	return &Registry{resolvers: map[fieldRef]Resolver{}}
}

// Register binds a resolver to a (type, field) pair. Re-registering a
// pair is a programming error and is rejected.
func (r *Registry) Register(typeName, field string, res Resolver) error {
	ref := fieldRef{typeName, field}
	if _, ok := r.resolvers[ref]; ok {
		return fmt.Errorf("resolver for %s.%s already registered", typeName, field)
	}
	r.resolvers[ref] = res
	return nil
}

// Registered reports whether a resolver exists for the pair.
func (r *Registry) Registered(typeName, field string) bool {
	_, ok := r.resolvers[fieldRef{typeName, field}]
	return ok
}

// Lookup returns the resolver for a (type, field) pair.
func (r *Registry) Lookup(typeName, field string) (Resolver, bool) {
	res, ok := r.resolvers[fieldRef{typeName, field}]
	return res, ok
}

// Validate checks that every field of every object type in the schema has
// a well-formed registration. It is meant to run once at startup; the
// returned ConfigurationError lists every problem found.
func (r *Registry) Validate(s *schema.Schema) error {
	var problems []string

	var typeNames []string
	for name := range s.Types {
		typeNames = append(typeNames, name)
	}
	sort.Strings(typeNames)

	for _, name := range typeNames {
		t := s.Types[name]
		if t.Kind != schema.TypeKindObject {
			continue
		}
		for _, f := range t.Fields {
			res, ok := r.resolvers[fieldRef{name, f.Name}]
			if !ok {
				problems = append(problems, fmt.Sprintf("no resolver registered for %s.%s", name, f.Name))
				continue
			}
			switch {
			case res.Sync != nil && res.Batch != nil:
				problems = append(problems, fmt.Sprintf("resolver for %s.%s declares both sync and batch", name, f.Name))
			case res.Sync == nil && res.Batch == nil:
				problems = append(problems, fmt.Sprintf("resolver for %s.%s declares neither sync nor batch", name, f.Name))
			case res.Batch != nil && res.Key == nil:
				problems = append(problems, fmt.Sprintf("batched resolver for %s.%s has no key function", name, f.Name))
			}
		}
	}

	if len(problems) > 0 {
		return &ConfigurationError{Problems: problems}
	}
	return nil
}

// ConfigurationError reports startup-time wiring problems. It must never
// surface to a client.
type ConfigurationError struct {
	Problems []string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("resolver configuration invalid:\n  %s", strings.Join(e.Problems, "\n  "))
}
