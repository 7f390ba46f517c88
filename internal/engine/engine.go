// Package engine evaluates compiled selection trees against a resolver
// registry using depth-synchronous, breadth-parallel execution.
//
// Projection (sync) fields expand immediately without adding batch depth.
// Reference (batched) fields discovered while expanding one depth are
// grouped by (type, field) across all parents at that depth, deduplicated
// by parent key, and each group is fetched with a single resolver call;
// the groups of one depth run concurrently and the next depth does not
// begin until all of them return. Results are memoized per
// (type, field, key) for the lifetime of one execution, so an entity
// reachable through many paths is fetched at most once per distinct key.
//
// Failures follow GraphQL null-propagation: a failed nullable node becomes
// null in place; a failed non-nullable node nulls its nearest nullable
// ancestor, and the whole response only when no such ancestor exists.
package engine

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/varigraph/varigraph/internal/compiler"
	"github.com/varigraph/varigraph/internal/schema"
)

// DefaultDiscriminantField is the record key carrying the concrete-variant
// tag on polymorphic provider records.
const DefaultDiscriminantField = "type"

type Engine struct {
	schema       *schema.Schema
	registry     *Registry
	discriminant string
}

type Option func(*Engine)

// WithDiscriminantField overrides the record key used for interface
// dispatch.
func WithDiscriminantField(name string) Option {
	return func(e *Engine) { e.discriminant = name }
}

func New(s *schema.Schema, r *Registry, opts ...Option) *Engine {
	e := &Engine{schema: s, registry: r, discriminant: DefaultDiscriminantField}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// pendingValue marks a response slot awaiting a batched resolution.
type pendingValue struct{}

type task struct {
	sel      *compiler.Selection
	typeName string
	key      string
	source   any
	path     Path
	// anchor is the nearest nullable node at or above this field; empty
	// when none exists up to the root.
	anchor Path
}

type batchOutcome struct {
	value any
	err   error
}

type executionState struct {
	ctx       context.Context
	eng       *Engine
	root      map[string]any
	pending   []*task
	memo      map[string]batchOutcome
	errors    []Error
	nullified map[string]struct{}
	dataNull  bool
}

// Execute evaluates a compiled plan. It always returns a well-formed
// result: partial data plus localized errors, or nil data when a
// non-nullable root field failed. The context deadline bounds the whole
// execution; when it expires, unresolved nodes are abandoned under the
// usual null-propagation rules.
func (e *Engine) Execute(ctx context.Context, plan *compiler.Plan) *Result {
	state := &executionState{
		ctx:       ctx,
		eng:       e,
		root:      map[string]any{},
		memo:      map[string]batchOutcome{},
		nullified: map[string]struct{}{},
	}

	for _, sel := range plan.Root {
		path := Path{sel.Alias}
		anchor := Path{}
		if sel.Type == nil || !sel.Type.IsNonNull() {
			anchor = path
		}
		v := state.resolveField(e.schema.QueryType, nil, sel, path, anchor)
		if _, pending := v.(pendingValue); pending {
			state.root[sel.Alias] = nil // overwritten on completion
			continue
		}
		if sel.Type != nil && sel.Type.IsNonNull() && isNullish(v) {
			state.dataNull = true
			state.root[sel.Alias] = nil
			continue
		}
		if isNullish(v) {
			state.root[sel.Alias] = nil
		} else {
			state.root[sel.Alias] = v
		}
	}

	for len(state.pending) > 0 && state.ctx.Err() == nil {
		state.flushDepth()
	}
	state.abandonPending()

	if state.dataNull {
		return &Result{Data: nil, Errors: state.errors}
	}
	return &Result{Data: state.root, Errors: state.errors}
}

// resolveField resolves one field of one parent. Projection fields return
// a completed value immediately; batched fields return a pendingValue
// placeholder unless the (type, field, key) outcome was already memoized.
func (st *executionState) resolveField(typeName string, source any, sel *compiler.Selection, path, anchor Path) any {
	if sel.Field == compiler.TypenameField {
		return typeName
	}

	res, ok := st.eng.registry.Lookup(typeName, sel.Field)
	if !ok {
		// Registry validation runs at startup, so this indicates an
		// engine built from an unvalidated registry.
		st.addError(KindResolution, path, "no resolver registered for %s.%s", typeName, sel.Field)
		return nil
	}

	if res.Batch != nil {
		key, err := res.Key(source, sel.Arguments)
		if err != nil {
			st.addError(KindResolution, path, "%v", err)
			return nil
		}
		mk := memoKey(typeName, sel.Field, key)
		if out, hit := st.memo[mk]; hit {
			if out.err != nil {
				st.addError(KindResolution, path, "%v", out.err)
				return nil
			}
			return st.completeValue(sel.Type, sel, out.value, path, anchor)
		}
		st.pending = append(st.pending, &task{
			sel: sel, typeName: typeName, key: key, source: source, path: path, anchor: anchor,
		})
		return pendingValue{}
	}

	v, err := res.Sync(st.ctx, source, sel.Arguments)
	if err != nil {
		st.addError(KindResolution, path, "%v", err)
		return nil
	}
	return st.completeValue(sel.Type, sel, v, path, anchor)
}

// executeSelections materializes one object value. Selections scoped to a
// different concrete variant are skipped. A non-nullable child resolving
// to null nulls the whole object (propagation continues in the caller).
func (st *executionState) executeSelections(typeName string, sels []*compiler.Selection, source any, path, anchor Path) map[string]any {
	result := map[string]any{}
	for _, sel := range sels {
		if sel.OnType != "" && sel.OnType != typeName {
			continue
		}
		fieldPath := appendPath(path, sel.Alias)
		childAnchor := anchor
		if sel.Type == nil || !sel.Type.IsNonNull() {
			childAnchor = fieldPath
		}
		v := st.resolveField(typeName, source, sel, fieldPath, childAnchor)
		if _, pending := v.(pendingValue); pending {
			result[sel.Alias] = nil
			continue
		}
		if sel.Type != nil && sel.Type.IsNonNull() && isNullish(v) {
			return nil
		}
		if isNullish(v) {
			result[sel.Alias] = nil
		} else {
			result[sel.Alias] = v
		}
	}
	return result
}

type batchGroup struct {
	typeName string
	field    string
	resolver Resolver
	keys     []string
	sources  []any
	args     []map[string]any
	index    map[string]int
	tasks    []*task
	results  []BatchResult
}

// flushDepth resolves every batched field queued at the current depth.
// Tasks under nullified subtrees are dropped; the rest are grouped by
// (type, field), keys deduplicated, and the groups fetched concurrently.
func (st *executionState) flushDepth() {
	var live []*task
	for _, t := range st.pending {
		if st.hasNullifiedPrefix(t.path) {
			continue
		}
		live = append(live, t)
	}
	st.pending = nil

	var order []*batchGroup
	groups := map[fieldRef]*batchGroup{}
	for _, t := range live {
		ref := fieldRef{t.typeName, t.sel.Field}
		g := groups[ref]
		if g == nil {
			res, _ := st.eng.registry.Lookup(t.typeName, t.sel.Field)
			g = &batchGroup{typeName: t.typeName, field: t.sel.Field, resolver: res, index: map[string]int{}}
			groups[ref] = g
			order = append(order, g)
		}
		g.tasks = append(g.tasks, t)
		if _, seen := g.index[t.key]; !seen {
			g.index[t.key] = len(g.keys)
			g.keys = append(g.keys, t.key)
			g.sources = append(g.sources, t.source)
			g.args = append(g.args, t.sel.Arguments)
		}
	}

	// Groups are disjoint (type, field) fetches with no shared state, so
	// they run breadth-parallel within the depth barrier.
	var eg errgroup.Group
	for _, g := range order {
		eg.Go(func() error {
			out := g.resolver.Batch(st.ctx, g.keys, g.sources, g.args)
			if len(out) != len(g.keys) {
				err := fmt.Errorf("batched resolver %s.%s returned %d results for %d keys",
					g.typeName, g.field, len(out), len(g.keys))
				out = make([]BatchResult, len(g.keys))
				for i := range out {
					out[i] = BatchResult{Err: err}
				}
			}
			g.results = out
			return nil
		})
	}
	_ = eg.Wait()

	if st.ctx.Err() != nil {
		// In-flight work was allowed to finish, but its results are
		// discarded and no further depth is scheduled.
		st.pending = live
		return
	}

	for _, g := range order {
		for i, key := range g.keys {
			st.memo[memoKey(g.typeName, g.field, key)] = batchOutcome{g.results[i].Value, g.results[i].Err}
		}
	}
	for _, g := range order {
		for _, t := range g.tasks {
			st.completeTask(t, g.results[g.index[t.key]])
		}
	}
}

func (st *executionState) completeTask(t *task, out BatchResult) {
	if st.hasNullifiedPrefix(t.path) {
		return
	}
	if out.Err != nil {
		st.errors = append(st.errors, Error{Message: out.Err.Error(), Path: t.path, Kind: KindResolution})
		st.nullifyFailed(t)
		return
	}
	completed := st.completeValue(t.sel.Type, t.sel, out.Value, t.path, t.anchor)
	if t.sel.Type != nil && t.sel.Type.IsNonNull() && isNullish(completed) {
		st.nullifyFailed(t)
		return
	}
	if isNullish(completed) {
		setValueAtPath(st.root, t.path, nil)
		return
	}
	setValueAtPath(st.root, t.path, completed)
}

// nullifyFailed applies null propagation for a failed task: null at the
// nearest nullable ancestor, or a nil data root when there is none.
func (st *executionState) nullifyFailed(t *task) {
	if len(t.anchor) == 0 {
		st.dataNull = true
		st.markNullified(t.path[:1])
		return
	}
	setValueAtPath(st.root, t.anchor, nil)
	st.markNullified(t.anchor)
}

// abandonPending records a timeout error for every task still queued when
// the context ended, nulling each per the usual propagation rules.
func (st *executionState) abandonPending() {
	if len(st.pending) == 0 {
		return
	}
	msg := "query execution canceled"
	if errors.Is(st.ctx.Err(), context.DeadlineExceeded) {
		msg = "execution deadline exceeded"
	}
	for _, t := range st.pending {
		if st.hasNullifiedPrefix(t.path) {
			continue
		}
		st.errors = append(st.errors, Error{Message: msg, Path: t.path, Kind: KindTimeout})
		st.nullifyFailed(t)
	}
	st.pending = nil
}

func memoKey(typeName, field, key string) string {
	return typeName + "\x00" + field + "\x00" + key
}

func (st *executionState) addError(kind ErrorKind, path Path, format string, args ...any) {
	st.errors = append(st.errors, Error{Message: fmt.Sprintf(format, args...), Path: path, Kind: kind})
}

func (st *executionState) hasErrorAtPath(path Path) bool {
	want := pathToString(path)
	for _, err := range st.errors {
		if pathToString(err.Path) == want {
			return true
		}
	}
	return false
}

func (st *executionState) markNullified(p Path) {
	if key := pathToString(p); key != "" {
		st.nullified[key] = struct{}{}
	}
}

func (st *executionState) hasNullifiedPrefix(p Path) bool {
	if len(st.nullified) == 0 {
		return false
	}
	cur := Path{}
	for _, elem := range p {
		cur = append(cur, elem)
		if _, ok := st.nullified[pathToString(cur)]; ok {
			return true
		}
	}
	return false
}
