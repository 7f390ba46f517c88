package engine

import (
	"context"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/varigraph/varigraph/internal/compiler"
	"github.com/varigraph/varigraph/internal/schema"
)

func TestBatching_OneInvocationPerFieldPerDepth(t *testing.T) {
	h := newHarness(t)

	got := h.execute(t, `{
		a: variant(id: "v1") { name source { name } }
		b: variant(id: "v2") { source { id name } }
		c: variant(id: "v1") { frequency }
	}`)

	want := &Result{Data: map[string]any{
		"a": map[string]any{"name": "v1", "source": map[string]any{"name": "dbSNP"}},
		"b": map[string]any{"source": map[string]any{"id": "dbsnp", "name": "dbSNP"}},
		"c": map[string]any{"frequency": 0.42},
	}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("result mismatch (-want +got):\n%s", diff)
	}

	// Three root fields, two distinct keys, one round trip.
	wantVariant := [][]string{{"v1", "v2"}}
	if diff := cmp.Diff(wantVariant, h.log.invocations("Query.variant")); diff != "" {
		t.Fatalf("Query.variant invocations (-want +got):\n%s", diff)
	}
	// Both parents point at the same source, so the key group collapses.
	wantSource := [][]string{{"dbsnp"}}
	if diff := cmp.Diff(wantSource, h.log.invocations("Variant.source")); diff != "" {
		t.Fatalf("Variant.source invocations (-want +got):\n%s", diff)
	}
}

func TestBatching_GroupsKeysInDiscoveryOrder(t *testing.T) {
	h := newHarness(t)

	h.execute(t, `{
		a: variant(id: "v1") { alleles { name } }
		b: variant(id: "v3") { alleles { name } }
	}`)

	want := [][]string{{"v1", "v3"}}
	if diff := cmp.Diff(want, h.log.invocations("Variant.alleles")); diff != "" {
		t.Fatalf("Variant.alleles invocations (-want +got):\n%s", diff)
	}
}

func TestBatching_MemoizesAcrossDepths(t *testing.T) {
	h := newHarness(t)

	// v1's partner is v2, and v2's partner is itself. The inner partner
	// fetch at depth three hits the memo entry written at depth two.
	got := h.execute(t, `{
		variant(id: "v1") { partner { name partner { name } } }
	}`)

	want := &Result{Data: map[string]any{
		"variant": map[string]any{
			"partner": map[string]any{
				"name":    "v2",
				"partner": map[string]any{"name": "v2"},
			},
		},
	}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("result mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([][]string{{"v2"}}, h.log.invocations("Variant.partner")); diff != "" {
		t.Fatalf("Variant.partner invocations (-want +got):\n%s", diff)
	}
}

func TestBatching_ListOrderFollowsProvider(t *testing.T) {
	h := newHarness(t)

	got := h.execute(t, `{ variant(id: "v1") { alleles { name frequency } } }`)

	want := &Result{Data: map[string]any{
		"variant": map[string]any{
			"alleles": []any{
				map[string]any{"name": "v1-A", "frequency": 0.1},
				map[string]any{"name": "v1-T", "frequency": 0.9},
			},
		},
	}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("result mismatch (-want +got):\n%s", diff)
	}
}

func TestBatching_EmptyGroupYieldsEmptyList(t *testing.T) {
	h := newHarness(t)

	got := h.execute(t, `{ variant(id: "v2") { name alleles { name } } }`)

	want := &Result{Data: map[string]any{
		"variant": map[string]any{"name": "v2", "alleles": []any{}},
	}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("result mismatch (-want +got):\n%s", diff)
	}
}

func TestBatching_SizeMismatchFailsEveryKey(t *testing.T) {
	s, err := schema.Load("mismatch-test", `
		type Query { variant(id: String!): Variant }
		type Variant { name: String! }
	`)
	if err != nil {
		t.Fatalf("load schema: %v", err)
	}
	reg := NewRegistry()
	if err := reg.Register("Query", "variant", Resolver{
		Key: func(source any, args map[string]any) (string, error) {
			return args["id"].(string), nil
		},
		Batch: func(ctx context.Context, keys []string, sources []any, args []map[string]any) []BatchResult {
			return nil // wrong arity: one key in, zero results out
		},
	}); err != nil {
		t.Fatal(err)
	}
	if err := reg.Register("Variant", "name", fieldOf("name")); err != nil {
		t.Fatal(err)
	}

	plan, errs := compiler.Compile(s, `{ variant(id: "v1") { name } }`, "", nil)
	if len(errs) > 0 {
		t.Fatalf("compile: %v", errs)
	}
	got := New(s, reg).Execute(context.Background(), plan)

	want := &Result{
		Data: map[string]any{"variant": nil},
		Errors: []Error{{
			Message: "batched resolver Query.variant returned 0 results for 1 keys",
			Path:    Path{"variant"},
			Kind:    KindResolution,
		}},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("result mismatch (-want +got):\n%s", diff)
	}
}
