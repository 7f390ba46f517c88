package engine

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestNulls_NullableFieldAbsorbsFailure(t *testing.T) {
	h := newHarness(t)

	got := h.execute(t, `{ variant(id: "nope") { name } }`)

	want := &Result{
		Data: map[string]any{"variant": nil},
		Errors: []Error{{
			Message: `variant "nope" not found`,
			Path:    Path{"variant"},
			Kind:    KindResolution,
		}},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("result mismatch (-want +got):\n%s", diff)
	}
}

func TestNulls_NonNullableRootNullsData(t *testing.T) {
	h := newHarness(t)

	got := h.execute(t, `{ requiredVariant(id: "nope") { name } }`)

	want := &Result{
		Data: nil,
		Errors: []Error{{
			Message: `variant "nope" not found`,
			Path:    Path{"requiredVariant"},
			Kind:    KindResolution,
		}},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("result mismatch (-want +got):\n%s", diff)
	}
}

func TestNulls_NonNullableFieldNullsNearestNullableAncestor(t *testing.T) {
	h := newHarness(t)

	got := h.execute(t, `{ variant(id: "v4") { name requiredSource { id } } }`)

	want := &Result{
		Data: map[string]any{"variant": nil},
		Errors: []Error{{
			Message: `source "boom" not found`,
			Path:    Path{"variant", "requiredSource"},
			Kind:    KindResolution,
		}},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("result mismatch (-want +got):\n%s", diff)
	}
}

func TestNulls_NullifiedSubtreeSchedulesNoDeeperFetches(t *testing.T) {
	h := newHarness(t)

	got := h.execute(t, `{
		variant(id: "v4") { requiredSource { id } alleles { source { id } } }
	}`)

	if got.Data.(map[string]any)["variant"] != nil {
		t.Fatalf("expected nullified variant, got %v", got.Data)
	}
	// The sibling group at the same depth was already in flight.
	if n := h.log.count("Variant.alleles"); n != 1 {
		t.Fatalf("Variant.alleles fetched %d times, want 1", n)
	}
	// Nothing below the tombstoned node reaches the next depth.
	if n := h.log.count("Allele.source"); n != 0 {
		t.Fatalf("Allele.source fetched %d times, want 0", n)
	}
}

func TestNulls_NonNullableListElementNullsList(t *testing.T) {
	h := newHarness(t)

	// v3's only allele carries no frequency. The element fails, the
	// non-nullable list fails with it, and the variant absorbs the null.
	got := h.execute(t, `{ variant(id: "v3") { name alleles { name frequency } } }`)

	want := &Result{
		Data: map[string]any{"variant": nil},
		Errors: []Error{{
			Message: "cannot return null for non-nullable field variant.alleles[0].frequency",
			Path:    Path{"variant", "alleles", 0, "frequency"},
			Kind:    KindResolution,
		}},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("result mismatch (-want +got):\n%s", diff)
	}
}

func TestNulls_NullableListAbsorbsElementFailure(t *testing.T) {
	h := newHarness(t)

	got := h.execute(t, `{ variant(id: "v3") { name tags } }`)

	want := &Result{
		Data: map[string]any{
			"variant": map[string]any{"name": "v3", "tags": nil},
		},
		Errors: []Error{{
			Message: "cannot return null for non-nullable field variant.tags[1]",
			Path:    Path{"variant", "tags", 1},
			Kind:    KindResolution,
		}},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("result mismatch (-want +got):\n%s", diff)
	}
}
