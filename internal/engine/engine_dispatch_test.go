package engine

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestDispatch_DiscriminantSelectsVariant(t *testing.T) {
	h := newHarness(t)

	got := h.execute(t, `{
		variant(id: "v1") {
			xref {
				__typename
				accession_id
				... on ValueSet { label }
				... on OntologyTerm { definition }
			}
		}
	}`)

	want := &Result{Data: map[string]any{
		"variant": map[string]any{
			"xref": map[string]any{
				"__typename":   "ValueSet",
				"accession_id": "VS000001",
				"label":        "curated",
			},
		},
	}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("result mismatch (-want +got):\n%s", diff)
	}
}

func TestDispatch_OtherVariantSelectionsAreDropped(t *testing.T) {
	h := newHarness(t)

	got := h.execute(t, `{
		variant(id: "v2") {
			xref {
				accession_id
				... on ValueSet { label }
				... on OntologyTerm { definition }
			}
		}
	}`)

	want := &Result{Data: map[string]any{
		"variant": map[string]any{
			"xref": map[string]any{
				"accession_id": "SO:0001583",
				"definition":   "missense",
			},
		},
	}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("result mismatch (-want +got):\n%s", diff)
	}
}

func TestDispatch_UnknownDiscriminantFailsNode(t *testing.T) {
	h := newHarness(t)

	got := h.execute(t, `{ variant(id: "v3") { name xref { accession_id } } }`)

	want := &Result{
		Data: map[string]any{
			"variant": map[string]any{"name": "v3", "xref": nil},
		},
		Errors: []Error{{
			Message: `discriminant "Mystery" is not a concrete variant of interface XrefMetadata`,
			Path:    Path{"variant", "xref"},
			Kind:    KindResolution,
		}},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("result mismatch (-want +got):\n%s", diff)
	}
}

func TestDispatch_CustomDiscriminantField(t *testing.T) {
	h := newHarness(t)

	got := h.execute(t, `{
		variant(id: "v5") {
			xref { accession_id ... on OntologyTerm { definition } }
		}
	}`, WithDiscriminantField("__kind"))

	want := &Result{Data: map[string]any{
		"variant": map[string]any{
			"xref": map[string]any{
				"accession_id": "GO:0005515",
				"definition":   "protein binding",
			},
		},
	}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("result mismatch (-want +got):\n%s", diff)
	}
}

func TestDispatch_MissingDiscriminantFailsNode(t *testing.T) {
	h := newHarness(t)

	// v5's record is tagged with __kind, which the default engine does
	// not read.
	got := h.execute(t, `{ variant(id: "v5") { xref { accession_id } } }`)

	want := &Result{
		Data: map[string]any{
			"variant": map[string]any{"xref": nil},
		},
		Errors: []Error{{
			Message: `record for interface XrefMetadata carries no "type" discriminant`,
			Path:    Path{"variant", "xref"},
			Kind:    KindResolution,
		}},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("result mismatch (-want +got):\n%s", diff)
	}
}
