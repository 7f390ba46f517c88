package engine

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/varigraph/varigraph/internal/compiler"
	"github.com/varigraph/varigraph/internal/schema"
)

const testSDL = `
type Query {
  variant(id: String!): Variant
  requiredVariant(id: String!): Variant!
}

type Variant {
  name: String!
  frequency: Float
  tags: [String!]
  source: Source
  requiredSource: Source!
  partner: Variant
  alleles: [Allele!]!
  xref: XrefMetadata
}

type Source {
  id: String!
  name: String
}

type Allele {
  name: String!
  frequency: Float!
  source: Source
}

interface XrefMetadata {
  accession_id: String
}

type ValueSet implements XrefMetadata {
  accession_id: String
  label: String
}

type OntologyTerm implements XrefMetadata {
  accession_id: String
  definition: String
}
`

// fetchLog records every batched invocation so tests can assert on the
// grouping, deduplication and count of provider round trips.
type fetchLog struct {
	mu    sync.Mutex
	calls map[string][][]string
}

func newFetchLog() *fetchLog {
	return &fetchLog{calls: map[string][][]string{}}
}

func (l *fetchLog) add(ref string, keys []string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.calls[ref] = append(l.calls[ref], append([]string(nil), keys...))
}

func (l *fetchLog) invocations(ref string) [][]string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.calls[ref]
}

func (l *fetchLog) count(ref string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.calls[ref])
}

type harness struct {
	schema   *schema.Schema
	registry *Registry
	log      *fetchLog

	variants map[string]map[string]any
	sources  map[string]map[string]any
	alleles  map[string][]any

	// onSourceFetch runs inside the Variant.source batch before it
	// returns, letting tests cancel the execution mid-depth.
	onSourceFetch func()
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	s, err := schema.Load("engine-test", testSDL)
	if err != nil {
		t.Fatalf("load schema: %v", err)
	}

	h := &harness{
		schema: s,
		log:    newFetchLog(),
		variants: map[string]map[string]any{
			"v1": {
				"name": "v1", "frequency": 0.42, "tags": []any{"common", "snv"},
				"source_id": "dbsnp", "required_source_id": "dbsnp", "partner_id": "v2",
				"xref": map[string]any{"type": "ValueSet", "accession_id": "VS000001", "label": "curated"},
			},
			"v2": {
				"name": "v2", "source_id": "dbsnp", "required_source_id": "dbsnp", "partner_id": "v2",
				"xref": map[string]any{"type": "OntologyTerm", "accession_id": "SO:0001583", "definition": "missense"},
			},
			"v3": {
				"name": "v3", "tags": []any{"rare", nil},
				"source_id": "clinvar", "required_source_id": "clinvar",
				"xref": map[string]any{"type": "Mystery", "accession_id": "X"},
			},
			"v4": {
				"name": "v4", "source_id": "dbsnp", "required_source_id": "boom",
			},
			"v5": {
				"name": "v5", "source_id": "dbsnp", "required_source_id": "dbsnp",
				"xref": map[string]any{"__kind": "OntologyTerm", "accession_id": "GO:0005515", "definition": "protein binding"},
			},
		},
		sources: map[string]map[string]any{
			"dbsnp":   {"id": "dbsnp", "name": "dbSNP"},
			"clinvar": {"id": "clinvar", "name": "ClinVar"},
		},
		alleles: map[string][]any{
			"v1": {
				map[string]any{"name": "v1-A", "frequency": 0.1, "source_id": "dbsnp"},
				map[string]any{"name": "v1-T", "frequency": 0.9, "source_id": "clinvar"},
			},
			"v2": {},
			"v3": {
				map[string]any{"name": "v3-G"},
			},
			"v4": {
				map[string]any{"name": "v4-C", "frequency": 0.5, "source_id": "dbsnp"},
			},
		},
	}

	reg := NewRegistry()
	register := func(typeName, field string, res Resolver) {
		if err := reg.Register(typeName, field, res); err != nil {
			t.Fatalf("register %s.%s: %v", typeName, field, err)
		}
	}

	argKey := func(name string) KeyFunc {
		return func(source any, args map[string]any) (string, error) {
			s, ok := args[name].(string)
			if !ok {
				return "", fmt.Errorf("argument %q is not a string", name)
			}
			return s, nil
		}
	}
	sourceKey := func(name string) KeyFunc {
		return func(source any, args map[string]any) (string, error) {
			rec, _ := source.(map[string]any)
			s, _ := rec[name].(string)
			if s == "" {
				return "", fmt.Errorf("record carries no %q", name)
			}
			return s, nil
		}
	}
	variantLookup := func(key string) (any, error) {
		rec, ok := h.variants[key]
		if !ok {
			return nil, fmt.Errorf("variant %q not found", key)
		}
		return rec, nil
	}

	register("Query", "variant", Resolver{Key: argKey("id"), Batch: h.batchLookup("Query.variant", variantLookup)})
	register("Query", "requiredVariant", Resolver{Key: argKey("id"), Batch: h.batchLookup("Query.requiredVariant", variantLookup)})

	for _, name := range []string{"name", "frequency", "tags", "xref"} {
		register("Variant", name, fieldOf(name))
	}
	register("Variant", "source", Resolver{Key: sourceKey("source_id"), Batch: func(ctx context.Context, keys []string, sources []any, args []map[string]any) []BatchResult {
		h.log.add("Variant.source", keys)
		if h.onSourceFetch != nil {
			h.onSourceFetch()
		}
		return lookupAll(keys, h.sourceLookup)
	}})
	register("Variant", "requiredSource", Resolver{Key: sourceKey("required_source_id"), Batch: h.batchLookup("Variant.requiredSource", h.sourceLookup)})
	register("Variant", "partner", Resolver{Key: sourceKey("partner_id"), Batch: h.batchLookup("Variant.partner", variantLookup)})
	register("Variant", "alleles", Resolver{Key: sourceKey("name"), Batch: h.batchLookup("Variant.alleles", func(key string) (any, error) {
		group, ok := h.alleles[key]
		if !ok {
			return []any{}, nil
		}
		return group, nil
	})})

	register("Allele", "name", fieldOf("name"))
	register("Allele", "frequency", fieldOf("frequency"))
	register("Allele", "source", Resolver{Key: sourceKey("source_id"), Batch: h.batchLookup("Allele.source", h.sourceLookup)})

	register("Source", "id", fieldOf("id"))
	register("Source", "name", fieldOf("name"))
	register("ValueSet", "accession_id", fieldOf("accession_id"))
	register("ValueSet", "label", fieldOf("label"))
	register("OntologyTerm", "accession_id", fieldOf("accession_id"))
	register("OntologyTerm", "definition", fieldOf("definition"))

	if err := reg.Validate(s); err != nil {
		t.Fatalf("validate registry: %v", err)
	}
	h.registry = reg
	return h
}

func (h *harness) sourceLookup(key string) (any, error) {
	rec, ok := h.sources[key]
	if !ok {
		return nil, fmt.Errorf("source %q not found", key)
	}
	return rec, nil
}

// batchLookup builds a BatchFunc that resolves each key independently and
// records the invocation under ref.
func (h *harness) batchLookup(ref string, lookup func(key string) (any, error)) BatchFunc {
	return func(ctx context.Context, keys []string, sources []any, args []map[string]any) []BatchResult {
		h.log.add(ref, keys)
		return lookupAll(keys, lookup)
	}
}

func lookupAll(keys []string, lookup func(key string) (any, error)) []BatchResult {
	out := make([]BatchResult, len(keys))
	for i, key := range keys {
		v, err := lookup(key)
		out[i] = BatchResult{Value: v, Err: err}
	}
	return out
}

// fieldOf projects a record field from the parent value.
func fieldOf(name string) Resolver {
	return Resolver{Sync: func(ctx context.Context, source any, args map[string]any) (any, error) {
		rec, _ := source.(map[string]any)
		return rec[name], nil
	}}
}

func (h *harness) execute(t *testing.T, query string, opts ...Option) *Result {
	t.Helper()
	return h.executeCtx(t, context.Background(), query, opts...)
}

func (h *harness) executeCtx(t *testing.T, ctx context.Context, query string, opts ...Option) *Result {
	t.Helper()
	plan, errs := compiler.Compile(h.schema, query, "", nil)
	if len(errs) > 0 {
		t.Fatalf("compile: %v", errs)
	}
	return New(h.schema, h.registry, opts...).Execute(ctx, plan)
}
