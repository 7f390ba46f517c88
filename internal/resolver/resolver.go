// Package resolver binds the variation schema to a document provider.
// Reference fields (variant lookup, allele groups, shared external DBs,
// phenotype links) resolve through batched provider fetches; every other
// field projects straight out of the parent document.
package resolver

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/mitchellh/mapstructure"

	"github.com/varigraph/varigraph/internal/engine"
	"github.com/varigraph/varigraph/internal/provider"
	"github.com/varigraph/varigraph/internal/schema"
)

// API version reported by the version field.
const (
	versionMajor = "0"
	versionMinor = "1"
	versionPatch = "0-beta"
)

type wiring struct {
	provider provider.Provider
	genomes  map[string]bool
}

// NewRegistry wires every field of the variation schema and validates
// the result. genomes lists the genome IDs this deployment serves; an
// empty list disables the membership check.
func NewRegistry(s *schema.Schema, p provider.Provider, genomes []string) (*engine.Registry, error) {
	w := &wiring{provider: p, genomes: map[string]bool{}}
	for _, g := range genomes {
		w.genomes[g] = true
	}

	reg := engine.NewRegistry()
	register := func(typeName, field string, res engine.Resolver) {
		// Registrations are static, so a duplicate is a bug in this file.
		if err := reg.Register(typeName, field, res); err != nil {
			panic(err)
		}
	}

	register("Query", "variant", engine.Resolver{
		Key:   w.variantKey,
		Batch: w.single("variant", "record", missingFails("variant")),
	})
	register("Query", "version", engine.Resolver{Sync: versionField})

	register("Variant", "alleles", engine.Resolver{
		Key:   recordKey("id"),
		Batch: w.collection("variant", "alleles"),
	})
	for _, field := range []string{"population_frequencies", "predicted_molecular_consequences", "phenotype_assertions"} {
		register("VariantAllele", field, engine.Resolver{
			Key:   recordKey("id"),
			Batch: w.collection("variant_allele", field),
		})
	}

	// External DBs are shared by reference: every xref carries a
	// source_id and the engine collapses repeated IDs per depth.
	for _, typeName := range []string{"ExternalReference", "OntologyTermMetadata", "XrefMethod"} {
		register(typeName, "source", engine.Resolver{
			Key:   recordKey("source_id"),
			Batch: w.single("external_db", "record", missingFails("external_db")),
		})
	}

	// Phenotypes are weak references: a dangling name resolves to null.
	register("PhenotypeAssertion", "phenotype", engine.Resolver{
		Key:   recordKey("phenotype_name"),
		Batch: w.single("phenotype", "record", missingIsNull),
	})

	registerProjections(s, reg)

	if err := reg.Validate(s); err != nil {
		return nil, err
	}
	return reg, nil
}

// registerProjections gives every still-unbound object field a projection
// off the parent document under the field's own name.
func registerProjections(s *schema.Schema, reg *engine.Registry) {
	for name, t := range s.Types {
		if t.Kind != schema.TypeKindObject {
			continue
		}
		for _, f := range t.Fields {
			if reg.Registered(name, f.Name) {
				continue
			}
			if err := reg.Register(name, f.Name, projection(f.Name)); err != nil {
				panic(err)
			}
		}
	}
}

func projection(field string) engine.Resolver {
	return engine.Resolver{Sync: func(ctx context.Context, source any, args map[string]any) (any, error) {
		rec, ok := source.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("cannot project %q from %T", field, source)
		}
		return rec[field], nil
	}}
}

type variantByID struct {
	GenomeID  string `mapstructure:"genome_id"`
	VariantID string `mapstructure:"variant_id"`
}

// variantKey derives the storage key genome_id/variant_id from the by_id
// argument, rejecting malformed or unserved genomes before any fetch.
func (w *wiring) variantKey(source any, args map[string]any) (string, error) {
	var by variantByID
	if err := mapstructure.Decode(args["by_id"], &by); err != nil {
		return "", fmt.Errorf("malformed by_id argument: %w", err)
	}
	if _, err := uuid.Parse(by.GenomeID); err != nil {
		return "", fmt.Errorf("genome_id %q is not a genome UUID", by.GenomeID)
	}
	if len(w.genomes) > 0 && !w.genomes[by.GenomeID] {
		return "", fmt.Errorf("genome %q is not served here", by.GenomeID)
	}
	return by.GenomeID + "/" + by.VariantID, nil
}

// recordKey keys a batched fetch by a string field of the parent record.
// An absent field yields the empty key, which resolves to null.
func recordKey(field string) engine.KeyFunc {
	return func(source any, args map[string]any) (string, error) {
		rec, ok := source.(map[string]any)
		if !ok {
			return "", fmt.Errorf("cannot read %q from %T", field, source)
		}
		key, _ := rec[field].(string)
		return key, nil
	}
}

type missingPolicy func(key string) (any, error)

// missingFails treats an absent key as a resolution failure.
func missingFails(what string) missingPolicy {
	return func(key string) (any, error) {
		return nil, fmt.Errorf("%s %q not found", what, key)
	}
}

// missingIsNull resolves an absent key to null without an error.
func missingIsNull(string) (any, error) { return nil, nil }

// single fetches one document per key.
func (w *wiring) single(entity, field string, onMissing missingPolicy) engine.BatchFunc {
	return func(ctx context.Context, keys []string, sources []any, args []map[string]any) []engine.BatchResult {
		return w.fetch(ctx, entity, field, keys, func(key string, group provider.Group) (any, error) {
			if len(group) == 0 {
				if key == "" {
					return nil, nil
				}
				return onMissing(key)
			}
			return group[0], nil
		})
	}
}

// collection fetches the full ordered group per key; an absent key is an
// empty group, never null.
func (w *wiring) collection(entity, field string) engine.BatchFunc {
	return func(ctx context.Context, keys []string, sources []any, args []map[string]any) []engine.BatchResult {
		return w.fetch(ctx, entity, field, keys, func(key string, group provider.Group) (any, error) {
			if group == nil {
				return provider.Group{}, nil
			}
			return group, nil
		})
	}
}

func (w *wiring) fetch(ctx context.Context, entity, field string, keys []string, pick func(string, provider.Group) (any, error)) []engine.BatchResult {
	out := make([]engine.BatchResult, len(keys))
	groups, err := w.provider.Fetch(ctx, entity, field, keys)
	if err != nil || len(groups) != len(keys) {
		if err == nil {
			err = fmt.Errorf("provider returned %d groups for %d keys", len(groups), len(keys))
		}
		for i := range out {
			out[i] = engine.BatchResult{Err: err}
		}
		return out
	}
	for i, key := range keys {
		v, err := pick(key, groups[i])
		out[i] = engine.BatchResult{Value: v, Err: err}
	}
	return out
}

func versionField(ctx context.Context, source any, args map[string]any) (any, error) {
	return map[string]any{
		"api": map[string]any{
			"major": versionMajor,
			"minor": versionMinor,
			"patch": versionPatch,
		},
	}, nil
}
