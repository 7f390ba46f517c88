package schema

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestVariation_LoadsAndExposesLookups(t *testing.T) {
	s, err := Variation()
	if err != nil {
		t.Fatalf("Variation() failed: %v", err)
	}

	if s.QueryType != "Query" {
		t.Fatalf("query type = %q, want Query", s.QueryType)
	}

	variant := s.TypeOf("Variant")
	if variant == nil || variant.Kind != TypeKindObject {
		t.Fatalf("Variant type missing or wrong kind: %+v", variant)
	}

	fields := s.FieldsOf("Variant")
	var names []string
	for _, f := range fields {
		names = append(names, f.Name)
	}
	want := []string{
		"name", "type", "alternative_names", "primary_source",
		"allele_type", "slice", "alleles", "prediction_results",
	}
	if diff := cmp.Diff(want, names); diff != "" {
		t.Fatalf("Variant fields mismatch (-want +got):\n%s", diff)
	}

	alleles := variant.Field("alleles")
	if got := alleles.Type.String(); got != "[VariantAllele!]!" {
		t.Fatalf("alleles type = %q", got)
	}
	if got := alleles.Type.NamedType(); got != "VariantAllele" {
		t.Fatalf("alleles named type = %q", got)
	}
	if !alleles.Type.IsNonNull() || !alleles.Type.IsList() {
		t.Fatalf("alleles should be a non-null list: %+v", alleles.Type)
	}
}

func TestVariation_InterfaceRelation(t *testing.T) {
	s, err := Variation()
	if err != nil {
		t.Fatalf("Variation() failed: %v", err)
	}

	impls := s.ImplementersOf("XrefMetadata")
	got := map[string]bool{}
	for _, name := range impls {
		got[name] = true
	}
	if !got["ExternalReference"] || !got["OntologyTermMetadata"] {
		t.Fatalf("XrefMetadata implementers = %v", impls)
	}
	if got["ValueSet"] {
		t.Fatalf("ValueSet must not implement XrefMetadata: %v", impls)
	}

	if diff := cmp.Diff([]string{"ValueSetMetadata", "XrefMetadata"}, s.InterfacesOf("OntologyTermMetadata")); diff != "" {
		t.Fatalf("OntologyTermMetadata interfaces mismatch (-want +got):\n%s", diff)
	}
	if !s.Implements("ValueSet", "ValueSetMetadata") {
		t.Fatal("ValueSet should implement ValueSetMetadata")
	}
	if s.Implements("ValueSet", "XrefMetadata") {
		t.Fatal("ValueSet should not implement XrefMetadata")
	}
}

func TestVariation_InfoTypeIsClosed(t *testing.T) {
	s, err := Variation()
	if err != nil {
		t.Fatalf("Variation() failed: %v", err)
	}
	infoType := s.TypeOf("InfoType")
	if infoType == nil || infoType.Kind != TypeKindEnum {
		t.Fatalf("InfoType missing or not an enum: %+v", infoType)
	}
	if len(infoType.EnumValues) != 11 {
		t.Fatalf("InfoType has %d values, want 11", len(infoType.EnumValues))
	}
	if !infoType.HasEnumValue("DIRECT") || infoType.HasEnumValue("BOGUS") {
		t.Fatalf("enum membership check broken: %v", infoType.EnumValues)
	}
}

func TestLoad_MissingInterfaceFieldFails(t *testing.T) {
	const sdl = `
		schema { query: Query }
		type Query { thing: Labeled }
		interface Labeled { label: String }
		type Thing implements Labeled { name: String }
	`
	if _, err := Load("bad.graphql", sdl); err == nil {
		t.Fatal("expected load failure for missing interface field")
	}
}

func TestValidate_ProgrammaticSchema(t *testing.T) {
	s := &Schema{
		QueryType: "Query",
		Types: map[string]*Type{
			"Query": {Name: "Query", Kind: TypeKindObject, Fields: []*Field{
				{Name: "x", Type: Named("Tagged")},
			}},
			"Tagged": {Name: "Tagged", Kind: TypeKindInterface, Fields: []*Field{
				{Name: "tag", Type: Named("String")},
			}, PossibleTypes: []string{"Item"}},
			"Item": {Name: "Item", Kind: TypeKindObject, Interfaces: []string{"Tagged"},
				Fields: []*Field{{Name: "name", Type: Named("String")}}},
			"String": {Name: "String", Kind: TypeKindScalar},
		},
	}
	if err := s.Validate(); err == nil {
		t.Fatal("expected validation error: Item lacks field tag")
	}

	s.Types["Item"].Fields = append(s.Types["Item"].Fields, &Field{Name: "tag", Type: Named("String")})
	if err := s.Validate(); err != nil {
		t.Fatalf("unexpected validation error: %v", err)
	}
}
