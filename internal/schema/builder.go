package schema

import (
	_ "embed"
	"fmt"
	"strconv"
	"strings"

	"github.com/vektah/gqlparser/v2"
	"github.com/vektah/gqlparser/v2/ast"
)

//go:embed variation.graphql
var variationSDL string

// Variation loads the embedded variation type system. It is the single
// schema this service serves; any declaration error aborts startup.
func Variation() (*Schema, error) {
	return Load("variation.graphql", variationSDL)
}

// Load parses and validates an SDL document and converts it into the
// immutable schema model.
func Load(name, sdl string) (*Schema, error) {
	astSchema, err := gqlparser.LoadSchema(&ast.Source{Name: name, Input: sdl})
	if err != nil {
		return nil, fmt.Errorf("load schema %s: %w", name, err)
	}

	s := &Schema{Types: map[string]*Type{}}
	if astSchema.Query != nil {
		s.QueryType = astSchema.Query.Name
	}
	for typeName, def := range astSchema.Types {
		if strings.HasPrefix(typeName, "__") {
			continue
		}
		t, err := buildType(def)
		if err != nil {
			return nil, err
		}
		if def.Kind == ast.Interface {
			for _, impl := range astSchema.PossibleTypes[typeName] {
				t.PossibleTypes = append(t.PossibleTypes, impl.Name)
			}
		}
		s.Types[typeName] = t
	}

	if err := s.Validate(); err != nil {
		return nil, err
	}
	return s, nil
}

// Validate checks structural soundness of a schema model, in particular
// that every object type carries all fields of the interfaces it declares.
// Violations abort startup; they are never a runtime condition.
func (s *Schema) Validate() error {
	if s.QueryType == "" || s.Types[s.QueryType] == nil {
		return fmt.Errorf("schema: query root type is not defined")
	}
	for _, t := range s.Types {
		if t.Kind != TypeKindObject {
			continue
		}
		for _, ifaceName := range t.Interfaces {
			iface := s.Types[ifaceName]
			if iface == nil || iface.Kind != TypeKindInterface {
				return fmt.Errorf("schema: type %s implements unknown interface %s", t.Name, ifaceName)
			}
			for _, required := range iface.Fields {
				if t.Field(required.Name) == nil {
					return fmt.Errorf("schema: type %s implements %s but is missing field %s",
						t.Name, ifaceName, required.Name)
				}
			}
		}
	}
	return nil
}

func buildType(def *ast.Definition) (*Type, error) {
	t := &Type{Name: def.Name, Description: def.Description}
	switch def.Kind {
	case ast.Object:
		t.Kind = TypeKindObject
		t.Interfaces = append(t.Interfaces, def.Interfaces...)
		for _, f := range def.Fields {
			if strings.HasPrefix(f.Name, "__") {
				continue
			}
			t.Fields = append(t.Fields, buildField(f))
		}
	case ast.Interface:
		t.Kind = TypeKindInterface
		for _, f := range def.Fields {
			t.Fields = append(t.Fields, buildField(f))
		}
	case ast.Enum:
		t.Kind = TypeKindEnum
		for _, v := range def.EnumValues {
			t.EnumValues = append(t.EnumValues, v.Name)
		}
	case ast.InputObject:
		t.Kind = TypeKindInputObject
		for _, f := range def.Fields {
			t.InputFields = append(t.InputFields, &InputValue{
				Name:        f.Name,
				Description: f.Description,
				Type:        typeRefFromAST(f.Type),
			})
		}
	case ast.Scalar:
		t.Kind = TypeKindScalar
	default:
		return nil, fmt.Errorf("schema: unsupported definition kind %s for type %s", def.Kind, def.Name)
	}
	return t, nil
}

func buildField(f *ast.FieldDefinition) *Field {
	field := &Field{
		Name:        f.Name,
		Description: f.Description,
		Type:        typeRefFromAST(f.Type),
	}
	for _, a := range f.Arguments {
		field.Arguments = append(field.Arguments, &InputValue{
			Name:         a.Name,
			Description:  a.Description,
			Type:         typeRefFromAST(a.Type),
			DefaultValue: defaultValueFromAST(a.DefaultValue),
		})
	}
	return field
}

func typeRefFromAST(t *ast.Type) *TypeRef {
	if t == nil {
		return nil
	}
	if t.NonNull {
		return NonNull(typeRefFromAST(&ast.Type{NamedType: t.NamedType, Elem: t.Elem}))
	}
	if t.NamedType != "" {
		return Named(t.NamedType)
	}
	return List(typeRefFromAST(t.Elem))
}

func defaultValueFromAST(v *ast.Value) any {
	if v == nil {
		return nil
	}
	switch v.Kind {
	case ast.IntValue:
		n, _ := strconv.Atoi(v.Raw)
		return n
	case ast.FloatValue:
		f, _ := strconv.ParseFloat(v.Raw, 64)
		return f
	case ast.BooleanValue:
		return v.Raw == "true"
	case ast.StringValue, ast.BlockValue, ast.EnumValue:
		return v.Raw
	default:
		return nil
	}
}
