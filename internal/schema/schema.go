// Package schema holds the static model of the variation type system:
// named types, their fields, and the interface/implementer relation.
// The model is built once at startup and never mutated afterwards.
package schema

// Schema is the complete type system served by the query engine.
type Schema struct {
	QueryType string
	Types     map[string]*Type // all named types keyed by name
}

// GetQueryType returns the root query type (nil if absent).
func (s *Schema) GetQueryType() *Type { return s.Types[s.QueryType] }

// TypeOf returns the named type descriptor, or nil when unknown.
func (s *Schema) TypeOf(name string) *Type { return s.Types[name] }

// FieldsOf returns the ordered field descriptors of a type, or nil when the
// type is unknown or has no fields.
func (s *Schema) FieldsOf(typeName string) []*Field {
	t := s.Types[typeName]
	if t == nil {
		return nil
	}
	return t.Fields
}

// InterfacesOf returns the names of the interfaces implemented by typeName.
func (s *Schema) InterfacesOf(typeName string) []string {
	t := s.Types[typeName]
	if t == nil {
		return nil
	}
	return t.Interfaces
}

// ImplementersOf returns the concrete object types implementing the named
// interface, in declaration order.
func (s *Schema) ImplementersOf(interfaceName string) []string {
	t := s.Types[interfaceName]
	if t == nil || t.Kind != TypeKindInterface {
		return nil
	}
	return t.PossibleTypes
}

// Implements reports whether the object type is a possible type of the
// named interface.
func (s *Schema) Implements(typeName, interfaceName string) bool {
	for _, name := range s.ImplementersOf(interfaceName) {
		if name == typeName {
			return true
		}
	}
	return false
}

// Type is a named type: object, interface, scalar, enum or input object.
type Type struct {
	Name          string
	Kind          TypeKind
	Description   string
	Fields        []*Field      // OBJECT and INTERFACE
	Interfaces    []string      // OBJECT: implemented interfaces
	PossibleTypes []string      // INTERFACE: concrete implementers
	EnumValues    []string      // ENUM
	InputFields   []*InputValue // INPUT_OBJECT
}

// Field looks up a field of an object or interface type by name.
func (t *Type) Field(name string) *Field {
	for _, f := range t.Fields {
		if f.Name == name {
			return f
		}
	}
	return nil
}

// HasEnumValue reports whether name is a declared value of an enum type.
func (t *Type) HasEnumValue(name string) bool {
	for _, v := range t.EnumValues {
		if v == name {
			return true
		}
	}
	return false
}

// Field describes a selectable field on an object or interface type.
type Field struct {
	Name        string
	Description string
	Type        *TypeRef
	Arguments   []*InputValue
}

// Argument looks up a declared argument by name.
func (f *Field) Argument(name string) *InputValue {
	for _, a := range f.Arguments {
		if a.Name == name {
			return a
		}
	}
	return nil
}

// InputValue describes a field argument or an input object field.
type InputValue struct {
	Name         string
	Description  string
	Type         *TypeRef
	DefaultValue any
}

type TypeKind string

const (
	TypeKindScalar      TypeKind = "SCALAR"
	TypeKindObject      TypeKind = "OBJECT"
	TypeKindInterface   TypeKind = "INTERFACE"
	TypeKindEnum        TypeKind = "ENUM"
	TypeKindInputObject TypeKind = "INPUT_OBJECT"
)

// TypeRef references a type, possibly wrapped with list and non-null
// modifiers.
type TypeRef struct {
	Kind   TypeRefKind
	OfType *TypeRef // LIST and NON_NULL
	Named  string   // NAMED
}

type TypeRefKind string

const (
	TypeRefKindNamed   TypeRefKind = "NAMED"
	TypeRefKindList    TypeRefKind = "LIST"
	TypeRefKindNonNull TypeRefKind = "NON_NULL"
)

func (t *TypeRef) IsNonNull() bool { return t != nil && t.Kind == TypeRefKindNonNull }

func (t *TypeRef) IsList() bool {
	if t == nil {
		return false
	}
	if t.Kind == TypeRefKindList {
		return true
	}
	return t.Kind == TypeRefKindNonNull && t.OfType != nil && t.OfType.Kind == TypeRefKindList
}

// Unwrap removes one layer of non-null or list wrapping.
func (t *TypeRef) Unwrap() *TypeRef {
	if t.Kind == TypeRefKindNonNull || t.Kind == TypeRefKindList {
		return t.OfType
	}
	return t
}

// NamedType returns the innermost named type.
func (t *TypeRef) NamedType() string {
	cur := t
	for cur != nil {
		if cur.Named != "" {
			return cur.Named
		}
		cur = cur.OfType
	}
	return ""
}

// String renders the reference in SDL notation, e.g. [VariantAllele!]!.
func (t *TypeRef) String() string {
	if t == nil {
		return ""
	}
	switch t.Kind {
	case TypeRefKindNonNull:
		return t.OfType.String() + "!"
	case TypeRefKindList:
		return "[" + t.OfType.String() + "]"
	default:
		return t.Named
	}
}

func NonNull(t *TypeRef) *TypeRef { return &TypeRef{Kind: TypeRefKindNonNull, OfType: t} }
func List(t *TypeRef) *TypeRef    { return &TypeRef{Kind: TypeRefKindList, OfType: t} }
func Named(name string) *TypeRef  { return &TypeRef{Kind: TypeRefKindNamed, Named: name} }
