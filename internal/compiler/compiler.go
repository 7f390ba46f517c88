// Package compiler turns a client GraphQL selection into a validated
// selection tree. Validation collects every error it finds rather than
// stopping at the first one, since a query can carry several independent
// mistakes. No resolver ever runs for a query that fails to compile.
package compiler

import (
	"github.com/varigraph/varigraph/internal/language"
	"github.com/varigraph/varigraph/internal/schema"
)

// Plan is a compiled, validated query ready for execution.
type Plan struct {
	Operation string
	Root      []*Selection
}

// Selection is one node of the selection tree. Children of interface-typed
// fields carry OnType when they are scoped to a single concrete variant;
// OnType is empty for selections that apply to every variant.
type Selection struct {
	Field     string
	Alias     string
	OnType    string
	Arguments map[string]any
	Type      *schema.TypeRef // declared field type; nil for __typename
	Children  []*Selection
}

// TypenameField is the meta field resolved by the engine itself.
const TypenameField = "__typename"

type compilation struct {
	schema    *schema.Schema
	doc       *language.QueryDocument
	variables map[string]any
	errs      errorList
}

// Compile parses and validates query against s, returning the plan or the
// full list of compile errors. The two are mutually exclusive.
func Compile(s *schema.Schema, query, operationName string, variables map[string]any) (*Plan, []*Error) {
	doc, err := language.ParseQuery(query)
	if err != nil {
		return nil, []*Error{{Kind: KindSyntax, Message: err.Error()}}
	}

	op := doc.Operations.ForName(operationName)
	if op == nil && operationName == "" && len(doc.Operations) == 1 {
		op = doc.Operations[0]
	}
	if op == nil {
		return nil, []*Error{{Kind: KindUnknownOperation, Message: "operation not found"}}
	}
	if op.Operation != language.Query {
		return nil, []*Error{{Kind: KindUnknownOperation,
			Message: "unsupported operation type: " + string(op.Operation)}}
	}

	c := &compilation{schema: s, doc: doc}
	c.variables = coerceVariables(s, op, variables, &c.errs)
	if len(c.errs.errs) > 0 {
		return nil, c.errs.errs
	}

	root := c.compileSelections(s.QueryType, "", op.SelectionSet, nil)
	if len(c.errs.errs) > 0 {
		return nil, c.errs.errs
	}
	return &Plan{Operation: op.Name, Root: root}, nil
}

// fieldGroup gathers all occurrences of one response key within one variant
// scope, in first-appearance order.
type fieldGroup struct {
	scope      string
	alias      string
	parentType string
	fields     []*language.Field
}

type groupedFields struct {
	order []*fieldGroup
	index map[[2]string]int
}

func (g *groupedFields) add(scope, alias, parentType string, f *language.Field) {
	key := [2]string{scope, alias}
	if g.index == nil {
		g.index = map[[2]string]int{}
	}
	if i, ok := g.index[key]; ok {
		g.order[i].fields = append(g.order[i].fields, f)
		return
	}
	g.index[key] = len(g.order)
	g.order = append(g.order, &fieldGroup{scope: scope, alias: alias, parentType: parentType, fields: []*language.Field{f}})
}

func (c *compilation) compileSelections(typeName, scope string, set language.SelectionSet, path []string) []*Selection {
	groups := &groupedFields{}
	c.collect(typeName, scope, set, groups, map[string]bool{}, path)

	var out []*Selection
	for _, g := range groups.order {
		if sel := c.compileGroup(g, path); sel != nil {
			out = append(out, sel)
		}
	}
	return out
}

// collect flattens fields, inline fragments and fragment spreads into
// ordered field groups, resolving variant scopes along the way.
func (c *compilation) collect(typeName, scope string, set language.SelectionSet, groups *groupedFields, visited map[string]bool, path []string) {
	for _, sel := range set {
		switch node := sel.(type) {
		case *language.Field:
			alias := node.Alias
			if alias == "" {
				alias = node.Name
			}
			groups.add(scope, alias, typeName, node)

		case *language.InlineFragment:
			c.collectFragment(typeName, scope, node.TypeCondition, node.SelectionSet, groups, visited, path)

		case *language.FragmentSpread:
			if visited[node.Name] {
				continue
			}
			visited[node.Name] = true
			def := c.doc.Fragments.ForName(node.Name)
			if def == nil {
				c.errs.add(KindUnknownType, path, "unknown fragment %q", node.Name)
				continue
			}
			c.collectFragment(typeName, scope, def.TypeCondition, def.SelectionSet, groups, visited, path)
		}
	}
}

func (c *compilation) collectFragment(typeName, scope, condition string, set language.SelectionSet, groups *groupedFields, visited map[string]bool, path []string) {
	if condition == "" || condition == typeName {
		c.collect(typeName, scope, set, groups, visited, path)
		return
	}
	condType := c.schema.TypeOf(condition)
	if condType == nil {
		c.errs.add(KindUnknownType, path, "unknown type %q in fragment condition", condition)
		return
	}
	parent := c.schema.TypeOf(typeName)
	switch {
	case parent != nil && parent.Kind == schema.TypeKindInterface:
		if condType.Kind != schema.TypeKindObject || !c.schema.Implements(condition, typeName) {
			c.errs.add(KindInvalidFragmentOnInterface, path,
				"fragment on %q can never match interface %q", condition, typeName)
			return
		}
		// Variant-scoped selections are tagged so dispatch can filter them.
		c.collect(condition, condition, set, groups, visited, path)
	case parent != nil && condType.Kind == schema.TypeKindInterface && c.schema.Implements(typeName, condition):
		c.collect(typeName, scope, set, groups, visited, path)
	default:
		c.errs.add(KindInvalidFragmentOnInterface, path,
			"fragment on %q can never match type %q", condition, typeName)
	}
}

func (c *compilation) compileGroup(g *fieldGroup, path []string) *Selection {
	first := g.fields[0]
	fieldPath := append(append([]string(nil), path...), g.alias)

	if first.Name == TypenameField {
		return &Selection{Field: TypenameField, Alias: g.alias, OnType: g.scope}
	}

	parent := c.schema.TypeOf(g.parentType)
	if parent == nil {
		c.errs.add(KindUnknownType, fieldPath, "unknown type %q", g.parentType)
		return nil
	}
	fieldDef := parent.Field(first.Name)
	if fieldDef == nil {
		c.errs.add(KindUnknownField, fieldPath, "cannot query field %q on type %q", first.Name, parent.Name)
		return nil
	}

	sel := &Selection{
		Field:     first.Name,
		Alias:     g.alias,
		OnType:    g.scope,
		Type:      fieldDef.Type,
		Arguments: c.coerceArguments(fieldDef, first.Arguments, fieldPath),
	}

	named := c.schema.TypeOf(fieldDef.Type.NamedType())
	if named == nil {
		c.errs.add(KindUnknownType, fieldPath, "field %q has unknown type %q", first.Name, fieldDef.Type.NamedType())
		return nil
	}

	var childSet language.SelectionSet
	for _, f := range g.fields {
		childSet = append(childSet, f.SelectionSet...)
	}

	switch named.Kind {
	case schema.TypeKindScalar, schema.TypeKindEnum:
		if len(childSet) > 0 {
			c.errs.add(KindInvalidSelection, fieldPath, "field %q of type %q has no subfields", first.Name, named.Name)
		}
	case schema.TypeKindObject, schema.TypeKindInterface:
		if len(childSet) == 0 {
			c.errs.add(KindInvalidSelection, fieldPath, "field %q of type %q must have a selection of subfields", first.Name, named.Name)
			return nil
		}
		sel.Children = c.compileSelections(named.Name, "", childSet, fieldPath)
	default:
		c.errs.add(KindInvalidSelection, fieldPath, "cannot select field %q of kind %s", first.Name, named.Kind)
	}
	return sel
}

func (c *compilation) coerceArguments(fieldDef *schema.Field, args language.ArgumentList, path []string) map[string]any {
	coerced := map[string]any{}
	for _, arg := range args {
		def := fieldDef.Argument(arg.Name)
		if def == nil {
			c.errs.add(KindUnknownArgument, path, "unknown argument %q on field %q", arg.Name, fieldDef.Name)
			continue
		}
		val := valueFromAST(arg.Value, c.variables)
		cv, err := coerceValue(c.schema, val, def.Type, path)
		if err != nil {
			c.errs.errs = append(c.errs.errs, err)
			continue
		}
		coerced[arg.Name] = cv
	}
	for _, def := range fieldDef.Arguments {
		if _, ok := coerced[def.Name]; ok {
			continue
		}
		if def.DefaultValue != nil {
			coerced[def.Name] = def.DefaultValue
		} else if def.Type.IsNonNull() {
			c.errs.add(KindMissingRequiredArgument, path,
				"field %q requires argument %q", fieldDef.Name, def.Name)
		}
	}
	return coerced
}
