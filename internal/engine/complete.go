package engine

import (
	"fmt"
	"reflect"

	"github.com/varigraph/varigraph/internal/compiler"
	"github.com/varigraph/varigraph/internal/schema"
)

// completeValue turns a raw resolver value into its response form
// according to the field's declared type.
func (st *executionState) completeValue(t *schema.TypeRef, sel *compiler.Selection, result any, path, anchor Path) any {
	if t.IsNonNull() {
		if isNullish(result) {
			if !st.hasErrorAtPath(path) {
				st.addError(KindResolution, path, "cannot return null for non-nullable field %s", pathToString(path))
			}
			return nil
		}
		return st.completeValue(t.Unwrap(), sel, result, path, anchor)
	}

	if isNullish(result) {
		return nil
	}

	if t.IsList() {
		return st.completeList(t, sel, result, path, anchor)
	}

	named := st.eng.schema.TypeOf(t.NamedType())
	if named == nil {
		st.addError(KindResolution, path, "unknown type %s", t.NamedType())
		return nil
	}

	switch named.Kind {
	case schema.TypeKindScalar, schema.TypeKindEnum:
		v, err := serializeLeaf(named, result)
		if err != nil {
			st.addError(KindResolution, path, "%v", err)
			return nil
		}
		return v
	case schema.TypeKindObject:
		return st.executeSelections(named.Name, sel.Children, result, path, anchor)
	case schema.TypeKindInterface:
		return st.completeAbstract(named, sel, result, path, anchor)
	default:
		st.addError(KindResolution, path, "cannot complete value of kind %s", named.Kind)
		return nil
	}
}

// completeList preserves provider order. A null element under a non-null
// element type nullifies the whole list value.
func (st *executionState) completeList(t *schema.TypeRef, sel *compiler.Selection, result any, path, anchor Path) any {
	var items []any
	if direct, ok := result.([]any); ok {
		items = direct
	} else {
		rv := reflect.ValueOf(result)
		if rv.Kind() != reflect.Slice {
			st.addError(KindResolution, path, "expected list value, got %T", result)
			return nil
		}
		items = make([]any, rv.Len())
		for i := 0; i < rv.Len(); i++ {
			items[i] = rv.Index(i).Interface()
		}
	}

	inner := t.Unwrap()
	completed := make([]any, len(items))
	for i, item := range items {
		elemPath := appendPath(path, i)
		elemAnchor := anchor
		if !inner.IsNonNull() {
			elemAnchor = elemPath
		}
		v := st.completeValue(inner, sel, item, elemPath, elemAnchor)
		if inner.IsNonNull() && isNullish(v) {
			// Error already recorded by the element's completion.
			return nil
		}
		completed[i] = v
	}
	return completed
}

// completeAbstract dispatches an interface-typed value to its concrete
// variant using the record's discriminant tag. Selections scoped to other
// variants are dropped during object completion; an unknown or missing
// tag is a resolution error for this node, never a silent default.
func (st *executionState) completeAbstract(iface *schema.Type, sel *compiler.Selection, result any, path, anchor Path) any {
	rec, ok := result.(map[string]any)
	if !ok {
		st.addError(KindResolution, path, "value for interface %s is not a record (%T)", iface.Name, result)
		return nil
	}
	tag, ok := rec[st.eng.discriminant].(string)
	if !ok || tag == "" {
		st.addError(KindResolution, path, "record for interface %s carries no %q discriminant", iface.Name, st.eng.discriminant)
		return nil
	}
	concrete := st.eng.schema.TypeOf(tag)
	if concrete == nil || concrete.Kind != schema.TypeKindObject || !st.eng.schema.Implements(tag, iface.Name) {
		st.addError(KindResolution, path, "discriminant %q is not a concrete variant of interface %s", tag, iface.Name)
		return nil
	}
	return st.executeSelections(concrete.Name, sel.Children, result, path, anchor)
}

// serializeLeaf coerces scalars to JSON-safe values and enforces enum
// membership: an unknown enum value from the provider fails resolution
// instead of being coerced to any default.
func serializeLeaf(t *schema.Type, v any) (any, error) {
	if t.Kind == schema.TypeKindEnum {
		name, ok := v.(string)
		if !ok || !t.HasEnumValue(name) {
			return nil, fmt.Errorf("value %v is not a member of enum %s", v, t.Name)
		}
		return name, nil
	}

	switch t.Name {
	case "Int":
		switch n := v.(type) {
		case int:
			return n, nil
		case int32:
			return int(n), nil
		case int64:
			return int(n), nil
		case float64:
			if n == float64(int(n)) {
				return int(n), nil
			}
		}
		return nil, fmt.Errorf("expected Int value, got %v (%T)", v, v)
	case "Float":
		switch n := v.(type) {
		case float64:
			return n, nil
		case float32:
			return float64(n), nil
		case int:
			return float64(n), nil
		case int64:
			return float64(n), nil
		}
		return nil, fmt.Errorf("expected Float value, got %v (%T)", v, v)
	case "Boolean":
		if b, ok := v.(bool); ok {
			return b, nil
		}
		return nil, fmt.Errorf("expected Boolean value, got %v (%T)", v, v)
	case "String", "ID":
		if s, ok := v.(string); ok {
			return s, nil
		}
		return nil, fmt.Errorf("expected String value, got %v (%T)", v, v)
	default:
		// Custom scalars pass through untouched.
		return v, nil
	}
}
