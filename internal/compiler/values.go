package compiler

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/varigraph/varigraph/internal/language"
	"github.com/varigraph/varigraph/internal/schema"
)

// coerceVariables checks the operation's variable definitions against the
// provided values and returns the coerced variable map. Failures are
// compile errors: no resolver runs when variables are unusable.
func coerceVariables(
	s *schema.Schema,
	op *language.OperationDefinition,
	values map[string]any,
	errs *errorList,
) map[string]any {
	if values == nil {
		values = map[string]any{}
	}
	coerced := map[string]any{}
	for _, def := range op.VariableDefinitions {
		name := def.Variable
		t := typeRefFromAST(def.Type)
		val, ok := values[name]
		if !ok {
			val, ok = values[strings.TrimPrefix(name, "$")]
		}
		if !ok {
			if def.DefaultValue != nil {
				val = astValueToGo(def.DefaultValue)
			} else if t.IsNonNull() {
				errs.add(KindInvalidVariable, nil, "variable $%s of required type %s was not provided", name, t.String())
				continue
			} else {
				continue
			}
		}
		if val == nil && t.IsNonNull() {
			errs.add(KindInvalidVariable, nil, "variable $%s of type %s cannot be null", name, t.String())
			continue
		}
		cv, cerr := coerceValue(s, val, t, nil)
		if cerr != nil {
			errs.add(KindInvalidVariable, nil, "variable $%s: %s", name, cerr.Message)
			continue
		}
		coerced[name] = cv
	}
	return coerced
}

// valueFromAST converts an AST value to a Go value, substituting variables.
func valueFromAST(v *language.Value, variables map[string]any) any {
	if v == nil {
		return nil
	}
	if v.Kind == language.Variable {
		if val, ok := variables[v.Raw]; ok {
			return val
		}
		if val, ok := variables[strings.TrimPrefix(v.Raw, "$")]; ok {
			return val
		}
		return nil
	}
	return astValueToGo(v)
}

func astValueToGo(v *language.Value) any {
	if v == nil {
		return nil
	}
	switch v.Kind {
	case language.IntValue:
		n, _ := strconv.Atoi(v.Raw)
		return n
	case language.FloatValue:
		f, _ := strconv.ParseFloat(v.Raw, 64)
		return f
	case language.StringValue, language.BlockValue, language.EnumValue:
		return v.Raw
	case language.BooleanValue:
		return v.Raw == "true"
	case language.NullValue:
		return nil
	case language.ListValue:
		out := make([]any, len(v.Children))
		for i, c := range v.Children {
			out[i] = astValueToGo(c.Value)
		}
		return out
	case language.ObjectValue:
		m := map[string]any{}
		for _, f := range v.Children {
			m[f.Name] = astValueToGo(f.Value)
		}
		return m
	default:
		return nil
	}
}

// coerceValue coerces a Go value against a declared input type, descending
// into input objects so that required nested keys (e.g. by_id.genome_id)
// are enforced at compile time.
func coerceValue(s *schema.Schema, value any, target *schema.TypeRef, path []string) (any, *Error) {
	if target.IsNonNull() {
		if value == nil {
			return nil, &Error{Kind: KindInvalidArgumentValue, Path: path,
				Message: "cannot provide null for non-null type " + target.String()}
		}
		return coerceValue(s, value, target.Unwrap(), path)
	}
	if value == nil {
		return nil, nil
	}
	if target.IsList() {
		inner := target.Unwrap()
		items, ok := value.([]any)
		if !ok {
			items = []any{value}
		}
		out := make([]any, len(items))
		for i, item := range items {
			cv, err := coerceValue(s, item, inner, path)
			if err != nil {
				return nil, err
			}
			out[i] = cv
		}
		return out, nil
	}

	named := target.NamedType()
	switch named {
	case "Int":
		return coerceInt(value, path)
	case "Float":
		return coerceFloat(value, path)
	case "String", "ID":
		return coerceString(value), nil
	case "Boolean":
		if b, ok := value.(bool); ok {
			return b, nil
		}
		return nil, &Error{Kind: KindInvalidArgumentValue, Path: path,
			Message: "expected a Boolean value"}
	}

	t := s.TypeOf(named)
	if t == nil {
		return nil, &Error{Kind: KindUnknownType, Path: path, Message: "unknown input type " + named}
	}
	switch t.Kind {
	case schema.TypeKindEnum:
		name, ok := value.(string)
		if !ok || !t.HasEnumValue(name) {
			return nil, &Error{Kind: KindInvalidArgumentValue, Path: path,
				Message: "invalid value for enum " + named}
		}
		return name, nil
	case schema.TypeKindInputObject:
		return coerceInputObject(s, t, value, path)
	default:
		return value, nil
	}
}

func coerceInputObject(s *schema.Schema, t *schema.Type, value any, path []string) (any, *Error) {
	m, ok := value.(map[string]any)
	if !ok {
		return nil, &Error{Kind: KindInvalidArgumentValue, Path: path,
			Message: "expected an input object for " + t.Name}
	}
	out := map[string]any{}
	for key, raw := range m {
		var def *schema.InputValue
		for _, f := range t.InputFields {
			if f.Name == key {
				def = f
				break
			}
		}
		if def == nil {
			return nil, &Error{Kind: KindUnknownArgument, Path: path,
				Message: "unknown field " + key + " on input " + t.Name}
		}
		cv, err := coerceValue(s, raw, def.Type, path)
		if err != nil {
			return nil, err
		}
		out[key] = cv
	}
	for _, f := range t.InputFields {
		if _, ok := out[f.Name]; ok {
			continue
		}
		if f.DefaultValue != nil {
			out[f.Name] = f.DefaultValue
		} else if f.Type.IsNonNull() {
			return nil, &Error{Kind: KindMissingRequiredArgument, Path: path,
				Message: "input " + t.Name + " requires field " + f.Name}
		}
	}
	return out, nil
}

func coerceInt(value any, path []string) (any, *Error) {
	switch v := value.(type) {
	case int:
		return v, nil
	case int32:
		return int(v), nil
	case int64:
		return int(v), nil
	case float64:
		return int(v), nil
	case string:
		if n, err := strconv.Atoi(v); err == nil {
			return n, nil
		}
	}
	return nil, &Error{Kind: KindInvalidArgumentValue, Path: path, Message: "expected an Int value"}
}

func coerceFloat(value any, path []string) (any, *Error) {
	switch v := value.(type) {
	case float64:
		return v, nil
	case float32:
		return float64(v), nil
	case int:
		return float64(v), nil
	case string:
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f, nil
		}
	}
	return nil, &Error{Kind: KindInvalidArgumentValue, Path: path, Message: "expected a Float value"}
}

func coerceString(value any) string {
	if s, ok := value.(string); ok {
		return s
	}
	return fmt.Sprintf("%v", value)
}

func typeRefFromAST(t *language.Type) *schema.TypeRef {
	if t == nil {
		return nil
	}
	if t.NonNull {
		return schema.NonNull(typeRefFromAST(&language.Type{NamedType: t.NamedType, Elem: t.Elem}))
	}
	if t.NamedType != "" {
		return schema.Named(t.NamedType)
	}
	return schema.List(typeRefFromAST(t.Elem))
}
