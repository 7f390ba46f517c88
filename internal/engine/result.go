package engine

import (
	"fmt"
	"reflect"
)

// Path locates a field in the response tree. Elements are response keys
// (string) and list indices (int).
type Path []PathElement

type PathElement any

// ErrorKind classifies an execution-time failure; compile failures carry
// KindCompile so clients see a single taxonomy.
type ErrorKind string

const (
	KindCompile    ErrorKind = "COMPILE"
	KindResolution ErrorKind = "RESOLUTION"
	KindTimeout    ErrorKind = "TIMEOUT"
)

// Error is one localized failure recorded during execution.
type Error struct {
	Message string    `json:"message"`
	Path    Path      `json:"path,omitempty"`
	Kind    ErrorKind `json:"kind,omitempty"`
}

func (e Error) Error() string { return e.Message }

// Result is the outcome of one query execution: a response tree shaped
// like the selection tree, plus the ordered list of recorded errors.
// Data is nil only when a non-nullable root field failed.
type Result struct {
	Data   any     `json:"data"`
	Errors []Error `json:"errors,omitempty"`
}

func pathToString(path Path) string {
	out := ""
	for i, elem := range path {
		switch v := elem.(type) {
		case string:
			if i > 0 {
				out += "."
			}
			out += v
		case int:
			out += fmt.Sprintf("[%d]", v)
		}
	}
	return out
}

func appendPath(path Path, elem PathElement) Path {
	next := make(Path, len(path)+1)
	copy(next, path)
	next[len(path)] = elem
	return next
}

// isNullish reports nil interfaces and typed nils.
func isNullish(v any) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Interface, reflect.Ptr, reflect.Slice, reflect.Map, reflect.Func, reflect.Chan:
		return rv.IsNil()
	default:
		return false
	}
}

// setValueAtPath writes value into the response tree, materializing
// intermediate containers as needed. Writes under discarded subtrees are
// silently dropped.
func setValueAtPath(root map[string]any, path Path, value any) {
	if len(path) == 0 {
		return
	}
	if len(path) == 1 {
		if key, ok := path[0].(string); ok {
			root[key] = value
		}
		return
	}
	current := any(root)
	for _, elem := range path[:len(path)-1] {
		switch e := elem.(type) {
		case string:
			m, ok := current.(map[string]any)
			if !ok {
				return
			}
			next, exists := m[e]
			if !exists || next == nil {
				next = make(map[string]any)
				m[e] = next
			}
			current = next
		case int:
			slice, ok := current.([]any)
			if !ok {
				return
			}
			if e >= len(slice) {
				return
			}
			if slice[e] == nil {
				slice[e] = make(map[string]any)
			}
			current = slice[e]
		}
	}
	switch fe := path[len(path)-1].(type) {
	case string:
		if m, ok := current.(map[string]any); ok {
			m[fe] = value
		}
	case int:
		if slice, ok := current.([]any); ok && fe < len(slice) {
			slice[fe] = value
		}
	}
}
