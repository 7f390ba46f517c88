package compiler

import "fmt"

// ErrorKind classifies a compile-time failure of a client selection.
type ErrorKind string

const (
	KindSyntax                     ErrorKind = "Syntax"
	KindUnknownField               ErrorKind = "UnknownField"
	KindUnknownType                ErrorKind = "UnknownType"
	KindUnknownArgument            ErrorKind = "UnknownArgument"
	KindMissingRequiredArgument    ErrorKind = "MissingRequiredArgument"
	KindInvalidFragmentOnInterface ErrorKind = "InvalidFragmentOnInterface"
	KindInvalidSelection           ErrorKind = "InvalidSelection"
	KindInvalidArgumentValue       ErrorKind = "InvalidArgumentValue"
	KindUnknownOperation           ErrorKind = "UnknownOperation"
	KindInvalidVariable            ErrorKind = "InvalidVariable"
)

// Error is one compile-time failure. A single compilation may report many.
type Error struct {
	Kind    ErrorKind `json:"kind"`
	Message string    `json:"message"`
	Path    []string  `json:"path,omitempty"`
}

func (e *Error) Error() string {
	if len(e.Path) == 0 {
		return fmt.Sprintf("%s: %s", e.Kind, e.Message)
	}
	return fmt.Sprintf("%s at %s: %s", e.Kind, pathString(e.Path), e.Message)
}

func pathString(path []string) string {
	out := ""
	for i, p := range path {
		if i > 0 {
			out += "."
		}
		out += p
	}
	return out
}

type errorList struct {
	errs []*Error
}

func (l *errorList) add(kind ErrorKind, path []string, format string, args ...any) {
	l.errs = append(l.errs, &Error{
		Kind:    kind,
		Message: fmt.Sprintf(format, args...),
		Path:    append([]string(nil), path...),
	})
}
