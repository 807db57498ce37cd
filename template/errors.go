package template

import (
	"errors"
	"fmt"

	"github.com/RinkuLib/RinkuLib/token"
)

// ErrorKind discriminates the documented failure modes.
type ErrorKind uint8

const (
	KindSyntax ErrorKind = iota
	KindUnknownHandlerLetter
	KindUnknownVariableInMarker
	KindEmptyProjection
	KindHandlerMissingValue
	KindHandlerType
	KindHandlerEmpty
	KindMisuseOfReservedSlot
	KindUnknownKey
)

var kindLabels = map[ErrorKind]string{
	KindSyntax:                  "template syntax error",
	KindUnknownHandlerLetter:    "unknown handler letter",
	KindUnknownVariableInMarker: "unknown variable in marker",
	KindEmptyProjection:         "empty projection",
	KindHandlerMissingValue:     "handler missing value",
	KindHandlerType:             "handler type error",
	KindHandlerEmpty:            "handler empty collection",
	KindMisuseOfReservedSlot:    "misuse of reserved slot",
	KindUnknownKey:              "unknown key",
}

// CompileError is fatal to blueprint construction.
type CompileError struct {
	Kind   ErrorKind
	Offset int
	Msg    string
}

func (e *CompileError) Error() string {
	return fmt.Sprintf("%s at offset %d: %s", kindLabels[e.Kind], e.Offset, e.Msg)
}

// RenderError aborts the current render; blueprint and builder stay usable.
type RenderError struct {
	Kind ErrorKind
	Key  string
	Msg  string
	Err  error
}

func (e *RenderError) Error() string {
	if e.Key != "" {
		return fmt.Sprintf("%s: %s: %s", kindLabels[e.Kind], e.Key, e.Msg)
	}
	return fmt.Sprintf("%s: %s", kindLabels[e.Kind], e.Msg)
}

func (e *RenderError) Unwrap() error { return e.Err }

func compileErr(kind ErrorKind, offset int, format string, args ...any) error {
	return &CompileError{Kind: kind, Offset: offset, Msg: fmt.Sprintf(format, args...)}
}

func renderErr(kind ErrorKind, key, format string, args ...any) error {
	return &RenderError{Kind: kind, Key: key, Msg: fmt.Sprintf(format, args...)}
}

// asCompileError folds lexer syntax errors into the compile error surface.
func asCompileError(err error) error {
	var se *token.SyntaxError
	if errors.As(err, &se) {
		return &CompileError{Kind: KindSyntax, Offset: se.Offset, Msg: se.Msg}
	}
	return err
}

// KindOf extracts the ErrorKind from a compile or render error, reporting
// whether one was found.
func KindOf(err error) (ErrorKind, bool) {
	var ce *CompileError
	if errors.As(err, &ce) {
		return ce.Kind, true
	}
	var re *RenderError
	if errors.As(err, &re) {
		return re.Kind, true
	}
	return 0, false
}
