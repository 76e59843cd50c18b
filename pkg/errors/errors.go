package errors

import (
	"errors"
	"fmt"
	"io"
)

// StageError is the interface implemented by the errors of each
// WebAssembly stage: decoding, linking and execution.
type StageError interface {
	error
	Pos() Position
	Kind() string // "Compile", "Link" or "Runtime"
	// Message returns the error message without position info.
	Message() string
	Unwrap() error
}

// --- Concrete Error Types ---

// CompileError reports a malformed or invalid module binary.
type CompileError struct {
	Position
	Msg   string
	Cause error
}

func (e *CompileError) Error() string   { return format(e) }
func (e *CompileError) Pos() Position   { return e.Position }
func (e *CompileError) Kind() string    { return "Compile" }
func (e *CompileError) Message() string { return e.Msg }
func (e *CompileError) Unwrap() error   { return e.Cause }
func (e *CompileError) CausedBy(cause error) *CompileError {
	e.Cause = cause
	return e
}

// LinkError reports an import that could not be resolved against the
// import object.
type LinkError struct {
	Position
	Module string // import module name
	Name   string // import field name
	Msg    string
	Cause  error
}

func (e *LinkError) Error() string { return format(e) }
func (e *LinkError) Pos() Position { return e.Position }
func (e *LinkError) Kind() string  { return "Link" }
func (e *LinkError) Unwrap() error { return e.Cause }
func (e *LinkError) Message() string {
	if e.Module == "" && e.Name == "" {
		return e.Msg
	}
	return fmt.Sprintf("import %s.%s: %s", e.Module, e.Name, e.Msg)
}
func (e *LinkError) CausedBy(cause error) *LinkError {
	e.Cause = cause
	return e
}

// RuntimeError reports a trap during execution.
type RuntimeError struct {
	Position
	Msg   string
	Cause error
}

func (e *RuntimeError) Error() string   { return format(e) }
func (e *RuntimeError) Pos() Position   { return e.Position }
func (e *RuntimeError) Kind() string    { return "Runtime" }
func (e *RuntimeError) Message() string { return e.Msg }
func (e *RuntimeError) Unwrap() error   { return e.Cause }
func (e *RuntimeError) CausedBy(cause error) *RuntimeError {
	e.Cause = cause
	return e
}

func format(e StageError) string {
	if pos := e.Pos().String(); pos != "" {
		return fmt.Sprintf("%s Error (%s): %s", e.Kind(), pos, e.Message())
	}
	return fmt.Sprintf("%s Error: %s", e.Kind(), e.Message())
}

// --- Helpers ---

func Compilef(pos Position, format string, args ...any) *CompileError {
	return &CompileError{Position: pos, Msg: fmt.Sprintf(format, args...)}
}

func Linkf(module, name, format string, args ...any) *LinkError {
	return &LinkError{Position: NoPosition, Module: module, Name: name, Msg: fmt.Sprintf(format, args...)}
}

func Trapf(pos Position, format string, args ...any) *RuntimeError {
	return &RuntimeError{Position: pos, Msg: fmt.Sprintf(format, args...)}
}

// AsStageError finds the first StageError in err's chain.
func AsStageError(err error) (StageError, bool) {
	var se StageError
	if errors.As(err, &se) {
		return se, true
	}
	return nil, false
}

// --- Error Reporting ---

// Display writes one line per error, prefixed with the file name the
// errors belong to.
func Display(w io.Writer, file string, errs []StageError) {
	for _, err := range errs {
		if pos := err.Pos().String(); pos != "" {
			fmt.Fprintf(w, "%s: %s Error (%s): %s\n", file, err.Kind(), pos, err.Message())
			continue
		}
		fmt.Fprintf(w, "%s: %s Error: %s\n", file, err.Kind(), err.Message())
	}
}
