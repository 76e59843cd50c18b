package errors

import "fmt"

// Position locates an error inside a WebAssembly binary or its execution.
// Negative fields are unknown.
type Position struct {
	Offset   int // 0-based byte offset in the module binary
	Function int // function index in the module's function index space
}

// NoPosition is the position of errors that cannot be attributed.
var NoPosition = Position{Offset: -1, Function: -1}

// At returns the position of byte offset off.
func At(off int) Position { return Position{Offset: off, Function: -1} }

// InFunction returns the position of function index fn.
func InFunction(fn int) Position { return Position{Offset: -1, Function: fn} }

func (p Position) String() string {
	switch {
	case p.Offset >= 0 && p.Function >= 0:
		return fmt.Sprintf("func %d @ 0x%x", p.Function, p.Offset)
	case p.Offset >= 0:
		return fmt.Sprintf("@ 0x%x", p.Offset)
	case p.Function >= 0:
		return fmt.Sprintf("func %d", p.Function)
	}
	return ""
}
