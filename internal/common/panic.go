// -----------------------------------------------------------------------
// Panic Recovery - Converts a panic inside one job into an ordinary error
// -----------------------------------------------------------------------

package common

import (
	"fmt"
	"runtime"
)

// PanicError carries a recovered panic value and the stack where it happened.
type PanicError struct {
	Value any
	Stack string
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("panic: %v", e.Value)
}

// NewPanicError wraps a value returned by recover(). Call it from the
// deferred function so the captured stack still includes the panic site.
func NewPanicError(recovered any) *PanicError {
	buf := make([]byte, 4096)
	n := runtime.Stack(buf, false)
	return &PanicError{Value: recovered, Stack: string(buf[:n])}
}
