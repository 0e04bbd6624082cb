package vm

import (
	"errors"
	"fmt"

	"github.com/chazu/stackasm/pkg/bytecode"
)

var (
	ErrLayout          = errors.New("malformed artifact")
	ErrArity           = errors.New("wrong number of arguments")
	ErrStackOverflow   = errors.New("operand stack overflow")
	ErrStackUnderflow  = errors.New("operand stack underflow")
	ErrUnboundLocal    = errors.New("local read before assignment")
	ErrUndefinedGlobal = errors.New("undefined global")
	ErrNoAttribute     = errors.New("no such attribute")
	ErrNotCallable     = errors.New("value is not callable")
	ErrType            = errors.New("type error")
	ErrZeroDivision    = errors.New("division by zero")
	ErrFellOff         = errors.New("execution ran past the end of the code")
)

// Fault is a runtime failure inside a routine. Listing holds the
// routine's disassembly so the failing offset can be read in context.
type Fault struct {
	Routine string
	Offset  int
	Op      bytecode.Opcode
	Err     error
	Listing string
}

func (f *Fault) Error() string {
	return fmt.Sprintf("%s: fault at %04X (%s): %v", f.Routine, f.Offset, f.Op, f.Err)
}

func (f *Fault) Unwrap() error { return f.Err }

// Detail returns the error followed by the listing.
func (f *Fault) Detail() string {
	return f.Error() + "\n" + f.Listing
}
