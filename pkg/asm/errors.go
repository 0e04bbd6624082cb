package asm

import (
	"errors"
	"fmt"
	"strings"

	"github.com/chazu/stackasm/pkg/bytecode"
)

// Operand validation failures, wrapped by *ValidationError.
var (
	ErrIndexOutOfRange = errors.New("operand index out of range")
	ErrWrongPoolKind   = errors.New("operand from wrong pool kind")
	ErrForeignHandle   = errors.New("operand from a pool not supplied to this compilation")
	ErrMixedChain      = errors.New("mixed operators in one expression chain")
	ErrNoPoolOperand   = errors.New("opcode does not take a pool operand")
	ErrPoolSlot        = errors.New("pool supplied in the wrong slot")
	ErrBadInstr        = errors.New("opcode cannot be used as a plain instruction")
)

// Structural failures, wrapped by *CompileError.
var (
	ErrStackUnderflow   = errors.New("stack underflow")
	ErrBranchShape      = errors.New("branch needs equal, non-zero numbers of conditions and bodies")
	ErrBranchCondition  = errors.New("branch condition must push exactly one value")
	ErrUnbalancedBranch = errors.New("branch bodies leave different stack depths")
	ErrTruncated        = errors.New("raw bytes end mid-instruction")
	ErrUnknownOpcode    = errors.New("unknown opcode")
	ErrMissingReturn    = errors.New("routine does not end with RETURN_VALUE")
	ErrParamCount       = errors.New("invalid parameter count")
	ErrUnknownNode      = errors.New("unknown node type")
	ErrJumpTarget       = errors.New("jump target is not an instruction boundary")
)

// ValidationError reports a bad operand reference. It is raised before
// any byte of the offending node is produced.
type ValidationError struct {
	Path  string          // Node path, e.g. "node 2/body 0/node 1"
	Op    bytecode.Opcode // Opcode that carried the operand
	Kind  PoolKind        // Pool kind of the offending handle
	Index int             // Operand index, -1 when not applicable
	Err   error           // One of the Err* sentinels, possibly wrapped
}

func (e *ValidationError) Error() string {
	var sb strings.Builder
	sb.WriteString("validation error")
	if e.Path != "" {
		sb.WriteString(" at ")
		sb.WriteString(e.Path)
	}
	sb.WriteString(fmt.Sprintf(" (%s", e.Op))
	if e.Index >= 0 {
		sb.WriteString(fmt.Sprintf(" %s[%d]", e.Kind, e.Index))
	}
	sb.WriteString("): ")
	sb.WriteString(e.Err.Error())
	return sb.String()
}

func (e *ValidationError) Unwrap() error { return e.Err }

// CompileError reports a structural problem: stack underflow, a malformed
// branch, undecodable raw bytes or a bad routine shape.
type CompileError struct {
	Path  string          // Node path where the problem was found
	Op    bytecode.Opcode // Offending opcode, when there is one
	Depth int             // Simulated stack depth at the failure, -1 when not applicable
	Err   error           // One of the Err* sentinels, possibly wrapped
}

func (e *CompileError) Error() string {
	var sb strings.Builder
	sb.WriteString("compile error")
	if e.Path != "" {
		sb.WriteString(" at ")
		sb.WriteString(e.Path)
	}
	if e.Depth >= 0 {
		sb.WriteString(fmt.Sprintf(" (%s, depth %d)", e.Op, e.Depth))
	}
	sb.WriteString(": ")
	sb.WriteString(e.Err.Error())
	return sb.String()
}

func (e *CompileError) Unwrap() error { return e.Err }

func compileErr(path string, err error) *CompileError {
	return &CompileError{Path: path, Depth: -1, Err: err}
}
