package asm

import (
	"fmt"
	"strings"

	"github.com/chazu/stackasm/pkg/bytecode"
)

// Artifact is the output of a successful compilation: the code bytes plus
// everything a loader needs to run them. Callers treat it as read-only.
type Artifact struct {
	Name       string
	Width      bytecode.Width
	Code       []byte
	Consts     []any
	Names      []string
	Locals     []string
	ParamCount int
	LocalCount int
	MaxStack   int
	Defaults   []any
}

// Tables returns the operand tables for disassembly.
func (a *Artifact) Tables() bytecode.Tables {
	return bytecode.Tables{Consts: a.Consts, Names: a.Names, Locals: a.Locals}
}

// Instructions decodes the code with the artifact's width.
func (a *Artifact) Instructions() ([]bytecode.Instruction, error) {
	return bytecode.Decode(a.Code, a.Width)
}

// Disassemble returns a listing with a header describing the routine.
func (a *Artifact) Disassemble() string {
	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("; === %s ===\n", a.Name))
	sb.WriteString(fmt.Sprintf("; width: %s  params: %d  locals: %d  max stack: %d\n",
		a.Width, a.ParamCount, a.LocalCount, a.MaxStack))

	if len(a.Consts) > 0 {
		sb.WriteString("; consts:\n")
		for i, c := range a.Consts {
			sb.WriteString(fmt.Sprintf(";   [%3d] %#v\n", i, c))
		}
	}
	if len(a.Names) > 0 {
		sb.WriteString(fmt.Sprintf("; names:  %s\n", strings.Join(a.Names, ", ")))
	}
	if len(a.Locals) > 0 {
		sb.WriteString(fmt.Sprintf("; locals: %s\n", strings.Join(a.Locals, ", ")))
	}
	if len(a.Defaults) > 0 {
		sb.WriteString(fmt.Sprintf("; defaults: %v\n", a.Defaults))
	}

	sb.WriteString(bytecode.Disassemble(a.Code, a.Width, a.Tables()))
	return sb.String()
}

// String returns a one-line summary.
func (a *Artifact) String() string {
	return fmt.Sprintf("%s (%s, %d bytes, max stack %d)", a.Name, a.Width, len(a.Code), a.MaxStack)
}
