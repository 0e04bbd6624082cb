package asm

import (
	"github.com/chazu/stackasm/pkg/bytecode"
)

// Node is one element of an instruction list. The set of node types is
// closed: Int, Raw, Code, Instr, Seq, *Op, Handle, *Expr and *Branch.
type Node interface {
	node()
}

// Int is a raw integer emitted as the fewest little-endian bytes that
// represent it. Zero emits nothing.
type Int uint64

// Raw is a literal byte sequence emitted unchanged.
type Raw []byte

// Code is a bare opcode written in raw mode. It is emitted with the
// width of the active policy: two bytes (opcode, zero) when narrow and a
// single byte when wide. Operand bytes, if any, are the caller's business.
type Code bytecode.Opcode

// Instr is a structured instruction whose operand is not a pool index:
// a count, a comparison code, or nothing at all. It is encoded with the
// active width like any other structured node.
type Instr struct {
	Op  bytecode.Opcode
	Arg uint32
}

// Seq groups nodes that are emitted back to back. Nested sequences are
// flattened.
type Seq []Node

// Attr appends a LOAD_ATTR of name to the sequence.
func (s Seq) Attr(name Handle) Seq {
	out := make(Seq, 0, len(s)+1)
	out = append(out, s...)
	return append(out, LoadAttr(name))
}

// Op is a validated operation: an opcode paired with exactly one pool
// handle. It is plain data until compiled.
type Op struct {
	Code    bytecode.Opcode
	Operand Handle
}

// Attr returns the operation followed by a LOAD_ATTR of name.
func (o *Op) Attr(name Handle) Seq {
	return Seq{o, LoadAttr(name)}
}

func (Int) node()   {}
func (Raw) node()   {}
func (Code) node()  {}
func (Instr) node() {}
func (Seq) node()   {}
func (*Op) node()   {}

// LoadConst pushes a constant.
func LoadConst(h Handle) *Op { return &Op{Code: bytecode.OpLoadConst, Operand: h} }

// LoadFast pushes a local variable.
func LoadFast(h Handle) *Op { return &Op{Code: bytecode.OpLoadFast, Operand: h} }

// StoreFast pops the top of stack into a local variable.
func StoreFast(h Handle) *Op { return &Op{Code: bytecode.OpStoreFast, Operand: h} }

// LoadGlobal pushes the global bound to a name.
func LoadGlobal(h Handle) *Op { return &Op{Code: bytecode.OpLoadGlobal, Operand: h} }

// StoreGlobal pops the top of stack into a global name.
func StoreGlobal(h Handle) *Op { return &Op{Code: bytecode.OpStoreGlobal, Operand: h} }

// LoadAttr replaces the top of stack with its attribute name.
func LoadAttr(h Handle) *Op { return &Op{Code: bytecode.OpLoadAttr, Operand: h} }

// Return returns the top of stack.
func Return() Instr { return Instr{Op: bytecode.OpReturnValue} }

// Pop discards the top of stack.
func Pop() Instr { return Instr{Op: bytecode.OpPopTop} }

// EndFunction loads h and returns it.
func EndFunction(h Handle) Seq { return Seq{h, Return()} }

// Call loads fn and args, then calls fn with len(args) arguments. The
// result is left on the stack.
func Call(fn Handle, args ...Operand) Seq {
	seq := make(Seq, 0, len(args)+2)
	seq = append(seq, fn)
	for _, a := range args {
		seq = append(seq, a)
	}
	return append(seq, Instr{Op: bytecode.OpCallFunction, Arg: uint32(len(args))})
}

// CallStore calls fn like Call and stores the result into the local dst.
func CallStore(fn, dst Handle, args ...Operand) Seq {
	return append(Call(fn, args...), StoreFast(dst))
}

// List builds a list from items, first item first.
func List(items ...Operand) Seq {
	seq := make(Seq, 0, len(items)+1)
	for _, it := range items {
		seq = append(seq, it)
	}
	return append(seq, Instr{Op: bytecode.OpBuildList, Arg: uint32(len(items))})
}
