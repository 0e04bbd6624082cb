package asm

import (
	"fmt"

	"github.com/chazu/stackasm/pkg/bytecode"
)

// Operand is anything an expression can combine: a Handle or an *Expr.
type Operand interface {
	Node
	operand()
}

// BinaryOp is the operator at the root of an expression chain.
type BinaryOp uint8

const (
	OpAdd BinaryOp = iota
	OpSub
	OpMul
	OpDiv
	OpFloorDiv
	OpMod
	OpLt
	OpLe
	OpEq
	OpNe
	OpGt
	OpGe
)

var binaryOps = [...]struct {
	symbol string
	code   bytecode.Opcode
	arg    uint32
}{
	OpAdd:      {"+", bytecode.OpBinaryAdd, 0},
	OpSub:      {"-", bytecode.OpBinarySubtract, 0},
	OpMul:      {"*", bytecode.OpBinaryMultiply, 0},
	OpDiv:      {"/", bytecode.OpBinaryTrueDivide, 0},
	OpFloorDiv: {"//", bytecode.OpBinaryFloorDivide, 0},
	OpMod:      {"%", bytecode.OpBinaryModulo, 0},
	OpLt:       {"<", bytecode.OpCompareOp, bytecode.CmpLt},
	OpLe:       {"<=", bytecode.OpCompareOp, bytecode.CmpLe},
	OpEq:       {"==", bytecode.OpCompareOp, bytecode.CmpEq},
	OpNe:       {"!=", bytecode.OpCompareOp, bytecode.CmpNe},
	OpGt:       {">", bytecode.OpCompareOp, bytecode.CmpGt},
	OpGe:       {">=", bytecode.OpCompareOp, bytecode.CmpGe},
}

// String returns the operator symbol.
func (op BinaryOp) String() string {
	if int(op) < len(binaryOps) {
		return binaryOps[op].symbol
	}
	return fmt.Sprintf("BinaryOp(%d)", op)
}

// IsComparison reports whether the operator is relational.
func (op BinaryOp) IsComparison() bool {
	return op >= OpLt && op <= OpGe
}

// instr returns the instruction that applies the operator.
func (op BinaryOp) instr() Instr {
	b := binaryOps[op]
	return Instr{Op: b.code, Arg: b.arg}
}

// Expr is a binary expression tree. The root operator is the tag of the
// whole chain: a chain may only be extended with the same operator.
type Expr struct {
	op          BinaryOp
	left, right Operand
	err         error
}

func (*Expr) node()    {}
func (*Expr) operand() {}

// Op returns the root operator.
func (e *Expr) Op() BinaryOp { return e.op }

// Err returns the error recorded while building the chain, if any.
func (e *Expr) Err() error { return e.err }

// String renders the expression with explicit grouping.
func (e *Expr) String() string {
	return fmt.Sprintf("(%v %s %v)", e.left, e.op, e.right)
}

func combine(left Operand, op BinaryOp, right Operand) *Expr {
	e := &Expr{op: op, left: left, right: right}
	if l, ok := left.(*Expr); ok {
		switch {
		case l.err != nil:
			e.err = l.err
		case l.op != op:
			e.err = &ValidationError{
				Op:    binaryOps[op].code,
				Index: -1,
				Err:   fmt.Errorf("%w: cannot extend %v with %q", ErrMixedChain, l, op),
			}
		}
	}
	return e
}

// Expression builders. Each call returns a new chain rooted at the
// operator; the receiver is not modified.

func (h Handle) Add(o Operand) *Expr      { return combine(h, OpAdd, o) }
func (h Handle) Sub(o Operand) *Expr      { return combine(h, OpSub, o) }
func (h Handle) Mul(o Operand) *Expr      { return combine(h, OpMul, o) }
func (h Handle) Div(o Operand) *Expr      { return combine(h, OpDiv, o) }
func (h Handle) FloorDiv(o Operand) *Expr { return combine(h, OpFloorDiv, o) }
func (h Handle) Mod(o Operand) *Expr      { return combine(h, OpMod, o) }
func (h Handle) Lt(o Operand) *Expr       { return combine(h, OpLt, o) }
func (h Handle) Le(o Operand) *Expr       { return combine(h, OpLe, o) }
func (h Handle) Eq(o Operand) *Expr       { return combine(h, OpEq, o) }
func (h Handle) Ne(o Operand) *Expr       { return combine(h, OpNe, o) }
func (h Handle) Gt(o Operand) *Expr       { return combine(h, OpGt, o) }
func (h Handle) Ge(o Operand) *Expr       { return combine(h, OpGe, o) }

func (e *Expr) Add(o Operand) *Expr      { return combine(e, OpAdd, o) }
func (e *Expr) Sub(o Operand) *Expr      { return combine(e, OpSub, o) }
func (e *Expr) Mul(o Operand) *Expr      { return combine(e, OpMul, o) }
func (e *Expr) Div(o Operand) *Expr      { return combine(e, OpDiv, o) }
func (e *Expr) FloorDiv(o Operand) *Expr { return combine(e, OpFloorDiv, o) }
func (e *Expr) Mod(o Operand) *Expr      { return combine(e, OpMod, o) }
func (e *Expr) Lt(o Operand) *Expr       { return combine(e, OpLt, o) }
func (e *Expr) Le(o Operand) *Expr       { return combine(e, OpLe, o) }
func (e *Expr) Eq(o Operand) *Expr       { return combine(e, OpEq, o) }
func (e *Expr) Ne(o Operand) *Expr       { return combine(e, OpNe, o) }
func (e *Expr) Gt(o Operand) *Expr       { return combine(e, OpGt, o) }
func (e *Expr) Ge(o Operand) *Expr       { return combine(e, OpGe, o) }
