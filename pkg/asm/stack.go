package asm

import (
	"errors"
	"fmt"

	"github.com/chazu/stackasm/pkg/bytecode"
)

// stackCheck simulates the operand stack over lowered pieces. Raw runs are
// decoded with the active width so their effect is counted like any other
// instruction, and their table operands are checked against the pools.
type stackCheck struct {
	width bytecode.Width
	pools [3]*Pool
	max   int
}

// run walks pieces starting at depth and returns the depth they leave.
func (s *stackCheck) run(pieces []piece, depth int) (int, error) {
	var err error
	for _, p := range pieces {
		switch p := p.(type) {
		case rawPiece:
			ins, derr := bytecode.Decode(p.code, s.width)
			if derr != nil {
				return 0, compileErr(p.path, rawDecodeErr(derr))
			}
			for _, in := range ins {
				path := fmt.Sprintf("%s+%d", p.path, in.Offset)
				if err := s.checkRawOperand(path, in); err != nil {
					return 0, err
				}
				if depth, err = s.step(path, in.Op, in.Arg, depth); err != nil {
					return 0, err
				}
			}

		case insPiece:
			if depth, err = s.step(p.path, p.op, p.arg, depth); err != nil {
				return 0, err
			}

		case *branchPiece:
			if depth, err = s.branch(p, depth); err != nil {
				return 0, err
			}
		}
	}
	return depth, nil
}

// branch checks a control construct. Each condition must push exactly one
// value, which the conditional jump consumes. Every body starts at the
// entry depth and all of them, else included, must finish at the same
// depth; that depth is where execution continues. A construct without an
// else is not checked against the fall-through path.
func (s *stackCheck) branch(b *branchPiece, depth int) (int, error) {
	after := -1
	settle := func(path string, d int) error {
		if after < 0 {
			after = d
			return nil
		}
		if d != after {
			return &CompileError{Path: path, Depth: d,
				Err: fmt.Errorf("%w: %d and %d", ErrUnbalancedBranch, after, d)}
		}
		return nil
	}

	for i := range b.conds {
		d, err := s.run(b.conds[i], depth)
		if err != nil {
			return 0, err
		}
		if d != depth+1 {
			return 0, &CompileError{Path: fmt.Sprintf("%s/cond %d", b.path, i), Depth: d,
				Err: fmt.Errorf("%w: net effect %+d", ErrBranchCondition, d-depth)}
		}
		if d, err = s.run(b.bodies[i], depth); err != nil {
			return 0, err
		}
		if err := settle(fmt.Sprintf("%s/body %d", b.path, i), d); err != nil {
			return 0, err
		}
	}
	if b.hasEls {
		d, err := s.run(b.els, depth)
		if err != nil {
			return 0, err
		}
		if err := settle(b.path+"/else", d); err != nil {
			return 0, err
		}
	}
	return after, nil
}

// checkRawOperand rejects a raw instruction whose operand indexes past
// the end of the table it refers to, or names no comparison.
func (s *stackCheck) checkRawOperand(path string, in bytecode.Instruction) error {
	info, ok := bytecode.Lookup(in.Op)
	if ok && info.Operand == bytecode.OperandCompare && in.Arg > bytecode.CmpGe {
		return &ValidationError{Path: path, Op: in.Op, Index: -1,
			Err: fmt.Errorf("%w: comparison code %d out of range", ErrBadInstr, in.Arg)}
	}
	if !ok || !info.Operand.IsPool() {
		return nil
	}
	kind, _ := poolKindFor(info.Operand)
	if n := s.pools[kind].Len(); int64(in.Arg) >= int64(n) {
		return &ValidationError{Path: path, Op: in.Op, Kind: kind, Index: int(in.Arg),
			Err: fmt.Errorf("%w: %s pool has %d entries", ErrIndexOutOfRange, kind, n)}
	}
	return nil
}

func (s *stackCheck) step(path string, op bytecode.Opcode, arg uint32, depth int) (int, error) {
	pop, push, err := bytecode.StackEffect(op, arg)
	if err != nil {
		return 0, &CompileError{Path: path, Op: op, Depth: depth,
			Err: fmt.Errorf("%w 0x%02X", ErrUnknownOpcode, byte(op))}
	}
	if depth < pop {
		return 0, &CompileError{Path: path, Op: op, Depth: depth,
			Err: fmt.Errorf("%w: %s needs %d values", ErrStackUnderflow, op, pop)}
	}
	depth += push - pop
	if depth > s.max {
		s.max = depth
	}
	return depth, nil
}

func rawDecodeErr(err error) error {
	switch {
	case errors.Is(err, bytecode.ErrTruncated):
		return fmt.Errorf("%w (%v)", ErrTruncated, err)
	case errors.Is(err, bytecode.ErrUnknownOpcode):
		return fmt.Errorf("%w (%v)", ErrUnknownOpcode, err)
	}
	return err
}
