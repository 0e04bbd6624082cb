package asm

import (
	"fmt"

	"github.com/chazu/stackasm/pkg/bytecode"
)

// piece is one unit of a lowered instruction list. Lowering flattens
// sequences and expressions, checks every operand reference and merges
// adjacent raw nodes, so the validator and the emitter only ever see
// these three shapes.
type piece interface {
	at() string
}

// rawPiece is a run of raw bytes from one or more adjacent raw nodes.
type rawPiece struct {
	path string
	code []byte
}

// insPiece is a structured instruction, encoded with the active width.
type insPiece struct {
	path string
	op   bytecode.Opcode
	arg  uint32
}

// branchPiece is a lowered control construct.
type branchPiece struct {
	path   string
	conds  [][]piece
	bodies [][]piece
	els    []piece
	hasEls bool
}

func (p rawPiece) at() string     { return p.path }
func (p insPiece) at() string     { return p.path }
func (p *branchPiece) at() string { return p.path }

// compilation holds the state of one Compile call.
type compilation struct {
	width bytecode.Width
	pools [3]*Pool // indexed by PoolKind
}

// lower converts a node list into pieces. Every operand error is raised
// here, before anything is emitted.
func (c *compilation) lower(nodes []Node, prefix string) ([]piece, error) {
	var (
		out []piece
		err error
	)
	for i, n := range nodes {
		out, err = c.lowerNode(out, n, fmt.Sprintf("%snode %d", prefix, i))
		if err != nil {
			return nil, err
		}
	}
	return out, nil
}

func (c *compilation) lowerNode(out []piece, n Node, path string) ([]piece, error) {
	switch n := n.(type) {
	case Int:
		return appendRaw(out, path, intBytes(uint64(n))), nil

	case Raw:
		return appendRaw(out, path, n), nil

	case Code:
		return appendRaw(out, path, bytecode.Bare(c.width, bytecode.Opcode(n))), nil

	case Instr:
		info, ok := bytecode.Lookup(n.Op)
		if !ok {
			return nil, &CompileError{Path: path, Op: n.Op, Depth: -1,
				Err: fmt.Errorf("%w 0x%02X", ErrUnknownOpcode, byte(n.Op))}
		}
		switch info.Operand {
		case bytecode.OperandNone, bytecode.OperandCount:
		case bytecode.OperandCompare:
			if n.Arg > bytecode.CmpGe {
				return nil, &ValidationError{Path: path, Op: n.Op, Index: -1,
					Err: fmt.Errorf("%w: comparison code %d out of range", ErrBadInstr, n.Arg)}
			}
		default:
			return nil, &ValidationError{Path: path, Op: n.Op, Index: -1,
				Err: fmt.Errorf("%w: %s takes a %s operand", ErrBadInstr, n.Op, info.Operand)}
		}
		return append(out, insPiece{path: path, op: n.Op, arg: n.Arg}), nil

	case Seq:
		var err error
		for i, child := range n {
			out, err = c.lowerNode(out, child, fmt.Sprintf("%s.%d", path, i))
			if err != nil {
				return nil, err
			}
		}
		return out, nil

	case *Op:
		if err := c.checkHandle(n.Operand, n.Code, path); err != nil {
			return nil, err
		}
		return append(out, insPiece{path: path, op: n.Code, arg: uint32(n.Operand.index)}), nil

	case Handle:
		op := n.kind.loadOp()
		if err := c.checkHandle(n, op, path); err != nil {
			return nil, err
		}
		return append(out, insPiece{path: path, op: op, arg: uint32(n.index)}), nil

	case *Expr:
		if n.err != nil {
			return nil, withPath(n.err, path)
		}
		var err error
		if out, err = c.lowerNode(out, n.left, path); err != nil {
			return nil, err
		}
		if out, err = c.lowerNode(out, n.right, path); err != nil {
			return nil, err
		}
		ins := n.op.instr()
		return append(out, insPiece{path: path, op: ins.Op, arg: ins.Arg}), nil

	case *Branch:
		bp, err := c.lowerBranch(n, path)
		if err != nil {
			return nil, err
		}
		return append(out, bp), nil

	default:
		return nil, compileErr(path, fmt.Errorf("%w %T", ErrUnknownNode, n))
	}
}

func (c *compilation) lowerBranch(b *Branch, path string) (*branchPiece, error) {
	if len(b.Conds) == 0 || len(b.Conds) != len(b.Bodies) {
		return nil, compileErr(path, fmt.Errorf("%w: %d conditions, %d bodies",
			ErrBranchShape, len(b.Conds), len(b.Bodies)))
	}

	bp := &branchPiece{path: path, hasEls: b.hasEls}
	for i, cond := range b.Conds {
		lc, err := c.lower([]Node{cond}, fmt.Sprintf("%s/cond %d/", path, i))
		if err != nil {
			return nil, err
		}
		lb, err := c.lower(b.Bodies[i], fmt.Sprintf("%s/body %d/", path, i))
		if err != nil {
			return nil, err
		}
		bp.conds = append(bp.conds, lc)
		bp.bodies = append(bp.bodies, lb)
	}
	if b.hasEls {
		le, err := c.lower(b.els, path+"/else/")
		if err != nil {
			return nil, err
		}
		bp.els = le
	}
	return bp, nil
}

// checkHandle validates h as the operand of op.
func (c *compilation) checkHandle(h Handle, op bytecode.Opcode, path string) error {
	info := bytecode.GetOpcodeInfo(op)
	want, ok := poolKindFor(info.Operand)
	if !ok {
		return &ValidationError{Path: path, Op: op, Kind: h.kind, Index: h.index,
			Err: fmt.Errorf("%w: %s", ErrNoPoolOperand, op)}
	}
	if h.kind != want {
		return &ValidationError{Path: path, Op: op, Kind: h.kind, Index: h.index,
			Err: fmt.Errorf("%w: %s expects a %s handle", ErrWrongPoolKind, op, want)}
	}
	pool := c.pools[want]
	if h.pool != pool {
		return &ValidationError{Path: path, Op: op, Kind: h.kind, Index: h.index, Err: ErrForeignHandle}
	}
	if h.index < 0 || h.index >= pool.Len() {
		return &ValidationError{Path: path, Op: op, Kind: h.kind, Index: h.index,
			Err: fmt.Errorf("%w: %s pool has %d entries", ErrIndexOutOfRange, want, pool.Len())}
	}
	return nil
}

// appendRaw adds raw bytes, merging with a preceding raw run so that an
// instruction may be spelled across several raw nodes.
func appendRaw(out []piece, path string, b []byte) []piece {
	if len(b) == 0 {
		return out
	}
	if n := len(out); n > 0 {
		if last, ok := out[n-1].(rawPiece); ok {
			merged := make([]byte, 0, len(last.code)+len(b))
			merged = append(merged, last.code...)
			out[n-1] = rawPiece{path: last.path, code: append(merged, b...)}
			return out
		}
	}
	return append(out, rawPiece{path: path, code: append([]byte(nil), b...)})
}

// intBytes returns v as the fewest little-endian bytes; zero is empty.
func intBytes(v uint64) []byte {
	var b []byte
	for v != 0 {
		b = append(b, byte(v))
		v >>= 8
	}
	return b
}

// withPath returns a copy of a recorded expression error located at path.
// Expression trees may be shared between compilations, so the stored
// error is never modified.
func withPath(err error, path string) error {
	if ve, ok := err.(*ValidationError); ok {
		cp := *ve
		cp.Path = path
		return &cp
	}
	return err
}
