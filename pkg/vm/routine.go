// Package vm loads and runs assembled routines. It is the reference
// loader for package asm: it checks an artifact's layout, binds
// parameters and executes the code on a value stack sized by the
// artifact's recorded maximum depth.
package vm

import (
	"fmt"
	"sync"

	"github.com/tliron/commonlog"

	"github.com/chazu/stackasm/pkg/asm"
	"github.com/chazu/stackasm/pkg/bytecode"
)

var log = commonlog.GetLogger("stackasm.vm")

// Routine is a loaded artifact ready to be called.
type Routine struct {
	art     *asm.Artifact
	ins     []bytecode.Instruction
	index   map[int]int // instruction offset -> position in ins
	globals Globals

	listingOnce sync.Once
	listing     string
}

// Load checks the artifact and prepares it for execution. A nil globals
// table is replaced by DefaultGlobals.
func Load(a *asm.Artifact, globals Globals) (*Routine, error) {
	if a == nil {
		return nil, fmt.Errorf("%w: nil artifact", ErrLayout)
	}
	if globals == nil {
		globals = DefaultGlobals()
	}

	ins, err := a.Instructions()
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrLayout, a.Name, err)
	}
	r := &Routine{art: a, ins: ins, index: make(map[int]int, len(ins)), globals: globals}
	for i, in := range ins {
		r.index[in.Offset] = i
	}

	if err := r.checkLayout(); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrLayout, a.Name, err)
	}
	log.Debugf("loaded %s: %d instructions", a.Name, len(ins))
	return r, nil
}

func (r *Routine) checkLayout() error {
	a := r.art
	switch {
	case a.LocalCount != len(a.Locals):
		return fmt.Errorf("local count %d does not match %d local names", a.LocalCount, len(a.Locals))
	case a.ParamCount < 0 || a.ParamCount > a.LocalCount:
		return fmt.Errorf("%d parameters for %d locals", a.ParamCount, a.LocalCount)
	case len(a.Defaults) > a.ParamCount:
		return fmt.Errorf("%d defaults for %d parameters", len(a.Defaults), a.ParamCount)
	case a.MaxStack < 0:
		return fmt.Errorf("negative max stack %d", a.MaxStack)
	}

	for _, in := range r.ins {
		info, ok := bytecode.Lookup(in.Op)
		if !ok {
			return fmt.Errorf("offset %04X: unknown opcode 0x%02X", in.Offset, byte(in.Op))
		}
		var limit int
		switch info.Operand {
		case bytecode.OperandConst:
			limit = len(a.Consts)
		case bytecode.OperandName:
			limit = len(a.Names)
		case bytecode.OperandLocal:
			limit = a.LocalCount
		case bytecode.OperandJump:
			target := in.End() + int(in.Arg)
			if _, ok := r.index[target]; !ok && target != len(a.Code) {
				return fmt.Errorf("offset %04X: %s target %04X is not an instruction boundary", in.Offset, in.Op, target)
			}
			continue
		default:
			continue
		}
		if int(in.Arg) >= limit {
			return fmt.Errorf("offset %04X: %s operand %d outside %s table of %d",
				in.Offset, in.Op, in.Arg, info.Operand, limit)
		}
	}
	return nil
}

// Artifact returns the artifact the routine was loaded from.
func (r *Routine) Artifact() *asm.Artifact { return r.art }

// Globals returns the routine's global table.
func (r *Routine) Globals() Globals { return r.globals }

func (r *Routine) disassembly() string {
	r.listingOnce.Do(func() { r.listing = r.art.Disassemble() })
	return r.listing
}

// Call runs the routine. Missing trailing arguments take their defaults.
func (r *Routine) Call(args ...any) (any, error) {
	a := r.art
	required := a.ParamCount - len(a.Defaults)
	if len(args) < required || len(args) > a.ParamCount {
		return nil, fmt.Errorf("%s: %w: takes %d to %d, got %d", a.Name, ErrArity, required, a.ParamCount, len(args))
	}

	f := &frame{
		r:      r,
		locals: make([]any, a.LocalCount),
		bound:  make([]bool, a.LocalCount),
		stack:  make([]any, 0, a.MaxStack),
	}
	for i := 0; i < a.ParamCount; i++ {
		if i < len(args) {
			f.locals[i] = args[i]
		} else {
			f.locals[i] = a.Defaults[i-required]
		}
		f.bound[i] = true
	}

	v, err := f.run()
	if err != nil {
		if fault, ok := err.(*Fault); ok {
			log.Debugf("%s", fault.Detail())
		}
		return nil, err
	}
	return v, nil
}

// frame is one activation of a routine.
type frame struct {
	r      *Routine
	locals []any
	bound  []bool
	stack  []any
	pc     int
}

func (f *frame) push(v any) error {
	if len(f.stack) == cap(f.stack) {
		return fmt.Errorf("%w: depth %d", ErrStackOverflow, cap(f.stack))
	}
	f.stack = append(f.stack, v)
	return nil
}

func (f *frame) pop() (any, error) {
	n := len(f.stack)
	if n == 0 {
		return nil, ErrStackUnderflow
	}
	v := f.stack[n-1]
	f.stack[n-1] = nil
	f.stack = f.stack[:n-1]
	return v, nil
}

func (f *frame) popN(n int) ([]any, error) {
	if n > len(f.stack) {
		return nil, ErrStackUnderflow
	}
	base := len(f.stack) - n
	out := make([]any, n)
	copy(out, f.stack[base:])
	clear(f.stack[base:])
	f.stack = f.stack[:base]
	return out, nil
}

func (f *frame) pop2() (a, b any, err error) {
	vs, err := f.popN(2)
	if err != nil {
		return nil, nil, err
	}
	return vs[0], vs[1], nil
}

func (f *frame) jump(from bytecode.Instruction) {
	target := from.End() + int(from.Arg)
	if i, ok := f.r.index[target]; ok {
		f.pc = i
		return
	}
	f.pc = len(f.r.ins)
}

func (f *frame) run() (any, error) {
	a := f.r.art
	for {
		if f.pc >= len(f.r.ins) {
			return nil, &Fault{Routine: a.Name, Offset: len(a.Code), Err: ErrFellOff, Listing: f.r.disassembly()}
		}
		in := f.r.ins[f.pc]
		f.pc++

		ret, done, err := f.step(in)
		if err != nil {
			return nil, &Fault{Routine: a.Name, Offset: in.Offset, Op: in.Op, Err: err, Listing: f.r.disassembly()}
		}
		if done {
			return ret, nil
		}
	}
}

// step executes one instruction. done is set by RETURN_VALUE.
func (f *frame) step(in bytecode.Instruction) (ret any, done bool, err error) {
	a := f.r.art
	switch in.Op {
	case bytecode.OpNop:

	case bytecode.OpPopTop:
		_, err = f.pop()

	case bytecode.OpDupTop:
		var v any
		if v, err = f.pop(); err == nil {
			if err = f.push(v); err == nil {
				err = f.push(v)
			}
		}

	case bytecode.OpRotTwo:
		var x, y any
		if x, y, err = f.pop2(); err == nil {
			f.stack = append(f.stack, y, x)
		}

	case bytecode.OpLoadConst:
		err = f.push(a.Consts[in.Arg])

	case bytecode.OpLoadFast:
		if !f.bound[in.Arg] {
			return nil, false, fmt.Errorf("%w: %s", ErrUnboundLocal, a.Locals[in.Arg])
		}
		err = f.push(f.locals[in.Arg])

	case bytecode.OpStoreFast:
		var v any
		if v, err = f.pop(); err == nil {
			f.locals[in.Arg] = v
			f.bound[in.Arg] = true
		}

	case bytecode.OpLoadGlobal:
		name := a.Names[in.Arg]
		v, ok := f.r.globals[name]
		if !ok {
			return nil, false, fmt.Errorf("%w: %s", ErrUndefinedGlobal, name)
		}
		err = f.push(v)

	case bytecode.OpStoreGlobal:
		var v any
		if v, err = f.pop(); err == nil {
			f.r.globals[a.Names[in.Arg]] = v
		}

	case bytecode.OpLoadAttr:
		var v any
		if v, err = f.pop(); err == nil {
			if v, err = attr(v, a.Names[in.Arg]); err == nil {
				err = f.push(v)
			}
		}

	case bytecode.OpBinaryAdd, bytecode.OpBinarySubtract, bytecode.OpBinaryMultiply,
		bytecode.OpBinaryTrueDivide, bytecode.OpBinaryFloorDivide, bytecode.OpBinaryModulo:
		var x, y, v any
		if x, y, err = f.pop2(); err == nil {
			if v, err = binary(in.Op, x, y); err == nil {
				err = f.push(v)
			}
		}

	case bytecode.OpCompareOp:
		var x, y, v any
		if x, y, err = f.pop2(); err == nil {
			if v, err = compare(in.Arg, x, y); err == nil {
				err = f.push(v)
			}
		}

	case bytecode.OpUnaryNot:
		var v any
		if v, err = f.pop(); err == nil {
			err = f.push(!Truthy(v))
		}

	case bytecode.OpUnaryNegative:
		var v any
		if v, err = f.pop(); err == nil {
			if v, err = negate(v); err == nil {
				err = f.push(v)
			}
		}

	case bytecode.OpBuildList:
		var items []any
		if items, err = f.popN(int(in.Arg)); err == nil {
			err = f.push(items)
		}

	case bytecode.OpCallFunction:
		var vs []any
		if vs, err = f.popN(int(in.Arg) + 1); err == nil {
			var v any
			if v, err = call(vs[0], vs[1:]); err == nil {
				err = f.push(v)
			}
		}

	case bytecode.OpJumpForward:
		f.jump(in)

	case bytecode.OpPopJumpIfFalse, bytecode.OpPopJumpIfTrue:
		var v any
		if v, err = f.pop(); err == nil && Truthy(v) == (in.Op == bytecode.OpPopJumpIfTrue) {
			f.jump(in)
		}

	case bytecode.OpReturnValue:
		var v any
		if v, err = f.pop(); err == nil {
			return v, true, nil
		}

	default:
		err = fmt.Errorf("%w: cannot execute %s", ErrType, in.Op)
	}
	return nil, false, err
}
