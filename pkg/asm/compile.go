package asm

import (
	"fmt"

	"github.com/tliron/commonlog"

	"github.com/chazu/stackasm/pkg/bytecode"
)

var log = commonlog.GetLogger("stackasm.asm")

// Warning is a lint finding. It never stops a compilation.
type Warning struct {
	Offset  int
	Op      bytecode.Opcode
	Message string
}

func (w Warning) String() string {
	return fmt.Sprintf("%04X %s: %s", w.Offset, w.Op, w.Message)
}

type options struct {
	name          string
	width         bytecode.Width
	paramCount    int
	defaults      []any
	warn          func(Warning)
	missingReturn bool
}

// Option configures a compilation.
type Option func(*options)

// WithWidth selects the instruction encoding.
func WithWidth(w bytecode.Width) Option {
	return func(o *options) { o.width = w }
}

// WithName names the routine in listings and faults.
func WithName(name string) Option {
	return func(o *options) { o.name = name }
}

// WithParamCount declares how many leading locals are parameters.
func WithParamCount(n int) Option {
	return func(o *options) { o.paramCount = n }
}

// WithDefaults supplies values for the trailing parameters.
func WithDefaults(values ...any) Option {
	return func(o *options) { o.defaults = append([]any(nil), values...) }
}

// WithWarnings receives lint warnings as they are found.
func WithWarnings(fn func(Warning)) Option {
	return func(o *options) { o.warn = fn }
}

// AllowMissingReturn accepts code that does not end with RETURN_VALUE,
// for fragments that are spliced into a larger routine.
func AllowMissingReturn() Option {
	return func(o *options) { o.missingReturn = true }
}

// Compile validates code against the supplied pools and assembles it.
// Any pool may be nil, meaning empty. Validation runs to completion before
// any byte is emitted, so a failed compilation returns a single
// *ValidationError or *CompileError and no artifact.
//
// Compile does not modify its inputs and may run concurrently with other
// compilations.
func Compile(code []Node, consts, names, locals *Pool, opts ...Option) (*Artifact, error) {
	o := options{name: "<assembled>", width: bytecode.DefaultWidth}
	for _, opt := range opts {
		opt(&o)
	}

	c := &compilation{width: o.width, pools: [3]*Pool{consts, names, locals}}
	if err := c.checkPools(); err != nil {
		return nil, err
	}
	if o.paramCount < 0 || o.paramCount > locals.Len() {
		return nil, compileErr("", fmt.Errorf("%w: %d parameters, %d locals",
			ErrParamCount, o.paramCount, locals.Len()))
	}
	if len(o.defaults) > o.paramCount {
		return nil, compileErr("", fmt.Errorf("%w: %d defaults for %d parameters",
			ErrParamCount, len(o.defaults), o.paramCount))
	}

	pieces, err := c.lower(code, "")
	if err != nil {
		return nil, err
	}
	log.Debugf("%s: lowered %d nodes into %d pieces", o.name, len(code), len(pieces))

	sc := &stackCheck{width: o.width, pools: c.pools}
	if _, err := sc.run(pieces, 0); err != nil {
		return nil, err
	}

	out := emitter{width: o.width}.emit(nil, pieces)
	ins, err := bytecode.Decode(out, o.width)
	if err != nil {
		return nil, compileErr("", rawDecodeErr(err))
	}
	if err := checkJumps(ins, len(out)); err != nil {
		return nil, err
	}
	if !o.missingReturn && (len(ins) == 0 || ins[len(ins)-1].Op != bytecode.OpReturnValue) {
		return nil, compileErr("", ErrMissingReturn)
	}

	a := &Artifact{
		Name:       o.name,
		Width:      o.width,
		Code:       out,
		Consts:     consts.Values(),
		Names:      names.Strings(),
		Locals:     locals.Strings(),
		ParamCount: o.paramCount,
		LocalCount: locals.Len(),
		MaxStack:   sc.max,
		Defaults:   o.defaults,
	}

	for _, w := range lint(ins, a.Locals) {
		log.Warningf("%s: %s", a.Name, w)
		if o.warn != nil {
			o.warn(w)
		}
	}

	if log.AllowLevel(commonlog.Debug) {
		log.Debugf("assembled %s\n%s", a, a.Disassemble())
	}
	return a, nil
}

// checkPools rejects a pool passed in a slot for another kind.
func (c *compilation) checkPools() error {
	for slot, p := range c.pools {
		want := PoolKind(slot)
		if p != nil && p.kind != want {
			return &ValidationError{Path: want.String() + " pool", Kind: p.kind, Index: -1,
				Err: fmt.Errorf("%w: %s pool passed as %s pool", ErrPoolSlot, p.kind, want)}
		}
	}
	return nil
}

// checkJumps rejects a jump that lands inside an instruction or past the
// end of the code. Only hand-written raw jumps can do that.
func checkJumps(ins []bytecode.Instruction, size int) error {
	starts := make(map[int]bool, len(ins))
	for _, in := range ins {
		starts[in.Offset] = true
	}
	for _, in := range ins {
		if !in.Op.IsJump() {
			continue
		}
		if target := in.End() + int(in.Arg); !starts[target] && target != size {
			return &CompileError{Path: fmt.Sprintf("offset %04X", in.Offset), Op: in.Op, Depth: -1,
				Err: fmt.Errorf("%w: %04X", ErrJumpTarget, target)}
		}
	}
	return nil
}

// lint looks for stores that are immediately read back.
func lint(ins []bytecode.Instruction, locals []string) []Warning {
	var out []Warning
	for i := 1; i < len(ins); i++ {
		prev, cur := ins[i-1], ins[i]
		if prev.Op != bytecode.OpStoreFast || cur.Op != bytecode.OpLoadFast || prev.Arg != cur.Arg {
			continue
		}
		name := fmt.Sprint(cur.Arg)
		if int(cur.Arg) < len(locals) {
			name = locals[cur.Arg]
		}
		out = append(out, Warning{
			Offset:  cur.Offset,
			Op:      cur.Op,
			Message: fmt.Sprintf("%s is stored and immediately reloaded; DUP_TOP before the store avoids the reload", name),
		})
	}
	return out
}
