package main

import (
	"fmt"
	"sort"

	"github.com/chazu/stackasm/pkg/asm"
	"github.com/chazu/stackasm/pkg/bytecode"
)

const (
	callFunction = bytecode.OpCallFunction
	binaryAdd    = bytecode.OpBinaryAdd
)

// sample is a built-in routine the CLI can assemble.
type sample struct {
	about string
	build func(opts ...asm.Option) (*asm.Artifact, error)
}

var samples = map[string]sample{
	"answer": {"returns the constant 176", buildAnswer},
	"sum":    {"adds 1 + 2 + 3", buildSum},
	"sign":   {"sign(x): \"neg\", \"zero\" or \"pos\"", buildSign},
	"bits":   {"bits(n=176): n.bit_length()", buildBits},
	"clamp":  {"clamp(x, lo=0, hi=10) using the min and max builtins", buildClamp},
	"greet":  {"greet(name): \"hello, \" + name.upper()", buildGreet},
}

func sampleNames() []string {
	names := make([]string, 0, len(samples))
	for name := range samples {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func buildSample(name string, opts ...asm.Option) (*asm.Artifact, error) {
	s, ok := samples[name]
	if !ok {
		return nil, fmt.Errorf("unknown routine %q (try: stackasm list)", name)
	}
	return s.build(append([]asm.Option{asm.WithName(name)}, opts...)...)
}

func buildAnswer(opts ...asm.Option) (*asm.Artifact, error) {
	consts := asm.Consts(176)
	return asm.Compile([]asm.Node{
		asm.EndFunction(consts.At(0)),
	}, consts, nil, nil, opts...)
}

func buildSum(opts ...asm.Option) (*asm.Artifact, error) {
	consts := asm.Consts(1, 2, 3)
	locals := asm.Locals("total")
	return asm.Compile([]asm.Node{
		consts.At(0).Add(consts.At(1)).Add(consts.At(2)),
		asm.StoreFast(locals.At(0)),
		asm.EndFunction(locals.At(0)),
	}, consts, nil, locals, opts...)
}

func buildSign(opts ...asm.Option) (*asm.Artifact, error) {
	consts := asm.Consts(0, "neg", "zero", "pos")
	locals := asm.Locals("x")
	x, zero := locals.At(0), consts.At(0)
	return asm.Compile([]asm.Node{
		asm.If(
			[]asm.Node{x.Lt(zero), x.Eq(zero)},
			[][]asm.Node{{consts.At(1)}, {consts.At(2)}},
		).Else(consts.At(3)),
		asm.Return(),
	}, consts, nil, locals, append(opts, asm.WithParamCount(1))...)
}

func buildBits(opts ...asm.Option) (*asm.Artifact, error) {
	names := asm.Names("bit_length")
	locals := asm.Locals("n")
	return asm.Compile([]asm.Node{
		asm.LoadFast(locals.At(0)).Attr(names.At(0)),
		asm.Instr{Op: callFunction},
		asm.Return(),
	}, nil, names, locals, append(opts, asm.WithParamCount(1), asm.WithDefaults(176))...)
}

func buildClamp(opts ...asm.Option) (*asm.Artifact, error) {
	names := asm.Names("min", "max")
	locals := asm.Locals("x", "lo", "hi", "low")
	x, lo, hi, low := locals.At(0), locals.At(1), locals.At(2), locals.At(3)
	return asm.Compile([]asm.Node{
		asm.CallStore(names.At(1), low, x, lo),
		asm.Call(names.At(0), low, hi),
		asm.Return(),
	}, nil, names, locals, append(opts, asm.WithParamCount(3), asm.WithDefaults(0, 10))...)
}

func buildGreet(opts ...asm.Option) (*asm.Artifact, error) {
	consts := asm.Consts("hello, ")
	names := asm.Names("upper")
	locals := asm.Locals("name")
	return asm.Compile([]asm.Node{
		consts.At(0),
		asm.LoadFast(locals.At(0)).Attr(names.At(0)),
		asm.Instr{Op: callFunction},
		asm.Instr{Op: binaryAdd},
		asm.Return(),
	}, consts, names, locals, append(opts, asm.WithParamCount(1))...)
}
