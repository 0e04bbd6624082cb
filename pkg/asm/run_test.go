package asm_test

import (
	"testing"

	"github.com/chazu/stackasm/pkg/asm"
	"github.com/chazu/stackasm/pkg/bytecode"
	"github.com/chazu/stackasm/pkg/vm"
)

func run(t *testing.T, code []asm.Node, consts, names, locals *asm.Pool, opts []asm.Option, args ...any) any {
	t.Helper()
	a, err := asm.Compile(code, consts, names, locals, opts...)
	if err != nil {
		t.Fatalf("Compile failed: %v", err)
	}
	r, err := vm.Load(a, nil)
	if err != nil {
		t.Fatalf("Load failed: %v\n%s", err, a.Disassemble())
	}
	v, err := r.Call(args...)
	if err != nil {
		t.Fatalf("Call failed: %v\n%s", err, a.Disassemble())
	}
	return v
}

func TestReturnConstant(t *testing.T) {
	for _, width := range []bytecode.Width{bytecode.WidthNarrow, bytecode.WidthWide} {
		for _, v := range []any{nil, 176, "text", 2.5} {
			consts := asm.Consts(v)
			got := run(t, []asm.Node{asm.LoadConst(consts.At(0)), asm.Return()}, consts, nil, nil,
				[]asm.Option{asm.WithWidth(width)})
			if !vm.Equal(got, v) {
				t.Errorf("%s: returned %#v, want %#v", width, got, v)
			}
		}
	}
}

func TestArithmeticChains(t *testing.T) {
	consts := asm.Consts(1, 2, 3, 6)
	one, two, three, six := consts.At(0), consts.At(1), consts.At(2), consts.At(3)

	tests := []struct {
		name string
		expr asm.Node
		want any
	}{
		{"1+2+3", one.Add(two).Add(three), int64(6)},
		{"3-2-1", three.Sub(two).Sub(one), int64(0)},
		{"3*2*2", three.Mul(two).Mul(two), int64(12)},
		{"6/2", six.Div(two), 3.0},
		{"3//2", three.FloorDiv(two), int64(1)},
		{"3%2", three.Mod(two), int64(1)},
		{"1-(2-3)", one.Sub(two.Sub(three)), int64(2)},
		{"1<2", one.Lt(two), true},
		{"3>=6", three.Ge(six), false},
		{"2==2", two.Eq(two), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := run(t, []asm.Node{tt.expr, asm.Return()}, consts, nil, nil, nil)
			if got != tt.want {
				t.Errorf("got %#v, want %#v", got, tt.want)
			}
		})
	}
}

func TestStoreLoadRoundTrip(t *testing.T) {
	consts := asm.Consts("kept")
	locals := asm.Locals("x")
	x := locals.At(0)

	got := run(t, []asm.Node{
		asm.LoadConst(consts.At(0)),
		asm.StoreFast(x),
		asm.EndFunction(x),
	}, consts, nil, locals, nil)
	if got != "kept" {
		t.Errorf("got %#v, want \"kept\"", got)
	}
}

func TestConditional(t *testing.T) {
	consts := asm.Consts(1, 2)
	got := run(t, []asm.Node{
		asm.If([]asm.Node{consts.At(0).Lt(consts.At(1))}, [][]asm.Node{{asm.LoadConst(consts.At(1))}}),
		asm.Return(),
	}, consts, nil, nil, nil)
	if got != 2 {
		t.Errorf("got %#v, want 2", got)
	}
}

func TestElifElse(t *testing.T) {
	consts := asm.Consts(0, "neg", "zero", "pos")
	locals := asm.Locals("x")
	x, zero := locals.At(0), consts.At(0)
	code := []asm.Node{
		asm.If(
			[]asm.Node{x.Lt(zero), x.Eq(zero)},
			[][]asm.Node{{consts.At(1)}, {consts.At(2)}},
		).Else(consts.At(3)),
		asm.Return(),
	}

	for _, width := range []bytecode.Width{bytecode.WidthNarrow, bytecode.WidthWide} {
		a, err := asm.Compile(code, consts, nil, locals, asm.WithParamCount(1), asm.WithWidth(width))
		if err != nil {
			t.Fatalf("Compile failed: %v", err)
		}
		r, err := vm.Load(a, nil)
		if err != nil {
			t.Fatalf("Load failed: %v", err)
		}
		for arg, want := range map[int]string{-5: "neg", 0: "zero", 7: "pos"} {
			got, err := r.Call(arg)
			if err != nil || got != want {
				t.Errorf("%s: f(%d) = %#v, %v; want %q", width, arg, got, err, want)
			}
		}
	}
}

func TestLongBranch(t *testing.T) {
	consts := asm.Consts(false, "skipped", "reached")
	body := []asm.Node{}
	for i := 0; i < 200; i++ {
		body = append(body, asm.Instr{Op: bytecode.OpNop})
	}
	body = append(body, consts.At(1))

	got := run(t, []asm.Node{
		asm.If([]asm.Node{consts.At(0)}, [][]asm.Node{body}).Else(consts.At(2)),
		asm.Return(),
	}, consts, nil, nil, nil)
	if got != "reached" {
		t.Errorf("got %#v, want \"reached\"", got)
	}
}

func TestRawWideInstruction(t *testing.T) {
	consts := asm.Consts(42)
	got := run(t, []asm.Node{
		asm.Raw{byte(bytecode.OpLoadConst), 0, 0},
		asm.Code(bytecode.OpReturnValue),
	}, consts, nil, nil, []asm.Option{asm.WithWidth(bytecode.WidthWide)})
	if got != 42 {
		t.Errorf("got %#v, want 42", got)
	}
}

func TestAttributeCall(t *testing.T) {
	consts := asm.Consts(176)
	names := asm.Names("bit_length")

	got := run(t, []asm.Node{
		asm.LoadConst(consts.At(0)).Attr(names.At(0)),
		asm.Instr{Op: bytecode.OpCallFunction},
		asm.Return(),
	}, consts, names, nil, nil)
	if got != int64(8) {
		t.Errorf("(176).bit_length() = %#v, want 8", got)
	}
}

func TestCallWithCapture(t *testing.T) {
	consts := asm.Consts(3, 9, 4)
	names := asm.Names("max", "len")
	locals := asm.Locals("m", "n")

	got := run(t, []asm.Node{
		asm.CallStore(names.At(0), locals.At(0), consts.At(0), consts.At(1), consts.At(2)),
		asm.List(locals.At(0), consts.At(2)),
		asm.StoreFast(locals.At(1)),
		asm.Call(names.At(1), locals.At(1)),
		asm.LoadFast(locals.At(0)),
		asm.Instr{Op: bytecode.OpBinaryAdd},
		asm.Return(),
	}, consts, names, locals, nil)
	// max(3, 9, 4) + len([9, 4])
	if got != int64(11) {
		t.Errorf("got %#v, want 11", got)
	}
}

func TestBuildList(t *testing.T) {
	consts := asm.Consts(1, "two")
	got := run(t, []asm.Node{asm.List(consts.At(0), consts.At(1)), asm.Return()}, consts, nil, nil, nil)
	if !vm.Equal(got, []any{1, "two"}) {
		t.Errorf("got %#v", got)
	}
}

func TestParametersAndDefaults(t *testing.T) {
	consts := asm.Consts()
	locals := asm.Locals("a", "b")
	a, err := asm.Compile([]asm.Node{locals.At(0).Add(locals.At(1)), asm.Return()}, consts, nil, locals,
		asm.WithParamCount(2), asm.WithDefaults(10))
	if err != nil {
		t.Fatalf("Compile failed: %v", err)
	}
	r, err := vm.Load(a, nil)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if v, err := r.Call(1); err != nil || v != int64(11) {
		t.Errorf("f(1) = %#v, %v; want 11", v, err)
	}
	if v, err := r.Call(1, 2); err != nil || v != int64(3) {
		t.Errorf("f(1, 2) = %#v, %v; want 3", v, err)
	}
	if _, err := r.Call(); err == nil {
		t.Error("f() should fail: a has no default")
	}
}

func TestGlobalStore(t *testing.T) {
	consts := asm.Consts("v")
	names := asm.Names("g")
	a, err := asm.Compile([]asm.Node{
		asm.LoadConst(consts.At(0)),
		asm.StoreGlobal(names.At(0)),
		asm.LoadGlobal(names.At(0)),
		asm.Return(),
	}, consts, names, nil)
	if err != nil {
		t.Fatalf("Compile failed: %v", err)
	}

	globals := vm.Globals{}
	r, err := vm.Load(a, globals)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if v, err := r.Call(); err != nil || v != "v" {
		t.Errorf("Call = %#v, %v", v, err)
	}
	if globals["g"] != "v" {
		t.Errorf("globals[g] = %#v", globals["g"])
	}
}
