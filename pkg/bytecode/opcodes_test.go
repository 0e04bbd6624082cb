package bytecode

import (
	"strings"
	"testing"
)

func TestAllOpcodesHaveMetadata(t *testing.T) {
	// Ensure every defined opcode has metadata
	for _, op := range AllOpcodes() {
		info := GetOpcodeInfo(op)
		if info.Name == "" || strings.HasPrefix(info.Name, "UNKNOWN") {
			t.Errorf("Opcode 0x%02X has no metadata", byte(op))
		}
	}
}

func TestOpcodeCount(t *testing.T) {
	if got := OpcodeCount(); got != 26 {
		t.Errorf("Expected 26 opcodes, got %d", got)
	}
}

func TestOpcodeString(t *testing.T) {
	tests := []struct {
		op   Opcode
		want string
	}{
		{OpNop, "NOP"},
		{OpPopTop, "POP_TOP"},
		{OpLoadConst, "LOAD_CONST"},
		{OpLoadFast, "LOAD_FAST"},
		{OpStoreFast, "STORE_FAST"},
		{OpLoadAttr, "LOAD_ATTR"},
		{OpBinaryAdd, "BINARY_ADD"},
		{OpBinaryFloorDivide, "BINARY_FLOOR_DIVIDE"},
		{OpCompareOp, "COMPARE_OP"},
		{OpCallFunction, "CALL_FUNCTION"},
		{OpPopJumpIfFalse, "POP_JUMP_IF_FALSE"},
		{OpReturnValue, "RETURN_VALUE"},
	}

	for _, tt := range tests {
		got := tt.op.String()
		if got != tt.want {
			t.Errorf("Opcode(0x%02X).String() = %q, want %q", byte(tt.op), got, tt.want)
		}
	}
}

func TestUnknownOpcodeString(t *testing.T) {
	op := Opcode(0xEE) // Not defined
	got := op.String()
	if !strings.HasPrefix(got, "UNKNOWN") {
		t.Errorf("Unknown opcode should return UNKNOWN, got %q", got)
	}
	if _, ok := Lookup(op); ok {
		t.Error("Lookup(0xEE) reported a defined opcode")
	}
}

func TestOperandKinds(t *testing.T) {
	tests := []struct {
		op   Opcode
		want OperandKind
	}{
		{OpNop, OperandNone},
		{OpLoadConst, OperandConst},
		{OpLoadFast, OperandLocal},
		{OpStoreFast, OperandLocal},
		{OpLoadGlobal, OperandName},
		{OpLoadAttr, OperandName},
		{OpCompareOp, OperandCompare},
		{OpBuildList, OperandCount},
		{OpCallFunction, OperandCount},
		{OpJumpForward, OperandJump},
		{OpExtendedArg, OperandExtended},
	}

	for _, tt := range tests {
		got := GetOpcodeInfo(tt.op).Operand
		if got != tt.want {
			t.Errorf("%s operand = %s, want %s", tt.op, got, tt.want)
		}
	}
}

func TestOpcodeIsJump(t *testing.T) {
	jumps := []Opcode{OpJumpForward, OpPopJumpIfFalse, OpPopJumpIfTrue}
	for _, op := range jumps {
		if !op.IsJump() {
			t.Errorf("%s.IsJump() = false, want true", op)
		}
	}

	nonJumps := []Opcode{OpNop, OpBinaryAdd, OpCallFunction, OpReturnValue}
	for _, op := range nonJumps {
		if op.IsJump() {
			t.Errorf("%s.IsJump() = true, want false", op)
		}
	}
}

func TestStackEffects(t *testing.T) {
	tests := []struct {
		op   Opcode
		arg  uint32
		pop  int
		push int
	}{
		{OpNop, 0, 0, 0},
		{OpPopTop, 0, 1, 0},
		{OpDupTop, 0, 1, 2},
		{OpRotTwo, 0, 2, 2},
		{OpLoadConst, 7, 0, 1},
		{OpStoreFast, 0, 1, 0},
		{OpLoadAttr, 0, 1, 1},
		{OpBinaryAdd, 0, 2, 1},
		{OpCompareOp, CmpLt, 2, 1},
		{OpBuildList, 3, 3, 1},
		{OpBuildList, 0, 0, 1},
		{OpCallFunction, 0, 1, 1},
		{OpCallFunction, 2, 3, 1},
		{OpPopJumpIfFalse, 10, 1, 0},
		{OpReturnValue, 0, 1, 0},
	}

	for _, tt := range tests {
		pop, push, err := StackEffect(tt.op, tt.arg)
		if err != nil {
			t.Fatalf("StackEffect(%s, %d): %v", tt.op, tt.arg, err)
		}
		if pop != tt.pop || push != tt.push {
			t.Errorf("StackEffect(%s, %d) = (%d, %d), want (%d, %d)", tt.op, tt.arg, pop, push, tt.pop, tt.push)
		}
	}
}

func TestStackEffectUnknownOpcode(t *testing.T) {
	if _, _, err := StackEffect(Opcode(0xEE), 0); err == nil {
		t.Error("expected error for unknown opcode")
	}
}

func TestOpcodeRanges(t *testing.T) {
	// Verify opcodes are in their expected ranges
	rangeTests := []struct {
		name     string
		ops      []Opcode
		minRange Opcode
		maxRange Opcode
	}{
		{"Stack", []Opcode{OpNop, OpPopTop, OpDupTop, OpRotTwo}, 0x00, 0x0F},
		{"LoadStore", []Opcode{OpLoadConst, OpLoadFast, OpStoreFast, OpLoadGlobal, OpLoadAttr}, 0x10, 0x1F},
		{"Arithmetic", []Opcode{OpBinaryAdd, OpBinarySubtract, OpBinaryMultiply, OpBinaryTrueDivide}, 0x20, 0x2F},
		{"Comparison", []Opcode{OpCompareOp}, 0x30, 0x3F},
		{"Calls", []Opcode{OpBuildList, OpCallFunction}, 0x40, 0x4F},
		{"Control", []Opcode{OpJumpForward, OpPopJumpIfFalse, OpPopJumpIfTrue}, 0x50, 0x5F},
		{"Return", []Opcode{OpReturnValue}, 0x60, 0x6F},
	}

	for _, tt := range rangeTests {
		for _, op := range tt.ops {
			if op < tt.minRange || op > tt.maxRange {
				t.Errorf("%s opcode %s (0x%02X) is outside range [0x%02X, 0x%02X]",
					tt.name, op, byte(op), byte(tt.minRange), byte(tt.maxRange))
			}
		}
	}
}

func TestCompareSymbol(t *testing.T) {
	tests := []struct {
		code uint32
		want string
	}{
		{CmpLt, "<"},
		{CmpLe, "<="},
		{CmpEq, "=="},
		{CmpNe, "!="},
		{CmpGt, ">"},
		{CmpGe, ">="},
		{99, "cmp(99)"},
	}

	for _, tt := range tests {
		if got := CompareSymbol(tt.code); got != tt.want {
			t.Errorf("CompareSymbol(%d) = %q, want %q", tt.code, got, tt.want)
		}
	}
}
