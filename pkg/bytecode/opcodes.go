package bytecode

import "fmt"

// Opcode represents a bytecode instruction.
// Opcodes are organized into ranges by category for easy identification.
type Opcode byte

const (
	// ========================================================================
	// Stack manipulation (0x00-0x0F)
	// ========================================================================

	OpNop    Opcode = 0x00 // No operation
	OpPopTop Opcode = 0x01 // Pop top of stack
	OpDupTop Opcode = 0x02 // Duplicate top of stack
	OpRotTwo Opcode = 0x03 // Swap top two stack elements

	// ========================================================================
	// Loads and stores (0x10-0x1F)
	// ========================================================================

	OpLoadConst   Opcode = 0x10 // Push constant: LOAD_CONST <const>
	OpLoadFast    Opcode = 0x11 // Push local slot: LOAD_FAST <local>
	OpStoreFast   Opcode = 0x12 // Pop into local slot: STORE_FAST <local>
	OpLoadGlobal  Opcode = 0x13 // Push global by name: LOAD_GLOBAL <name>
	OpStoreGlobal Opcode = 0x14 // Pop into global: STORE_GLOBAL <name>
	OpLoadAttr    Opcode = 0x15 // Replace TOS with TOS.name: LOAD_ATTR <name>

	// ========================================================================
	// Arithmetic (0x20-0x2F)
	// ========================================================================

	OpBinaryAdd         Opcode = 0x20 // Pop two, push a + b
	OpBinarySubtract    Opcode = 0x21 // Pop two, push a - b (b is TOS)
	OpBinaryMultiply    Opcode = 0x22 // Pop two, push a * b
	OpBinaryTrueDivide  Opcode = 0x23 // Pop two, push a / b as float
	OpBinaryFloorDivide Opcode = 0x24 // Pop two, push floor(a / b)
	OpBinaryModulo      Opcode = 0x25 // Pop two, push a mod b (sign of b)
	OpUnaryNot          Opcode = 0x26 // Logical NOT of TOS
	OpUnaryNegative     Opcode = 0x27 // Negate TOS

	// ========================================================================
	// Comparison (0x30-0x3F)
	// ========================================================================

	OpCompareOp Opcode = 0x30 // Pop two, push comparison: COMPARE_OP <cmp>

	// ========================================================================
	// Construction and calls (0x40-0x4F)
	// ========================================================================

	OpBuildList    Opcode = 0x40 // Pop n, push list: BUILD_LIST <n>
	OpCallFunction Opcode = 0x41 // Pop argc args and callee, push result: CALL_FUNCTION <argc>

	// ========================================================================
	// Control flow (0x50-0x5F)
	// ========================================================================

	OpJumpForward    Opcode = 0x50 // Skip forward: JUMP_FORWARD <delta>
	OpPopJumpIfFalse Opcode = 0x51 // Pop, skip forward if falsy: POP_JUMP_IF_FALSE <delta>
	OpPopJumpIfTrue  Opcode = 0x52 // Pop, skip forward if truthy: POP_JUMP_IF_TRUE <delta>

	// ========================================================================
	// Return (0x60-0x6F)
	// ========================================================================

	OpReturnValue Opcode = 0x60 // Return TOS to the caller

	// ========================================================================
	// Operand extension (0x70)
	// ========================================================================

	OpExtendedArg Opcode = 0x70 // High bits of the next instruction's operand
)

// OperandKind says what an opcode's operand refers to.
type OperandKind uint8

const (
	OperandNone     OperandKind = iota // no operand
	OperandConst                       // index into the constant table
	OperandName                        // index into the name table
	OperandLocal                       // index into the local-variable table
	OperandCount                       // element or argument count
	OperandCompare                     // comparison code
	OperandJump                        // forward byte delta
	OperandExtended                    // EXTENDED_ARG payload
)

// String returns a short name for the operand kind.
func (k OperandKind) String() string {
	switch k {
	case OperandNone:
		return "none"
	case OperandConst:
		return "const"
	case OperandName:
		return "name"
	case OperandLocal:
		return "local"
	case OperandCount:
		return "count"
	case OperandCompare:
		return "compare"
	case OperandJump:
		return "jump"
	case OperandExtended:
		return "extended"
	default:
		return fmt.Sprintf("OperandKind(%d)", k)
	}
}

// IsPool reports whether the operand indexes one of the routine's tables.
func (k OperandKind) IsPool() bool {
	return k == OperandConst || k == OperandName || k == OperandLocal
}

// OpcodeInfo provides metadata about each opcode for encoding and validation.
type OpcodeInfo struct {
	Name      string      // Human-readable name
	Operand   OperandKind // What the operand refers to
	StackPop  int         // How many values popped from stack (-1 = depends on operand)
	StackPush int         // How many values pushed to stack
}

// HasOperand reports whether the opcode carries an operand.
func (i OpcodeInfo) HasOperand() bool {
	return i.Operand != OperandNone
}

// opcodeInfoTable maps opcodes to their metadata.
var opcodeInfoTable = map[Opcode]OpcodeInfo{
	// Stack manipulation
	OpNop:    {"NOP", OperandNone, 0, 0},
	OpPopTop: {"POP_TOP", OperandNone, 1, 0},
	OpDupTop: {"DUP_TOP", OperandNone, 1, 2},
	OpRotTwo: {"ROT_TWO", OperandNone, 2, 2},

	// Loads and stores
	OpLoadConst:   {"LOAD_CONST", OperandConst, 0, 1},
	OpLoadFast:    {"LOAD_FAST", OperandLocal, 0, 1},
	OpStoreFast:   {"STORE_FAST", OperandLocal, 1, 0},
	OpLoadGlobal:  {"LOAD_GLOBAL", OperandName, 0, 1},
	OpStoreGlobal: {"STORE_GLOBAL", OperandName, 1, 0},
	OpLoadAttr:    {"LOAD_ATTR", OperandName, 1, 1},

	// Arithmetic
	OpBinaryAdd:         {"BINARY_ADD", OperandNone, 2, 1},
	OpBinarySubtract:    {"BINARY_SUBTRACT", OperandNone, 2, 1},
	OpBinaryMultiply:    {"BINARY_MULTIPLY", OperandNone, 2, 1},
	OpBinaryTrueDivide:  {"BINARY_TRUE_DIVIDE", OperandNone, 2, 1},
	OpBinaryFloorDivide: {"BINARY_FLOOR_DIVIDE", OperandNone, 2, 1},
	OpBinaryModulo:      {"BINARY_MODULO", OperandNone, 2, 1},
	OpUnaryNot:          {"UNARY_NOT", OperandNone, 1, 1},
	OpUnaryNegative:     {"UNARY_NEGATIVE", OperandNone, 1, 1},

	// Comparison
	OpCompareOp: {"COMPARE_OP", OperandCompare, 2, 1},

	// Construction and calls
	OpBuildList:    {"BUILD_LIST", OperandCount, -1, 1},    // Pops n
	OpCallFunction: {"CALL_FUNCTION", OperandCount, -1, 1}, // Pops argc + callee

	// Control flow
	OpJumpForward:    {"JUMP_FORWARD", OperandJump, 0, 0},
	OpPopJumpIfFalse: {"POP_JUMP_IF_FALSE", OperandJump, 1, 0},
	OpPopJumpIfTrue:  {"POP_JUMP_IF_TRUE", OperandJump, 1, 0},

	// Return
	OpReturnValue: {"RETURN_VALUE", OperandNone, 1, 0},

	// Extension
	OpExtendedArg: {"EXTENDED_ARG", OperandExtended, 0, 0},
}

// Lookup returns the metadata for an opcode and whether it is defined.
func Lookup(op Opcode) (OpcodeInfo, bool) {
	info, ok := opcodeInfoTable[op]
	return info, ok
}

// GetOpcodeInfo returns metadata for an opcode.
// Returns a zero OpcodeInfo with name "UNKNOWN" if the opcode is not recognized.
func GetOpcodeInfo(op Opcode) OpcodeInfo {
	if info, ok := opcodeInfoTable[op]; ok {
		return info
	}
	return OpcodeInfo{Name: fmt.Sprintf("UNKNOWN(0x%02X)", byte(op))}
}

// String returns the human-readable name of an opcode.
func (op Opcode) String() string {
	return GetOpcodeInfo(op).Name
}

// IsJump returns true if this opcode is a jump instruction.
func (op Opcode) IsJump() bool {
	return op >= OpJumpForward && op <= OpPopJumpIfTrue
}

// IsBinary returns true if this opcode pops two operands and pushes one result.
func (op Opcode) IsBinary() bool {
	return (op >= OpBinaryAdd && op <= OpBinaryModulo) || op == OpCompareOp
}

// StackEffect returns how many values the instruction needs on the stack
// and how many it leaves behind, given its operand.
func StackEffect(op Opcode, arg uint32) (pop, push int, err error) {
	info, ok := opcodeInfoTable[op]
	if !ok {
		return 0, 0, fmt.Errorf("unknown opcode 0x%02X", byte(op))
	}
	switch op {
	case OpBuildList:
		return int(arg), info.StackPush, nil
	case OpCallFunction:
		return int(arg) + 1, info.StackPush, nil
	}
	return info.StackPop, info.StackPush, nil
}

// AllOpcodes returns a slice of all defined opcodes.
// Useful for testing that all opcodes have metadata.
func AllOpcodes() []Opcode {
	opcodes := make([]Opcode, 0, len(opcodeInfoTable))
	for op := range opcodeInfoTable {
		opcodes = append(opcodes, op)
	}
	return opcodes
}

// OpcodeCount returns the number of defined opcodes.
func OpcodeCount() int {
	return len(opcodeInfoTable)
}

// Comparison codes carried by COMPARE_OP.
const (
	CmpLt uint32 = iota
	CmpLe
	CmpEq
	CmpNe
	CmpGt
	CmpGe
)

var compareSymbols = [...]string{"<", "<=", "==", "!=", ">", ">="}

// CompareSymbol returns the operator spelling for a COMPARE_OP code.
func CompareSymbol(code uint32) string {
	if int(code) < len(compareSymbols) {
		return compareSymbols[code]
	}
	return fmt.Sprintf("cmp(%d)", code)
}
