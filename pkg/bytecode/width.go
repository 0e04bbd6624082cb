package bytecode

import (
	"encoding/binary"
	"errors"
	"fmt"
	"strings"
)

// Width selects the instruction encoding generation.
type Width uint8

const (
	// WidthNarrow encodes every instruction as two bytes: opcode, then a
	// one-byte operand (zero when the opcode takes none).
	WidthNarrow Width = iota

	// WidthWide encodes operand-less opcodes as one byte and follows
	// every other opcode with a two-byte little-endian operand.
	WidthWide
)

// DefaultWidth is the encoding used when a compilation does not choose one.
const DefaultWidth = WidthNarrow

// String returns the policy name.
func (w Width) String() string {
	switch w {
	case WidthNarrow:
		return "narrow"
	case WidthWide:
		return "wide"
	default:
		return fmt.Sprintf("Width(%d)", w)
	}
}

// ParseWidth parses "narrow" or "wide" (case-insensitive).
func ParseWidth(s string) (Width, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "narrow":
		return WidthNarrow, nil
	case "wide":
		return WidthWide, nil
	}
	return 0, fmt.Errorf("unknown operand width %q (want narrow or wide)", s)
}

// OperandBits returns how many operand bits one instruction word carries.
func (w Width) OperandBits() uint {
	if w == WidthWide {
		return 16
	}
	return 8
}

// MaxOperand returns the largest operand that needs no EXTENDED_ARG prefix.
func (w Width) MaxOperand() uint32 {
	return 1<<w.OperandBits() - 1
}

// Instruction is one decoded instruction. EXTENDED_ARG prefixes are folded
// into Arg, and Offset/Size cover the prefixes too.
type Instruction struct {
	Offset int
	Size   int
	Op     Opcode
	Arg    uint32
}

// End returns the offset of the byte following the instruction.
func (i Instruction) End() int {
	return i.Offset + i.Size
}

// Errors returned by Decode.
var (
	ErrTruncated     = errors.New("truncated instruction")
	ErrUnknownOpcode = errors.New("unknown opcode")
)

// Encode appends one instruction to dst using the given width, emitting
// EXTENDED_ARG prefixes for operands wider than the policy allows.
func Encode(dst []byte, w Width, op Opcode, arg uint32) []byte {
	bits := w.OperandBits()
	for shift := 32 - bits; shift > 0; shift -= bits {
		if arg>>shift != 0 {
			dst = appendWord(dst, w, OpExtendedArg, arg>>shift, true)
		}
	}
	info := GetOpcodeInfo(op)
	return appendWord(dst, w, op, arg, info.HasOperand())
}

func appendWord(dst []byte, w Width, op Opcode, arg uint32, hasOperand bool) []byte {
	switch w {
	case WidthWide:
		dst = append(dst, byte(op))
		if hasOperand {
			dst = binary.LittleEndian.AppendUint16(dst, uint16(arg))
		}
		return dst
	default:
		return append(dst, byte(op), byte(arg))
	}
}

// EncodedLen returns the number of bytes Encode would append.
func EncodedLen(w Width, op Opcode, arg uint32) int {
	return len(Encode(nil, w, op, arg))
}

// Bare returns the raw-mode encoding of an opcode without an operand:
// two bytes in narrow mode, one in wide mode.
func Bare(w Width, op Opcode) []byte {
	if w == WidthWide {
		return []byte{byte(op)}
	}
	return []byte{byte(op), 0}
}

// Decode splits code into instructions. In wide mode the operand layout
// depends on the opcode, so unknown opcodes are an error; in narrow mode
// they decode and are left to the caller.
func Decode(code []byte, w Width) ([]Instruction, error) {
	var (
		out   []Instruction
		ext   uint32
		start = -1
	)
	bits := w.OperandBits()
	pos := 0
	for pos < len(code) {
		if start < 0 {
			start = pos
		}
		op := Opcode(code[pos])
		var arg uint32
		switch w {
		case WidthWide:
			info, ok := Lookup(op)
			if !ok {
				return out, fmt.Errorf("offset %d: %w 0x%02X", pos, ErrUnknownOpcode, byte(op))
			}
			if info.HasOperand() {
				if pos+3 > len(code) {
					return out, fmt.Errorf("offset %d: %w: %s needs 2 operand bytes", pos, ErrTruncated, op)
				}
				arg = uint32(binary.LittleEndian.Uint16(code[pos+1:]))
				pos += 3
			} else {
				pos++
			}
		default:
			if pos+2 > len(code) {
				return out, fmt.Errorf("offset %d: %w: %s needs an operand byte", pos, ErrTruncated, op)
			}
			arg = uint32(code[pos+1])
			pos += 2
		}

		if op == OpExtendedArg {
			ext = (ext | arg) << bits
			continue
		}
		out = append(out, Instruction{Offset: start, Size: pos - start, Op: op, Arg: ext | arg})
		ext = 0
		start = -1
	}
	if start >= 0 {
		return out, fmt.Errorf("offset %d: %w: EXTENDED_ARG without a following instruction", start, ErrTruncated)
	}
	return out, nil
}
