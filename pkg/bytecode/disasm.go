package bytecode

import (
	"fmt"
	"strings"
)

// Tables resolves operand indices to the values they name. Any field may
// be nil, in which case operands print as bare indices.
type Tables struct {
	Consts []any
	Names  []string
	Locals []string
}

// Disassemble returns a human-readable listing of code encoded with the
// given width. Undecodable trailing bytes are reported on the last line.
func Disassemble(code []byte, w Width, t Tables) string {
	var sb strings.Builder

	ins, err := Decode(code, w)
	for _, in := range ins {
		sb.WriteString(fmt.Sprintf("%04X  %s\n", in.Offset, t.instruction(in)))
	}
	if err != nil {
		sb.WriteString(fmt.Sprintf("; error: %v\n", err))
	}
	return sb.String()
}

// instruction formats a single decoded instruction.
func (t Tables) instruction(in Instruction) string {
	info, ok := Lookup(in.Op)
	if !ok {
		return fmt.Sprintf("UNKNOWN(0x%02X) %d", byte(in.Op), in.Arg)
	}

	switch info.Operand {
	case OperandNone:
		return info.Name

	case OperandConst:
		if int(in.Arg) < len(t.Consts) {
			return fmt.Sprintf("%-20s %d ; %s", info.Name, in.Arg, truncate(fmt.Sprintf("%#v", t.Consts[in.Arg]), 24))
		}

	case OperandName:
		if int(in.Arg) < len(t.Names) {
			return fmt.Sprintf("%-20s %d ; %s", info.Name, in.Arg, t.Names[in.Arg])
		}

	case OperandLocal:
		if int(in.Arg) < len(t.Locals) {
			return fmt.Sprintf("%-20s %d ; %s", info.Name, in.Arg, t.Locals[in.Arg])
		}

	case OperandCompare:
		return fmt.Sprintf("%-20s %d ; %s", info.Name, in.Arg, CompareSymbol(in.Arg))

	case OperandJump:
		return fmt.Sprintf("%-20s %d ; -> %04X", info.Name, in.Arg, in.End()+int(in.Arg))
	}
	return fmt.Sprintf("%-20s %d", info.Name, in.Arg)
}

func truncate(s string, n int) string {
	s = strings.ReplaceAll(s, "\n", "\\n")
	s = strings.ReplaceAll(s, "\t", "\\t")
	if len(s) > n {
		return s[:n-3] + "..."
	}
	return s
}
