// Package bytecode defines the instruction set of the stackasm virtual
// machine: opcodes, their operand kinds and stack effects, and the two
// operand-width encodings an assembled routine may use.
//
// The bytecode format is designed for:
//   - Compact representation (one or two bytes per opcode word)
//   - Simple decoding (operand layout is fixed by the width policy)
//   - Static validation (every opcode declares how many values it pops
//     and pushes, so stack depth can be simulated before anything runs)
//
// # Width Policies
//
// Two encoding generations exist and a routine uses exactly one:
//
//   - Narrow: every instruction is an opcode byte followed by a one-byte
//     operand. Opcodes without an operand carry a zero byte.
//
//   - Wide: opcodes without an operand are a single byte; all others are
//     followed by a little-endian 16-bit operand.
//
// Operands that do not fit are split across EXTENDED_ARG prefixes, each
// carrying the next higher slice of bits. Decode folds the prefixes back
// into the instruction they precede.
//
// # Control Flow
//
// Jumps only go forward. Their operand is a byte delta measured from the
// end of the jump instruction, prefixes included, so an assembler can emit
// a jump as soon as it knows the length of the code being skipped.
package bytecode
