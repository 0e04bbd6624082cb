// Package asm assembles routines for the stack machine described in
// package bytecode.
//
// A routine is written as a list of nodes built on three operand pools:
//
//	consts := asm.Consts(1, 2)
//	locals := asm.Locals("x")
//	code := []asm.Node{
//		consts.At(0).Add(consts.At(1)),
//		asm.StoreFast(locals.At(0)),
//		asm.EndFunction(locals.At(0)),
//	}
//	a, err := asm.Compile(code, consts, nil, locals)
//
// Compile checks every operand reference, simulates the operand stack and
// only then emits bytes. Structured nodes and raw bytes may be mixed in
// one list; raw bytes are decoded with the active width for validation.
package asm
