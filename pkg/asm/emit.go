package asm

import (
	"fmt"

	"github.com/chazu/stackasm/pkg/bytecode"
)

// emitter serializes validated pieces.
type emitter struct {
	width bytecode.Width
}

// emit appends the encoding of pieces to dst.
func (e emitter) emit(dst []byte, pieces []piece) []byte {
	for _, p := range pieces {
		switch p := p.(type) {
		case rawPiece:
			dst = append(dst, p.code...)
		case insPiece:
			dst = bytecode.Encode(dst, e.width, p.op, p.arg)
		case *branchPiece:
			dst = append(dst, e.branch(p)...)
		default:
			panic(fmt.Sprintf("asm: unhandled piece %T", p))
		}
	}
	return dst
}

// branch lays out a construct as
//
//	cond0; POP_JUMP_IF_FALSE next0; body0; JUMP_FORWARD end
//	cond1; POP_JUMP_IF_FALSE next1; body1; JUMP_FORWARD end
//	...
//	else
//
// Clauses are built from the last one back, so each jump is encoded only
// after the bytes it skips have been measured. The last clause has no
// exit jump when nothing follows it.
func (e emitter) branch(b *branchPiece) []byte {
	var tail []byte
	if b.hasEls {
		tail = e.emit(nil, b.els)
	}
	for i := len(b.conds) - 1; i >= 0; i-- {
		body := e.emit(nil, b.bodies[i])
		if len(tail) > 0 {
			body = bytecode.Encode(body, e.width, bytecode.OpJumpForward, uint32(len(tail)))
		}
		clause := e.emit(nil, b.conds[i])
		clause = bytecode.Encode(clause, e.width, bytecode.OpPopJumpIfFalse, uint32(len(body)))
		clause = append(clause, body...)
		tail = append(clause, tail...)
	}
	return tail
}
