package asm

import (
	"fmt"

	"github.com/chazu/stackasm/pkg/bytecode"
)

// PoolKind identifies which operand table a pool feeds.
type PoolKind uint8

const (
	KindConst PoolKind = iota // literal constants
	KindName                  // global and attribute names
	KindLocal                 // local-variable slots
)

// String returns a human-readable name for PoolKind.
func (k PoolKind) String() string {
	switch k {
	case KindConst:
		return "const"
	case KindName:
		return "name"
	case KindLocal:
		return "local"
	default:
		return fmt.Sprintf("PoolKind(%d)", k)
	}
}

// poolKindFor returns the pool kind indexed by an operand kind.
func poolKindFor(k bytecode.OperandKind) (PoolKind, bool) {
	switch k {
	case bytecode.OperandConst:
		return KindConst, true
	case bytecode.OperandName:
		return KindName, true
	case bytecode.OperandLocal:
		return KindLocal, true
	}
	return 0, false
}

// loadOp returns the instruction that pushes an entry of this kind.
func (k PoolKind) loadOp() bytecode.Opcode {
	switch k {
	case KindConst:
		return bytecode.OpLoadConst
	case KindName:
		return bytecode.OpLoadGlobal
	default:
		return bytecode.OpLoadFast
	}
}

// Pool is an ordered, index-addressed operand table. Entries keep the
// position they were given at creation; repeated values get their own
// slots. A Pool is never modified after creation.
type Pool struct {
	kind   PoolKind
	values []any
}

// NewPool creates a pool of the given kind holding values in order.
func NewPool(kind PoolKind, values ...any) *Pool {
	p := &Pool{kind: kind, values: make([]any, len(values))}
	copy(p.values, values)
	return p
}

// Consts creates a constant pool.
func Consts(values ...any) *Pool {
	return NewPool(KindConst, values...)
}

// Names creates a pool of global and attribute names.
func Names(names ...string) *Pool {
	return NewPool(KindName, stringsToAny(names)...)
}

// Locals creates a pool of local-variable names.
func Locals(names ...string) *Pool {
	return NewPool(KindLocal, stringsToAny(names)...)
}

func stringsToAny(ss []string) []any {
	out := make([]any, len(ss))
	for i, s := range ss {
		out[i] = s
	}
	return out
}

// Kind returns the pool kind. A nil pool reports KindConst.
func (p *Pool) Kind() PoolKind {
	if p == nil {
		return KindConst
	}
	return p.kind
}

// Len returns the number of entries. A nil pool is empty.
func (p *Pool) Len() int {
	if p == nil {
		return 0
	}
	return len(p.values)
}

// At returns a handle to entry i. Any index is accepted here; an index
// outside the pool is reported when the handle is compiled. A nil pool is
// an empty constant pool.
func (p *Pool) At(i int) Handle {
	if p == nil {
		return Handle{kind: KindConst, index: i}
	}
	return Handle{pool: p, kind: p.kind, index: i}
}

// Values returns a copy of the entries in index order.
func (p *Pool) Values() []any {
	if p == nil {
		return nil
	}
	out := make([]any, len(p.values))
	copy(out, p.values)
	return out
}

// Strings returns the entries rendered as strings, as the name and local
// tables of an artifact hold them.
func (p *Pool) Strings() []string {
	if p == nil {
		return nil
	}
	out := make([]string, len(p.values))
	for i, v := range p.values {
		if s, ok := v.(string); ok {
			out[i] = s
		} else {
			out[i] = fmt.Sprint(v)
		}
	}
	return out
}

// Handle refers to one entry of one pool. It permanently carries the kind
// of the pool that produced it.
type Handle struct {
	pool  *Pool
	kind  PoolKind
	index int
}

// Kind returns the kind of the pool the handle belongs to.
func (h Handle) Kind() PoolKind { return h.kind }

// Index returns the entry position.
func (h Handle) Index() int { return h.index }

// Pool returns the pool that produced the handle.
func (h Handle) Pool() *Pool { return h.pool }

// Value returns the entry the handle refers to, or false if the index is
// outside the pool.
func (h Handle) Value() (any, bool) {
	if h.pool == nil || h.index < 0 || h.index >= len(h.pool.values) {
		return nil, false
	}
	return h.pool.values[h.index], true
}

// String renders the handle as kind[index].
func (h Handle) String() string {
	return fmt.Sprintf("%s[%d]", h.kind, h.index)
}

func (Handle) node()    {}
func (Handle) operand() {}
