package asm

// Branch is an if/elif chain: Bodies[i] runs when Conds[i] is the first
// condition that holds. An optional else body runs when none holds.
type Branch struct {
	Conds  []Node
	Bodies [][]Node

	els    []Node
	hasEls bool
}

func (*Branch) node() {}

// If builds a branch from parallel condition and body lists. The shape is
// checked at compile time, not here.
func If(conds []Node, bodies [][]Node) *Branch {
	return &Branch{Conds: conds, Bodies: bodies}
}

// Else returns a copy of the branch with an else body.
func (b *Branch) Else(body ...Node) *Branch {
	out := *b
	out.els = body
	out.hasEls = true
	return &out
}

// HasElse reports whether an else body was given.
func (b *Branch) HasElse() bool { return b.hasEls }
