package sitter

import "github.com/dhamidi/sapling/grammar"

type subtreeFlags uint8

const (
	flagExtra subtreeFlags = 1 << iota
	flagMissing
	flagChanged
	flagError
	// flagFragile marks a node reduced after error recovery had already
	// run past its end. A fresh parse may never build it.
	flagFragile
)

// subtree is the internal tree representation. Sizes are relative, so a
// subtree can be shared between trees and positions. A subtree is never
// modified once it has been pushed onto the parse stack; edits copy the
// affected path.
type subtree struct {
	symbol grammar.Symbol
	// lexed is the symbol the lexer produced for a leaf before a keyword was
	// demoted to the word token.
	lexed     grammar.Symbol
	size      Length
	lookahead uint32
	// state is the parse state the subtree was pushed onto.
	state      int32
	production int32
	children   []*subtree
	flags      subtreeFlags
	errors     uint32
}

func newLeaf(sym grammar.Symbol, size Length, lookahead uint32) *subtree {
	st := &subtree{
		symbol:     sym,
		lexed:      sym,
		size:       size,
		lookahead:  lookahead,
		production: -1,
	}
	if sym == grammar.SymbolError {
		st.flags |= flagError
		st.errors = 1
	}
	return st
}

func newMissing(sym grammar.Symbol, state int) *subtree {
	return &subtree{
		symbol:     sym,
		lexed:      sym,
		state:      int32(state),
		production: -1,
		flags:      flagMissing | flagError,
		errors:     1,
	}
}

func newNode(sym grammar.Symbol, production int, state int, children []*subtree) *subtree {
	st := &subtree{
		symbol:     sym,
		lexed:      sym,
		state:      int32(state),
		production: int32(production),
		children:   children,
	}
	if sym == grammar.SymbolError {
		st.flags |= flagError | flagExtra
		st.errors = 1
	}
	st.summarize()
	return st
}

// summarize recomputes size, lookahead and error bookkeeping from the
// children.
func (st *subtree) summarize() {
	var size Length
	var lookEnd uint32
	var errors uint32
	if st.symbol == grammar.SymbolError {
		errors = 1
	}
	for _, c := range st.children {
		if c.fragile() {
			st.flags |= flagFragile
		}
		end := size.Bytes + c.size.Bytes + c.lookahead
		if end > lookEnd {
			lookEnd = end
		}
		size = size.add(c.size)
		errors += c.errors
	}
	st.size = size
	st.lookahead = 0
	if lookEnd > size.Bytes {
		st.lookahead = lookEnd - size.Bytes
	}
	st.errors = errors
	if errors > 0 {
		st.flags |= flagError
	} else {
		st.flags &^= flagError
	}
}

// extendLookahead records that building st depended on bytes up to
// end, relative to the start of st.
func (st *subtree) extendLookahead(end uint32) {
	if end > st.size.Bytes && end-st.size.Bytes > st.lookahead {
		st.lookahead = end - st.size.Bytes
	}
}

func (st *subtree) clone() *subtree {
	c := *st
	if st.children != nil {
		c.children = append([]*subtree(nil), st.children...)
	}
	return &c
}

func (st *subtree) withExtra(extra bool) *subtree {
	if st.extra() == extra {
		return st
	}
	c := st.clone()
	if extra {
		c.flags |= flagExtra
	} else {
		c.flags &^= flagExtra
	}
	return c
}

func (st *subtree) isLeaf() bool    { return len(st.children) == 0 && st.production < 0 }
func (st *subtree) extra() bool     { return st.flags&flagExtra != 0 }
func (st *subtree) missing() bool   { return st.flags&flagMissing != 0 }
func (st *subtree) changed() bool   { return st.flags&flagChanged != 0 }
func (st *subtree) hasError() bool  { return st.flags&flagError != 0 }
func (st *subtree) fragile() bool   { return st.flags&flagFragile != 0 }
func (st *subtree) isError() bool   { return st.symbol == grammar.SymbolError }
func (st *subtree) demoted() bool   { return st.lexed != st.symbol }
func (st *subtree) lookEnd() uint32 { return st.size.Bytes + st.lookahead }

// firstLeaf returns the first leaf with a non-zero size, or nil.
func (st *subtree) firstLeaf() *subtree {
	n := st
	for !n.isLeaf() {
		var next *subtree
		for _, c := range n.children {
			if c.size.Bytes > 0 {
				next = c
				break
			}
		}
		if next == nil {
			return nil
		}
		n = next
	}
	if n.size.Bytes == 0 {
		return nil
	}
	return n
}

// reusable reports whether st can stand in for a fresh parse of its text.
func (st *subtree) reusable() bool {
	return !st.changed() && !st.hasError() && !st.missing() && !st.fragile() && st.size.Bytes > 0
}

// equalSubtrees compares structure, symbols, sizes and the extra and missing
// flags. Parse states and lookahead are bookkeeping and not compared.
func equalSubtrees(a, b *subtree) bool {
	if a == b {
		return true
	}
	if a == nil || b == nil {
		return false
	}
	if a.symbol != b.symbol || a.size != b.size || a.production != b.production ||
		a.extra() != b.extra() || a.missing() != b.missing() || len(a.children) != len(b.children) {
		return false
	}
	for i := range a.children {
		if !equalSubtrees(a.children[i], b.children[i]) {
			return false
		}
	}
	return true
}
