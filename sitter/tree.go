package sitter

import (
	"fmt"

	"github.com/dhamidi/sapling/grammar"
)

// ParseStats reports how a tree was built.
type ParseStats struct {
	ReusedNodes  int
	ReusedBytes  int
	ReusedTokens int
	LexedTokens  int
	Recoveries   int
}

// Tree is the result of a parse. Trees are immutable; Edit returns a new
// Tree that shares every subtree the edit does not touch.
type Tree struct {
	language *Language
	root     *subtree
	stats    ParseStats
}

func (t *Tree) Language() *Language { return t.language }
func (t *Tree) Stats() ParseStats    { return t.stats }
func (t *Tree) HasError() bool       { return t.root.hasError() }

func (t *Tree) RootNode() Node {
	return Node{tree: t, st: t.root}
}

func (t *Tree) String() string {
	return t.RootNode().String()
}

// Edit returns a copy of t whose positions match the text after e. Nodes
// whose text or lookahead overlaps the edit are marked as changed so the
// next Parse does not reuse them.
func (t *Tree) Edit(e InputEdit) *Tree {
	return &Tree{
		language: t.language,
		root:     editSubtree(t.root, e.lengths()),
		stats:    t.stats,
	}
}

// Walk returns a cursor positioned on the root node.
func (t *Tree) Walk() *TreeCursor {
	return NewTreeCursor(t.RootNode())
}

// Token is a leaf of the tree.
type Token struct {
	Symbol grammar.Symbol
	// Lexed differs from Symbol when a keyword was read as the word token.
	Lexed      grammar.Symbol
	Kind       string
	StartByte  uint32
	EndByte    uint32
	StartPoint Point
	EndPoint   Point
	// Lookahead counts the bytes after the token the lexer examined.
	Lookahead uint32
	Extra     bool
	Missing   bool
	Error     bool
}

// Tokens returns every leaf in document order, including hidden ones such
// as whitespace. Apart from zero width missing tokens, the leaves cover the
// input without gaps or overlaps.
func (t *Tree) Tokens() []Token {
	var out []Token
	var walk func(st *subtree, start Length, extra bool)
	walk = func(st *subtree, start Length, extra bool) {
		extra = extra || st.extra()
		if st.isLeaf() {
			end := start.add(st.size)
			out = append(out, Token{
				Symbol:     st.symbol,
				Lexed:      st.lexed,
				Kind:       t.language.SymbolName(st.symbol),
				StartByte:  start.Bytes,
				EndByte:    end.Bytes,
				StartPoint: start.Extent,
				EndPoint:   end.Extent,
				Lookahead:  st.lookahead,
				Extra:      extra,
				Missing:    st.missing(),
				Error:      st.isError(),
			})
			return
		}
		pos := start
		for _, c := range st.children {
			walk(c, pos, extra)
			pos = pos.add(c.size)
		}
	}
	walk(t.root, Length{}, false)
	return out
}

// SyntaxError describes an ERROR node or a MISSING token.
type SyntaxError struct {
	StartByte  uint32
	EndByte    uint32
	StartPoint Point
	EndPoint   Point
	Missing    bool
	Message    string
}

func (e SyntaxError) Error() string {
	return fmt.Sprintf("%s: %s", e.StartPoint, e.Message)
}

// Errors lists the syntax errors in document order.
func (t *Tree) Errors() []SyntaxError {
	var out []SyntaxError
	var walk func(n Node)
	walk = func(n Node) {
		st := n.st
		if !st.hasError() {
			return
		}
		switch {
		case st.missing():
			out = append(out, n.syntaxError(true, "missing "+t.describe(st.symbol)))
			return
		case st.isError():
			out = append(out, n.syntaxError(false, t.unexpected(st)))
			return
		}
		pos := n.start
		for _, c := range st.children {
			walk(Node{tree: t, st: c, start: pos})
			pos = pos.add(c.size)
		}
	}
	walk(t.RootNode())
	return out
}

func (n Node) syntaxError(missing bool, msg string) SyntaxError {
	return SyntaxError{
		StartByte:  n.StartByte(),
		EndByte:    n.EndByte(),
		StartPoint: n.StartPoint(),
		EndPoint:   n.EndPoint(),
		Missing:    missing,
		Message:    msg,
	}
}

func (t *Tree) describe(sym grammar.Symbol) string {
	if t.language.named(sym) {
		return t.language.SymbolName(sym)
	}
	return fmt.Sprintf("%q", t.language.SymbolName(sym))
}

func (t *Tree) unexpected(st *subtree) string {
	if st.size.Bytes == 0 {
		return "unexpected end of input"
	}
	if st.isLeaf() {
		return "unrecognized input"
	}
	for _, c := range st.children {
		if c.extra() && !c.isError() {
			continue
		}
		switch leaf := c.firstLeaf(); {
		case leaf == nil:
		case leaf.isError():
			return "unrecognized input"
		default:
			return "unexpected " + t.describe(leaf.symbol)
		}
	}
	return "unexpected input"
}

// Equal reports whether a and b are structurally identical: same symbols,
// same sizes and the same shape, hidden nodes included.
func Equal(a, b Node) bool {
	if a.IsNull() || b.IsNull() {
		return a.IsNull() && b.IsNull()
	}
	return a.start == b.start && equalSubtrees(a.st, b.st)
}
