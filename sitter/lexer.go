package sitter

import (
	"unicode/utf8"

	"github.com/dhamidi/sapling/grammar"
)

// lexer recognizes one token at a time. It keeps no state between tokens,
// so it can resume at any byte offset.
type lexer struct {
	lang *Language
	src  []byte
}

// next returns the leaf for the token starting at pos. At the end of input
// it returns a zero sized end token. Unrecognized input becomes a one rune
// error leaf.
func (lx *lexer) next(pos int) *subtree {
	src := lx.src
	if pos >= len(src) {
		return newLeaf(grammar.SymbolEnd, Length{}, 1)
	}

	t := lx.lang.tables
	examined := pos
	for i, scan := range t.Scanners() {
		n, seen, ok := scan(src, pos)
		if pos+seen > examined {
			examined = pos + seen
		}
		if ok && n > 0 && pos+n <= len(src) {
			return lx.leaf(t.Externals[i].Symbol, pos, pos+n, examined)
		}
	}

	sym, end, seen := t.Lexer.Match(src, pos)
	if seen > examined {
		examined = seen
	}
	if sym != grammar.NoSymbol && end > pos {
		return lx.leaf(sym, pos, end, examined)
	}

	_, w := utf8.DecodeRune(src[pos:])
	return lx.leaf(grammar.SymbolError, pos, pos+w, examined)
}

func (lx *lexer) leaf(sym grammar.Symbol, start, end, examined int) *subtree {
	if examined < end {
		examined = end
	}
	return newLeaf(sym, measure(lx.src[start:end]), uint32(examined-end))
}
