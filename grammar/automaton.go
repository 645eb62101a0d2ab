package grammar

import (
	"fmt"
	"regexp/syntax"
	"sort"
	"strings"
	"text/scanner"
	"unicode"
	"unicode/utf8"

	"golang.org/x/exp/ebnf"
)

// DFA is the lexer automaton. State 0 is the start state. Edges are sorted,
// disjoint rune ranges.
type DFA struct {
	States []DFAState `json:"states"`
}

type DFAState struct {
	Accept Symbol    `json:"accept"`
	Edges  []DFAEdge `json:"edges,omitempty"`
}

type DFAEdge struct {
	Lo rune  `json:"lo"`
	Hi rune  `json:"hi"`
	To int32 `json:"to"`
}

// Step returns the state reached from state on r, or -1.
func (d *DFA) Step(state int, r rune) int {
	edges := d.States[state].Edges
	i := sort.Search(len(edges), func(i int) bool { return edges[i].Hi >= r })
	if i < len(edges) && edges[i].Lo <= r {
		return int(edges[i].To)
	}
	return -1
}

// Match runs the automaton on src[pos:] and returns the longest accepted
// token, its end offset and the offset just past the last examined byte.
// Reaching the end of src counts as examining one more byte.
func (d *DFA) Match(src []byte, pos int) (sym Symbol, end, examined int) {
	sym, end = NoSymbol, pos
	state := 0
	i := pos
	for {
		if i >= len(src) {
			return sym, end, len(src) + 1
		}
		r, w := utf8.DecodeRune(src[i:])
		next := d.Step(state, r)
		if next < 0 {
			return sym, end, i + w
		}
		state = next
		i += w
		if acc := d.States[state].Accept; acc != NoSymbol {
			sym, end = acc, i
		}
	}
}

type nfaEdge struct {
	lo, hi rune
	to     int
}

type nfaState struct {
	eps    []int
	edges  []nfaEdge
	accept int
}

type nfa struct {
	states []nfaState
}

func (n *nfa) state() int {
	n.states = append(n.states, nfaState{accept: -1})
	return len(n.states) - 1
}

func (n *nfa) epsilon(from, to int) {
	n.states[from].eps = append(n.states[from].eps, to)
}

func (n *nfa) edge(from, to int, lo, hi rune) {
	n.states[from].edges = append(n.states[from].edges, nfaEdge{lo: lo, hi: hi, to: to})
}

func (n *nfa) literal(s string) (int, int) {
	start := n.state()
	end := start
	for _, r := range s {
		next := n.state()
		n.edge(end, next, r, r)
		end = next
	}
	return start, end
}

func (n *nfa) closure(set []int) []int {
	seen := make(map[int]bool, len(set))
	stack := append([]int(nil), set...)
	var out []int
	for len(stack) > 0 {
		s := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
		stack = append(stack, n.states[s].eps...)
	}
	sort.Ints(out)
	return out
}

// matchesAll reports whether the fragment starting at start accepts all of s.
func (n *nfa) matchesAll(start int, s string) bool {
	set := n.closure([]int{start})
	for _, r := range s {
		var next []int
		for _, st := range set {
			for _, e := range n.states[st].edges {
				if e.lo <= r && r <= e.hi {
					next = append(next, e.to)
				}
			}
		}
		if len(next) == 0 {
			return false
		}
		set = n.closure(next)
	}
	for _, st := range set {
		if n.states[st].accept >= 0 {
			return true
		}
	}
	return false
}

// fragmentBuilder turns lexical productions and regular expressions into
// NFA fragments.
type fragmentBuilder struct {
	c        *compiler
	n        *nfa
	visiting map[string]bool
}

func (b *fragmentBuilder) production(name string) (int, int) {
	p := b.c.g[name]
	if b.visiting[name] {
		b.c.errorf(p.Pos(), "lexical production %s refers to itself", name)
		s := b.n.state()
		return s, s
	}
	b.visiting[name] = true
	defer delete(b.visiting, name)

	if p.Expr != nil {
		return b.expr(name, p.Expr)
	}
	if _, ok := b.c.cfg.Externals[name]; ok {
		b.c.errorf(p.Pos(), "external token %s cannot be used inside a lexical production", name)
		s := b.n.state()
		return s, s
	}
	pattern := b.c.cfg.Patterns[name]
	re, err := syntax.Parse(pattern, syntax.Perl)
	if err != nil {
		b.c.errorf(p.Pos(), "pattern for %s: %v", name, err)
		s := b.n.state()
		return s, s
	}
	return b.regexp(name, p.Pos(), re.Simplify())
}

func (b *fragmentBuilder) expr(name string, e ebnf.Expression) (int, int) {
	n := b.n
	switch x := e.(type) {
	case nil:
		s := n.state()
		return s, s
	case *ebnf.Token:
		return n.literal(x.String)
	case *ebnf.Range:
		lo, lw := utf8.DecodeRuneInString(x.Begin.String)
		hi, hw := utf8.DecodeRuneInString(x.End.String)
		if lw != len(x.Begin.String) || hw != len(x.End.String) || lo > hi {
			b.c.errorf(x.Pos(), "invalid character range %q … %q in %s", x.Begin.String, x.End.String, name)
		}
		s, t := n.state(), n.state()
		n.edge(s, t, lo, hi)
		return s, t
	case *ebnf.Name:
		return b.production(x.String)
	case *ebnf.Group:
		return b.expr(name, x.Body)
	case *ebnf.Option:
		s, t := b.expr(name, x.Body)
		n.epsilon(s, t)
		return s, t
	case *ebnf.Repetition:
		s, t := n.state(), n.state()
		bs, bt := b.expr(name, x.Body)
		n.epsilon(s, bs)
		n.epsilon(bt, s)
		n.epsilon(s, t)
		return s, t
	case ebnf.Sequence:
		s := n.state()
		end := s
		for _, sub := range x {
			bs, bt := b.expr(name, sub)
			n.epsilon(end, bs)
			end = bt
		}
		return s, end
	case ebnf.Alternative:
		s, t := n.state(), n.state()
		for _, sub := range x {
			bs, bt := b.expr(name, sub)
			n.epsilon(s, bs)
			n.epsilon(bt, t)
		}
		return s, t
	case *ebnf.Bad:
		b.c.errorf(x.Pos(), "%s", x.Error)
	}
	s := n.state()
	return s, s
}

func (b *fragmentBuilder) regexp(name string, pos scanner.Position, re *syntax.Regexp) (int, int) {
	n := b.n
	switch re.Op {
	case syntax.OpNoMatch:
		return n.state(), n.state()
	case syntax.OpEmptyMatch:
		s := n.state()
		return s, s
	case syntax.OpLiteral:
		s := n.state()
		end := s
		for _, r := range re.Rune {
			next := n.state()
			if re.Flags&syntax.FoldCase != 0 {
				for f := unicode.SimpleFold(r); f != r; f = unicode.SimpleFold(f) {
					n.edge(end, next, f, f)
				}
			}
			n.edge(end, next, r, r)
			end = next
		}
		return s, end
	case syntax.OpCharClass:
		s, t := n.state(), n.state()
		for i := 0; i+1 < len(re.Rune); i += 2 {
			n.edge(s, t, re.Rune[i], re.Rune[i+1])
		}
		return s, t
	case syntax.OpAnyCharNotNL:
		s, t := n.state(), n.state()
		n.edge(s, t, 0, '\n'-1)
		n.edge(s, t, '\n'+1, unicode.MaxRune)
		return s, t
	case syntax.OpAnyChar:
		s, t := n.state(), n.state()
		n.edge(s, t, 0, unicode.MaxRune)
		return s, t
	case syntax.OpCapture:
		return b.regexp(name, pos, re.Sub[0])
	case syntax.OpStar, syntax.OpPlus, syntax.OpQuest:
		s, t := n.state(), n.state()
		bs, bt := b.regexp(name, pos, re.Sub[0])
		n.epsilon(s, bs)
		n.epsilon(bt, t)
		if re.Op != syntax.OpPlus {
			n.epsilon(s, t)
		}
		if re.Op != syntax.OpQuest {
			n.epsilon(bt, bs)
		}
		return s, t
	case syntax.OpRepeat:
		s := n.state()
		end := s
		for i := 0; i < re.Min; i++ {
			bs, bt := b.regexp(name, pos, re.Sub[0])
			n.epsilon(end, bs)
			end = bt
		}
		if re.Max < 0 {
			star := &syntax.Regexp{Op: syntax.OpStar, Sub: re.Sub[:1]}
			bs, bt := b.regexp(name, pos, star)
			n.epsilon(end, bs)
			return s, bt
		}
		t := n.state()
		n.epsilon(end, t)
		for i := re.Min; i < re.Max; i++ {
			bs, bt := b.regexp(name, pos, re.Sub[0])
			n.epsilon(end, bs)
			n.epsilon(bt, t)
			end = bt
		}
		return s, t
	case syntax.OpConcat:
		s := n.state()
		end := s
		for _, sub := range re.Sub {
			bs, bt := b.regexp(name, pos, sub)
			n.epsilon(end, bs)
			end = bt
		}
		return s, end
	case syntax.OpAlternate:
		s, t := n.state(), n.state()
		for _, sub := range re.Sub {
			bs, bt := b.regexp(name, pos, sub)
			n.epsilon(s, bs)
			n.epsilon(bt, t)
		}
		return s, t
	}
	b.c.errorf(pos, "pattern for %s uses unsupported operator %v", name, re.Op)
	s := n.state()
	return s, s
}

// buildLexer compiles every non-external terminal into one DFA. Literals
// outrank named tokens, named tokens rank by declaration order.
func (c *compiler) buildLexer() (DFA, []Symbol) {
	n := &nfa{}
	b := &fragmentBuilder{c: c, n: n, visiting: make(map[string]bool)}
	start := n.state()
	var ranks []Symbol
	accept := func(sym Symbol, s, t int) {
		n.epsilon(start, s)
		n.states[t].accept = len(ranks)
		ranks = append(ranks, sym)
	}
	for sym := Symbol(1); int(sym) < c.terminalCount; sym++ {
		if info := c.symbols[sym]; !info.Named {
			s, t := n.literal(info.Name)
			accept(sym, s, t)
		}
	}
	for sym := Symbol(1); int(sym) < c.terminalCount; sym++ {
		if info := c.symbols[sym]; info.Named && !info.External {
			s, t := b.production(info.Name)
			accept(sym, s, t)
		}
	}
	d := determinize(n, start, ranks)
	if acc := d.States[0].Accept; acc != NoSymbol {
		c.errorf(scanner.Position{}, "token %s matches the empty string", c.symbols[acc].Name)
	}

	var keywords []Symbol
	if c.word != NoSymbol {
		wn := &nfa{}
		wb := &fragmentBuilder{c: c, n: wn, visiting: make(map[string]bool)}
		s, t := wb.production(c.symbols[c.word].Name)
		wn.states[t].accept = 0
		for sym := Symbol(1); int(sym) < c.terminalCount; sym++ {
			if info := c.symbols[sym]; !info.Named && wn.matchesAll(s, info.Name) {
				keywords = append(keywords, sym)
			}
		}
	}
	return d, keywords
}

func determinize(n *nfa, start int, ranks []Symbol) DFA {
	var d DFA
	var sets [][]int
	index := make(map[string]int)
	key := func(set []int) string {
		var sb strings.Builder
		for _, s := range set {
			fmt.Fprintf(&sb, "%d,", s)
		}
		return sb.String()
	}
	add := func(set []int) int {
		k := key(set)
		if i, ok := index[k]; ok {
			return i
		}
		best := -1
		for _, s := range set {
			if a := n.states[s].accept; a >= 0 && (best < 0 || a < best) {
				best = a
			}
		}
		acc := NoSymbol
		if best >= 0 {
			acc = ranks[best]
		}
		index[k] = len(sets)
		sets = append(sets, set)
		d.States = append(d.States, DFAState{Accept: acc})
		return len(sets) - 1
	}
	add(n.closure([]int{start}))

	for i := 0; i < len(sets); i++ {
		set := sets[i]
		var bounds []rune
		for _, s := range set {
			for _, e := range n.states[s].edges {
				bounds = append(bounds, e.lo, e.hi+1)
			}
		}
		sort.Slice(bounds, func(a, b int) bool { return bounds[a] < bounds[b] })
		var edges []DFAEdge
		for j := 0; j+1 < len(bounds); j++ {
			lo, hi := bounds[j], bounds[j+1]-1
			if lo > hi {
				continue
			}
			var targets []int
			for _, s := range set {
				for _, e := range n.states[s].edges {
					if e.lo <= lo && hi <= e.hi {
						targets = append(targets, e.to)
					}
				}
			}
			if len(targets) == 0 {
				continue
			}
			to := int32(add(n.closure(targets)))
			if last := len(edges) - 1; last >= 0 && edges[last].To == to && edges[last].Hi+1 == lo {
				edges[last].Hi = hi
				continue
			}
			edges = append(edges, DFAEdge{Lo: lo, Hi: hi, To: to})
		}
		d.States[i].Edges = edges
	}
	return d
}
