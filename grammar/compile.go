package grammar

import (
	"fmt"
	"strings"
	"text/scanner"

	"golang.org/x/exp/ebnf"
)

// maxAlternatives bounds the expansion of options and alternatives inside a
// single production.
const maxAlternatives = 512

type compiler struct {
	g     ebnf.Grammar
	cfg   Config
	prods []*ebnf.Production
	errs  ErrorList

	symbols       []SymbolInfo
	terminalCount int
	ids           map[string]Symbol
	literals      map[string]Symbol
	externals     []External
	productions   []Production
	start         Symbol
	word          Symbol
	repeats       map[Symbol]int
}

func newCompiler(g ebnf.Grammar, cfg Config) *compiler {
	return &compiler{
		g:        g,
		cfg:      cfg,
		prods:    declared(g),
		ids:      make(map[string]Symbol),
		literals: make(map[string]Symbol),
		repeats:  make(map[Symbol]int),
		word:     NoSymbol,
	}
}

func (c *compiler) errorf(pos scanner.Position, format string, args ...any) {
	e := &Error{Message: fmt.Sprintf(format, args...)}
	if pos.IsValid() {
		e.Pos = pos.String()
	}
	if c.cfg.Name != "" {
		e.Message = c.cfg.Name + ": " + e.Message
	}
	c.errs = append(c.errs, e)
}

func (c *compiler) add(info SymbolInfo) Symbol {
	sym := Symbol(len(c.symbols))
	if sym >= NoSymbol {
		c.errorf(scanner.Position{}, "too many symbols")
		return NoSymbol
	}
	c.symbols = append(c.symbols, info)
	return sym
}

// walk visits e and every expression nested in it.
func walk(e ebnf.Expression, fn func(ebnf.Expression)) {
	if e == nil {
		return
	}
	fn(e)
	switch x := e.(type) {
	case ebnf.Alternative:
		for _, sub := range x {
			walk(sub, fn)
		}
	case ebnf.Sequence:
		for _, sub := range x {
			walk(sub, fn)
		}
	case *ebnf.Group:
		walk(x.Body, fn)
	case *ebnf.Option:
		walk(x.Body, fn)
	case *ebnf.Repetition:
		walk(x.Body, fn)
	}
}

func toSet(names []string) map[string]bool {
	set := make(map[string]bool, len(names))
	for _, n := range names {
		set[n] = true
	}
	return set
}

// collectSymbols assigns symbol ids: end of input, named tokens in
// declaration order, anonymous literals in order of first use, then the
// syntactic productions in declaration order.
func (c *compiler) collectSymbols() {
	c.add(SymbolInfo{Name: "end", Terminal: true})

	extras, skip := toSet(c.cfg.Extras), toSet(c.cfg.Skip)
	for _, names := range [][]string{c.cfg.Extras, c.cfg.Skip} {
		for _, name := range names {
			if !isLexical(name) {
				c.errorf(scanner.Position{}, "extra %s is not a lexical production", name)
			}
		}
	}

	used := make(map[string]bool)
	var literals []string
	for _, p := range c.prods {
		name := p.Name.String
		if isLexical(name) {
			continue
		}
		walk(p.Expr, func(e ebnf.Expression) {
			switch x := e.(type) {
			case *ebnf.Name:
				if isLexical(x.String) {
					used[x.String] = true
				}
			case *ebnf.Token:
				if x.String == "" {
					c.errorf(x.Pos(), "empty literal in %s", name)
					return
				}
				if _, ok := c.literals[x.String]; !ok {
					c.literals[x.String] = NoSymbol
					literals = append(literals, x.String)
				}
			case *ebnf.Range:
				c.errorf(x.Pos(), "character range in syntactic production %s", name)
			case *ebnf.Bad:
				c.errorf(x.Pos(), "%s", x.Error)
			}
		})
	}

	lexical := make(map[string]bool)
	for _, p := range c.prods {
		name := p.Name.String
		if !isLexical(name) {
			continue
		}
		lexical[name] = true
		if !used[name] && !extras[name] && !skip[name] {
			continue
		}
		if extras[name] && skip[name] {
			c.errorf(p.Pos(), "%s is listed both as extra and as skipped", name)
		}
		info := SymbolInfo{
			Name:     name,
			Named:    true,
			Visible:  !skip[name],
			Terminal: true,
			Extra:    extras[name] || skip[name],
		}
		_, hasPattern := c.cfg.Patterns[name]
		_, hasScanner := c.cfg.Externals[name]
		switch {
		case p.Expr != nil && (hasPattern || hasScanner):
			c.errorf(p.Pos(), "%s has a body and a Go definition", name)
		case p.Expr != nil:
		case hasPattern && hasScanner:
			c.errorf(p.Pos(), "%s has both a pattern and an external scanner", name)
		case hasScanner:
			info.External = true
		case !hasPattern:
			c.errorf(p.Pos(), "%s has no body, pattern or external scanner", name)
		}
		sym := c.add(info)
		c.ids[name] = sym
		if info.External {
			c.externals = append(c.externals, External{Name: name, Symbol: sym})
		}
	}
	for name := range c.cfg.Patterns {
		if !lexical[name] {
			c.errorf(scanner.Position{}, "pattern for undeclared lexical production %s", name)
		}
	}
	for name := range c.cfg.Externals {
		if !lexical[name] {
			c.errorf(scanner.Position{}, "scanner for undeclared lexical production %s", name)
		}
	}

	for _, lit := range literals {
		c.literals[lit] = c.add(SymbolInfo{Name: lit, Terminal: true, Visible: true})
	}
	c.terminalCount = len(c.symbols)

	for _, p := range c.prods {
		name := p.Name.String
		if isLexical(name) {
			continue
		}
		c.ids[name] = c.add(SymbolInfo{Name: KindName(name), Named: true, Visible: !isHidden(name)})
	}
	c.start = c.ids[c.cfg.Start]

	if c.cfg.Word != "" {
		sym, ok := c.ids[c.cfg.Word]
		switch {
		case !ok || !isLexical(c.cfg.Word):
			c.errorf(scanner.Position{}, "word token %s is not a token", c.cfg.Word)
		case c.symbols[sym].External:
			c.errorf(scanner.Position{}, "word token %s is external", c.cfg.Word)
		default:
			c.word = sym
		}
	}
}

// expandProductions rewrites every syntactic production into BNF rules.
// Options and alternatives multiply out, repetitions become hidden
// left-recursive helper symbols.
func (c *compiler) expandProductions() {
	c.productions = append(c.productions, Production{})
	for _, p := range c.prods {
		name := p.Name.String
		if isLexical(name) {
			continue
		}
		lhs := c.ids[name]
		for _, rhs := range c.expand(lhs, p.Expr) {
			c.productions = append(c.productions, Production{LHS: lhs, RHS: rhs})
		}
	}
	accept := c.add(SymbolInfo{Name: "__accept", Aux: true})
	c.productions[0] = Production{LHS: accept, RHS: []Symbol{c.start}}
}

func (c *compiler) expand(lhs Symbol, e ebnf.Expression) [][]Symbol {
	switch x := e.(type) {
	case nil:
		return [][]Symbol{{}}
	case *ebnf.Name:
		return [][]Symbol{{c.ids[x.String]}}
	case *ebnf.Token:
		return [][]Symbol{{c.literals[x.String]}}
	case *ebnf.Group:
		return c.expand(lhs, x.Body)
	case *ebnf.Option:
		return dedupe(append(c.expand(lhs, x.Body), []Symbol{}))
	case *ebnf.Repetition:
		aux := c.repeat(lhs, x)
		return [][]Symbol{{aux}, {}}
	case ebnf.Alternative:
		var alts [][]Symbol
		for _, sub := range x {
			alts = append(alts, c.expand(lhs, sub)...)
		}
		return c.limit(x.Pos(), lhs, dedupe(alts))
	case ebnf.Sequence:
		alts := [][]Symbol{{}}
		for _, sub := range x {
			var next [][]Symbol
			for _, tail := range c.expand(lhs, sub) {
				for _, head := range alts {
					seq := make([]Symbol, 0, len(head)+len(tail))
					seq = append(append(seq, head...), tail...)
					next = append(next, seq)
				}
			}
			alts = c.limit(x.Pos(), lhs, next)
		}
		return dedupe(alts)
	}
	// Ranges and bad expressions were reported while collecting symbols.
	return [][]Symbol{{}}
}

func (c *compiler) limit(pos scanner.Position, lhs Symbol, alts [][]Symbol) [][]Symbol {
	if len(alts) > maxAlternatives {
		c.errorf(pos, "%s expands to more than %d alternatives", c.symbols[lhs].Name, maxAlternatives)
		return alts[:maxAlternatives]
	}
	return alts
}

func (c *compiler) repeat(lhs Symbol, r *ebnf.Repetition) Symbol {
	c.repeats[lhs]++
	name := fmt.Sprintf("%s_repeat%d", strings.TrimLeft(c.symbols[lhs].Name, "_"), c.repeats[lhs])
	aux := c.add(SymbolInfo{Name: "_" + name, Aux: true})
	var bodies int
	for _, body := range c.expand(lhs, r.Body) {
		if len(body) == 0 {
			continue
		}
		bodies++
		c.productions = append(c.productions,
			Production{LHS: aux, RHS: append([]Symbol{aux}, body...)},
			Production{LHS: aux, RHS: body},
		)
	}
	if bodies == 0 {
		c.errorf(r.Pos(), "repetition in %s only matches the empty string", c.symbols[lhs].Name)
	}
	return aux
}

func dedupe(alts [][]Symbol) [][]Symbol {
	seen := make(map[string]bool, len(alts))
	out := alts[:0:0]
	for _, alt := range alts {
		var key strings.Builder
		for _, sym := range alt {
			fmt.Fprintf(&key, "%d,", sym)
		}
		if seen[key.String()] {
			continue
		}
		seen[key.String()] = true
		out = append(out, alt)
	}
	return out
}
