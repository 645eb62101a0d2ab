// Package sitter is an incremental, error tolerant LR parsing runtime. It
// executes tables produced by package grammar and builds concrete syntax
// trees that share unchanged subtrees across edits.
package sitter

import (
	"fmt"
	"math"

	"github.com/dhamidi/sapling/grammar"
	"github.com/tliron/commonlog"
)

// DefaultMaxRecoveryAttempts bounds error recovery at a single input
// position.
const DefaultMaxRecoveryAttempts = 6

type Option func(*Parser)

func WithLanguage(l *Language) Option {
	return func(p *Parser) {
		p.language = l
	}
}

func WithLogger(log commonlog.Logger) Option {
	return func(p *Parser) {
		p.log = log
	}
}

func WithMaxRecoveryAttempts(n int) Option {
	return func(p *Parser) {
		if n > 0 {
			p.maxRecovery = n
		}
	}
}

// WithoutReuse makes every parse start from scratch, even when an old tree
// is passed to Parse.
func WithoutReuse() Option {
	return func(p *Parser) {
		p.noReuse = true
	}
}

// Parser turns source text into Trees. A Parser holds no state between
// calls to Parse but must not be used by two goroutines at once.
type Parser struct {
	language    *Language
	log         commonlog.Logger
	maxRecovery int
	noReuse     bool
}

func NewParser(opts ...Option) *Parser {
	p := &Parser{
		log:         commonlog.GetLogger("sapling.parser"),
		maxRecovery: DefaultMaxRecoveryAttempts,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func (p *Parser) SetLanguage(l *Language) error {
	if l == nil {
		return ErrNoLanguage
	}
	p.language = l
	return nil
}

func (p *Parser) Language() *Language {
	return p.language
}

func (p *Parser) MaxRecoveryAttempts() int {
	return p.maxRecovery
}

// Reuses reports whether Parse reuses the old tree it is given.
func (p *Parser) Reuses() bool {
	return !p.noReuse
}

// Parse parses src. When old is the previous tree of the same document,
// edited with Tree.Edit to match src, unchanged parts of it are reused.
// The result is the same tree a parse without old would produce.
func (p *Parser) Parse(old *Tree, src []byte) (*Tree, error) {
	if p.language == nil {
		return nil, ErrNoLanguage
	}
	if uint64(len(src)) >= math.MaxUint32 {
		return nil, fmt.Errorf("%w: %d bytes", ErrInputTooLarge, len(src))
	}
	ps := &parse{
		parser: p,
		lang:   p.language,
		t:      p.language.tables,
		src:    src,
		lex:    lexer{lang: p.language, src: src},
		stack:  []stackEntry{{}},
		errPos: -1,
	}
	if old != nil && !p.noReuse {
		switch {
		case old.language != p.language:
			p.log.Warningf("ignoring old tree: built for language %q", old.language.Name())
		case old.root.size.Bytes != uint32(len(src)):
			p.log.Warningf("ignoring old tree: covers %d bytes, input has %d; was Tree.Edit called?", old.root.size.Bytes, len(src))
		default:
			ps.reuse = newReuseCursor(old.root)
		}
	}
	root, err := ps.run()
	if err != nil {
		return nil, err
	}
	return &Tree{language: p.language, root: root, stats: ps.stats}, nil
}

// ParseString is Parse for string input.
func (p *Parser) ParseString(old *Tree, src string) (*Tree, error) {
	return p.Parse(old, []byte(src))
}

type stackEntry struct {
	state int
	node  *subtree
	end   Length
}

// parse is the state of one call to Parser.Parse.
type parse struct {
	parser *Parser
	lang   *Language
	t      *grammar.Tables
	src    []byte
	lex    lexer
	stack  []stackEntry
	reuse  *reuseCursor
	stats  ParseStats

	errPos      int64
	errAttempts int
}

func (ps *parse) top() stackEntry {
	return ps.stack[len(ps.stack)-1]
}

func (ps *parse) push(state int, node *subtree) {
	end := ps.top().end.add(node.size)
	ps.stack = append(ps.stack, stackEntry{state: state, node: node, end: end})
}

func (ps *parse) run() (*subtree, error) {
	var la *subtree
	for {
		if la == nil {
			la = ps.token()
		}
		state := ps.top().state
		act, tok := ps.resolve(state, la)
		la = tok
		switch act.Kind {
		case grammar.ActionShift:
			if !ps.reuseSubtree(state, la) {
				ps.push(int(act.Value), adopt(la, state, false))
			}
			la = nil
		case grammar.ActionReduce:
			if err := ps.reduce(int(act.Value), la); err != nil {
				return nil, err
			}
		case grammar.ActionAccept:
			return ps.accept(), nil
		default:
			if la.symbol != grammar.SymbolEnd && !la.isError() && ps.lang.info(la.symbol).Extra {
				ps.push(state, adopt(la, state, true))
				la = nil
				continue
			}
			consumed, root := ps.recover(la)
			if root != nil {
				return root, nil
			}
			if consumed {
				la = nil
			}
		}
	}
}

// token returns the lookahead at the current position, reusing a leaf of
// the old tree when one is available.
func (ps *parse) token() *subtree {
	pos := ps.top().end.Bytes
	if ps.reuse != nil {
		if leaf := ps.reuse.token(pos); leaf != nil {
			ps.stats.ReusedTokens++
			return leaf
		}
	}
	ps.stats.LexedTokens++
	return ps.lex.next(int(pos))
}

// resolve looks up the action for la in state. A keyword that is not
// expected in state is demoted to the word token when that is expected.
func (ps *parse) resolve(state int, la *subtree) (grammar.Action, *subtree) {
	a := ps.t.Action(state, la.lexed)
	if a.Kind == grammar.ActionError && ps.lang.isKeyword(la.lexed) {
		if w := ps.t.Action(state, ps.t.Word); w.Kind != grammar.ActionError {
			return w, withSymbol(la, ps.t.Word)
		}
	}
	return a, withSymbol(la, la.lexed)
}

func withSymbol(leaf *subtree, sym grammar.Symbol) *subtree {
	if leaf.symbol == sym {
		return leaf
	}
	c := leaf.clone()
	c.symbol = sym
	return c
}

// adopt returns leaf with its parse state and extra flag set, copying it if
// it is shared with another tree.
func adopt(leaf *subtree, state int, extra bool) *subtree {
	if int(leaf.state) == state && leaf.extra() == extra {
		return leaf
	}
	c := leaf.withExtra(extra)
	if c == leaf {
		c = leaf.clone()
	}
	c.state = int32(state)
	return c
}

func (ps *parse) reuseSubtree(state int, la *subtree) bool {
	if ps.reuse == nil {
		return false
	}
	pos := ps.top().end.Bytes
	n := ps.reuse.subtree(pos, func(n *subtree) bool {
		if n.isLeaf() || n.extra() || !n.reusable() || int(n.state) != state {
			return false
		}
		if ps.t.Goto(state, n.symbol) < 0 {
			return false
		}
		first := n.firstLeaf()
		return first != nil && first.lexed == la.lexed && first.symbol == la.symbol
	})
	if n == nil {
		return false
	}
	ps.reuse.advance()
	ps.push(ps.t.Goto(state, n.symbol), n)
	ps.stats.ReusedNodes++
	ps.stats.ReusedBytes += int(n.size.Bytes)
	ps.parser.log.Debugf("reused %s at byte %d (%d bytes)", ps.lang.SymbolName(n.symbol), pos, n.size.Bytes)
	return true
}

// reduce replaces the entries matched by a production with a node. Extras
// between the matched entries become children; extras after the last one
// stay on the stack after the new node.
func (ps *parse) reduce(prod int, la *subtree) error {
	p := ps.t.Productions[prod]
	end := len(ps.stack)
	if len(p.RHS) > 0 {
		for end > 1 && ps.stack[end-1].node.extra() {
			end--
		}
	}
	start := end
	for count := 0; count < len(p.RHS); {
		if start <= 1 {
			return fmt.Errorf("%w: reducing %s underflows the stack", ErrCorruptLanguage, ps.t.ProductionString(prod))
		}
		start--
		if !ps.stack[start].node.extra() {
			count++
		}
	}
	below := ps.stack[start-1]
	next := ps.t.Goto(below.state, p.LHS)
	if next < 0 {
		return fmt.Errorf("%w: no goto from state %d on %s", ErrCorruptLanguage, below.state, ps.lang.SymbolName(p.LHS))
	}

	children := make([]*subtree, 0, end-start)
	for _, e := range ps.stack[start:end] {
		children = append(children, e.node)
	}
	node := newNode(p.LHS, prod, below.state, children)
	laEnd := ps.top().end.Bytes + la.lookEnd()
	node.extendLookahead(laEnd - below.end.Bytes)

	trailing := append([]stackEntry(nil), ps.stack[end:]...)
	for _, e := range trailing {
		if e.node.hasError() {
			node.flags |= flagFragile
		}
	}
	ps.stack = ps.stack[:start]
	ps.push(next, node)
	for _, e := range trailing {
		ps.push(next, e.node)
	}
	return nil
}

// accept folds the extras around the start symbol into the root.
func (ps *parse) accept() *subtree {
	var leading, trailing []*subtree
	var root *subtree
	for _, e := range ps.stack[1:] {
		switch {
		case root != nil:
			trailing = append(trailing, e.node)
		case e.node.extra():
			leading = append(leading, e.node)
		default:
			root = e.node
		}
	}
	if root == nil {
		return ps.errorRoot()
	}
	if len(leading) == 0 && len(trailing) == 0 {
		return root
	}
	children := make([]*subtree, 0, len(leading)+len(root.children)+len(trailing))
	children = append(children, leading...)
	children = append(children, root.children...)
	children = append(children, trailing...)
	folded := newNode(root.symbol, int(root.production), int(root.state), children)
	folded.extendLookahead(folded.size.Bytes + 1)
	return folded
}

// errorRoot wraps everything on the stack in an ERROR root.
func (ps *parse) errorRoot() *subtree {
	var children []*subtree
	for _, e := range ps.stack[1:] {
		if e.node.isError() && !e.node.isLeaf() {
			children = append(children, e.node.children...)
			continue
		}
		children = append(children, e.node)
	}
	root := newNode(grammar.SymbolError, -1, 0, children)
	root.flags &^= flagExtra
	return root
}
