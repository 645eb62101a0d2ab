package sitter

import "github.com/dhamidi/sapling/grammar"

// recover handles a lookahead that has no action in the current state. It
// reports whether la was consumed. At the end of input it may give up and
// return the final root instead.
//
// The strategies, in order:
//   - insert a missing anonymous token after which la is accepted, unless
//     la can simply be skipped;
//   - pop the stack down to a state that accepts la, wrapping the popped
//     entries in an ERROR node;
//   - skip la, wrapping it in an ERROR node.
//
// Each input position gets a bounded number of attempts, after which la is
// skipped unconditionally.
func (ps *parse) recover(la *subtree) (bool, *subtree) {
	top := ps.top()
	pos := int64(top.end.Bytes)
	if la.isError() {
		ps.parser.log.Debugf("skipping unrecognized input at byte %d", pos)
		ps.skip(la)
		return true, nil
	}
	if pos != ps.errPos {
		ps.errPos = pos
		ps.errAttempts = 0
	}
	ps.errAttempts++
	ps.stats.Recoveries++
	atEnd := la.symbol == grammar.SymbolEnd

	if ps.errAttempts > ps.parser.maxRecovery {
		if atEnd {
			ps.parser.log.Debugf("giving up at end of input after %d attempts", ps.errAttempts-1)
			return false, ps.finish()
		}
		ps.skip(la)
		return true, nil
	}

	canSkip := false
	if !atEnd {
		next := ps.peek(top.end.Bytes + la.size.Bytes)
		if a, _ := ps.resolve(top.state, next); a.Kind != grammar.ActionError {
			canSkip = true
		}
	}
	if !canSkip && ps.insertMissing(top.state, la) {
		return false, nil
	}
	if depth, popped := ps.findPop(la); depth >= 0 && !(canSkip && popped > 1) {
		ps.parser.log.Debugf("popping %d entries to recover at byte %d", popped, pos)
		nodes := make([]*subtree, 0, len(ps.stack)-depth-1)
		for _, e := range ps.stack[depth+1:] {
			nodes = append(nodes, e.node)
		}
		ps.stack = ps.stack[:depth+1]
		ps.pushError(nodes)
		return false, nil
	}
	if atEnd {
		return false, ps.finish()
	}
	ps.parser.log.Debugf("skipping %s at byte %d", ps.lang.SymbolName(la.symbol), pos)
	ps.skip(la)
	return true, nil
}

// peek returns the first token at or after pos that is not an extra.
func (ps *parse) peek(pos uint32) *subtree {
	for {
		tok := ps.lex.next(int(pos))
		if tok.symbol == grammar.SymbolEnd || tok.isError() || !ps.lang.info(tok.symbol).Extra {
			return tok
		}
		pos += tok.size.Bytes
	}
}

// insertMissing pushes a zero width anonymous token that lets la continue.
func (ps *parse) insertMissing(state int, la *subtree) bool {
	for sym := grammar.Symbol(1); int(sym) < ps.t.TerminalCount; sym++ {
		info := ps.t.Symbols[sym]
		if info.Named || info.Extra {
			continue
		}
		a := ps.t.Action(state, sym)
		if a.Kind != grammar.ActionShift {
			continue
		}
		if next, _ := ps.resolve(int(a.Value), la); next.Kind == grammar.ActionError {
			continue
		}
		ps.parser.log.Debugf("inserting missing %q at byte %d", info.Name, ps.top().end.Bytes)
		ps.push(int(a.Value), newMissing(sym, state))
		return true
	}
	return false
}

// findPop returns the index of the topmost stack entry below the top whose
// state has an action for la, and the number of non-extra entries above it.
func (ps *parse) findPop(la *subtree) (int, int) {
	popped := 0
	for i := len(ps.stack) - 1; i > 0; i-- {
		if !ps.stack[i].node.extra() {
			popped++
		}
		if a, _ := ps.resolve(ps.stack[i-1].state, la); a.Kind != grammar.ActionError {
			return i - 1, popped
		}
	}
	return -1, 0
}

// skip wraps la in an ERROR node.
func (ps *parse) skip(la *subtree) {
	ps.pushError([]*subtree{adopt(la, ps.top().state, false)})
}

// pushError pushes nodes as a single ERROR extra. An ERROR node already on
// top of the stack, possibly followed by extras, absorbs the new nodes.
func (ps *parse) pushError(nodes []*subtree) {
	j := len(ps.stack)
	for j > 1 && ps.stack[j-1].node.extra() && !ps.stack[j-1].node.isError() {
		j--
	}
	if j > 1 && ps.stack[j-1].node.isError() {
		j--
		merged := make([]*subtree, 0, len(ps.stack)-j+len(nodes))
		for _, e := range ps.stack[j:] {
			merged = append(merged, e.node)
		}
		nodes = append(merged, nodes...)
		ps.stack = ps.stack[:j]
	}

	var children []*subtree
	for _, n := range nodes {
		if n.isError() && !n.isLeaf() {
			children = append(children, n.children...)
			continue
		}
		children = append(children, n)
	}
	state := ps.top().state
	if len(children) == 1 && children[0].isError() {
		ps.push(state, adopt(children[0], state, true))
		return
	}
	ps.push(state, newNode(grammar.SymbolError, -1, state, children))
}

// finish ends a parse that cannot reach the accept action. A completed start
// symbol still becomes the root; anything else is wrapped in an ERROR root.
func (ps *parse) finish() *subtree {
	var main *subtree
	for _, e := range ps.stack[1:] {
		if e.node.extra() {
			continue
		}
		if main != nil {
			return ps.errorRoot()
		}
		main = e.node
	}
	if main != nil && main.symbol == ps.t.Start {
		return ps.accept()
	}
	return ps.errorRoot()
}
