package grammar

import (
	"math/bits"
	"sort"
)

type bitset []uint64

func newBitset(n int) bitset {
	return make(bitset, (n+63)/64)
}

func (b bitset) set(i int)      { b[i/64] |= 1 << (uint(i) % 64) }
func (b bitset) has(i int) bool { return b[i/64]&(1<<(uint(i)%64)) != 0 }

func (b bitset) clone() bitset {
	return append(bitset(nil), b...)
}

// or adds the bits of o except the one at skip and reports whether b changed.
func (b bitset) or(o bitset, skip int) bool {
	changed := false
	for i, w := range o {
		if skip >= 0 && skip/64 == i {
			w &^= 1 << (uint(skip) % 64)
		}
		if merged := b[i] | w; merged != b[i] {
			b[i] = merged
			changed = true
		}
	}
	return changed
}

func (b bitset) each(fn func(int)) {
	for i, w := range b {
		for w != 0 {
			tz := bits.TrailingZeros64(w)
			fn(i*64 + tz)
			w &^= 1 << uint(tz)
		}
	}
}

type item struct {
	prod, dot int32
}

type lr0State struct {
	kernel []item
	gotos  map[Symbol]int
	la     []bitset
}

// lalr builds LALR(1) tables: an LR(0) automaton whose kernel items get
// lookahead sets by spontaneous generation and propagation.
type lalr struct {
	t        *Tables
	tc       int
	marker   int
	byLHS    [][]int
	nullable []bool
	first    []bitset
	states   []*lr0State
	index    map[string]int
}

func newLALR(t *Tables) *lalr {
	b := &lalr{
		t:      t,
		tc:     t.TerminalCount,
		marker: t.TerminalCount,
		byLHS:  make([][]int, len(t.Symbols)-t.TerminalCount),
		index:  make(map[string]int),
	}
	for i, p := range t.Productions {
		nt := int(p.LHS) - b.tc
		b.byLHS[nt] = append(b.byLHS[nt], i)
	}
	return b
}

func (b *lalr) build() {
	b.computeFirst()
	b.buildLR0()
	b.propagate()
	b.fill()
}

func (b *lalr) terminal(sym Symbol) bool {
	return int(sym) < b.tc
}

func (b *lalr) newSet() bitset {
	return newBitset(b.tc + 1)
}

func (b *lalr) computeFirst() {
	n := len(b.t.Symbols)
	b.nullable = make([]bool, n)
	b.first = make([]bitset, n)
	for sym := range b.first {
		b.first[sym] = b.newSet()
		if sym < b.tc {
			b.first[sym].set(sym)
		}
	}
	for changed := true; changed; {
		changed = false
		for _, p := range b.t.Productions {
			nullable := true
			for _, sym := range p.RHS {
				if b.first[p.LHS].or(b.first[sym], -1) {
					changed = true
				}
				if !b.nullable[sym] {
					nullable = false
					break
				}
			}
			if nullable && !b.nullable[p.LHS] {
				b.nullable[p.LHS] = true
				changed = true
			}
		}
	}
}

func (b *lalr) firstOf(seq []Symbol, la bitset) bitset {
	out := b.newSet()
	for _, sym := range seq {
		out.or(b.first[sym], -1)
		if !b.nullable[sym] {
			return out
		}
	}
	out.or(la, -1)
	return out
}

func kernelKey(items []item) string {
	buf := make([]byte, 0, len(items)*8)
	for _, it := range items {
		buf = append(buf,
			byte(it.prod), byte(it.prod>>8), byte(it.prod>>16), byte(it.prod>>24),
			byte(it.dot), byte(it.dot>>8), byte(it.dot>>16), byte(it.dot>>24))
	}
	return string(buf)
}

func (b *lalr) addState(kernel []item) int {
	sort.Slice(kernel, func(i, j int) bool {
		if kernel[i].prod != kernel[j].prod {
			return kernel[i].prod < kernel[j].prod
		}
		return kernel[i].dot < kernel[j].dot
	})
	key := kernelKey(kernel)
	if i, ok := b.index[key]; ok {
		return i
	}
	b.index[key] = len(b.states)
	b.states = append(b.states, &lr0State{kernel: kernel, gotos: make(map[Symbol]int)})
	return len(b.states) - 1
}

func (b *lalr) closure0(kernel []item) []item {
	items := append([]item(nil), kernel...)
	added := make([]bool, len(b.byLHS))
	for i := 0; i < len(items); i++ {
		p := b.t.Productions[items[i].prod]
		if int(items[i].dot) >= len(p.RHS) {
			continue
		}
		sym := p.RHS[items[i].dot]
		if b.terminal(sym) || added[int(sym)-b.tc] {
			continue
		}
		added[int(sym)-b.tc] = true
		for _, pi := range b.byLHS[int(sym)-b.tc] {
			items = append(items, item{prod: int32(pi)})
		}
	}
	return items
}

func (b *lalr) buildLR0() {
	b.addState([]item{{prod: 0}})
	for i := 0; i < len(b.states); i++ {
		st := b.states[i]
		next := make(map[Symbol][]item)
		var order []Symbol
		for _, it := range b.closure0(st.kernel) {
			p := b.t.Productions[it.prod]
			if int(it.dot) >= len(p.RHS) {
				continue
			}
			sym := p.RHS[it.dot]
			if _, ok := next[sym]; !ok {
				order = append(order, sym)
			}
			next[sym] = append(next[sym], item{prod: it.prod, dot: it.dot + 1})
		}
		sort.Slice(order, func(a, c int) bool { return order[a] < order[c] })
		for _, sym := range order {
			st.gotos[sym] = b.addState(next[sym])
		}
	}
}

// closure1 computes the LR(1) closure of seeds, merging lookaheads of equal
// items.
func (b *lalr) closure1(seeds []item, las []bitset) ([]item, []bitset) {
	items := append([]item(nil), seeds...)
	sets := make([]bitset, len(las))
	pos := make(map[item]int, len(seeds))
	queued := make([]bool, len(seeds))
	var queue []int
	for i, set := range las {
		sets[i] = set.clone()
		pos[seeds[i]] = i
		queued[i] = true
		queue = append(queue, i)
	}
	for len(queue) > 0 {
		i := queue[0]
		queue = queue[1:]
		queued[i] = false
		it := items[i]
		p := b.t.Productions[it.prod]
		if int(it.dot) >= len(p.RHS) || b.terminal(p.RHS[it.dot]) {
			continue
		}
		la := b.firstOf(p.RHS[it.dot+1:], sets[i])
		for _, pi := range b.byLHS[int(p.RHS[it.dot])-b.tc] {
			ni := item{prod: int32(pi)}
			j, ok := pos[ni]
			if !ok {
				j = len(items)
				pos[ni] = j
				items = append(items, ni)
				sets = append(sets, la.clone())
				queued = append(queued, true)
				queue = append(queue, j)
				continue
			}
			if sets[j].or(la, -1) && !queued[j] {
				queued[j] = true
				queue = append(queue, j)
			}
		}
	}
	return items, sets
}

func (st *lr0State) kernelIndex(it item) int {
	for i, k := range st.kernel {
		if k == it {
			return i
		}
	}
	return -1
}

type laRef struct {
	state, item int
}

func (b *lalr) propagate() {
	for _, st := range b.states {
		st.la = make([]bitset, len(st.kernel))
		for i := range st.la {
			st.la[i] = b.newSet()
		}
	}
	b.states[0].la[0].set(int(SymbolEnd))

	type edge struct{ from, to laRef }
	var edges []edge
	for s, st := range b.states {
		for k, kit := range st.kernel {
			seed := b.newSet()
			seed.set(b.marker)
			items, sets := b.closure1([]item{kit}, []bitset{seed})
			for i, it := range items {
				p := b.t.Productions[it.prod]
				if int(it.dot) >= len(p.RHS) {
					continue
				}
				t := st.gotos[p.RHS[it.dot]]
				j := b.states[t].kernelIndex(item{prod: it.prod, dot: it.dot + 1})
				if sets[i].has(b.marker) {
					edges = append(edges, edge{laRef{s, k}, laRef{t, j}})
				}
				b.states[t].la[j].or(sets[i], b.marker)
			}
		}
	}
	for changed := true; changed; {
		changed = false
		for _, e := range edges {
			if b.states[e.to.state].la[e.to.item].or(b.states[e.from.state].la[e.from.item], b.marker) {
				changed = true
			}
		}
	}
}

func (b *lalr) fill() {
	t := b.t
	nts := len(t.Symbols) - b.tc
	t.Actions = make([][]Action, len(b.states))
	t.Gotos = make([][]int32, len(b.states))
	for s, st := range b.states {
		row := make([]Action, b.tc)
		gotos := make([]int32, nts)
		for i := range gotos {
			gotos[i] = -1
		}
		for sym, to := range st.gotos {
			if b.terminal(sym) {
				row[sym] = Action{Kind: ActionShift, Value: int32(to)}
			} else {
				gotos[int(sym)-b.tc] = int32(to)
			}
		}
		items, sets := b.closure1(st.kernel, st.la)
		for i, it := range items {
			if int(it.dot) < len(t.Productions[it.prod].RHS) {
				continue
			}
			sets[i].each(func(la int) {
				if la >= b.tc {
					return
				}
				if it.prod == 0 {
					if la == int(SymbolEnd) {
						b.set(s, row, Symbol(la), Action{Kind: ActionAccept})
					}
					return
				}
				b.set(s, row, Symbol(la), Action{Kind: ActionReduce, Value: it.prod})
			})
		}
		t.Actions[s] = row
		t.Gotos[s] = gotos
	}
}

// set stores an action, preferring shift over reduce, accept over reduce and
// the earlier production between two reduces.
func (b *lalr) set(state int, row []Action, la Symbol, a Action) {
	cur := row[la]
	if cur.Kind == ActionError {
		row[la] = a
		return
	}
	if cur == a {
		return
	}
	chosen, discarded := cur, a
	if cur.Kind == ActionReduce && a.Kind == ActionReduce && a.Value < cur.Value {
		chosen, discarded = a, cur
	}
	if a.Kind == ActionAccept {
		chosen, discarded = a, cur
	}
	row[la] = chosen
	b.t.Conflicts = append(b.t.Conflicts, Conflict{
		State:     state,
		Lookahead: la,
		Chosen:    chosen,
		Discarded: discarded,
	})
}
