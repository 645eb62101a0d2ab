package grammar

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"
)

// Symbol identifies a token or node kind. End of input is 0, terminals come
// before nonterminals.
type Symbol uint16

const (
	SymbolEnd   Symbol = 0
	NoSymbol    Symbol = 0xFFFE
	SymbolError Symbol = 0xFFFF
)

// SymbolInfo is the metadata the runtime keeps for each symbol.
type SymbolInfo struct {
	Name     string `json:"name"`
	Named    bool   `json:"named,omitempty"`
	Visible  bool   `json:"visible,omitempty"`
	Terminal bool   `json:"terminal,omitempty"`
	Extra    bool   `json:"extra,omitempty"`
	Aux      bool   `json:"aux,omitempty"`
	External bool   `json:"external,omitempty"`
}

// Production is one BNF rule. Production 0 is the augmented start rule.
type Production struct {
	LHS Symbol   `json:"lhs"`
	RHS []Symbol `json:"rhs"`
}

type ActionKind uint8

const (
	ActionError ActionKind = iota
	ActionShift
	ActionReduce
	ActionAccept
)

func (k ActionKind) String() string {
	switch k {
	case ActionShift:
		return "shift"
	case ActionReduce:
		return "reduce"
	case ActionAccept:
		return "accept"
	default:
		return "error"
	}
}

// Action is a parse table entry. Value is the target state of a shift or the
// production of a reduce.
type Action struct {
	Kind  ActionKind `json:"k,omitempty"`
	Value int32      `json:"v,omitempty"`
}

// External binds an external token to the scanner registered under Name.
type External struct {
	Name   string `json:"name"`
	Symbol Symbol `json:"symbol"`
}

// Conflict records a table entry that had more than one candidate action.
type Conflict struct {
	State     int    `json:"state"`
	Lookahead Symbol `json:"lookahead"`
	Chosen    Action `json:"chosen"`
	Discarded Action `json:"discarded"`
}

// Tables is a compiled language: symbol metadata, LALR(1) parse tables and
// the lexer automaton. A Tables value is never modified after Compile or
// ReadJSON return it.
type Tables struct {
	Name          string       `json:"name"`
	ABIVersion    string       `json:"abi_version"`
	Symbols       []SymbolInfo `json:"symbols"`
	TerminalCount int          `json:"terminal_count"`
	Productions   []Production `json:"productions"`
	Start         Symbol       `json:"start"`
	Word          Symbol       `json:"word"`
	Keywords      []Symbol     `json:"keywords,omitempty"`
	Actions       [][]Action   `json:"actions"`
	Gotos         [][]int32    `json:"gotos"`
	Lexer         DFA          `json:"lexer"`
	Externals     []External   `json:"externals,omitempty"`
	Conflicts     []Conflict   `json:"conflicts,omitempty"`

	scanners []ScanFunc
}

func (t *Tables) StateCount() int {
	return len(t.Actions)
}

func (t *Tables) IsTerminal(sym Symbol) bool {
	return int(sym) < t.TerminalCount
}

// Action returns the action for a terminal in a state. Out of range lookups
// yield the error action.
func (t *Tables) Action(state int, sym Symbol) Action {
	if state < 0 || state >= len(t.Actions) || int(sym) >= t.TerminalCount {
		return Action{}
	}
	return t.Actions[state][sym]
}

// Goto returns the state reached after reducing to a nonterminal, or -1.
func (t *Tables) Goto(state int, sym Symbol) int {
	idx := int(sym) - t.TerminalCount
	if state < 0 || state >= len(t.Gotos) || idx < 0 || idx >= len(t.Gotos[state]) {
		return -1
	}
	return int(t.Gotos[state][idx])
}

// Expected lists the terminals that have an action in state.
func (t *Tables) Expected(state int) []Symbol {
	if state < 0 || state >= len(t.Actions) {
		return nil
	}
	var syms []Symbol
	for sym, a := range t.Actions[state] {
		if a.Kind != ActionError {
			syms = append(syms, Symbol(sym))
		}
	}
	return syms
}

// Scanners returns the external scanners in Externals order.
func (t *Tables) Scanners() []ScanFunc {
	return t.scanners
}

func (t *Tables) SymbolName(sym Symbol) string {
	switch {
	case sym == SymbolError:
		return "ERROR"
	case int(sym) < len(t.Symbols):
		return t.Symbols[sym].Name
	}
	return fmt.Sprintf("<symbol %d>", sym)
}

func (t *Tables) ProductionString(i int) string {
	if i < 0 || i >= len(t.Productions) {
		return fmt.Sprintf("<production %d>", i)
	}
	p := t.Productions[i]
	var sb strings.Builder
	sb.WriteString(t.SymbolName(p.LHS))
	sb.WriteString(" →")
	if len(p.RHS) == 0 {
		sb.WriteString(" ε")
	}
	for _, sym := range p.RHS {
		sb.WriteByte(' ')
		if t.IsTerminal(sym) && !t.Symbols[sym].Named {
			sb.WriteString(fmt.Sprintf("%q", t.Symbols[sym].Name))
		} else {
			sb.WriteString(t.SymbolName(sym))
		}
	}
	return sb.String()
}

func (t *Tables) describeAction(a Action) string {
	switch a.Kind {
	case ActionShift:
		return fmt.Sprintf("shift %d", a.Value)
	case ActionReduce:
		return "reduce " + t.ProductionString(int(a.Value))
	}
	return a.Kind.String()
}

// DescribeConflict renders a conflict for humans.
func (t *Tables) DescribeConflict(c Conflict) string {
	return fmt.Sprintf("state %d on %q: %s chosen over %s",
		c.State, t.SymbolName(c.Lookahead), t.describeAction(c.Chosen), t.describeAction(c.Discarded))
}

// Validate checks that the tables are internally consistent. The runtime
// calls it before accepting a Tables value it did not build itself.
func (t *Tables) Validate() error {
	var errs ErrorList
	fail := func(format string, args ...any) {
		errs = append(errs, &Error{Message: fmt.Sprintf(format, args...)})
	}
	nsym := len(t.Symbols)
	switch {
	case nsym == 0 || nsym >= int(NoSymbol):
		fail("symbol count %d out of range", nsym)
		return errs
	case t.TerminalCount <= 0 || t.TerminalCount > nsym:
		fail("terminal count %d out of range", t.TerminalCount)
		return errs
	case len(t.Actions) == 0 || len(t.Actions) != len(t.Gotos):
		fail("action and goto tables disagree on the state count")
		return errs
	case len(t.Productions) == 0:
		fail("no productions")
		return errs
	}
	if int(t.Start) < t.TerminalCount || int(t.Start) >= nsym {
		fail("start symbol %d is not a nonterminal", t.Start)
	}
	if p := t.Productions[0]; len(p.RHS) != 1 || p.RHS[0] != t.Start {
		fail("production 0 does not derive the start symbol")
	}
	for i, p := range t.Productions {
		if int(p.LHS) < t.TerminalCount || int(p.LHS) >= nsym {
			fail("production %d has terminal or unknown left-hand side %d", i, p.LHS)
		}
		for _, sym := range p.RHS {
			if int(sym) >= nsym {
				fail("production %d references unknown symbol %d", i, sym)
			}
		}
	}
	states := len(t.Actions)
	for s, row := range t.Actions {
		if len(row) != t.TerminalCount {
			fail("state %d has %d actions, want %d", s, len(row), t.TerminalCount)
			continue
		}
		for _, a := range row {
			switch a.Kind {
			case ActionShift:
				if a.Value < 0 || int(a.Value) >= states {
					fail("state %d shifts to unknown state %d", s, a.Value)
				}
			case ActionReduce:
				if a.Value <= 0 || int(a.Value) >= len(t.Productions) {
					fail("state %d reduces unknown production %d", s, a.Value)
				}
			case ActionError, ActionAccept:
			default:
				fail("state %d has unknown action kind %d", s, a.Kind)
			}
		}
	}
	for s, row := range t.Gotos {
		if len(row) != nsym-t.TerminalCount {
			fail("state %d has %d gotos, want %d", s, len(row), nsym-t.TerminalCount)
			continue
		}
		for _, to := range row {
			if to < -1 || int(to) >= states {
				fail("state %d has goto to unknown state %d", s, to)
			}
		}
	}
	if len(t.Lexer.States) == 0 {
		fail("lexer has no states")
	}
	for s, st := range t.Lexer.States {
		if st.Accept != NoSymbol && int(st.Accept) >= t.TerminalCount {
			fail("lexer state %d accepts nonterminal %d", s, st.Accept)
		}
		for _, e := range st.Edges {
			if e.To < 0 || int(e.To) >= len(t.Lexer.States) {
				fail("lexer state %d has edge to unknown state %d", s, e.To)
			}
		}
	}
	if t.Word != NoSymbol && int(t.Word) >= t.TerminalCount {
		fail("word symbol %d is not a terminal", t.Word)
	}
	if len(t.scanners) != len(t.Externals) {
		fail("%d external tokens but %d scanners", len(t.Externals), len(t.scanners))
	}
	for i, fn := range t.scanners {
		if fn == nil {
			fail("external token %s has no scanner", t.Externals[i].Name)
		}
	}
	return errs.err()
}

func (t *Tables) bindScanners(externals map[string]ScanFunc) error {
	var errs ErrorList
	t.scanners = make([]ScanFunc, len(t.Externals))
	for i, ext := range t.Externals {
		fn, ok := externals[ext.Name]
		if !ok || fn == nil {
			errs = append(errs, &Error{Message: fmt.Sprintf("no scanner for external token %s", ext.Name)})
			continue
		}
		t.scanners[i] = fn
	}
	return errs.err()
}

// WriteJSON serializes the tables. External scanners are not serialized;
// ReadJSON binds them again by name.
func (t *Tables) WriteJSON(w io.Writer) error {
	enc := json.NewEncoder(w)
	if err := enc.Encode(t); err != nil {
		return fmt.Errorf("encode tables: %w", err)
	}
	return nil
}

// ReadJSON loads tables written by WriteJSON and binds their external tokens
// to the given scanners.
func ReadJSON(r io.Reader, externals map[string]ScanFunc) (*Tables, error) {
	var t Tables
	if err := json.NewDecoder(r).Decode(&t); err != nil {
		return nil, fmt.Errorf("decode tables: %w", err)
	}
	if err := t.bindScanners(externals); err != nil {
		return nil, err
	}
	if err := t.Validate(); err != nil {
		return nil, fmt.Errorf("validate tables: %w", err)
	}
	return &t, nil
}

// SortedConflicts returns the conflicts ordered by state and lookahead.
func (t *Tables) SortedConflicts() []Conflict {
	out := append([]Conflict(nil), t.Conflicts...)
	sort.Slice(out, func(i, j int) bool {
		if out[i].State != out[j].State {
			return out[i].State < out[j].State
		}
		return out[i].Lookahead < out[j].Lookahead
	})
	return out
}
