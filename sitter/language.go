package sitter

import (
	"fmt"

	"github.com/Masterminds/semver/v3"
	"github.com/dhamidi/sapling/grammar"
)

// SupportedABI is the range of table versions this runtime can execute.
const SupportedABI = ">= 1.0.0, < 2.0.0"

// Language is a compiled grammar ready to be used by a Parser. Languages are
// immutable and may be shared between goroutines.
type Language struct {
	tables   *grammar.Tables
	version  *semver.Version
	names    map[string]grammar.Symbol
	keywords map[grammar.Symbol]bool
}

// NewLanguage wraps compiled tables. It fails with ErrIncompatibleLanguage
// when the tables were built for another ABI and with ErrCorruptLanguage when
// they are inconsistent.
func NewLanguage(t *grammar.Tables) (*Language, error) {
	if t == nil {
		return nil, fmt.Errorf("%w: no tables", ErrCorruptLanguage)
	}
	v, err := semver.NewVersion(t.ABIVersion)
	if err != nil {
		return nil, fmt.Errorf("%w: version %q: %v", ErrIncompatibleLanguage, t.ABIVersion, err)
	}
	c, err := semver.NewConstraint(SupportedABI)
	if err != nil {
		return nil, fmt.Errorf("abi constraint: %w", err)
	}
	if !c.Check(v) {
		return nil, fmt.Errorf("%w: tables use ABI %s, runtime supports %s", ErrIncompatibleLanguage, v, SupportedABI)
	}
	if err := t.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorruptLanguage, err)
	}
	l := &Language{
		tables:   t,
		version:  v,
		names:    make(map[string]grammar.Symbol, len(t.Symbols)),
		keywords: make(map[grammar.Symbol]bool, len(t.Keywords)),
	}
	for i, info := range t.Symbols {
		key := info.Name
		if !info.Named {
			key = "'" + key
		}
		if _, ok := l.names[key]; !ok {
			l.names[key] = grammar.Symbol(i)
		}
	}
	for _, kw := range t.Keywords {
		l.keywords[kw] = true
	}
	return l, nil
}

func (l *Language) Name() string             { return l.tables.Name }
func (l *Language) Version() *semver.Version { return l.version }
func (l *Language) SymbolCount() int         { return len(l.tables.Symbols) }
func (l *Language) StateCount() int          { return l.tables.StateCount() }

// FieldCount is always zero: node children are addressed by kind, not by
// field name.
func (l *Language) FieldCount() int { return 0 }

// Tables returns the compiled tables. Callers must not modify them.
func (l *Language) Tables() *grammar.Tables { return l.tables }

func (l *Language) SymbolName(sym grammar.Symbol) string {
	return l.tables.SymbolName(sym)
}

// SymbolForName looks up a symbol by its node kind. Anonymous tokens are
// looked up by their literal text with named set to false.
func (l *Language) SymbolForName(name string, named bool) (grammar.Symbol, bool) {
	if name == "ERROR" {
		return grammar.SymbolError, true
	}
	key := name
	if !named {
		key = "'" + key
	}
	sym, ok := l.names[key]
	return sym, ok
}

func (l *Language) info(sym grammar.Symbol) grammar.SymbolInfo {
	if sym == grammar.SymbolError {
		return grammar.SymbolInfo{Name: "ERROR", Named: true, Visible: true}
	}
	if int(sym) < len(l.tables.Symbols) {
		return l.tables.Symbols[sym]
	}
	return grammar.SymbolInfo{}
}

// visible reports whether nodes of sym show up in the public tree.
func (l *Language) visible(sym grammar.Symbol) bool {
	return l.info(sym).Visible
}

func (l *Language) named(sym grammar.Symbol) bool {
	return l.info(sym).Named
}

func (l *Language) isKeyword(sym grammar.Symbol) bool {
	return l.keywords[sym]
}
