// Package grammar compiles EBNF grammars into the tables used by the sitter
// runtime: LALR(1) action and goto tables for the syntactic productions and a
// deterministic automaton for the lexical ones.
//
// Production names follow the golang.org/x/exp/ebnf conventions. A name
// starting with a lowercase letter is lexical and becomes a token; any other
// name is syntactic and becomes a node kind. Syntactic names starting with an
// underscore are hidden: their children are spliced into the parent when the
// tree is traversed. String literals inside syntactic productions become
// anonymous tokens.
//
// Lexical productions with an empty body ("name = .") are defined on the Go
// side, either by a regular expression in Config.Patterns or by an external
// scanner in Config.Externals.
package grammar

import (
	"fmt"
	"io"
	"os"
	"reflect"
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/iancoleman/strcase"
	"golang.org/x/exp/ebnf"
)

// ABIVersion is stamped into every table set produced by Compile.
const ABIVersion = "1.0.0"

// ScanFunc recognizes one external token at src[pos:]. It returns the token
// length and the number of bytes it examined, counting one byte past the end
// of src when it ran into the end of input. ok is false when no token starts
// at pos; the examined count is still meaningful in that case.
type ScanFunc func(src []byte, pos int) (length, examined int, ok bool)

// Config describes the parts of a language that the EBNF text does not.
type Config struct {
	// Name of the language, used for error messages and by consumers.
	Name string
	// Start is the syntactic production every input must derive.
	Start string
	// Extras are visible lexical productions allowed between any two tokens,
	// such as comments.
	Extras []string
	// Skip are hidden lexical productions allowed between any two tokens,
	// such as whitespace.
	Skip []string
	// Word names the identifier-like token. Literals it matches become
	// keywords that fall back to Word where the keyword is not expected.
	Word string
	// Patterns supplies regular expressions for empty lexical productions.
	Patterns map[string]string
	// Externals supplies scanners for empty lexical productions.
	Externals map[string]ScanFunc
	// ABIVersion overrides the version stamped into the tables.
	ABIVersion string
}

// Error is a grammar compilation error with an optional source position.
type Error struct {
	Pos     string
	Message string
}

func (e *Error) Error() string {
	if e.Pos == "" {
		return e.Message
	}
	return e.Pos + ": " + e.Message
}

// ErrorList collects every problem found while compiling a grammar.
type ErrorList []*Error

func (l ErrorList) Error() string {
	switch len(l) {
	case 0:
		return "no errors"
	case 1:
		return l[0].Error()
	}
	return fmt.Sprintf("%s (and %d more errors)", l[0].Error(), len(l)-1)
}

func (l ErrorList) err() error {
	if len(l) == 0 {
		return nil
	}
	return l
}

// LoadFile reads and parses an EBNF grammar file.
func LoadFile(filename string) (ebnf.Grammar, error) {
	f, err := os.Open(filename)
	if err != nil {
		return nil, fmt.Errorf("open grammar: %w", err)
	}
	defer f.Close()
	return Load(filename, f)
}

// Load parses EBNF grammar text.
func Load(filename string, r io.Reader) (ebnf.Grammar, error) {
	g, err := ebnf.Parse(filename, r)
	if err != nil {
		return nil, fmt.Errorf("parse grammar: %w", err)
	}
	return g, nil
}

// CompileSource parses and compiles EBNF grammar text.
func CompileSource(filename string, r io.Reader, cfg Config) (*Tables, error) {
	g, err := Load(filename, r)
	if err != nil {
		return nil, err
	}
	return Compile(g, cfg)
}

// Compile turns a parsed grammar into parse and lex tables.
func Compile(g ebnf.Grammar, cfg Config) (*Tables, error) {
	if err := verify(g, cfg); err != nil {
		return nil, err
	}
	c := newCompiler(g, cfg)
	c.collectSymbols()
	if err := c.errs.err(); err != nil {
		return nil, err
	}
	c.expandProductions()
	if err := c.errs.err(); err != nil {
		return nil, err
	}
	lexer, keywords := c.buildLexer()
	if err := c.errs.err(); err != nil {
		return nil, err
	}

	t := &Tables{
		Name:          cfg.Name,
		ABIVersion:    cfg.ABIVersion,
		Symbols:       c.symbols,
		TerminalCount: c.terminalCount,
		Productions:   c.productions,
		Start:         c.start,
		Word:          c.word,
		Keywords:      keywords,
		Lexer:         lexer,
		Externals:     c.externals,
	}
	if t.ABIVersion == "" {
		t.ABIVersion = ABIVersion
	}
	newLALR(t).build()
	if err := t.bindScanners(cfg.Externals); err != nil {
		return nil, err
	}
	return t, nil
}

// verify runs ebnf.Verify over a copy of g. The copy gets a synthetic root
// that references the start production and every extra, so extras do not
// count as unused. ebnf treats every name that does not start with an
// uppercase letter as lexical, so hidden syntactic productions are renamed
// in the copy and named back in the errors.
func verify(g ebnf.Grammar, cfg Config) error {
	if cfg.Start == "" {
		return ErrorList{{Message: "no start production"}}
	}
	aliases := make(map[string]string)
	used := make(map[string]bool)
	var hidden []string
	for name := range g {
		if isHidden(name) && !isLexical(name) {
			hidden = append(hidden, name)
		}
	}
	sort.Strings(hidden)
	for _, name := range hidden {
		alias := strings.TrimLeft(name, "_") + "_"
		for g[alias] != nil || used[alias] {
			alias += "_"
		}
		aliases[name] = alias
		used[alias] = true
	}
	// Longer aliases first so the replacer never stops at a shorter prefix.
	sort.Slice(hidden, func(i, j int) bool {
		return len(aliases[hidden[i]]) > len(aliases[hidden[j]])
	})
	var restore []string
	for _, name := range hidden {
		restore = append(restore, aliases[name], name)
	}
	rename := func(name string) string {
		if alias, ok := aliases[name]; ok {
			return alias
		}
		return name
	}

	root := "Verify_"
	for g[root] != nil || used[root] {
		root += "_"
	}
	seq := ebnf.Sequence{&ebnf.Name{String: rename(cfg.Start)}}
	for _, name := range append(append([]string{}, cfg.Extras...), cfg.Skip...) {
		seq = append(seq, &ebnf.Name{String: rename(name)})
	}
	copied := make(ebnf.Grammar, len(g)+1)
	for name, p := range g {
		copied[rename(name)] = &ebnf.Production{
			Name: &ebnf.Name{StringPos: p.Name.StringPos, String: rename(name)},
			Expr: renameExpr(p.Expr, rename),
		}
	}
	copied[root] = &ebnf.Production{Name: &ebnf.Name{String: root}, Expr: seq}
	if err := ebnf.Verify(copied, root); err != nil {
		return fmt.Errorf("verify grammar: %w", verifyErrors(err, strings.NewReplacer(restore...)))
	}
	if isLexical(cfg.Start) {
		return ErrorList{{Message: fmt.Sprintf("start production %s is lexical", cfg.Start)}}
	}
	return nil
}

// renameExpr returns a copy of e with every name passed through rename.
func renameExpr(e ebnf.Expression, rename func(string) string) ebnf.Expression {
	switch x := e.(type) {
	case ebnf.Alternative:
		out := make(ebnf.Alternative, len(x))
		for i, sub := range x {
			out[i] = renameExpr(sub, rename)
		}
		return out
	case ebnf.Sequence:
		out := make(ebnf.Sequence, len(x))
		for i, sub := range x {
			out[i] = renameExpr(sub, rename)
		}
		return out
	case *ebnf.Name:
		return &ebnf.Name{StringPos: x.StringPos, String: rename(x.String)}
	case *ebnf.Group:
		return &ebnf.Group{Lparen: x.Lparen, Body: renameExpr(x.Body, rename)}
	case *ebnf.Option:
		return &ebnf.Option{Lbrack: x.Lbrack, Body: renameExpr(x.Body, rename)}
	case *ebnf.Repetition:
		return &ebnf.Repetition{Lbrace: x.Lbrace, Body: renameExpr(x.Body, rename)}
	}
	return e
}

// verifyErrors turns the error list returned by ebnf.Verify into an
// ErrorList, restoring the original production names.
func verifyErrors(err error, names *strings.Replacer) ErrorList {
	v := reflect.ValueOf(err)
	if v.Kind() != reflect.Slice {
		return ErrorList{{Message: names.Replace(err.Error())}}
	}
	list := make(ErrorList, 0, v.Len())
	for i := 0; i < v.Len(); i++ {
		e, ok := v.Index(i).Interface().(error)
		if !ok {
			continue
		}
		list = append(list, &Error{Message: names.Replace(e.Error())})
	}
	return list
}

// isLexical agrees with ebnf: a name is lexical unless it starts with an
// uppercase letter. Leading underscores mark hidden productions and are
// not part of that test.
func isLexical(name string) bool {
	ch, _ := utf8.DecodeRuneInString(strings.TrimLeft(name, "_"))
	return !unicode.IsUpper(ch)
}

func isHidden(name string) bool {
	return strings.HasPrefix(name, "_")
}

// KindName converts a syntactic production name to the node kind reported by
// the runtime: SourceFile becomes source_file and _Expression _expression.
func KindName(name string) string {
	if isLexical(name) {
		return name
	}
	if isHidden(name) {
		return "_" + strcase.ToSnake(strings.TrimLeft(name, "_"))
	}
	return strcase.ToSnake(name)
}

// declared returns the productions of g sorted by source position.
func declared(g ebnf.Grammar) []*ebnf.Production {
	prods := make([]*ebnf.Production, 0, len(g))
	for _, p := range g {
		prods = append(prods, p)
	}
	sort.Slice(prods, func(i, j int) bool {
		pi, pj := prods[i].Pos(), prods[j].Pos()
		if pi.Offset != pj.Offset {
			return pi.Offset < pj.Offset
		}
		return prods[i].Name.String < prods[j].Name.String
	})
	return prods
}
