package grammar

import (
	"bytes"
	"errors"
	"reflect"
	"strings"
	"testing"
)

const arithmetic = `
Program = Expr .
Expr = Expr "+" Term | Term .
Term = identifier | number | "(" Expr ")" .

identifier = letter { letter | digit } .
number = digit { digit } .
letter = "a" … "z" | "A" … "Z" | "_" .
digit = "0" … "9" .
whitespace = ( " " | "\t" | "\n" ) { " " | "\t" | "\n" } .
`

func arithmeticConfig() Config {
	return Config{
		Name:  "arithmetic",
		Start: "Program",
		Skip:  []string{"whitespace"},
		Word:  "identifier",
	}
}

func compile(t *testing.T, src string, cfg Config) *Tables {
	t.Helper()
	tables, err := CompileSource("test.ebnf", strings.NewReader(src), cfg)
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	if err := tables.Validate(); err != nil {
		t.Fatalf("validate: %v", err)
	}
	return tables
}

func symbolNamed(t *testing.T, tables *Tables, name string) Symbol {
	t.Helper()
	for i, info := range tables.Symbols {
		if info.Name == name {
			return Symbol(i)
		}
	}
	t.Fatalf("no symbol %q", name)
	return NoSymbol
}

func TestCompileArithmetic(t *testing.T) {
	tables := compile(t, arithmetic, arithmeticConfig())

	if len(tables.Conflicts) != 0 {
		for _, c := range tables.Conflicts {
			t.Errorf("unexpected conflict: %s", tables.DescribeConflict(c))
		}
	}
	if got := tables.SymbolName(tables.Start); got != "program" {
		t.Errorf("start symbol = %q, want program", got)
	}
	if tables.SymbolName(SymbolEnd) != "end" {
		t.Errorf("symbol 0 = %q, want end", tables.SymbolName(SymbolEnd))
	}
	if tables.ABIVersion != ABIVersion {
		t.Errorf("ABI version = %q, want %q", tables.ABIVersion, ABIVersion)
	}

	ws := tables.Symbols[symbolNamed(t, tables, "whitespace")]
	if !ws.Extra || ws.Visible || !ws.Terminal {
		t.Errorf("whitespace metadata = %+v", ws)
	}
	plus := tables.Symbols[symbolNamed(t, tables, "+")]
	if plus.Named || !plus.Visible || !plus.Terminal {
		t.Errorf("+ metadata = %+v", plus)
	}
	for _, frag := range []string{"letter", "digit"} {
		for _, info := range tables.Symbols {
			if info.Name == frag {
				t.Errorf("fragment %s became a symbol", frag)
			}
		}
	}
	if len(tables.Keywords) != 0 {
		t.Errorf("keywords = %v, want none", tables.Keywords)
	}
}

func TestParseTableDrivesArithmetic(t *testing.T) {
	tables := compile(t, arithmetic, arithmeticConfig())
	id := symbolNamed(t, tables, "identifier")
	plus := symbolNamed(t, tables, "+")

	// Run the tables by hand over "a + a" without a runtime.
	stack := []int{0}
	input := []Symbol{id, plus, id, SymbolEnd}
	for steps := 0; steps < 100; steps++ {
		state := stack[len(stack)-1]
		a := tables.Action(state, input[0])
		switch a.Kind {
		case ActionShift:
			stack = append(stack, int(a.Value))
			input = input[1:]
		case ActionReduce:
			p := tables.Productions[a.Value]
			stack = stack[:len(stack)-len(p.RHS)]
			to := tables.Goto(stack[len(stack)-1], p.LHS)
			if to < 0 {
				t.Fatalf("no goto from state %d on %s", stack[len(stack)-1], tables.SymbolName(p.LHS))
			}
			stack = append(stack, to)
		case ActionAccept:
			return
		default:
			t.Fatalf("error action in state %d on %s", state, tables.SymbolName(input[0]))
		}
	}
	t.Fatal("parse did not terminate")
}

func TestLexerAutomaton(t *testing.T) {
	src := arithmetic + `string = .
`
	cfg := arithmeticConfig()
	cfg.Patterns = map[string]string{"string": `"(\\.|[^"\\\n])*"`}
	src = strings.Replace(src, `Term = identifier | number |`, `Term = identifier | number | string |`, 1)
	tables := compile(t, src, cfg)

	tests := []struct {
		input    string
		want     string
		length   int
		examined int
	}{
		{"abc", "identifier", 3, 4},
		{"abc+", "identifier", 3, 4},
		{"a1_b ", "identifier", 4, 5},
		{"123", "number", 3, 4},
		{"+", "+", 1, 2},
		{"(", "(", 1, 2},
		{"  \n x", "whitespace", 4, 5},
		{`"hi" x`, "string", 4, 5},
		{`"a\"b"`, "string", 6, 7},
		{`"open`, "", 0, 6},
		{"#", "", 0, 1},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			sym, end, examined := tables.Lexer.Match([]byte(tt.input), 0)
			if tt.want == "" {
				if sym != NoSymbol {
					t.Fatalf("got %s, want no token", tables.SymbolName(sym))
				}
			} else if got := tables.SymbolName(sym); got != tt.want {
				t.Fatalf("got %s, want %s", got, tt.want)
			}
			if end != tt.length {
				t.Errorf("length = %d, want %d", end, tt.length)
			}
			if examined != tt.examined {
				t.Errorf("examined = %d, want %d", examined, tt.examined)
			}
		})
	}
}

func TestKeywords(t *testing.T) {
	src := `
Program = { Stmt } .
Stmt = "if" identifier "then" identifier | identifier "=" identifier .
identifier = letter { letter } .
letter = "a" … "z" .
whitespace = " " { " " } .
`
	tables := compile(t, src, Config{Start: "Program", Skip: []string{"whitespace"}, Word: "identifier"})

	var names []string
	for _, sym := range tables.Keywords {
		names = append(names, tables.SymbolName(sym))
	}
	if want := []string{"if", "then"}; !reflect.DeepEqual(names, want) {
		t.Errorf("keywords = %v, want %v", names, want)
	}

	tests := []struct {
		input string
		want  string
	}{
		{"if", "if"},
		{"iffy", "identifier"},
		{"then", "then"},
		{"the", "identifier"},
	}
	for _, tt := range tests {
		sym, _, _ := tables.Lexer.Match([]byte(tt.input), 0)
		if got := tables.SymbolName(sym); got != tt.want {
			t.Errorf("%q lexed as %s, want %s", tt.input, got, tt.want)
		}
	}
}

func TestRepetitionsBecomeHiddenHelpers(t *testing.T) {
	src := `
List = "[" { Item [ "," ] } "]" .
Item = identifier .
identifier = "a" … "z" { "a" … "z" } .
`
	tables := compile(t, src, Config{Start: "List"})
	helper := symbolNamed(t, tables, "_list_repeat1")
	info := tables.Symbols[helper]
	if !info.Aux || info.Visible {
		t.Errorf("helper metadata = %+v", info)
	}
	var recursive int
	for _, p := range tables.Productions {
		if p.LHS == helper && len(p.RHS) > 0 && p.RHS[0] == helper {
			recursive++
		}
	}
	if recursive != 2 {
		t.Errorf("left-recursive helper productions = %d, want 2", recursive)
	}
	if len(tables.Conflicts) != 0 {
		t.Errorf("unexpected conflicts: %d", len(tables.Conflicts))
	}
}

func TestHiddenProductionsReferenceSyntacticOnes(t *testing.T) {
	src := `
Program = { _Item } .
_Item = Call | _Atom .
_Atom = identifier | "[" _Item "]" .
Call = identifier "(" ")" .
identifier = "a" … "z" { "a" … "z" } .
whitespace = " " { " " } .
`
	tables, err := CompileSource("hidden.ebnf", strings.NewReader(src), Config{Start: "Program", Skip: []string{"whitespace"}})
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	for _, name := range []string{"_item", "_atom"} {
		if info := tables.Symbols[symbolNamed(t, tables, name)]; info.Visible || !info.Named || info.Terminal {
			t.Errorf("%s metadata = %+v", name, info)
		}
	}
	if info := tables.Symbols[symbolNamed(t, tables, "call")]; !info.Visible {
		t.Errorf("call metadata = %+v", info)
	}
}

func TestVerifyErrorsNameHiddenProductions(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want string
	}{
		{"missing", "Program = _Item .\n_Item = Other .", "missing production Other"},
		{"unreachable", "Program = \"x\" .\n_Unused = \"y\" .", "_Unused is unreachable"},
		{"lexical references syntax", "Program = tok .\ntok = _Item .\n_Item = \"x\" .", "reference to non-lexical production _Item"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := CompileSource("test.ebnf", strings.NewReader(tt.src), Config{Start: "Program"})
			if err == nil {
				t.Fatal("expected an error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error %q does not contain %q", err, tt.want)
			}
			var list ErrorList
			if !errors.As(err, &list) {
				t.Errorf("error %T is not an ErrorList", err)
			}
		})
	}
}

func TestConflictsAreResolvedAndRecorded(t *testing.T) {
	src := `
E = E "+" E | identifier .
identifier = "a" … "z" .
`
	tables := compile(t, src, Config{Start: "E"})
	if len(tables.Conflicts) == 0 {
		t.Fatal("expected a shift/reduce conflict")
	}
	for _, c := range tables.SortedConflicts() {
		if c.Chosen.Kind != ActionShift || c.Discarded.Kind != ActionReduce {
			t.Errorf("conflict resolved as %v over %v, want shift over reduce", c.Chosen.Kind, c.Discarded.Kind)
		}
		if desc := tables.DescribeConflict(c); !strings.Contains(desc, `"+"`) {
			t.Errorf("description %q does not name the lookahead", desc)
		}
	}
}

func TestCompileErrors(t *testing.T) {
	tests := []struct {
		name string
		src  string
		cfg  Config
		want string
	}{
		{
			name: "no start",
			src:  `A = "a" .`,
			cfg:  Config{},
			want: "no start production",
		},
		{
			name: "range in syntax",
			src:  `A = "a" … "z" .`,
			cfg:  Config{Start: "A"},
			want: "character range",
		},
		{
			name: "undefined token body",
			src:  "A = tok .\ntok = .",
			cfg:  Config{Start: "A"},
			want: "no body, pattern or external scanner",
		},
		{
			name: "token matches empty",
			src:  "A = tok .\ntok = { \"x\" } .",
			cfg:  Config{Start: "A"},
			want: "matches the empty string",
		},
		{
			name: "anchored pattern",
			src:  "A = tok .\ntok = .",
			cfg:  Config{Start: "A", Patterns: map[string]string{"tok": `^x`}},
			want: "unsupported operator",
		},
		{
			name: "undeclared pattern",
			src:  "A = tok .\ntok = .",
			cfg:  Config{Start: "A", Patterns: map[string]string{"tok": `x`, "other": `x`}},
			want: "undeclared lexical production other",
		},
		{
			name: "lexical start",
			src:  `tok = "x" .`,
			cfg:  Config{Start: "tok"},
			want: "is lexical",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := CompileSource("test.ebnf", strings.NewReader(tt.src), tt.cfg)
			if err == nil {
				t.Fatal("expected an error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error %q does not contain %q", err, tt.want)
			}
		})
	}
}

func TestTablesRoundTripThroughJSON(t *testing.T) {
	src := arithmetic + "comment = .\n"
	cfg := arithmeticConfig()
	cfg.Extras = []string{"comment"}
	scan := func(src []byte, pos int) (int, int, bool) {
		if pos < len(src) && src[pos] == '#' {
			end := bytes.IndexByte(src[pos:], '\n')
			if end < 0 {
				return len(src) - pos, len(src) - pos + 1, true
			}
			return end, end + 1, true
		}
		return 0, 1, false
	}
	cfg.Externals = map[string]ScanFunc{"comment": scan}
	tables := compile(t, src, cfg)

	var buf bytes.Buffer
	if err := tables.WriteJSON(&buf); err != nil {
		t.Fatal(err)
	}
	if _, err := ReadJSON(bytes.NewReader(buf.Bytes()), nil); err == nil {
		t.Fatal("expected an error for the unbound external scanner")
	}
	loaded, err := ReadJSON(bytes.NewReader(buf.Bytes()), cfg.Externals)
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(loaded.Actions, tables.Actions) || !reflect.DeepEqual(loaded.Gotos, tables.Gotos) {
		t.Error("parse tables changed in the round trip")
	}
	if !reflect.DeepEqual(loaded.Lexer, tables.Lexer) {
		t.Error("lexer changed in the round trip")
	}
	if len(loaded.Scanners()) != 1 {
		t.Errorf("scanners = %d, want 1", len(loaded.Scanners()))
	}
}

func TestKindName(t *testing.T) {
	tests := map[string]string{
		"SourceFile":          "source_file",
		"TypeExpressionBlock": "type_expression_block",
		"_Expression":         "_expression",
		"_expression":         "_expression",
		"identifier":          "identifier",
	}
	for in, want := range tests {
		if got := KindName(in); got != want {
			t.Errorf("KindName(%q) = %q, want %q", in, got, want)
		}
	}
}
