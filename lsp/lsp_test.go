package lsp

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/dhamidi/sapling/baml"
	"github.com/dhamidi/sapling/sitter"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tliron/glsp"
	protocol "github.com/tliron/glsp/protocol_3_16"
)

type harness struct {
	ls        *Server
	ctx       *glsp.Context
	dir       string
	published []protocol.PublishDiagnosticsParams
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{dir: t.TempDir()}
	h.ls = NewServer(Config{
		Version:  "test",
		Language: baml.Language(),
		Match:    func(path string) bool { return filepath.Ext(path) == ".baml" },
	})
	h.ctx = &glsp.Context{
		Notify: func(method string, params any) {
			if method == protocol.ServerTextDocumentPublishDiagnostics {
				h.published = append(h.published, params.(protocol.PublishDiagnosticsParams))
			}
		},
	}
	res, err := h.ls.initialize(h.ctx, &protocol.InitializeParams{RootPath: &h.dir})
	require.NoError(t, err)
	result := res.(protocol.InitializeResult)
	sync := result.Capabilities.TextDocumentSync.(*protocol.TextDocumentSyncOptions)
	require.Equal(t, protocol.TextDocumentSyncKindIncremental, *sync.Change)
	require.Equal(t, true, result.Capabilities.DocumentSymbolProvider)
	return h
}

func (h *harness) uri(name string) string {
	return "file://" + filepath.Join(h.dir, name)
}

func (h *harness) path(name string) string {
	return filepath.Join(h.dir, name)
}

func (h *harness) open(t *testing.T, name, text string) {
	t.Helper()
	err := h.ls.textDocumentDidOpen(h.ctx, &protocol.DidOpenTextDocumentParams{
		TextDocument: protocol.TextDocumentItem{URI: h.uri(name), LanguageID: "baml", Version: 1, Text: text},
	})
	require.NoError(t, err)
}

func (h *harness) change(t *testing.T, name string, version int32, changes ...any) {
	t.Helper()
	params := &protocol.DidChangeTextDocumentParams{ContentChanges: changes}
	params.TextDocument.URI = h.uri(name)
	params.TextDocument.Version = version
	require.NoError(t, h.ls.textDocumentDidChange(h.ctx, params))
}

func (h *harness) lastPublished(t *testing.T) protocol.PublishDiagnosticsParams {
	t.Helper()
	require.NotEmpty(t, h.published)
	return h.published[len(h.published)-1]
}

func rangeChange(startLine, startChar, endLine, endChar uint32, text string) protocol.TextDocumentContentChangeEvent {
	return protocol.TextDocumentContentChangeEvent{
		Range: &protocol.Range{
			Start: protocol.Position{Line: startLine, Character: startChar},
			End:   protocol.Position{Line: endLine, Character: endChar},
		},
		Text: text,
	}
}

func requireFreshParse(t *testing.T, h *harness, name, want string) {
	t.Helper()
	doc := h.ls.Workspace().GetFile(h.path(name))
	require.NotNil(t, doc)
	require.Equal(t, want, string(doc.Content))
	fresh, err := sitter.NewParser(sitter.WithLanguage(baml.Language())).ParseString(nil, want)
	require.NoError(t, err)
	require.True(t, sitter.Equal(fresh.RootNode(), doc.Tree.RootNode()), "incremental %s\nfresh       %s", doc.Tree, fresh)
}

func TestOffsetAt(t *testing.T) {
	content := []byte("a😀b\nxy")
	tests := []struct {
		line, char uint32
		want       int
	}{
		{0, 0, 0},
		{0, 1, 1},
		{0, 2, 1},
		{0, 3, 5},
		{0, 4, 6},
		{0, 99, 6},
		{1, 1, 8},
		{5, 0, 9},
	}
	for _, tt := range tests {
		got := offsetAt(content, protocol.Position{Line: tt.line, Character: tt.char})
		assert.Equal(t, tt.want, got, "line %d character %d", tt.line, tt.char)
	}
}

func TestPositionAt(t *testing.T) {
	content := []byte("a😀b\nxy")
	assert.Equal(t, protocol.Position{Line: 0, Character: 3}, positionAt(content, 5, sitter.Point{Row: 0, Column: 5}))
	assert.Equal(t, protocol.Position{Line: 1, Character: 1}, positionAt(content, 8, sitter.Point{Row: 1, Column: 1}))
}

func TestDidOpenPublishesDiagnostics(t *testing.T) {
	h := newHarness(t)
	h.open(t, "a.baml", "class A {\n  name\n}\n")

	p := h.lastPublished(t)
	assert.Equal(t, h.uri("a.baml"), p.URI)
	require.NotNil(t, p.Version)
	assert.Equal(t, uint32(1), *p.Version)
	require.NotEmpty(t, p.Diagnostics)
	d := p.Diagnostics[0]
	assert.Equal(t, uint32(1), d.Range.Start.Line)
	assert.Equal(t, uint32(2), d.Range.Start.Character)
	assert.Equal(t, protocol.DiagnosticSeverityError, *d.Severity)
	assert.Equal(t, "sapling", *d.Source)
}

func TestIncrementalChanges(t *testing.T) {
	h := newHarness(t)
	h.open(t, "a.baml", "class A {\n  name string\n}\n")
	assert.Empty(t, h.lastPublished(t).Diagnostics)

	h.change(t, "a.baml", 2,
		rangeChange(1, 7, 1, 13, "int"),
		rangeChange(2, 0, 2, 0, "  age int\n"),
	)
	requireFreshParse(t, h, "a.baml", "class A {\n  name int\n  age int\n}\n")
	assert.Equal(t, int32(2), h.ls.Workspace().GetFile(h.path("a.baml")).Version)
	assert.Empty(t, h.lastPublished(t).Diagnostics)

	h.change(t, "a.baml", 3, rangeChange(1, 0, 1, 0, "  broken\n"))
	assert.NotEmpty(t, h.lastPublished(t).Diagnostics)

	h.change(t, "a.baml", 4, protocol.TextDocumentContentChangeEventWhole{Text: "enum E { A }"})
	requireFreshParse(t, h, "a.baml", "enum E { A }")
	assert.Empty(t, h.lastPublished(t).Diagnostics)
}

func TestChangesCountUTF16Units(t *testing.T) {
	h := newHarness(t)
	h.open(t, "a.baml", "// 😀 x\nenum E { A }")
	h.change(t, "a.baml", 2, rangeChange(0, 6, 0, 7, "y"))
	requireFreshParse(t, h, "a.baml", "// 😀 y\nenum E { A }")
}

const outline = `class Person {
  name string
  age int?
}

enum Color {
  Red
  Green
}

client<llm> GPT4 {
  provider openai
}

function Greet(p: Person) -> string {
  client GPT4
  prompt #"Hi {{ p.name }}"#
}

type Alias = Person | Color

template_string Hello(p: Person) #"Hello"#

fn Add(a: int, b: int) -> int {
  a
}

let answer = 42
`

func TestDocumentSymbols(t *testing.T) {
	h := newHarness(t)
	h.open(t, "a.baml", outline)
	require.Empty(t, h.lastPublished(t).Diagnostics)

	res, err := h.ls.textDocumentDocumentSymbol(h.ctx, &protocol.DocumentSymbolParams{
		TextDocument: protocol.TextDocumentIdentifier{URI: h.uri("a.baml")},
	})
	require.NoError(t, err)
	symbols := res.([]protocol.DocumentSymbol)

	type summary struct {
		Name   string
		Kind   protocol.SymbolKind
		Detail string
	}
	summarize := func(syms []protocol.DocumentSymbol) []summary {
		var out []summary
		for _, s := range syms {
			detail := ""
			if s.Detail != nil {
				detail = *s.Detail
			}
			out = append(out, summary{s.Name, s.Kind, detail})
		}
		return out
	}
	assert.Equal(t, []summary{
		{"Person", protocol.SymbolKindClass, ""},
		{"Color", protocol.SymbolKindEnum, ""},
		{"GPT4", protocol.SymbolKindObject, "client<llm>"},
		{"Greet", protocol.SymbolKindFunction, "function"},
		{"Alias", protocol.SymbolKindTypeParameter, "Person | Color"},
		{"Hello", protocol.SymbolKindFunction, "template_string"},
		{"Add", protocol.SymbolKindFunction, "fn"},
		{"answer", protocol.SymbolKindVariable, "let"},
	}, summarize(symbols))

	assert.Equal(t, []summary{
		{"name", protocol.SymbolKindField, "string"},
		{"age", protocol.SymbolKindField, "int?"},
	}, summarize(symbols[0].Children))
	assert.Equal(t, []summary{
		{"Red", protocol.SymbolKindEnumMember, ""},
		{"Green", protocol.SymbolKindEnumMember, ""},
	}, summarize(symbols[1].Children))

	person := symbols[0]
	assert.Equal(t, protocol.Range{
		Start: protocol.Position{Line: 0, Character: 6},
		End:   protocol.Position{Line: 0, Character: 12},
	}, person.SelectionRange)
	assert.Equal(t, protocol.Position{Line: 3, Character: 1}, person.Range.End)
}

func TestFoldingRanges(t *testing.T) {
	h := newHarness(t)
	h.open(t, "a.baml", outline)
	ranges, err := h.ls.textDocumentFoldingRange(h.ctx, &protocol.FoldingRangeParams{
		TextDocument: protocol.TextDocumentIdentifier{URI: h.uri("a.baml")},
	})
	require.NoError(t, err)
	var got [][2]uint32
	for _, r := range ranges {
		assert.Equal(t, "region", *r.Kind)
		got = append(got, [2]uint32{r.StartLine, r.EndLine})
	}
	assert.Equal(t, [][2]uint32{{0, 2}, {5, 7}, {10, 11}, {14, 16}, {23, 24}}, got)
}

func TestUnknownDocument(t *testing.T) {
	h := newHarness(t)
	res, err := h.ls.textDocumentDocumentSymbol(h.ctx, &protocol.DocumentSymbolParams{
		TextDocument: protocol.TextDocumentIdentifier{URI: h.uri("nope.baml")},
	})
	require.NoError(t, err)
	assert.Nil(t, res)
	h.change(t, "nope.baml", 2, rangeChange(0, 0, 0, 0, "x"))
	assert.Empty(t, h.published)
}

func TestSaveAndClose(t *testing.T) {
	h := newHarness(t)
	h.open(t, "a.baml", "enum E { A }")

	text := "enum E { A B }"
	require.NoError(t, h.ls.textDocumentDidSave(h.ctx, &protocol.DidSaveTextDocumentParams{
		TextDocument: protocol.TextDocumentIdentifier{URI: h.uri("a.baml")},
		Text:         &text,
	}))
	requireFreshParse(t, h, "a.baml", text)

	require.NoError(t, h.ls.textDocumentDidClose(h.ctx, &protocol.DidCloseTextDocumentParams{
		TextDocument: protocol.TextDocumentIdentifier{URI: h.uri("a.baml")},
	}))
	assert.Nil(t, h.ls.Workspace().GetFile(h.path("a.baml")), "unsaved documents are dropped on close")
	p := h.lastPublished(t)
	assert.NotNil(t, p.Diagnostics)
	assert.Empty(t, p.Diagnostics)
}

func TestInitializedScansRoot(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, os.WriteFile(h.path("main.baml"), []byte("enum E { A }"), 0o644))
	require.NoError(t, os.WriteFile(h.path("notes.md"), []byte("# notes"), 0o644))
	require.NoError(t, h.ls.initialized(h.ctx, &protocol.InitializedParams{}))
	assert.Equal(t, []string{h.path("main.baml")}, h.ls.Workspace().Paths())
}
