// Package baml is the BAML language for the sitter runtime. The grammar is
// embedded as EBNF and compiled the first time Language is called.
package baml

import (
	"bytes"
	_ "embed"
	"fmt"
	"sync"

	"github.com/dhamidi/sapling/grammar"
	"github.com/dhamidi/sapling/sitter"
	"github.com/tliron/commonlog"
)

const Name = "baml"

//go:embed grammar.ebnf
var source []byte

var log = commonlog.GetLogger("sapling.baml")

// Source returns the EBNF text of the grammar.
func Source() []byte {
	return bytes.Clone(source)
}

// Config returns the parts of the language the EBNF text does not define:
// token patterns, external scanners, extras and the keyword token.
func Config() grammar.Config {
	return grammar.Config{
		Name:   Name,
		Start:  "SourceFile",
		Extras: []string{"doc_comment", "comment", "block_comment"},
		Skip:   []string{"whitespace"},
		Word:   "identifier",
		Patterns: map[string]string{
			"doc_comment":           `///[^\n]*`,
			"comment":               `//[^\n]*`,
			"quoted_string_literal": `"(\\.|[^"\\\n])*"`,
		},
		Externals: map[string]grammar.ScanFunc{
			"raw_string_literal": scanRawString,
			"jinja_expression":   scanJinja,
			"block_comment":      scanBlockComment,
		},
	}
}

// Compile compiles the embedded grammar into fresh tables.
func Compile() (*grammar.Tables, error) {
	return grammar.CompileSource("grammar.ebnf", bytes.NewReader(source), Config())
}

var language = sync.OnceValue(func() *sitter.Language {
	tables, err := Compile()
	if err != nil {
		panic(fmt.Sprintf("baml: compile embedded grammar: %v", err))
	}
	for _, c := range tables.SortedConflicts() {
		log.Debugf("grammar conflict: %s", tables.DescribeConflict(c))
	}
	lang, err := sitter.NewLanguage(tables)
	if err != nil {
		panic(fmt.Sprintf("baml: load compiled grammar: %v", err))
	}
	log.Infof("compiled %s grammar: %d symbols, %d states", Name, lang.SymbolCount(), lang.StateCount())
	return lang
})

// Language returns the BAML language. Every call returns the same pointer.
func Language() *sitter.Language {
	return language()
}
