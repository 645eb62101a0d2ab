package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/dhamidi/sapling/baml"
	"github.com/dhamidi/sapling/config"
	"github.com/dhamidi/sapling/sitter"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// run executes the root command with an empty configuration file so that no
// user configuration leaks into the test.
func run(t *testing.T, stdin string, args ...string) (string, string, error) {
	t.Helper()
	cfgPath := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(cfgPath, nil, 0o644))

	var stdout, stderr bytes.Buffer
	cmd := newRootCmd()
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetArgs(append([]string{"--config", cfgPath}, args...))
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestParseCommand(t *testing.T) {
	out, _, err := run(t, "enum E { A }", "parse", "-")
	require.NoError(t, err)
	assert.Equal(t, "(source_file (enum_declaration (identifier) (enum_value (identifier))))\n", out)

	path := writeFile(t, t.TempDir(), "a.baml", "class A {\n  name\n}\n")
	out, _, err = run(t, "", "parse", "-f", "diagnostics", path)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, path+":2:3: "), out)

	_, _, err = run(t, "", "parse", "-f", "xml", path)
	assert.ErrorContains(t, err, `unknown format "xml"`)
}

func TestCheckCommand(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "good.baml", "enum E { A }\n")
	writeFile(t, dir, "nested/also_good.baml", "class C {\n  x int\n}\n")
	writeFile(t, dir, "notes.txt", "class {")
	writeFile(t, dir, "baml_client/generated.baml", "class {")

	_, stderr, err := run(t, "", "check", "-j", "2", dir)
	require.NoError(t, err)
	assert.Contains(t, stderr, "checked 2 files")

	bad := writeFile(t, dir, "bad.baml", "class A {\n  name\n}\n")
	out, _, err := run(t, "", "check", dir)
	require.ErrorIs(t, err, errSyntax)
	assert.ErrorContains(t, err, "in 1 of 3 files")
	assert.True(t, strings.HasPrefix(out, bad+":2:3: "), out)
}

func TestEditCommand(t *testing.T) {
	path := writeFile(t, t.TempDir(), "e.baml", "enum E { A }")

	out, stderr, err := run(t, "", "edit", path, "-e", "10:10: B")
	require.NoError(t, err)
	assert.Equal(t, "(source_file (enum_declaration (identifier) (enum_value (identifier)) (enum_value (identifier))))\n", out)
	assert.Contains(t, stderr, "reused ")

	_, stderr, err = run(t, "", "edit", "--full", path, "-e", "10:10: B")
	require.NoError(t, err)
	assert.Contains(t, stderr, "reused 0 nodes (0 bytes) and 0 tokens")

	_, _, err = run(t, "", "edit", path, "-e", `12:12:"\n}"`, "-w")
	require.NoError(t, err)
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "enum E { A }\n}", string(data))

	_, _, err = run(t, "", "edit", path, "-e", "5:100:x")
	assert.ErrorContains(t, err, "range outside")
}

func TestEditParsersKeepConfiguredOptions(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Parser.MaxRecoveryAttempts = 2
	a := &app{cfg: cfg}

	p := a.newParser()
	assert.Equal(t, 2, p.MaxRecoveryAttempts())
	assert.True(t, p.Reuses())

	full := a.newParser(sitter.WithoutReuse())
	assert.Equal(t, 2, full.MaxRecoveryAttempts())
	assert.False(t, full.Reuses())
}

func TestTreeDiffNamesChangedPaths(t *testing.T) {
	p := sitter.NewParser(sitter.WithLanguage(baml.Language()))
	want, err := p.ParseString(nil, "enum E { A }")
	require.NoError(t, err)
	got, err := p.ParseString(nil, "enum E { A B }")
	require.NoError(t, err)

	diff := treeDiff(want, got)
	assert.Contains(t, diff, "End: 12 != 14")
	assert.Contains(t, diff, "Children[0].End: 12 != 14")
	assert.Empty(t, treeDiff(want, want))
}

func TestParseEdit(t *testing.T) {
	e, err := parseEdit(`3:7:"a\tb"`)
	require.NoError(t, err)
	assert.Equal(t, textEdit{start: 3, end: 7, text: "a\tb"}, e)

	e, err = parseEdit("0:0:x:y")
	require.NoError(t, err)
	assert.Equal(t, "x:y", e.text)

	for _, bad := range []string{"1:2", "a:2:x", "1:b:x", `1:2:"unterminated`} {
		_, err := parseEdit(bad)
		assert.Error(t, err, bad)
	}
}

func TestGrammarCommands(t *testing.T) {
	out, _, err := run(t, "", "grammar", "symbols", "--go")
	require.NoError(t, err)
	assert.Contains(t, out, "\tSymClassDeclaration = ")
	assert.NotContains(t, out, "SymTopLevelItem")

	out, _, err = run(t, "", "grammar", "source")
	require.NoError(t, err)
	assert.Contains(t, out, "SourceFile = ")

	path := writeFile(t, t.TempDir(), "g.ebnf", "S = \"a\" T .\n")
	_, _, err = run(t, "", "grammar", "check", path)
	require.NoError(t, err)
	out, _, err = run(t, "", "grammar", "check", "--start", "S", path)
	require.Error(t, err)
	assert.Contains(t, out, "T")
}

func TestVersionCommand(t *testing.T) {
	out, _, err := run(t, "", "version")
	require.NoError(t, err)
	assert.Contains(t, out, "sapling v"+version)
	assert.Contains(t, out, "baml grammar ABI 1.0.0")
}
