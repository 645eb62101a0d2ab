package workspace

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/dhamidi/sapling/baml"
	"github.com/dhamidi/sapling/sitter"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"
)

func freshTree(t *testing.T, content []byte) *sitter.Tree {
	t.Helper()
	tree, err := sitter.NewParser(sitter.WithLanguage(baml.Language())).Parse(nil, content)
	require.NoError(t, err)
	return tree
}

func requireSameAsFreshParse(t *testing.T, doc *Document) {
	t.Helper()
	want := freshTree(t, doc.Content)
	require.True(t, sitter.Equal(want.RootNode(), doc.Tree.RootNode()),
		"incremental %s\nfresh       %s", doc.Tree, want)
}

func enums(n int) string {
	var sb strings.Builder
	for i := range n {
		fmt.Fprintf(&sb, "enum E%d {\n  A\n  B\n}\n", i)
	}
	return sb.String()
}

func TestUpdateFileReparsesIncrementally(t *testing.T) {
	ws := New(t.TempDir(), baml.Language())
	src := enums(100)
	first, err := ws.UpdateFile("a.baml", []byte(src))
	require.NoError(t, err)
	assert.Equal(t, int32(0), first.Version)
	assert.False(t, first.Tree.HasError())

	doc, err := ws.UpdateFile("a.baml", []byte(src+"class Extra {\n  x int\n}\n"))
	require.NoError(t, err)
	assert.Equal(t, int32(1), doc.Version)
	assert.Positive(t, doc.Tree.Stats().ReusedNodes)
	requireSameAsFreshParse(t, doc)

	assert.Equal(t, int32(0), first.Version, "old documents are left alone")
	assert.Equal(t, src, string(first.Content))
}

func TestUpdateFileWithSameText(t *testing.T) {
	ws := New(t.TempDir(), baml.Language())
	doc, err := ws.UpdateFile("a.baml", []byte("enum E { A }"))
	require.NoError(t, err)
	again, err := ws.UpdateFile("a.baml", []byte("enum E { A }"))
	require.NoError(t, err)
	assert.Same(t, doc, again)
}

func TestSetFile(t *testing.T) {
	ws := New(t.TempDir(), baml.Language())
	_, err := ws.SetFile("a.baml", 7, []byte("enum E { A }"))
	require.NoError(t, err)
	doc, err := ws.SetFile("a.baml", 9, []byte("enum E { A B }"))
	require.NoError(t, err)
	assert.Equal(t, int32(9), doc.Version)
	requireSameAsFreshParse(t, doc)
}

func TestEditFile(t *testing.T) {
	ws := New(t.TempDir(), baml.Language())
	_, err := ws.UpdateFile("a.baml", []byte("class A {\n  name string\n}\n"))
	require.NoError(t, err)

	doc, err := ws.EditFile("a.baml", 5,
		TextEdit{StartByte: 17, OldEndByte: 23, Text: "int"},
		TextEdit{StartByte: 21, OldEndByte: 21, Text: "  age int\n"},
	)
	require.NoError(t, err)
	assert.Equal(t, "class A {\n  name int\n  age int\n}\n", string(doc.Content))
	assert.Equal(t, int32(5), doc.Version)
	assert.False(t, doc.Tree.HasError())
	requireSameAsFreshParse(t, doc)
	assert.Same(t, doc, ws.GetFile("a.baml"))
}

func TestEditFileErrors(t *testing.T) {
	ws := New(t.TempDir(), baml.Language())
	_, err := ws.EditFile("missing.baml", 1, TextEdit{})
	assert.ErrorIs(t, err, ErrUnknownDocument)

	_, err = ws.UpdateFile("a.baml", []byte("enum E { A }"))
	require.NoError(t, err)
	_, err = ws.EditFile("a.baml", 1, TextEdit{StartByte: 4, OldEndByte: 40})
	assert.ErrorContains(t, err, "outside document")
	assert.Equal(t, int32(0), ws.GetFile("a.baml").Version)
}

func TestScanAll(t *testing.T) {
	dir := t.TempDir()
	files := map[string]string{
		"a.baml":        "enum E { A }",
		"sub/b.baml":    "class B {\n  name\n}\n",
		"notes.txt":     "not baml",
		"sub/c.baml.go": "package x",
	}
	for name, text := range files {
		path := filepath.Join(dir, name)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(text), 0o644))
	}

	ws := New(dir, baml.Language())
	err := ws.ScanAll(context.Background(), func(path string) bool {
		return filepath.Ext(path) == ".baml"
	})
	require.NoError(t, err)

	a, b := filepath.Join(dir, "a.baml"), filepath.Join(dir, "sub", "b.baml")
	assert.Equal(t, []string{a, b}, ws.Paths())
	errs := ws.Errors()
	assert.Len(t, errs, 1)
	assert.NotEmpty(t, errs[b])

	ws.RemoveFile(b)
	assert.Nil(t, ws.GetFile(b))
	assert.Empty(t, ws.Errors())
}

func TestScanAllStopsWhenCancelled(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.baml"), []byte("enum E { A }"), 0o644))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := New(dir, baml.Language()).ScanAll(ctx, func(string) bool { return true })
	assert.ErrorIs(t, err, context.Canceled)
}

func TestConcurrentUpdates(t *testing.T) {
	ws := New(t.TempDir(), baml.Language())
	var g errgroup.Group
	for i := range 8 {
		g.Go(func() error {
			path := fmt.Sprintf("f%d.baml", i)
			for n := 1; n <= 10; n++ {
				if _, err := ws.UpdateFile(path, []byte(enums(n))); err != nil {
					return err
				}
				if doc := ws.GetFile(path); doc == nil || doc.Tree.HasError() {
					return fmt.Errorf("%s: bad document after update %d", path, n)
				}
			}
			return nil
		})
	}
	require.NoError(t, g.Wait())
	assert.Len(t, ws.Paths(), 8)
}
