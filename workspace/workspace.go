// Package workspace keeps parsed documents in memory and reparses them
// incrementally as their text changes.
package workspace

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/dhamidi/sapling/sitter"
	"github.com/tliron/commonlog"
)

var log = commonlog.GetLogger("sapling.workspace")

var ErrUnknownDocument = errors.New("unknown document")

// Document is one version of a file. Documents are replaced, never
// modified, so callers may keep using one after the file changes.
type Document struct {
	Path    string
	Version int32
	Content []byte
	Tree    *sitter.Tree
}

// TextEdit replaces the bytes [StartByte, OldEndByte) with Text.
type TextEdit struct {
	StartByte  int
	OldEndByte int
	Text       string
}

type Workspace struct {
	mu       sync.RWMutex
	rootDir  string
	language *sitter.Language
	options  []sitter.Option
	files    map[string]*Document
}

// New returns an empty workspace for the files under rootDir. Options are
// passed to the parser created for every reparse.
func New(rootDir string, lang *sitter.Language, opts ...sitter.Option) *Workspace {
	return &Workspace{
		rootDir:  rootDir,
		language: lang,
		options:  opts,
		files:    make(map[string]*Document),
	}
}

func (w *Workspace) RootDir() string {
	return w.rootDir
}

func (w *Workspace) Language() *sitter.Language {
	return w.language
}

func (w *Workspace) newParser() *sitter.Parser {
	opts := append([]sitter.Option{sitter.WithLanguage(w.language)}, w.options...)
	return sitter.NewParser(opts...)
}

// ScanAll parses every file under the root directory accepted by match.
// Files that cannot be read are logged and skipped.
func (w *Workspace) ScanAll(ctx context.Context, match func(path string) bool) error {
	return filepath.WalkDir(w.rootDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			log.Warningf("scan %s: %v", path, err)
			return nil
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if d.IsDir() || !match(path) {
			return nil
		}
		if _, err := w.ScanFile(path); err != nil {
			log.Warningf("%v", err)
		}
		return nil
	})
}

// ScanFile reads path from disk and updates its document.
func (w *Workspace) ScanFile(path string) (*Document, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("scan %s: %w", path, err)
	}
	return w.UpdateFile(path, content)
}

// UpdateFile replaces the text of path and bumps its version. A known
// document is reparsed incrementally from the single edit that turns its
// old text into the new one; unchanged text keeps the current document.
func (w *Workspace) UpdateFile(path string, content []byte) (*Document, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	version := int32(0)
	if prev := w.files[path]; prev != nil {
		if bytes.Equal(prev.Content, content) {
			return prev, nil
		}
		version = prev.Version + 1
	}
	return w.setLocked(path, version, content)
}

// SetFile replaces the text of path, recording the version the editor
// assigned to it.
func (w *Workspace) SetFile(path string, version int32, content []byte) (*Document, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.setLocked(path, version, content)
}

func (w *Workspace) setLocked(path string, version int32, content []byte) (*Document, error) {
	var old *sitter.Tree
	if prev := w.files[path]; prev != nil {
		old = prev.Tree
		if edit, changed := sitter.DiffEdit(prev.Content, content); changed {
			old = old.Edit(edit)
		}
	}
	return w.parseLocked(path, version, content, old)
}

// EditFile applies edits in order, each relative to the text produced by
// the previous one, and reparses once.
func (w *Workspace) EditFile(path string, version int32, edits ...TextEdit) (*Document, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	prev := w.files[path]
	if prev == nil {
		return nil, fmt.Errorf("edit %s: %w", path, ErrUnknownDocument)
	}
	content := prev.Content
	tree := prev.Tree
	for _, e := range edits {
		if e.StartByte < 0 || e.StartByte > e.OldEndByte || e.OldEndByte > len(content) {
			return nil, fmt.Errorf("edit %s: range %d-%d outside document of %d bytes", path, e.StartByte, e.OldEndByte, len(content))
		}
		repl := []byte(e.Text)
		ie := sitter.NewInputEdit(content, e.StartByte, e.OldEndByte, repl)
		content = ie.Apply(content, repl)
		tree = tree.Edit(ie)
	}
	return w.parseLocked(path, version, content, tree)
}

func (w *Workspace) parseLocked(path string, version int32, content []byte, old *sitter.Tree) (*Document, error) {
	tree, err := w.newParser().Parse(old, content)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	stats := tree.Stats()
	log.Debugf("parsed %s v%d: reused %d nodes (%d bytes), lexed %d tokens, %d recoveries",
		path, version, stats.ReusedNodes, stats.ReusedBytes, stats.LexedTokens, stats.Recoveries)
	doc := &Document{Path: path, Version: version, Content: content, Tree: tree}
	w.files[path] = doc
	return doc, nil
}

func (w *Workspace) RemoveFile(path string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	delete(w.files, path)
}

func (w *Workspace) GetFile(path string) *Document {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.files[path]
}

// Paths lists the known documents in sorted order.
func (w *Workspace) Paths() []string {
	w.mu.RLock()
	defer w.mu.RUnlock()
	paths := make([]string, 0, len(w.files))
	for path := range w.files {
		paths = append(paths, path)
	}
	sort.Strings(paths)
	return paths
}

// Errors returns the syntax errors of every document that has any.
func (w *Workspace) Errors() map[string][]sitter.SyntaxError {
	w.mu.RLock()
	defer w.mu.RUnlock()
	out := make(map[string][]sitter.SyntaxError)
	for path, doc := range w.files {
		if doc.Tree.HasError() {
			out[path] = doc.Tree.Errors()
		}
	}
	return out
}
