// Package lsp is a language server that keeps every open document parsed
// and answers syntax-only requests from the trees.
package lsp

import (
	"context"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/dhamidi/sapling/sitter"
	"github.com/dhamidi/sapling/workspace"
	"github.com/tliron/commonlog"
	"github.com/tliron/glsp"
	protocol "github.com/tliron/glsp/protocol_3_16"
	"github.com/tliron/glsp/server"
)

const lsName = "sapling"

var log = commonlog.GetLogger("sapling.lsp")

type Config struct {
	Version  string
	Language *sitter.Language
	// ParserOptions are passed to every parser the workspace creates.
	ParserOptions []sitter.Option
	// Match selects the files scanned from the workspace root at startup.
	Match func(path string) bool
}

type Server struct {
	config    Config
	workspace *workspace.Workspace
	handler   protocol.Handler
	server    *server.Server
}

func NewServer(cfg Config) *Server {
	if cfg.Match == nil {
		cfg.Match = func(string) bool { return false }
	}
	ls := &Server{config: cfg}

	ls.handler = protocol.Handler{
		Initialize:                 ls.initialize,
		Initialized:                ls.initialized,
		Shutdown:                   ls.shutdown,
		SetTrace:                   ls.setTrace,
		TextDocumentDidOpen:        ls.textDocumentDidOpen,
		TextDocumentDidChange:      ls.textDocumentDidChange,
		TextDocumentDidClose:       ls.textDocumentDidClose,
		TextDocumentDidSave:        ls.textDocumentDidSave,
		TextDocumentDocumentSymbol: ls.textDocumentDocumentSymbol,
		TextDocumentFoldingRange:   ls.textDocumentFoldingRange,
	}

	ls.server = server.NewServer(&ls.handler, lsName, false)
	ls.workspace = workspace.New(".", cfg.Language, cfg.ParserOptions...)

	return ls
}

func (ls *Server) RunStdio() error {
	return ls.server.RunStdio()
}

func (ls *Server) RunTCP(address string) error {
	return ls.server.RunTCP(address)
}

// Workspace returns the documents the server knows about.
func (ls *Server) Workspace() *workspace.Workspace {
	return ls.workspace
}

func (ls *Server) initialize(ctx *glsp.Context, params *protocol.InitializeParams) (any, error) {
	rootDir := "."
	if params.RootPath != nil && *params.RootPath != "" {
		rootDir = *params.RootPath
	} else if params.RootURI != nil && *params.RootURI != "" {
		if path, err := uriToPath(*params.RootURI); err == nil {
			rootDir = path
		}
	}

	ls.workspace = workspace.New(rootDir, ls.config.Language, ls.config.ParserOptions...)

	capabilities := ls.handler.CreateServerCapabilities()

	capabilities.TextDocumentSync = &protocol.TextDocumentSyncOptions{
		OpenClose: boolPtr(true),
		Change:    syncKindPtr(protocol.TextDocumentSyncKindIncremental),
		Save: &protocol.SaveOptions{
			IncludeText: boolPtr(true),
		},
	}

	return protocol.InitializeResult{
		Capabilities: capabilities,
		ServerInfo: &protocol.InitializeResultServerInfo{
			Name:    lsName,
			Version: &ls.config.Version,
		},
	}, nil
}

func (ls *Server) initialized(ctx *glsp.Context, params *protocol.InitializedParams) error {
	if err := ls.workspace.ScanAll(context.Background(), ls.config.Match); err != nil {
		log.Errorf("scan %s: %v", ls.workspace.RootDir(), err)
	}
	log.Infof("scanned %d files under %s", len(ls.workspace.Paths()), ls.workspace.RootDir())
	return nil
}

func (ls *Server) shutdown(ctx *glsp.Context) error {
	protocol.SetTraceValue(protocol.TraceValueOff)
	return nil
}

func (ls *Server) setTrace(ctx *glsp.Context, params *protocol.SetTraceParams) error {
	protocol.SetTraceValue(params.Value)
	return nil
}

func (ls *Server) textDocumentDidOpen(ctx *glsp.Context, params *protocol.DidOpenTextDocumentParams) error {
	path, err := uriToPath(params.TextDocument.URI)
	if err != nil {
		return nil
	}
	doc, err := ls.workspace.SetFile(path, params.TextDocument.Version, []byte(params.TextDocument.Text))
	if err != nil {
		return err
	}
	ls.publishDiagnostics(ctx, params.TextDocument.URI, doc)
	return nil
}

func (ls *Server) textDocumentDidChange(ctx *glsp.Context, params *protocol.DidChangeTextDocumentParams) error {
	path, err := uriToPath(params.TextDocument.URI)
	if err != nil {
		return nil
	}
	prev := ls.workspace.GetFile(path)
	if prev == nil {
		log.Warningf("change to unopened document %s", params.TextDocument.URI)
		return nil
	}

	content := prev.Content
	whole := false
	var edits []workspace.TextEdit
	for _, change := range params.ContentChanges {
		switch change := change.(type) {
		case protocol.TextDocumentContentChangeEventWhole:
			content = []byte(change.Text)
			edits = nil
			whole = true
		case protocol.TextDocumentContentChangeEvent:
			start := offsetAt(content, change.Range.Start)
			end := max(start, offsetAt(content, change.Range.End))
			edits = append(edits, workspace.TextEdit{StartByte: start, OldEndByte: end, Text: change.Text})
			content = replace(content, start, end, change.Text)
		}
	}

	version := params.TextDocument.Version
	var doc *workspace.Document
	if whole {
		doc, err = ls.workspace.SetFile(path, version, content)
	} else {
		doc, err = ls.workspace.EditFile(path, version, edits...)
	}
	if err != nil {
		return err
	}
	ls.publishDiagnostics(ctx, params.TextDocument.URI, doc)
	return nil
}

// replace returns a new slice; content is shared with stored documents.
func replace(content []byte, start, end int, text string) []byte {
	out := make([]byte, 0, len(content)-(end-start)+len(text))
	out = append(out, content[:start]...)
	out = append(out, text...)
	return append(out, content[end:]...)
}

func (ls *Server) textDocumentDidClose(ctx *glsp.Context, params *protocol.DidCloseTextDocumentParams) error {
	path, err := uriToPath(params.TextDocument.URI)
	if err != nil {
		return nil
	}
	if _, err := os.Stat(path); err != nil {
		ls.workspace.RemoveFile(path)
	} else if _, err := ls.workspace.ScanFile(path); err != nil {
		log.Warningf("%v", err)
	}
	ctx.Notify(protocol.ServerTextDocumentPublishDiagnostics, protocol.PublishDiagnosticsParams{
		URI:         params.TextDocument.URI,
		Diagnostics: []protocol.Diagnostic{},
	})
	return nil
}

func (ls *Server) textDocumentDidSave(ctx *glsp.Context, params *protocol.DidSaveTextDocumentParams) error {
	path, err := uriToPath(params.TextDocument.URI)
	if err != nil {
		return nil
	}
	var doc *workspace.Document
	if params.Text != nil {
		doc, err = ls.workspace.UpdateFile(path, []byte(*params.Text))
	} else {
		doc, err = ls.workspace.ScanFile(path)
	}
	if err != nil {
		return err
	}
	ls.publishDiagnostics(ctx, params.TextDocument.URI, doc)
	return nil
}

func (ls *Server) textDocumentDocumentSymbol(ctx *glsp.Context, params *protocol.DocumentSymbolParams) (any, error) {
	doc := ls.document(params.TextDocument.URI)
	if doc == nil {
		return nil, nil
	}
	return documentSymbols(doc), nil
}

func (ls *Server) textDocumentFoldingRange(ctx *glsp.Context, params *protocol.FoldingRangeParams) ([]protocol.FoldingRange, error) {
	doc := ls.document(params.TextDocument.URI)
	if doc == nil {
		return nil, nil
	}
	return foldingRanges(doc), nil
}

func (ls *Server) document(uri protocol.DocumentUri) *workspace.Document {
	path, err := uriToPath(uri)
	if err != nil {
		return nil
	}
	return ls.workspace.GetFile(path)
}

func uriToPath(uri string) (string, error) {
	if strings.HasPrefix(uri, "file://") {
		parsed, err := url.Parse(uri)
		if err != nil {
			return "", err
		}
		return filepath.Clean(parsed.Path), nil
	}
	return uri, nil
}

func boolPtr(b bool) *bool {
	return &b
}

func syncKindPtr(k protocol.TextDocumentSyncKind) *protocol.TextDocumentSyncKind {
	return &k
}
