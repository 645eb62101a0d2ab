package lsp

import (
	"github.com/dhamidi/sapling/sitter"
	"github.com/dhamidi/sapling/workspace"
	"github.com/tliron/glsp"
	protocol "github.com/tliron/glsp/protocol_3_16"
)

func diagnostics(doc *workspace.Document) []protocol.Diagnostic {
	severity := protocol.DiagnosticSeverityError
	source := lsName
	out := []protocol.Diagnostic{}
	for _, se := range doc.Tree.Errors() {
		out = append(out, protocol.Diagnostic{
			Range: rangeOf(doc.Content, sitter.Range{
				StartByte:  se.StartByte,
				EndByte:    se.EndByte,
				StartPoint: se.StartPoint,
				EndPoint:   se.EndPoint,
			}),
			Severity: &severity,
			Source:   &source,
			Message:  se.Message,
		})
	}
	return out
}

func (ls *Server) publishDiagnostics(ctx *glsp.Context, uri protocol.DocumentUri, doc *workspace.Document) {
	diags := diagnostics(doc)
	version := protocol.UInteger(doc.Version)
	log.Debugf("publishing %d diagnostics for %s v%d", len(diags), uri, doc.Version)
	ctx.Notify(protocol.ServerTextDocumentPublishDiagnostics, protocol.PublishDiagnosticsParams{
		URI:         uri,
		Version:     &version,
		Diagnostics: diags,
	})
}
