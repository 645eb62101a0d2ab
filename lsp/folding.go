package lsp

import (
	"github.com/dhamidi/sapling/sitter"
	"github.com/dhamidi/sapling/workspace"
	protocol "github.com/tliron/glsp/protocol_3_16"
)

var foldable = map[string]string{
	"class_declaration":    string(protocol.FoldingRangeKindRegion),
	"enum_declaration":     string(protocol.FoldingRangeKindRegion),
	"value_declaration":    string(protocol.FoldingRangeKindRegion),
	"template_declaration": string(protocol.FoldingRangeKindRegion),
	"type_builder_block":   string(protocol.FoldingRangeKindRegion),
	"expr_block":           string(protocol.FoldingRangeKindRegion),
	"map_expression":       string(protocol.FoldingRangeKindRegion),
	"array_expression":     string(protocol.FoldingRangeKindRegion),
	"class_constructor":    string(protocol.FoldingRangeKindRegion),
	"string_literal":       string(protocol.FoldingRangeKindRegion),
	"block_comment":        string(protocol.FoldingRangeKindComment),
}

var closers = map[string]bool{"}": true, "]": true, ")": true}

// foldingRanges returns a range per multi-line block. A closing bracket on
// the last line stays visible when the range is folded.
func foldingRanges(doc *workspace.Document) []protocol.FoldingRange {
	out := []protocol.FoldingRange{}
	sitter.Preorder(doc.Tree.RootNode(), func(n sitter.Node) bool {
		kind, ok := foldable[n.Kind()]
		if !ok {
			return true
		}
		start, end := n.StartPoint().Row, n.EndPoint().Row
		if count := n.ChildCount(); count > 0 {
			last := n.Child(count - 1)
			if closers[last.Kind()] && last.StartPoint().Row == end && end > start {
				end--
			}
		}
		if end > start {
			out = append(out, protocol.FoldingRange{
				StartLine: start,
				EndLine:   end,
				Kind:      &kind,
			})
		}
		return true
	})
	return out
}
