package lsp

import (
	"github.com/dhamidi/sapling/sitter"
	"github.com/dhamidi/sapling/workspace"
	protocol "github.com/tliron/glsp/protocol_3_16"
)

var valueKinds = map[string]protocol.SymbolKind{
	"function":     protocol.SymbolKindFunction,
	"test":         protocol.SymbolKindMethod,
	"client":       protocol.SymbolKindObject,
	"client<llm>":  protocol.SymbolKindObject,
	"retry_policy": protocol.SymbolKindObject,
	"generator":    protocol.SymbolKindModule,
}

// documentSymbols outlines the top-level declarations of doc.
func documentSymbols(doc *workspace.Document) []protocol.DocumentSymbol {
	out := []protocol.DocumentSymbol{}
	for _, n := range doc.Tree.RootNode().NamedChildren() {
		if sym, ok := declarationSymbol(doc.Content, n); ok {
			out = append(out, sym)
		}
	}
	return out
}

func declarationSymbol(src []byte, n sitter.Node) (protocol.DocumentSymbol, bool) {
	switch n.Kind() {
	case "class_declaration":
		sym := newSymbol(src, n, n.ChildByKind("identifier"), protocol.SymbolKindClass, "")
		for _, c := range n.NamedChildren() {
			if c.Kind() == "type_expression" {
				field := newSymbol(src, c, c.ChildByKind("identifier"), protocol.SymbolKindField,
					text(src, c.ChildByKind("field_type_chain")))
				sym.Children = append(sym.Children, field)
			}
		}
		return sym, true
	case "enum_declaration":
		sym := newSymbol(src, n, n.ChildByKind("identifier"), protocol.SymbolKindEnum, "")
		for _, c := range n.NamedChildren() {
			if c.Kind() == "enum_value" {
				sym.Children = append(sym.Children,
					newSymbol(src, c, c.ChildByKind("identifier"), protocol.SymbolKindEnumMember, ""))
			}
		}
		return sym, true
	case "value_declaration":
		keyword := text(src, n.ChildByKind("value_keyword"))
		kind, ok := valueKinds[keyword]
		if !ok {
			kind = protocol.SymbolKindObject
		}
		return newSymbol(src, n, n.ChildByKind("identifier"), kind, keyword), true
	case "template_declaration":
		return newSymbol(src, n, n.ChildByKind("identifier"), protocol.SymbolKindFunction, text(src, n.Child(0))), true
	case "type_alias":
		return newSymbol(src, n, n.ChildByKind("identifier"), protocol.SymbolKindTypeParameter,
			text(src, n.ChildByKind("field_type_chain"))), true
	case "expr_fn":
		return newSymbol(src, n, n.ChildByKind("identifier"), protocol.SymbolKindFunction, "fn"), true
	case "top_level_assignment":
		var name sitter.Node
		if let := n.ChildByKind("let_expr"); !let.IsNull() {
			name = let.ChildByKind("identifier")
		}
		return newSymbol(src, n, name, protocol.SymbolKindVariable, "let"), true
	}
	return protocol.DocumentSymbol{}, false
}

func newSymbol(src []byte, n, name sitter.Node, kind protocol.SymbolKind, detail string) protocol.DocumentSymbol {
	sym := protocol.DocumentSymbol{
		Kind:  kind,
		Range: rangeOf(src, n.Range()),
	}
	if name.IsNull() || name.IsMissing() {
		sym.Name = n.Kind()
		sym.SelectionRange = sym.Range
	} else {
		sym.Name = name.Content(src)
		sym.SelectionRange = rangeOf(src, name.Range())
	}
	if detail != "" {
		sym.Detail = &detail
	}
	return sym
}

func text(src []byte, n sitter.Node) string {
	if n.IsNull() {
		return ""
	}
	return n.Content(src)
}
