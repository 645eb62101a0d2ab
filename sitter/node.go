package sitter

import (
	"fmt"
	"strings"

	"github.com/dhamidi/sapling/grammar"
)

// Node is a visible node of a Tree. Hidden nodes, such as repetition helpers
// and productions whose name starts with an underscore, never appear as
// Nodes: their children are reported as children of the nearest visible
// ancestor. The zero Node is null.
type Node struct {
	tree  *Tree
	st    *subtree
	start Length
}

// Range is the span of a node.
type Range struct {
	StartByte  uint32
	EndByte    uint32
	StartPoint Point
	EndPoint   Point
}

func (n Node) IsNull() bool { return n.st == nil }

func (n Node) Symbol() grammar.Symbol { return n.st.symbol }
func (n Node) Kind() string           { return n.tree.language.SymbolName(n.st.symbol) }
func (n Node) IsNamed() bool          { return n.tree.language.named(n.st.symbol) }
func (n Node) IsError() bool          { return n.st.isError() }
func (n Node) IsMissing() bool        { return n.st.missing() }
func (n Node) IsExtra() bool          { return n.st.extra() }
func (n Node) HasError() bool         { return n.st.hasError() }
func (n Node) HasChanges() bool       { return n.st.changed() }

func (n Node) StartByte() uint32 { return n.start.Bytes }
func (n Node) EndByte() uint32   { return n.start.Bytes + n.st.size.Bytes }
func (n Node) StartPoint() Point { return n.start.Extent }
func (n Node) EndPoint() Point   { return n.start.add(n.st.size).Extent }
func (n Node) Tree() *Tree       { return n.tree }

func (n Node) Range() Range {
	return Range{
		StartByte:  n.StartByte(),
		EndByte:    n.EndByte(),
		StartPoint: n.StartPoint(),
		EndPoint:   n.EndPoint(),
	}
}

// Content returns the text of n in src, the text the tree was parsed from.
func (n Node) Content(src []byte) string {
	start, end := int(n.StartByte()), int(n.EndByte())
	if end > len(src) {
		end = len(src)
	}
	if start > end {
		return ""
	}
	return string(src[start:end])
}

func (n Node) visible() bool {
	return n.st.isError() || n.tree.language.visible(n.st.symbol)
}

func (n Node) same(o Node) bool {
	return n.st == o.st && n.start.Bytes == o.start.Bytes
}

// appendChildren appends the visible children of n, looking through hidden
// children.
func (n Node) appendChildren(out []Node, namedOnly bool) []Node {
	pos := n.start
	for _, c := range n.st.children {
		child := Node{tree: n.tree, st: c, start: pos}
		pos = pos.add(c.size)
		if child.visible() {
			if !namedOnly || child.IsNamed() {
				out = append(out, child)
			}
			continue
		}
		out = child.appendChildren(out, namedOnly)
	}
	return out
}

func (n Node) Children() []Node {
	if n.IsNull() {
		return nil
	}
	return n.appendChildren(nil, false)
}

func (n Node) NamedChildren() []Node {
	if n.IsNull() {
		return nil
	}
	return n.appendChildren(nil, true)
}

func (n Node) ChildCount() int      { return len(n.Children()) }
func (n Node) NamedChildCount() int { return len(n.NamedChildren()) }

func (n Node) Child(i int) Node {
	return nth(n.Children(), i)
}

func (n Node) NamedChild(i int) Node {
	return nth(n.NamedChildren(), i)
}

func nth(nodes []Node, i int) Node {
	if i < 0 || i >= len(nodes) {
		return Node{}
	}
	return nodes[i]
}

// ChildByKind returns the first child of the given kind.
func (n Node) ChildByKind(kind string) Node {
	for _, c := range n.Children() {
		if c.Kind() == kind {
			return c
		}
	}
	return Node{}
}

// Parent returns the nearest visible ancestor. Nodes keep no parent
// pointers, so it searches down from the root.
func (n Node) Parent() Node {
	if n.IsNull() {
		return Node{}
	}
	root := n.tree.RootNode()
	if n.same(root) {
		return Node{}
	}
	start, end := n.StartByte(), n.EndByte()
	var parent Node
	var find func(cur, vis Node) bool
	find = func(cur, vis Node) bool {
		pos := cur.start
		for _, c := range cur.st.children {
			child := Node{tree: n.tree, st: c, start: pos}
			pos = pos.add(c.size)
			if child.same(n) {
				parent = vis
				return true
			}
			if child.StartByte() > start || child.EndByte() < end || len(c.children) == 0 {
				continue
			}
			next := vis
			if child.visible() {
				next = child
			}
			if find(child, next) {
				return true
			}
		}
		return false
	}
	find(root, root)
	return parent
}

func (n Node) siblings() ([]Node, int) {
	parent := n.Parent()
	if parent.IsNull() {
		return nil, -1
	}
	children := parent.Children()
	for i, c := range children {
		if c.same(n) {
			return children, i
		}
	}
	return nil, -1
}

func (n Node) NextSibling() Node {
	children, i := n.siblings()
	if i < 0 {
		return Node{}
	}
	return nth(children, i+1)
}

func (n Node) PrevSibling() Node {
	children, i := n.siblings()
	if i < 0 {
		return Node{}
	}
	return nth(children, i-1)
}

func (n Node) NextNamedSibling() Node {
	children, i := n.siblings()
	if i < 0 {
		return Node{}
	}
	for _, c := range children[i+1:] {
		if c.IsNamed() {
			return c
		}
	}
	return Node{}
}

// DescendantForByteRange returns the smallest visible node that contains
// the range [start, end] and extends past start.
func (n Node) DescendantForByteRange(start, end uint32) Node {
	if n.IsNull() || start < n.StartByte() || end > n.EndByte() {
		return Node{}
	}
	node := n
	for {
		found := false
		for _, c := range node.Children() {
			if c.EndByte() < end || c.EndByte() <= start {
				continue
			}
			if c.StartByte() > start {
				break
			}
			node, found = c, true
			break
		}
		if !found {
			return node
		}
	}
}

// String renders the named nodes below n as an s-expression, the format used
// by tree-sitter test corpora.
func (n Node) String() string {
	if n.IsNull() {
		return "<null>"
	}
	var sb strings.Builder
	n.writeSExp(&sb)
	return sb.String()
}

func (n Node) writeSExp(sb *strings.Builder) {
	if n.IsMissing() {
		if n.IsNamed() {
			fmt.Fprintf(sb, "(MISSING %s)", n.Kind())
		} else {
			fmt.Fprintf(sb, "(MISSING %q)", n.Kind())
		}
		return
	}
	sb.WriteString("(")
	sb.WriteString(n.Kind())
	for _, c := range n.Children() {
		if !c.IsNamed() && !c.IsMissing() {
			continue
		}
		sb.WriteByte(' ')
		c.writeSExp(sb)
	}
	sb.WriteString(")")
}
