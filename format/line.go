package format

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/dhamidi/sapling/sitter"
)

// LineEncoder writes one line per visible node, indented by depth:
//
//	kind<TAB>start-end[<TAB>"text"]
//
// Leaves carry their quoted text. Positions are 1-based line:column.
type LineEncoder struct {
	w   io.Writer
	doc Document
}

func NewLineEncoder(w io.Writer) *LineEncoder {
	return &LineEncoder{w: w}
}

func (e *LineEncoder) Encode(doc Document) error {
	e.doc = doc
	return write(e.w, e)
}

func (e *LineEncoder) MarshalText() ([]byte, error) {
	var sb strings.Builder
	c := e.doc.Tree.Walk()
	for {
		e.writeNode(&sb, c.Node(), c.Depth())
		if c.GotoFirstChild() || c.GotoNextSibling() {
			continue
		}
		for c.GotoParent() {
			if c.GotoNextSibling() {
				break
			}
		}
		if c.Depth() == 0 {
			break
		}
	}
	return []byte(sb.String()), nil
}

func (e *LineEncoder) writeNode(sb *strings.Builder, n sitter.Node, depth int) {
	sb.WriteString(strings.Repeat("  ", depth))
	fmt.Fprintf(sb, "%s\t%s-%s", nodeLabel(n), n.StartPoint(), n.EndPoint())
	if n.ChildCount() == 0 && !n.IsMissing() {
		fmt.Fprintf(sb, "\t%s", strconv.Quote(n.Content(e.doc.Source)))
	}
	sb.WriteByte('\n')
}

func nodeLabel(n sitter.Node) string {
	switch {
	case n.IsMissing():
		return "MISSING " + n.Kind()
	case n.IsExtra() && n.IsNamed():
		return n.Kind() + " (extra)"
	default:
		return n.Kind()
	}
}
