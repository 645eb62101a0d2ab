package format

import (
	"encoding/json"
	"io"

	"github.com/dhamidi/sapling/sitter"
)

type JSONEncoder struct {
	w   io.Writer
	doc Document

	// NamedOnly drops punctuation and keyword leaves.
	NamedOnly bool
}

func NewJSONEncoder(w io.Writer) *JSONEncoder {
	return &JSONEncoder{w: w}
}

func (e *JSONEncoder) Encode(doc Document) error {
	e.doc = doc
	return write(e.w, e)
}

func (e *JSONEncoder) MarshalText() ([]byte, error) {
	text, err := json.MarshalIndent(e.buildDocument(), "", "  ")
	if err != nil {
		return nil, err
	}
	return append(text, '\n'), nil
}

type jsonDocument struct {
	Path     string           `json:"path,omitempty"`
	Language string           `json:"language"`
	HasError bool             `json:"hasError"`
	Errors   []jsonDiagnostic `json:"errors,omitempty"`
	Root     *jsonNode        `json:"root"`
}

type jsonNode struct {
	Kind     string      `json:"kind"`
	Named    bool        `json:"named,omitempty"`
	Span     jsonSpan    `json:"span"`
	Text     string      `json:"text,omitempty"`
	Error    bool        `json:"error,omitempty"`
	Missing  bool        `json:"missing,omitempty"`
	Extra    bool        `json:"extra,omitempty"`
	Children []*jsonNode `json:"children,omitempty"`
}

type jsonSpan struct {
	Start     jsonPosition `json:"start"`
	End       jsonPosition `json:"end"`
	StartByte uint32       `json:"startByte"`
	EndByte   uint32       `json:"endByte"`
}

// Lines and columns are 1-based.
type jsonPosition struct {
	Line   int `json:"line"`
	Column int `json:"column"`
}

type jsonDiagnostic struct {
	Message string   `json:"message"`
	Missing bool     `json:"missing,omitempty"`
	Span    jsonSpan `json:"span"`
}

func (e *JSONEncoder) buildDocument() jsonDocument {
	t := e.doc.Tree
	return jsonDocument{
		Path:     e.doc.Path,
		Language: t.Language().Name(),
		HasError: t.HasError(),
		Errors:   buildDiagnostics(t.Errors()),
		Root:     e.nodeToJSON(t.RootNode()),
	}
}

func (e *JSONEncoder) nodeToJSON(n sitter.Node) *jsonNode {
	jn := &jsonNode{
		Kind:    n.Kind(),
		Named:   n.IsNamed(),
		Span:    spanOf(n.Range()),
		Error:   n.IsError(),
		Missing: n.IsMissing(),
		Extra:   n.IsExtra(),
	}
	children := n.Children()
	if e.NamedOnly {
		children = n.NamedChildren()
	}
	if n.ChildCount() == 0 && !n.IsMissing() {
		jn.Text = n.Content(e.doc.Source)
	}
	for _, c := range children {
		jn.Children = append(jn.Children, e.nodeToJSON(c))
	}
	return jn
}

func buildDiagnostics(errs []sitter.SyntaxError) []jsonDiagnostic {
	result := make([]jsonDiagnostic, len(errs))
	for i, se := range errs {
		result[i] = jsonDiagnostic{
			Message: se.Message,
			Missing: se.Missing,
			Span: spanOf(sitter.Range{
				StartByte:  se.StartByte,
				EndByte:    se.EndByte,
				StartPoint: se.StartPoint,
				EndPoint:   se.EndPoint,
			}),
		}
	}
	return result
}

func spanOf(r sitter.Range) jsonSpan {
	return jsonSpan{
		Start:     positionOf(r.StartPoint),
		End:       positionOf(r.EndPoint),
		StartByte: r.StartByte,
		EndByte:   r.EndByte,
	}
}

func positionOf(p sitter.Point) jsonPosition {
	return jsonPosition{Line: int(p.Row) + 1, Column: int(p.Column) + 1}
}
