package format

import (
	"fmt"
	"io"
	"strings"
)

// DiagnosticsEncoder writes the syntax errors of a document as
// path:line:column: message lines, the format compilers use.
type DiagnosticsEncoder struct {
	w   io.Writer
	doc Document
}

func NewDiagnosticsEncoder(w io.Writer) *DiagnosticsEncoder {
	return &DiagnosticsEncoder{w: w}
}

func (e *DiagnosticsEncoder) Encode(doc Document) error {
	e.doc = doc
	return write(e.w, e)
}

func (e *DiagnosticsEncoder) MarshalText() ([]byte, error) {
	var sb strings.Builder
	path := e.doc.Path
	if path == "" {
		path = "<input>"
	}
	for _, se := range e.doc.Tree.Errors() {
		fmt.Fprintf(&sb, "%s:%s: %s\n", path, se.StartPoint, se.Message)
	}
	return []byte(sb.String()), nil
}
