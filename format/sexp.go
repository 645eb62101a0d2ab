package format

import (
	"io"
)

// SExpEncoder writes the named nodes of a tree as one s-expression per
// document.
type SExpEncoder struct {
	w   io.Writer
	doc Document
}

func NewSExpEncoder(w io.Writer) *SExpEncoder {
	return &SExpEncoder{w: w}
}

func (e *SExpEncoder) Encode(doc Document) error {
	e.doc = doc
	return write(e.w, e)
}

func (e *SExpEncoder) MarshalText() ([]byte, error) {
	return []byte(e.doc.Tree.String() + "\n"), nil
}
