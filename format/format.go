// Package format renders parse trees and their syntax errors.
package format

import (
	"encoding"
	"fmt"
	"io"
	"sort"

	"github.com/dhamidi/sapling/sitter"
)

// Document is a parsed source file.
type Document struct {
	Path   string
	Source []byte
	Tree   *sitter.Tree
}

type Encoder interface {
	encoding.TextMarshaler
	Encode(doc Document) error
}

var encoders = map[string]func(io.Writer) Encoder{
	"sexp":        func(w io.Writer) Encoder { return NewSExpEncoder(w) },
	"json":        func(w io.Writer) Encoder { return NewJSONEncoder(w) },
	"text":        func(w io.Writer) Encoder { return NewLineEncoder(w) },
	"diagnostics": func(w io.Writer) Encoder { return NewDiagnosticsEncoder(w) },
}

// Names lists the formats New accepts.
func Names() []string {
	names := make([]string, 0, len(encoders))
	for name := range encoders {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// New returns the encoder registered under name.
func New(name string, w io.Writer) (Encoder, error) {
	mk, ok := encoders[name]
	if !ok {
		return nil, fmt.Errorf("unknown format %q (want one of %v)", name, Names())
	}
	return mk(w), nil
}

func write(w io.Writer, m encoding.TextMarshaler) error {
	text, err := m.MarshalText()
	if err != nil {
		return err
	}
	_, err = w.Write(text)
	return err
}
