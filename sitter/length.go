package sitter

import (
	"bytes"
	"fmt"
)

// Point is a position in a document. Row and Column count from zero; Column
// is measured in bytes.
type Point struct {
	Row    uint32
	Column uint32
}

func (p Point) String() string {
	return fmt.Sprintf("%d:%d", p.Row+1, p.Column+1)
}

// Less reports whether p comes before o.
func (p Point) Less(o Point) bool {
	return p.Row < o.Row || (p.Row == o.Row && p.Column < o.Column)
}

func (p Point) add(o Point) Point {
	if o.Row > 0 {
		return Point{Row: p.Row + o.Row, Column: o.Column}
	}
	return Point{Row: p.Row, Column: p.Column + o.Column}
}

func (p Point) sub(o Point) Point {
	if p.Row > o.Row {
		return Point{Row: p.Row - o.Row, Column: p.Column}
	}
	if p.Column >= o.Column {
		return Point{Column: p.Column - o.Column}
	}
	return Point{}
}

// Length is a span of text measured both in bytes and in rows and columns.
// Subtree sizes are Lengths, which keeps them independent of where the
// subtree sits in the document.
type Length struct {
	Bytes  uint32
	Extent Point
}

func (l Length) add(o Length) Length {
	return Length{Bytes: l.Bytes + o.Bytes, Extent: l.Extent.add(o.Extent)}
}

func (l Length) sub(o Length) Length {
	var out Length
	if l.Bytes >= o.Bytes {
		out.Bytes = l.Bytes - o.Bytes
	}
	out.Extent = l.Extent.sub(o.Extent)
	return out
}

func (l Length) saturatingSub(o Length) Length {
	if l.Bytes > o.Bytes {
		return l.sub(o)
	}
	return Length{}
}

// measure returns the Length of text.
func measure(text []byte) Length {
	l := Length{Bytes: uint32(len(text))}
	nl := bytes.LastIndexByte(text, '\n')
	if nl < 0 {
		l.Extent.Column = uint32(len(text))
		return l
	}
	l.Extent.Row = uint32(bytes.Count(text, []byte{'\n'}))
	l.Extent.Column = uint32(len(text) - nl - 1)
	return l
}

// lengthAt returns the Length of src[:offset].
func lengthAt(src []byte, offset int) Length {
	if offset > len(src) {
		offset = len(src)
	}
	return measure(src[:offset])
}
