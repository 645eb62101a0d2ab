package lsp

import (
	"bytes"
	"unicode/utf16"
	"unicode/utf8"

	"github.com/dhamidi/sapling/sitter"
	protocol "github.com/tliron/glsp/protocol_3_16"
)

// LSP positions count UTF-16 code units within a line; trees count bytes.

// offsetAt returns the byte offset of pos in content. Characters past the
// end of a line clamp to the line end, lines past the end of the document
// clamp to its length, and a position inside a surrogate pair moves to the
// start of the character.
func offsetAt(content []byte, pos protocol.Position) int {
	i := 0
	for line := protocol.UInteger(0); line < pos.Line; line++ {
		nl := bytes.IndexByte(content[i:], '\n')
		if nl < 0 {
			return len(content)
		}
		i += nl + 1
	}
	units := protocol.UInteger(0)
	for i < len(content) && content[i] != '\n' {
		r, size := utf8.DecodeRune(content[i:])
		n := protocol.UInteger(utf16.RuneLen(r))
		if units+n > pos.Character {
			break
		}
		units += n
		i += size
	}
	return i
}

func utf16Len(text []byte) protocol.UInteger {
	n := protocol.UInteger(0)
	for len(text) > 0 {
		r, size := utf8.DecodeRune(text)
		n += protocol.UInteger(utf16.RuneLen(r))
		text = text[size:]
	}
	return n
}

// positionAt converts a tree position, whose column counts bytes, into an
// LSP position.
func positionAt(content []byte, offset uint32, p sitter.Point) protocol.Position {
	end := min(int(offset), len(content))
	lineStart := max(0, end-int(p.Column))
	return protocol.Position{
		Line:      p.Row,
		Character: utf16Len(content[lineStart:end]),
	}
}

func rangeOf(content []byte, r sitter.Range) protocol.Range {
	return protocol.Range{
		Start: positionAt(content, r.StartByte, r.StartPoint),
		End:   positionAt(content, r.EndByte, r.EndPoint),
	}
}
