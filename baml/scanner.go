package baml

import "bytes"

// Scanners report the token length and how many bytes past pos they looked
// at. Looking at the end of input counts as one byte past it.

// scanRawString recognizes #"..."# strings. Any number of hashes may be
// used and the closing quote needs the same number; an identifier may be
// glued to the front, as in jinja#"...".
func scanRawString(src []byte, pos int) (int, int, bool) {
	i := pos
	if isLetter(src[i]) {
		for i < len(src) && isWordByte(src[i]) {
			i++
		}
	}
	hashes := 0
	for i < len(src) && src[i] == '#' {
		i++
		hashes++
	}
	if hashes == 0 || i >= len(src) || src[i] != '"' {
		return 0, i - pos + 1, false
	}
	for i++; i < len(src); i++ {
		if src[i] != '"' {
			continue
		}
		n := 0
		for n < hashes && i+1+n < len(src) && src[i+1+n] == '#' {
			n++
		}
		if n == hashes {
			end := i + 1 + hashes - pos
			return end, end, true
		}
	}
	return 0, len(src) - pos + 1, false
}

// scanJinja recognizes {{ ... }} up to the first closing braces.
func scanJinja(src []byte, pos int) (int, int, bool) {
	return scanDelimited(src, pos, "{{", "}}")
}

// scanBlockComment recognizes {// ... //}.
func scanBlockComment(src []byte, pos int) (int, int, bool) {
	return scanDelimited(src, pos, "{//", "//}")
}

func scanDelimited(src []byte, pos int, open, close string) (int, int, bool) {
	if ok, seen := hasPrefixAt(src, pos, open); !ok {
		return 0, seen, false
	}
	body := pos + len(open)
	end := bytes.Index(src[body:], []byte(close))
	if end < 0 {
		return 0, len(src) - pos + 1, false
	}
	n := len(open) + end + len(close)
	return n, n, true
}

// hasPrefixAt reports whether src[pos:] starts with prefix and how many
// bytes it compared.
func hasPrefixAt(src []byte, pos int, prefix string) (bool, int) {
	for i := 0; i < len(prefix); i++ {
		if pos+i >= len(src) || src[pos+i] != prefix[i] {
			return false, i + 1
		}
	}
	return true, len(prefix)
}

func isLetter(b byte) bool {
	return 'a' <= b && b <= 'z' || 'A' <= b && b <= 'Z'
}

func isWordByte(b byte) bool {
	return isLetter(b) || '0' <= b && b <= '9' || b == '_' || b == '-'
}
