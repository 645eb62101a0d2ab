package sitter

import "errors"

// Parse only fails for the conditions below. Malformed input is never an
// error: it produces ERROR and MISSING nodes in the returned tree.
var (
	ErrNoLanguage           = errors.New("parser has no language")
	ErrIncompatibleLanguage = errors.New("incompatible language")
	ErrCorruptLanguage      = errors.New("corrupt language")
	ErrInputTooLarge        = errors.New("input too large")
)
