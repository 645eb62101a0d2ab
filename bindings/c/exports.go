//go:build cgo

package main

/*
#include <stdint.h>
#include <stdlib.h>
*/
import "C"

import "sync"

// Strings returned to C are allocated once per handle and never freed.
var (
	cstringsMu sync.Mutex
	cstrings   = make(map[string]*C.char)
)

func cstring(s string) *C.char {
	cstringsMu.Lock()
	defer cstringsMu.Unlock()
	if p, ok := cstrings[s]; ok {
		return p
	}
	p := C.CString(s)
	cstrings[s] = p
	return p
}

//export tree_sitter_baml
func tree_sitter_baml() C.uintptr_t {
	return C.uintptr_t(bamlHandle())
}

//export sapling_language_name
func sapling_language_name(h C.uintptr_t) *C.char {
	name, _, err := describe(uintptr(h))
	if err != nil {
		return nil
	}
	return cstring(name)
}

//export sapling_language_version
func sapling_language_version(h C.uintptr_t) *C.char {
	_, version, err := describe(uintptr(h))
	if err != nil {
		return nil
	}
	return cstring(version)
}
