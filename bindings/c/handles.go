package main

import (
	"fmt"
	"sync"

	"github.com/dhamidi/sapling/baml"
	"github.com/dhamidi/sapling/sitter"
	"github.com/tliron/commonlog"
)

var log = commonlog.GetLogger("sapling.bindings")

// registry maps the integers handed to C callers to languages. A language
// keeps its handle for the life of the process, so repeated lookups return
// the same value. Zero is never a valid handle.
type registry struct {
	mu       sync.RWMutex
	next     uintptr
	byHandle map[uintptr]*sitter.Language
	byLang   map[*sitter.Language]uintptr
}

func newRegistry() *registry {
	return &registry{
		byHandle: make(map[uintptr]*sitter.Language),
		byLang:   make(map[*sitter.Language]uintptr),
	}
}

func (r *registry) register(l *sitter.Language) uintptr {
	r.mu.Lock()
	defer r.mu.Unlock()
	if h, ok := r.byLang[l]; ok {
		return h
	}
	r.next++
	r.byHandle[r.next] = l
	r.byLang[l] = r.next
	return r.next
}

func (r *registry) lookup(h uintptr) (*sitter.Language, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	l, ok := r.byHandle[h]
	return l, ok
}

var languages = newRegistry()

// bamlHandle returns the handle of the BAML language, or 0 if the language
// could not be built. Panics do not cross into C.
func bamlHandle() (h uintptr) {
	defer func() {
		if r := recover(); r != nil {
			log.Errorf("load baml language: %v", r)
			h = 0
		}
	}()
	return languages.register(baml.Language())
}

// describe returns the name and version of the language behind h.
func describe(h uintptr) (name, version string, err error) {
	l, ok := languages.lookup(h)
	if !ok {
		return "", "", fmt.Errorf("unknown language handle %d", h)
	}
	return l.Name(), l.Version().String(), nil
}
