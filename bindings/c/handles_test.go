package main

import (
	"testing"

	"github.com/dhamidi/sapling/baml"
	"golang.org/x/sync/errgroup"
)

func TestEmbeddedGrammarLoads(t *testing.T) {
	if _, err := baml.Compile(); err != nil {
		t.Fatalf("compile embedded grammar: %v", err)
	}
	if baml.Language() == nil {
		t.Fatal("Language() returned nil")
	}
	if bamlHandle() == 0 {
		t.Fatal("handle is zero")
	}
}

func TestBamlHandleIsStable(t *testing.T) {
	if _, err := baml.Compile(); err != nil {
		t.Fatalf("compile embedded grammar: %v", err)
	}
	h := bamlHandle()
	if h == 0 {
		t.Fatal("handle is zero")
	}
	handles := make([]uintptr, 16)
	var g errgroup.Group
	for i := range handles {
		g.Go(func() error {
			handles[i] = bamlHandle()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		t.Fatal(err)
	}
	for i, got := range handles {
		if got != h {
			t.Errorf("call %d returned %d, want %d", i, got, h)
		}
	}
}

func TestCanLoadGrammar(t *testing.T) {
	l, ok := languages.lookup(bamlHandle())
	if !ok || l != baml.Language() {
		t.Fatalf("handle does not resolve to the BAML language")
	}
	name, version, err := describe(bamlHandle())
	if err != nil || name != "baml" || version == "" {
		t.Errorf("describe = %q, %q, %v", name, version, err)
	}
}

func TestUnknownHandle(t *testing.T) {
	if _, ok := languages.lookup(0); ok {
		t.Error("handle 0 resolved")
	}
	if _, _, err := describe(1 << 40); err == nil {
		t.Error("describe accepted an unknown handle")
	}
}
