// Command c is the C adapter for the BAML language. Build it as a shared
// or static library and include tree_sitter_baml.h:
//
//	go build -buildmode=c-shared -o libtree_sitter_baml.so ./bindings/c
package main

func main() {}
