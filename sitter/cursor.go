package sitter

type cursorFrame struct {
	node     Node
	siblings []Node
	index    int
}

// TreeCursor walks the visible nodes of a tree. It remembers the path from
// the node it was created on, so moving to the parent is cheap.
type TreeCursor struct {
	stack []cursorFrame
}

func NewTreeCursor(n Node) *TreeCursor {
	c := &TreeCursor{}
	c.Reset(n)
	return c
}

// Reset moves the cursor to n and forgets the path walked so far.
func (c *TreeCursor) Reset(n Node) {
	c.stack = append(c.stack[:0], cursorFrame{node: n, siblings: []Node{n}})
}

func (c *TreeCursor) Node() Node {
	return c.stack[len(c.stack)-1].node
}

// Depth is the number of GotoFirstChild calls without a matching GotoParent.
func (c *TreeCursor) Depth() int {
	return len(c.stack) - 1
}

func (c *TreeCursor) GotoFirstChild() bool {
	children := c.Node().Children()
	if len(children) == 0 {
		return false
	}
	c.stack = append(c.stack, cursorFrame{node: children[0], siblings: children})
	return true
}

func (c *TreeCursor) GotoNextSibling() bool {
	if len(c.stack) < 2 {
		return false
	}
	top := &c.stack[len(c.stack)-1]
	if top.index+1 >= len(top.siblings) {
		return false
	}
	top.index++
	top.node = top.siblings[top.index]
	return true
}

func (c *TreeCursor) GotoParent() bool {
	if len(c.stack) < 2 {
		return false
	}
	c.stack = c.stack[:len(c.stack)-1]
	return true
}

// Preorder calls fn for n and every visible descendant, parents first. fn
// returns false to skip the children of a node.
func Preorder(n Node, fn func(Node) bool) {
	c := NewTreeCursor(n)
	for {
		if fn(c.Node()) && c.GotoFirstChild() {
			continue
		}
		for !c.GotoNextSibling() {
			if !c.GotoParent() {
				return
			}
		}
	}
}
