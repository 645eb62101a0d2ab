package sitter

type reuseEntry struct {
	node  *subtree
	start uint32
	index int
}

// reuseCursor walks an edited old tree in document order while the parser
// moves forward through the new text. It never moves backwards.
type reuseCursor struct {
	stack []reuseEntry
}

func newReuseCursor(root *subtree) *reuseCursor {
	return &reuseCursor{stack: []reuseEntry{{node: root}}}
}

func (c *reuseCursor) done() bool {
	return len(c.stack) == 0
}

func (c *reuseCursor) top() reuseEntry {
	return c.stack[len(c.stack)-1]
}

// advance moves to the subtree following the current one.
func (c *reuseCursor) advance() {
	last := c.top()
	offset := last.start + last.node.size.Bytes
	for len(c.stack) > 0 {
		popped := c.stack[len(c.stack)-1]
		c.stack = c.stack[:len(c.stack)-1]
		if len(c.stack) == 0 {
			return
		}
		parent := c.top().node
		if next := popped.index + 1; next < len(parent.children) {
			c.stack = append(c.stack, reuseEntry{node: parent.children[next], start: offset, index: next})
			return
		}
	}
}

// descend moves to the first child of the current subtree.
func (c *reuseCursor) descend() bool {
	last := c.top()
	if len(last.node.children) == 0 {
		return false
	}
	c.stack = append(c.stack, reuseEntry{node: last.node.children[0], start: last.start})
	return true
}

// seek moves to the outermost subtree that starts at or after pos and is
// not empty.
func (c *reuseCursor) seek(pos uint32) {
	for !c.done() {
		e := c.top()
		switch end := e.start + e.node.size.Bytes; {
		case end <= pos:
			c.advance()
		case e.start < pos:
			if !c.descend() {
				c.advance()
			}
		default:
			return
		}
	}
}

// token returns an unchanged leaf starting at pos, leaving the cursor in
// place so a larger subtree can still be considered at the same position.
func (c *reuseCursor) token(pos uint32) *subtree {
	c.seek(pos)
	if c.done() || c.top().start != pos {
		return nil
	}
	leaf := c.top().node.firstLeaf()
	if leaf == nil || !leaf.reusable() || leaf.isError() {
		return nil
	}
	return leaf
}

// subtree returns the largest subtree starting at pos that accept approves.
// Rejected subtrees are descended into.
func (c *reuseCursor) subtree(pos uint32, accept func(*subtree) bool) *subtree {
	for {
		c.seek(pos)
		if c.done() || c.top().start != pos {
			return nil
		}
		if n := c.top().node; accept(n) {
			return n
		}
		if !c.descend() {
			return nil
		}
	}
}
