package sitter

// InputEdit describes one text replacement: the bytes between StartByte and
// OldEndByte were replaced by text ending at NewEndByte. Points give the
// same positions as rows and byte columns.
type InputEdit struct {
	StartByte   uint32
	OldEndByte  uint32
	NewEndByte  uint32
	StartPoint  Point
	OldEndPoint Point
	NewEndPoint Point
}

// NewInputEdit describes replacing src[start:oldEnd] with replacement.
func NewInputEdit(src []byte, start, oldEnd int, replacement []byte) InputEdit {
	if oldEnd < start {
		oldEnd = start
	}
	s := lengthAt(src, start)
	o := lengthAt(src, oldEnd)
	n := s.add(measure(replacement))
	return InputEdit{
		StartByte:   s.Bytes,
		OldEndByte:  o.Bytes,
		NewEndByte:  n.Bytes,
		StartPoint:  s.Extent,
		OldEndPoint: o.Extent,
		NewEndPoint: n.Extent,
	}
}

// DiffEdit returns the single edit that turns old into new, found by
// trimming their common prefix and suffix. ok is false when they are equal.
func DiffEdit(old, new []byte) (edit InputEdit, ok bool) {
	prefix := 0
	for prefix < len(old) && prefix < len(new) && old[prefix] == new[prefix] {
		prefix++
	}
	if prefix == len(old) && prefix == len(new) {
		return InputEdit{}, false
	}
	suffix := 0
	for suffix < len(old)-prefix && suffix < len(new)-prefix &&
		old[len(old)-1-suffix] == new[len(new)-1-suffix] {
		suffix++
	}
	return NewInputEdit(old, prefix, len(old)-suffix, new[prefix:len(new)-suffix]), true
}

// Apply returns a copy of src with the edited range replaced.
func (e InputEdit) Apply(src, replacement []byte) []byte {
	out := make([]byte, 0, len(src)-int(e.OldEndByte-e.StartByte)+len(replacement))
	out = append(out, src[:e.StartByte]...)
	out = append(out, replacement...)
	return append(out, src[e.OldEndByte:]...)
}

type edit struct {
	start, oldEnd, newEnd Length
}

func (e InputEdit) lengths() edit {
	ed := edit{
		start:  Length{Bytes: e.StartByte, Extent: e.StartPoint},
		oldEnd: Length{Bytes: e.OldEndByte, Extent: e.OldEndPoint},
		newEnd: Length{Bytes: e.NewEndByte, Extent: e.NewEndPoint},
	}
	if ed.oldEnd.Bytes < ed.start.Bytes {
		ed.oldEnd = ed.start
	}
	if ed.newEnd.Bytes < ed.start.Bytes {
		ed.newEnd = ed.start
	}
	return ed
}

// editSubtree returns a copy of st adjusted for e, which is relative to the
// start of st. Only children whose text or lookahead touches the edit are
// copied; the rest are shared. Inserted text is attributed to the first
// child touching the edit, later children only shrink.
func editSubtree(st *subtree, e edit) *subtree {
	c := st.clone()
	c.flags |= flagChanged
	pureInsertion := e.oldEnd.Bytes == e.start.Bytes
	if e.start.Bytes < st.size.Bytes || (e.start.Bytes == st.size.Bytes && pureInsertion) {
		c.size = e.newEnd.add(st.size.saturatingSub(e.oldEnd))
	}

	var left, right Length
	for i, child := range st.children {
		left = right
		right = left.add(child.size)
		if right.Bytes+child.lookahead < e.start.Bytes {
			continue
		}
		if left.Bytes > e.oldEnd.Bytes || (left.Bytes == e.oldEnd.Bytes && child.size.Bytes > 0 && i > 0) {
			break
		}
		ce := edit{
			start:  e.start.saturatingSub(left),
			oldEnd: e.oldEnd.saturatingSub(left),
			newEnd: e.newEnd.saturatingSub(left),
		}
		if right.Bytes > e.start.Bytes || (right.Bytes == e.start.Bytes && pureInsertion) {
			e.newEnd = e.start
			pureInsertion = false
		} else {
			ce.oldEnd = ce.start
			ce.newEnd = ce.start
		}
		c.children[i] = editSubtree(child, ce)
	}
	return c
}

// ApplyEdits applies a sequence of edits to t in order.
func ApplyEdits(t *Tree, edits ...InputEdit) *Tree {
	for _, e := range edits {
		t = t.Edit(e)
	}
	return t
}
