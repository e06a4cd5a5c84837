package doc

// AllIterator traverses every cell, visible or not, bounded by Begin/End.
type AllIterator struct {
	snap Snapshot
	pos  ID
	cur  Cell
}

// NewAllIterator positions the iterator at where.
func NewAllIterator(s Snapshot, where ID) *AllIterator {
	cur, _ := s.chars.Lookup(where)
	return &AllIterator{snap: s, pos: where, cur: cur}
}

func (it *AllIterator) IsEnd() bool   { return it.pos == End }
func (it *AllIterator) IsBegin() bool { return it.pos == Begin }
func (it *AllIterator) ID() ID        { return it.pos }
func (it *AllIterator) Value() byte   { return it.cur.Chr }
func (it *AllIterator) IsVisible() bool { return it.cur.Visible }

func (it *AllIterator) MoveNext() {
	it.pos = it.cur.Next
	it.cur, _ = it.snap.chars.Lookup(it.pos)
}

func (it *AllIterator) MovePrev() {
	it.pos = it.cur.Prev
	it.cur, _ = it.snap.chars.Lookup(it.pos)
}

// VisibleIterator skips non-visible (tombstoned) cells.
type VisibleIterator struct {
	it AllIterator
}

// NewVisibleIterator positions at where; if where is not visible, it walks
// backward to the nearest visible cell or Begin.
func NewVisibleIterator(s Snapshot, where ID) *VisibleIterator {
	v := &VisibleIterator{it: *NewAllIterator(s, where)}
	for !v.it.IsBegin() && !v.it.IsVisible() {
		v.it.MovePrev()
	}
	return v
}

func (v *VisibleIterator) IsEnd() bool   { return v.it.IsEnd() }
func (v *VisibleIterator) IsBegin() bool { return v.it.IsBegin() }
func (v *VisibleIterator) ID() ID        { return v.it.ID() }
func (v *VisibleIterator) Value() byte   { return v.it.Value() }

// MoveNext advances at least one cell, continuing until a visible cell or
// End.
func (v *VisibleIterator) MoveNext() {
	if !v.it.IsEnd() {
		v.it.MoveNext()
	}
	for !v.it.IsEnd() && !v.it.IsVisible() {
		v.it.MoveNext()
	}
}

// MovePrev is symmetric, terminating at Begin.
func (v *VisibleIterator) MovePrev() {
	if !v.it.IsBegin() {
		v.it.MovePrev()
	}
	for !v.it.IsBegin() && !v.it.IsVisible() {
		v.it.MovePrev()
	}
}

// Next returns a copy of v advanced by one step, leaving v unmodified.
func (v *VisibleIterator) Next() *VisibleIterator {
	cp := *v
	cp.MoveNext()
	return &cp
}

// Prev returns a copy of v moved back by one step, leaving v unmodified.
func (v *VisibleIterator) Prev() *VisibleIterator {
	cp := *v
	cp.MovePrev()
	return &cp
}

// LineIterator positions at the start of the line containing a given
// identifier and steps by newline via the line-break index. It is the one
// iterator flavor not intrinsic to the character CRDT alone: it depends on
// the line-break index maintained alongside Insert/DelChar of '\n' cells.
type LineIterator struct {
	snap Snapshot
	id   ID
}

// NewLineIterator walks backward (via VisibleIterator, then the line-break
// index) from where until it lands on a cell present in the line-break
// index — i.e. the start of where's line.
func NewLineIterator(s Snapshot, where ID) *LineIterator {
	v := NewVisibleIterator(s, where)
	_, ok := s.lineBreaks.Lookup(v.ID())
	for !ok {
		v.MovePrev()
		_, ok = s.lineBreaks.Lookup(v.ID())
	}
	return &LineIterator{snap: s, id: v.ID()}
}

func (l *LineIterator) IsEnd() bool   { return l.id == End }
func (l *LineIterator) IsBegin() bool { return l.id == Begin }
func (l *LineIterator) ID() ID        { return l.id }

func (l *LineIterator) MovePrev() {
	if l.id == Begin {
		return
	}
	entry, ok := l.snap.lineBreaks.Lookup(l.id)
	if !ok {
		return
	}
	l.id = entry.Prev
}

func (l *LineIterator) MoveNext() {
	if l.id == End {
		return
	}
	entry, ok := l.snap.lineBreaks.Lookup(l.id)
	if !ok {
		return
	}
	l.id = entry.Next
}

// Next returns a copy of l advanced by one line.
func (l *LineIterator) Next() *LineIterator {
	cp := *l
	cp.MoveNext()
	return &cp
}

// AsVisibleIterator returns a VisibleIterator positioned at l's id.
func (l *LineIterator) AsVisibleIterator() *VisibleIterator {
	return NewVisibleIterator(l.snap, l.id)
}

// AsAllIterator returns an AllIterator positioned at l's id.
func (l *LineIterator) AsAllIterator() *AllIterator {
	return NewAllIterator(l.snap, l.id)
}
