package doc

import "testing"

func mkID(site uint16, clock uint64) ID {
	return ID(uint64(site)<<48 | clock)
}

// Scenario 1: single insert.
func TestScenario_SingleInsert(t *testing.T) {
	snap := New()
	batch := CommandSet{Insert{ID: mkID(1, 3), After: Begin, Before: End, Chr: 'a'}}
	snap, err := Integrate(snap, batch)
	if err != nil {
		t.Fatalf("Integrate: %v", err)
	}
	if got := snap.Render(); got != "a" {
		t.Fatalf("Render() = %q, want %q", got, "a")
	}
	cell, ok := snap.Lookup(mkID(1, 3))
	if !ok {
		t.Fatalf("cell (1,3) missing")
	}
	if cell.Prev != Begin || cell.Next != End {
		t.Fatalf("cell (1,3) prev/next = %v/%v, want Begin/End", cell.Prev, cell.Next)
	}
}

// Scenario 2: concurrent inserts at the same gap converge regardless of
// integration order.
func TestScenario_ConcurrentInsertsSameGap(t *testing.T) {
	a := Insert{ID: mkID(1, 3), After: Begin, Before: End, Chr: 'a'}
	b := Insert{ID: mkID(2, 3), After: Begin, Before: End, Chr: 'b'}

	for _, batch := range []CommandSet{{a, b}, {b, a}} {
		snap, err := Integrate(New(), batch)
		if err != nil {
			t.Fatalf("Integrate: %v", err)
		}
		if got := snap.Render(); got != "ab" {
			t.Fatalf("Render() = %q, want %q (batch order %v)", got, "ab", batch)
		}
	}
}

// Scenario 3: insert then delete.
func TestScenario_InsertThenDelete(t *testing.T) {
	snap, err := Integrate(New(), CommandSet{
		Insert{ID: mkID(1, 3), After: Begin, Before: End, Chr: 'a'},
		DelChar{ID: mkID(1, 3)},
	})
	if err != nil {
		t.Fatalf("Integrate: %v", err)
	}
	if got := snap.Render(); got != "" {
		t.Fatalf("Render() = %q, want empty", got)
	}
	it := NewAllIterator(snap, mkID(1, 3))
	if it.IsVisible() {
		t.Fatalf("tombstoned cell should not be visible")
	}
}

// Scenario 4: interleaved inserts from two sites.
func TestScenario_InterleavedSites(t *testing.T) {
	batch := CommandSet{
		Insert{ID: mkID(1, 3), After: Begin, Before: End, Chr: 'a'},
		Insert{ID: mkID(1, 4), After: mkID(1, 3), Before: End, Chr: 'b'},
		Insert{ID: mkID(2, 3), After: Begin, Before: End, Chr: 'X'},
		Insert{ID: mkID(2, 4), After: mkID(2, 3), Before: End, Chr: 'Y'},
	}
	snap, err := Integrate(New(), batch)
	if err != nil {
		t.Fatalf("Integrate: %v", err)
	}
	if got := snap.Render(); got != "abXY" {
		t.Fatalf("Render() = %q, want %q", got, "abXY")
	}
}

// Scenario 5: mark/unmark range.
func TestScenario_MarkUnmark(t *testing.T) {
	snap, err := Integrate(New(), CommandSet{
		Insert{ID: mkID(1, 3), After: Begin, Before: End, Chr: 'a'},
		Insert{ID: mkID(1, 4), After: mkID(1, 3), Before: End, Chr: 'b'},
		Insert{ID: mkID(1, 5), After: mkID(1, 4), Before: End, Chr: 'c'},
		Decl{ID: mkID(1, 6), Attribute: Attribute{Type: AttrTags, Tags: []string{"kw"}}},
		Mark{ID: mkID(1, 7), Annotation: Annotation{Begin: mkID(1, 3), End: mkID(1, 5), AttributeID: mkID(1, 6)}},
	})
	if err != nil {
		t.Fatalf("Integrate: %v", err)
	}
	for _, cid := range []ID{mkID(1, 3), mkID(1, 4), mkID(1, 5)} {
		anns, ok := snap.Annotations(cid)
		if !ok {
			t.Fatalf("cell %v missing", cid)
		}
		if !containsID(anns, mkID(1, 7)) {
			t.Fatalf("cell %v annotations = %v, want to contain (1,7)", cid, anns)
		}
	}

	snap, err = Integrate(snap, CommandSet{DelMark{ID: mkID(1, 7)}})
	if err != nil {
		t.Fatalf("Integrate DelMark: %v", err)
	}
	for _, cid := range []ID{mkID(1, 3), mkID(1, 4), mkID(1, 5)} {
		anns, _ := snap.Annotations(cid)
		if len(anns) != 0 {
			t.Fatalf("cell %v annotations after DelMark = %v, want empty", cid, anns)
		}
	}
}

// Scenario 6: line index.
func TestScenario_LineIndex(t *testing.T) {
	snap, err := Integrate(New(), CommandSet{
		Insert{ID: mkID(1, 3), After: Begin, Before: End, Chr: 'a'},
		Insert{ID: mkID(1, 4), After: mkID(1, 3), Before: End, Chr: '\n'},
		Insert{ID: mkID(1, 5), After: mkID(1, 4), Before: End, Chr: 'b'},
	})
	if err != nil {
		t.Fatalf("Integrate: %v", err)
	}
	li := NewLineIterator(snap, mkID(1, 5))
	if li.ID() != mkID(1, 4) {
		t.Fatalf("LineIterator start of line from 'b' = %v, want newline cell %v", li.ID(), mkID(1, 4))
	}
	li.MovePrev()
	if li.ID() != Begin {
		t.Fatalf("LineIterator prev from first newline = %v, want Begin", li.ID())
	}
}

func containsID(ids []ID, target ID) bool {
	for _, x := range ids {
		if x == target {
			return true
		}
	}
	return false
}

// Sentinel persistence and list consistency, from the quantified
// invariants.
func TestSentinelPersistence(t *testing.T) {
	snap := New()
	beginCell, _ := snap.Lookup(Begin)
	endCell, _ := snap.Lookup(End)
	if beginCell.Prev != Begin {
		t.Fatalf("Begin.Prev = %v, want Begin", beginCell.Prev)
	}
	if endCell.Next != End {
		t.Fatalf("End.Next = %v, want End", endCell.Next)
	}
	it := NewAllIterator(snap, Begin)
	it.MoveNext()
	if it.ID() != End {
		t.Fatalf("empty document Begin.Next = %v, want End", it.ID())
	}
}

func TestListConsistencyAfterInserts(t *testing.T) {
	snap, err := Integrate(New(), CommandSet{
		Insert{ID: mkID(1, 3), After: Begin, Before: End, Chr: 'a'},
		Insert{ID: mkID(1, 4), After: mkID(1, 3), Before: End, Chr: 'b'},
		Insert{ID: mkID(1, 5), After: mkID(1, 3), Before: mkID(1, 4), Chr: 'z'},
	})
	if err != nil {
		t.Fatalf("Integrate: %v", err)
	}
	ids := []ID{Begin, mkID(1, 3), mkID(1, 5), mkID(1, 4), End}
	for i, cid := range ids {
		cell, ok := snap.Lookup(cid)
		if !ok {
			t.Fatalf("cell %v missing", cid)
		}
		if i > 0 {
			prevCell, _ := snap.Lookup(ids[i-1])
			if prevCell.Next != cid {
				t.Fatalf("ids[%d].prev.next = %v, want %v", i, prevCell.Next, cid)
			}
			_ = prevCell
		}
		if i < len(ids)-1 {
			nextCell, _ := snap.Lookup(ids[i+1])
			if nextCell.Prev != cid {
				t.Fatalf("ids[%d].next.prev = %v, want %v", i, nextCell.Prev, cid)
			}
		}
		_ = cell
	}
}

// Idempotence: integrating the same batch twice is a no-op the second
// time, per SameTotalIdentity.
func TestIdempotence(t *testing.T) {
	batch := CommandSet{
		Insert{ID: mkID(1, 3), After: Begin, Before: End, Chr: 'a'},
		Insert{ID: mkID(1, 4), After: mkID(1, 3), Before: End, Chr: 'b'},
	}
	once, err := Integrate(New(), batch)
	if err != nil {
		t.Fatalf("Integrate once: %v", err)
	}
	twice, err := Integrate(once, batch)
	if err != nil {
		t.Fatalf("Integrate twice: %v", err)
	}
	if !once.SameTotalIdentity(twice) {
		t.Fatalf("re-integrating an already-applied batch should be a no-op")
	}
}

// Commutativity of disjoint-site commands.
func TestCommutativityDisjointSites(t *testing.T) {
	a := Insert{ID: mkID(1, 3), After: Begin, Before: End, Chr: 'a'}
	b := Insert{ID: mkID(2, 3), After: Begin, Before: End, Chr: 'b'}

	ab, err := Integrate(New(), CommandSet{a})
	if err != nil {
		t.Fatalf("Integrate a: %v", err)
	}
	ab, err = Integrate(ab, CommandSet{b})
	if err != nil {
		t.Fatalf("Integrate b after a: %v", err)
	}

	ba, err := Integrate(New(), CommandSet{b})
	if err != nil {
		t.Fatalf("Integrate b: %v", err)
	}
	ba, err = Integrate(ba, CommandSet{a})
	if err != nil {
		t.Fatalf("Integrate a after b: %v", err)
	}

	if ab.Render() != ba.Render() {
		t.Fatalf("order-dependent result: %q vs %q", ab.Render(), ba.Render())
	}
}

// Render round-trip: with no Marks and no deletes, Render equals the
// concatenation of inserted characters in effective order.
func TestRenderRoundTrip(t *testing.T) {
	batch := CommandSet{
		Insert{ID: mkID(1, 3), After: Begin, Before: End, Chr: 'h'},
		Insert{ID: mkID(1, 4), After: mkID(1, 3), Before: End, Chr: 'i'},
	}
	snap, err := Integrate(New(), batch)
	if err != nil {
		t.Fatalf("Integrate: %v", err)
	}
	if got := snap.Render(); got != "hi" {
		t.Fatalf("Render() = %q, want %q", got, "hi")
	}
}

func TestDuplicateInsertIsNoOp(t *testing.T) {
	ins := Insert{ID: mkID(1, 3), After: Begin, Before: End, Chr: 'a'}
	snap, err := Integrate(New(), CommandSet{ins, ins})
	if err != nil {
		t.Fatalf("Integrate: %v", err)
	}
	if got := snap.Render(); got != "a" {
		t.Fatalf("Render() = %q, want %q", got, "a")
	}
}

func TestDeleteUnknownIDIsNoOp(t *testing.T) {
	snap, err := Integrate(New(), CommandSet{DelChar{ID: mkID(9, 9)}})
	if err != nil {
		t.Fatalf("Integrate: %v", err)
	}
	if got := snap.Render(); got != "" {
		t.Fatalf("Render() = %q, want empty", got)
	}
}

func TestInsertUnknownAnchorIsCausalityViolation(t *testing.T) {
	_, err := Integrate(New(), CommandSet{
		Insert{ID: mkID(1, 3), After: mkID(9, 9), Before: End, Chr: 'a'},
	})
	if err == nil {
		t.Fatalf("expected an error for an unknown anchor")
	}
}

func TestSentinelOverwriteRejected(t *testing.T) {
	_, err := Integrate(New(), CommandSet{
		Insert{ID: Begin, After: Begin, Before: End, Chr: 'x'},
	})
	if err == nil {
		t.Fatalf("expected an error inserting over a sentinel id")
	}
	_, err = Integrate(New(), CommandSet{
		Insert{ID: mkID(0, 5), After: Begin, Before: End, Chr: 'x'},
	})
	if err == nil {
		t.Fatalf("expected an error for site-0 insert")
	}
}

func TestMakeInsertStringAndDelete(t *testing.T) {
	site := &fakeSite{}
	var cs CommandSet
	_, cs = MakeInsertString(cs, site, "abc", Begin, End)
	snap, err := Integrate(New(), cs)
	if err != nil {
		t.Fatalf("Integrate bulk insert: %v", err)
	}
	if got := snap.Render(); got != "abc" {
		t.Fatalf("Render() after bulk insert = %q, want %q", got, "abc")
	}

	a, _ := snap.Lookup(Begin)
	firstID := a.Next
	it := NewAllIterator(snap, firstID)
	it.MoveNext()
	it.MoveNext()
	lastID := it.ID() // third inserted cell

	var delCS CommandSet
	delCS = MakeDelete(delCS, snap, firstID, lastID)
	snap, err = Integrate(snap, delCS)
	if err != nil {
		t.Fatalf("Integrate MakeDelete: %v", err)
	}
	if got := snap.Render(); got != "c" {
		t.Fatalf("Render() after MakeDelete[first,last) = %q, want %q", got, "c")
	}
}

type fakeSite struct{ clock uint64 }

func (s *fakeSite) GenerateBlock(n uint64) (ID, ID) {
	first := mkID(7, s.clock)
	s.clock += n
	return first, mkID(7, s.clock)
}
