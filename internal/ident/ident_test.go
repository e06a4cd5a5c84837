package ident

import "testing"

func TestNewPacksSiteAndClock(t *testing.T) {
	id := New(7, 42)
	if got := id.Site(); got != 7 {
		t.Fatalf("Site() = %d, want 7", got)
	}
	if got := id.Clock(); got != 42 {
		t.Fatalf("Clock() = %d, want 42", got)
	}
}

func TestOrderMatchesSiteThenClock(t *testing.T) {
	low := New(1, 5)
	high := New(1, 6)
	if !(low < high) {
		t.Fatalf("New(1,5) should order before New(1,6)")
	}
	lowSite := New(1, 1000)
	highSite := New(2, 0)
	if !(lowSite < highSite) {
		t.Fatalf("site 1 should order before site 2 regardless of clock")
	}
}

func TestBeginEndAreDistinctSentinelsOnSiteZero(t *testing.T) {
	if Begin == End {
		t.Fatalf("Begin and End must be distinct")
	}
	if Begin.Site() != 0 || End.Site() != 0 {
		t.Fatalf("sentinels must live on site 0")
	}
}

func TestNewSiteRejectsZero(t *testing.T) {
	if _, err := NewSite(0); err == nil {
		t.Fatalf("NewSite(0) should reject the reserved sentinel site")
	}
}

func TestGenerateIsMonotonicPerSite(t *testing.T) {
	s, err := NewSite(3)
	if err != nil {
		t.Fatalf("NewSite: %v", err)
	}
	prev := s.Generate()
	for i := 0; i < 100; i++ {
		next := s.Generate()
		if next <= prev {
			t.Fatalf("Generate() not monotonic: %v then %v", prev, next)
		}
		if next.Site() != 3 {
			t.Fatalf("Generate() changed site: got %d, want 3", next.Site())
		}
		prev = next
	}
}

func TestGenerateBlockReservesContiguousRun(t *testing.T) {
	s, err := NewSite(5)
	if err != nil {
		t.Fatalf("NewSite: %v", err)
	}
	first, firstExcluded := s.GenerateBlock(10)
	if got := uint64(firstExcluded) - uint64(first); got != 10 {
		t.Fatalf("block span = %d, want 10", got)
	}
	// A subsequent Generate must not collide with the reserved block.
	next := s.Generate()
	if next < firstExcluded {
		t.Fatalf("Generate() after GenerateBlock returned %v, expected >= %v", next, firstExcluded)
	}
}

func TestGenerateBlockZeroIsNoOp(t *testing.T) {
	s, err := NewSite(9)
	if err != nil {
		t.Fatalf("NewSite: %v", err)
	}
	before := s.Generate()
	first, firstExcluded := s.GenerateBlock(0)
	if first != firstExcluded {
		t.Fatalf("zero-length block should report an empty span")
	}
	after := s.Generate()
	if after <= before {
		t.Fatalf("Generate() after a zero-length block must still advance")
	}
}

func TestNewProcessSiteAllocatesDistinctIDs(t *testing.T) {
	a, err := NewProcessSite()
	if err != nil {
		t.Fatalf("NewProcessSite: %v", err)
	}
	b, err := NewProcessSite()
	if err != nil {
		t.Fatalf("NewProcessSite: %v", err)
	}
	if a.SiteID() == b.SiteID() {
		t.Fatalf("NewProcessSite returned the same id twice: %d", a.SiteID())
	}
}
