package pmap

import "testing"

func TestInsertLookup(t *testing.T) {
	var m Map[int, string]
	m = m.Insert(3, "c")
	m = m.Insert(1, "a")
	m = m.Insert(2, "b")

	for k, want := range map[int]string{1: "a", 2: "b", 3: "c"} {
		got, ok := m.Lookup(k)
		if !ok || got != want {
			t.Fatalf("Lookup(%d) = %q, %v; want %q, true", k, got, ok, want)
		}
	}
	if _, ok := m.Lookup(99); ok {
		t.Fatalf("Lookup(99) should miss")
	}
}

func TestInsertReplacesValue(t *testing.T) {
	var m Map[int, string]
	m = m.Insert(1, "a")
	m2 := m.Insert(1, "z")
	if v, _ := m.Lookup(1); v != "a" {
		t.Fatalf("original map mutated: got %q", v)
	}
	if v, _ := m2.Lookup(1); v != "z" {
		t.Fatalf("replacement missing: got %q", v)
	}
}

func TestRemoveNoOpSharesIdentity(t *testing.T) {
	var m Map[int, string]
	m = m.Insert(1, "a").Insert(2, "b")
	m2 := m.Remove(99)
	if !m.SameIdentity(m2) {
		t.Fatalf("removing an absent key must return the same root identity")
	}
}

func TestRemove(t *testing.T) {
	var m Map[int, string]
	for i := 0; i < 20; i++ {
		m = m.Insert(i, string(rune('a'+i)))
	}
	m2 := m.Remove(10)
	if m2.Has(10) {
		t.Fatalf("key 10 should be gone")
	}
	if !m.Has(10) {
		t.Fatalf("original map should be unaffected by Remove")
	}
	if m2.Len() != m.Len()-1 {
		t.Fatalf("Len after remove = %d, want %d", m2.Len(), m.Len()-1)
	}
}

func TestForEachAscending(t *testing.T) {
	var m Map[int, struct{}]
	for _, k := range []int{5, 1, 4, 2, 3} {
		m = m.Insert(k, struct{}{})
	}
	var got []int
	m.ForEach(func(k int, _ struct{}) { got = append(got, k) })
	want := []int{1, 2, 3, 4, 5}
	if len(got) != len(want) {
		t.Fatalf("ForEach produced %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("ForEach produced %v, want %v", got, want)
		}
	}
}

func TestSameIdentityUnchangedSubtree(t *testing.T) {
	var m Map[int, string]
	m = m.Insert(1, "a").Insert(2, "b").Insert(3, "c")
	m2 := m.Insert(2, "b2")

	// The outer map identity changed (it must: we mutated a binding), but
	// the subtrees the mutation did not touch are shared with the original.
	if m.SameIdentity(m2) {
		t.Fatalf("mutated map must not share identity with original")
	}
	if m2.root.left != m.root.left || m2.root.right != m.root.right {
		t.Fatalf("untouched subtrees must be shared with the original")
	}
	same := m.Insert(2, "b") // re-insert identical key+value still allocates a node
	_ = same
}

func TestEmptyMap(t *testing.T) {
	var m Map[int, string]
	if m.Len() != 0 {
		t.Fatalf("zero value Map should be empty")
	}
	if _, ok := m.Lookup(1); ok {
		t.Fatalf("zero value Map should have no bindings")
	}
	if !m.SameIdentity(Map[int, string]{}) {
		t.Fatalf("two zero-value maps should share (nil) root identity")
	}
}

func TestInsertManyStaysBalanced(t *testing.T) {
	var m Map[int, int]
	const n = 1000
	for i := 0; i < n; i++ {
		m = m.Insert(i, i*i)
	}
	if m.Len() != n {
		t.Fatalf("Len() = %d, want %d", m.Len(), n)
	}
	if h := height(m.root); h > 2*int(log2(n+1))+2 {
		t.Fatalf("tree height %d looks unbalanced for n=%d", h, n)
	}
	for i := 0; i < n; i++ {
		v, ok := m.Lookup(i)
		if !ok || v != i*i {
			t.Fatalf("Lookup(%d) = %d, %v; want %d, true", i, v, ok, i*i)
		}
	}
}

func log2(n int) int {
	l := 0
	for n > 1 {
		n >>= 1
		l++
	}
	return l
}
