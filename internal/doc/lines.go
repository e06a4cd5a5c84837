package doc

// insertLineBreak links a newly-inserted newline cell into the line-break
// index: it walks Prev/Next (via the character chain, not the line index)
// to find its nearest neighboring newlines already present in the index,
// and patches both sides symmetrically. Begin and End always participate
// as anchors, so this walk always terminates.
func insertLineBreak(s Snapshot, id ID) Snapshot {
	cell, _ := s.chars.Lookup(id)

	prevLB := cell.Prev
	for {
		if _, ok := s.lineBreaks.Lookup(prevLB); ok {
			break
		}
		c, ok := s.chars.Lookup(prevLB)
		if !ok {
			break
		}
		prevLB = c.Prev
	}

	nextLB := cell.Next
	for {
		if _, ok := s.lineBreaks.Lookup(nextLB); ok {
			break
		}
		c, ok := s.chars.Lookup(nextLB)
		if !ok {
			break
		}
		nextLB = c.Next
	}

	s.lineBreaks = s.lineBreaks.Insert(id, LineBreak{Prev: prevLB, Next: nextLB})

	prevEntry, _ := s.lineBreaks.Lookup(prevLB)
	prevEntry.Next = id
	s.lineBreaks = s.lineBreaks.Insert(prevLB, prevEntry)

	nextEntry, _ := s.lineBreaks.Lookup(nextLB)
	nextEntry.Prev = id
	s.lineBreaks = s.lineBreaks.Insert(nextLB, nextEntry)

	return s
}

// removeLineBreak removes id's line-break entry and relinks its two
// neighbors across it.
func removeLineBreak(s Snapshot, id ID) Snapshot {
	entry, ok := s.lineBreaks.Lookup(id)
	if !ok {
		return s
	}
	s.lineBreaks = s.lineBreaks.Remove(id)

	prevEntry, ok := s.lineBreaks.Lookup(entry.Prev)
	if ok {
		prevEntry.Next = entry.Next
		s.lineBreaks = s.lineBreaks.Insert(entry.Prev, prevEntry)
	}
	nextEntry, ok := s.lineBreaks.Lookup(entry.Next)
	if ok {
		nextEntry.Prev = entry.Prev
		s.lineBreaks = s.lineBreaks.Insert(entry.Next, nextEntry)
	}
	return s
}
