package doc

import (
	"fmt"

	"github.com/caretdoc/caret/internal/pmap"
)

// Kind identifies a command's variant on the wire and during dispatch.
type Kind int

const (
	KindInsert Kind = iota
	KindDelChar
	KindDecl
	KindDelDecl
	KindMark
	KindDelMark
)

func (k Kind) String() string {
	switch k {
	case KindInsert:
		return "insert"
	case KindDelChar:
		return "del_char"
	case KindDecl:
		return "decl"
	case KindDelDecl:
		return "del_decl"
	case KindMark:
		return "mark"
	case KindDelMark:
		return "del_mark"
	default:
		return "unknown"
	}
}

// Command is one entry in a CommandSet. Concrete types below implement it.
type Command interface {
	Kind() Kind
}

// Insert places a new cell id between after and before, carrying chr.
type Insert struct {
	ID            ID
	After, Before ID
	Chr           byte
}

func (Insert) Kind() Kind { return KindInsert }

// DelChar marks a cell not visible (tombstone); idempotent, a no-op if id
// is unknown.
type DelChar struct{ ID ID }

func (DelChar) Kind() Kind { return KindDelChar }

// Decl records an attribute declaration under id.
type Decl struct {
	ID        ID
	Attribute Attribute
}

func (Decl) Kind() Kind { return KindDecl }

// DelDecl retracts a declaration; a no-op if id is unknown. Integration
// does not check whether live annotations still reference the declaration.
type DelDecl struct{ ID ID }

func (DelDecl) Kind() Kind { return KindDelDecl }

// Mark attaches an annotation to id's range.
type Mark struct {
	ID         ID
	Annotation Annotation
}

func (Mark) Kind() Kind { return KindMark }

// DelMark removes the annotation named by id; a no-op if unknown.
type DelMark struct{ ID ID }

func (DelMark) Kind() Kind { return KindDelMark }

// CommandSet is an ordered batch of commands, the unit of integration.
type CommandSet []Command

// MakeInsertString appends Insert commands for each byte of text, chained
// so the cells occupy a contiguous clock block in creator order. Returns
// the id of the first inserted cell (useful for repositioning a cursor)
// and the updated CommandSet. Equivalent to integrating one Insert per
// byte, one at a time.
func MakeInsertString(cs CommandSet, site interface {
	GenerateBlock(n uint64) (ID, ID)
}, text string, after, before ID) (ID, CommandSet) {
	if len(text) == 0 {
		return after, cs
	}
	first, _ := site.GenerateBlock(uint64(len(text)))
	prevAfter := after
	id := first
	for i := 0; i < len(text); i++ {
		cs = append(cs, Insert{ID: id, After: prevAfter, Before: before, Chr: text[i]})
		prevAfter = id
		id = ID(uint64(id) + 1)
	}
	return first, cs
}

// MakeDelete expands a range delete into one DelChar per identifier in
// current document order, inclusive of beg and exclusive of end. The
// source does not show MakeDelete's precise endpoint convention, so this
// package picks inclusive-beg/exclusive-end (see DESIGN.md).
func MakeDelete(cs CommandSet, snap Snapshot, beg, end ID) CommandSet {
	it := NewAllIterator(snap, beg)
	for !it.IsEnd() && it.ID() != end {
		cs = append(cs, DelChar{ID: it.ID()})
		it.MoveNext()
	}
	return cs
}

// Integrate applies batch to snap in order, producing a new Snapshot.
// Integrate never mutates snap; on error the returned Snapshot is the
// zero value and snap remains valid and usable.
func Integrate(snap Snapshot, batch CommandSet) (Snapshot, error) {
	cur := snap
	for _, cmd := range batch {
		var err error
		switch c := cmd.(type) {
		case Insert:
			cur, err = integrateInsert(cur, c)
		case DelChar:
			cur = integrateDelChar(cur, c.ID)
		case Decl:
			cur, err = integrateDecl(cur, c)
		case DelDecl:
			cur = integrateDelDecl(cur, c.ID)
		case Mark:
			cur, err = integrateMark(cur, c)
		case DelMark:
			cur = integrateDelMark(cur, c.ID)
		default:
			err = fmt.Errorf("%w: unrecognized command type %T", ErrMalformedCommand, cmd)
		}
		if err != nil {
			return Snapshot{}, err
		}
	}
	return cur, nil
}

func isSentinelOrReserved(id ID) bool {
	return id.Site() == 0
}

// integrateInsert implements the insert-placement rule: walk forward from
// after.Next up to and including before, and insert id
// immediately before the first candidate whose id compares greater than
// the new id (ties among concurrent siblings in the same gap are broken
// purely by identifier order, never by consulting the candidate's own
// anchors).
func integrateInsert(s Snapshot, cmd Insert) (Snapshot, error) {
	if isSentinelOrReserved(cmd.ID) {
		return Snapshot{}, ErrSentinelWrite
	}
	if existing, ok := s.chars.Lookup(cmd.ID); ok {
		_ = existing
		return s, nil // duplicate insert: idempotent no-op, never relinks
	}
	afterCell, ok := s.chars.Lookup(cmd.After)
	if !ok {
		return Snapshot{}, ErrCausality
	}
	if _, ok := s.chars.Lookup(cmd.Before); !ok {
		return Snapshot{}, ErrCausality
	}

	prevID := cmd.After
	candidate := afterCell.Next
	for candidate != cmd.Before {
		if candidate > cmd.ID {
			break
		}
		candCell, ok := s.chars.Lookup(candidate)
		if !ok {
			return Snapshot{}, ErrCausality
		}
		prevID = candidate
		candidate = candCell.Next
	}
	nextID := candidate

	newCell := Cell{
		Chr:     cmd.Chr,
		Visible: true,
		Prev:    prevID,
		Next:    nextID,
		After:   cmd.After,
		Before:  cmd.Before,
	}
	chars := s.chars.Insert(cmd.ID, newCell)

	prevCell, _ := chars.Lookup(prevID)
	prevCell.Next = cmd.ID
	chars = chars.Insert(prevID, prevCell)

	nextCell, _ := chars.Lookup(nextID)
	nextCell.Prev = cmd.ID
	chars = chars.Insert(nextID, nextCell)

	s.chars = chars
	if cmd.Chr == '\n' {
		s = insertLineBreak(s, cmd.ID)
	}
	return s, nil
}

func integrateDelChar(s Snapshot, id ID) Snapshot {
	cell, ok := s.chars.Lookup(id)
	if !ok || !cell.Visible {
		return s // unknown or already-tombstoned: idempotent no-op
	}
	wasLineBreak := cell.Chr == '\n'
	cell.Visible = false
	s.chars = s.chars.Insert(id, cell)
	if wasLineBreak {
		s = removeLineBreak(s, id)
	}
	return s
}

func integrateDecl(s Snapshot, cmd Decl) (Snapshot, error) {
	if isSentinelOrReserved(cmd.ID) {
		return Snapshot{}, ErrSentinelWrite
	}
	bucket, _ := s.attrs.Lookup(cmd.Attribute.Type)
	bucket = bucket.Insert(cmd.ID, cmd.Attribute)
	s.attrs = s.attrs.Insert(cmd.Attribute.Type, bucket)
	return s, nil
}

func integrateDelDecl(s Snapshot, id ID) Snapshot {
	var found bool
	var foundType AttrType
	s.attrs.ForEach(func(t AttrType, bucket pmap.Map[ID, Attribute]) {
		if bucket.Has(id) {
			found = true
			foundType = t
		}
	})
	if !found {
		return s
	}
	bucket, _ := s.attrs.Lookup(foundType)
	bucket = bucket.Remove(id)
	s.attrs = s.attrs.Insert(foundType, bucket)
	return s
}

func integrateMark(s Snapshot, cmd Mark) (Snapshot, error) {
	if isSentinelOrReserved(cmd.ID) {
		return Snapshot{}, ErrSentinelWrite
	}
	ann := cmd.Annotation
	attrType, ok := lookupAttributeType(s, ann.AttributeID)
	if !ok {
		return Snapshot{}, ErrCausality
	}

	bucket, _ := s.annotations.Lookup(attrType)
	bucket = bucket.Insert(cmd.ID, ann)
	s.annotations = s.annotations.Insert(attrType, bucket)

	it := NewAllIterator(s, ann.Begin)
	for {
		cell, ok := s.chars.Lookup(it.ID())
		if !ok {
			return Snapshot{}, ErrCausality
		}
		cell.Annotations = cell.Annotations.Insert(cmd.ID, struct{}{})
		s.chars = s.chars.Insert(it.ID(), cell)
		if it.ID() == ann.End {
			break
		}
		if it.IsEnd() {
			return Snapshot{}, ErrCausality
		}
		it.MoveNext()
	}
	return s, nil
}

func integrateDelMark(s Snapshot, id ID) Snapshot {
	var found bool
	var foundType AttrType
	var ann Annotation
	s.annotations.ForEach(func(t AttrType, bucket pmap.Map[ID, Annotation]) {
		if a, ok := bucket.Lookup(id); ok {
			found = true
			foundType = t
			ann = a
		}
	})
	if !found {
		return s
	}

	it := NewAllIterator(s, ann.Begin)
	for {
		cell, ok := s.chars.Lookup(it.ID())
		if ok {
			cell.Annotations = cell.Annotations.Remove(id)
			s.chars = s.chars.Insert(it.ID(), cell)
		}
		if it.ID() == ann.End || it.IsEnd() {
			break
		}
		it.MoveNext()
	}

	bucket, _ := s.annotations.Lookup(foundType)
	bucket = bucket.Remove(id)
	s.annotations = s.annotations.Insert(foundType, bucket)
	return s
}

func lookupAttributeType(s Snapshot, attrID ID) (AttrType, bool) {
	var found bool
	var foundType AttrType
	s.attrs.ForEach(func(t AttrType, bucket pmap.Map[ID, Attribute]) {
		if bucket.Has(attrID) {
			found = true
			foundType = t
		}
	})
	return foundType, found
}
