// Package doc implements the annotated replicated string: the character
// CRDT, its attribute/annotation layer, the line-break index, and the
// command integration function that produces new, structurally-shared
// Snapshots. Every other package in this module (session, transport,
// relay, highlight) is an external collaborator that only touches
// Snapshot's public surface.
package doc

import (
	"strconv"
	"strings"

	"github.com/caretdoc/caret/internal/ident"
	"github.com/caretdoc/caret/internal/pmap"
)

// ID re-exports ident.ID so callers of this package don't need to import
// internal/ident directly for the common case.
type ID = ident.ID

// Begin and End are the sentinel identifiers present in every Snapshot.
var (
	Begin = ident.Begin
	End   = ident.End
)

// Cell is one character slot in the document, addressed by ID.
type Cell struct {
	Chr     byte
	Visible bool

	// Prev/Next are the current document-order neighbors across all
	// cells, visible or not.
	Prev, Next ID

	// After/Before are the anchors the creator observed at insertion
	// time; they never change after creation.
	After, Before ID

	// Annotations is the set of annotation ids currently covering this
	// cell. A pmap set (rather than a slice) so membership checks and
	// the coherence invariant in annotation integration stay O(log n).
	Annotations pmap.Map[ID, struct{}]
}

// LineBreak links one newline-bearing cell to its neighboring newlines in
// document order. Begin and End always participate as anchors.
type LineBreak struct {
	Prev, Next ID
}

// AttrType classifies an attribute/annotation's payload variant.
type AttrType int

const (
	AttrTags AttrType = iota
	AttrDiagnostic
	AttrSideBufferRef
)

func (t AttrType) String() string {
	switch t {
	case AttrTags:
		return "tags"
	case AttrDiagnostic:
		return "diagnostic"
	case AttrSideBufferRef:
		return "side_buffer_ref"
	default:
		return "unknown"
	}
}

// Attribute is an immutable, content-addressable-at-the-editor-layer value
// describing a semantic fact about a range of text (a tag set, a
// diagnostic, a side-buffer reference).
type Attribute struct {
	Type AttrType

	// Tags holds AttrTags payloads: a small set of scope names, e.g.
	// {"keyword"} or {"string", "error"}.
	Tags []string

	// Diagnostic holds AttrDiagnostic payloads.
	Diagnostic *Diagnostic

	// SideBufferRef holds AttrSideBufferRef payloads.
	SideBufferRef *SideBufferRef
}

// Diagnostic is the AttrDiagnostic payload variant.
type Diagnostic struct {
	Severity string
	Message  string
}

// SideBufferRef is the AttrSideBufferRef payload variant: a pointer from a
// range of the primary document to a named side buffer (e.g. a linked
// definition or included file), with the line range of interest in that
// buffer.
type SideBufferRef struct {
	Name      string
	StartLine int
	EndLine   int
}

// key returns a content-address string for this attribute, used by Editor
// to intern equal payloads to the same id within one editor's lifetime.
// Not part of the core's convergence guarantee (see design notes): two
// editors may assign different ids to equal payloads, which is fine
// because annotations carry their attribute id, not the payload.
func (a Attribute) key() string {
	var b strings.Builder
	b.WriteString(a.Type.String())
	b.WriteByte('|')
	switch a.Type {
	case AttrTags:
		b.WriteString(strings.Join(a.Tags, ","))
	case AttrDiagnostic:
		if a.Diagnostic != nil {
			b.WriteString(a.Diagnostic.Severity)
			b.WriteByte('|')
			b.WriteString(a.Diagnostic.Message)
		}
	case AttrSideBufferRef:
		if a.SideBufferRef != nil {
			b.WriteString(a.SideBufferRef.Name)
			b.WriteByte('|')
			b.WriteString(strconv.Itoa(a.SideBufferRef.StartLine))
			b.WriteByte('|')
			b.WriteString(strconv.Itoa(a.SideBufferRef.EndLine))
		}
	}
	return b.String()
}

// Annotation attaches an Attribute to an inclusive range of cells.
type Annotation struct {
	Begin, End  ID
	AttributeID ID
}

// Snapshot is the immutable, structurally-shared state of one annotated
// replicated string. Every Integrate call returns a new Snapshot; the
// receiver is never mutated.
type Snapshot struct {
	chars      pmap.Map[ID, Cell]
	lineBreaks pmap.Map[ID, LineBreak]

	// attrs and annotations are maps keyed by AttrType, each value itself
	// an ordered map keyed by ID. A command that touches no bucket leaves
	// the outer map's identity unchanged; a command that touches one type's
	// bucket gives the outer map a new identity but leaves every other
	// type's bucket sharing its old identity.
	attrs       pmap.Map[AttrType, pmap.Map[ID, Attribute]]
	annotations pmap.Map[AttrType, pmap.Map[ID, Annotation]]
}

// New returns a fresh Snapshot containing only Begin and End, with
// Begin.Next = End and End.Prev = Begin.
func New() Snapshot {
	// Begin/End are sentinels, not real characters: Visible is false so
	// Render and VisibleIterator never surface them as content, but
	// AllIterator still reaches them (they anchor the document's ends).
	chars := pmap.Map[ID, Cell]{}
	chars = chars.Insert(Begin, Cell{Visible: false, Prev: Begin, Next: End, After: Begin, Before: End})
	chars = chars.Insert(End, Cell{Visible: false, Prev: Begin, Next: End, After: Begin, Before: End})
	lineBreaks := pmap.Map[ID, LineBreak]{}
	lineBreaks = lineBreaks.Insert(Begin, LineBreak{Prev: Begin, Next: End})
	lineBreaks = lineBreaks.Insert(End, LineBreak{Prev: Begin, Next: End})
	return Snapshot{
		chars:      chars,
		lineBreaks: lineBreaks,
	}
}

// Lookup returns the cell for id, if present.
func (s Snapshot) Lookup(id ID) (Cell, bool) {
	return s.chars.Lookup(id)
}

// Has reports whether id names a cell in this snapshot (visible or not).
func (s Snapshot) Has(id ID) bool {
	return s.chars.Has(id)
}

// SameContentIdentity is an O(1) test of whether the character map alone
// has changed between two snapshots.
func (s Snapshot) SameContentIdentity(other Snapshot) bool {
	return s.chars.SameIdentity(other.chars)
}

// SameTotalIdentity is an O(1) test over characters plus attribute and
// annotation buckets.
func (s Snapshot) SameTotalIdentity(other Snapshot) bool {
	return s.chars.SameIdentity(other.chars) &&
		s.attrs.SameIdentity(other.attrs) &&
		s.annotations.SameIdentity(other.annotations)
}

// Render concatenates the chr of every visible cell in document order.
func (s Snapshot) Render() string {
	return s.RenderRange(Begin, End)
}

// RenderRange concatenates the chr of visible cells from begin (inclusive)
// up to end (exclusive) in document order.
func (s Snapshot) RenderRange(begin, end ID) string {
	var b strings.Builder
	it := NewAllIterator(s, begin)
	for !it.IsEnd() && it.ID() != end {
		if it.IsVisible() {
			b.WriteByte(it.Value())
		}
		it.MoveNext()
	}
	return b.String()
}
