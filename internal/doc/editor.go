package doc

// siteGenerator is the minimal surface Editor needs from a Site: a single
// id per call. Kept as an interface so tests can supply a deterministic
// fake without importing internal/ident.
type siteGenerator interface {
	Generate() ID
}

// Editor is a per-editor (not per-document) helper that keeps attribute
// and annotation identity stable across successive command batches, so a
// collaborator that re-derives its annotations from scratch each pass
// (e.g. a highlighter re-scanning after every edit) only emits the delta
// as commands instead of a fresh Decl/Mark flood every time.
//
// Declaration interning is intentionally an editor-layer concern, not a
// CRDT one: convergence only requires that propagated ids agree across
// replicas, not that equal payloads share an id across different editors.
type Editor struct {
	site siteGenerator

	prevAttrs, curAttrs map[string]ID // payload key -> declaration id
	prevMarks, curMarks map[markKey]ID
	attrByID            map[ID]Attribute
}

type markKey struct {
	begin, end, attr ID
}

// NewEditor creates an Editor that mints new ids from site.
func NewEditor(site siteGenerator) *Editor {
	return &Editor{
		site:      site,
		prevAttrs: map[string]ID{},
		curAttrs:  map[string]ID{},
		prevMarks: map[markKey]ID{},
		curMarks:  map[markKey]ID{},
		attrByID:  map[ID]Attribute{},
	}
}

// AttrID returns the id for attr, reusing one from the current or previous
// batch if the payload is unchanged, and appends a Decl command to cs when
// a new id must be minted.
func (e *Editor) AttrID(cs CommandSet, attr Attribute) (ID, CommandSet) {
	key := attr.key()
	if id, ok := e.curAttrs[key]; ok {
		return id, cs
	}
	if id, ok := e.prevAttrs[key]; ok {
		e.curAttrs[key] = id
		return id, cs
	}
	id := e.site.Generate()
	e.curAttrs[key] = id
	e.attrByID[id] = attr
	cs = append(cs, Decl{ID: id, Attribute: attr})
	return id, cs
}

// Mark returns the id for an annotation covering [beg, end] with the given
// attribute id, reusing one from the current or previous batch when the
// (beg, end, attr) triple is unchanged, and appends a Mark command to cs
// when a new id must be minted.
func (e *Editor) Mark(cs CommandSet, beg, end, attr ID) (ID, CommandSet) {
	key := markKey{beg, end, attr}
	if id, ok := e.curMarks[key]; ok {
		return id, cs
	}
	if id, ok := e.prevMarks[key]; ok {
		e.curMarks[key] = id
		return id, cs
	}
	id := e.site.Generate()
	e.curMarks[key] = id
	cs = append(cs, Mark{ID: id, Annotation: Annotation{Begin: beg, End: end, AttributeID: attr}})
	return id, cs
}

// MarkAttr is a convenience that interns attr via AttrID and then marks
// [beg, end] with the resulting declaration id.
func (e *Editor) MarkAttr(cs CommandSet, beg, end ID, attr Attribute) (ID, CommandSet) {
	attrID, cs := e.AttrID(cs, attr)
	return e.Mark(cs, beg, end, attrID)
}

// EndEdit rotates the current batch's interning tables to "previous",
// starts a fresh "current" table, and appends DelDecl/DelMark commands for
// every previous-batch entry that was not carried into the batch just
// ended — i.e. the payloads and ranges a fresh scan no longer produced.
func (e *Editor) EndEdit(cs CommandSet) CommandSet {
	for key, id := range e.prevMarks {
		if _, carried := e.curMarks[key]; !carried {
			cs = append(cs, DelMark{ID: id})
		}
	}
	for key, id := range e.prevAttrs {
		if _, carried := e.curAttrs[key]; !carried {
			cs = append(cs, DelDecl{ID: id})
			delete(e.attrByID, id)
		}
	}
	e.prevAttrs, e.curAttrs = e.curAttrs, map[string]ID{}
	e.prevMarks, e.curMarks = e.curMarks, map[markKey]ID{}
	return cs
}
