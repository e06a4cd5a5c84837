package doc

// ForEachAnnotation invokes f(id, begin, end, attribute) for every
// annotation of the given type whose attribute declaration is still
// present. Order is unspecified.
func (s Snapshot) ForEachAnnotation(t AttrType, f func(id ID, begin, end ID, attr Attribute)) {
	bucket, ok := s.annotations.Lookup(t)
	if !ok {
		return
	}
	attrBucket, _ := s.attrs.Lookup(t)
	bucket.ForEach(func(id ID, ann Annotation) {
		attr, ok := attrBucket.Lookup(ann.AttributeID)
		if !ok {
			return
		}
		f(id, ann.Begin, ann.End, attr)
	})
}

// ForEachAttribute invokes f(id, attribute) for every declaration of the
// given type.
func (s Snapshot) ForEachAttribute(t AttrType, f func(id ID, attr Attribute)) {
	bucket, ok := s.attrs.Lookup(t)
	if !ok {
		return
	}
	bucket.ForEach(f)
}

// Annotations returns the set of annotation ids currently covering cell
// id, if the cell exists.
func (s Snapshot) Annotations(id ID) ([]ID, bool) {
	cell, ok := s.chars.Lookup(id)
	if !ok {
		return nil, false
	}
	var out []ID
	cell.Annotations.ForEach(func(annID ID, _ struct{}) {
		out = append(out, annID)
	})
	return out, true
}
