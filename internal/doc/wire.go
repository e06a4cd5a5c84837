package doc

import (
	"encoding/json"
	"fmt"
)

// wireCommand is the on-the-wire shape of one Command: a kind
// discriminator plus the fields relevant to that kind. Unused fields are
// omitted by the zero-value omitempty tags below.
type wireCommand struct {
	Kind   string          `json:"kind"`
	ID     ID              `json:"id"`
	After  ID              `json:"after,omitempty"`
	Before ID              `json:"before,omitempty"`
	Chr    *byte           `json:"chr,omitempty"`
	Attr   *wireAttribute  `json:"attribute,omitempty"`
	Anno   *wireAnnotation `json:"annotation,omitempty"`
}

type wireAttribute struct {
	Type          AttrType       `json:"type"`
	Tags          []string       `json:"tags,omitempty"`
	Diagnostic    *Diagnostic    `json:"diagnostic,omitempty"`
	SideBufferRef *SideBufferRef `json:"side_buffer_ref,omitempty"`
}

type wireAnnotation struct {
	Begin     ID `json:"begin"`
	End       ID `json:"end"`
	Attribute ID `json:"attribute"`
}

// EncodeCommandSet serializes a CommandSet preserving command kind, all
// identifiers bitwise, the attribute tag variant and its variant-specific
// payload, and batch order.
func EncodeCommandSet(cs CommandSet) ([]byte, error) {
	wire := make([]wireCommand, 0, len(cs))
	for _, cmd := range cs {
		switch c := cmd.(type) {
		case Insert:
			chr := c.Chr
			wire = append(wire, wireCommand{Kind: "insert", ID: c.ID, After: c.After, Before: c.Before, Chr: &chr})
		case DelChar:
			wire = append(wire, wireCommand{Kind: "del_char", ID: c.ID})
		case Decl:
			wire = append(wire, wireCommand{Kind: "decl", ID: c.ID, Attr: &wireAttribute{
				Type: c.Attribute.Type, Tags: c.Attribute.Tags,
				Diagnostic: c.Attribute.Diagnostic, SideBufferRef: c.Attribute.SideBufferRef,
			}})
		case DelDecl:
			wire = append(wire, wireCommand{Kind: "del_decl", ID: c.ID})
		case Mark:
			wire = append(wire, wireCommand{Kind: "mark", ID: c.ID, Anno: &wireAnnotation{
				Begin: c.Annotation.Begin, End: c.Annotation.End, Attribute: c.Annotation.AttributeID,
			}})
		case DelMark:
			wire = append(wire, wireCommand{Kind: "del_mark", ID: c.ID})
		default:
			return nil, fmt.Errorf("%w: cannot encode command type %T", ErrMalformedCommand, cmd)
		}
	}
	return json.Marshal(wire)
}

// DecodeCommandSet parses bytes produced by EncodeCommandSet. Malformed
// records (unknown kind, missing required fields) are rejected here, at
// the deserialization boundary, and never reach Integrate.
func DecodeCommandSet(data []byte) (CommandSet, error) {
	var wire []wireCommand
	if err := json.Unmarshal(data, &wire); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedCommand, err)
	}
	cs := make(CommandSet, 0, len(wire))
	for _, w := range wire {
		switch w.Kind {
		case "insert":
			if w.Chr == nil {
				return nil, fmt.Errorf("%w: insert missing chr", ErrMalformedCommand)
			}
			cs = append(cs, Insert{ID: w.ID, After: w.After, Before: w.Before, Chr: *w.Chr})
		case "del_char":
			cs = append(cs, DelChar{ID: w.ID})
		case "decl":
			if w.Attr == nil {
				return nil, fmt.Errorf("%w: decl missing attribute", ErrMalformedCommand)
			}
			cs = append(cs, Decl{ID: w.ID, Attribute: Attribute{
				Type: w.Attr.Type, Tags: w.Attr.Tags,
				Diagnostic: w.Attr.Diagnostic, SideBufferRef: w.Attr.SideBufferRef,
			}})
		case "del_decl":
			cs = append(cs, DelDecl{ID: w.ID})
		case "mark":
			if w.Anno == nil {
				return nil, fmt.Errorf("%w: mark missing annotation", ErrMalformedCommand)
			}
			cs = append(cs, Mark{ID: w.ID, Annotation: Annotation{
				Begin: w.Anno.Begin, End: w.Anno.End, AttributeID: w.Anno.Attribute,
			}})
		case "del_mark":
			cs = append(cs, DelMark{ID: w.ID})
		default:
			return nil, fmt.Errorf("%w: unknown command kind %q", ErrMalformedCommand, w.Kind)
		}
	}
	return cs, nil
}
