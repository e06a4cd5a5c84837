// Package highlight implements a regex-driven tagging collaborator: given a
// set of (pattern, scope) rules, it rescans a Snapshot's rendered text and
// marks every match with an AttrTags annotation naming the scope.
//
// No pack repo uses RE2 or any third-party regex engine; Go's stdlib
// regexp is the ecosystem-standard choice here (the source used RE2 only
// because C++ has no built-in equivalent), so this stays on regexp.
package highlight

import (
	"regexp"

	"github.com/caretdoc/caret/internal/doc"
)

// Rule pairs a regular expression with the scope name to tag its matches
// with, e.g. {regexp.MustCompile(`\bfunc\b`), "keyword.go"}.
type Rule struct {
	Pattern *regexp.Regexp
	Scope   string
}

// Collaborator rescans a document and marks matches of its rules. It keeps
// its own Editor so repeated Scan calls reuse declaration and annotation
// ids for unchanged matches instead of flooding the batch with redundant
// Decl/Mark commands.
type Collaborator struct {
	editor *doc.Editor
	rules  []Rule
}

// siteGenerator is the minimal id source a Collaborator needs.
type siteGenerator interface {
	Generate() doc.ID
}

// New returns a Collaborator that mints ids from site and applies rules in
// order, first match wins per character (mirroring the source's
// scan-left-to-right, try-each-rule-in-order behavior).
func New(site siteGenerator, rules []Rule) *Collaborator {
	return &Collaborator{editor: doc.NewEditor(site), rules: rules}
}

// Scan rescans snap's visible text and returns the CommandSet of Decl/Mark
// commands (and DelDecl/DelMark for matches that disappeared since the
// last Scan) needed to bring the annotation layer up to date. The caller
// integrates the returned batch itself.
func (c *Collaborator) Scan(snap doc.Snapshot) doc.CommandSet {
	var cs doc.CommandSet

	text, ids := renderWithIDs(snap)

	pos := 0
	for pos < len(text) {
		matched := false
		for _, rule := range c.rules {
			loc := rule.Pattern.FindStringIndex(text[pos:])
			if loc == nil || loc[0] != 0 {
				continue
			}
			begin := ids[pos]
			end := ids[pos+loc[1]-1]
			attr := doc.Attribute{Type: doc.AttrTags, Tags: []string{rule.Scope}}
			_, cs = c.editor.MarkAttr(cs, begin, end, attr)
			pos += loc[1]
			matched = true
			break
		}
		if !matched {
			pos++
		}
	}

	return c.editor.EndEdit(cs)
}

// renderWithIDs mirrors Render but also returns, for each byte position in
// the output, the id of the cell it came from — the bridge between regexp
// match offsets (byte positions in the rendered string) and the cell ids
// Mark needs.
func renderWithIDs(s doc.Snapshot) (string, []doc.ID) {
	var text []byte
	var ids []doc.ID
	it := doc.NewAllIterator(s, doc.Begin)
	for !it.IsEnd() {
		if it.IsVisible() {
			text = append(text, it.Value())
			ids = append(ids, it.ID())
		}
		it.MoveNext()
	}
	return string(text), ids
}
