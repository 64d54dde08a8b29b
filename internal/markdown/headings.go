package markdown

import (
	"fmt"

	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/parser"
	"github.com/yuin/goldmark/text"

	"folio/internal/slug"
)

// headingIDs generates heading anchors with the same slug rules used for
// post URLs. Repeated slugs within one document get -1, -2, ... suffixes so
// every anchor is unique.
type headingIDs struct {
	seen map[string]bool
}

var _ parser.IDs = (*headingIDs)(nil)

func newHeadingIDs() *headingIDs {
	return &headingIDs{seen: make(map[string]bool)}
}

// Generate returns a unique id for the heading text in value.
func (h *headingIDs) Generate(value []byte, kind ast.NodeKind) []byte {
	base := slug.Generate(string(value))
	if base == "" {
		base = "section"
	}
	id := base
	for i := 1; h.seen[id]; i++ {
		id = fmt.Sprintf("%s-%d", base, i)
	}
	h.seen[id] = true
	return []byte(id)
}

// Put reserves an explicitly assigned id.
func (h *headingIDs) Put(value []byte) {
	h.seen[string(value)] = true
}

// headingLinker wraps the content of every heading that carries an id in a
// link to that id.
type headingLinker struct{}

func (headingLinker) Transform(doc *ast.Document, reader text.Reader, pc parser.Context) {
	var headings []*ast.Heading
	ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		if h, ok := n.(*ast.Heading); ok {
			headings = append(headings, h)
			return ast.WalkSkipChildren, nil
		}
		return ast.WalkContinue, nil
	})

	for _, h := range headings {
		id := attrString(h, "id")
		if id == "" || !h.HasChildren() {
			continue
		}
		link := ast.NewLink()
		link.Destination = []byte("#" + id)
		link.SetAttributeString("class", []byte("heading-anchor"))
		for c := h.FirstChild(); c != nil; {
			next := c.NextSibling()
			h.RemoveChild(h, c)
			link.AppendChild(link, c)
			c = next
		}
		h.AppendChild(h, link)
	}
}
