// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

// Package markdown converts stored post bodies into HTML using goldmark.
// Raw HTML in the source is not passed through, so the output can be
// injected into a page as-is. Besides the HTML the pipeline produces a
// table of contents built from second-level headings and a reading-time
// estimate.
package markdown

import (
	"bytes"
	"fmt"
	"html"
	"log/slog"
	"strings"

	"github.com/yuin/goldmark"
	highlighting "github.com/yuin/goldmark-highlighting/v2"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/parser"
	"github.com/yuin/goldmark/text"
	"github.com/yuin/goldmark/util"
)

const (
	// WordsPerMinute is the reading speed used for the reading-time hint.
	WordsPerMinute = 200

	// CodeStyle is the chroma theme for fenced code blocks.
	CodeStyle = "dracula"
)

// Heading is one entry of the table of contents.
type Heading struct {
	ID   string `json:"id"`
	Text string `json:"text"`
}

// Document is the result of rendering a markdown body.
type Document struct {
	HTML           string    `json:"html"`
	TOC            []Heading `json:"toc"`
	ReadingMinutes int       `json:"reading_minutes"`

	// Degraded is set when conversion failed and HTML holds the escaped
	// raw markdown instead of rendered output.
	Degraded bool  `json:"degraded"`
	Err      error `json:"-"`
}

// Pipeline is a configured goldmark instance. It is safe for concurrent use.
type Pipeline struct {
	md goldmark.Markdown
}

// defaultPipeline is reused across calls to Render.
var defaultPipeline = New()

// New builds the pipeline: GFM, per-document unique heading ids, heading
// self-links, and chroma highlighting with a copy button on every block.
func New() *Pipeline {
	return newPipeline()
}

func newPipeline(extra ...goldmark.Extender) *Pipeline {
	exts := []goldmark.Extender{
		extension.GFM,         // tables, strikethrough, autolinks, task lists
		extension.Typographer, // smart quotes and dashes
		highlighting.NewHighlighting(
			highlighting.WithStyle(CodeStyle),
			highlighting.WithWrapperRenderer(codeBlockWrapper),
		),
	}
	exts = append(exts, extra...)

	return &Pipeline{md: goldmark.New(
		goldmark.WithExtensions(exts...),
		goldmark.WithParserOptions(
			parser.WithAutoHeadingID(),
			parser.WithASTTransformers(util.Prioritized(headingLinker{}, 100)),
		),
	)}
}

// Render converts source with the default pipeline.
func Render(source string) Document {
	return defaultPipeline.Render(source)
}

// Render converts source into a Document. It never returns an error: a
// failed conversion yields a degraded document holding the escaped source
// so the reader still sees the text.
func (p *Pipeline) Render(source string) (doc Document) {
	doc.ReadingMinutes = ReadingMinutes(source)

	defer func() {
		if rec := recover(); rec != nil {
			doc = degraded(source, doc.ReadingMinutes, fmt.Errorf("markdown panic: %v", rec))
		}
	}()

	src := []byte(source)
	pc := parser.NewContext(parser.WithIDs(newHeadingIDs()))
	root := p.md.Parser().Parse(text.NewReader(src), parser.WithContext(pc))

	var buf bytes.Buffer
	if err := p.md.Renderer().Render(&buf, src, root); err != nil {
		return degraded(source, doc.ReadingMinutes, fmt.Errorf("markdown render: %w", err))
	}

	doc.HTML = buf.String()
	doc.TOC = tableOfContents(root, src)
	return doc
}

// ReadingMinutes estimates reading time as ceil(words / WordsPerMinute).
func ReadingMinutes(source string) int {
	words := len(strings.Fields(source))
	return (words + WordsPerMinute - 1) / WordsPerMinute
}

func degraded(source string, minutes int, err error) Document {
	slog.Error("markdown conversion failed, serving raw text", "error", err)
	return Document{
		HTML:           `<pre class="markdown-fallback">` + html.EscapeString(source) + "</pre>\n",
		ReadingMinutes: minutes,
		Degraded:       true,
		Err:            err,
	}
}

// codeBlockWrapper surrounds every fenced block with a container holding
// a copy button. For blocks chroma did not highlight, goldmark expects the
// wrapper to emit the <pre><code> pair itself.
func codeBlockWrapper(w util.BufWriter, ctx highlighting.CodeBlockContext, entering bool) {
	if entering {
		w.WriteString(`<div class="code-block">`)
		w.WriteString(`<button type="button" class="code-copy" aria-label="Copy code">Copy</button>`)
		if !ctx.Highlighted() {
			w.WriteString("<pre><code>")
		}
		return
	}
	if !ctx.Highlighted() {
		w.WriteString("</code></pre>")
	}
	w.WriteString("</div>\n")
}

// tableOfContents collects level-2 headings in document order.
func tableOfContents(root ast.Node, src []byte) []Heading {
	var toc []Heading
	ast.Walk(root, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		h, ok := n.(*ast.Heading)
		if !ok {
			return ast.WalkContinue, nil
		}
		if h.Level == 2 {
			toc = append(toc, Heading{ID: attrString(h, "id"), Text: plainText(h, src)})
		}
		return ast.WalkSkipChildren, nil
	})
	return toc
}

func attrString(n ast.Node, name string) string {
	v, ok := n.AttributeString(name)
	if !ok {
		return ""
	}
	switch s := v.(type) {
	case []byte:
		return string(s)
	case string:
		return s
	}
	return ""
}

// plainText concatenates the text segments below n.
func plainText(n ast.Node, src []byte) string {
	var b strings.Builder
	ast.Walk(n, func(c ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		switch t := c.(type) {
		case *ast.Text:
			b.Write(t.Segment.Value(src))
			if t.SoftLineBreak() {
				b.WriteByte(' ')
			}
		case *ast.String:
			b.Write(t.Value)
		}
		return ast.WalkContinue, nil
	})
	return strings.TrimSpace(b.String())
}
