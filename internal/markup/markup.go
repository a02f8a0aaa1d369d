// Package markup converts Markdown sources into HTML fragments plus the
// metadata the builder needs: the document title, the template it declares,
// and any free-form frontmatter fields.
package markup

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/parser"
	"github.com/yuin/goldmark/renderer/html"
	"github.com/yuin/goldmark/text"
	"gopkg.in/yaml.v3"
)

// DefaultTemplate is used when a document's frontmatter does not name one.
const DefaultTemplate = "page.html"

// Document is the result of rendering one Markdown source.
type Document struct {
	// HTML is the converted body, without any template applied.
	HTML []byte

	// Title comes from the frontmatter "title" field, falling back to the
	// first level-1 heading. Empty when neither exists.
	Title string

	// Template is the template id the document declares, or DefaultTemplate.
	Template string

	// Meta holds the remaining frontmatter fields.
	Meta map[string]any
}

// Renderer converts Markdown to HTML. Each Render call uses a fresh parser
// context, so no state leaks from the previous document.
type Renderer struct {
	md              goldmark.Markdown
	defaultTemplate string
}

// NewRenderer builds a GFM-enabled renderer.
func NewRenderer() *Renderer {
	return &Renderer{
		md: goldmark.New(
			goldmark.WithExtensions(extension.GFM, extension.Typographer, extension.Footnote),
			goldmark.WithParserOptions(parser.WithHeadingAttribute()),
			goldmark.WithRendererOptions(html.WithUnsafe()),
		),
		defaultTemplate: DefaultTemplate,
	}
}

// WithDefaultTemplate overrides the template used when a document declares none.
func (r *Renderer) WithDefaultTemplate(id string) *Renderer {
	r.defaultTemplate = id
	return r
}

// Render converts one Markdown source.
func (r *Renderer) Render(src []byte) (*Document, error) {
	fm, body, err := splitFrontmatter(src)
	if err != nil {
		return nil, err
	}

	meta := map[string]any{}
	if len(fm) > 0 {
		if err := yaml.Unmarshal(fm, &meta); err != nil {
			return nil, fmt.Errorf("parsing frontmatter: %w", err)
		}
		if meta == nil {
			meta = map[string]any{}
		}
	}

	doc := &Document{Template: r.defaultTemplate, Meta: meta}

	if t, ok := meta["title"].(string); ok && t != "" {
		doc.Title = t
		delete(meta, "title")
	}
	if t, ok := meta["template"].(string); ok && t != "" {
		doc.Template = t
		delete(meta, "template")
	}

	ctx := parser.NewContext()
	root := r.md.Parser().Parse(text.NewReader(body), parser.WithContext(ctx))

	if doc.Title == "" {
		doc.Title = firstHeading(root, body)
	}

	var buf bytes.Buffer
	if err := r.md.Renderer().Render(&buf, body, root); err != nil {
		return nil, fmt.Errorf("rendering markdown: %w", err)
	}
	doc.HTML = buf.Bytes()
	return doc, nil
}

// splitFrontmatter separates a leading "---" delimited YAML block from the
// Markdown body. A document without the opening delimiter passes through
// unchanged; an unclosed block is an error.
func splitFrontmatter(src []byte) (fm, body []byte, err error) {
	open := []byte("---\n")
	if !bytes.HasPrefix(src, open) {
		return nil, src, nil
	}
	rest := src[len(open):]
	idx := bytes.Index(rest, []byte("\n---"))
	if idx < 0 {
		if bytes.HasPrefix(rest, []byte("---")) {
			// Empty block: "---\n---\n...".
			return nil, rest[len("---"):], nil
		}
		return nil, nil, fmt.Errorf("frontmatter opened but never closed")
	}
	fm = rest[:idx+1]
	body = rest[idx+len("\n---"):]
	body = bytes.TrimPrefix(body, []byte("\n"))
	return fm, body, nil
}

// firstHeading extracts the text of the first level-1 heading, if any.
func firstHeading(root ast.Node, source []byte) string {
	var title string
	_ = ast.Walk(root, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		if h, ok := n.(*ast.Heading); ok && h.Level == 1 {
			var sb strings.Builder
			for c := h.FirstChild(); c != nil; c = c.NextSibling() {
				if t, ok := c.(*ast.Text); ok {
					sb.Write(t.Segment.Value(source))
				} else if s, ok := c.(*ast.String); ok {
					sb.Write(s.Value)
				}
			}
			title = strings.TrimSpace(sb.String())
			return ast.WalkStop, nil
		}
		return ast.WalkContinue, nil
	})
	return title
}
