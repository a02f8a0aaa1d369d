// Package tmpl wraps html/template as the site's template engine.
//
// Templates are addressed by their path relative to the templates root
// ("layout.html", "partials/nav.html") and reference each other by that same
// id in {{template}} actions. After a render the engine can report the full
// set of template ids the entry template reaches, which keeps the dependency
// graph precise.
package tmpl

import (
	"bytes"
	"encoding/json"
	"fmt"
	"html/template"
	"io/fs"
	"os"
	"path/filepath"
	"text/template/parse"

	fnderr "git.home.luguber.info/inful/sitebuilder/internal/foundation/errors"
	"git.home.luguber.info/inful/sitebuilder/internal/util/sets"
)

// MarkerPrefix opens a postprocess marker comment in rendered output.
const MarkerPrefix = "<!--SITEBUILDER:"

// MarkerSuffix closes a postprocess marker comment.
const MarkerSuffix = "-->"

// BreadcrumbMarker is the payload of a breadcrumb postprocess marker.
type BreadcrumbMarker struct {
	Op        string `json:"op"`
	Separator string `json:"sep"`
	MaxNodes  int    `json:"maxdepth"`
	Include   bool   `json:"include"`
}

// Context is the data every template sees.
type Context struct {
	// Site is the configured site title.
	Site string
	// Title is the document title.
	Title string
	// Content is the rendered markup body.
	Content template.HTML
	// Root is the relative path prefix from the document to the site root
	// ("." at the top level, ".." one level down, and so on).
	Root string
	// Path is the document's output path.
	Path string
	// Meta carries the document's remaining frontmatter fields.
	Meta map[string]any
}

// Engine loads every file under the templates root and renders documents
// through them.
type Engine struct {
	root *template.Template
	dir  string
}

// NewEngine parses all templates under dir. A parse failure is fatal for the
// build; the engine never partially loads.
func NewEngine(dir string) (*Engine, error) {
	// Helper funcs must be known at parse time; the real per-document
	// closures are swapped in on a clone before each execution.
	root := template.New("").Funcs(ctxFuncs(Context{}))

	err := filepath.WalkDir(dir, func(p string, d fs.DirEntry, werr error) error {
		if werr != nil {
			return werr
		}
		if d.IsDir() {
			return nil
		}
		rel, rerr := filepath.Rel(dir, p)
		if rerr != nil {
			return rerr
		}
		data, rerr := os.ReadFile(p)
		if rerr != nil {
			return rerr
		}
		_, rerr = root.New(filepath.ToSlash(rel)).Parse(string(data))
		return rerr
	})
	if err != nil {
		return nil, fnderr.Wrap(err, fnderr.CategoryTemplate, "loading templates").Fatal().Build()
	}

	return &Engine{root: root, dir: dir}, nil
}

// Render expands the named template with ctx. A template id that was never
// loaded reports a template-category error so the builder can fail just this
// document.
func (e *Engine) Render(id string, ctx Context) ([]byte, error) {
	if !e.Has(id) {
		return nil, fnderr.MissingTemplate(id).Build()
	}

	// Clone before execution: html/template locks a template namespace once
	// executed, and each document needs its own helper closures anyway.
	clone, err := e.root.Clone()
	if err != nil {
		return nil, fmt.Errorf("cloning templates: %w", err)
	}
	clone = clone.Funcs(ctxFuncs(ctx))

	var buf bytes.Buffer
	if err := clone.ExecuteTemplate(&buf, id, ctx); err != nil {
		return nil, fmt.Errorf("executing template %s: %w", id, err)
	}
	return buf.Bytes(), nil
}

// Used returns every template id reachable from the entry template through
// {{template}} actions, the entry itself excluded. The walk is static over
// the parse trees, so conditional includes count as used; that errs on the
// side of re-rendering, never staleness.
func (e *Engine) Used(id string) []string {
	seen := sets.New(id)
	queue := []string{id}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		tpl := e.root.Lookup(cur)
		if tpl == nil || tpl.Tree == nil || tpl.Tree.Root == nil {
			continue
		}
		for _, ref := range templateRefs(tpl.Tree.Root) {
			if !seen.Has(ref) {
				seen.Add(ref)
				queue = append(queue, ref)
			}
		}
	}
	seen.Delete(id)
	return sets.Sorted(seen)
}

// Has reports whether a template id was loaded.
func (e *Engine) Has(id string) bool {
	tpl := e.root.Lookup(id)
	return tpl != nil && tpl.Tree != nil && tpl.Tree.Root != nil
}

func templateRefs(node parse.Node) []string {
	var refs []string
	var walk func(parse.Node)
	walk = func(n parse.Node) {
		switch t := n.(type) {
		case *parse.TemplateNode:
			refs = append(refs, t.Name)
		case *parse.ListNode:
			if t != nil {
				for _, c := range t.Nodes {
					walk(c)
				}
			}
		case *parse.IfNode:
			walkBranch(&t.BranchNode, walk)
		case *parse.RangeNode:
			walkBranch(&t.BranchNode, walk)
		case *parse.WithNode:
			walkBranch(&t.BranchNode, walk)
		}
	}
	walk(node)
	return refs
}

func walkBranch(b *parse.BranchNode, walk func(parse.Node)) {
	if b.List != nil {
		walk(b.List)
	}
	if b.ElseList != nil {
		walk(b.ElseList)
	}
}

// ctxFuncs builds the per-document helper functions.
func ctxFuncs(ctx Context) template.FuncMap {
	return template.FuncMap{
		// absolute resolves a site-absolute path relative to the document.
		"absolute": func(p string) string {
			return ctx.Root + ensureLeadingSlash(p)
		},
		// asset resolves a path under the assets output directory.
		"asset": func(p string) string {
			return ctx.Root + "/assets" + ensureLeadingSlash(p)
		},
		// breadcrumbs emits a postprocess marker replaced once the whole site
		// tree is final. Arguments: separator, max nodes, include leaf.
		"breadcrumbs": func(args ...any) (template.HTML, error) {
			m := BreadcrumbMarker{Op: "docpath", Separator: " / ", Include: true}
			if len(args) > 0 {
				s, ok := args[0].(string)
				if !ok {
					return "", fmt.Errorf("breadcrumbs: separator must be a string")
				}
				m.Separator = s
			}
			if len(args) > 1 {
				n, ok := args[1].(int)
				if !ok {
					return "", fmt.Errorf("breadcrumbs: max nodes must be an integer")
				}
				m.MaxNodes = n
			}
			if len(args) > 2 {
				b, ok := args[2].(bool)
				if !ok {
					return "", fmt.Errorf("breadcrumbs: include flag must be a boolean")
				}
				m.Include = b
			}
			payload, err := json.Marshal(m)
			if err != nil {
				return "", err
			}
			return template.HTML(MarkerPrefix + string(payload) + MarkerSuffix), nil
		},
	}
}

func ensureLeadingSlash(p string) string {
	if len(p) == 0 || p[0] != '/' {
		return "/" + p
	}
	return p
}
