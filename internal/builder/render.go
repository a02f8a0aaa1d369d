package builder

import (
	"fmt"
	"html/template"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"strings"

	"git.home.luguber.info/inful/sitebuilder/internal/logfields"
	"git.home.luguber.info/inful/sitebuilder/internal/tmpl"
	"git.home.luguber.info/inful/sitebuilder/internal/util/atomicfile"
)

// isMarkup reports whether a source path is a Markdown document. Everything
// else in the source tree is carried to the output verbatim.
func isMarkup(p string) bool {
	switch strings.ToLower(path.Ext(p)) {
	case ".md", ".markdown":
		return true
	}
	return false
}

// outputPath maps a source-relative document id to its output path.
func outputPath(doc string) string {
	if !isMarkup(doc) {
		return doc
	}
	return strings.TrimSuffix(doc, path.Ext(doc)) + ".html"
}

// rootPrefix is the relative path from the document's output directory up to
// the site root: "." at the top level, ".." one level down, and so on.
func rootPrefix(out string) string {
	depth := strings.Count(out, "/")
	if depth == 0 {
		return "."
	}
	return strings.TrimSuffix(strings.Repeat("../", depth), "/")
}

// fallbackTitle derives a title from the document path when neither the
// frontmatter nor the body provides one. An index document takes its
// directory's name; the root index keeps the tree's default.
func fallbackTitle(doc string) string {
	base := path.Base(doc)
	stem := strings.TrimSuffix(base, path.Ext(base))
	if stem == "index" {
		dir := path.Dir(doc)
		if dir == "." || dir == "/" {
			return ""
		}
		stem = path.Base(dir)
	}
	return stem
}

// renderDocument renders one source document into the output tree and updates
// the dependency graph and site tree. An error fails only this document.
func (b *Builder) renderDocument(doc string) error {
	src := filepath.Join(b.cfg.SourceDir(), filepath.FromSlash(doc))
	out := outputPath(doc)

	if prev, ok := b.outputs[out]; ok && prev != doc {
		b.log.Warn("Two sources map to one output path",
			logfields.Document(doc), logfields.Path(out), slog.String("previous", prev))
	}
	b.outputs[out] = doc

	data, err := os.ReadFile(src)
	if err != nil {
		return fmt.Errorf("reading source: %w", err)
	}

	if !isMarkup(doc) {
		if err := atomicfile.WriteFile(filepath.Join(b.paths.OutputDir, filepath.FromSlash(out)), data, 0o644); err != nil {
			return fmt.Errorf("copying source file: %w", err)
		}
		return nil
	}

	md, err := b.markup.Render(data)
	if err != nil {
		return fmt.Errorf("rendering markup: %w", err)
	}
	title := md.Title
	if title == "" {
		title = fallbackTitle(doc)
	}

	// The tree entry goes in before template expansion so the breadcrumbs of
	// this very document resolve during postprocessing.
	if b.plan.Created.Has(doc) {
		b.tree.AddDocument(out, title)
	} else {
		b.tree.EditDocument(out, title)
	}

	page, err := b.engine.Render(md.Template, tmpl.Context{
		Site:    b.cfg.Title,
		Title:   title,
		Content: template.HTML(md.HTML),
		Root:    rootPrefix(out),
		Path:    out,
		Meta:    md.Meta,
	})
	if err != nil {
		return err
	}

	// Associations update only on a successful render, so the graph never
	// records templates of a failed attempt.
	b.graph.Update(doc, md.Template, b.engine.Used(md.Template))

	if err := atomicfile.WriteFile(filepath.Join(b.paths.OutputDir, filepath.FromSlash(out)), page, 0o644); err != nil {
		return fmt.Errorf("writing output: %w", err)
	}
	b.touched.Add(out)
	return nil
}

// removeDocument drops a deleted source's output file and its graph and tree
// entries. A missing output file is already the desired end state and only
// warns.
func (b *Builder) removeDocument(doc string, log *slog.Logger) {
	out := outputPath(doc)

	if isMarkup(doc) {
		b.graph.Remove(doc)
		b.tree.RemoveDocument(out)
	}

	err := os.Remove(filepath.Join(b.paths.OutputDir, filepath.FromSlash(out)))
	switch {
	case err == nil:
	case os.IsNotExist(err):
		log.Warn("Output file already gone", logfields.Path(out))
	default:
		log.Error("Removing output file failed", logfields.Path(out), logfields.Error(err))
	}
}
