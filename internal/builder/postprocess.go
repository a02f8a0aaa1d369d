package builder

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"html"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"git.home.luguber.info/inful/sitebuilder/internal/doctree"
	"git.home.luguber.info/inful/sitebuilder/internal/logfields"
	"git.home.luguber.info/inful/sitebuilder/internal/tmpl"
	"git.home.luguber.info/inful/sitebuilder/internal/util/atomicfile"
	"git.home.luguber.info/inful/sitebuilder/internal/util/sets"
)

// stagePostprocess rewrites the marker comments the template helpers left in
// this pass's output, now that the site tree is final. A marker that fails to
// resolve fails only its document.
func (b *Builder) stagePostprocess(_ context.Context, log *slog.Logger) error {
	failures := 0
	for _, out := range sets.Sorted(b.touched) {
		if !strings.HasSuffix(out, ".html") {
			continue
		}
		p := filepath.Join(b.paths.OutputDir, filepath.FromSlash(out))
		data, err := os.ReadFile(p)
		if err != nil {
			log.Error("Reading output for postprocess failed", logfields.Path(out), logfields.Error(err))
			failures++
			continue
		}
		resolved, changed, err := b.resolveMarkers(out, data)
		if err != nil {
			log.Error("Postprocess failed", logfields.Path(out), logfields.Error(err))
			failures++
			continue
		}
		if !changed {
			continue
		}
		if err := atomicfile.WriteFile(p, resolved, 0o644); err != nil {
			log.Error("Writing postprocessed output failed", logfields.Path(out), logfields.Error(err))
			failures++
		}
	}
	b.failed += failures
	b.rec.IncDocumentFailures(failures)
	return nil
}

// resolveMarkers replaces every known marker comment in one rendered page.
// Unknown marker ops are left in place untouched.
func (b *Builder) resolveMarkers(out string, data []byte) ([]byte, bool, error) {
	prefix := []byte(tmpl.MarkerPrefix)
	suffix := []byte(tmpl.MarkerSuffix)

	var buf bytes.Buffer
	changed := false
	rest := data
	for {
		i := bytes.Index(rest, prefix)
		if i < 0 {
			break
		}
		j := bytes.Index(rest[i+len(prefix):], suffix)
		if j < 0 {
			break
		}
		payload := rest[i+len(prefix) : i+len(prefix)+j]
		end := i + len(prefix) + j + len(suffix)

		var m tmpl.BreadcrumbMarker
		if err := json.Unmarshal(payload, &m); err != nil {
			return nil, false, fmt.Errorf("decoding marker in %s: %w", out, err)
		}
		if m.Op != "docpath" {
			buf.Write(rest[:end])
			rest = rest[end:]
			continue
		}

		crumbs, err := b.tree.Trail(out, doctree.TrailOptions{MaxNodes: m.MaxNodes, IncludeLeaf: m.Include})
		if err != nil {
			return nil, false, err
		}
		buf.Write(rest[:i])
		buf.WriteString(renderCrumbs(crumbs, m.Separator))
		rest = rest[end:]
		changed = true
	}
	buf.Write(rest)
	return buf.Bytes(), changed, nil
}

// renderCrumbs turns a breadcrumb trail into inline HTML: anchors for
// linkable ancestors, plain spans for placeholders and the leaf.
func renderCrumbs(crumbs []doctree.Crumb, sep string) string {
	parts := make([]string, 0, len(crumbs))
	for _, c := range crumbs {
		title := html.EscapeString(c.Title)
		if c.Href != "" {
			parts = append(parts, fmt.Sprintf("<a href=%q>%s</a>", c.Href, title))
		} else {
			parts = append(parts, "<span>"+title+"</span>")
		}
	}
	return strings.Join(parts, sep)
}
