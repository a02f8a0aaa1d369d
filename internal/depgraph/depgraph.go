// Package depgraph maintains the inverted template-to-documents index.
//
// When a shared template changes, the builder consults this graph to force
// re-rendering of documents whose own source timestamps did not move. The
// graph is rebuilt association-by-association after each successful render so
// it always reflects the templates actually used, never a stale guess.
package depgraph

import (
	"encoding/json"

	"git.home.luguber.info/inful/sitebuilder/internal/util/sets"
)

// Graph maps template id -> set of document ids rendered through it, directly
// or via include/inheritance.
type Graph struct {
	rel map[string]sets.Set[string]
}

// New returns an empty graph.
func New() *Graph {
	return &Graph{rel: make(map[string]sets.Set[string])}
}

// Update records that document was just rendered through primary plus the
// other templates pulled in by includes or inheritance. Associations with
// templates no longer used are dropped; re-applying identical arguments is a
// no-op.
func (g *Graph) Update(document, primary string, others []string) {
	used := sets.New(primary)
	for _, t := range others {
		used.Add(t)
	}

	for template, docs := range g.rel {
		if used.Has(template) {
			docs.Add(document)
			used.Delete(template)
		} else {
			docs.Delete(document)
		}
	}

	for template := range used {
		g.rel[template] = sets.New(document)
	}
}

// Remove drops document from every template's associated set. Used when the
// source document is deleted.
func (g *Graph) Remove(document string) {
	for _, docs := range g.rel {
		docs.Delete(document)
	}
}

// Documents returns the ids of documents rendered through template. The
// result is sorted for deterministic planning and log output.
func (g *Graph) Documents(template string) []string {
	docs, ok := g.rel[template]
	if !ok {
		return nil
	}
	return sets.Sorted(docs)
}

// MarshalJSON encodes the graph as {template: [document, ...]} with sorted
// arrays so the persisted cache file is stable across runs.
func (g *Graph) MarshalJSON() ([]byte, error) {
	out := make(map[string][]string, len(g.rel))
	for template, docs := range g.rel {
		out[template] = sets.Sorted(docs)
	}
	return json.Marshal(out)
}

// UnmarshalJSON decodes the persisted {template: [document, ...]} shape.
func (g *Graph) UnmarshalJSON(data []byte) error {
	var raw map[string][]string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	g.rel = make(map[string]sets.Set[string], len(raw))
	for template, docs := range raw {
		g.rel[template] = sets.New(docs...)
	}
	return nil
}
