// Package plan combines the source diff, the template diff and the dependency
// graph into a minimal, correct set of per-document build actions.
package plan

import (
	"git.home.luguber.info/inful/sitebuilder/internal/depgraph"
	"git.home.luguber.info/inful/sitebuilder/internal/snapshot"
	"git.home.luguber.info/inful/sitebuilder/internal/util/sets"
)

// Action is the final decision for one document id.
type Action int

const (
	ActionRender Action = iota
	ActionRemove
)

func (a Action) String() string {
	if a == ActionRemove {
		return "remove"
	}
	return "render"
}

// Decision pairs a document id with its action.
type Decision struct {
	Document string
	Action   Action
}

// Plan is the ordered outcome of invalidation: renders first, then removals.
// A document never appears in both lists.
type Plan struct {
	Render []string
	Remove []string

	// Created distinguishes first-time renders from refreshes so the builder
	// can pick tree add versus edit semantics.
	Created sets.Set[string]

	// Forced holds documents promoted to render purely because a template
	// they depend on changed. Informational, for logging.
	Forced sets.Set[string]
}

// Empty reports whether the plan contains no work at all.
func (p *Plan) Empty() bool {
	return len(p.Render) == 0 && len(p.Remove) == 0
}

// Decisions flattens the plan into per-document decisions, renders first.
func (p *Plan) Decisions() []Decision {
	out := make([]Decision, 0, len(p.Render)+len(p.Remove))
	for _, d := range p.Render {
		out = append(out, Decision{Document: d, Action: ActionRender})
	}
	for _, d := range p.Remove {
		out = append(out, Decision{Document: d, Action: ActionRemove})
	}
	return out
}

// Build computes the plan.
//
// Sources classified added or modified render. Sources classified same render
// anyway when a template they were last rendered through is classified
// modified (forced re-render). The render set is a union, so a document both
// source-modified and template-forced renders exactly once. Deleted sources
// are removed. A deleted template forces nothing: a document still naming it
// surfaces a missing-template error at render time, not at diff time.
func Build(sourceDiff, templateDiff map[string]snapshot.Change, graph *depgraph.Graph) *Plan {
	created := sets.New[string]()
	render := sets.New[string]()
	unchanged := sets.New[string]()
	removed := make([]string, 0)

	for doc, change := range sourceDiff {
		switch change {
		case snapshot.Added:
			created.Add(doc)
			render.Add(doc)
		case snapshot.Modified:
			render.Add(doc)
		case snapshot.Same:
			unchanged.Add(doc)
		case snapshot.Deleted:
			removed = append(removed, doc)
		}
	}

	forced := sets.New[string]()
	if unchanged.Len() > 0 {
		for template, change := range templateDiff {
			if change != snapshot.Modified {
				continue
			}
			for _, doc := range graph.Documents(template) {
				if unchanged.Has(doc) {
					forced.Add(doc)
					render.Add(doc)
				}
			}
		}
	}

	p := &Plan{
		Render:  sets.Sorted(render),
		Created: created,
		Forced:  forced,
	}
	// Keep removals sorted too; stable output and logs.
	p.Remove = sets.Sorted(sets.New(removed...))
	return p
}
