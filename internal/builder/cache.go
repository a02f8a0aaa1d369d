package builder

import (
	"encoding/json"
	"log/slog"
	"os"

	"git.home.luguber.info/inful/sitebuilder/internal/depgraph"
	"git.home.luguber.info/inful/sitebuilder/internal/doctree"
	"git.home.luguber.info/inful/sitebuilder/internal/logfields"
	"git.home.luguber.info/inful/sitebuilder/internal/util/atomicfile"
)

// loadGraph reads the persisted dependency graph. Missing or corrupt files
// degrade to an empty graph; the corrupt case warns because it costs a full
// re-render of every template-forced document.
func loadGraph(path string, log *slog.Logger) *depgraph.Graph {
	g := depgraph.New()
	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			log.Warn("Unreadable dependency graph cache, starting empty",
				logfields.Path(path), logfields.Error(err))
		}
		return g
	}
	if err := json.Unmarshal(data, g); err != nil {
		log.Warn("Corrupted dependency graph cache, starting empty",
			logfields.Path(path), logfields.Error(err))
		return depgraph.New()
	}
	return g
}

// loadTree reads the persisted site tree with the same degradation rules as
// loadGraph.
func loadTree(path string, log *slog.Logger) *doctree.Tree {
	t := doctree.New()
	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			log.Warn("Unreadable site tree cache, starting empty",
				logfields.Path(path), logfields.Error(err))
		}
		return t
	}
	if err := json.Unmarshal(data, t); err != nil {
		log.Warn("Corrupted site tree cache, starting empty",
			logfields.Path(path), logfields.Error(err))
		return doctree.New()
	}
	return t
}

// persistJSON writes a cache artifact with write-then-rename.
func persistJSON(path string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return atomicfile.WriteFile(path, data, 0o644)
}
