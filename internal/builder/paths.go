package builder

import "path/filepath"

// Cache artifact names inside the cache directory. Snapshot files are named by
// the snapshot registry itself (<root>.snap).
const (
	relationshipsFile = "relationships.json"
	doctreeFile       = "doctree.json"
)

// Paths locates the persisted build state of a project.
type Paths struct {
	CacheDir  string
	OutputDir string
}

// Relationships is the template-to-documents dependency graph file.
func (p Paths) Relationships() string {
	return filepath.Join(p.CacheDir, relationshipsFile)
}

// Doctree is the persisted site tree file.
func (p Paths) Doctree() string {
	return filepath.Join(p.CacheDir, doctreeFile)
}
