package snapshot

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	fnderr "git.home.luguber.info/inful/sitebuilder/internal/foundation/errors"
	"git.home.luguber.info/inful/sitebuilder/internal/logfields"
	"git.home.luguber.info/inful/sitebuilder/internal/util/atomicfile"
)

// Reserved root names owned by the builder itself. Plugins may not register
// under these names.
const (
	RootSource    = "source"
	RootTemplates = "templates"
	RootAssets    = "assets"
)

type entry struct {
	scanPath  string
	cachePath string
	opts      ScanOptions
	current   Snapshot
	old       Snapshot
	internal  bool
}

// Registry holds multiple independently tracked directory roots by name, each
// with a current snapshot (from this run's scan) and an old snapshot (from the
// persisted cache of the previous run).
type Registry struct {
	cacheDir string
	entries  map[string]*entry
	scanned  bool
}

// NewRegistry creates a registry tracking the three reserved roots. Extra
// roots may be registered before the first scan.
func NewRegistry(cacheDir, sourceDir, templatesDir, assetsDir string, opts ScanOptions) *Registry {
	r := &Registry{
		cacheDir: cacheDir,
		entries:  make(map[string]*entry),
	}
	r.entries[RootSource] = &entry{scanPath: sourceDir, cachePath: r.cachePath(RootSource), opts: opts, internal: true}
	r.entries[RootTemplates] = &entry{scanPath: templatesDir, cachePath: r.cachePath(RootTemplates), opts: opts, internal: true}
	r.entries[RootAssets] = &entry{scanPath: assetsDir, cachePath: r.cachePath(RootAssets), opts: opts, internal: true}
	return r
}

func (r *Registry) cachePath(name string) string {
	return filepath.Join(r.cacheDir, name+".snap")
}

// Register adds an extra tracked root. It fails on reserved or duplicate names
// and once the first scan of a build has happened, so a late registration can
// never corrupt unrelated diff state.
func (r *Registry) Register(name, dir string) error {
	if r.scanned {
		return fnderr.New(fnderr.CategoryPlugin, "tracked roots must be registered before the first scan").
			WithContext("root", name).Build()
	}
	if existing, ok := r.entries[name]; ok {
		if existing.internal {
			return fnderr.New(fnderr.CategoryPlugin, fmt.Sprintf("%q is a reserved tracked root", name)).Build()
		}
		return fnderr.New(fnderr.CategoryPlugin, fmt.Sprintf("tracked root %q is already registered", name)).Build()
	}
	r.entries[name] = &entry{scanPath: dir, cachePath: r.cachePath(name), opts: DefaultScanOptions()}
	return nil
}

// TrackedDirs returns the scan paths of all registered roots. The file
// watcher uses this to know what to observe.
func (r *Registry) TrackedDirs() []string {
	dirs := make([]string, 0, len(r.entries))
	for _, e := range r.entries {
		dirs = append(dirs, e.scanPath)
	}
	return dirs
}

// LoadAll reads the persisted old snapshots. A missing cache file means a
// first run for that root and degrades to an empty snapshot; an unreadable or
// corrupted one does the same with a warning. Never a fatal error.
func (r *Registry) LoadAll() {
	for name, e := range r.entries {
		data, err := os.ReadFile(e.cachePath)
		if err != nil {
			if !os.IsNotExist(err) {
				slog.Warn("Unreadable snapshot cache, treating root as fresh",
					logfields.Root(name), logfields.Error(err))
			}
			e.old = nil
			continue
		}
		snap, err := Decode(data)
		if err != nil {
			slog.Warn("Corrupted snapshot cache, treating root as fresh",
				logfields.Root(name), logfields.Error(err))
			e.old = nil
			continue
		}
		e.old = snap
	}
}

// ScanAll produces the current snapshot for every root. After the first
// ScanAll no further roots may be registered.
func (r *Registry) ScanAll() error {
	for name, e := range r.entries {
		snap, err := Scan(e.scanPath, e.opts)
		if err != nil {
			return fmt.Errorf("scanning root %q: %w", name, err)
		}
		e.current = snap
	}
	r.scanned = true
	return nil
}

// DumpAll persists every current snapshot as the new cache, each with a
// write-then-rename so a crash mid-dump never leaves a torn file.
func (r *Registry) DumpAll() error {
	for name, e := range r.entries {
		if e.current == nil {
			return fmt.Errorf("root %q was never scanned", name)
		}
		if err := atomicfile.WriteFile(e.cachePath, e.current.Encode(), 0o644); err != nil {
			return fmt.Errorf("persisting snapshot for root %q: %w", name, err)
		}
	}
	return nil
}

// Diff classifies every path of the named root, current versus old.
func (r *Registry) Diff(name string) (map[string]Change, error) {
	e, ok := r.entries[name]
	if !ok {
		return nil, fmt.Errorf("unknown tracked root %q", name)
	}
	if e.current == nil {
		return nil, fmt.Errorf("root %q was never scanned", name)
	}
	return e.current.Diff(e.old), nil
}

// Current returns the current snapshot of the named root, or nil before the
// first scan.
func (r *Registry) Current(name string) Snapshot {
	if e, ok := r.entries[name]; ok {
		return e.current
	}
	return nil
}
