// Package snapshot implements change detection between successive builds.
//
// A Snapshot is an immutable inventory of {relative path -> mtime} for one
// directory tree at one instant. Diffing two snapshots of the same root
// classifies every path as Added, Modified, Same or Deleted; the classification
// drives the invalidation planner.
package snapshot

import (
	"bytes"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	fnderr "git.home.luguber.info/inful/sitebuilder/internal/foundation/errors"
)

// Change classifies one path between two snapshots of the same root.
type Change int

const (
	Same Change = iota
	Added
	Modified
	Deleted
)

func (c Change) String() string {
	switch c {
	case Same:
		return "same"
	case Added:
		return "added"
	case Modified:
		return "modified"
	case Deleted:
		return "deleted"
	default:
		return "unknown"
	}
}

// Snapshot maps slash-separated relative paths to last-modified unix
// timestamps truncated to seconds. The zero value (nil) is a valid empty
// snapshot; every diff against it classifies as Added.
type Snapshot map[string]int64

// ScanOptions controls which directory entries a scan records.
type ScanOptions struct {
	// IgnoreHidden skips entries whose name starts with a dot. Defaults to
	// true via DefaultScanOptions.
	IgnoreHidden bool

	// IgnorePatterns are doublestar globs matched against both the entry base
	// name and the slash-separated path relative to the scan root.
	IgnorePatterns []string
}

// DefaultScanOptions returns the options used for tracked build roots.
func DefaultScanOptions() ScanOptions {
	return ScanOptions{IgnoreHidden: true}
}

// Scan walks root recursively and records every file's modification time.
// Directories themselves are not recorded. Returns a config-category error if
// root does not exist or is not a directory.
func Scan(root string, opts ScanOptions) (Snapshot, error) {
	info, err := os.Stat(root)
	if err != nil || !info.IsDir() {
		return nil, fnderr.ConfigError("tracked root must be an existing directory").
			WithContext("root", root).Build()
	}

	snap := make(Snapshot)
	err = filepath.WalkDir(root, func(p string, d fs.DirEntry, werr error) error {
		if werr != nil {
			return werr
		}
		if p == root {
			return nil
		}

		rel, rerr := filepath.Rel(root, p)
		if rerr != nil {
			return rerr
		}
		rel = filepath.ToSlash(rel)

		if ignored(d.Name(), rel, opts) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			return nil
		}

		fi, ferr := d.Info()
		if ferr != nil {
			return ferr
		}
		snap[rel] = fi.ModTime().Unix()
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scanning %s: %w", root, err)
	}
	return snap, nil
}

func ignored(name, rel string, opts ScanOptions) bool {
	if opts.IgnoreHidden && strings.HasPrefix(name, ".") {
		return true
	}
	for _, pat := range opts.IgnorePatterns {
		if ok, _ := doublestar.Match(pat, name); ok {
			return true
		}
		if ok, _ := doublestar.Match(pat, rel); ok {
			return true
		}
	}
	return false
}

// Encode serializes the snapshot as one "path:mtime" line per entry.
// Entries are sorted so the cache file diffs cleanly, although order is
// irrelevant to correctness (diffing is set-based).
func (s Snapshot) Encode() []byte {
	paths := make([]string, 0, len(s))
	for p := range s {
		paths = append(paths, p)
	}
	sort.Strings(paths)

	var buf bytes.Buffer
	for _, p := range paths {
		buf.WriteString(p)
		buf.WriteByte(':')
		buf.WriteString(strconv.FormatInt(s[p], 10))
		buf.WriteByte('\n')
	}
	return buf.Bytes()
}

// Decode parses the text produced by Encode. The timestamp is split off at the
// last colon so paths containing colons round-trip.
func Decode(data []byte) (Snapshot, error) {
	snap := make(Snapshot)
	for _, line := range strings.Split(string(data), "\n") {
		if line == "" {
			continue
		}
		idx := strings.LastIndexByte(line, ':')
		if idx <= 0 {
			return nil, fmt.Errorf("malformed snapshot entry %q", line)
		}
		mtime, err := strconv.ParseInt(line[idx+1:], 10, 64)
		if err != nil {
			return nil, fmt.Errorf("malformed snapshot timestamp in %q: %w", line, err)
		}
		snap[line[:idx]] = mtime
	}
	return snap, nil
}

// Diff compares s (current) against old. Every path in the union of both
// key-sets gets exactly one classification.
func (s Snapshot) Diff(old Snapshot) map[string]Change {
	out := make(map[string]Change, len(s)+len(old))
	for p, mtime := range s {
		oldTime, existed := old[p]
		switch {
		case !existed:
			out[p] = Added
		case oldTime == mtime:
			out[p] = Same
		default:
			out[p] = Modified
		}
	}
	for p := range old {
		if _, ok := s[p]; !ok {
			out[p] = Deleted
		}
	}
	return out
}
