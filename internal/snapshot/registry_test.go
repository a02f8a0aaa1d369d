package snapshot

import (
	"os"
	"path/filepath"
	"testing"
)

func newTestRegistry(t *testing.T) (*Registry, string) {
	t.Helper()
	base := t.TempDir()
	for _, d := range []string{"content", "templates", "assets", "cache"} {
		if err := os.MkdirAll(filepath.Join(base, d), 0o755); err != nil {
			t.Fatalf("mkdir %s: %v", d, err)
		}
	}
	r := NewRegistry(
		filepath.Join(base, "cache"),
		filepath.Join(base, "content"),
		filepath.Join(base, "templates"),
		filepath.Join(base, "assets"),
		DefaultScanOptions(),
	)
	return r, base
}

func TestRegisterReservedNameFails(t *testing.T) {
	r, base := newTestRegistry(t)
	for _, name := range []string{RootSource, RootTemplates, RootAssets} {
		if err := r.Register(name, base); err == nil {
			t.Fatalf("registering reserved name %q should fail", name)
		}
	}
}

func TestRegisterDuplicateFails(t *testing.T) {
	r, base := newTestRegistry(t)
	extra := filepath.Join(base, "extra")
	if err := os.MkdirAll(extra, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := r.Register("extra", extra); err != nil {
		t.Fatalf("first Register: %v", err)
	}
	if err := r.Register("extra", extra); err == nil {
		t.Fatalf("duplicate Register should fail")
	}
}

func TestRegisterAfterScanFails(t *testing.T) {
	r, base := newTestRegistry(t)
	if err := r.ScanAll(); err != nil {
		t.Fatalf("ScanAll: %v", err)
	}
	if err := r.Register("late", base); err == nil {
		t.Fatalf("post-scan Register should fail")
	}
}

func TestColdStartDiffIsAllAdded(t *testing.T) {
	r, base := newTestRegistry(t)
	writeFile(t, filepath.Join(base, "content"), "a.md", "x")

	r.LoadAll() // no cache files exist yet
	if err := r.ScanAll(); err != nil {
		t.Fatalf("ScanAll: %v", err)
	}

	diff, err := r.Diff(RootSource)
	if err != nil {
		t.Fatalf("Diff: %v", err)
	}
	if diff["a.md"] != Added {
		t.Fatalf("a.md = %s, want added", diff["a.md"])
	}
}

func TestDumpThenReloadYieldsSame(t *testing.T) {
	r, base := newTestRegistry(t)
	writeFile(t, filepath.Join(base, "content"), "a.md", "x")

	if err := r.ScanAll(); err != nil {
		t.Fatalf("ScanAll: %v", err)
	}
	if err := r.DumpAll(); err != nil {
		t.Fatalf("DumpAll: %v", err)
	}

	// A second build with no filesystem changes sees everything unchanged.
	r2 := NewRegistry(
		filepath.Join(base, "cache"),
		filepath.Join(base, "content"),
		filepath.Join(base, "templates"),
		filepath.Join(base, "assets"),
		DefaultScanOptions(),
	)
	r2.LoadAll()
	if err := r2.ScanAll(); err != nil {
		t.Fatalf("second ScanAll: %v", err)
	}
	diff, err := r2.Diff(RootSource)
	if err != nil {
		t.Fatalf("Diff: %v", err)
	}
	if diff["a.md"] != Same {
		t.Fatalf("a.md = %s, want same", diff["a.md"])
	}
}

func TestCorruptCacheDegradesToEmpty(t *testing.T) {
	r, base := newTestRegistry(t)
	writeFile(t, filepath.Join(base, "content"), "a.md", "x")
	writeFile(t, filepath.Join(base, "cache"), "source.snap", "garbage without separator\n")

	r.LoadAll()
	if err := r.ScanAll(); err != nil {
		t.Fatalf("ScanAll: %v", err)
	}
	diff, err := r.Diff(RootSource)
	if err != nil {
		t.Fatalf("Diff: %v", err)
	}
	// Corruption degrades to a cold start for this root only.
	if diff["a.md"] != Added {
		t.Fatalf("a.md = %s, want added after corrupt cache", diff["a.md"])
	}
}

func TestExtraRootTracksIndependently(t *testing.T) {
	r, base := newTestRegistry(t)
	extra := filepath.Join(base, "data")
	if err := os.MkdirAll(extra, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	writeFile(t, extra, "feed.json", "{}")

	if err := r.Register("data", extra); err != nil {
		t.Fatalf("Register: %v", err)
	}
	r.LoadAll()
	if err := r.ScanAll(); err != nil {
		t.Fatalf("ScanAll: %v", err)
	}

	diff, err := r.Diff("data")
	if err != nil {
		t.Fatalf("Diff(data): %v", err)
	}
	if diff["feed.json"] != Added {
		t.Fatalf("feed.json = %s, want added", diff["feed.json"])
	}
	if len(r.TrackedDirs()) != 4 {
		t.Fatalf("tracked dirs = %d, want 4", len(r.TrackedDirs()))
	}
}
