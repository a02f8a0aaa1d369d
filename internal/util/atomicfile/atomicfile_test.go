package atomicfile

import (
	"os"
	"path/filepath"
	"testing"
)

func TestWriteFileCreatesParents(t *testing.T) {
	dir := t.TempDir()
	target := filepath.Join(dir, "cache", "source.snap")

	if err := WriteFile(target, []byte("a.md:100\n"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	data, err := os.ReadFile(target)
	if err != nil {
		t.Fatalf("read back: %v", err)
	}
	if string(data) != "a.md:100\n" {
		t.Fatalf("content = %q", data)
	}
}

func TestWriteFileReplacesExisting(t *testing.T) {
	dir := t.TempDir()
	target := filepath.Join(dir, "f.txt")
	if err := WriteFile(target, []byte("old"), 0o644); err != nil {
		t.Fatalf("first write: %v", err)
	}
	if err := WriteFile(target, []byte("new"), 0o644); err != nil {
		t.Fatalf("second write: %v", err)
	}
	data, _ := os.ReadFile(target)
	if string(data) != "new" {
		t.Fatalf("content = %q, want new", data)
	}

	// No temp files may be left behind.
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("readdir: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("leftover files: %d entries", len(entries))
	}
}
