package plugin

import (
	"testing"
)

type fakePlugin struct {
	name  string
	calls []string
}

func (f *fakePlugin) Name() string { return f.name }
func (f *fakePlugin) Setup(*Context) error {
	f.calls = append(f.calls, "setup")
	return nil
}
func (f *fakePlugin) CompilationStart(*Context) error {
	f.calls = append(f.calls, "start")
	return nil
}
func (f *fakePlugin) CompilationEnd(*Context) error {
	f.calls = append(f.calls, "end")
	return nil
}
func (f *fakePlugin) Cleanup(*Context) error {
	f.calls = append(f.calls, "cleanup")
	return nil
}

func TestRegisterAndGet(t *testing.T) {
	r := NewRegistry()
	if err := r.Register(&fakePlugin{name: "sass"}); err != nil {
		t.Fatalf("Register: %v", err)
	}
	if _, err := r.Get("sass"); err != nil {
		t.Fatalf("Get: %v", err)
	}
	if _, err := r.Get("ghost"); err == nil {
		t.Fatalf("expected error for unknown plugin")
	}
}

func TestRegisterRejectsDuplicatesAndNil(t *testing.T) {
	r := NewRegistry()
	if err := r.Register(nil); err == nil {
		t.Fatalf("nil plugin accepted")
	}
	if err := r.Register(&fakePlugin{name: "sass"}); err != nil {
		t.Fatalf("Register: %v", err)
	}
	if err := r.Register(&fakePlugin{name: "sass"}); err == nil {
		t.Fatalf("duplicate accepted")
	}
}

func TestSelectPreservesRegistrationOrder(t *testing.T) {
	r := NewRegistry()
	for _, n := range []string{"a", "b", "c"} {
		if err := r.Register(&fakePlugin{name: n}); err != nil {
			t.Fatalf("Register(%s): %v", n, err)
		}
	}

	got, err := r.Select([]string{"c", "a"})
	if err != nil {
		t.Fatalf("Select: %v", err)
	}
	if len(got) != 2 || got[0].Name() != "a" || got[1].Name() != "c" {
		t.Fatalf("Select order = %v", got)
	}
}

func TestSelectUnknownFailsFast(t *testing.T) {
	r := NewRegistry()
	if _, err := r.Select([]string{"nope"}); err == nil {
		t.Fatalf("unknown plugin accepted")
	}
}
