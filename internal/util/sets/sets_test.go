package sets

import "testing"

func TestNewAndHas(t *testing.T) {
	s := New("a", "b")
	if !s.Has("a") || !s.Has("b") {
		t.Fatalf("expected a and b present")
	}
	if s.Has("c") {
		t.Fatalf("c should be absent")
	}
}

func TestUnionDoesNotMutate(t *testing.T) {
	a := New("x")
	b := New("y")
	u := a.Union(b)
	if u.Len() != 2 {
		t.Fatalf("union size = %d, want 2", u.Len())
	}
	if a.Len() != 1 || b.Len() != 1 {
		t.Fatalf("operands mutated: %d %d", a.Len(), b.Len())
	}
}

func TestSortedStable(t *testing.T) {
	s := New("c", "a", "b")
	got := Sorted(s)
	want := []string{"a", "b", "c"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("sorted = %v, want %v", got, want)
		}
	}
}

func TestAddAllAndDelete(t *testing.T) {
	s := New("a")
	s.AddAll(New("b", "c"))
	s.Delete("a")
	if s.Has("a") || !s.Has("b") || !s.Has("c") {
		t.Fatalf("unexpected contents: %v", Sorted(s))
	}
}
