package diag

import "testing"

func TestRingRespectsCapacity(t *testing.T) {
	r := NewRing(3)
	for i := 0; i < 5; i++ {
		r.Push(string(rune('a' + i)))
	}
	recent := r.Recent(10)
	if len(recent) != 3 {
		t.Fatalf("Recent(10) len = %d, want 3", len(recent))
	}
	want := []string{"c", "d", "e"}
	for i, w := range want {
		if recent[i] != w {
			t.Errorf("recent[%d] = %q, want %q", i, recent[i], w)
		}
	}
}

func TestRingRecentCountLargerThanBuffer(t *testing.T) {
	r := NewRing(10)
	r.Push("a")
	r.Push("b")
	if got := r.Recent(100); len(got) != 2 {
		t.Errorf("Recent(100) len = %d, want 2", len(got))
	}
}

func TestRingRecentSmallerCount(t *testing.T) {
	r := NewRing(10)
	for _, s := range []string{"a", "b", "c", "d"} {
		r.Push(s)
	}
	got := r.Recent(2)
	if len(got) != 2 || got[0] != "c" || got[1] != "d" {
		t.Errorf("Recent(2) = %v, want [c d]", got)
	}
}

func TestRingClear(t *testing.T) {
	r := NewRing(10)
	r.Push("a")
	r.Clear()
	if got := r.Recent(10); len(got) != 0 {
		t.Errorf("Recent(10) after Clear = %v, want empty", got)
	}
}

func TestNewRingDefaultsNonPositiveCapacity(t *testing.T) {
	r := NewRing(0)
	if r.capacity != DefaultCapacity {
		t.Errorf("capacity = %d, want %d", r.capacity, DefaultCapacity)
	}
}
