package shm

import "testing"

func TestCursorPackUnpack(t *testing.T) {
	c := NewCursor(7, 123)
	if c.Cycle() != 7 {
		t.Fatalf("Cycle() = %d, want 7", c.Cycle())
	}
	if c.Offset() != 123 {
		t.Fatalf("Offset() = %d, want 123", c.Offset())
	}
}

func TestCursorWrapAddNoWrap(t *testing.T) {
	c := NewCursor(0, 16)
	next := c.WrapAdd(8, 1024)
	if next.Cycle() != 0 || next.Offset() != 24 {
		t.Fatalf("WrapAdd = cycle=%d offset=%d, want cycle=0 offset=24", next.Cycle(), next.Offset())
	}
}

func TestCursorWrapAddWraps(t *testing.T) {
	c := NewCursor(0, 60)
	next := c.WrapAdd(8, 64)
	if next.Cycle() != 1 || next.Offset() != 4 {
		t.Fatalf("WrapAdd = cycle=%d offset=%d, want cycle=1 offset=4", next.Cycle(), next.Offset())
	}
}

func TestCursorWrapAddMultipleCycles(t *testing.T) {
	c := NewCursor(0, 0)
	next := c.WrapAdd(64*3+10, 64)
	if next.Cycle() != 3 || next.Offset() != 10 {
		t.Fatalf("WrapAdd = cycle=%d offset=%d, want cycle=3 offset=10", next.Cycle(), next.Offset())
	}
}

func TestCursorLapped(t *testing.T) {
	reader := NewCursor(0, 100)
	cases := []struct {
		writer Cursor
		want   bool
	}{
		{NewCursor(0, 200), false},
		{NewCursor(1, 50), false},
		{NewCursor(1, 150), true},
		{NewCursor(2, 0), true},
	}
	for _, c := range cases {
		if got := reader.Lapped(c.writer); got != c.want {
			t.Errorf("Lapped(writer=cycle=%d,offset=%d) = %v, want %v", c.writer.Cycle(), c.writer.Offset(), got, c.want)
		}
	}
}

func TestAtomicCursorLoadStore(t *testing.T) {
	var a AtomicCursor
	a.Store(NewCursor(2, 42))
	got := a.Load()
	if got.Cycle() != 2 || got.Offset() != 42 {
		t.Fatalf("Load() = cycle=%d offset=%d, want cycle=2 offset=42", got.Cycle(), got.Offset())
	}
	if !a.CompareAndSwap(NewCursor(2, 42), NewCursor(3, 0)) {
		t.Fatalf("CompareAndSwap should have succeeded")
	}
	if a.CompareAndSwap(NewCursor(2, 42), NewCursor(9, 9)) {
		t.Fatalf("CompareAndSwap should have failed on stale old value")
	}
}
