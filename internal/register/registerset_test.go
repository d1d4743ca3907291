package register

import (
	"testing"

	"viua/internal/value"
)

func TestSetGrowsOnWrite(t *testing.T) {
	s := NewSet(2)
	if s.Size() != 2 {
		t.Fatalf("Size() = %d, want 2", s.Size())
	}
	if err := s.Set(9, nil); err != nil {
		t.Fatalf("Set(9): %v", err)
	}
	if s.Size() < 10 {
		t.Errorf("Size() = %d after writing index 9, want at least 10", s.Size())
	}
}

func TestSetNegativeIndexErrors(t *testing.T) {
	s := NewSet(4)
	if err := s.Set(-1, nil); err == nil {
		t.Error("expected an error writing a negative index")
	}
}

func TestFixedSetRejectsOutOfRange(t *testing.T) {
	s := NewFixedSet(2)
	if err := s.Set(0, value.Integer{V: 1}); err != nil {
		t.Fatalf("Set(0): %v", err)
	}
	if err := s.Set(1, value.Integer{V: 2}); err != nil {
		t.Fatalf("Set(1): %v", err)
	}
	if err := s.Set(2, value.Integer{V: 3}); err == nil {
		t.Error("Set(2) on a capacity-2 fixed Set: expected an error, got nil")
	}
	if s.Size() != 2 {
		t.Errorf("Size() = %d after rejected write, want 2 (no growth)", s.Size())
	}
}

func TestMoveClearsSource(t *testing.T) {
	s := NewSet(4)
	if err := s.Set(0, nil); err != nil {
		t.Fatal(err)
	}
	v := value.Integer{V: 7}
	if err := s.Set(1, v); err != nil {
		t.Fatal(err)
	}
	if err := s.Move(1, 0); err != nil {
		t.Fatal(err)
	}
	got, _ := s.At(0)
	if got != v {
		t.Errorf("At(0) = %v, want %v", got, v)
	}
	src, _ := s.At(1)
	if src != nil {
		t.Errorf("At(1) = %v, want nil after Move clears the source", src)
	}
}
