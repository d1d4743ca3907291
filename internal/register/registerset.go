// Package register implements Viua's register sets, call frames and
// exception try-frames: the activation-record layer between the value
// model and the execution engine.
package register

import (
	"github.com/pkg/errors"

	"viua/internal/value"
)

// Flag is a bitmask of per-slot ownership directives.
type Flag byte

const (
	// Reference marks a slot as an alias of another slot's value; set
	// must not free the previous occupant, and drop must not free it
	// either.
	Reference Flag = 1 << iota
	// Keep marks a slot whose contents must survive frame teardown —
	// used when a value has been moved into the engine's thrown slot so
	// that popping the originating frame does not discard it.
	Keep
)

type slot struct {
	val   value.Value
	flags Flag
}

// Set is an array of optional values with per-slot flags, sized initially
// by NewSet's capacity. A plain Set grows on demand by any index past the
// current end — a FRAME's local-register count is a sizing hint for the
// common case, not a hard ceiling a callee's own register usage must fit
// under. A Set built with NewFixedSet never grows: it is used for a
// Frame's argument set, where the arg count FRAME declares is a real
// ceiling PARAM/PAREF/PAPTR must not be able to write past.
// The zero Set is not usable; construct with NewSet or NewFixedSet.
type Set struct {
	slots []slot
	fixed bool
}

func NewSet(capacity int) *Set {
	return &Set{slots: make([]slot, capacity)}
}

// NewFixedSet is like NewSet but refuses to grow past capacity — access to
// any index >= capacity fails instead of extending the backing array.
func NewFixedSet(capacity int) *Set {
	return &Set{slots: make([]slot, capacity), fixed: true}
}

func (s *Set) Size() int { return len(s.slots) }

// access validates i, growing the backing array to cover it unless the Set
// is fixed-capacity. A negative index is always an error; for a fixed Set,
// so is any index at or past the end.
func (s *Set) access(i int) error {
	if i < 0 {
		return errors.Errorf("register: index %d out of range", i)
	}
	if i >= len(s.slots) {
		if s.fixed {
			return errors.Errorf("register: index %d out of range (capacity %d)", i, len(s.slots))
		}
		grown := make([]slot, i+1)
		copy(grown, s.slots)
		s.slots = grown
	}
	return nil
}

// At returns the value stored at i, or nil if the slot is empty.
func (s *Set) At(i int) (value.Value, error) {
	if err := s.access(i); err != nil {
		return nil, err
	}
	return s.slots[i].val, nil
}

// Cell returns a pointer into the slot's value storage, used to build a
// Reference value (REF/PTR) that aliases this exact slot.
func (s *Set) Cell(i int) (*value.Value, error) {
	if err := s.access(i); err != nil {
		return nil, err
	}
	return &s.slots[i].val, nil
}

// Set stores v at i. If the slot is currently occupied and not flagged
// Reference, the previous value is released (in a manual-memory engine
// this would free it explicitly; here it is simply dropped for the
// garbage collector, but the ownership bookkeeping still matters for the
// Reference/Keep contract enforced elsewhere).
func (s *Set) Set(i int, v value.Value) error {
	if err := s.access(i); err != nil {
		return err
	}
	s.slots[i] = slot{val: v}
	return nil
}

// Move transfers ownership of a's value into b; a becomes null.
func (s *Set) Move(a, b int) error {
	if err := s.access(a); err != nil {
		return err
	}
	if err := s.access(b); err != nil {
		return err
	}
	s.slots[b] = s.slots[a]
	s.slots[a] = slot{}
	return nil
}

// Swap exchanges the contents and flags of a and b.
func (s *Set) Swap(a, b int) error {
	if err := s.access(a); err != nil {
		return err
	}
	if err := s.access(b); err != nil {
		return err
	}
	s.slots[a], s.slots[b] = s.slots[b], s.slots[a]
	return nil
}

// Copy stores a deep clone of a's value into b.
func (s *Set) Copy(a, b int) error {
	if err := s.access(a); err != nil {
		return err
	}
	if err := s.access(b); err != nil {
		return err
	}
	v := s.slots[a].val
	if v == nil {
		s.slots[b] = slot{}
		return nil
	}
	s.slots[b] = slot{val: v.Copy()}
	return nil
}

// Free releases i's contents and nulls the slot.
func (s *Set) Free(i int) error {
	if err := s.access(i); err != nil {
		return err
	}
	s.slots[i] = slot{}
	return nil
}

// Empty nulls i without regard to its flags (same effect as Free in a
// garbage-collected host, kept distinct to mirror the manual-memory
// contract's naming).
func (s *Set) Empty(i int) error { return s.Free(i) }

// Drop nulls i without freeing its contents — used by Frame teardown so
// that by-reference arguments (owned by the caller) are not double-freed
// when the callee's argument set is torn down.
func (s *Set) Drop(i int) error {
	if err := s.access(i); err != nil {
		return err
	}
	s.slots[i] = slot{}
	return nil
}

// DropAll drops every slot, per Frame's destruction contract for its args
// register set.
func (s *Set) DropAll() {
	for i := range s.slots {
		s.slots[i] = slot{}
	}
}

func (s *Set) Flag(i int, f Flag) error {
	if err := s.access(i); err != nil {
		return err
	}
	s.slots[i].flags |= f
	return nil
}

func (s *Set) Unflag(i int, f Flag) error {
	if err := s.access(i); err != nil {
		return err
	}
	s.slots[i].flags &^= f
	return nil
}

func (s *Set) IsFlagged(i int, f Flag) (bool, error) {
	if err := s.access(i); err != nil {
		return false, err
	}
	return s.slots[i].flags&f != 0, nil
}

func (s *Set) SetMask(i int, mask Flag) error {
	if err := s.access(i); err != nil {
		return err
	}
	s.slots[i].flags = mask
	return nil
}

func (s *Set) GetMask(i int) (Flag, error) {
	if err := s.access(i); err != nil {
		return 0, err
	}
	return s.slots[i].flags, nil
}
