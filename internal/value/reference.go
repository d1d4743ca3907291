package value

// Reference is the value kind REF/PTR produce: an indirection onto another
// register's storage cell. It supplements the register-level REFERENCE
// flag (which governs ownership/freeing of an aliased slot) with something
// that can itself be stored in a vector, passed as an argument, or handed
// to DEPTR/ISPTR as an ordinary value — matching the original's raw
// Reference type without its shared-refcount cycle machinery, per the
// engine's slot-indirection design note.
type Reference struct {
	scalarBases
	Target *Value
}

func (r Reference) TypeName() string { return "Reference" }

func (r Reference) Str() string {
	if r.Target == nil || *r.Target == nil {
		return "<reference to null>"
	}
	return "<reference to " + (*r.Target).Str() + ">"
}

func (r Reference) Repr() string { return r.Str() }

func (r Reference) Boolean() bool {
	return r.Target != nil && *r.Target != nil
}

// Copy duplicates the reference pointer itself, not the pointee — a
// Reference's owned content is the indirection, matching COPY's uniform
// "B.copy()" contract without collapsing the aliasing it exists to express.
func (r Reference) Copy() Value { return Reference{Target: r.Target} }

// Deref returns the value currently pointed to by r, or nil if the target
// is null.
func (r Reference) Deref() Value {
	if r.Target == nil {
		return nil
	}
	return *r.Target
}
