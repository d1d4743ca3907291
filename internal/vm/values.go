package vm

import (
	"viua/internal/value"
)

// asInteger reports whether v is an Integer and returns its value.
func asInteger(v value.Value) (int64, bool) {
	i, ok := v.(value.Integer)
	if !ok {
		return 0, false
	}
	return i.V, true
}

func asFloat(v value.Value) (float64, bool) {
	f, ok := v.(value.Float)
	if !ok {
		return 0, false
	}
	return f.V, true
}

func asByte(v value.Value) (byte, bool) {
	b, ok := v.(value.Byte)
	if !ok {
		return 0, false
	}
	return b.V, true
}

func asBoolean(v value.Value) (bool, bool) {
	b, ok := v.(value.Boolean)
	if !ok {
		return false, false
	}
	return b.V, true
}

func asString(v value.Value) (string, bool) {
	s, ok := v.(value.String)
	if !ok {
		return "", false
	}
	return s.V, true
}

func asVector(v value.Value) (*value.Vector, bool) {
	vec, ok := v.(*value.Vector)
	return vec, ok
}

func asReference(v value.Value) (value.Reference, bool) {
	r, ok := v.(value.Reference)
	return r, ok
}

func asPrototype(v value.Value) (*value.Prototype, bool) {
	p, ok := v.(*value.Prototype)
	return p, ok
}

func asObject(v value.Value) (*value.Object, bool) {
	o, ok := v.(*value.Object)
	return o, ok
}

func asCallableName(v value.Value) (string, bool) {
	switch fv := v.(type) {
	case value.Function:
		return fv.Name, true
	case *value.Closure:
		return fv.Name, true
	}
	return "", false
}

// truthy coerces v the way BRANCH and boolean-context opcodes do: nil is
// false, a Boolean is itself, anything else defers to its own Boolean().
func truthy(v value.Value) bool {
	if v == nil {
		return false
	}
	return v.Boolean()
}
