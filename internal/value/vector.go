package value

import "strings"

// Vector is Viua's growable array value, backing VEC/VINSERT/VPUSH/VPOP/
// VAT/VLEN.
type Vector struct {
	scalarBases
	Items []Value
}

func NewVector() *Vector { return &Vector{} }

func (v *Vector) TypeName() string { return "Vector" }

func (v *Vector) Str() string {
	parts := make([]string, len(v.Items))
	for i, it := range v.Items {
		parts[i] = it.Str()
	}
	return "[" + strings.Join(parts, ", ") + "]"
}

func (v *Vector) Repr() string {
	parts := make([]string, len(v.Items))
	for i, it := range v.Items {
		parts[i] = it.Repr()
	}
	return "[" + strings.Join(parts, ", ") + "]"
}

func (v *Vector) Boolean() bool { return len(v.Items) > 0 }

// Copy performs a deep clone, per the Value contract's ownership invariant.
func (v *Vector) Copy() Value {
	items := make([]Value, len(v.Items))
	for i, it := range v.Items {
		items[i] = it.Copy()
	}
	return &Vector{Items: items}
}
