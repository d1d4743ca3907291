package value

import "testing"

func TestScalarStrAndRepr(t *testing.T) {
	cases := []struct {
		v        Value
		wantStr  string
		wantRepr string
	}{
		{Integer{V: -3}, "-3", "-3"},
		{Float{V: 1.5}, "1.5", "1.5"},
		{Byte{V: 0xA}, "10", "0x0a"},
		{Boolean{V: true}, "true", "true"},
		{String{V: "hi"}, "hi", `"hi"`},
	}
	for _, tc := range cases {
		if got := tc.v.Str(); got != tc.wantStr {
			t.Errorf("%T.Str() = %q, want %q", tc.v, got, tc.wantStr)
		}
		if got := tc.v.Repr(); got != tc.wantRepr {
			t.Errorf("%T.Repr() = %q, want %q", tc.v, got, tc.wantRepr)
		}
	}
}

func TestScalarBooleanCoercion(t *testing.T) {
	if (Integer{V: 0}).Boolean() {
		t.Error("Integer{0}.Boolean() should be false")
	}
	if !(Integer{V: 1}).Boolean() {
		t.Error("Integer{1}.Boolean() should be true")
	}
	if (String{V: ""}).Boolean() {
		t.Error("String{\"\"}.Boolean() should be false")
	}
}

func TestScalarCopyIsIndependent(t *testing.T) {
	a := Integer{V: 4}
	b := a.Copy().(Integer)
	if a != b {
		t.Errorf("copy = %v, want equal to original %v", b, a)
	}
}

func TestVectorCopyIsDeep(t *testing.T) {
	v := &Vector{Items: []Value{Integer{V: 1}, Integer{V: 2}}}
	cp := v.Copy().(*Vector)
	cp.Items[0] = Integer{V: 99}

	if v.Items[0] != (Integer{V: 1}) {
		t.Errorf("original vector mutated by copy: %v", v.Items[0])
	}
	if !v.Boolean() {
		t.Error("non-empty vector should be truthy")
	}
	if (&Vector{}).Boolean() {
		t.Error("empty vector should be falsy")
	}
}

func TestReferenceDerefAndBoolean(t *testing.T) {
	var cell Value = Integer{V: 5}
	ref := Reference{Target: &cell}

	if !ref.Boolean() {
		t.Error("a reference to a non-null cell should be truthy")
	}
	if got := ref.Deref(); got != (Integer{V: 5}) {
		t.Errorf("Deref() = %v, want Integer{5}", got)
	}

	cell = nil
	if ref.Boolean() {
		t.Error("a reference whose target became nil should be falsy")
	}

	nilRef := Reference{}
	if nilRef.Deref() != nil {
		t.Error("a reference with no target should deref to nil")
	}
}

func TestPrototypeDeriveAttachAndCopy(t *testing.T) {
	dog := NewPrototype("Dog")
	dog.Derive("Animal")
	dog.Attach("speak", "dog_speak")

	if len(dog.Bases()) != 1 || dog.Bases()[0] != "Animal" {
		t.Errorf("Dog.Bases() = %v, want [Animal]", dog.Bases())
	}
	if dog.Methods["speak"] != "dog_speak" {
		t.Errorf("Dog.Methods[speak] = %q, want dog_speak", dog.Methods["speak"])
	}

	cp := dog.Copy().(*Prototype)
	cp.Attach("fetch", "dog_fetch")
	if _, ok := dog.Methods["fetch"]; ok {
		t.Error("attaching a method on a copy should not mutate the original prototype")
	}
}

func TestObjectTypeNameAndBases(t *testing.T) {
	proto := NewPrototype("Dog")
	proto.Derive("Animal")
	obj := NewObject(proto)

	if obj.TypeName() != "Dog" {
		t.Errorf("TypeName() = %q, want Dog", obj.TypeName())
	}
	if len(obj.Bases()) != 1 || obj.Bases()[0] != "Animal" {
		t.Errorf("Bases() = %v, want [Animal]", obj.Bases())
	}

	obj.Fields["name"] = String{V: "Rex"}
	cp := obj.Copy().(*Object)
	cp.Fields["name"] = String{V: "Fido"}
	if obj.Fields["name"] != (String{V: "Rex"}) {
		t.Error("mutating a copy's fields should not affect the original object")
	}
}

func TestObjectWithNilPrototypeDefaultsTypeName(t *testing.T) {
	obj := &Object{Fields: map[string]Value{}}
	if obj.TypeName() != "Object" {
		t.Errorf("TypeName() with a nil prototype = %q, want Object", obj.TypeName())
	}
	if obj.Bases() != nil {
		t.Errorf("Bases() with a nil prototype = %v, want nil", obj.Bases())
	}
}
