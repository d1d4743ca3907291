package value

import (
	"fmt"
	"strconv"
)

// Integer is Viua's signed 64-bit integer scalar.
type Integer struct {
	scalarBases
	V int64
}

func (i Integer) TypeName() string { return "Integer" }
func (i Integer) Str() string      { return strconv.FormatInt(i.V, 10) }
func (i Integer) Repr() string     { return i.Str() }
func (i Integer) Boolean() bool    { return i.V != 0 }
func (i Integer) Copy() Value      { return Integer{V: i.V} }

// Float is Viua's 64-bit floating point scalar; FSTORE encodes a float32
// literal but the engine widens it to float64 for arithmetic, matching the
// original's promotion behavior for mixed int/float operations.
type Float struct {
	scalarBases
	V float64
}

func (f Float) TypeName() string { return "Float" }
func (f Float) Str() string      { return strconv.FormatFloat(f.V, 'g', -1, 64) }
func (f Float) Repr() string     { return f.Str() }
func (f Float) Boolean() bool    { return f.V != 0 }
func (f Float) Copy() Value      { return Float{V: f.V} }

// Byte is Viua's single-byte scalar, used by the BSTORE/B-prefixed family.
type Byte struct {
	scalarBases
	V byte
}

func (b Byte) TypeName() string { return "Byte" }
func (b Byte) Str() string      { return strconv.Itoa(int(b.V)) }
func (b Byte) Repr() string     { return fmt.Sprintf("0x%02x", b.V) }
func (b Byte) Boolean() bool    { return b.V != 0 }
func (b Byte) Copy() Value      { return Byte{V: b.V} }

// Boolean is Viua's boolean scalar.
type Boolean struct {
	scalarBases
	V bool
}

func (b Boolean) TypeName() string { return "Boolean" }
func (b Boolean) Str() string {
	if b.V {
		return "true"
	}
	return "false"
}
func (b Boolean) Repr() string  { return b.Str() }
func (b Boolean) Boolean() bool { return b.V }
func (b Boolean) Copy() Value   { return Boolean{V: b.V} }

// String is Viua's UTF-8 string scalar, produced by STRSTORE.
type String struct {
	scalarBases
	V string
}

func (s String) TypeName() string { return "String" }
func (s String) Str() string      { return s.V }
func (s String) Repr() string     { return strconv.Quote(s.V) }
func (s String) Boolean() bool    { return s.V != "" }
func (s String) Copy() Value      { return String{V: s.V} }
