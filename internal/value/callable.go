package value

import "strings"

// Function is a bare reference to a named, statically addressed callable —
// the value FUNCTION produces so a function can be passed around and later
// invoked indirectly via FCALL.
type Function struct {
	scalarBases
	Name string
}

func (f Function) TypeName() string { return "Function" }
func (f Function) Str() string      { return "<function " + f.Name + ">" }
func (f Function) Repr() string     { return f.Str() }
func (f Function) Boolean() bool    { return true }
func (f Function) Copy() Value      { return Function{Name: f.Name} }

// Closure is a callable bundled with the values CLBIND captured from the
// enclosing frame at the point CLOSURE was executed.
type Closure struct {
	scalarBases
	Name    string
	Bound []Value
}

func (c *Closure) TypeName() string { return "Closure" }

func (c *Closure) Str() string {
	parts := make([]string, len(c.Bound))
	for i, b := range c.Bound {
		parts[i] = b.Str()
	}
	return "<closure " + c.Name + " [" + strings.Join(parts, ", ") + "]>"
}

func (c *Closure) Repr() string  { return c.Str() }
func (c *Closure) Boolean() bool { return true }

func (c *Closure) Copy() Value {
	bound := make([]Value, len(c.Bound))
	for i, b := range c.Bound {
		bound[i] = b.Copy()
	}
	return &Closure{Name: c.Name, Bound: bound}
}
