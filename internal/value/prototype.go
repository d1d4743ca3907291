package value

// Prototype is the runtime type descriptor CLASS/PROTOTYPE create, DERIVE
// and ATTACH populate, and REGISTER installs into the engine's typesystem.
type Prototype struct {
	Name    string
	bases   []string
	Methods map[string]string // method name -> attached function name
}

func NewPrototype(name string) *Prototype {
	return &Prototype{Name: name, Methods: make(map[string]string)}
}

func (p *Prototype) Derive(base string) { p.bases = append(p.bases, base) }

func (p *Prototype) Attach(method, fn string) { p.Methods[method] = fn }

func (p *Prototype) TypeName() string { return "Prototype" }
func (p *Prototype) Str() string      { return "<prototype " + p.Name + ">" }
func (p *Prototype) Repr() string     { return p.Str() }
func (p *Prototype) Boolean() bool    { return true }

func (p *Prototype) Copy() Value {
	methods := make(map[string]string, len(p.Methods))
	for k, v := range p.Methods {
		methods[k] = v
	}
	return &Prototype{Name: p.Name, bases: append([]string(nil), p.bases...), Methods: methods}
}

// Bases returns the prototype's immediate supertypes, in DERIVE order.
func (p *Prototype) Bases() []string { return p.bases }

// InheritanceChain returns the immediate bases only; the full depth-first
// walk across the typesystem registry (needed to resolve a base's own
// bases) is performed by the engine's typesystem component, which alone
// holds the registry this shallow method would otherwise have to carry a
// back-reference to.
func (p *Prototype) InheritanceChain() []string { return p.bases }

// Object is an instance of a Prototype: named fields plus the prototype
// name used for method dispatch (MSG) and exception type matching.
type Object struct {
	Proto  *Prototype
	Fields map[string]Value
}

func NewObject(proto *Prototype) *Object {
	return &Object{Proto: proto, Fields: make(map[string]Value)}
}

func (o *Object) TypeName() string {
	if o.Proto == nil {
		return "Object"
	}
	return o.Proto.Name
}

func (o *Object) Str() string  { return "<" + o.TypeName() + " object>" }
func (o *Object) Repr() string { return o.Str() }
func (o *Object) Boolean() bool { return true }

func (o *Object) Copy() Value {
	fields := make(map[string]Value, len(o.Fields))
	for k, v := range o.Fields {
		fields[k] = v.Copy()
	}
	return &Object{Proto: o.Proto, Fields: fields}
}

func (o *Object) Bases() []string {
	if o.Proto == nil {
		return nil
	}
	return o.Proto.Bases()
}

func (o *Object) InheritanceChain() []string {
	if o.Proto == nil {
		return nil
	}
	return o.Proto.InheritanceChain()
}
