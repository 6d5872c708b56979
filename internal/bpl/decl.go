package bpl

// Variable is a named, typed, attributed variable. Dualization never
// mutates a variable in place; it clones and retags.
type Variable struct {
	Name  string
	Type  Type
	Attrs Attrs
}

// WithName returns a copy of the variable under a new name.
func (v Variable) WithName(name string) Variable {
	out := v.Clone()
	out.Name = name
	return out
}

// Clone returns a copy with its own attribute storage.
func (v Variable) Clone() Variable {
	return Variable{Name: v.Name, Type: v.Type, Attrs: append(Attrs(nil), v.Attrs...)}
}

func (v Variable) String() string {
	s := v.Name + ": " + v.Type.String()
	if len(v.Attrs) > 0 {
		s = v.Attrs.String() + " " + s
	}
	return s
}

// Decl is a top-level declaration.
type Decl interface {
	isDecl()
}

// GlobalVar declares a global variable.
type GlobalVar struct {
	Var Variable
}

func (*GlobalVar) isDecl() {}

// ConstDecl declares a symbolic constant.
type ConstDecl struct {
	Var Variable
}

func (*ConstDecl) isDecl() {}

// AxiomDecl declares a global fact.
type AxiomDecl struct {
	Expr Expr
}

func (*AxiomDecl) isDecl() {}

// FuncDecl declares an uninterpreted function.
type FuncDecl struct {
	Name   string
	Params []Type
	Result Type
	Attrs  Attrs
}

func (*FuncDecl) isDecl() {}

// Spec is a single requires or ensures clause.
type Spec struct {
	Expr  Expr
	Attrs Attrs
}

// Procedure declares a callable signature with its contract.
type Procedure struct {
	Name      string
	Attrs     Attrs
	InParams  []Variable
	OutParams []Variable
	Requires  []Spec
	Ensures   []Spec
	Modifies  []string
}

func (*Procedure) isDecl() {}

// Implementation carries the basic blocks of a procedure body.
type Implementation struct {
	Name      string
	Attrs     Attrs
	InParams  []Variable
	OutParams []Variable
	Locals    []Variable
	Blocks    []*Block
}

func (*Implementation) isDecl() {}

// Program is the whole translation unit, a declaration list consumed
// top to bottom by each pass.
type Program struct {
	Decls []Decl
}

// Add appends declarations.
func (p *Program) Add(decls ...Decl) {
	p.Decls = append(p.Decls, decls...)
}

// Procedure finds a procedure declaration by name.
func (p *Program) Procedure(name string) *Procedure {
	for _, d := range p.Decls {
		if proc, ok := d.(*Procedure); ok && proc.Name == name {
			return proc
		}
	}
	return nil
}

// Implementation finds an implementation by name.
func (p *Program) Implementation(name string) *Implementation {
	for _, d := range p.Decls {
		if impl, ok := d.(*Implementation); ok && impl.Name == name {
			return impl
		}
	}
	return nil
}

// Implementations returns every implementation in declaration order.
func (p *Program) Implementations() []*Implementation {
	var out []*Implementation
	for _, d := range p.Decls {
		if impl, ok := d.(*Implementation); ok {
			out = append(out, impl)
		}
	}
	return out
}

// Global finds a global variable declaration by name.
func (p *Program) Global(name string) *GlobalVar {
	for _, d := range p.Decls {
		if g, ok := d.(*GlobalVar); ok && g.Var.Name == name {
			return g
		}
	}
	return nil
}

// Function finds an uninterpreted function declaration by name.
func (p *Program) Function(name string) *FuncDecl {
	for _, d := range p.Decls {
		if f, ok := d.(*FuncDecl); ok && f.Name == name {
			return f
		}
	}
	return nil
}
