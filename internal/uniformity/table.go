// Package uniformity holds the per-procedure fact table describing
// which variables and expressions are provably identical across all
// threads. The table is a precomputed input to every later pass; it is
// never refined here.
package uniformity

import (
	"github.com/gpuverify/kernelcheck/internal/bpl"
)

// Table maps procedures to the set of their uniform variables, plus a
// program-wide set of names uniform everywhere (constants, shared
// arrays).
type Table struct {
	procs   map[string]map[string]bool
	globals map[string]bool
}

// New creates an empty table.
func New() *Table {
	return &Table{
		procs:   make(map[string]map[string]bool),
		globals: make(map[string]bool),
	}
}

// FromProgram builds a table from uniform attributes on declarations:
// globals and constants carrying {:uniform} are uniform everywhere,
// and procedure parameters/locals carrying {:uniform} are uniform in
// their enclosing procedure. Shared arrays are uniform as names by
// construction (they are never duplicated).
func FromProgram(prog *bpl.Program) *Table {
	t := New()
	for _, d := range prog.Decls {
		switch x := d.(type) {
		case *bpl.GlobalVar:
			if x.Var.Attrs.Has(bpl.AttrUniform) || bpl.IsSharedArray(x.Var.Name) {
				t.MarkUniformGlobal(x.Var.Name)
			}
		case *bpl.ConstDecl:
			t.MarkUniformGlobal(x.Var.Name)
		case *bpl.Implementation:
			for _, v := range x.InParams {
				if v.Attrs.Has(bpl.AttrUniform) {
					t.MarkUniform(x.Name, v.Name)
				}
			}
			for _, v := range x.OutParams {
				if v.Attrs.Has(bpl.AttrUniform) {
					t.MarkUniform(x.Name, v.Name)
				}
			}
			for _, v := range x.Locals {
				if v.Attrs.Has(bpl.AttrUniform) {
					t.MarkUniform(x.Name, v.Name)
				}
			}
		}
	}
	return t
}

// MarkUniform records a variable as uniform within a procedure.
func (t *Table) MarkUniform(proc, name string) {
	m, ok := t.procs[proc]
	if !ok {
		m = make(map[string]bool)
		t.procs[proc] = m
	}
	m[name] = true
}

// MarkUniformGlobal records a name as uniform in every procedure.
func (t *Table) MarkUniformGlobal(name string) {
	t.globals[name] = true
}

// IsUniform reports whether a variable is uniform in the given
// procedure. Unknown names are non-uniform.
func (t *Table) IsUniform(proc, name string) bool {
	if t.globals[name] {
		return true
	}
	if m, ok := t.procs[proc]; ok {
		return m[name]
	}
	return false
}

// ExprIsUniform reports whether an expression is uniform in the given
// procedure: every identifier it references is uniform and it calls no
// thread-identity or other-thread function.
func (t *Table) ExprIsUniform(proc string, e bpl.Expr) bool {
	uniform := true
	bpl.WalkExpr(e, func(n bpl.Expr) bool {
		switch x := n.(type) {
		case bpl.IdentExpr:
			if !t.IsUniform(proc, x.Name) {
				uniform = false
			}
		case bpl.CallExpr:
			if bpl.IsThreadIdentityFunc(x.Func) || bpl.IsOtherFunc(x.Func) {
				uniform = false
			}
		}
		return uniform
	})
	return uniform
}

// HasAsymmetry reports whether an expression contains a call into the
// other-thread function family. Such expressions are self-referential
// across the thread pair and must not be duplicated literally.
func HasAsymmetry(e bpl.Expr) bool {
	found := false
	bpl.WalkExpr(e, func(n bpl.Expr) bool {
		if c, ok := n.(bpl.CallExpr); ok && bpl.IsOtherFunc(c.Func) {
			found = true
		}
		return !found
	})
	return found
}
