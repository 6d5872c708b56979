// Package barrier captures user-supplied cross-thread barrier
// invariants and instantiates them for an arbitrary thread pair at the
// barrier that consumes them.
package barrier

import (
	"errors"
	"fmt"

	"github.com/gpuverify/kernelcheck/internal/bpl"
	"github.com/gpuverify/kernelcheck/internal/uniformity"
)

// Placeholder is the quantified thread-identity name used by invariant
// bodies that are not written as explicit quantifiers.
const Placeholder = "__tid"

// ErrNotInstantiable is reported when a barrier invariant is
// instantiated over an expression that arbitrary threads cannot
// evaluate. Continuing would produce an unsound check, so callers must
// surface this to the user and exit non-zero.
var ErrNotInstantiable = errors.New("barrier invariant expression is not instantiable by arbitrary threads")

// NotInstantiableError pinpoints the offending sub-expression.
type NotInstantiableError struct {
	Name string
	Expr bpl.Expr
}

func (e *NotInstantiableError) Error() string {
	return fmt.Sprintf("cannot instantiate barrier invariant: %q in %s is neither uniform, a constant, nor a shared array", e.Name, e.Expr.String())
}

func (e *NotInstantiableError) Unwrap() error {
	return ErrNotInstantiable
}

// Rewriter renames an expression for one of the two symbolic threads.
// The dualiser provides the implementation.
type Rewriter interface {
	RewriteExpr(e bpl.Expr, thread int) bpl.Expr
}

// Descriptor is one pending barrier invariant, captured between two
// consecutive barriers and consumed at the second.
type Descriptor struct {
	Proc      string      // enclosing procedure
	Guard     bpl.Expr    // applicability predicate
	Invariant bpl.Expr    // invariant body over the placeholder
	Unary     []bpl.Expr  // instantiation expressions (unary form)
	Binary    [][2]bpl.Expr // instantiation pairs (binary form)
	Attrs     bpl.Attrs   // originating attributes, kept for source mapping
}

// IsBinary reports whether this descriptor came from
// __binary_barrier_invariant.
func (d *Descriptor) IsBinary() bool {
	return len(d.Binary) > 0
}

// placeholderAndBody unwraps an explicitly quantified invariant.
func (d *Descriptor) placeholderAndBody() (string, bpl.Expr) {
	if q, ok := d.Invariant.(bpl.QuantExpr); ok && len(q.Vars) == 1 {
		return q.Vars[0].Name, q.Body
	}
	return Placeholder, d.Invariant
}

// AssertionCmd is the pre-barrier obligation that the invariant
// actually holds for the thread itself: the placeholder becomes the
// thread's own local id, and the dualiser's ordinary assertion rule
// then renames that call per thread.
func (d *Descriptor) AssertionCmd() bpl.Cmd {
	return &bpl.AssertCmd{
		Expr:  bpl.Imp(d.Guard, d.Instantiate(bpl.Apply(bpl.LocalIDFunc))),
		Attrs: d.Attrs.With("barrier_invariant"),
	}
}

// Instantiate substitutes the thread placeholder with the given
// expression. For the unary form this is a literal replacement.
func (d *Descriptor) Instantiate(inst bpl.Expr) bpl.Expr {
	ph, body := d.placeholderAndBody()
	return bpl.Subst(body, ph, inst)
}

// instantiateBinary substitutes for a pair of threads. A nested
// other-thread call flips the pair: its argument is re-substituted with
// the two instantiation expressions swapped. The descent is top-down:
// an other-thread call must flip the pair before its argument is
// substituted.
func instantiateBinary(body bpl.Expr, ph string, first, second bpl.Expr) bpl.Expr {
	rec := func(e bpl.Expr) bpl.Expr {
		return instantiateBinary(e, ph, first, second)
	}
	switch x := body.(type) {
	case bpl.IdentExpr:
		if x.Name == ph {
			return first
		}
		return x
	case bpl.CallExpr:
		if bpl.IsOtherFunc(x.Func) && len(x.Args) == 1 {
			return instantiateBinary(x.Args[0], ph, second, first)
		}
		args := make([]bpl.Expr, len(x.Args))
		for i, a := range x.Args {
			args[i] = rec(a)
		}
		return bpl.CallExpr{Func: x.Func, Args: args}
	case bpl.BinaryExpr:
		return bpl.BinaryExpr{Op: x.Op, Left: rec(x.Left), Right: rec(x.Right)}
	case bpl.UnaryExpr:
		return bpl.UnaryExpr{Op: x.Op, Operand: rec(x.Operand)}
	case bpl.SelectExpr:
		return bpl.SelectExpr{Map: rec(x.Map), Index: rec(x.Index)}
	case bpl.StoreExpr:
		return bpl.StoreExpr{Map: rec(x.Map), Index: rec(x.Index), Value: rec(x.Value)}
	case bpl.IteExpr:
		return bpl.IteExpr{Cond: rec(x.Cond), Then: rec(x.Then), Else: rec(x.Else)}
	case bpl.QuantExpr:
		return bpl.QuantExpr{Vars: x.Vars, Body: rec(x.Body)}
	default:
		return body
	}
}

// InstantiationCmds emits the post-barrier assumptions making the
// invariant available to an arbitrary thread pair. Every instantiation
// expression is validated against the uniformity table first.
func (d *Descriptor) InstantiationCmds(rw Rewriter, table *uniformity.Table) ([]bpl.Cmd, error) {
	ph, body := d.placeholderAndBody()
	var cmds []bpl.Cmd
	if d.IsBinary() {
		for _, pair := range d.Binary {
			for _, e := range pair {
				if err := d.checkInstantiable(e, table); err != nil {
					return nil, err
				}
			}
			first := rw.RewriteExpr(pair[0], 1)
			second := rw.RewriteExpr(pair[1], 2)
			inst := instantiateBinary(body, ph, first, second)
			guard := bpl.And(rw.RewriteExpr(d.Guard, 1), rw.RewriteExpr(d.Guard, 2))
			cmds = append(cmds, &bpl.AssumeCmd{Expr: bpl.Imp(guard, inst), Attrs: d.Attrs})
		}
		return cmds, nil
	}
	for _, e := range d.Unary {
		if err := d.checkInstantiable(e, table); err != nil {
			return nil, err
		}
		for thread := 1; thread <= 2; thread++ {
			inst := bpl.Subst(body, ph, rw.RewriteExpr(e, thread))
			guard := rw.RewriteExpr(d.Guard, thread)
			cmds = append(cmds, &bpl.AssumeCmd{Expr: bpl.Imp(guard, inst), Attrs: d.Attrs})
		}
	}
	return cmds, nil
}

// AccessCheckCmds emits, per instantiation, the obligations that
// evaluating the invariant does not itself race: any shared-array read
// in the body must not collide with a logged write.
func (d *Descriptor) AccessCheckCmds(rw Rewriter) []bpl.Cmd {
	ph, body := d.placeholderAndBody()
	var insts []bpl.Expr
	for _, e := range d.Unary {
		insts = append(insts, e)
	}
	for _, pair := range d.Binary {
		insts = append(insts, pair[0], pair[1])
	}
	var cmds []bpl.Cmd
	for _, inst := range insts {
		instantiated := bpl.Subst(body, ph, rw.RewriteExpr(inst, 1))
		bpl.WalkExpr(instantiated, func(n bpl.Expr) bool {
			sel, ok := n.(bpl.SelectExpr)
			if !ok {
				return true
			}
			id, ok := sel.Map.(bpl.IdentExpr)
			if !ok || !bpl.IsSharedArray(id.Name) {
				return true
			}
			noClash := bpl.Or(
				bpl.Not(bpl.Id("_WRITE_HAS_OCCURRED_"+id.Name)),
				bpl.Neq(bpl.Id("_WRITE_OFFSET_"+id.Name), sel.Index),
			)
			cmds = append(cmds, &bpl.AssertCmd{
				Expr:  bpl.Imp(rw.RewriteExpr(d.Guard, 1), noClash),
				Attrs: d.Attrs.With("barrier_invariant_access_check").With(bpl.AttrArray, id.Name),
			})
			return true
		})
	}
	return cmds
}

// checkInstantiable validates that an instantiation expression only
// references values any thread can evaluate: uniform variables,
// constants, shared arrays, and thread-identity functions.
func (d *Descriptor) checkInstantiable(e bpl.Expr, table *uniformity.Table) error {
	var bad *NotInstantiableError
	bpl.WalkExpr(e, func(n bpl.Expr) bool {
		if bad != nil {
			return false
		}
		if id, ok := n.(bpl.IdentExpr); ok {
			if bpl.IsSharedArray(id.Name) || table.IsUniform(d.Proc, id.Name) {
				return true
			}
			bad = &NotInstantiableError{Name: id.Name, Expr: e}
			return false
		}
		return true
	})
	if bad != nil {
		return bad
	}
	return nil
}
