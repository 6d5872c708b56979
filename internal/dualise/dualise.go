// Package dualise implements the two-thread reduction: every
// non-uniform declaration and command is duplicated into thread-1 and
// thread-2 variants, while variables proven uniform across threads keep
// a single copy.
package dualise

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/gpuverify/kernelcheck/internal/bpl"
	"github.com/gpuverify/kernelcheck/internal/uniformity"
)

// Options control optional behaviour of the dualiser.
type Options struct {
	// AsymmetricOnly requests that only thread-1 assertions be emitted.
	AsymmetricOnly bool
	// CheckBarrierAccesses emits per-instantiation access-permission
	// checks when flushing barrier invariants.
	CheckBarrierAccesses bool
}

// Dualiser rewrites a whole program. It holds no per-block state; the
// pending barrier-invariant batch is owned by block rewriting.
type Dualiser struct {
	table *uniformity.Table
	opts  Options
	log   *zap.Logger
	prog  *bpl.Program
	out   *bpl.Program
}

// New creates a dualiser over the given uniformity table.
func New(table *uniformity.Table, opts Options, log *zap.Logger) *Dualiser {
	if log == nil {
		log = zap.NewNop()
	}
	return &Dualiser{table: table, opts: opts, log: log}
}

// Dualise rewrites every top-level declaration and returns a fresh
// program. The input program is not mutated.
func (d *Dualiser) Dualise(prog *bpl.Program) (*bpl.Program, error) {
	d.prog = prog
	out := &bpl.Program{}
	d.out = out
	for _, decl := range prog.Decls {
		switch x := decl.(type) {
		case *bpl.GlobalVar, *bpl.ConstDecl, *bpl.AxiomDecl:
			// Globals, shared arrays and constants are never duplicated.
			out.Add(decl)
		case *bpl.FuncDecl:
			out.Add(x)
			if bpl.IsThreadIdentityFunc(x.Name) {
				for thread := 1; thread <= 2; thread++ {
					out.Add(&bpl.FuncDecl{
						Name:   bpl.ThreadName(x.Name, thread),
						Params: x.Params,
						Result: x.Result,
						Attrs:  append(bpl.Attrs(nil), x.Attrs...),
					})
				}
			}
		case *bpl.Procedure:
			out.Add(d.dualiseProcedure(x))
		case *bpl.Implementation:
			impl, err := d.dualiseImplementation(x)
			if err != nil {
				return nil, err
			}
			out.Add(impl)
		default:
			panic(fmt.Sprintf("dualise: unknown declaration %T", decl))
		}
	}
	d.log.Debug("dualised program", zap.Int("decls", len(out.Decls)))
	return out, nil
}

// procContext is the per-procedure rewriting state: which names were
// split into two thread copies.
type procContext struct {
	d    *Dualiser
	proc string
	dup  map[string]bool
}

func (d *Dualiser) newProcContext(proc string) *procContext {
	return &procContext{d: d, proc: proc, dup: make(map[string]bool)}
}

// DualiseVariableSequence splits a variable sequence into the uniform
// prefix (kept single, original order) followed by the thread-1 copies
// of the non-uniform variables followed by the thread-2 copies.
func (pc *procContext) DualiseVariableSequence(vars []bpl.Variable) []bpl.Variable {
	var uniform, nonUniform []bpl.Variable
	for _, v := range vars {
		if pc.d.table.IsUniform(pc.proc, v.Name) {
			uniform = append(uniform, v.Clone())
		} else {
			nonUniform = append(nonUniform, v)
			pc.dup[v.Name] = true
		}
	}
	out := uniform
	for thread := 1; thread <= 2; thread++ {
		for _, v := range nonUniform {
			out = append(out, v.WithName(bpl.ThreadName(v.Name, thread)))
		}
	}
	return out
}

// dualiseProcedure rewrites a procedure signature and contract.
// requires/ensures are emitted once for thread 1 unconditionally; a
// thread-2 copy follows only when the clause is neither uniform nor
// asymmetric, since either property makes a literal second copy wrong
// or redundant.
func (d *Dualiser) dualiseProcedure(proc *bpl.Procedure) *bpl.Procedure {
	pc := d.newProcContext(proc.Name)
	out := &bpl.Procedure{
		Name:      proc.Name,
		Attrs:     append(bpl.Attrs(nil), proc.Attrs...),
		InParams:  pc.DualiseVariableSequence(proc.InParams),
		OutParams: pc.DualiseVariableSequence(proc.OutParams),
		Modifies:  append([]string(nil), proc.Modifies...),
	}
	out.Requires = pc.dualiseSpecs(proc.Requires)
	out.Ensures = pc.dualiseSpecs(proc.Ensures)
	return out
}

func (pc *procContext) dualiseSpecs(specs []bpl.Spec) []bpl.Spec {
	var out []bpl.Spec
	for _, s := range specs {
		out = append(out, bpl.Spec{Expr: pc.RewriteExpr(s.Expr, 1), Attrs: s.Attrs})
		if !pc.d.table.ExprIsUniform(pc.proc, s.Expr) && !uniformity.HasAsymmetry(s.Expr) {
			out = append(out, bpl.Spec{Expr: pc.RewriteExpr(s.Expr, 2), Attrs: s.Attrs})
		}
	}
	return out
}

func (d *Dualiser) dualiseImplementation(impl *bpl.Implementation) (*bpl.Implementation, error) {
	pc := d.newProcContext(impl.Name)
	out := &bpl.Implementation{
		Name:      impl.Name,
		Attrs:     append(bpl.Attrs(nil), impl.Attrs...),
		InParams:  pc.DualiseVariableSequence(impl.InParams),
		OutParams: pc.DualiseVariableSequence(impl.OutParams),
		Locals:    pc.DualiseVariableSequence(impl.Locals),
	}
	for _, b := range impl.Blocks {
		cmds, err := pc.dualiseBlockCmds(b.Cmds)
		if err != nil {
			return nil, fmt.Errorf("in %s, block %s: %w", impl.Name, b.Label, err)
		}
		out.Blocks = append(out.Blocks, &bpl.Block{
			Label:    b.Label,
			Cmds:     cmds,
			Transfer: b.Transfer,
		})
	}
	return out, nil
}
