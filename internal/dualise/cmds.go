package dualise

import (
	"fmt"
	"strings"

	"github.com/gpuverify/kernelcheck/internal/barrier"
	"github.com/gpuverify/kernelcheck/internal/bpl"
	"github.com/gpuverify/kernelcheck/internal/uniformity"
)

// dualiseBlockCmds rewrites one block's command list. The pending
// barrier-invariant batch is an accumulator owned by this traversal;
// it is flushed at the next barrier call and must never survive past
// one.
func (pc *procContext) dualiseBlockCmds(cmds []bpl.Cmd) ([]bpl.Cmd, error) {
	var out []bpl.Cmd
	var pending []*barrier.Descriptor
	for _, c := range cmds {
		var err error
		out, pending, err = pc.dualiseCmd(c, out, pending)
		if err != nil {
			return nil, err
		}
	}
	if len(pending) > 0 {
		return nil, fmt.Errorf("%d barrier invariant(s) not followed by a barrier", len(pending))
	}
	return out, nil
}

func (pc *procContext) dualiseCmd(c bpl.Cmd, out []bpl.Cmd, pending []*barrier.Descriptor) ([]bpl.Cmd, []*barrier.Descriptor, error) {
	switch x := c.(type) {
	case *bpl.AssignCmd:
		return append(out, pc.dualiseAssign(x)...), pending, nil
	case *bpl.HavocCmd:
		return append(out, pc.dualiseHavoc(x)...), pending, nil
	case *bpl.AssertCmd:
		return append(out, pc.dualiseAssert(x)...), pending, nil
	case *bpl.AssumeCmd:
		return append(out, pc.dualiseAssume(x)...), pending, nil
	case *bpl.CallCmd:
		return pc.dualiseCall(x, out, pending)
	default:
		panic(fmt.Sprintf("dualise: unknown command kind %T", c))
	}
}

// dualiseAssign partitions the assignment pairs: pairs whose assigned
// variable is uniform are emitted once, unchanged; the rest are
// duplicated into one thread-1 and one thread-2 simultaneous
// multi-assignment, preserving the original's atomicity.
func (pc *procContext) dualiseAssign(c *bpl.AssignCmd) []bpl.Cmd {
	if len(c.Lhs) != len(c.Rhs) {
		panic("dualise: malformed assignment (lhs/rhs arity mismatch)")
	}
	var uniLhs, uniRhs []bpl.Expr
	var dupLhs, dupRhs []bpl.Expr
	for i := range c.Lhs {
		if pc.d.table.IsUniform(pc.proc, bpl.LhsRoot(c.Lhs[i])) {
			uniLhs = append(uniLhs, c.Lhs[i])
			uniRhs = append(uniRhs, c.Rhs[i])
		} else {
			dupLhs = append(dupLhs, c.Lhs[i])
			dupRhs = append(dupRhs, c.Rhs[i])
		}
	}
	var cmds []bpl.Cmd
	if len(uniLhs) > 0 {
		cmds = append(cmds, &bpl.AssignCmd{Lhs: uniLhs, Rhs: uniRhs, Attrs: c.Attrs})
	}
	for thread := 1; thread <= 2; thread++ {
		if len(dupLhs) == 0 {
			break
		}
		lhs := make([]bpl.Expr, len(dupLhs))
		rhs := make([]bpl.Expr, len(dupRhs))
		for i := range dupLhs {
			lhs[i] = pc.RewriteExpr(dupLhs[i], thread)
			rhs[i] = pc.RewriteExpr(dupRhs[i], thread)
		}
		cmds = append(cmds, &bpl.AssignCmd{Lhs: lhs, Rhs: rhs, Attrs: c.Attrs})
	}
	return cmds
}

func (pc *procContext) dualiseHavoc(c *bpl.HavocCmd) []bpl.Cmd {
	if len(c.Vars) != 1 {
		panic("dualise: havoc of more than one variable")
	}
	name := c.Vars[0]
	if !pc.dup[name] {
		return []bpl.Cmd{&bpl.HavocCmd{Vars: []string{name}, Attrs: c.Attrs}}
	}
	return []bpl.Cmd{
		&bpl.HavocCmd{Vars: []string{bpl.ThreadName(name, 1)}, Attrs: c.Attrs},
		&bpl.HavocCmd{Vars: []string{bpl.ThreadName(name, 2)}, Attrs: c.Attrs},
	}
}

// dualiseAssert: source-location markers are informational and go
// through once for thread 1. Real assertions always get a thread-1
// copy; a thread-2 copy follows unless the expression is uniform,
// asymmetric, or the configuration requested asymmetric-only checks.
func (pc *procContext) dualiseAssert(c *bpl.AssertCmd) []bpl.Cmd {
	if c.Attrs.Has(bpl.AttrSourceLoc) || c.Attrs.Has(bpl.AttrBlockLoc) {
		return []bpl.Cmd{&bpl.AssertCmd{Expr: pc.RewriteExpr(c.Expr, 1), Attrs: c.Attrs}}
	}
	cmds := []bpl.Cmd{&bpl.AssertCmd{Expr: pc.RewriteExpr(c.Expr, 1), Attrs: c.Attrs}}
	if !pc.exprUniform(c.Expr) && !uniformity.HasAsymmetry(c.Expr) && !pc.d.opts.AsymmetricOnly {
		cmds = append(cmds, &bpl.AssertCmd{Expr: pc.RewriteExpr(c.Expr, 2), Attrs: c.Attrs})
	}
	return cmds
}

func (pc *procContext) dualiseAssume(c *bpl.AssumeCmd) []bpl.Cmd {
	switch {
	case c.Attrs.Has(bpl.AttrCaptureState):
		// State labels must stay stable across dualization.
		return []bpl.Cmd{c}
	case c.Attrs.Has(bpl.AttrBackedge):
		// Either thread completing the loop suffices to take the back
		// edge.
		return []bpl.Cmd{&bpl.AssumeCmd{
			Expr:  bpl.Or(pc.RewriteExpr(c.Expr, 1), pc.RewriteExpr(c.Expr, 2)),
			Attrs: c.Attrs,
		}}
	case c.Attrs.Has(bpl.AttrAtomicRefine):
		return pc.expandAtomicRefinement(c)
	}
	if pc.exprUniform(c.Expr) || uniformity.HasAsymmetry(c.Expr) {
		return []bpl.Cmd{&bpl.AssumeCmd{Expr: pc.RewriteExpr(c.Expr, 1), Attrs: c.Attrs}}
	}
	// Both thread copies, conjoined into a single assumption.
	return []bpl.Cmd{&bpl.AssumeCmd{
		Expr:  bpl.And(pc.RewriteExpr(c.Expr, 1), pc.RewriteExpr(c.Expr, 2)),
		Attrs: c.Attrs,
	}}
}

// expandAtomicRefinement turns an atomic_refinement assumption into an
// explicit non-colliding choice: havoc the two thread-local witnesses,
// then per thread assume the (offset, value) pair is fresh in the
// array's used map and record it. The tagged assumption's expression
// must be `w == <array>[offset]`.
func (pc *procContext) expandAtomicRefinement(c *bpl.AssumeCmd) []bpl.Cmd {
	eq, ok := c.Expr.(bpl.BinaryExpr)
	if !ok || eq.Op != bpl.OpEq {
		panic("dualise: malformed atomic_refinement assumption")
	}
	witness, ok := eq.Left.(bpl.IdentExpr)
	if !ok {
		panic("dualise: atomic_refinement witness is not a variable")
	}
	sel, ok := eq.Right.(bpl.SelectExpr)
	if !ok {
		panic("dualise: atomic_refinement source is not an array read")
	}
	arrayID, ok := sel.Map.(bpl.IdentExpr)
	if !ok || !bpl.IsSharedArray(arrayID.Name) {
		panic("dualise: atomic_refinement source is not a shared array")
	}

	used := pc.d.ensureUsedMap(arrayID.Name)

	cmds := []bpl.Cmd{
		&bpl.HavocCmd{Vars: []string{pc.rewriteName(witness.Name, 1)}, Attrs: c.Attrs},
		&bpl.HavocCmd{Vars: []string{pc.rewriteName(witness.Name, 2)}, Attrs: c.Attrs},
	}
	for thread := 1; thread <= 2; thread++ {
		off := pc.RewriteExpr(sel.Index, thread)
		val := bpl.Id(pc.rewriteName(witness.Name, thread))
		slot := bpl.Sel(bpl.Sel(bpl.Id(used), off), val)
		cmds = append(cmds,
			&bpl.AssumeCmd{Expr: bpl.Not(slot), Attrs: c.Attrs},
			&bpl.AssignCmd{
				Lhs: []bpl.Expr{bpl.Id(used)},
				Rhs: []bpl.Expr{bpl.Upd(bpl.Id(used), off, bpl.Upd(bpl.Sel(bpl.Id(used), off), val, bpl.True()))},
			},
		)
	}
	return cmds
}

// ensureUsedMap declares the per-array used map in the output program
// on first need and returns its name.
func (d *Dualiser) ensureUsedMap(array string) string {
	name := "__atomic_used_" + array
	if d.out.Global(name) != nil {
		return name
	}
	g := d.prog.Global(array)
	if g == nil {
		panic(fmt.Sprintf("dualise: atomic refinement over undeclared array %s", array))
	}
	m, ok := g.Var.Type.(bpl.MapType)
	if !ok {
		panic(fmt.Sprintf("dualise: atomic refinement over non-map %s", array))
	}
	d.out.Add(&bpl.GlobalVar{Var: bpl.Variable{
		Name: name,
		Type: bpl.Map(m.Index, bpl.Map(m.Elem, bpl.Bool())),
	}})
	return name
}

// dualiseCall handles the three special call families (invariant
// capture, barriers, instrumentation helpers) before the general
// in/out partitioning rule.
func (pc *procContext) dualiseCall(c *bpl.CallCmd, out []bpl.Cmd, pending []*barrier.Descriptor) ([]bpl.Cmd, []*barrier.Descriptor, error) {
	switch c.Callee {
	case bpl.BarrierInvariantProc:
		d, err := pc.captureDescriptor(c, false)
		if err != nil {
			return nil, nil, err
		}
		return out, append(pending, d), nil
	case bpl.BinaryBarrierInvariantProc:
		d, err := pc.captureDescriptor(c, true)
		if err != nil {
			return nil, nil, err
		}
		return out, append(pending, d), nil
	}

	callee := pc.d.prog.Procedure(c.Callee)
	if callee != nil && callee.Attrs.Has(bpl.AttrBarrier) {
		return pc.flushAtBarrier(c, out, pending)
	}
	return append(out, pc.generalCall(c)), pending, nil
}

// captureDescriptor turns a barrier_invariant call into a pending
// descriptor instead of emitting it.
func (pc *procContext) captureDescriptor(c *bpl.CallCmd, binary bool) (*barrier.Descriptor, error) {
	if len(c.Ins) < 3 {
		return nil, fmt.Errorf("%s needs a guard, an invariant and at least one instantiation", c.Callee)
	}
	d := &barrier.Descriptor{
		Proc:      pc.proc,
		Guard:     c.Ins[0],
		Invariant: c.Ins[1],
		Attrs:     append(bpl.Attrs(nil), c.Attrs...),
	}
	insts := c.Ins[2:]
	if !binary {
		d.Unary = insts
		return d, nil
	}
	if len(insts)%2 != 0 {
		return nil, fmt.Errorf("%s requires instantiation expression pairs", c.Callee)
	}
	for i := 0; i < len(insts); i += 2 {
		d.Binary = append(d.Binary, [2]bpl.Expr{insts[i], insts[i+1]})
	}
	return d, nil
}

// flushAtBarrier emits the pending invariant obligations before the
// duplicated barrier call and their instantiations after it, then
// clears the batch.
func (pc *procContext) flushAtBarrier(c *bpl.CallCmd, out []bpl.Cmd, pending []*barrier.Descriptor) ([]bpl.Cmd, []*barrier.Descriptor, error) {
	for _, d := range pending {
		assert, ok := d.AssertionCmd().(*bpl.AssertCmd)
		if !ok {
			panic("dualise: barrier invariant assertion is not an assert")
		}
		out = append(out, pc.dualiseAssert(assert)...)
		if pc.d.opts.CheckBarrierAccesses {
			out = append(out, d.AccessCheckCmds(pc)...)
		}
	}
	out = append(out, pc.generalCall(c))
	for _, d := range pending {
		cmds, err := d.InstantiationCmds(pc, pc.d.table)
		if err != nil {
			return nil, nil, err
		}
		out = append(out, cmds...)
	}
	return out, nil, nil
}

// generalCall applies the in/out partitioning rule: arguments whose
// corresponding callee parameter is uniform (by the callee's own
// table, not the caller's) form a prefix passed once, rewritten for
// thread 1; the rest are passed as thread-1 copies followed by
// thread-2 copies, mirroring the dualized callee's parameter order.
func (pc *procContext) generalCall(c *bpl.CallCmd) bpl.Cmd {
	callee := pc.calleeSignature(c.Callee)

	var uniIns, t1Ins, t2Ins []bpl.Expr
	for i, arg := range c.Ins {
		if callee != nil && i < len(callee.InParams) && pc.d.table.IsUniform(c.Callee, callee.InParams[i].Name) {
			uniIns = append(uniIns, pc.RewriteExpr(arg, 1))
			continue
		}
		t1Ins = append(t1Ins, pc.RewriteExpr(arg, 1))
		t2Ins = append(t2Ins, pc.RewriteExpr(arg, 2))
	}
	ins := append(append(uniIns, t1Ins...), t2Ins...)

	var uniOuts, t1Outs, t2Outs []string
	for i, o := range c.Outs {
		if callee != nil && i < len(callee.OutParams) && pc.d.table.IsUniform(c.Callee, callee.OutParams[i].Name) {
			uniOuts = append(uniOuts, pc.rewriteName(o, 1))
			continue
		}
		t1Outs = append(t1Outs, pc.rewriteName(o, 1))
		t2Outs = append(t2Outs, pc.rewriteName(o, 2))
	}
	outs := append(append(uniOuts, t1Outs...), t2Outs...)

	return &bpl.CallCmd{
		Callee: c.Callee,
		Ins:    ins,
		Outs:   outs,
		Attrs:  pc.rewriteCallAttrs(c),
	}
}

// rewriteCallAttrs handles the log/check atomic helpers: attributes
// whose key starts with the reserved arg prefix carry auxiliary
// diagnostic expressions and are rewritten for a fixed thread (1 for
// log, 2 for check) rather than following the in/out rule.
func (pc *procContext) rewriteCallAttrs(c *bpl.CallCmd) bpl.Attrs {
	thread := 0
	switch {
	case strings.HasPrefix(c.Callee, bpl.LogProcPrefix+"ATOMIC"):
		thread = 1
	case strings.HasPrefix(c.Callee, bpl.CheckProcPrefix+"ATOMIC"):
		thread = 2
	default:
		return c.Attrs
	}
	out := make(bpl.Attrs, 0, len(c.Attrs))
	for _, a := range c.Attrs {
		if strings.HasPrefix(a.Key, bpl.AttrArgPrefix) && len(a.Params) == 1 {
			if e, ok := a.Params[0].(bpl.Expr); ok {
				out = append(out, bpl.Attr{Key: a.Key, Params: []any{pc.RewriteExpr(e, thread)}})
				continue
			}
		}
		out = append(out, a)
	}
	return out
}

func (pc *procContext) calleeSignature(name string) *bpl.Procedure {
	return pc.d.prog.Procedure(name)
}
