package instrument

import (
	"fmt"

	"github.com/gpuverify/kernelcheck/internal/bpl"
)

// Options configure both strategies.
type Options struct {
	// PtrWidth is the bit-width of offsets (the size_t width declared
	// by the front end).
	PtrWidth int
	// NoBenign disables value recording and benign-write tolerance.
	NoBenign bool
}

// Strategy synthesizes shadow state and the log/check procedures for
// one shared array at a time.
type Strategy interface {
	Name() string
	AddRaceCheckingDeclarations(prog *bpl.Program, array *bpl.GlobalVar)
	AddLogAccessProcedure(prog *bpl.Program, array *bpl.GlobalVar, access AccessType)
	AddCheckAccessProcedure(prog *bpl.Program, array *bpl.GlobalVar, access AccessType)
}

// NewStrategy selects a strategy by configuration name.
func NewStrategy(kind string, opts Options) (Strategy, error) {
	if opts.PtrWidth == 0 {
		opts.PtrWidth = 32
	}
	switch kind {
	case "", "original":
		return &Original{opts: opts}, nil
	case "watchdog":
		return &Watchdog{opts: opts}, nil
	default:
		return nil, fmt.Errorf("unknown race instrumentation strategy %q", kind)
	}
}

// AddRaceChecking runs a strategy over every shared array in the
// program, declaring shadow state and synthesizing one log and one
// check procedure per access kind.
func AddRaceChecking(prog *bpl.Program, s Strategy) {
	var arrays []*bpl.GlobalVar
	for _, d := range prog.Decls {
		if g, ok := d.(*bpl.GlobalVar); ok && bpl.IsSharedArray(g.Var.Name) {
			arrays = append(arrays, g)
		}
	}
	for _, g := range arrays {
		s.AddRaceCheckingDeclarations(prog, g)
		for _, a := range AccessTypes() {
			s.AddLogAccessProcedure(prog, g, a)
			s.AddCheckAccessProcedure(prog, g, a)
		}
	}
}

// arrayInfo is the per-array metadata both strategies consume.
type arrayInfo struct {
	name        string
	elem        bpl.Type
	groupShared bool
	async       bool
}

func describeArray(g *bpl.GlobalVar) arrayInfo {
	m, ok := g.Var.Type.(bpl.MapType)
	if !ok {
		panic(fmt.Sprintf("instrument: shared array %s is not map-typed", g.Var.Name))
	}
	return arrayInfo{
		name:        g.Var.Name,
		elem:        m.Elem,
		groupShared: g.Var.Attrs.Has(bpl.AttrGroupShared),
		async:       g.Var.Attrs.Has(bpl.AttrAsyncCopy),
	}
}

// hasValue reports whether the shadow state records values for this
// access kind under the given options.
func hasValue(opts Options, access AccessType) bool {
	return !opts.NoBenign && access != Atomic
}

// hasAsync reports whether an async handle is tracked: only arrays
// reachable through asynchronous group copies, and only for reads and
// writes.
func hasAsync(info arrayInfo, access AccessType) bool {
	return info.async && access != Atomic
}

// declareShadow declares the shadow variables for one array and access
// kind, shared verbatim by both strategies.
func declareShadow(prog *bpl.Program, info arrayInfo, access AccessType, opts Options) {
	add := func(name string, typ bpl.Type) {
		if prog.Global(name) == nil {
			prog.Add(&bpl.GlobalVar{Var: bpl.Variable{Name: name, Type: typ, Attrs: bpl.Attrs{{Key: "race_checking"}}}})
		}
	}
	add(HasOccurredName(info.name, access), bpl.Bool())
	add(OffsetName(info.name, access), bpl.BV(opts.PtrWidth))
	if hasValue(opts, access) {
		add(ValueName(info.name, access), info.elem)
	}
	if access == Write && !opts.NoBenign {
		add(BenignFlagName(info.name), bpl.Bool())
	}
	if hasAsync(info, access) {
		add(AsyncHandleName(info.name, access), bpl.BV(opts.PtrWidth))
	}
}

// logParams builds the parameter list of a log procedure: a predicate,
// an offset, for reads and writes the accessed value, for writes the
// value previously stored, and for async-copy arrays the copy handle.
func logParams(info arrayInfo, access AccessType, opts Options) []bpl.Variable {
	params := []bpl.Variable{
		{Name: "_P", Type: bpl.Bool()},
		{Name: "_offset", Type: bpl.BV(opts.PtrWidth)},
	}
	if hasValue(opts, access) {
		params = append(params, bpl.Variable{Name: "_value", Type: info.elem})
	}
	if access == Write && !opts.NoBenign {
		params = append(params, bpl.Variable{Name: "_value_old", Type: info.elem})
	}
	if hasAsync(info, access) {
		params = append(params, bpl.Variable{Name: "_handle", Type: bpl.BV(opts.PtrWidth)})
	}
	return params
}

func checkParams(info arrayInfo, access AccessType, opts Options) []bpl.Variable {
	params := []bpl.Variable{
		{Name: "_P", Type: bpl.Bool()},
		{Name: "_offset", Type: bpl.BV(opts.PtrWidth)},
	}
	if hasValue(opts, access) {
		params = append(params, bpl.Variable{Name: "_value", Type: info.elem})
	}
	return params
}

// logModifies lists the shadow variables a log procedure may update.
func logModifies(info arrayInfo, access AccessType, opts Options) []string {
	mods := []string{HasOccurredName(info.name, access), OffsetName(info.name, access)}
	if hasValue(opts, access) {
		mods = append(mods, ValueName(info.name, access))
	}
	if access == Write && !opts.NoBenign {
		mods = append(mods, BenignFlagName(info.name))
	}
	if hasAsync(info, access) {
		mods = append(mods, AsyncHandleName(info.name, access))
	}
	return mods
}

// sameGroupGuard restricts group-shared race candidates to the pair of
// threads sharing a work-group.
func sameGroupGuard() bpl.Expr {
	return bpl.Eq(bpl.Apply("group_id_x$1"), bpl.Apply("group_id_x$2"))
}

// guardedUpdates emits the conditional shadow updates shared by both
// strategies once the strategy-specific guard is fixed.
func guardedUpdates(info arrayInfo, access AccessType, opts Options, guard bpl.Expr) []bpl.Cmd {
	upd := func(name string, val bpl.Expr) bpl.Cmd {
		return &bpl.AssignCmd{
			Lhs: []bpl.Expr{bpl.Id(name)},
			Rhs: []bpl.Expr{bpl.Ite(guard, val, bpl.Id(name))},
		}
	}
	cmds := []bpl.Cmd{
		upd(HasOccurredName(info.name, access), bpl.True()),
		upd(OffsetName(info.name, access), bpl.Id("_offset")),
	}
	if hasValue(opts, access) {
		cmds = append(cmds, upd(ValueName(info.name, access), bpl.Id("_value")))
	}
	if access == Write && !opts.NoBenign {
		// The write is only dangerous when it stored a new value.
		cmds = append(cmds, upd(BenignFlagName(info.name), bpl.Neq(bpl.Id("_value"), bpl.Id("_value_old"))))
	}
	if hasAsync(info, access) {
		cmds = append(cmds, upd(AsyncHandleName(info.name, access), bpl.Id("_handle")))
	}
	return cmds
}

// conflictsFor maps a checking access kind to the logged access kinds
// it must be compared against, with the race tag for each ordered pair.
func conflictsFor(access AccessType) []struct {
	logged AccessType
	tag    string
} {
	switch access {
	case Read:
		return []struct {
			logged AccessType
			tag    string
		}{{Write, "write_read"}, {Atomic, "atomic_read"}}
	case Write:
		return []struct {
			logged AccessType
			tag    string
		}{{Read, "read_write"}, {Write, "write_write"}, {Atomic, "atomic_write"}}
	case Atomic:
		return []struct {
			logged AccessType
			tag    string
		}{{Atomic, "atomic_atomic"}}
	default:
		panic("instrument: unknown access type")
	}
}

// raceAssert builds one race-freedom obligation comparing the checking
// access against the logged shadow state of another access kind.
func raceAssert(info arrayInfo, logged AccessType, tag string, opts Options, offsetClash bpl.Expr) bpl.Cmd {
	conflict := bpl.And(bpl.Id(HasOccurredName(info.name, logged)), offsetClash)
	if logged == Write && !opts.NoBenign {
		conflict = bpl.And(conflict, bpl.Id(BenignFlagName(info.name)))
	}
	attrs := bpl.Attrs{}.
		With("race").
		With(tag).
		With(bpl.AttrArray, info.name)
	return &bpl.AssertCmd{
		Expr:  bpl.Imp(bpl.Id("_P"), bpl.Not(conflict)),
		Attrs: attrs,
	}
}

// addProcedure registers a procedure and its single-block inlined
// implementation.
func addProcedure(prog *bpl.Program, name string, params []bpl.Variable, mods []string, cmds []bpl.Cmd, locals []bpl.Variable) {
	attrs := bpl.Attrs{}.With("inline", 1)
	prog.Add(&bpl.Procedure{
		Name:     name,
		Attrs:    attrs,
		InParams: params,
		Modifies: mods,
	})
	prog.Add(&bpl.Implementation{
		Name:     name,
		Attrs:    attrs,
		InParams: params,
		Locals:   locals,
		Blocks: []*bpl.Block{{
			Label:    "entry",
			Cmds:     cmds,
			Transfer: &bpl.ReturnCmd{},
		}},
	})
}
