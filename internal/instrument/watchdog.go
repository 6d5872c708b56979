package instrument

import (
	"github.com/gpuverify/kernelcheck/internal/bpl"
)

// Watchdog tracks a single distinguished offset per run. Shadow state
// is only updated when an access hits the watched offset, gated by one
// global tracking flag instead of a per-call havoc.
type Watchdog struct {
	opts Options
}

func (*Watchdog) Name() string {
	return "watchdog"
}

func (s *Watchdog) AddRaceCheckingDeclarations(prog *bpl.Program, array *bpl.GlobalVar) {
	// _TRACKING and _WATCHED_OFFSET are process-wide, declared once.
	if prog.Global(bpl.TrackingVar) == nil {
		prog.Add(&bpl.GlobalVar{Var: bpl.Variable{Name: bpl.TrackingVar, Type: bpl.Bool(), Attrs: bpl.Attrs{{Key: "race_checking"}}}})
	}
	if prog.Global(bpl.WatchedOffsetVar) == nil {
		prog.Add(&bpl.GlobalVar{Var: bpl.Variable{Name: bpl.WatchedOffsetVar, Type: bpl.BV(s.opts.PtrWidth), Attrs: bpl.Attrs{{Key: "race_checking"}}}})
	}
	info := describeArray(array)
	for _, a := range AccessTypes() {
		declareShadow(prog, info, a, s.opts)
	}
}

// AddLogAccessProcedure synthesizes the watchdog log procedure: the
// shadow slot is touched only when the access lands on the watched
// offset while tracking is enabled.
func (s *Watchdog) AddLogAccessProcedure(prog *bpl.Program, array *bpl.GlobalVar, access AccessType) {
	info := describeArray(array)
	guard := bpl.And(
		bpl.And(bpl.Id("_P"), bpl.Id(bpl.TrackingVar)),
		bpl.Eq(bpl.Id("_offset"), bpl.Id(bpl.WatchedOffsetVar)),
	)
	if info.groupShared {
		guard = bpl.And(guard, sameGroupGuard())
	}
	addProcedure(prog,
		LogProcName(info.name, access),
		logParams(info, access, s.opts),
		logModifies(info, access, s.opts),
		guardedUpdates(info, access, s.opts, guard),
		nil,
	)
}

// AddCheckAccessProcedure synthesizes the watchdog check procedure.
// Offset comparison is against the watched offset; a conflicting logged
// access already implies it happened there.
func (s *Watchdog) AddCheckAccessProcedure(prog *bpl.Program, array *bpl.GlobalVar, access AccessType) {
	info := describeArray(array)
	watched := bpl.Eq(bpl.Id("_offset"), bpl.Id(bpl.WatchedOffsetVar))
	var cmds []bpl.Cmd
	for _, c := range conflictsFor(access) {
		cmds = append(cmds, raceAssert(info, c.logged, c.tag, s.opts, watched))
	}
	addProcedure(prog,
		CheckProcName(info.name, access),
		checkParams(info, access, s.opts),
		nil,
		cmds,
		nil,
	)
}
