package instrument

import (
	"github.com/gpuverify/kernelcheck/internal/bpl"
)

// Original keeps one shadow slot per array regardless of offset. Each
// log call nondeterministically decides whether to overwrite the slot,
// so the solver is free to pin any single access as "the" logged one.
type Original struct {
	opts Options
}

func (*Original) Name() string {
	return "original"
}

func (s *Original) AddRaceCheckingDeclarations(prog *bpl.Program, array *bpl.GlobalVar) {
	info := describeArray(array)
	for _, a := range AccessTypes() {
		declareShadow(prog, info, a, s.opts)
	}
}

// AddLogAccessProcedure synthesizes _LOG_<ACC>_<array>: havoc an
// internal track flag, then overwrite the whole shadow slot whenever
// predicate, track flag, and (for group-shared arrays) the same-group
// check all hold.
func (s *Original) AddLogAccessProcedure(prog *bpl.Program, array *bpl.GlobalVar, access AccessType) {
	info := describeArray(array)
	guard := bpl.And(bpl.Id("_P"), bpl.Id("track"))
	if info.groupShared {
		guard = bpl.And(guard, sameGroupGuard())
	}
	cmds := []bpl.Cmd{&bpl.HavocCmd{Vars: []string{"track"}}}
	cmds = append(cmds, guardedUpdates(info, access, s.opts, guard)...)
	addProcedure(prog,
		LogProcName(info.name, access),
		logParams(info, access, s.opts),
		logModifies(info, access, s.opts),
		cmds,
		[]bpl.Variable{{Name: "track", Type: bpl.Bool()}},
	)
}

// AddCheckAccessProcedure synthesizes _CHECK_<ACC>_<array>: assert that
// the access does not collide with any conflicting logged access at the
// same offset.
func (s *Original) AddCheckAccessProcedure(prog *bpl.Program, array *bpl.GlobalVar, access AccessType) {
	info := describeArray(array)
	var cmds []bpl.Cmd
	for _, c := range conflictsFor(access) {
		clash := bpl.Eq(bpl.Id(OffsetName(info.name, c.logged)), bpl.Id("_offset"))
		cmds = append(cmds, raceAssert(info, c.logged, c.tag, s.opts, clash))
	}
	addProcedure(prog,
		CheckProcName(info.name, access),
		checkParams(info, access, s.opts),
		nil,
		cmds,
		nil,
	)
}
