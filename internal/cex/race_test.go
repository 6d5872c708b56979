package cex

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gpuverify/kernelcheck/internal/bpl"
)

func bv32(v uint64) Value { return BVVal{Val: v, Width: 32} }

func boolVal(b bool) Value { return BoolVal{Val: b} }

func captureCmd(label string, attrs bpl.Attrs) *bpl.AssumeCmd {
	return &bpl.AssumeCmd{Expr: bpl.True(), Attrs: attrs.With(bpl.AttrCaptureState, label)}
}

func checkCall(proc string, locIdx int) *bpl.CallCmd {
	return &bpl.CallCmd{Callee: proc, Attrs: bpl.Attrs{}.With(bpl.AttrSourceLocNum, locIdx)}
}

// sharedArrayProgram is the pre-dualization program the diagnoser
// consults for array shapes: one 4x4 array of 32-bit elements.
func sharedArrayProgram() *bpl.Program {
	prog := &bpl.Program{}
	prog.Add(&bpl.GlobalVar{Var: bpl.Variable{
		Name: "$$a",
		Type: bpl.MapType{Index: bpl.BVType{Width: 32}, Elem: bpl.BVType{Width: 32}},
		Attrs: bpl.Attrs{}.
			With(bpl.AttrGlobal).
			With(bpl.AttrElemWidth, 32).
			With(bpl.AttrSourceDims, "4,4"),
	}})
	return prog
}

func raceAttrs(tag string, locIdx int) bpl.Attrs {
	return bpl.Attrs{}.
		With("race").
		With(tag).
		With(bpl.AttrArray, "$$a").
		With(bpl.AttrSourceLocNum, locIdx)
}

func TestDiagnoseRaceAtCheckSite(t *testing.T) {
	t.Parallel()

	locs := LocTable{
		0: {{Line: 10, Col: 4, File: "kernel.cl", Dir: "/src"}},
		1: {{Line: 12, Col: 8, File: "kernel.cl", Dir: "/src"}},
	}
	transformed := &bpl.Program{}
	transformed.Add(&bpl.Implementation{
		Name: "$kernel",
		InParams: []bpl.Variable{
			{Name: "n", Type: bpl.BVType{Width: 32}},
			{Name: "x$1", Type: bpl.BVType{Width: 32}},
			{Name: "x$2", Type: bpl.BVType{Width: 32}},
		},
		Blocks: []*bpl.Block{{
			Label: "entry",
			Cmds: []bpl.Cmd{
				captureCmd("check_state_0", bpl.Attrs{}.With(bpl.AttrSourceLocNum, 0)),
				captureCmd("check_state_1", bpl.Attrs{}.With(bpl.AttrSourceLocNum, 1)),
			},
			Transfer: &bpl.ReturnCmd{},
		}},
	})

	m := &Model{States: []CapturedState{
		{Name: "check_state_0", Vals: map[string]Value{
			"_WRITE_HAS_OCCURRED_$$a": boolVal(true),
			"_WRITE_OFFSET_$$a":       bv32(5),
		}},
		{Name: "check_state_1", Vals: map[string]Value{
			"_WRITE_HAS_OCCURRED_$$a": boolVal(true),
			"_WRITE_OFFSET_$$a":       bv32(5),
			"local_id_x$1":            bv32(3),
			"local_id_x$2":            bv32(7),
			"group_id_x$1":            bv32(0),
			"group_id_x$2":            bv32(0),
			"n":                       bv32(16),
			"x$1":                     bv32(3),
			"x$2":                     bv32(7),
		}},
	}}

	d := NewDiagnoser(transformed, sharedArrayProgram(), locs, nil)
	diag, err := d.Diagnose(Failure{
		Attrs:     raceAttrs("write_write", 1),
		StateName: "check_state_1",
		Impl:      "$kernel",
	}, m)
	require.NoError(t, err)

	assert.Equal(t, KindRace, diag.Class.Kind)
	require.NotNil(t, diag.Class.Race)
	assert.Equal(t, "write-write", diag.Class.Race.Name)

	assert.True(t, diag.Loc.Equal(locs[1]))
	require.Len(t, diag.ConflictLocs, 1)
	assert.True(t, diag.ConflictLocs[0].Equal(locs[0]))

	assert.Equal(t, "$$a[1][1]", diag.Access)
	assert.Equal(t, [2]string{"3", "7"}, diag.LocalIDs)
	assert.Equal(t, [2]string{"0", "0"}, diag.GroupIDs)
	assert.Equal(t, []ParamValue{
		{Name: "n", Value: "16", Thread: 0},
		{Name: "x$1", Value: "3", Thread: 1},
		{Name: "x$2", Value: "7", Thread: 2},
	}, diag.Params)
}

func TestDiagnoseRacePicksLatestLoggingState(t *testing.T) {
	t.Parallel()

	// The offset changes between the first and second state, so the
	// second state is where the conflicting write was logged.
	locs := LocTable{
		0: {{Line: 5, Col: 2, File: "k.cl", Dir: "/src"}},
		1: {{Line: 8, Col: 2, File: "k.cl", Dir: "/src"}},
		2: {{Line: 9, Col: 2, File: "k.cl", Dir: "/src"}},
	}
	transformed := &bpl.Program{}
	transformed.Add(&bpl.Implementation{
		Name: "$kernel",
		Blocks: []*bpl.Block{{
			Label: "entry",
			Cmds: []bpl.Cmd{
				captureCmd("check_state_0", bpl.Attrs{}.With(bpl.AttrSourceLocNum, 0)),
				captureCmd("check_state_1", bpl.Attrs{}.With(bpl.AttrSourceLocNum, 1)),
				captureCmd("check_state_2", bpl.Attrs{}.With(bpl.AttrSourceLocNum, 2)),
			},
			Transfer: &bpl.ReturnCmd{},
		}},
	})

	m := &Model{States: []CapturedState{
		{Name: "check_state_0", Vals: map[string]Value{
			"_WRITE_HAS_OCCURRED_$$a": boolVal(true),
			"_WRITE_OFFSET_$$a":       bv32(3),
		}},
		{Name: "check_state_1", Vals: map[string]Value{
			"_WRITE_HAS_OCCURRED_$$a": boolVal(true),
			"_WRITE_OFFSET_$$a":       bv32(5),
		}},
		{Name: "check_state_2", Vals: map[string]Value{
			"_WRITE_HAS_OCCURRED_$$a": boolVal(true),
			"_WRITE_OFFSET_$$a":       bv32(5),
		}},
	}}

	d := NewDiagnoser(transformed, sharedArrayProgram(), locs, nil)
	diag, err := d.Diagnose(Failure{
		Attrs:     raceAttrs("write_read", 2),
		StateName: "check_state_2",
		Impl:      "$kernel",
	}, m)
	require.NoError(t, err)

	require.Len(t, diag.ConflictLocs, 1)
	assert.True(t, diag.ConflictLocs[0].Equal(locs[1]))
	assert.Equal(t, "$$a[1][1]", diag.Access)
}

func TestDiagnoseRaceInLoopReportsEveryBodySite(t *testing.T) {
	t.Parallel()

	// The conflicting access was logged at a loop head that unrolling
	// has not localized, so every check site in the loop body is a
	// candidate.
	locs := LocTable{
		2: {{Line: 20, Col: 6, File: "k.cl", Dir: "/src"}},
		3: {{Line: 21, Col: 6, File: "k.cl", Dir: "/src"}},
		4: {{Line: 25, Col: 2, File: "k.cl", Dir: "/src"}},
	}
	transformed := &bpl.Program{}
	transformed.Add(&bpl.Implementation{
		Name: "$kernel",
		Blocks: []*bpl.Block{
			{
				Label:    "entry",
				Transfer: &bpl.GotoCmd{Targets: []string{"head"}},
			},
			{
				Label:    "head",
				Cmds:     []bpl.Cmd{captureCmd("loop_head_state_0", nil)},
				Transfer: &bpl.GotoCmd{Targets: []string{"body", "exit"}},
			},
			{
				Label: "body",
				Cmds: []bpl.Cmd{
					checkCall("_CHECK_READ_$$a", 3),
					checkCall("_CHECK_WRITE_$$a", 2),
				},
				Transfer: &bpl.GotoCmd{Targets: []string{"head"}},
			},
			{
				Label: "exit",
				Cmds: []bpl.Cmd{
					captureCmd("check_state_0", bpl.Attrs{}.With(bpl.AttrSourceLocNum, 4)),
				},
				Transfer: &bpl.ReturnCmd{},
			},
		},
	})

	m := &Model{States: []CapturedState{
		{Name: "loop_head_state_0", Vals: map[string]Value{
			"_READ_HAS_OCCURRED_$$a": boolVal(true),
			"_READ_OFFSET_$$a":       bv32(4),
		}},
		{Name: "check_state_0", Vals: map[string]Value{
			"_READ_HAS_OCCURRED_$$a": boolVal(true),
			"_READ_OFFSET_$$a":       bv32(4),
		}},
	}}

	d := NewDiagnoser(transformed, sharedArrayProgram(), locs, nil)
	diag, err := d.Diagnose(Failure{
		Attrs:     raceAttrs("read_write", 4),
		StateName: "check_state_0",
		Impl:      "$kernel",
	}, m)
	require.NoError(t, err)

	// Only the read check sites count for a read-write race, and the
	// conflict offset decodes against the declared 4x4 shape.
	require.Len(t, diag.ConflictLocs, 1)
	assert.True(t, diag.ConflictLocs[0].Equal(locs[3]))
	assert.Equal(t, "$$a[1][0]", diag.Access)
}

func TestDiagnoseRaceInLoopHonorsBlockTrace(t *testing.T) {
	t.Parallel()

	// The executed-block trace pins down which loop arm the failing
	// execution took, so check sites in the untaken arm drop out.
	locs := LocTable{
		2: {{Line: 20, Col: 6, File: "k.cl", Dir: "/src"}},
		3: {{Line: 21, Col: 6, File: "k.cl", Dir: "/src"}},
		4: {{Line: 25, Col: 2, File: "k.cl", Dir: "/src"}},
	}
	transformed := &bpl.Program{}
	transformed.Add(&bpl.Implementation{
		Name: "$kernel",
		Blocks: []*bpl.Block{
			{
				Label:    "entry",
				Transfer: &bpl.GotoCmd{Targets: []string{"head"}},
			},
			{
				Label:    "head",
				Cmds:     []bpl.Cmd{captureCmd("loop_head_state_0", nil)},
				Transfer: &bpl.GotoCmd{Targets: []string{"then", "else"}},
			},
			{
				Label:    "then",
				Cmds:     []bpl.Cmd{checkCall("_CHECK_WRITE_$$a", 2)},
				Transfer: &bpl.GotoCmd{Targets: []string{"latch"}},
			},
			{
				Label:    "else",
				Cmds:     []bpl.Cmd{checkCall("_CHECK_WRITE_$$a", 3)},
				Transfer: &bpl.GotoCmd{Targets: []string{"latch"}},
			},
			{
				Label:    "latch",
				Transfer: &bpl.GotoCmd{Targets: []string{"head", "exit"}},
			},
			{
				Label: "exit",
				Cmds: []bpl.Cmd{
					captureCmd("check_state_0", bpl.Attrs{}.With(bpl.AttrSourceLocNum, 4)),
				},
				Transfer: &bpl.ReturnCmd{},
			},
		},
	})

	m := &Model{
		States: []CapturedState{
			{Name: "loop_head_state_0", Vals: map[string]Value{
				"_WRITE_HAS_OCCURRED_$$a": boolVal(true),
				"_WRITE_OFFSET_$$a":       bv32(4),
			}},
			{Name: "check_state_0", Vals: map[string]Value{
				"_WRITE_HAS_OCCURRED_$$a": boolVal(true),
				"_WRITE_OFFSET_$$a":       bv32(4),
			}},
		},
		Trace: []string{"entry", "head", "else", "latch", "exit"},
	}

	d := NewDiagnoser(transformed, sharedArrayProgram(), locs, nil)
	diag, err := d.Diagnose(Failure{
		Attrs:     raceAttrs("write_write", 4),
		StateName: "check_state_0",
		Impl:      "$kernel",
	}, m)
	require.NoError(t, err)

	require.Len(t, diag.ConflictLocs, 1)
	assert.True(t, diag.ConflictLocs[0].Equal(locs[3]))
}

func TestDiagnoseRaceThroughInlinedCall(t *testing.T) {
	t.Parallel()

	// The conflicting access was logged at a call-return capture, so
	// the candidate sites come from the inlined callee, transitively.
	locs := LocTable{
		5: {{Line: 3, Col: 2, File: "helper.cl", Dir: "/src"}},
		6: {{Line: 7, Col: 2, File: "helper.cl", Dir: "/src"}},
		7: {{Line: 40, Col: 2, File: "k.cl", Dir: "/src"}},
	}
	transformed := &bpl.Program{}
	transformed.Add(&bpl.Implementation{
		Name: "$kernel",
		Blocks: []*bpl.Block{{
			Label: "entry",
			Cmds: []bpl.Cmd{
				captureCmd("call_return_state_0",
					bpl.Attrs{}.With("procedureName", "$helper")),
				captureCmd("check_state_0", bpl.Attrs{}.With(bpl.AttrSourceLocNum, 7)),
			},
			Transfer: &bpl.ReturnCmd{},
		}},
	})
	transformed.Add(&bpl.Implementation{
		Name: "$helper",
		Blocks: []*bpl.Block{{
			Label: "entry",
			Cmds: []bpl.Cmd{
				checkCall("_CHECK_WRITE_$$a", 5),
				&bpl.CallCmd{Callee: "$nested"},
			},
			Transfer: &bpl.ReturnCmd{},
		}},
	})
	transformed.Add(&bpl.Implementation{
		Name: "$nested",
		Blocks: []*bpl.Block{{
			Label: "entry",
			Cmds: []bpl.Cmd{
				checkCall("_CHECK_WRITE_$$a", 6),
				// A recursive call must not loop the site search.
				&bpl.CallCmd{Callee: "$helper"},
			},
			Transfer: &bpl.ReturnCmd{},
		}},
	})

	m := &Model{States: []CapturedState{
		{Name: "call_return_state_0", Vals: map[string]Value{
			"_WRITE_HAS_OCCURRED_$$a": boolVal(true),
			"_WRITE_OFFSET_$$a":       bv32(0),
		}},
		{Name: "check_state_0", Vals: map[string]Value{
			"_WRITE_HAS_OCCURRED_$$a": boolVal(true),
			"_WRITE_OFFSET_$$a":       bv32(0),
		}},
	}}

	d := NewDiagnoser(transformed, sharedArrayProgram(), locs, nil)
	diag, err := d.Diagnose(Failure{
		Attrs:     raceAttrs("write_write", 7),
		StateName: "check_state_0",
		Impl:      "$kernel",
	}, m)
	require.NoError(t, err)

	require.Len(t, diag.ConflictLocs, 2)
	assert.True(t, diag.ConflictLocs[0].Equal(locs[5]))
	assert.True(t, diag.ConflictLocs[1].Equal(locs[6]))
	assert.Equal(t, "$$a[0][0]", diag.Access)
}

func TestDiagnoseNonRaceSkipsBackwardWalk(t *testing.T) {
	t.Parallel()

	locs := LocTable{0: {{Line: 2, Col: 1, File: "k.cl", Dir: "/src"}}}
	d := NewDiagnoser(&bpl.Program{}, sharedArrayProgram(), locs, nil)

	diag, err := d.Diagnose(Failure{
		Attrs: bpl.Attrs{}.With("loop_maintained").With(bpl.AttrSourceLocNum, 0),
	}, &Model{})
	require.NoError(t, err)

	assert.Equal(t, KindLoopMaintained, diag.Class.Kind)
	assert.True(t, diag.Loc.Equal(locs[0]))
	assert.Empty(t, diag.ConflictLocs)
	assert.Empty(t, diag.Access)
}

func TestLoopNodes(t *testing.T) {
	t.Parallel()

	impl := &bpl.Implementation{
		Name: "$kernel",
		Blocks: []*bpl.Block{
			{Label: "entry", Transfer: &bpl.GotoCmd{Targets: []string{"head"}}},
			{Label: "head", Transfer: &bpl.GotoCmd{Targets: []string{"body", "exit"}}},
			{Label: "body", Transfer: &bpl.GotoCmd{Targets: []string{"latch", "exit"}}},
			{Label: "latch", Transfer: &bpl.GotoCmd{Targets: []string{"head"}}},
			{Label: "exit", Transfer: &bpl.ReturnCmd{}},
		},
	}

	var labels []string
	for _, b := range LoopNodes(impl, "head") {
		labels = append(labels, b.Label)
	}
	assert.Equal(t, []string{"head", "body", "latch"}, labels)

	assert.Nil(t, LoopNodes(impl, "nowhere"))
}
