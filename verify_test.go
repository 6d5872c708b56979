package kernelcheck

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gpuverify/kernelcheck/internal/barrier"
	"github.com/gpuverify/kernelcheck/internal/bpl"
	"github.com/gpuverify/kernelcheck/internal/bpl/parse"
	"github.com/gpuverify/kernelcheck/internal/cex"
)

const kernelSrc = `
var {:global} {:elem_width 32} {:source_dimensions "16"} $$a : [bv32]bv32;

function {:thread_id} local_id_x() : bv32;
function {:thread_id} group_id_x() : bv32;

procedure {:barrier} $barrier();

implementation $kernel({:uniform} n : bv32, x : bv32)
{
  entry:
    call {:sourceloc_num 0} _LOG_WRITE_$$a(true, x, n, $$a[x]);
    call {:sourceloc_num 0} _CHECK_WRITE_$$a(true, x, n);
    assume {:captureState "check_state_0"} {:sourceloc_num 0} true;
    call {:sourceloc_num 1} _LOG_WRITE_$$a(true, x, n, $$a[x]);
    call {:sourceloc_num 1} _CHECK_WRITE_$$a(true, x, n);
    assume {:captureState "check_state_1"} {:sourceloc_num 1} true;
    assert {:sourceloc_num 2} (x == x);
    return;
}
`

func transform(t *testing.T, cfg Config) *Result {
	t.Helper()
	res, err := Transform(kernelSrc, cfg, nil)
	require.NoError(t, err)
	return res
}

func TestTransformPipeline(t *testing.T) {
	t.Parallel()

	res := transform(t, DefaultConfig())

	// The original program is kept untransformed for diagnosis lookups.
	g := res.Original.Global("$$a")
	require.NotNil(t, g)
	assert.Nil(t, res.Original.Procedure("_LOG_WRITE_$$a"))

	// Race instrumentation synthesized shadow state and procedures.
	assert.NotNil(t, res.Transformed.Global("_WRITE_HAS_OCCURRED_$$a"))
	assert.NotNil(t, res.Transformed.Global("_WRITE_OFFSET_$$a"))
	assert.NotNil(t, res.Transformed.Procedure("_LOG_WRITE_$$a"))
	assert.NotNil(t, res.Transformed.Procedure("_CHECK_READ_$$a"))

	// Dualization split the non-uniform parameter and kept the shared
	// array single.
	impl := res.Transformed.Implementation("$kernel")
	require.NotNil(t, impl)
	var params []string
	for _, p := range impl.InParams {
		params = append(params, p.Name)
	}
	assert.Equal(t, []string{"n", "x$1", "x$2"}, params)
	assert.NotNil(t, res.Transformed.Global("$$a"))
	assert.Nil(t, res.Transformed.Global("$$a$1"))
}

func TestTransformDuplicatesThreadIdentityFunctions(t *testing.T) {
	t.Parallel()

	res := transform(t, DefaultConfig())

	funcs := map[string]bool{}
	for _, d := range res.Transformed.Decls {
		if f, ok := d.(*bpl.FuncDecl); ok {
			funcs[f.Name] = true
		}
	}
	for _, name := range []string{
		"local_id_x", "local_id_x$1", "local_id_x$2",
		"group_id_x", "group_id_x$1", "group_id_x$2",
	} {
		assert.True(t, funcs[name], "missing function %s", name)
	}
}

func TestTransformWatchdogStrategy(t *testing.T) {
	t.Parallel()

	cfg := DefaultConfig()
	cfg.Strategy = "watchdog"
	res := transform(t, cfg)

	assert.NotNil(t, res.Transformed.Global("_TRACKING"))
	assert.NotNil(t, res.Transformed.Global("_WATCHED_OFFSET"))
}

func TestTransformRejectsBadInput(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		src  string
		cfg  Config
	}{
		{"invalid config", kernelSrc, Config{Strategy: "original", PointerWidth: 16}},
		{"unknown strategy", kernelSrc, Config{Strategy: "eager", PointerWidth: 32}},
		{"parse error", "var ;", DefaultConfig()},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := Transform(tt.src, tt.cfg, nil)
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrConfig)
			assert.True(t, UserError(err))
		})
	}
}

func TestDiagnoseAssertionFailure(t *testing.T) {
	t.Parallel()

	res := transform(t, DefaultConfig())

	locs := cex.LocTable{
		2: {{Line: 14, Col: 3, File: "kernel.cl", Dir: "/src"}},
	}
	m := &cex.Model{States: []cex.CapturedState{{
		Name: "check_state_0",
		Vals: map[string]cex.Value{
			"n":   cex.BVVal{Val: 16, Width: 32},
			"x$1": cex.BVVal{Val: 3, Width: 32},
			"x$2": cex.BVVal{Val: 7, Width: 32},
		},
	}}}

	diags, err := Diagnose(res, locs, m, []parse.FailureRecord{{
		Impl:     "$kernel",
		State:    "check_state_0",
		LocIndex: 2,
	}}, nil)
	require.NoError(t, err)
	require.Len(t, diags, 1)

	d := diags[0]
	assert.Equal(t, cex.KindAssertion, d.Class.Kind)
	assert.True(t, d.Loc.Equal(locs[2]))
	assert.Equal(t, []cex.ParamValue{
		{Name: "n", Value: "16", Thread: 0},
		{Name: "x$1", Value: "3", Thread: 1},
		{Name: "x$2", Value: "7", Thread: 2},
	}, d.Params)
}

// raceModelSrc is the solver artifact for a write-write race between
// the kernel's two logged writes: the first state carries the logged
// access, the second is where the check fired.
const raceModelSrc = `
*** FAILURE impl=$kernel state=check_state_1 loc=1 tag=write_write

*** STATE check_state_0
  _WRITE_HAS_OCCURRED_$$a -> true
  _WRITE_OFFSET_$$a -> 5bv32
*** END_STATE

*** STATE check_state_1
  _WRITE_HAS_OCCURRED_$$a -> true
  _WRITE_OFFSET_$$a -> 5bv32
  n -> 16bv32
  x$1 -> 5bv32
  x$2 -> 5bv32
  local_id_x$1 -> 5bv32
  local_id_x$2 -> 13bv32
  group_id_x$1 -> 0bv32
  group_id_x$2 -> 0bv32
*** END_STATE
`

func TestDiagnoseWriteWriteRace(t *testing.T) {
	t.Parallel()

	res := transform(t, DefaultConfig())

	m, failures, err := parse.ReadModel(strings.NewReader(raceModelSrc))
	require.NoError(t, err)
	require.Len(t, failures, 1)

	locs := cex.LocTable{
		0: {{Line: 10, Col: 5, File: "kernel.cl", Dir: "/src"}},
		1: {{Line: 12, Col: 5, File: "kernel.cl", Dir: "/src"}},
	}
	diags, err := Diagnose(res, locs, m, failures, nil)
	require.NoError(t, err)
	require.Len(t, diags, 1)

	d := diags[0]
	assert.Equal(t, cex.KindRace, d.Class.Kind)
	require.NotNil(t, d.Class.Race)
	assert.Equal(t, "write-write", d.Class.Race.Name)
	assert.Equal(t, "$$a", d.Class.Race.Array)

	// The failing site and the conflicting logged site both resolve
	// through the location table.
	assert.True(t, d.Loc.Equal(locs[1]))
	require.Len(t, d.ConflictLocs, 1)
	assert.True(t, d.ConflictLocs[0].Equal(locs[0]))

	assert.Equal(t, "$$a[5]", d.Access)
	assert.Equal(t, [2]string{"5", "13"}, d.LocalIDs)
	assert.Equal(t, [2]string{"0", "0"}, d.GroupIDs)
	assert.Equal(t, []cex.ParamValue{
		{Name: "n", Value: "16", Thread: 0},
		{Name: "x$1", Value: "5", Thread: 1},
		{Name: "x$2", Value: "5", Thread: 2},
	}, d.Params)
}

func TestDiagnoseUnknownPredicate(t *testing.T) {
	t.Parallel()

	res := transform(t, DefaultConfig())

	_, err := Diagnose(res, cex.LocTable{}, &cex.Model{}, []parse.FailureRecord{{
		Impl:     "$kernel",
		State:    "check_state_0",
		LocIndex: 99,
	}}, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no predicate with source location 99")
}

func TestUserError(t *testing.T) {
	t.Parallel()

	assert.True(t, UserError(ErrConfig))
	assert.True(t, UserError(fmt.Errorf("loading: %w", ErrConfig)))
	assert.True(t, UserError(fmt.Errorf("flush: %w", barrier.ErrNotInstantiable)))
	assert.False(t, UserError(fmt.Errorf("disk on fire")))
}
