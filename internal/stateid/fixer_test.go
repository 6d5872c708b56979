package stateid

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gpuverify/kernelcheck/internal/bpl"
)

func capture(label string) bpl.Cmd {
	return &bpl.AssumeCmd{
		Expr:  bpl.True(),
		Attrs: bpl.Attrs{}.With(bpl.AttrCaptureState, label),
	}
}

// unrolledProgram mimics a loop unrolled twice: the duplicated blocks
// carry duplicated capture labels.
func unrolledProgram() *bpl.Program {
	prog := &bpl.Program{}
	prog.Add(&bpl.Implementation{
		Name: "$kernel",
		Blocks: []*bpl.Block{
			{
				Label: "head",
				Cmds: []bpl.Cmd{
					capture("loop_head_state_0"),
					capture("check_state_0"),
				},
				Transfer: &bpl.GotoCmd{Targets: []string{"head.1"}},
			},
			{
				Label: "head.1",
				Cmds: []bpl.Cmd{
					capture("loop_head_state_0"),
					capture("check_state_0"),
					capture("call_return_state_0"),
				},
				Transfer: &bpl.ReturnCmd{},
			},
		},
	})
	return prog
}

func collectLabels(prog *bpl.Program) []string {
	var out []string
	for _, impl := range prog.Implementations() {
		for _, b := range impl.Blocks {
			for _, c := range b.Cmds {
				if label, ok := c.CmdAttrs().Str(bpl.AttrCaptureState); ok {
					out = append(out, label)
				}
			}
		}
	}
	return out
}

func TestFixMakesLabelsUnique(t *testing.T) {
	t.Parallel()

	prog := unrolledProgram()
	var f Fixer
	f.Fix(prog)

	labels := collectLabels(prog)
	assert.Equal(t, []string{
		"loop_head_state_0",
		"check_state_0",
		"loop_head_state_1",
		"check_state_1",
		"call_return_state_0",
	}, labels)

	seen := map[string]bool{}
	for _, l := range labels {
		require.False(t, seen[l], "duplicate label %s", l)
		seen[l] = true
	}
}

func TestCountersNeverReset(t *testing.T) {
	t.Parallel()

	var f Fixer
	first := unrolledProgram()
	f.Fix(first)
	second := unrolledProgram()
	f.Fix(second)

	// The same Fixer keeps counting across programs, so a second run
	// continues where the first stopped.
	labels := collectLabels(second)
	assert.Equal(t, "loop_head_state_2", labels[0])
	assert.Equal(t, "check_state_2", labels[1])
	assert.Equal(t, "call_return_state_1", labels[4])
}

func TestUncategorizedLabelsUntouched(t *testing.T) {
	t.Parallel()

	prog := &bpl.Program{}
	prog.Add(&bpl.Implementation{
		Name: "$kernel",
		Blocks: []*bpl.Block{{
			Label:    "entry",
			Cmds:     []bpl.Cmd{capture("entry_state"), capture("check_state_0")},
			Transfer: &bpl.ReturnCmd{},
		}},
	})
	var f Fixer
	f.Fix(prog)

	labels := collectLabels(prog)
	assert.Equal(t, []string{"entry_state", "check_state_0"}, labels)
}

func TestFixClonesCommands(t *testing.T) {
	t.Parallel()

	shared := capture("check_state_0")
	prog := &bpl.Program{}
	prog.Add(&bpl.Implementation{
		Name: "$kernel",
		Blocks: []*bpl.Block{
			{Label: "a", Cmds: []bpl.Cmd{shared}, Transfer: &bpl.GotoCmd{Targets: []string{"b"}}},
			{Label: "b", Cmds: []bpl.Cmd{shared}, Transfer: &bpl.ReturnCmd{}},
		},
	})
	var f Fixer
	f.Fix(prog)

	labels := collectLabels(prog)
	assert.Equal(t, []string{"check_state_0", "check_state_1"}, labels)
}
