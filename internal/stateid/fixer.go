// Package stateid renumbers state-capture labels after loop unrolling.
// Unrolling duplicates basic blocks and with them their capture
// labels; the counterexample diagnoser needs every label to identify
// exactly one program point.
package stateid

import (
	"fmt"
	"strings"

	"github.com/gpuverify/kernelcheck/internal/bpl"
)

// Capture label categories. The classification is mutually exclusive;
// labels outside it are left untouched.
const (
	CheckState      = "check_state"
	LoopHeadState   = "loop_head_state"
	CallReturnState = "call_return_state"
)

// Fixer carries the three category counters for one fix-up pass. The
// zero value is ready to use. Counters only ever advance: running Fix
// twice over the same program is not idempotent by design, so callers
// create one Fixer and run it exactly once per program build.
type Fixer struct {
	check      int
	loopHead   int
	callReturn int
}

// Fix walks every block of every implementation once, replacing each
// categorized capture label with a freshly counted one. Command lists
// are re-emitted with cloned commands so blocks from different
// unrolled iterations never share command identity.
func (f *Fixer) Fix(prog *bpl.Program) {
	for _, impl := range prog.Implementations() {
		for _, b := range impl.Blocks {
			cmds := make([]bpl.Cmd, 0, len(b.Cmds))
			for _, c := range b.Cmds {
				cmds = append(cmds, f.fixCmd(bpl.CloneCmd(c)))
			}
			b.Cmds = cmds
		}
	}
}

func (f *Fixer) fixCmd(c bpl.Cmd) bpl.Cmd {
	assume, ok := c.(*bpl.AssumeCmd)
	if !ok {
		return c
	}
	label, ok := assume.Attrs.Str(bpl.AttrCaptureState)
	if !ok {
		return c
	}
	fresh, ok := f.freshLabel(label)
	if !ok {
		return c
	}
	assume.Attrs = assume.Attrs.Without(bpl.AttrCaptureState).With(bpl.AttrCaptureState, fresh)
	return assume
}

func (f *Fixer) freshLabel(label string) (string, bool) {
	switch {
	case strings.HasPrefix(label, LoopHeadState):
		f.loopHead++
		return fmt.Sprintf("%s_%d", LoopHeadState, f.loopHead-1), true
	case strings.HasPrefix(label, CallReturnState):
		f.callReturn++
		return fmt.Sprintf("%s_%d", CallReturnState, f.callReturn-1), true
	case strings.HasPrefix(label, CheckState):
		f.check++
		return fmt.Sprintf("%s_%d", CheckState, f.check-1), true
	default:
		return "", false
	}
}
