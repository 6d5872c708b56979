package cex

import (
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/gpuverify/kernelcheck/internal/bpl"
	"github.com/gpuverify/kernelcheck/internal/instrument"
	"github.com/gpuverify/kernelcheck/internal/stateid"
)

// Failure identifies one failed proof obligation in the transformed
// program.
type Failure struct {
	// Attrs are the attributes of the failing predicate.
	Attrs bpl.Attrs
	// StateName is the captured state tied to the failing check.
	StateName string
	// Impl is the implementation containing the failure.
	Impl string
}

// ParamValue is one formal parameter's model value, annotated with the
// responsible thread.
type ParamValue struct {
	Name   string
	Value  string
	Thread int // 0 for uniform parameters
}

// Diagnosis is the decoded, source-level result for one counterexample.
type Diagnosis struct {
	Class        Classification
	Loc          LocChain
	ConflictLocs []LocChain
	Access       string // decoded element access, e.g. $$a[1][1]
	Params       []ParamValue
	LocalIDs     [2]string
	GroupIDs     [2]string
}

// Diagnoser reconstructs reports. It shares nothing mutable between
// diagnoses beyond the read-only original program used for lookups.
type Diagnoser struct {
	prog *bpl.Program // transformed program
	orig *bpl.Program // pre-dualization program, read-only
	locs LocTable
	log  *zap.Logger
}

// NewDiagnoser creates a diagnoser over the transformed program, its
// pre-dualization original, and the source-location side table.
func NewDiagnoser(prog, orig *bpl.Program, locs LocTable, log *zap.Logger) *Diagnoser {
	if log == nil {
		log = zap.NewNop()
	}
	return &Diagnoser{prog: prog, orig: orig, locs: locs, log: log}
}

// Diagnose classifies a failure and, for races, walks the model's
// captured states backwards to find the conflicting access.
func (d *Diagnoser) Diagnose(f Failure, m *Model) (*Diagnosis, error) {
	diag := &Diagnosis{
		Class: Classify(f.Attrs),
		Loc:   d.lookupLoc(f.Attrs),
	}
	d.collectThreadState(f, m, diag)
	if diag.Class.Race == nil {
		return diag, nil
	}
	if err := d.diagnoseRace(f, m, diag); err != nil {
		return nil, err
	}
	return diag, nil
}

// lookupLoc resolves a sourceloc_num attribute against the side table,
// degrading to the attribute-encoded token coordinates with a warning
// when the lookup fails.
func (d *Diagnoser) lookupLoc(attrs bpl.Attrs) LocChain {
	if idx, ok := attrs.Int(bpl.AttrSourceLocNum); ok {
		if chain, ok := d.locs[idx]; ok {
			return chain
		}
		d.log.Warn("source location lookup failed, falling back to token position", zap.Int("index", idx))
	}
	line, _ := attrs.Int("line")
	col, _ := attrs.Int("col")
	file, _ := attrs.Str("file")
	dir, _ := attrs.Str("dir")
	return LocChain{{Line: line, Col: col, File: file, Dir: dir}}
}

// diagnoseRace implements the backward walk: track the conflicting
// access kind's (HasOccurred, Offset) shadow pair from the failing
// state towards the start, and pick the last state at which the offset
// changed while occurrence held.
func (d *Diagnoser) diagnoseRace(f Failure, m *Model, diag *Diagnosis) error {
	race := diag.Class.Race
	access := accessFromName(race.Access1)
	occName := instrument.HasOccurredName(race.Array, access)
	offName := instrument.OffsetName(race.Array, access)

	start, ok := m.StateIndex(f.StateName)
	if !ok {
		panic(fmt.Sprintf("cex: failing state %q not in model", f.StateName))
	}

	conflict := -1
	for i := start - 1; i >= 0; i-- {
		if !m.States[i].Bool(occName) {
			continue
		}
		off, _ := m.States[i].BV(offName)
		fresh := i == 0
		if !fresh {
			prevOff, _ := m.States[i-1].BV(offName)
			// Stale entries reset occurrence to false, so a changed
			// offset or a newly-set flag marks the logging state.
			fresh = !m.States[i-1].Bool(occName) || prevOff != off
		}
		if fresh {
			conflict = i
			break
		}
	}
	if conflict < 0 {
		// Exactly one conflicting action must exist per race; not
		// finding it is a diagnosis bug, never a user error.
		panic("cex: no conflicting action found for race counterexample")
	}

	if off, ok := m.States[conflict].BV(offName); ok {
		diag.Access = d.decodeOffset(race.Array, off)
	}

	label := m.States[conflict].Name
	locs, err := d.conflictSites(label, race.Array, access, m.Trace)
	if err != nil {
		return err
	}
	diag.ConflictLocs = SortChains(locs)
	return nil
}

// conflictSites maps the conflicting state's label to one or many
// candidate source locations: a single already-localized check site, a
// not-yet-unrolled loop body, or an inlined callee. The block trace,
// when present, restricts loop candidates to blocks the failing
// execution actually entered.
func (d *Diagnoser) conflictSites(label, array string, access instrument.AccessType, trace []string) ([]LocChain, error) {
	impl, block, cmd := d.findCapture(label)
	if impl == nil {
		panic(fmt.Sprintf("cex: capture label %q not found in transformed program", label))
	}
	switch {
	case strings.HasPrefix(label, stateid.LoopHeadState):
		executed := map[string]bool{}
		for _, b := range trace {
			executed[b] = true
		}
		var out []LocChain
		for _, b := range LoopNodes(impl, block.Label) {
			if len(executed) > 0 && !executed[b.Label] {
				continue
			}
			out = append(out, d.checkSitesIn(b.Cmds, array, access)...)
		}
		return out, nil
	case strings.HasPrefix(label, stateid.CallReturnState):
		callee, ok := cmd.CmdAttrs().Str("procedureName")
		if !ok {
			panic(fmt.Sprintf("cex: call return capture %q lacks a procedureName", label))
		}
		return d.calleeCheckSites(callee, array, access, map[string]bool{}), nil
	default:
		return []LocChain{d.lookupLoc(cmd.CmdAttrs())}, nil
	}
}

// findCapture locates the captureState assumption carrying the label.
func (d *Diagnoser) findCapture(label string) (*bpl.Implementation, *bpl.Block, bpl.Cmd) {
	for _, impl := range d.prog.Implementations() {
		for _, b := range impl.Blocks {
			for _, c := range b.Cmds {
				if got, ok := c.CmdAttrs().Str(bpl.AttrCaptureState); ok && got == label {
					return impl, b, c
				}
			}
		}
	}
	return nil, nil, nil
}

// checkSitesIn collects the source chains of calls to the relevant
// check procedure.
func (d *Diagnoser) checkSitesIn(cmds []bpl.Cmd, array string, access instrument.AccessType) []LocChain {
	want := instrument.CheckProcName(array, access)
	var out []LocChain
	for _, c := range cmds {
		if call, ok := c.(*bpl.CallCmd); ok && call.Callee == want {
			out = append(out, d.lookupLoc(call.Attrs))
		}
	}
	return out
}

// calleeCheckSites recurses through inlined callee bodies.
func (d *Diagnoser) calleeCheckSites(name, array string, access instrument.AccessType, visited map[string]bool) []LocChain {
	if visited[name] {
		return nil
	}
	visited[name] = true
	impl := d.prog.Implementation(name)
	if impl == nil {
		return nil
	}
	var out []LocChain
	for _, b := range impl.Blocks {
		out = append(out, d.checkSitesIn(b.Cmds, array, access)...)
		for _, c := range b.Cmds {
			if call, ok := c.(*bpl.CallCmd); ok && d.prog.Implementation(call.Callee) != nil {
				out = append(out, d.calleeCheckSites(call.Callee, array, access, visited)...)
			}
		}
	}
	return out
}

func (d *Diagnoser) decodeOffset(array string, raw uint64) string {
	g := d.orig.Global(array)
	if g == nil {
		d.log.Warn("array not found in original program", zap.String("array", array))
		return fmt.Sprintf("%s[%d]", array, raw)
	}
	shape, err := ShapeFromDecl(g)
	if err != nil {
		d.log.Warn("array shape unavailable", zap.String("array", array), zap.Error(err))
		return fmt.Sprintf("%s[%d]", array, raw)
	}
	access, err := shape.Decode(raw)
	if err != nil {
		return fmt.Sprintf("%s (%v)", array, err)
	}
	return access
}

// collectThreadState pulls the enclosing procedure's input values and
// the two threads' identities out of the failing captured state.
func (d *Diagnoser) collectThreadState(f Failure, m *Model, diag *Diagnosis) {
	idx, ok := m.StateIndex(f.StateName)
	if !ok {
		return
	}
	state := m.States[idx]
	for t := 1; t <= 2; t++ {
		if v, ok := state.Vals[fmt.Sprintf("local_id_x$%d", t)]; ok {
			diag.LocalIDs[t-1] = v.String()
		}
		if v, ok := state.Vals[fmt.Sprintf("group_id_x$%d", t)]; ok {
			diag.GroupIDs[t-1] = v.String()
		}
	}
	impl := d.prog.Implementation(f.Impl)
	if impl == nil {
		return
	}
	for _, p := range impl.InParams {
		v, ok := state.Vals[p.Name]
		if !ok {
			continue
		}
		_, thread := bpl.StripThread(p.Name)
		diag.Params = append(diag.Params, ParamValue{Name: p.Name, Value: v.String(), Thread: thread})
	}
}

func accessFromName(name string) instrument.AccessType {
	switch name {
	case "Read":
		return instrument.Read
	case "Write":
		return instrument.Write
	case "Atomic":
		return instrument.Atomic
	default:
		panic(fmt.Sprintf("cex: unknown access kind %q", name))
	}
}
