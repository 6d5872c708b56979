// Package kernelcheck turns a kernel program in its intermediate form
// into a two-thread verification problem, and maps solver
// counterexamples over the transformed program back to source-level
// reports.
package kernelcheck

import (
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/gpuverify/kernelcheck/internal/barrier"
	"github.com/gpuverify/kernelcheck/internal/bpl"
	"github.com/gpuverify/kernelcheck/internal/bpl/parse"
	"github.com/gpuverify/kernelcheck/internal/cex"
	"github.com/gpuverify/kernelcheck/internal/dualise"
	"github.com/gpuverify/kernelcheck/internal/instrument"
	"github.com/gpuverify/kernelcheck/internal/stateid"
	"github.com/gpuverify/kernelcheck/internal/uniformity"
)

// Result carries the pre-transformation program alongside the
// transformed one; diagnosis needs both.
type Result struct {
	Original    *bpl.Program
	Transformed *bpl.Program
}

// Transform runs the whole pipeline over one kernel: race
// instrumentation, two-thread reduction, and capture-label renumbering.
func Transform(src string, cfg Config, log *zap.Logger) (*Result, error) {
	if log == nil {
		log = zap.NewNop()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	orig, err := parse.Parse(src)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConfig, err)
	}
	prog, err := parse.Parse(src)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConfig, err)
	}

	strategy, err := instrument.NewStrategy(cfg.Strategy, instrument.Options{
		PtrWidth: cfg.PointerWidth,
		NoBenign: cfg.NoBenign,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConfig, err)
	}
	instrument.AddRaceChecking(prog, strategy)
	log.Debug("race checking instrumented", zap.String("strategy", strategy.Name()))

	table := uniformity.FromProgram(prog)
	dualiser := dualise.New(table, dualise.Options{
		AsymmetricOnly:       cfg.AsymmetricOnly,
		CheckBarrierAccesses: cfg.CheckBarrierAccesses,
	}, log)
	out, err := dualiser.Dualise(prog)
	if err != nil {
		return nil, err
	}

	var fixer stateid.Fixer
	fixer.Fix(out)
	return &Result{Original: orig, Transformed: out}, nil
}

// Diagnose maps each recorded failure back to a source-level report.
func Diagnose(res *Result, locs cex.LocTable, m *cex.Model, failures []parse.FailureRecord, log *zap.Logger) ([]*cex.Diagnosis, error) {
	diagnoser := cex.NewDiagnoser(res.Transformed, res.Original, locs, log)
	var out []*cex.Diagnosis
	for _, f := range failures {
		attrs, err := findFailingAttrs(res.Transformed, f)
		if err != nil {
			return nil, err
		}
		diag, err := diagnoser.Diagnose(cex.Failure{Attrs: attrs, StateName: f.State, Impl: f.Impl}, m)
		if err != nil {
			return nil, err
		}
		out = append(out, diag)
	}
	return out, nil
}

// findFailingAttrs locates the failing predicate by its source location
// index: an assertion in the implementation, or failing that a contract
// clause of its procedure. Race failures name the check call site
// instead; the race assertion itself lives in the inlined check
// procedure and carries no location, so its attributes are joined with
// the call site's index.
func findFailingAttrs(prog *bpl.Program, f parse.FailureRecord) (bpl.Attrs, error) {
	impl := prog.Implementation(f.Impl)
	if impl == nil {
		return nil, fmt.Errorf("implementation %q not found in transformed program", f.Impl)
	}
	if f.Tag != "" {
		for _, b := range impl.Blocks {
			for _, c := range b.Cmds {
				call, ok := c.(*bpl.CallCmd)
				if !ok {
					continue
				}
				if n, ok := call.Attrs.Int(bpl.AttrSourceLocNum); !ok || n != f.LocIndex {
					continue
				}
				if attrs := raceCheckAttrs(prog, call.Callee, f.Tag); attrs != nil {
					return attrs.With(bpl.AttrSourceLocNum, f.LocIndex), nil
				}
			}
		}
		return nil, fmt.Errorf("no %s race check at source location %d in %q", f.Tag, f.LocIndex, f.Impl)
	}
	for _, b := range impl.Blocks {
		for _, c := range b.Cmds {
			a, ok := c.(*bpl.AssertCmd)
			if !ok {
				continue
			}
			if n, ok := a.Attrs.Int(bpl.AttrSourceLocNum); ok && n == f.LocIndex {
				return a.Attrs, nil
			}
		}
	}
	if proc := prog.Procedure(f.Impl); proc != nil {
		for _, s := range append(append([]bpl.Spec(nil), proc.Requires...), proc.Ensures...) {
			if n, ok := s.Attrs.Int(bpl.AttrSourceLocNum); ok && n == f.LocIndex {
				return s.Attrs, nil
			}
		}
	}
	return nil, fmt.Errorf("no predicate with source location %d in %q", f.LocIndex, f.Impl)
}

// raceCheckAttrs finds the race assertion carrying the given tag inside
// the named check implementation, or nil when the callee is not a check
// procedure.
func raceCheckAttrs(prog *bpl.Program, callee, tag string) bpl.Attrs {
	impl := prog.Implementation(callee)
	if impl == nil {
		return nil
	}
	for _, b := range impl.Blocks {
		for _, c := range b.Cmds {
			if a, ok := c.(*bpl.AssertCmd); ok && a.Attrs.Has("race") && a.Attrs.Has(tag) {
				return a.Attrs
			}
		}
	}
	return nil
}

// UserError reports whether the error reflects a problem in the user's
// input rather than in this program.
func UserError(err error) bool {
	return errors.Is(err, ErrConfig) || errors.Is(err, barrier.ErrNotInstantiable)
}
