package parse

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/gpuverify/kernelcheck/internal/cex"
)

// FailureRecord names one failed proof obligation in the solver
// artifact: the implementation it fails in, the captured state tied to
// the failing check, and the source location index of the failing
// predicate. Race check failures additionally carry the race tag of
// the failing assertion, since the check call site alone does not say
// which of the inlined race checks fired.
type FailureRecord struct {
	Impl     string
	State    string
	LocIndex int
	Tag      string
}

// ReadModel parses the solver artifact. The format is line oriented:
//
//	*** FAILURE impl=$kernel state=check_state_3 loc=7 tag=write_write
//	*** STATE check_state_0
//	  x$1 -> 5bv32
//	  _WRITE_HAS_OCCURRED_$$a$1 -> true
//	*** END_STATE
//	*** TRACE
//	  $entry
//	  $for.cond
//
// States appear in execution order. Values are booleans, bit-vector
// numerals, or uninterpreted tokens.
func ReadModel(r io.Reader) (*cex.Model, []FailureRecord, error) {
	m := &cex.Model{}
	var failures []FailureRecord
	var state *cex.CapturedState
	inTrace := false

	scanner := bufio.NewScanner(r)
	lineNum := 0
	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		switch {
		case strings.HasPrefix(line, "*** FAILURE"):
			f, err := parseFailureLine(line)
			if err != nil {
				return nil, nil, fmt.Errorf("line %d: %w", lineNum, err)
			}
			failures = append(failures, f)
		case strings.HasPrefix(line, "*** STATE"):
			if state != nil {
				return nil, nil, fmt.Errorf("line %d: state opened inside another state", lineNum)
			}
			name := strings.TrimSpace(strings.TrimPrefix(line, "*** STATE"))
			if name == "" {
				return nil, nil, fmt.Errorf("line %d: state without a label", lineNum)
			}
			state = &cex.CapturedState{Name: name, Vals: map[string]cex.Value{}}
		case line == "*** END_STATE":
			if state == nil {
				return nil, nil, fmt.Errorf("line %d: end of state without a state", lineNum)
			}
			m.States = append(m.States, *state)
			state = nil
		case line == "*** TRACE":
			inTrace = true
		case state != nil:
			name, val, err := parseBinding(line)
			if err != nil {
				return nil, nil, fmt.Errorf("line %d: %w", lineNum, err)
			}
			state.Vals[name] = val
		case inTrace:
			m.Trace = append(m.Trace, strings.Fields(line)...)
		default:
			return nil, nil, fmt.Errorf("line %d: unexpected content %q", lineNum, line)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, nil, err
	}
	if state != nil {
		return nil, nil, fmt.Errorf("unterminated state %q", state.Name)
	}
	return m, failures, nil
}

func parseFailureLine(line string) (FailureRecord, error) {
	var f FailureRecord
	f.LocIndex = -1
	for _, field := range strings.Fields(strings.TrimPrefix(line, "*** FAILURE")) {
		key, value, ok := strings.Cut(field, "=")
		if !ok {
			return f, fmt.Errorf("malformed failure field %q", field)
		}
		switch key {
		case "impl":
			f.Impl = value
		case "state":
			f.State = value
		case "loc":
			n, err := strconv.Atoi(value)
			if err != nil {
				return f, fmt.Errorf("bad failure location index %q", value)
			}
			f.LocIndex = n
		case "tag":
			f.Tag = value
		default:
			return f, fmt.Errorf("unknown failure field %q", key)
		}
	}
	if f.Impl == "" || f.State == "" {
		return f, fmt.Errorf("failure record needs impl= and state=")
	}
	return f, nil
}

func parseBinding(line string) (string, cex.Value, error) {
	name, raw, ok := strings.Cut(line, "->")
	if !ok {
		return "", nil, fmt.Errorf("malformed binding %q", line)
	}
	name = strings.TrimSpace(name)
	raw = strings.TrimSpace(raw)
	if name == "" || raw == "" {
		return "", nil, fmt.Errorf("malformed binding %q", line)
	}
	return name, parseValue(raw), nil
}

func parseValue(raw string) cex.Value {
	switch raw {
	case "true":
		return cex.BoolVal{Val: true}
	case "false":
		return cex.BoolVal{Val: false}
	}
	if i := strings.Index(raw, "bv"); i > 0 {
		val, err1 := strconv.ParseUint(raw[:i], 10, 64)
		width, err2 := strconv.Atoi(raw[i+2:])
		if err1 == nil && err2 == nil {
			return cex.BVVal{Val: val, Width: width}
		}
	}
	return cex.UnintVal{Name: raw}
}
