// Package cex reconstructs source-level diagnoses from solver
// counterexamples over the transformed program, undoing the effects of
// dualization, inlining and loop unrolling.
package cex

import "fmt"

// Value is a concrete model value: boolean, bit-vector numeral, or
// uninterpreted.
type Value interface {
	isValue()
	String() string
}

// BoolVal is a boolean model value.
type BoolVal struct {
	Val bool
}

func (BoolVal) isValue() {}
func (v BoolVal) String() string {
	return fmt.Sprintf("%t", v.Val)
}

// BVVal is a bit-vector numeral.
type BVVal struct {
	Val   uint64
	Width int
}

func (BVVal) isValue() {}
func (v BVVal) String() string {
	return fmt.Sprintf("%d", v.Val)
}

// UnintVal is a value the solver left uninterpreted.
type UnintVal struct {
	Name string
}

func (UnintVal) isValue() {}
func (v UnintVal) String() string {
	return v.Name
}

// CapturedState is one named snapshot of the transformed program's
// variables.
type CapturedState struct {
	Name string
	Vals map[string]Value
}

// Bool reads a boolean variable from the snapshot; absent or
// differently-typed entries read as false.
func (s CapturedState) Bool(name string) bool {
	if v, ok := s.Vals[name].(BoolVal); ok {
		return v.Val
	}
	return false
}

// BV reads a bit-vector variable from the snapshot.
func (s CapturedState) BV(name string) (uint64, bool) {
	if v, ok := s.Vals[name].(BVVal); ok {
		return v.Val, true
	}
	return 0, false
}

// Model is the solver-produced artifact for one failed proof: the
// captured states in execution order plus the trace of executed basic
// blocks. It is read-only for diagnosis.
type Model struct {
	States []CapturedState
	Trace  []string
}

// StateIndex finds a captured state by label.
func (m *Model) StateIndex(name string) (int, bool) {
	for i, s := range m.States {
		if s.Name == name {
			return i, true
		}
	}
	return 0, false
}
