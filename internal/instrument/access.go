// Package instrument synthesizes the shadow state and log/check
// procedures that make data races visible to the verifier. Two
// interchangeable strategies exist; which one runs is a process-wide
// configuration choice.
package instrument

import "github.com/gpuverify/kernelcheck/internal/bpl"

// AccessType classifies a shared-array access.
type AccessType int

const (
	Read AccessType = iota
	Write
	Atomic
)

func (a AccessType) String() string {
	switch a {
	case Read:
		return "READ"
	case Write:
		return "WRITE"
	case Atomic:
		return "ATOMIC"
	default:
		return "?"
	}
}

// AccessTypes lists every access kind in a fixed order.
func AccessTypes() []AccessType {
	return []AccessType{Read, Write, Atomic}
}

// Shadow variable names for one array and access kind. The array name
// keeps its $$ prefix.

// HasOccurredName is the occurrence flag.
func HasOccurredName(array string, a AccessType) string {
	return "_" + a.String() + "_HAS_OCCURRED_" + array
}

// OffsetName is the recorded element offset.
func OffsetName(array string, a AccessType) string {
	return "_" + a.String() + "_OFFSET_" + array
}

// ValueName is the recorded element value.
func ValueName(array string, a AccessType) string {
	return "_" + a.String() + "_VALUE_" + array
}

// BenignFlagName marks a write that stored a genuinely new value.
// Writes only.
func BenignFlagName(array string) string {
	return "_WRITE_BENIGN_FLAG_" + array
}

// AsyncHandleName tracks the asynchronous group-copy handle.
func AsyncHandleName(array string, a AccessType) string {
	return "_" + a.String() + "_ASYNC_HANDLE_" + array
}

// LogProcName and CheckProcName name the synthesized procedures.
func LogProcName(array string, a AccessType) string {
	return bpl.LogProcPrefix + a.String() + "_" + array
}

func CheckProcName(array string, a AccessType) string {
	return bpl.CheckProcPrefix + a.String() + "_" + array
}
