package bpl

import (
	"fmt"
	"strings"
)

// Naming conventions shared between the transformation passes and the
// counterexample diagnoser.
const (
	// ArrayPrefix marks shared arrays introduced by the front end.
	ArrayPrefix = "$$"

	// OtherFuncPrefix marks the "other thread's view" function family.
	// Expressions containing these are asymmetric and must never be
	// naively duplicated.
	OtherFuncPrefix = "__other_"

	// LogProcPrefix and CheckProcPrefix name the synthesized race
	// instrumentation procedures, e.g. _LOG_WRITE_$$A.
	LogProcPrefix   = "_LOG_"
	CheckProcPrefix = "_CHECK_"

	// BarrierInvariantProc and BinaryBarrierInvariantProc are the
	// recognized invariant-capture procedures.
	BarrierInvariantProc       = "__barrier_invariant"
	BinaryBarrierInvariantProc = "__binary_barrier_invariant"

	// TrackingVar is the global tracking-enabled flag required by the
	// watchdog instrumentation strategy.
	TrackingVar = "_TRACKING"

	// WatchedOffsetVar is the distinguished offset observed by the
	// watchdog strategy.
	WatchedOffsetVar = "_WATCHED_OFFSET"

	// LocalIDFunc is the canonical thread-identity function. Barrier
	// invariant obligations are checked at each thread's own local id.
	LocalIDFunc = "local_id_x"
)

// Command and declaration attribute keys.
const (
	AttrSourceLocNum  = "sourceloc_num"
	AttrSourceLoc     = "sourceloc"
	AttrBlockLoc      = "block_sourceloc"
	AttrCaptureState  = "captureState"
	AttrBackedge      = "backedge"
	AttrAtomicRefine  = "atomic_refinement"
	AttrBarrier       = "barrier"
	AttrUniform       = "uniform"
	AttrGroupShared   = "group_shared"
	AttrGlobal        = "global"
	AttrAsyncCopy     = "async_copy"
	AttrThreadID      = "thread_id"
	AttrElemWidth     = "elem_width"
	AttrSourceElWidth = "source_elem_width"
	AttrSourceDims    = "source_dimensions"
	AttrArray         = "array"
	AttrArgPrefix     = "arg"
)

// ThreadName tags a name with a thread index.
func ThreadName(name string, thread int) string {
	if thread != 1 && thread != 2 {
		panic(fmt.Sprintf("bpl: bad thread index %d", thread))
	}
	return fmt.Sprintf("%s$%d", name, thread)
}

// StripThread removes a thread tag, if any, returning the base name and
// the thread index (0 when untagged).
func StripThread(name string) (string, int) {
	switch {
	case strings.HasSuffix(name, "$1"):
		return strings.TrimSuffix(name, "$1"), 1
	case strings.HasSuffix(name, "$2"):
		return strings.TrimSuffix(name, "$2"), 2
	default:
		return name, 0
	}
}

// IsSharedArray reports whether a name follows the shared-array naming
// convention.
func IsSharedArray(name string) bool {
	return strings.HasPrefix(name, ArrayPrefix)
}

// IsOtherFunc reports whether a function name belongs to the
// other-thread family.
func IsOtherFunc(name string) bool {
	return strings.HasPrefix(name, OtherFuncPrefix)
}

// IsThreadIdentityFunc reports whether a function yields a
// thread-identity value (local or group id).
func IsThreadIdentityFunc(name string) bool {
	return strings.HasPrefix(name, "local_id_") || strings.HasPrefix(name, "group_id_")
}
