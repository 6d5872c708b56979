package cex

import "github.com/gpuverify/kernelcheck/internal/bpl"

// Kind is the classified failure category.
type Kind string

const (
	KindRequires                   Kind = "precondition violation"
	KindEnsures                    Kind = "postcondition violation"
	KindLoopEntry                  Kind = "loop invariant violation on entry"
	KindLoopMaintained             Kind = "loop invariant not maintained"
	KindBarrierDivergence          Kind = "barrier divergence"
	KindRace                       Kind = "data race"
	KindBarrierInvariant           Kind = "barrier invariant violation"
	KindBarrierInvariantAccess     Kind = "barrier invariant access check violation"
	KindConstantWrite              Kind = "write to constant memory"
	KindOutOfBounds                Kind = "out-of-bounds access"
	KindAssertion                  Kind = "assertion violation"
)

// RaceInfo subclassifies a race by the ordered pair of access kinds.
type RaceInfo struct {
	Name    string // e.g. "write-read"
	Access1 string // the logged, earlier access
	Access2 string // the checking, later access
	Array   string
}

// Classification is the decoded nature of a failing predicate.
type Classification struct {
	Kind Kind
	Race *RaceInfo
}

// raceTags maps race attribute tags to their ordered access pair. No
// two tags match the same attribute set.
var raceTags = []struct {
	tag     string
	name    string
	access1 string
	access2 string
}{
	{"write_read", "write-read", "Write", "Read"},
	{"read_write", "read-write", "Read", "Write"},
	{"write_write", "write-write", "Write", "Write"},
	{"atomic_read", "atomic-read", "Atomic", "Read"},
	{"atomic_write", "atomic-write", "Atomic", "Write"},
	{"atomic_atomic", "atomic-atomic", "Atomic", "Atomic"},
}

// Classify decodes the boolean attributes attached to a failing
// predicate. Dispatch is attribute-driven only; absent every tag the
// failure is a plain assertion violation.
func Classify(attrs bpl.Attrs) Classification {
	switch {
	case attrs.Has("race"):
		for _, t := range raceTags {
			if attrs.Has(t.tag) {
				array, _ := attrs.Str(bpl.AttrArray)
				return Classification{Kind: KindRace, Race: &RaceInfo{
					Name:    t.name,
					Access1: t.access1,
					Access2: t.access2,
					Array:   array,
				}}
			}
		}
		return Classification{Kind: KindRace}
	case attrs.Has("requires"):
		return Classification{Kind: KindRequires}
	case attrs.Has("ensures"):
		return Classification{Kind: KindEnsures}
	case attrs.Has("loop_entry"):
		return Classification{Kind: KindLoopEntry}
	case attrs.Has("loop_maintained"):
		return Classification{Kind: KindLoopMaintained}
	case attrs.Has("barrier_divergence"):
		return Classification{Kind: KindBarrierDivergence}
	case attrs.Has("barrier_invariant_access_check"):
		return Classification{Kind: KindBarrierInvariantAccess}
	case attrs.Has("barrier_invariant"):
		return Classification{Kind: KindBarrierInvariant}
	case attrs.Has("constant_write"):
		return Classification{Kind: KindConstantWrite}
	case attrs.Has("bounds_check"):
		return Classification{Kind: KindOutOfBounds}
	default:
		return Classification{Kind: KindAssertion}
	}
}
