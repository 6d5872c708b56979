package cex

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gpuverify/kernelcheck/internal/bpl"
)

func TestClassifyRace(t *testing.T) {
	t.Parallel()

	tests := []struct {
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
	for _, tt := range tests {
		tt := tt
		t.Run(tt.tag, func(t *testing.T) {
			t.Parallel()
			attrs := bpl.Attrs{}.With("race").With(tt.tag).With(bpl.AttrArray, "$$a")
			c := Classify(attrs)
			assert.Equal(t, KindRace, c.Kind)
			require.NotNil(t, c.Race)
			assert.Equal(t, tt.name, c.Race.Name)
			assert.Equal(t, tt.access1, c.Race.Access1)
			assert.Equal(t, tt.access2, c.Race.Access2)
			assert.Equal(t, "$$a", c.Race.Array)
		})
	}
}

func TestClassifyNonRace(t *testing.T) {
	t.Parallel()

	tests := []struct {
		attr string
		want Kind
	}{
		{"requires", KindRequires},
		{"ensures", KindEnsures},
		{"loop_entry", KindLoopEntry},
		{"loop_maintained", KindLoopMaintained},
		{"barrier_divergence", KindBarrierDivergence},
		{"barrier_invariant", KindBarrierInvariant},
		{"barrier_invariant_access_check", KindBarrierInvariantAccess},
		{"constant_write", KindConstantWrite},
		{"bounds_check", KindOutOfBounds},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.attr, func(t *testing.T) {
			t.Parallel()
			c := Classify(bpl.Attrs{}.With(tt.attr))
			assert.Equal(t, tt.want, c.Kind)
			assert.Nil(t, c.Race)
		})
	}
}

func TestClassifyDefaultsToAssertion(t *testing.T) {
	t.Parallel()

	c := Classify(bpl.Attrs{}.With("sourceloc_num", 3))
	assert.Equal(t, KindAssertion, c.Kind)
}

func TestClassifyUntaggedRace(t *testing.T) {
	t.Parallel()

	c := Classify(bpl.Attrs{}.With("race"))
	assert.Equal(t, KindRace, c.Kind)
	assert.Nil(t, c.Race)
}
