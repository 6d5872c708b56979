package bpl

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFprintMatchesString(t *testing.T) {
	t.Parallel()

	prog := &Program{}
	prog.Add(
		&GlobalVar{Var: Variable{Name: "$$a", Type: Map(BV(32), BV(32))}},
		&AxiomDecl{Expr: Eq(BVNum(1, 32), BVNum(1, 32))},
	)

	var sb strings.Builder
	require.NoError(t, prog.Fprint(&sb))
	assert.Equal(t, prog.String(), sb.String())
	assert.Contains(t, sb.String(), "axiom (1bv32 == 1bv32);")
}
