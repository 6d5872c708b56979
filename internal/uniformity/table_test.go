package uniformity

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/gpuverify/kernelcheck/internal/bpl"
)

func TestFromProgram(t *testing.T) {
	t.Parallel()

	prog := &bpl.Program{}
	prog.Add(
		&bpl.ConstDecl{Var: bpl.Variable{Name: "n", Type: bpl.BV(32)}},
		&bpl.GlobalVar{Var: bpl.Variable{Name: "g", Type: bpl.BV(32), Attrs: bpl.Attrs{}.With(bpl.AttrUniform)}},
		&bpl.GlobalVar{Var: bpl.Variable{Name: "$$a", Type: bpl.Map(bpl.BV(32), bpl.BV(32))}},
		&bpl.Implementation{
			Name: "$kernel",
			InParams: []bpl.Variable{
				{Name: "i", Type: bpl.BV(32), Attrs: bpl.Attrs{}.With(bpl.AttrUniform)},
				{Name: "x", Type: bpl.BV(32)},
			},
			Locals: []bpl.Variable{
				{Name: "t", Type: bpl.BV(32), Attrs: bpl.Attrs{}.With(bpl.AttrUniform)},
			},
		},
	)
	table := FromProgram(prog)

	assert.True(t, table.IsUniform("$kernel", "n"))
	assert.True(t, table.IsUniform("$kernel", "g"))
	assert.True(t, table.IsUniform("$kernel", "$$a"))
	assert.True(t, table.IsUniform("$kernel", "i"))
	assert.True(t, table.IsUniform("$kernel", "t"))
	assert.False(t, table.IsUniform("$kernel", "x"))

	// Per-procedure facts do not leak into other procedures.
	assert.False(t, table.IsUniform("$other", "i"))
	assert.True(t, table.IsUniform("$other", "n"))

	// Unknown names default to non-uniform.
	assert.False(t, table.IsUniform("$kernel", "mystery"))
}

func TestExprIsUniform(t *testing.T) {
	t.Parallel()

	table := New()
	table.MarkUniform("p", "i")
	table.MarkUniformGlobal("n")

	tests := []struct {
		name string
		expr bpl.Expr
		want bool
	}{
		{"all uniform idents", bpl.Binary(bpl.OpAdd, bpl.Id("i"), bpl.Id("n")), true},
		{"non-uniform ident", bpl.Binary(bpl.OpAdd, bpl.Id("i"), bpl.Id("x")), false},
		{"thread identity call", bpl.Eq(bpl.Id("i"), bpl.Apply("local_id_x")), false},
		{"group identity call", bpl.Eq(bpl.Id("i"), bpl.Apply("group_id_x")), false},
		{"other thread call", bpl.Eq(bpl.Id("i"), bpl.Apply("__other_bv32", bpl.Id("i"))), false},
		{"literal only", bpl.Eq(bpl.BVNum(1, 32), bpl.BVNum(1, 32)), true},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, table.ExprIsUniform("p", tt.expr))
		})
	}
}

func TestHasAsymmetry(t *testing.T) {
	t.Parallel()

	assert.True(t, HasAsymmetry(bpl.Eq(bpl.Id("x"), bpl.Apply("__other_bv32", bpl.Id("x")))))
	assert.False(t, HasAsymmetry(bpl.Eq(bpl.Id("x"), bpl.Apply("local_id_x"))))
	assert.False(t, HasAsymmetry(bpl.Id("x")))
}
