package bpl

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExprString(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		expr Expr
		want string
	}{
		{"bv literal", BVNum(5, 32), "5bv32"},
		{"binary", Binary(OpAdd, Id("x"), BVNum(1, 32)), "(x + 1bv32)"},
		{"implication", Imp(Id("p"), Id("q")), "(p ==> q)"},
		{"select", Sel(Id("$$a"), Id("i")), "$$a[i]"},
		{"store", Upd(Id("m"), Id("i"), Id("v")), "m[i := v]"},
		{"ite", Ite(Id("c"), Id("a"), Id("b")), "(if c then a else b)"},
		{"call", Apply("local_id_x"), "local_id_x()"},
		{
			"forall",
			Forall([]Variable{{Name: "__tid", Type: BV(32)}}, Eq(Sel(Id("$$a"), Id("__tid")), BVNum(0, 32))),
			"(forall __tid: bv32 :: ($$a[__tid] == 0bv32))",
		},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, tt.expr.String())
		})
	}
}

func TestSubst(t *testing.T) {
	t.Parallel()

	body := Eq(Sel(Id("$$a"), Id("__tid")), BVNum(0, 32))
	got := Subst(body, "__tid", Id("i"))
	assert.Equal(t, "($$a[i] == 0bv32)", got.String())

	// The original is untouched.
	assert.Equal(t, "($$a[__tid] == 0bv32)", body.String())
}

func TestRewriteExprBottomUp(t *testing.T) {
	t.Parallel()

	e := And(Id("x"), Sel(Id("$$a"), Id("x")))
	got := RewriteExpr(e, func(n Expr) (Expr, bool) {
		if id, ok := n.(IdentExpr); ok && id.Name == "x" {
			return Id("x$1"), true
		}
		return nil, false
	})
	assert.Equal(t, "(x$1 && $$a[x$1])", got.String())
}

func TestWalkExprStopsDescent(t *testing.T) {
	t.Parallel()

	e := And(Apply("__other_v", Id("x")), Id("y"))
	var seen []string
	WalkExpr(e, func(n Expr) bool {
		if c, ok := n.(CallExpr); ok {
			seen = append(seen, c.Func)
			return false
		}
		if id, ok := n.(IdentExpr); ok {
			seen = append(seen, id.Name)
		}
		return true
	})
	assert.Equal(t, []string{"__other_v", "y"}, seen)
}

func TestLhsRoot(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "x", LhsRoot(Id("x")))
	assert.Equal(t, "$$a", LhsRoot(Sel(Sel(Id("$$a"), Id("i")), Id("j"))))
	assert.Panics(t, func() { LhsRoot(BVNum(0, 32)) })
}

func TestThreadNames(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "x$1", ThreadName("x", 1))
	assert.Panics(t, func() { ThreadName("x", 3) })

	base, thread := StripThread("x$2")
	assert.Equal(t, "x", base)
	assert.Equal(t, 2, thread)

	base, thread = StripThread("n")
	assert.Equal(t, "n", base)
	assert.Equal(t, 0, thread)
}

func TestAttrs(t *testing.T) {
	t.Parallel()

	attrs := Attrs{}.
		With("race").
		With("array", "$$a").
		With("sourceloc_num", 7)

	assert.True(t, attrs.Has("race"))
	assert.False(t, attrs.Has("benign"))

	s, ok := attrs.Str("array")
	require.True(t, ok)
	assert.Equal(t, "$$a", s)

	n, ok := attrs.Int("sourceloc_num")
	require.True(t, ok)
	assert.Equal(t, 7, n)

	assert.Equal(t, `{:race} {:array "$$a"} {:sourceloc_num 7}`, attrs.String())

	without := attrs.Without("race")
	assert.False(t, without.Has("race"))
	assert.True(t, attrs.Has("race"))
}

func TestCloneCmdIsolation(t *testing.T) {
	t.Parallel()

	orig := &AssumeCmd{Expr: True(), Attrs: Attrs{}.With("captureState", "check_state_0")}
	clone := CloneCmd(orig).(*AssumeCmd)
	clone.Attrs = clone.Attrs.Without("captureState").With("captureState", "check_state_9")

	label, ok := orig.Attrs.Str("captureState")
	require.True(t, ok)
	assert.Equal(t, "check_state_0", label)
}
