package parse

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const kernelSrc = `
const n: bv32;
var {:uniform} c: bv32;
var {:elem_width 32} {:source_dimensions "4,4"} $$a: [bv32]bv32;
function {:thread_id} local_id_x(): bv32;
axiom (n > 0bv32);

procedure {:barrier} $barrier();

procedure $kernel(x: bv32, {:uniform} i: bv32) returns (y: bv32);
  requires (x < n);
  ensures (y >= 0bv32);
  modifies $$a;

implementation $kernel(x: bv32, {:uniform} i: bv32) returns (y: bv32)
{
  var t: bv32;

  entry:
    t := (x + 1bv32);
    $$a[t] := x;
    assume {:captureState "check_state_0"} true;
    call {:sourceloc_num 3} _CHECK_WRITE_$$a(true, t, x);
    goto loop, exit;

  loop:
    havoc t;
    assert {:sourceloc_num 4} (t != x);
    goto exit;

  exit:
    y := (if (x > 0bv32) then x else 0bv32);
    return;
}
`

func TestParseRoundTrip(t *testing.T) {
	t.Parallel()

	prog, err := Parse(kernelSrc)
	require.NoError(t, err)

	printed := prog.String()
	reparsed, err := Parse(printed)
	require.NoError(t, err)
	assert.Equal(t, printed, reparsed.String())
}

func TestParseProgramShape(t *testing.T) {
	t.Parallel()

	prog, err := Parse(kernelSrc)
	require.NoError(t, err)

	require.NotNil(t, prog.Global("$$a"))
	require.NotNil(t, prog.Function("local_id_x"))

	proc := prog.Procedure("$kernel")
	require.NotNil(t, proc)
	assert.Len(t, proc.Requires, 1)
	assert.Len(t, proc.Ensures, 1)
	assert.Equal(t, []string{"$$a"}, proc.Modifies)
	assert.True(t, proc.InParams[1].Attrs.Has("uniform"))

	impl := prog.Implementation("$kernel")
	require.NotNil(t, impl)
	require.Len(t, impl.Blocks, 3)
	assert.Equal(t, "entry", impl.Blocks[0].Label)
	assert.Len(t, impl.Blocks[0].Cmds, 4)

	barrier := prog.Procedure("$barrier")
	require.NotNil(t, barrier)
	assert.True(t, barrier.Attrs.Has("barrier"))
}

func TestParseExpr(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"precedence", "a + b * c", "(a + (b * c))"},
		{"comparison binds tighter than and", "a == b && c == d", "((a == b) && (c == d))"},
		{"implication is right associative", "a ==> b ==> c", "(a ==> (b ==> c))"},
		{"explicit parens", "(a + b) * c", "((a + b) * c)"},
		{"negation", "!(a || b)", "(!(a || b))"},
		{"select chain", "m[i][j]", "m[i][j]"},
		{"store then select", "m[i := v][j]", "m[i := v][j]"},
		{"ite", "(if p then a else b)", "(if p then a else b)"},
		{"call", "local_id_x()", "local_id_x()"},
		{"other thread call", "__other_bv32(x)", "__other_bv32(x)"},
		{"forall", "(forall __tid: bv32 :: ($$a[__tid] == 0bv32))", "(forall __tid: bv32 :: ($$a[__tid] == 0bv32))"},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			e, err := ParseExpr(tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.want, e.String())
		})
	}
}

func TestParseErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		input string
	}{
		{"unknown declaration", "widget x: bv32;"},
		{"missing semicolon", "var x: bv32"},
		{"unknown type", "var x: int;"},
		{"unterminated string", `var {:file "a} x: bv32;`},
		{"trailing garbage in expr", "axiom true false;"},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := Parse(tt.input)
			assert.Error(t, err)
		})
	}
}

func TestParseExprRejectsBareNumber(t *testing.T) {
	t.Parallel()

	// Bare numerals only occur inside attributes; expressions use
	// width-annotated literals.
	_, err := ParseExpr("5")
	assert.Error(t, err)
}
