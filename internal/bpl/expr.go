package bpl

import (
	"fmt"
	"strings"
)

// Expr represents an expression over booleans and bit-vectors.
type Expr interface {
	isExpr()
	String() string
}

// BoolLit is a boolean literal.
type BoolLit struct {
	Val bool
}

func (BoolLit) isExpr() {}
func (e BoolLit) String() string {
	return fmt.Sprintf("%t", e.Val)
}

// BVLit is a bit-vector numeral of a fixed width.
type BVLit struct {
	Val   uint64
	Width int
}

func (BVLit) isExpr() {}
func (e BVLit) String() string {
	return fmt.Sprintf("%dbv%d", e.Val, e.Width)
}

// IdentExpr is a reference to a variable or constant by name.
type IdentExpr struct {
	Name string
}

func (IdentExpr) isExpr() {}
func (e IdentExpr) String() string {
	return e.Name
}

// BinaryOp enumerates binary operators.
type BinaryOp int

const (
	_ BinaryOp = iota
	OpAdd
	OpSub
	OpMul
	OpDiv
	OpMod
	OpEq
	OpNeq
	OpLt
	OpLte
	OpGt
	OpGte
	OpAnd
	OpOr
	OpImp
	OpIff
)

func (op BinaryOp) String() string {
	switch op {
	case OpAdd:
		return "+"
	case OpSub:
		return "-"
	case OpMul:
		return "*"
	case OpDiv:
		return "/"
	case OpMod:
		return "%"
	case OpEq:
		return "=="
	case OpNeq:
		return "!="
	case OpLt:
		return "<"
	case OpLte:
		return "<="
	case OpGt:
		return ">"
	case OpGte:
		return ">="
	case OpAnd:
		return "&&"
	case OpOr:
		return "||"
	case OpImp:
		return "==>"
	case OpIff:
		return "<==>"
	default:
		return "?"
	}
}

// BinaryExpr is a binary expression.
type BinaryExpr struct {
	Op    BinaryOp
	Left  Expr
	Right Expr
}

func (BinaryExpr) isExpr() {}
func (e BinaryExpr) String() string {
	return "(" + e.Left.String() + " " + e.Op.String() + " " + e.Right.String() + ")"
}

// UnaryOp enumerates unary operators.
type UnaryOp int

const (
	OpNot UnaryOp = iota
	OpNeg
)

func (op UnaryOp) String() string {
	switch op {
	case OpNot:
		return "!"
	case OpNeg:
		return "-"
	default:
		return "?"
	}
}

// UnaryExpr is a unary expression.
type UnaryExpr struct {
	Op      UnaryOp
	Operand Expr
}

func (UnaryExpr) isExpr() {}
func (e UnaryExpr) String() string {
	return "(" + e.Op.String() + e.Operand.String() + ")"
}

// SelectExpr reads an element of a map: m[index].
type SelectExpr struct {
	Map   Expr
	Index Expr
}

func (SelectExpr) isExpr() {}
func (e SelectExpr) String() string {
	return e.Map.String() + "[" + e.Index.String() + "]"
}

// StoreExpr is a functional map update: m[index := value].
type StoreExpr struct {
	Map   Expr
	Index Expr
	Value Expr
}

func (StoreExpr) isExpr() {}
func (e StoreExpr) String() string {
	return e.Map.String() + "[" + e.Index.String() + " := " + e.Value.String() + "]"
}

// CallExpr applies an uninterpreted function. Thread-identity functions
// and the __other_* family appear here.
type CallExpr struct {
	Func string
	Args []Expr
}

func (CallExpr) isExpr() {}
func (e CallExpr) String() string {
	args := make([]string, len(e.Args))
	for i, a := range e.Args {
		args[i] = a.String()
	}
	return e.Func + "(" + strings.Join(args, ", ") + ")"
}

// IteExpr selects between two values: if cond then then else els.
type IteExpr struct {
	Cond Expr
	Then Expr
	Else Expr
}

func (IteExpr) isExpr() {}
func (e IteExpr) String() string {
	return "(if " + e.Cond.String() + " then " + e.Then.String() + " else " + e.Else.String() + ")"
}

// QuantExpr is a universally quantified expression. Barrier invariants
// quantify over a thread-identity placeholder.
type QuantExpr struct {
	Vars []Variable
	Body Expr
}

func (QuantExpr) isExpr() {}
func (e QuantExpr) String() string {
	vars := make([]string, len(e.Vars))
	for i, v := range e.Vars {
		vars[i] = v.Name + ": " + v.Type.String()
	}
	return "(forall " + strings.Join(vars, ", ") + " :: " + e.Body.String() + ")"
}

// Constructor helpers.

// True returns the boolean literal true.
func True() Expr {
	return BoolLit{Val: true}
}

// False returns the boolean literal false.
func False() Expr {
	return BoolLit{Val: false}
}

// BVNum creates a bit-vector numeral.
func BVNum(val uint64, width int) Expr {
	return BVLit{Val: val, Width: width}
}

// Id creates an identifier reference.
func Id(name string) Expr {
	return IdentExpr{Name: name}
}

// Binary creates a binary expression.
func Binary(op BinaryOp, left, right Expr) Expr {
	return BinaryExpr{Op: op, Left: left, Right: right}
}

// Not creates a logical negation.
func Not(e Expr) Expr {
	return UnaryExpr{Op: OpNot, Operand: e}
}

// And creates a conjunction.
func And(left, right Expr) Expr {
	return BinaryExpr{Op: OpAnd, Left: left, Right: right}
}

// Or creates a disjunction.
func Or(left, right Expr) Expr {
	return BinaryExpr{Op: OpOr, Left: left, Right: right}
}

// Imp creates an implication.
func Imp(left, right Expr) Expr {
	return BinaryExpr{Op: OpImp, Left: left, Right: right}
}

// Eq creates an equality.
func Eq(left, right Expr) Expr {
	return BinaryExpr{Op: OpEq, Left: left, Right: right}
}

// Neq creates a disequality.
func Neq(left, right Expr) Expr {
	return BinaryExpr{Op: OpNeq, Left: left, Right: right}
}

// Sel creates a map read.
func Sel(m, index Expr) Expr {
	return SelectExpr{Map: m, Index: index}
}

// Upd creates a functional map update.
func Upd(m, index, value Expr) Expr {
	return StoreExpr{Map: m, Index: index, Value: value}
}

// Apply creates an uninterpreted function application.
func Apply(fn string, args ...Expr) Expr {
	return CallExpr{Func: fn, Args: args}
}

// Forall creates a universally quantified expression.
func Forall(vars []Variable, body Expr) Expr {
	return QuantExpr{Vars: vars, Body: body}
}

// Ite creates an if-then-else expression.
func Ite(cond, then, els Expr) Expr {
	return IteExpr{Cond: cond, Then: then, Else: els}
}

// RewriteExpr rebuilds an expression bottom-up. The callback sees each
// rebuilt node and may replace it; returning (nil, false) keeps the node.
func RewriteExpr(e Expr, f func(Expr) (Expr, bool)) Expr {
	var out Expr
	switch x := e.(type) {
	case BoolLit, BVLit, IdentExpr:
		out = e
	case BinaryExpr:
		out = BinaryExpr{Op: x.Op, Left: RewriteExpr(x.Left, f), Right: RewriteExpr(x.Right, f)}
	case UnaryExpr:
		out = UnaryExpr{Op: x.Op, Operand: RewriteExpr(x.Operand, f)}
	case SelectExpr:
		out = SelectExpr{Map: RewriteExpr(x.Map, f), Index: RewriteExpr(x.Index, f)}
	case StoreExpr:
		out = StoreExpr{Map: RewriteExpr(x.Map, f), Index: RewriteExpr(x.Index, f), Value: RewriteExpr(x.Value, f)}
	case CallExpr:
		args := make([]Expr, len(x.Args))
		for i, a := range x.Args {
			args[i] = RewriteExpr(a, f)
		}
		out = CallExpr{Func: x.Func, Args: args}
	case IteExpr:
		out = IteExpr{Cond: RewriteExpr(x.Cond, f), Then: RewriteExpr(x.Then, f), Else: RewriteExpr(x.Else, f)}
	case QuantExpr:
		out = QuantExpr{Vars: x.Vars, Body: RewriteExpr(x.Body, f)}
	default:
		panic(fmt.Sprintf("bpl: unknown expression %T", e))
	}
	if repl, ok := f(out); ok {
		return repl
	}
	return out
}

// WalkExpr visits every node of an expression top-down. Returning false
// from the callback stops descent into that node.
func WalkExpr(e Expr, f func(Expr) bool) {
	if !f(e) {
		return
	}
	switch x := e.(type) {
	case BinaryExpr:
		WalkExpr(x.Left, f)
		WalkExpr(x.Right, f)
	case UnaryExpr:
		WalkExpr(x.Operand, f)
	case SelectExpr:
		WalkExpr(x.Map, f)
		WalkExpr(x.Index, f)
	case StoreExpr:
		WalkExpr(x.Map, f)
		WalkExpr(x.Index, f)
		WalkExpr(x.Value, f)
	case CallExpr:
		for _, a := range x.Args {
			WalkExpr(a, f)
		}
	case IteExpr:
		WalkExpr(x.Cond, f)
		WalkExpr(x.Then, f)
		WalkExpr(x.Else, f)
	case QuantExpr:
		WalkExpr(x.Body, f)
	}
}

// Subst replaces every reference to name with repl.
func Subst(e Expr, name string, repl Expr) Expr {
	return RewriteExpr(e, func(n Expr) (Expr, bool) {
		if id, ok := n.(IdentExpr); ok && id.Name == name {
			return repl, true
		}
		return nil, false
	})
}

// ExprEqual reports structural equality of two expressions.
func ExprEqual(a, b Expr) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.String() == b.String()
}
