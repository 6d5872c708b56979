package bpl

import (
	"strings"
)

// Cmd represents a single command inside a basic block. The set of
// command kinds is closed; transformation passes panic on anything else.
type Cmd interface {
	isCmd()
	String() string
	CmdAttrs() Attrs
}

// AssignCmd is a simultaneous multi-assignment. Lhs entries are either
// identifiers or map selects over an identifier.
type AssignCmd struct {
	Lhs   []Expr
	Rhs   []Expr
	Attrs Attrs
}

func (*AssignCmd) isCmd() {}
func (c *AssignCmd) CmdAttrs() Attrs {
	return c.Attrs
}

func (c *AssignCmd) String() string {
	lhs := make([]string, len(c.Lhs))
	for i, l := range c.Lhs {
		lhs[i] = l.String()
	}
	rhs := make([]string, len(c.Rhs))
	for i, r := range c.Rhs {
		rhs[i] = r.String()
	}
	return prefixAttrs(c.Attrs) + strings.Join(lhs, ", ") + " := " + strings.Join(rhs, ", ") + ";"
}

// HavocCmd assigns arbitrary values to the named variables.
type HavocCmd struct {
	Vars  []string
	Attrs Attrs
}

func (*HavocCmd) isCmd() {}
func (c *HavocCmd) CmdAttrs() Attrs {
	return c.Attrs
}

func (c *HavocCmd) String() string {
	return "havoc " + prefixAttrs(c.Attrs) + strings.Join(c.Vars, ", ") + ";"
}

// AssertCmd is a proof obligation.
type AssertCmd struct {
	Expr  Expr
	Attrs Attrs
}

func (*AssertCmd) isCmd() {}
func (c *AssertCmd) CmdAttrs() Attrs {
	return c.Attrs
}

func (c *AssertCmd) String() string {
	return "assert " + prefixAttrs(c.Attrs) + c.Expr.String() + ";"
}

// AssumeCmd constrains subsequent executions.
type AssumeCmd struct {
	Expr  Expr
	Attrs Attrs
}

func (*AssumeCmd) isCmd() {}
func (c *AssumeCmd) CmdAttrs() Attrs {
	return c.Attrs
}

func (c *AssumeCmd) String() string {
	return "assume " + prefixAttrs(c.Attrs) + c.Expr.String() + ";"
}

// CallCmd invokes a procedure.
type CallCmd struct {
	Callee string
	Ins    []Expr
	Outs   []string
	Attrs  Attrs
}

func (*CallCmd) isCmd() {}
func (c *CallCmd) CmdAttrs() Attrs {
	return c.Attrs
}

func (c *CallCmd) String() string {
	ins := make([]string, len(c.Ins))
	for i, e := range c.Ins {
		ins[i] = e.String()
	}
	var sb strings.Builder
	sb.WriteString("call ")
	sb.WriteString(prefixAttrs(c.Attrs))
	if len(c.Outs) > 0 {
		sb.WriteString(strings.Join(c.Outs, ", "))
		sb.WriteString(" := ")
	}
	sb.WriteString(c.Callee)
	sb.WriteString("(")
	sb.WriteString(strings.Join(ins, ", "))
	sb.WriteString(");")
	return sb.String()
}

// TransferCmd terminates a basic block.
type TransferCmd interface {
	isTransfer()
	String() string
}

// GotoCmd jumps nondeterministically to one of the target blocks.
type GotoCmd struct {
	Targets []string
}

func (*GotoCmd) isTransfer() {}
func (c *GotoCmd) String() string {
	return "goto " + strings.Join(c.Targets, ", ") + ";"
}

// ReturnCmd leaves the implementation.
type ReturnCmd struct{}

func (*ReturnCmd) isTransfer() {}
func (*ReturnCmd) String() string {
	return "return;"
}

// Block is a labelled basic block.
type Block struct {
	Label    string
	Cmds     []Cmd
	Transfer TransferCmd
}

func prefixAttrs(as Attrs) string {
	if len(as) == 0 {
		return ""
	}
	return as.String() + " "
}

// CloneCmd produces a command sharing no mutable structure with the
// original. Expressions are immutable and may be shared.
func CloneCmd(c Cmd) Cmd {
	switch x := c.(type) {
	case *AssignCmd:
		return &AssignCmd{Lhs: append([]Expr(nil), x.Lhs...), Rhs: append([]Expr(nil), x.Rhs...), Attrs: append(Attrs(nil), x.Attrs...)}
	case *HavocCmd:
		return &HavocCmd{Vars: append([]string(nil), x.Vars...), Attrs: append(Attrs(nil), x.Attrs...)}
	case *AssertCmd:
		return &AssertCmd{Expr: x.Expr, Attrs: append(Attrs(nil), x.Attrs...)}
	case *AssumeCmd:
		return &AssumeCmd{Expr: x.Expr, Attrs: append(Attrs(nil), x.Attrs...)}
	case *CallCmd:
		return &CallCmd{Callee: x.Callee, Ins: append([]Expr(nil), x.Ins...), Outs: append([]string(nil), x.Outs...), Attrs: append(Attrs(nil), x.Attrs...)}
	default:
		panic("bpl: unknown command kind in CloneCmd")
	}
}

// LhsRoot returns the variable name ultimately assigned by an
// assignment left-hand side (an identifier or nested map selects).
func LhsRoot(e Expr) string {
	for {
		switch x := e.(type) {
		case IdentExpr:
			return x.Name
		case SelectExpr:
			e = x.Map
		default:
			panic("bpl: malformed assignment left-hand side")
		}
	}
}
