package bpl

import (
	"fmt"
	"io"
	"strings"
)

// Fprint renders the program in its textual form, suitable for
// submission to the downstream verification-condition generator.
func (p *Program) Fprint(w io.Writer) error {
	for i, d := range p.Decls {
		if i > 0 {
			if _, err := io.WriteString(w, "\n"); err != nil {
				return err
			}
		}
		if err := writeDecl(w, d); err != nil {
			return err
		}
	}
	return nil
}

func (p *Program) String() string {
	var sb strings.Builder
	_ = p.Fprint(&sb)
	return sb.String()
}

func writeDecl(w io.Writer, d Decl) error {
	switch x := d.(type) {
	case *GlobalVar:
		_, err := fmt.Fprintf(w, "var %s;\n", x.Var.String())
		return err
	case *ConstDecl:
		_, err := fmt.Fprintf(w, "const %s;\n", x.Var.String())
		return err
	case *AxiomDecl:
		_, err := fmt.Fprintf(w, "axiom %s;\n", x.Expr.String())
		return err
	case *FuncDecl:
		params := make([]string, len(x.Params))
		for i, t := range x.Params {
			params[i] = t.String()
		}
		attrs := ""
		if len(x.Attrs) > 0 {
			attrs = x.Attrs.String() + " "
		}
		_, err := fmt.Fprintf(w, "function %s%s(%s): %s;\n", attrs, x.Name, strings.Join(params, ", "), x.Result.String())
		return err
	case *Procedure:
		return writeProcedure(w, x)
	case *Implementation:
		return writeImplementation(w, x)
	default:
		panic(fmt.Sprintf("bpl: unknown declaration %T", d))
	}
}

func writeSignature(w io.Writer, name string, attrs Attrs, ins, outs []Variable) error {
	a := ""
	if len(attrs) > 0 {
		a = attrs.String() + " "
	}
	if _, err := fmt.Fprintf(w, "%s%s(%s)", a, name, varList(ins)); err != nil {
		return err
	}
	if len(outs) > 0 {
		if _, err := fmt.Fprintf(w, " returns (%s)", varList(outs)); err != nil {
			return err
		}
	}
	return nil
}

func varList(vars []Variable) string {
	parts := make([]string, len(vars))
	for i, v := range vars {
		parts[i] = v.String()
	}
	return strings.Join(parts, ", ")
}

func writeProcedure(w io.Writer, proc *Procedure) error {
	if _, err := io.WriteString(w, "procedure "); err != nil {
		return err
	}
	if err := writeSignature(w, proc.Name, proc.Attrs, proc.InParams, proc.OutParams); err != nil {
		return err
	}
	if _, err := io.WriteString(w, ";\n"); err != nil {
		return err
	}
	for _, r := range proc.Requires {
		if err := writeSpec(w, "requires", r); err != nil {
			return err
		}
	}
	for _, e := range proc.Ensures {
		if err := writeSpec(w, "ensures", e); err != nil {
			return err
		}
	}
	if len(proc.Modifies) > 0 {
		if _, err := fmt.Fprintf(w, "  modifies %s;\n", strings.Join(proc.Modifies, ", ")); err != nil {
			return err
		}
	}
	return nil
}

func writeSpec(w io.Writer, kind string, s Spec) error {
	attrs := ""
	if len(s.Attrs) > 0 {
		attrs = s.Attrs.String() + " "
	}
	_, err := fmt.Fprintf(w, "  %s %s%s;\n", kind, attrs, s.Expr.String())
	return err
}

func writeImplementation(w io.Writer, impl *Implementation) error {
	if _, err := io.WriteString(w, "implementation "); err != nil {
		return err
	}
	if err := writeSignature(w, impl.Name, impl.Attrs, impl.InParams, impl.OutParams); err != nil {
		return err
	}
	if _, err := io.WriteString(w, "\n{\n"); err != nil {
		return err
	}
	for _, l := range impl.Locals {
		if _, err := fmt.Fprintf(w, "  var %s;\n", l.String()); err != nil {
			return err
		}
	}
	for i, b := range impl.Blocks {
		if len(impl.Locals) > 0 || i > 0 {
			if _, err := io.WriteString(w, "\n"); err != nil {
				return err
			}
		}
		if _, err := fmt.Fprintf(w, "  %s:\n", b.Label); err != nil {
			return err
		}
		for _, c := range b.Cmds {
			if _, err := fmt.Fprintf(w, "    %s\n", c.String()); err != nil {
				return err
			}
		}
		if b.Transfer != nil {
			if _, err := fmt.Fprintf(w, "    %s\n", b.Transfer.String()); err != nil {
				return err
			}
		}
	}
	_, err := io.WriteString(w, "}\n")
	return err
}
