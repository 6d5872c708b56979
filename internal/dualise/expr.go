package dualise

import (
	"github.com/gpuverify/kernelcheck/internal/bpl"
)

// RewriteExpr rewrites an expression for one of the two symbolic
// threads: duplicated variables pick their tagged copy and
// thread-identity functions become thread-indexed. Other-thread
// functions are deliberately left alone; the asymmetry scanner, not the
// renamer, decides what happens to expressions containing them.
func (pc *procContext) RewriteExpr(e bpl.Expr, thread int) bpl.Expr {
	return bpl.RewriteExpr(e, func(n bpl.Expr) (bpl.Expr, bool) {
		switch x := n.(type) {
		case bpl.IdentExpr:
			if pc.dup[x.Name] {
				return bpl.IdentExpr{Name: bpl.ThreadName(x.Name, thread)}, true
			}
		case bpl.CallExpr:
			if bpl.IsThreadIdentityFunc(x.Func) {
				return bpl.CallExpr{Func: bpl.ThreadName(x.Func, thread), Args: x.Args}, true
			}
		}
		return nil, false
	})
}

// rewriteName renames a bare variable reference for a thread.
func (pc *procContext) rewriteName(name string, thread int) string {
	if pc.dup[name] {
		return bpl.ThreadName(name, thread)
	}
	return name
}

// exprUniform reports whether the expression needs no second copy.
func (pc *procContext) exprUniform(e bpl.Expr) bool {
	return pc.d.table.ExprIsUniform(pc.proc, e)
}
