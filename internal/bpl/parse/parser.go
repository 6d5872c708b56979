package parse

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/gpuverify/kernelcheck/internal/bpl"
)

// Parser is a recursive-descent parser over the token stream. It
// accepts exactly the language the printer emits, plus the usual
// whitespace and comment freedom.
type Parser struct {
	tokens []Token
	pos    int
}

// Parse reads a whole program.
func Parse(input string) (*bpl.Program, error) {
	tokens, err := NewLexer(input).Tokenize()
	if err != nil {
		return nil, err
	}
	p := &Parser{tokens: tokens}
	prog := &bpl.Program{}
	for p.peek().Type != TokenEOF {
		d, err := p.parseDecl()
		if err != nil {
			return nil, err
		}
		prog.Add(d)
	}
	return prog, nil
}

// ParseExpr reads a single expression, requiring the input to be fully
// consumed.
func ParseExpr(input string) (bpl.Expr, error) {
	tokens, err := NewLexer(input).Tokenize()
	if err != nil {
		return nil, err
	}
	p := &Parser{tokens: tokens}
	e, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	if p.peek().Type != TokenEOF {
		return nil, p.errorf("trailing input after expression")
	}
	return e, nil
}

func (p *Parser) peek() Token {
	return p.tokens[p.pos]
}

func (p *Parser) next() Token {
	t := p.tokens[p.pos]
	if t.Type != TokenEOF {
		p.pos++
	}
	return t
}

func (p *Parser) accept(t TokenType) (Token, bool) {
	if p.peek().Type == t {
		return p.next(), true
	}
	return Token{}, false
}

func (p *Parser) acceptKeyword(kw string) bool {
	if p.peek().Type == TokenIdent && p.peek().Value == kw {
		p.next()
		return true
	}
	return false
}

func (p *Parser) expect(t TokenType) (Token, error) {
	if p.peek().Type != t {
		return Token{}, p.errorf("expected %s, found %s %q", t, p.peek().Type, p.peek().Value)
	}
	return p.next(), nil
}

func (p *Parser) expectKeyword(kw string) error {
	if !p.acceptKeyword(kw) {
		return p.errorf("expected %q, found %q", kw, p.peek().Value)
	}
	return nil
}

func (p *Parser) errorf(format string, args ...any) error {
	t := p.peek()
	return fmt.Errorf("line %d:%d: %s", t.Line, t.Col, fmt.Sprintf(format, args...))
}

// --- declarations ---

func (p *Parser) parseDecl() (bpl.Decl, error) {
	t := p.peek()
	if t.Type != TokenIdent {
		return nil, p.errorf("expected declaration, found %s %q", t.Type, t.Value)
	}
	switch t.Value {
	case "var":
		p.next()
		v, err := p.parseVariable()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(TokenSemicolon); err != nil {
			return nil, err
		}
		return &bpl.GlobalVar{Var: v}, nil
	case "const":
		p.next()
		v, err := p.parseVariable()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(TokenSemicolon); err != nil {
			return nil, err
		}
		return &bpl.ConstDecl{Var: v}, nil
	case "axiom":
		p.next()
		e, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(TokenSemicolon); err != nil {
			return nil, err
		}
		return &bpl.AxiomDecl{Expr: e}, nil
	case "function":
		return p.parseFunction()
	case "procedure":
		return p.parseProcedure()
	case "implementation":
		return p.parseImplementation()
	default:
		return nil, p.errorf("unknown declaration %q", t.Value)
	}
}

func (p *Parser) parseFunction() (bpl.Decl, error) {
	p.next()
	attrs, err := p.parseAttrs()
	if err != nil {
		return nil, err
	}
	name, err := p.expect(TokenIdent)
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(TokenLParen); err != nil {
		return nil, err
	}
	var params []bpl.Type
	for p.peek().Type != TokenRParen {
		if len(params) > 0 {
			if _, err := p.expect(TokenComma); err != nil {
				return nil, err
			}
		}
		t, err := p.parseType()
		if err != nil {
			return nil, err
		}
		params = append(params, t)
	}
	p.next()
	if _, err := p.expect(TokenColon); err != nil {
		return nil, err
	}
	result, err := p.parseType()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(TokenSemicolon); err != nil {
		return nil, err
	}
	return &bpl.FuncDecl{Name: name.Value, Params: params, Result: result, Attrs: attrs}, nil
}

func (p *Parser) parseSignature() (string, bpl.Attrs, []bpl.Variable, []bpl.Variable, error) {
	attrs, err := p.parseAttrs()
	if err != nil {
		return "", nil, nil, nil, err
	}
	name, err := p.expect(TokenIdent)
	if err != nil {
		return "", nil, nil, nil, err
	}
	ins, err := p.parseVarGroup()
	if err != nil {
		return "", nil, nil, nil, err
	}
	var outs []bpl.Variable
	if p.acceptKeyword("returns") {
		outs, err = p.parseVarGroup()
		if err != nil {
			return "", nil, nil, nil, err
		}
	}
	return name.Value, attrs, ins, outs, nil
}

func (p *Parser) parseVarGroup() ([]bpl.Variable, error) {
	if _, err := p.expect(TokenLParen); err != nil {
		return nil, err
	}
	var vars []bpl.Variable
	for p.peek().Type != TokenRParen {
		if len(vars) > 0 {
			if _, err := p.expect(TokenComma); err != nil {
				return nil, err
			}
		}
		v, err := p.parseVariable()
		if err != nil {
			return nil, err
		}
		vars = append(vars, v)
	}
	p.next()
	return vars, nil
}

func (p *Parser) parseProcedure() (bpl.Decl, error) {
	p.next()
	name, attrs, ins, outs, err := p.parseSignature()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(TokenSemicolon); err != nil {
		return nil, err
	}
	proc := &bpl.Procedure{Name: name, Attrs: attrs, InParams: ins, OutParams: outs}
	for {
		switch {
		case p.acceptKeyword("requires"):
			s, err := p.parseSpec()
			if err != nil {
				return nil, err
			}
			proc.Requires = append(proc.Requires, s)
		case p.acceptKeyword("ensures"):
			s, err := p.parseSpec()
			if err != nil {
				return nil, err
			}
			proc.Ensures = append(proc.Ensures, s)
		case p.acceptKeyword("modifies"):
			for {
				id, err := p.expect(TokenIdent)
				if err != nil {
					return nil, err
				}
				proc.Modifies = append(proc.Modifies, id.Value)
				if _, ok := p.accept(TokenComma); !ok {
					break
				}
			}
			if _, err := p.expect(TokenSemicolon); err != nil {
				return nil, err
			}
		default:
			return proc, nil
		}
	}
}

func (p *Parser) parseSpec() (bpl.Spec, error) {
	attrs, err := p.parseAttrs()
	if err != nil {
		return bpl.Spec{}, err
	}
	e, err := p.parseExpr()
	if err != nil {
		return bpl.Spec{}, err
	}
	if _, err := p.expect(TokenSemicolon); err != nil {
		return bpl.Spec{}, err
	}
	return bpl.Spec{Expr: e, Attrs: attrs}, nil
}

func (p *Parser) parseImplementation() (bpl.Decl, error) {
	p.next()
	name, attrs, ins, outs, err := p.parseSignature()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(TokenLBrace); err != nil {
		return nil, err
	}
	impl := &bpl.Implementation{Name: name, Attrs: attrs, InParams: ins, OutParams: outs}
	for p.acceptKeyword("var") {
		v, err := p.parseVariable()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(TokenSemicolon); err != nil {
			return nil, err
		}
		impl.Locals = append(impl.Locals, v)
	}
	for p.peek().Type != TokenRBrace {
		b, err := p.parseBlock()
		if err != nil {
			return nil, err
		}
		impl.Blocks = append(impl.Blocks, b)
	}
	p.next()
	return impl, nil
}

func (p *Parser) parseBlock() (*bpl.Block, error) {
	label, err := p.expect(TokenIdent)
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(TokenColon); err != nil {
		return nil, err
	}
	b := &bpl.Block{Label: label.Value}
	for {
		t := p.peek()
		if t.Type == TokenRBrace {
			return b, nil
		}
		if t.Type == TokenIdent {
			switch t.Value {
			case "goto":
				p.next()
				g := &bpl.GotoCmd{}
				for {
					id, err := p.expect(TokenIdent)
					if err != nil {
						return nil, err
					}
					g.Targets = append(g.Targets, id.Value)
					if _, ok := p.accept(TokenComma); !ok {
						break
					}
				}
				if _, err := p.expect(TokenSemicolon); err != nil {
					return nil, err
				}
				b.Transfer = g
				return b, nil
			case "return":
				p.next()
				if _, err := p.expect(TokenSemicolon); err != nil {
					return nil, err
				}
				b.Transfer = &bpl.ReturnCmd{}
				return b, nil
			}
			// A label for the next block ends this one.
			if p.tokens[p.pos+1].Type == TokenColon {
				return b, nil
			}
		}
		c, err := p.parseCmd()
		if err != nil {
			return nil, err
		}
		b.Cmds = append(b.Cmds, c)
	}
}

func (p *Parser) parseCmd() (bpl.Cmd, error) {
	t := p.peek()
	if t.Type == TokenIdent {
		switch t.Value {
		case "assert":
			p.next()
			attrs, err := p.parseAttrs()
			if err != nil {
				return nil, err
			}
			e, err := p.parseExpr()
			if err != nil {
				return nil, err
			}
			if _, err := p.expect(TokenSemicolon); err != nil {
				return nil, err
			}
			return &bpl.AssertCmd{Expr: e, Attrs: attrs}, nil
		case "assume":
			p.next()
			attrs, err := p.parseAttrs()
			if err != nil {
				return nil, err
			}
			e, err := p.parseExpr()
			if err != nil {
				return nil, err
			}
			if _, err := p.expect(TokenSemicolon); err != nil {
				return nil, err
			}
			return &bpl.AssumeCmd{Expr: e, Attrs: attrs}, nil
		case "havoc":
			p.next()
			attrs, err := p.parseAttrs()
			if err != nil {
				return nil, err
			}
			h := &bpl.HavocCmd{Attrs: attrs}
			for {
				id, err := p.expect(TokenIdent)
				if err != nil {
					return nil, err
				}
				h.Vars = append(h.Vars, id.Value)
				if _, ok := p.accept(TokenComma); !ok {
					break
				}
			}
			if _, err := p.expect(TokenSemicolon); err != nil {
				return nil, err
			}
			return h, nil
		case "call":
			return p.parseCall()
		}
	}
	return p.parseAssign()
}

func (p *Parser) parseCall() (bpl.Cmd, error) {
	p.next()
	attrs, err := p.parseAttrs()
	if err != nil {
		return nil, err
	}
	call := &bpl.CallCmd{Attrs: attrs}
	// Outs are identifiers followed by :=; otherwise the first
	// identifier names the callee.
	names := []string{}
	for {
		id, err := p.expect(TokenIdent)
		if err != nil {
			return nil, err
		}
		names = append(names, id.Value)
		if _, ok := p.accept(TokenComma); !ok {
			break
		}
	}
	if _, ok := p.accept(TokenAssign); ok {
		call.Outs = names
		callee, err := p.expect(TokenIdent)
		if err != nil {
			return nil, err
		}
		call.Callee = callee.Value
	} else {
		if len(names) != 1 {
			return nil, p.errorf("malformed call command")
		}
		call.Callee = names[0]
	}
	if _, err := p.expect(TokenLParen); err != nil {
		return nil, err
	}
	for p.peek().Type != TokenRParen {
		if len(call.Ins) > 0 {
			if _, err := p.expect(TokenComma); err != nil {
				return nil, err
			}
		}
		e, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		call.Ins = append(call.Ins, e)
	}
	p.next()
	if _, err := p.expect(TokenSemicolon); err != nil {
		return nil, err
	}
	return call, nil
}

func (p *Parser) parseAssign() (bpl.Cmd, error) {
	attrs, err := p.parseAttrs()
	if err != nil {
		return nil, err
	}
	a := &bpl.AssignCmd{Attrs: attrs}
	for {
		lhs, err := p.parsePostfix()
		if err != nil {
			return nil, err
		}
		a.Lhs = append(a.Lhs, lhs)
		if _, ok := p.accept(TokenComma); !ok {
			break
		}
	}
	if _, err := p.expect(TokenAssign); err != nil {
		return nil, err
	}
	for {
		rhs, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		a.Rhs = append(a.Rhs, rhs)
		if _, ok := p.accept(TokenComma); !ok {
			break
		}
	}
	if _, err := p.expect(TokenSemicolon); err != nil {
		return nil, err
	}
	if len(a.Lhs) != len(a.Rhs) {
		return nil, p.errorf("assignment arity mismatch: %d targets, %d values", len(a.Lhs), len(a.Rhs))
	}
	return a, nil
}

// --- attributes, variables, types ---

func (p *Parser) parseAttrs() (bpl.Attrs, error) {
	var attrs bpl.Attrs
	for {
		if _, ok := p.accept(TokenAttrStart); !ok {
			return attrs, nil
		}
		key, err := p.expect(TokenIdent)
		if err != nil {
			return nil, err
		}
		a := bpl.Attr{Key: key.Value}
		for p.peek().Type != TokenRBrace {
			if len(a.Params) > 0 {
				if _, err := p.expect(TokenComma); err != nil {
					return nil, err
				}
			}
			param, err := p.parseAttrParam()
			if err != nil {
				return nil, err
			}
			a.Params = append(a.Params, param)
		}
		p.next()
		attrs = append(attrs, a)
	}
}

func (p *Parser) parseAttrParam() (any, error) {
	switch p.peek().Type {
	case TokenString:
		t := p.next()
		s, err := strconv.Unquote(t.Value)
		if err != nil {
			return nil, fmt.Errorf("line %d:%d: bad string literal %s", t.Line, t.Col, t.Value)
		}
		return s, nil
	case TokenNumber:
		t := p.next()
		n, err := strconv.Atoi(t.Value)
		if err != nil {
			return nil, fmt.Errorf("line %d:%d: bad numeral %s", t.Line, t.Col, t.Value)
		}
		return n, nil
	default:
		return p.parseExpr()
	}
}

func (p *Parser) parseVariable() (bpl.Variable, error) {
	attrs, err := p.parseAttrs()
	if err != nil {
		return bpl.Variable{}, err
	}
	name, err := p.expect(TokenIdent)
	if err != nil {
		return bpl.Variable{}, err
	}
	if _, err := p.expect(TokenColon); err != nil {
		return bpl.Variable{}, err
	}
	typ, err := p.parseType()
	if err != nil {
		return bpl.Variable{}, err
	}
	return bpl.Variable{Name: name.Value, Type: typ, Attrs: attrs}, nil
}

func (p *Parser) parseType() (bpl.Type, error) {
	if _, ok := p.accept(TokenLBracket); ok {
		index, err := p.parseType()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(TokenRBracket); err != nil {
			return nil, err
		}
		elem, err := p.parseType()
		if err != nil {
			return nil, err
		}
		return bpl.Map(index, elem), nil
	}
	t, err := p.expect(TokenIdent)
	if err != nil {
		return nil, err
	}
	if t.Value == "bool" {
		return bpl.Bool(), nil
	}
	if strings.HasPrefix(t.Value, "bv") {
		if w, err := strconv.Atoi(t.Value[2:]); err == nil && w > 0 {
			return bpl.BV(w), nil
		}
	}
	return nil, fmt.Errorf("line %d:%d: unknown type %q", t.Line, t.Col, t.Value)
}

// --- expressions ---

// binPrec orders binary operators from loosest to tightest. Implication
// is right-associative; everything else associates left.
var binPrec = map[string]int{
	"<==>": 1,
	"==>":  2,
	"||":   3,
	"&&":   4,
	"==":   5, "!=": 5, "<": 5, "<=": 5, ">": 5, ">=": 5,
	"+": 6, "-": 6,
	"*": 7, "/": 7, "%": 7,
}

var binOps = map[string]bpl.BinaryOp{
	"<==>": bpl.OpIff,
	"==>":  bpl.OpImp,
	"||":   bpl.OpOr,
	"&&":   bpl.OpAnd,
	"==":   bpl.OpEq,
	"!=":   bpl.OpNeq,
	"<":    bpl.OpLt,
	"<=":   bpl.OpLte,
	">":    bpl.OpGt,
	">=":   bpl.OpGte,
	"+":    bpl.OpAdd,
	"-":    bpl.OpSub,
	"*":    bpl.OpMul,
	"/":    bpl.OpDiv,
	"%":    bpl.OpMod,
}

func (p *Parser) parseExpr() (bpl.Expr, error) {
	return p.parseBinary(1)
}

func (p *Parser) parseBinary(minPrec int) (bpl.Expr, error) {
	left, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	for {
		t := p.peek()
		if t.Type != TokenOp {
			return left, nil
		}
		prec, ok := binPrec[t.Value]
		if !ok || prec < minPrec {
			return left, nil
		}
		p.next()
		nextMin := prec + 1
		if t.Value == "==>" {
			nextMin = prec
		}
		right, err := p.parseBinary(nextMin)
		if err != nil {
			return nil, err
		}
		left = bpl.Binary(binOps[t.Value], left, right)
	}
}

func (p *Parser) parseUnary() (bpl.Expr, error) {
	t := p.peek()
	if t.Type == TokenOp && (t.Value == "!" || t.Value == "-") {
		p.next()
		operand, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		op := bpl.OpNot
		if t.Value == "-" {
			op = bpl.OpNeg
		}
		return bpl.UnaryExpr{Op: op, Operand: operand}, nil
	}
	return p.parsePostfix()
}

// parsePostfix parses a primary expression followed by any number of
// map selects m[i] and functional updates m[i := v].
func (p *Parser) parsePostfix() (bpl.Expr, error) {
	e, err := p.parsePrimary()
	if err != nil {
		return nil, err
	}
	for {
		if _, ok := p.accept(TokenLBracket); !ok {
			return e, nil
		}
		index, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		if _, ok := p.accept(TokenAssign); ok {
			value, err := p.parseExpr()
			if err != nil {
				return nil, err
			}
			if _, err := p.expect(TokenRBracket); err != nil {
				return nil, err
			}
			e = bpl.Upd(e, index, value)
			continue
		}
		if _, err := p.expect(TokenRBracket); err != nil {
			return nil, err
		}
		e = bpl.Sel(e, index)
	}
}

func (p *Parser) parsePrimary() (bpl.Expr, error) {
	t := p.peek()
	switch t.Type {
	case TokenBVLit:
		p.next()
		i := strings.Index(t.Value, "bv")
		val, err := strconv.ParseUint(t.Value[:i], 10, 64)
		if err != nil {
			return nil, fmt.Errorf("line %d:%d: bad bit-vector numeral %s", t.Line, t.Col, t.Value)
		}
		width, err := strconv.Atoi(t.Value[i+2:])
		if err != nil {
			return nil, fmt.Errorf("line %d:%d: bad bit-vector width in %s", t.Line, t.Col, t.Value)
		}
		return bpl.BVNum(val, width), nil
	case TokenIdent:
		switch t.Value {
		case "true":
			p.next()
			return bpl.True(), nil
		case "false":
			p.next()
			return bpl.False(), nil
		}
		p.next()
		if _, ok := p.accept(TokenLParen); ok {
			call := bpl.CallExpr{Func: t.Value}
			for p.peek().Type != TokenRParen {
				if len(call.Args) > 0 {
					if _, err := p.expect(TokenComma); err != nil {
						return nil, err
					}
				}
				arg, err := p.parseExpr()
				if err != nil {
					return nil, err
				}
				call.Args = append(call.Args, arg)
			}
			p.next()
			return call, nil
		}
		return bpl.Id(t.Value), nil
	case TokenLParen:
		p.next()
		if p.acceptKeyword("if") {
			return p.parseIte()
		}
		if p.acceptKeyword("forall") {
			return p.parseForall()
		}
		e, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(TokenRParen); err != nil {
			return nil, err
		}
		return e, nil
	default:
		return nil, p.errorf("expected expression, found %s %q", t.Type, t.Value)
	}
}

func (p *Parser) parseIte() (bpl.Expr, error) {
	cond, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	if err := p.expectKeyword("then"); err != nil {
		return nil, err
	}
	then, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	if err := p.expectKeyword("else"); err != nil {
		return nil, err
	}
	els, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(TokenRParen); err != nil {
		return nil, err
	}
	return bpl.Ite(cond, then, els), nil
}

func (p *Parser) parseForall() (bpl.Expr, error) {
	var vars []bpl.Variable
	for {
		v, err := p.parseVariable()
		if err != nil {
			return nil, err
		}
		vars = append(vars, v)
		if _, ok := p.accept(TokenComma); !ok {
			break
		}
	}
	if _, err := p.expect(TokenColonColon); err != nil {
		return nil, err
	}
	body, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(TokenRParen); err != nil {
		return nil, err
	}
	return bpl.Forall(vars, body), nil
}
