// Package parse reads the textual intermediate form back into the in-memory
// program representation, plus the solver model artifact consumed by
// counterexample diagnosis.
package parse

import "fmt"

// TokenType identifies the lexical class of a token.
type TokenType int

const (
	TokenEOF TokenType = iota
	TokenIdent
	TokenNumber
	TokenBVLit  // 5bv32
	TokenString // "..."
	TokenOp     // + - * / % == != < <= > >= && || ==> <==> !
	TokenLParen
	TokenRParen
	TokenLBracket
	TokenRBracket
	TokenLBrace
	TokenRBrace
	TokenAttrStart // {:
	TokenComma
	TokenSemicolon
	TokenColon
	TokenColonColon
	TokenAssign // :=
)

func (t TokenType) String() string {
	switch t {
	case TokenEOF:
		return "end of input"
	case TokenIdent:
		return "identifier"
	case TokenNumber:
		return "number"
	case TokenBVLit:
		return "bit-vector literal"
	case TokenString:
		return "string"
	case TokenOp:
		return "operator"
	case TokenLParen:
		return "'('"
	case TokenRParen:
		return "')'"
	case TokenLBracket:
		return "'['"
	case TokenRBracket:
		return "']'"
	case TokenLBrace:
		return "'{'"
	case TokenRBrace:
		return "'}'"
	case TokenAttrStart:
		return "'{:'"
	case TokenComma:
		return "','"
	case TokenSemicolon:
		return "';'"
	case TokenColon:
		return "':'"
	case TokenColonColon:
		return "'::'"
	case TokenAssign:
		return "':='"
	default:
		return fmt.Sprintf("token(%d)", int(t))
	}
}

// Token is one lexical unit with its source position.
type Token struct {
	Type  TokenType
	Value string
	Line  int
	Col   int
}
