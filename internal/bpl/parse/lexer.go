package parse

import "fmt"

// Lexer scans the textual program form and produces tokens.
type Lexer struct {
	input string
	pos   int
	line  int
	col   int
}

// NewLexer returns a lexer over the given input.
func NewLexer(input string) *Lexer {
	return &Lexer{input: input, line: 1, col: 1}
}

// Tokenize scans the whole input. Lexical errors carry the offending
// line and column.
func (l *Lexer) Tokenize() ([]Token, error) {
	var tokens []Token
	for l.pos < len(l.input) {
		c := l.input[l.pos]
		switch {
		case c == ' ' || c == '\t' || c == '\r' || c == '\n':
			l.advance()
		case c == '/' && l.peekAt(1) == '/':
			l.skipLineComment()
		case isIdentStart(c):
			tokens = append(tokens, l.lexIdent())
		case isDigit(c):
			tokens = append(tokens, l.lexNumber())
		case c == '"':
			tok, err := l.lexString()
			if err != nil {
				return nil, err
			}
			tokens = append(tokens, tok)
		default:
			tok, err := l.lexPunct()
			if err != nil {
				return nil, err
			}
			tokens = append(tokens, tok)
		}
	}
	tokens = append(tokens, Token{Type: TokenEOF, Line: l.line, Col: l.col})
	return tokens, nil
}

func (l *Lexer) advance() {
	if l.input[l.pos] == '\n' {
		l.line++
		l.col = 1
	} else {
		l.col++
	}
	l.pos++
}

func (l *Lexer) peekAt(off int) byte {
	if l.pos+off >= len(l.input) {
		return 0
	}
	return l.input[l.pos+off]
}

func (l *Lexer) skipLineComment() {
	for l.pos < len(l.input) && l.input[l.pos] != '\n' {
		l.advance()
	}
}

func (l *Lexer) token(t TokenType, value string, line, col int) Token {
	return Token{Type: t, Value: value, Line: line, Col: col}
}

func (l *Lexer) lexIdent() Token {
	line, col := l.line, l.col
	start := l.pos
	for l.pos < len(l.input) && isIdentPart(l.input[l.pos]) {
		l.advance()
	}
	return l.token(TokenIdent, l.input[start:l.pos], line, col)
}

// lexNumber reads a decimal numeral, continuing into a bit-vector
// literal when a bvN suffix follows immediately.
func (l *Lexer) lexNumber() Token {
	line, col := l.line, l.col
	start := l.pos
	for l.pos < len(l.input) && isDigit(l.input[l.pos]) {
		l.advance()
	}
	if l.peekAt(0) == 'b' && l.peekAt(1) == 'v' && isDigit(l.peekAt(2)) {
		l.advance()
		l.advance()
		for l.pos < len(l.input) && isDigit(l.input[l.pos]) {
			l.advance()
		}
		return l.token(TokenBVLit, l.input[start:l.pos], line, col)
	}
	return l.token(TokenNumber, l.input[start:l.pos], line, col)
}

func (l *Lexer) lexString() (Token, error) {
	line, col := l.line, l.col
	start := l.pos
	l.advance()
	for l.pos < len(l.input) {
		switch l.input[l.pos] {
		case '\\':
			l.advance()
			if l.pos < len(l.input) {
				l.advance()
			}
		case '"':
			l.advance()
			return l.token(TokenString, l.input[start:l.pos], line, col), nil
		case '\n':
			return Token{}, fmt.Errorf("line %d:%d: newline in string literal", line, col)
		default:
			l.advance()
		}
	}
	return Token{}, fmt.Errorf("line %d:%d: unterminated string literal", line, col)
}

// punct maps punctuation spellings to token types, longest spellings
// first so that multi-character operators win over their prefixes.
var punct = []struct {
	text string
	typ  TokenType
}{
	{"<==>", TokenOp},
	{"==>", TokenOp},
	{"::", TokenColonColon},
	{":=", TokenAssign},
	{"{:", TokenAttrStart},
	{"==", TokenOp},
	{"!=", TokenOp},
	{"<=", TokenOp},
	{">=", TokenOp},
	{"&&", TokenOp},
	{"||", TokenOp},
	{"(", TokenLParen},
	{")", TokenRParen},
	{"[", TokenLBracket},
	{"]", TokenRBracket},
	{"{", TokenLBrace},
	{"}", TokenRBrace},
	{",", TokenComma},
	{";", TokenSemicolon},
	{":", TokenColon},
	{"<", TokenOp},
	{">", TokenOp},
	{"!", TokenOp},
	{"+", TokenOp},
	{"-", TokenOp},
	{"*", TokenOp},
	{"/", TokenOp},
	{"%", TokenOp},
}

func (l *Lexer) lexPunct() (Token, error) {
	line, col := l.line, l.col
	for _, p := range punct {
		if l.pos+len(p.text) <= len(l.input) && l.input[l.pos:l.pos+len(p.text)] == p.text {
			for range p.text {
				l.advance()
			}
			return l.token(p.typ, p.text, line, col), nil
		}
	}
	return Token{}, fmt.Errorf("line %d:%d: unexpected character %q", line, col, l.input[l.pos])
}

func isIdentStart(c byte) bool {
	return c == '_' || c == '$' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isIdentPart(c byte) bool {
	return isIdentStart(c) || isDigit(c) || c == '.'
}

func isDigit(c byte) bool {
	return c >= '0' && c <= '9'
}
