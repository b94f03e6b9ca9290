package compiler

import (
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"
)

// ---------------------------------------------------------------------------
// Lexer
// ---------------------------------------------------------------------------

// Lexer tokenizes slate source code.
type Lexer struct {
	file    string
	input   string
	pos     int  // current position in input
	readPos int  // reading position (after current char)
	ch      rune // current character
	line    int  // line of ch (1-based)
	col     int  // column of ch (1-based)

	prev TokenType // type of the last token returned
}

// NewLexer creates a new lexer for the given input.
func NewLexer(file, input string) *Lexer {
	l := &Lexer{
		file:  file,
		input: input,
		line:  1,
		col:   0,
	}
	l.readChar()
	return l
}

// readChar reads the next character.
func (l *Lexer) readChar() {
	if l.ch == '\n' {
		l.line++
		l.col = 0
	}
	if l.readPos >= len(l.input) {
		l.ch = 0 // EOF
		l.pos = l.readPos
		l.col++
		return
	}
	r, size := utf8.DecodeRuneInString(l.input[l.readPos:])
	l.ch = r
	l.pos = l.readPos
	l.readPos += size
	l.col++
}

// peekChar returns the next character without consuming it.
func (l *Lexer) peekChar() rune {
	if l.readPos >= len(l.input) {
		return 0
	}
	r, _ := utf8.DecodeRuneInString(l.input[l.readPos:])
	return r
}

// position returns the position of the current character.
func (l *Lexer) position() Position {
	return Position{
		File:   l.file,
		Offset: l.pos,
		Line:   l.line,
		Column: l.col,
	}
}

// NextToken returns the next token.
func (l *Lexer) NextToken() Token {
	tok := l.next()
	l.prev = tok.Type
	return tok
}

// afterOperand reports whether the previous token ends an operand, in which
// case a following '-' is a binary selector rather than a sign.
func (l *Lexer) afterOperand() bool {
	switch l.prev {
	case TokenIdentifier, TokenInteger, TokenDecimal, TokenString,
		TokenRParen, TokenRBracket, TokenRBrace,
		TokenSelf, TokenNil, TokenTrue, TokenFalse, TokenSystem:
		return true
	}
	return false
}

func (l *Lexer) next() Token {
	l.skipWhitespaceAndComments()

	pos := l.position()

	switch {
	case l.ch == 0:
		return Token{Type: TokenEOF, Literal: "", Pos: pos}

	case l.ch == '(':
		l.readChar()
		return Token{Type: TokenLParen, Literal: "(", Pos: pos}

	case l.ch == ')':
		l.readChar()
		return Token{Type: TokenRParen, Literal: ")", Pos: pos}

	case l.ch == '[':
		l.readChar()
		return Token{Type: TokenLBracket, Literal: "[", Pos: pos}

	case l.ch == ']':
		l.readChar()
		return Token{Type: TokenRBracket, Literal: "]", Pos: pos}

	case l.ch == '{':
		l.readChar()
		return Token{Type: TokenLBrace, Literal: "{", Pos: pos}

	case l.ch == '}':
		l.readChar()
		return Token{Type: TokenRBrace, Literal: "}", Pos: pos}

	case l.ch == '^':
		l.readChar()
		return Token{Type: TokenCaret, Literal: "^", Pos: pos}

	case l.ch == '.':
		l.readChar()
		return Token{Type: TokenPeriod, Literal: ".", Pos: pos}

	case l.ch == ':' && l.peekChar() == '=':
		l.readChar()
		l.readChar()
		return Token{Type: TokenAssign, Literal: ":=", Pos: pos}

	case l.ch == '\'':
		return l.readString(pos)

	case isDigit(l.ch):
		return l.readNumber(pos)

	case l.ch == '-' && isDigit(l.peekChar()) && !l.afterOperand():
		return l.readNumber(pos)

	case isLetter(l.ch) || l.ch == '_':
		return l.readIdentifierOrKeyword(pos)

	case IsBinaryChar(l.ch):
		return l.readBinarySelector(pos)

	default:
		ch := l.ch
		l.readChar()
		return Token{Type: TokenError, Literal: fmt.Sprintf("unexpected character: %c", ch), Pos: pos}
	}
}

// skipWhitespaceAndComments skips whitespace, "quoted" comments and
// # line comments.
func (l *Lexer) skipWhitespaceAndComments() {
	for {
		for l.ch == ' ' || l.ch == '\t' || l.ch == '\n' || l.ch == '\r' {
			l.readChar()
		}

		if l.ch == '"' {
			l.readChar()
			for l.ch != '"' && l.ch != 0 {
				l.readChar()
			}
			if l.ch == '"' {
				l.readChar()
			}
			continue
		}

		if l.ch == '#' {
			for l.ch != '\n' && l.ch != 0 {
				l.readChar()
			}
			continue
		}

		break
	}
}

// readString reads a string literal. A doubled quote is an escaped quote.
func (l *Lexer) readString(pos Position) Token {
	l.readChar() // consume opening '

	var sb strings.Builder
	for l.ch != 0 {
		if l.ch == '\'' {
			if l.peekChar() == '\'' {
				sb.WriteRune('\'')
				l.readChar()
				l.readChar()
				continue
			}
			break
		}
		sb.WriteRune(l.ch)
		l.readChar()
	}

	if l.ch != '\'' {
		return Token{Type: TokenError, Literal: "unterminated string", Pos: pos}
	}
	l.readChar() // consume closing '

	return Token{Type: TokenString, Literal: sb.String(), Pos: pos}
}

// readNumber reads an integer or decimal literal.
func (l *Lexer) readNumber(pos Position) Token {
	start := l.pos
	isDecimal := false

	if l.ch == '-' {
		l.readChar()
	}

	for isDigit(l.ch) {
		l.readChar()
	}

	if l.ch == 'r' {
		// Radix notation (16rFF)
		l.readChar()
		for isHexDigit(l.ch) {
			l.readChar()
		}
		return Token{Type: TokenInteger, Literal: l.input[start:l.pos], Pos: pos}
	}

	if l.ch == '.' && isDigit(l.peekChar()) {
		isDecimal = true
		l.readChar() // consume .
		for isDigit(l.ch) {
			l.readChar()
		}
	}

	if l.ch == 'e' || l.ch == 'E' {
		next := l.peekChar()
		if isDigit(next) || next == '-' || next == '+' {
			isDecimal = true
			l.readChar()
			if l.ch == '+' || l.ch == '-' {
				l.readChar()
			}
			for isDigit(l.ch) {
				l.readChar()
			}
		}
	}

	if isDecimal {
		return Token{Type: TokenDecimal, Literal: l.input[start:l.pos], Pos: pos}
	}
	return Token{Type: TokenInteger, Literal: l.input[start:l.pos], Pos: pos}
}

// readIdentifierOrKeyword reads an identifier or a keyword part (foo:).
func (l *Lexer) readIdentifierOrKeyword(pos Position) Token {
	start := l.pos

	for isLetter(l.ch) || isDigit(l.ch) || l.ch == '_' {
		l.readChar()
	}

	literal := l.input[start:l.pos]

	if l.ch == ':' && l.peekChar() != '=' {
		l.readChar() // consume :
		return Token{Type: TokenKeyword, Literal: literal + ":", Pos: pos}
	}

	if tokType, ok := reservedWords[literal]; ok {
		return Token{Type: tokType, Literal: literal, Pos: pos}
	}

	return Token{Type: TokenIdentifier, Literal: literal, Pos: pos}
}

// readBinarySelector reads a binary selector.
func (l *Lexer) readBinarySelector(pos Position) Token {
	start := l.pos

	for IsBinaryChar(l.ch) {
		// A comma always stands alone so that a , -1 still splits.
		if l.ch == ',' && l.pos > start {
			break
		}
		l.readChar()
		if l.input[start:l.pos] == "," {
			break
		}
	}

	return Token{Type: TokenBinarySelector, Literal: l.input[start:l.pos], Pos: pos}
}

// Helper functions

func isLetter(r rune) bool {
	return unicode.IsLetter(r)
}

func isDigit(r rune) bool {
	return r >= '0' && r <= '9'
}

func isHexDigit(r rune) bool {
	return isDigit(r) || (r >= 'a' && r <= 'f') || (r >= 'A' && r <= 'F')
}

// Tokenize returns all tokens from the input.
func Tokenize(file, input string) []Token {
	l := NewLexer(file, input)
	var tokens []Token
	for {
		tok := l.NextToken()
		tokens = append(tokens, tok)
		if tok.Type == TokenEOF || tok.Type == TokenError {
			break
		}
	}
	return tokens
}
