package compiler

import "fmt"

// ---------------------------------------------------------------------------
// Token types
// ---------------------------------------------------------------------------

// TokenType represents the type of a token.
type TokenType int

const (
	// Special tokens
	TokenEOF TokenType = iota
	TokenError

	// Literals
	TokenInteger    // 42, 16rFF
	TokenDecimal    // 3.14, 1.5e10
	TokenString     // 'hello'
	TokenIdentifier // foo, Bar

	// Keywords and selectors
	TokenKeyword        // foo:, at:put:
	TokenBinarySelector // +, -, *, /, <, >, =, ',', etc.

	// Delimiters
	TokenLParen   // (
	TokenRParen   // )
	TokenLBracket // [
	TokenRBracket // ]
	TokenLBrace   // {
	TokenRBrace   // }
	TokenCaret    // ^
	TokenPeriod   // .
	TokenAssign   // :=

	// Reserved identifiers
	TokenSelf
	TokenNil
	TokenTrue
	TokenFalse
	TokenSystem
)

var tokenNames = map[TokenType]string{
	TokenEOF:            "EOF",
	TokenError:          "ERROR",
	TokenInteger:        "INTEGER",
	TokenDecimal:        "DECIMAL",
	TokenString:         "STRING",
	TokenIdentifier:     "IDENTIFIER",
	TokenKeyword:        "KEYWORD",
	TokenBinarySelector: "BINARY",
	TokenLParen:         "(",
	TokenRParen:         ")",
	TokenLBracket:       "[",
	TokenRBracket:       "]",
	TokenLBrace:         "{",
	TokenRBrace:         "}",
	TokenCaret:          "^",
	TokenPeriod:         ".",
	TokenAssign:         ":=",
	TokenSelf:           "self",
	TokenNil:            "nil",
	TokenTrue:           "true",
	TokenFalse:          "false",
	TokenSystem:         "system",
}

func (t TokenType) String() string {
	if name, ok := tokenNames[t]; ok {
		return name
	}
	return fmt.Sprintf("Token(%d)", t)
}

// Token represents a lexical token.
type Token struct {
	Type    TokenType
	Literal string   // the raw text
	Pos     Position // start position
}

func (t Token) String() string {
	if t.Type == TokenEOF {
		return "EOF"
	}
	if t.Type == TokenError {
		return fmt.Sprintf("ERROR(%s)", t.Literal)
	}
	if len(t.Literal) > 20 {
		return fmt.Sprintf("%s(%q...)", t.Type, t.Literal[:20])
	}
	return fmt.Sprintf("%s(%q)", t.Type, t.Literal)
}

// Reserved words mapped to their token types.
var reservedWords = map[string]TokenType{
	"self":   TokenSelf,
	"nil":    TokenNil,
	"true":   TokenTrue,
	"false":  TokenFalse,
	"system": TokenSystem,
}

// IsBinaryChar returns true if r is a valid binary selector character.
func IsBinaryChar(r rune) bool {
	switch r {
	case '+', '-', '*', '/', '\\', '~', '<', '>', '=', '@', '%', '|', '&', '?', '!', ',':
		return true
	}
	return false
}
