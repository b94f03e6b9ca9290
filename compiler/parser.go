package compiler

import (
	"strconv"
	"strings"

	"github.com/chazu/slate/value"
)

// ---------------------------------------------------------------------------
// Parser: recursive descent parser producing the block tree
// ---------------------------------------------------------------------------

// Parser parses slate source into a Tree. Declarations at file level go into
// the tree's top-level block.
type Parser struct {
	lexer     *Lexer
	curToken  Token
	peekToken Token
	tree      *Tree
	errors    []error
}

// NewParser creates a new parser for the given input.
func NewParser(tree *Tree, file, input string) *Parser {
	tree.AddSource(file, input)
	p := &Parser{
		lexer: NewLexer(file, input),
		tree:  tree,
	}
	// Read two tokens to fill curToken and peekToken
	p.nextToken()
	p.nextToken()
	return p
}

// Parse parses one source file into tree's top-level block.
func Parse(tree *Tree, file, input string) error {
	p := NewParser(tree, file, input)
	p.ParseFile()
	return p.Err()
}

// nextToken advances to the next token.
func (p *Parser) nextToken() {
	p.curToken = p.peekToken
	p.peekToken = p.lexer.NextToken()
}

// curTokenIs checks if the current token is of the given type.
func (p *Parser) curTokenIs(t TokenType) bool {
	return p.curToken.Type == t
}

// peekTokenIs checks if the peek token is of the given type.
func (p *Parser) peekTokenIs(t TokenType) bool {
	return p.peekToken.Type == t
}

// curBinaryIs checks for a specific binary selector.
func (p *Parser) curBinaryIs(op string) bool {
	return p.curToken.Type == TokenBinarySelector && p.curToken.Literal == op
}

// expect advances if the current token matches, otherwise records an error.
func (p *Parser) expect(t TokenType) bool {
	if p.curTokenIs(t) {
		p.nextToken()
		return true
	}
	p.errorf("expected %s, got %s", t, describeToken(p.curToken))
	return false
}

// errorf records a syntax error at the current token.
func (p *Parser) errorf(format string, args ...any) {
	p.errors = append(p.errors, ErrorAt(SyntaxError, p.curToken.Pos, format, args...))
}

// failed reports whether an error has been recorded; parsing stops at the
// first one.
func (p *Parser) failed() bool {
	return len(p.errors) > 0
}

// Errors returns accumulated parse errors.
func (p *Parser) Errors() []error {
	return p.errors
}

// Err returns the first parse error, or nil.
func (p *Parser) Err() error {
	if len(p.errors) == 0 {
		return nil
	}
	return p.errors[0]
}

// ---------------------------------------------------------------------------
// Declarations
// ---------------------------------------------------------------------------

// ParseFile parses declarations up to EOF into the top-level block.
func (p *Parser) ParseFile() {
	p.parseDecls(p.tree.Root, TokenEOF)
	if !p.failed() && !p.curTokenIs(TokenEOF) {
		p.errorf("unexpected %s", describeToken(p.curToken))
	}
}

// parseDecls parses slot and method declarations of block b until the
// closing token.
func (p *Parser) parseDecls(b BlockID, closing TokenType) {
	for !p.failed() && !p.curTokenIs(closing) && !p.curTokenIs(TokenEOF) {
		if p.curTokenIs(TokenError) {
			p.errorf("%s", p.curToken.Literal)
			return
		}

		if p.curTokenIs(TokenIdentifier) && (p.peekTokenIs(TokenAssign) || (p.peekToken.Type == TokenBinarySelector && p.peekToken.Literal == "=")) {
			p.parseSlotDecl(b)
			if p.failed() {
				return
			}
			if p.curTokenIs(TokenPeriod) {
				p.nextToken()
			} else if !p.curTokenIs(closing) {
				p.errorf("expected . after slot declaration, got %s", describeToken(p.curToken))
				return
			}
			continue
		}

		p.parseMethodDecl(b)
		if p.curTokenIs(TokenPeriod) {
			p.nextToken()
		}
	}
}

// parseSlotDecl parses name := expr (mutable) or name = expr (immutable).
func (p *Parser) parseSlotDecl(b BlockID) {
	start := p.curToken.Pos
	name := p.curToken.Literal
	mutable := p.peekTokenIs(TokenAssign)
	p.nextToken() // name
	p.nextToken() // := or =

	block := p.tree.Block(b)
	init := p.parseExpression(block.Parent)
	if init == nil {
		return
	}
	block.Slots = append(block.Slots, &Slot{
		SpanVal: MakeSpan(start, init.Span().End),
		Name:    name,
		Kind:    SlotDeclared,
		Mutable: mutable,
		Init:    init,
		Target:  NoBlock,
	})
}

// parseMethodDecl parses a method signature followed by a bracketed body.
func (p *Parser) parseMethodDecl(b BlockID) {
	start := p.curToken.Pos
	sel, args := p.parseMethodSignature()
	if p.failed() {
		return
	}
	if !p.expect(TokenLBracket) {
		return
	}

	id := p.tree.NewMethod(b, sel, args, nil, Span{})
	body := p.parseBody(id, TokenRBracket)
	if p.failed() {
		return
	}
	end := p.curToken.Pos
	p.expect(TokenRBracket)

	m := p.tree.Method(id)
	m.Body = body
	m.SpanVal = MakeSpan(start, end)
}

// parseMethodSignature parses a unary, binary or keyword signature.
func (p *Parser) parseMethodSignature() (value.Selector, []string) {
	switch {
	case p.curTokenIs(TokenIdentifier):
		name := p.curToken.Literal
		p.nextToken()
		return value.Selector{Name: name, Arity: 0}, nil

	case p.curTokenIs(TokenBinarySelector):
		op := p.curToken.Literal
		p.nextToken()
		if !p.curTokenIs(TokenIdentifier) {
			p.errorf("expected parameter name after binary selector")
			return value.Selector{}, nil
		}
		param := p.curToken.Literal
		p.nextToken()
		return value.Selector{Name: op, Arity: 1}, []string{param}

	case p.curTokenIs(TokenKeyword):
		var sb strings.Builder
		var params []string
		for p.curTokenIs(TokenKeyword) {
			sb.WriteString(p.curToken.Literal)
			p.nextToken()
			if !p.curTokenIs(TokenIdentifier) {
				p.errorf("expected parameter name after keyword")
				return value.Selector{}, nil
			}
			params = append(params, p.curToken.Literal)
			p.nextToken()
		}
		return value.Selector{Name: sb.String(), Arity: len(params)}, params

	default:
		p.errorf("expected slot or method declaration, got %s", describeToken(p.curToken))
		return value.Selector{}, nil
	}
}

// ---------------------------------------------------------------------------
// Statements
// ---------------------------------------------------------------------------

// parseBody parses period-separated statements up to the closing token into
// a Sequence. method is the method nested blocks are constructed in.
func (p *Parser) parseBody(method MethodID, closing TokenType) Expr {
	start := p.curToken.Pos
	var exprs []Expr
	final := false

	for !p.failed() && !p.curTokenIs(closing) && !p.curTokenIs(TokenEOF) {
		if final {
			p.errorf("statement after ^ is unreachable")
			return nil
		}
		if p.curTokenIs(TokenCaret) {
			p.nextToken()
			final = true
		}

		stmt := p.parseStatement(method, final)
		if stmt == nil {
			return nil
		}
		exprs = append(exprs, stmt)

		if p.curTokenIs(TokenPeriod) {
			p.nextToken()
		} else {
			break
		}
	}

	return &Sequence{SpanVal: MakeSpan(start, p.curToken.Pos), Exprs: exprs}
}

// parseStatement parses a let binding or an expression. A statement that
// starts with name = is always a binding unless it follows ^.
func (p *Parser) parseStatement(method MethodID, final bool) Expr {
	if !final && p.curTokenIs(TokenIdentifier) && p.peekToken.Type == TokenBinarySelector && p.peekToken.Literal == "=" {
		start := p.curToken.Pos
		name := p.curToken.Literal
		p.nextToken() // name
		p.nextToken() // =
		val := p.parseExpression(method)
		if val == nil {
			return nil
		}
		return &Let{SpanVal: MakeSpan(start, val.Span().End), Name: name, Value: val, Local: -1}
	}
	return p.parseExpression(method)
}

// ---------------------------------------------------------------------------
// Expressions (message precedence)
// ---------------------------------------------------------------------------

// ParseExpression parses a single expression in the context of method.
func (p *Parser) ParseExpression(method MethodID) Expr {
	return p.parseExpression(method)
}

// parseExpression parses keyword message sends (lowest precedence). A
// leading keyword means the receiver is implicit.
func (p *Parser) parseExpression(method MethodID) Expr {
	if p.curTokenIs(TokenKeyword) {
		return p.parseKeywordMessage(method, nil, p.curToken.Pos)
	}

	receiver := p.parseBinarySend(method)
	if receiver == nil {
		return nil
	}
	if p.curTokenIs(TokenKeyword) {
		return p.parseKeywordMessage(method, receiver, receiver.Span().Start)
	}
	return receiver
}

// parseKeywordMessage parses a keyword message with given receiver.
func (p *Parser) parseKeywordMessage(method MethodID, receiver Expr, start Position) Expr {
	var sb strings.Builder
	var args []Expr

	for p.curTokenIs(TokenKeyword) {
		sb.WriteString(p.curToken.Literal)
		p.nextToken()

		arg := p.parseBinarySend(method)
		if arg == nil {
			return nil
		}
		args = append(args, arg)
	}

	return &Send{
		SpanVal:  MakeSpan(start, args[len(args)-1].Span().End),
		Receiver: receiver,
		Selector: value.Selector{Name: sb.String(), Arity: len(args)},
		Args:     args,
		Target:   NoBlock,
	}
}

// parseBinarySend parses binary message sends (middle precedence, left
// associative). Chains of , fold into one Concat.
func (p *Parser) parseBinarySend(method MethodID) Expr {
	left := p.parseUnarySend(method)
	if left == nil {
		return nil
	}

	for p.curTokenIs(TokenBinarySelector) {
		op := p.curToken.Literal
		p.nextToken()

		right := p.parseUnarySend(method)
		if right == nil {
			return nil
		}
		span := MakeSpan(left.Span().Start, right.Span().End)

		if op == "," {
			if c, ok := left.(*Concat); ok {
				c.Parts = append(c.Parts, right)
				c.SpanVal = span
				continue
			}
			left = &Concat{SpanVal: span, Parts: []Expr{left, right}}
			continue
		}

		left = &Send{
			SpanVal:  span,
			Receiver: left,
			Selector: value.Selector{Name: op, Arity: 1},
			Args:     []Expr{right},
			Target:   NoBlock,
		}
	}

	return left
}

// parseUnarySend parses unary message sends (highest precedence).
func (p *Parser) parseUnarySend(method MethodID) Expr {
	recv := p.parsePrimary(method)
	if recv == nil {
		return nil
	}

	for p.curTokenIs(TokenIdentifier) {
		tok := p.curToken
		p.nextToken()
		recv = &Send{
			SpanVal:  MakeSpan(recv.Span().Start, endOf(tok)),
			Receiver: recv,
			Selector: value.Selector{Name: tok.Literal, Arity: 0},
			Target:   NoBlock,
		}
	}

	return recv
}

// parsePrimary parses literals, names, parenthesized expressions, blocks and
// arrays.
func (p *Parser) parsePrimary(method MethodID) Expr {
	tok := p.curToken
	span := MakeSpan(tok.Pos, endOf(tok))

	switch tok.Type {
	case TokenIdentifier:
		p.nextToken()
		return &Send{SpanVal: span, Selector: value.Selector{Name: tok.Literal, Arity: 0}, Target: NoBlock}

	case TokenInteger, TokenDecimal:
		p.nextToken()
		return p.parseNumber(tok)

	case TokenString:
		p.nextToken()
		return &String{SpanVal: span, Value: tok.Literal}

	case TokenSelf:
		p.nextToken()
		return &Self{SpanVal: span}

	case TokenTrue:
		p.nextToken()
		return &Literal{SpanVal: span, Value: value.True}

	case TokenFalse:
		p.nextToken()
		return &Literal{SpanVal: span, Value: value.False}

	case TokenNil:
		p.nextToken()
		return &Literal{SpanVal: span, Value: value.Nil}

	case TokenSystem:
		p.nextToken()
		return &Literal{SpanVal: span, Value: value.FromConstant(value.ConstSystem)}

	case TokenLParen:
		p.nextToken()
		expr := p.parseExpression(method)
		if expr == nil {
			return nil
		}
		if !p.expect(TokenRParen) {
			return nil
		}
		return expr

	case TokenLBracket:
		p.nextToken()
		b := p.tree.NewBlock(method, Span{})
		p.parseDecls(b, TokenRBracket)
		if p.failed() {
			return nil
		}
		end := p.curToken.Pos
		if !p.expect(TokenRBracket) {
			return nil
		}
		blockSpan := MakeSpan(tok.Pos, end)
		p.tree.Block(b).SpanVal = blockSpan
		return &BlockLit{SpanVal: blockSpan, Block: b}

	case TokenLBrace:
		p.nextToken()
		var elems []Expr
		for !p.curTokenIs(TokenRBrace) && !p.curTokenIs(TokenEOF) {
			e := p.parseExpression(method)
			if e == nil {
				return nil
			}
			elems = append(elems, e)
			if p.curTokenIs(TokenPeriod) {
				p.nextToken()
			} else {
				break
			}
		}
		end := p.curToken.Pos
		if !p.expect(TokenRBrace) {
			return nil
		}
		return &ArrayLit{SpanVal: MakeSpan(tok.Pos, end), Elements: elems}

	case TokenError:
		p.errorf("%s", tok.Literal)
		return nil

	default:
		p.errorf("unexpected %s", describeToken(tok))
		return nil
	}
}

// parseNumber converts a numeric token to significand/exponent form.
func (p *Parser) parseNumber(tok Token) Expr {
	span := MakeSpan(tok.Pos, endOf(tok))
	lit := tok.Literal

	if i := strings.IndexByte(lit, 'r'); i > 0 {
		radix, err := strconv.Atoi(strings.TrimPrefix(lit[:i], "-"))
		if err != nil || radix < 2 || radix > 36 {
			p.errors = append(p.errors, ErrorAt(SyntaxError, tok.Pos, "invalid radix in %s", lit))
			return nil
		}
		n, err := strconv.ParseInt(lit[i+1:], radix, 64)
		if err != nil {
			p.errors = append(p.errors, ErrorAt(ResolutionError, tok.Pos, "numeric literal %s out of representable range", lit))
			return nil
		}
		if strings.HasPrefix(lit, "-") {
			n = -n
		}
		return &Number{SpanVal: span, Significand: n}
	}

	if tok.Type == TokenInteger {
		n, err := strconv.ParseInt(lit, 10, 64)
		if err != nil {
			p.errors = append(p.errors, ErrorAt(ResolutionError, tok.Pos, "numeric literal %s out of representable range", lit))
			return nil
		}
		return &Number{SpanVal: span, Significand: n}
	}

	mantissa, exp := lit, 0
	if i := strings.IndexAny(lit, "eE"); i >= 0 {
		mantissa = lit[:i]
		e, err := strconv.Atoi(strings.TrimPrefix(lit[i+1:], "+"))
		if err != nil {
			p.errors = append(p.errors, ErrorAt(ResolutionError, tok.Pos, "numeric literal %s out of representable range", lit))
			return nil
		}
		exp = e
	}
	digits := mantissa
	if i := strings.IndexByte(mantissa, '.'); i >= 0 {
		digits = mantissa[:i] + mantissa[i+1:]
		exp -= len(mantissa) - i - 1
	}
	n, err := strconv.ParseInt(digits, 10, 64)
	if err != nil {
		p.errors = append(p.errors, ErrorAt(ResolutionError, tok.Pos, "numeric literal %s out of representable range", lit))
		return nil
	}
	return &Number{SpanVal: span, Significand: n, Exponent: exp, Decimal: true}
}

// endOf returns the position just past a single-line token.
func endOf(tok Token) Position {
	end := tok.Pos
	end.Offset += len(tok.Literal)
	end.Column += len(tok.Literal)
	return end
}

// describeToken renders a token for diagnostics.
func describeToken(tok Token) string {
	if tok.Type == TokenEOF {
		return "end of input"
	}
	return strconv.Quote(tok.Literal)
}
