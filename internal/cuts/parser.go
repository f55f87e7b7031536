// Package cuts implements boolean row predicates ("cuts") over tables.
// Cuts can be combined programmatically (And, Or, Not) or parsed from a
// small query language, e.g.
//
//	ZQUALITY >= 3 AND REMOVE == -1
//	SPEC_Z < 0.05 (TELNAME == MMT OR TELNAME == AAT)
//	!(MASKNAME ~ 'conflicted')
//
// Adjacent terms are combined with an implicit AND.
package cuts

import (
	"fmt"
	"strings"
	"unicode"
)

// --- Abstract Syntax Tree (AST) ---

// Expression is the interface that all expression nodes implement.
type Expression interface {
	String() string
}

// Comparison represents a column-operator-value term (e.g., "ZQUALITY >= 3").
type Comparison struct {
	Column   string
	Operator string // one of "==", "!=", "<", "<=", ">", ">=", "~"
	Value    string
}

func (c *Comparison) String() string {
	// Quote the value if it contains spaces or is empty, so it can be re-parsed.
	if strings.Contains(c.Value, " ") || c.Value == "" {
		return fmt.Sprintf("%s %s '%s'", c.Column, c.Operator, c.Value)
	}
	return fmt.Sprintf("%s %s %s", c.Column, c.Operator, c.Value)
}

// NotExpression represents a negation using '!' (e.g., "!(ZQUALITY >= 3)").
type NotExpression struct {
	Expression Expression
}

func (ne *NotExpression) String() string {
	return fmt.Sprintf("!%s", ne.Expression.String())
}

// BinaryExpression represents a two-sided expression with an operator (AND, OR).
type BinaryExpression struct {
	Left     Expression
	Operator string // "AND" or "OR"
	Right    Expression
}

func (be *BinaryExpression) String() string {
	return fmt.Sprintf("(%s %s %s)", be.Left.String(), be.Operator, be.Right.String())
}

// --- Lexer (Tokenizer) ---

type tokenType int

const (
	tokenIllegal tokenType = iota
	tokenEOF

	// Literals
	tokenIdentifier // "ZQUALITY", "3", "-0.5"
	tokenString     // "'conflicted copy'"

	// Operators
	tokenAnd // "AND"
	tokenOr  // "OR"
	tokenNot // "!"
	tokenOp  // "==", "!=", "<", "<=", ">", ">=", "~"

	// Punctuation
	tokenLParen // "("
	tokenRParen // ")"
)

var tokenNames = map[tokenType]string{
	tokenIllegal:    "ILLEGAL",
	tokenEOF:        "EOF",
	tokenIdentifier: "IDENTIFIER",
	tokenString:     "STRING",
	tokenAnd:        "AND",
	tokenOr:         "OR",
	tokenNot:        "NOT",
	tokenOp:         "OP",
	tokenLParen:     "LPAREN",
	tokenRParen:     "RPAREN",
}

func (t tokenType) String() string {
	return tokenNames[t]
}

type token struct {
	typ tokenType
	lit string
}

type lexer struct {
	input   []rune
	pos     int // current position
	readPos int // next position to read
	ch      rune
}

func newLexer(input string) *lexer {
	l := &lexer{input: []rune(input)}
	l.readChar()
	return l
}

func (l *lexer) readChar() {
	if l.readPos >= len(l.input) {
		l.ch = 0 // EOF
	} else {
		l.ch = l.input[l.readPos]
	}
	l.pos = l.readPos
	l.readPos++
}

func (l *lexer) peekChar() rune {
	if l.readPos >= len(l.input) {
		return 0
	}
	return l.input[l.readPos]
}

func (l *lexer) nextToken() token {
	var tok token

	l.skipWhitespace()

	switch l.ch {
	case '(':
		tok = token{typ: tokenLParen, lit: "("}
	case ')':
		tok = token{typ: tokenRParen, lit: ")"}
	case '~':
		tok = token{typ: tokenOp, lit: "~"}
	case '=':
		if l.peekChar() == '=' {
			l.readChar()
			tok = token{typ: tokenOp, lit: "=="}
		} else {
			tok = token{typ: tokenIllegal, lit: "="}
		}
	case '!':
		if l.peekChar() == '=' {
			l.readChar()
			tok = token{typ: tokenOp, lit: "!="}
		} else {
			tok = token{typ: tokenNot, lit: "!"}
		}
	case '<':
		if l.peekChar() == '=' {
			l.readChar()
			tok = token{typ: tokenOp, lit: "<="}
		} else {
			tok = token{typ: tokenOp, lit: "<"}
		}
	case '>':
		if l.peekChar() == '=' {
			l.readChar()
			tok = token{typ: tokenOp, lit: ">="}
		} else {
			tok = token{typ: tokenOp, lit: ">"}
		}
	case '\'', '"':
		tok.typ = tokenString
		tok.lit = l.readString(l.ch)
	case 0:
		tok = token{typ: tokenEOF, lit: ""}
	default:
		if l.isIdentifierChar(l.ch) {
			lit := l.readIdentifier()
			switch lit {
			case "AND":
				return token{typ: tokenAnd, lit: "AND"}
			case "OR":
				return token{typ: tokenOr, lit: "OR"}
			default:
				return token{typ: tokenIdentifier, lit: lit}
			}
		} else {
			tok = token{typ: tokenIllegal, lit: string(l.ch)}
		}
	}

	l.readChar()
	return tok
}

func (l *lexer) skipWhitespace() {
	for unicode.IsSpace(l.ch) {
		l.readChar()
	}
}

func (l *lexer) readIdentifier() string {
	start := l.pos
	for l.isIdentifierChar(l.ch) {
		l.readChar()
	}
	return string(l.input[start:l.pos])
}

func (l *lexer) isIdentifierChar(ch rune) bool {
	return ch != 0 && !unicode.IsSpace(ch) && !strings.ContainsRune("()!<>=~'\"", ch)
}

func (l *lexer) readString(quote rune) string {
	l.readChar() // consume opening quote
	start := l.pos
	for l.ch != quote && l.ch != 0 {
		l.readChar()
	}
	return string(l.input[start:l.pos])
}

// --- Parser ---

type parser struct {
	l      *lexer
	errors []string

	curToken  token
	peekToken token
}

func newParser(l *lexer) *parser {
	p := &parser{l: l}
	// Read two tokens to set both curToken and peekToken
	p.nextToken()
	p.nextToken()
	return p
}

func (p *parser) nextToken() {
	p.curToken = p.peekToken
	p.peekToken = p.l.nextToken()
}

// parse parses a cut expression string into an AST.
func parse(input string) (Expression, error) {
	l := newLexer(input)
	p := newParser(l)
	expr := p.parseExpression(precedenceLowest)

	// Trailing tokens that are not part of a valid expression are an error.
	if p.peekToken.typ != tokenEOF {
		p.errors = append(p.errors, fmt.Sprintf("unexpected token at end of expression: %s", p.peekToken.typ))
	}

	if len(p.errors) > 0 {
		return nil, fmt.Errorf("parser errors: %s", strings.Join(p.errors, "; "))
	}
	return expr, nil
}

// Pratt parser style precedence definitions
const (
	precedenceLowest = iota
	precedenceOr
	precedenceAnd
	precedenceNot
)

var precedences = map[tokenType]int{
	tokenOr:  precedenceOr,
	tokenAnd: precedenceAnd,
	// Implicit AND needs to be handled specially
}

func (p *parser) parseExpression(precedence int) Expression {
	// Prefix parsing
	var leftExp Expression
	switch p.curToken.typ {
	case tokenNot:
		leftExp = p.parseNotExpression()
	case tokenIdentifier:
		leftExp = p.parseComparison()
	case tokenLParen:
		leftExp = p.parseGroupedExpression()
	default:
		p.errors = append(p.errors, fmt.Sprintf("unexpected token at start of expression: %s", p.curToken.typ))
		return nil
	}

	// Infix parsing
	for p.peekToken.typ != tokenEOF && precedence < p.peekPrecedence() {
		// Handle explicit binary operators (AND, OR)
		switch p.peekToken.typ {
		case tokenAnd, tokenOr:
			p.nextToken()
			leftExp = p.parseBinaryExpression(leftExp)
			continue
		}

		// Handle implicit AND
		if p.isTermStart(p.peekToken.typ) {
			// Inject an implicit AND operator
			p.curToken = token{typ: tokenAnd, lit: "AND"}
			leftExp = p.parseBinaryExpression(leftExp)
		} else {
			return leftExp
		}
	}

	return leftExp
}

func (p *parser) peekPrecedence() int {
	// Handle implicit AND
	if p.isTermStart(p.peekToken.typ) {
		return precedenceAnd
	}
	if prec, ok := precedences[p.peekToken.typ]; ok {
		return prec
	}
	return precedenceLowest
}

func (p *parser) curPrecedence() int {
	if prec, ok := precedences[p.curToken.typ]; ok {
		return prec
	}
	return precedenceLowest
}

// isTermStart checks if a token can be the beginning of a new term.
func (p *parser) isTermStart(ttype tokenType) bool {
	switch ttype {
	case tokenIdentifier, tokenNot, tokenLParen:
		return true
	default:
		return false
	}
}

func (p *parser) parseComparison() Expression {
	if p.peekToken.typ != tokenOp {
		p.errors = append(p.errors, fmt.Sprintf("expected comparison operator after %q, got %s", p.curToken.lit, p.peekToken.typ))
		return nil
	}
	comp := &Comparison{Column: p.curToken.lit}
	p.nextToken() // consume column name, current is now operator
	comp.Operator = p.curToken.lit
	p.nextToken() // consume operator, current is now value

	if p.curToken.typ != tokenIdentifier && p.curToken.typ != tokenString {
		p.errors = append(p.errors, fmt.Sprintf("expected identifier or string for comparison value, got %s", p.curToken.typ))
		return nil
	}
	comp.Value = p.curToken.lit
	return comp
}

func (p *parser) parseNotExpression() Expression {
	expr := &NotExpression{}
	p.nextToken() // consume '!'
	expr.Expression = p.parseExpression(precedenceNot)
	return expr
}

func (p *parser) parseBinaryExpression(left Expression) Expression {
	expr := &BinaryExpression{
		Left:     left,
		Operator: p.curToken.lit,
	}
	precedence := p.curPrecedence()
	p.nextToken()
	expr.Right = p.parseExpression(precedence)
	return expr
}

func (p *parser) parseGroupedExpression() Expression {
	p.nextToken() // consume '('
	exp := p.parseExpression(precedenceLowest)
	if p.peekToken.typ != tokenRParen {
		p.errors = append(p.errors, fmt.Sprintf("expected ')' to close group, got %s", p.peekToken.typ))
		return nil
	}
	p.nextToken() // consume ')'
	return exp
}
