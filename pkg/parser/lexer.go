// Package parser parses textual rule expressions into rule trees.
//
// The expression language mirrors the programmatic combinators: named
// blanket rules combine with & (and), | (or) and ! (not), attribute
// paths compare against literals or subject attributes, and parentheses
// group. Not binds tightest, then and, then or:
//
//	is_staff | branch == subject.branch
//	!banned & (tier >= 2 | is_superuser)
//	shrubberies[].branch.store == subject.store
package parser

import (
	"fmt"
	"unicode"
)

// TokenType represents the type of a token
type TokenType int

const (
	TOKEN_ILLEGAL TokenType = iota
	TOKEN_EOF

	// Identifiers and literals
	TOKEN_IDENTIFIER
	TOKEN_STRING // String literals (quoted)
	TOKEN_NUMBER

	// Keywords
	TOKEN_TRUE
	TOKEN_FALSE
	TOKEN_NULL

	// Comparison operators
	TOKEN_EQ  // ==
	TOKEN_NEQ // !=
	TOKEN_LT  // <
	TOKEN_LTE // <=
	TOKEN_GT  // >
	TOKEN_GTE // >=

	// Boolean operators
	TOKEN_AMPERSAND   // &
	TOKEN_PIPE        // |
	TOKEN_EXCLAMATION // !

	// Delimiters
	TOKEN_LPAREN
	TOKEN_RPAREN
	TOKEN_LBRACKET
	TOKEN_RBRACKET
	TOKEN_DOT
)

var tokenNames = map[TokenType]string{
	TOKEN_ILLEGAL:     "ILLEGAL",
	TOKEN_EOF:         "EOF",
	TOKEN_IDENTIFIER:  "IDENTIFIER",
	TOKEN_STRING:      "STRING",
	TOKEN_NUMBER:      "NUMBER",
	TOKEN_TRUE:        "true",
	TOKEN_FALSE:       "false",
	TOKEN_NULL:        "null",
	TOKEN_EQ:          "==",
	TOKEN_NEQ:         "!=",
	TOKEN_LT:          "<",
	TOKEN_LTE:         "<=",
	TOKEN_GT:          ">",
	TOKEN_GTE:         ">=",
	TOKEN_AMPERSAND:   "&",
	TOKEN_PIPE:        "|",
	TOKEN_EXCLAMATION: "!",
	TOKEN_LPAREN:      "(",
	TOKEN_RPAREN:      ")",
	TOKEN_LBRACKET:    "[",
	TOKEN_RBRACKET:    "]",
	TOKEN_DOT:         ".",
}

var keywords = map[string]TokenType{
	"true":  TOKEN_TRUE,
	"false": TOKEN_FALSE,
	"null":  TOKEN_NULL,
}

// Token represents a lexical token
type Token struct {
	Type   TokenType
	Value  string
	Line   int
	Column int
}

// String returns a string representation of the token
func (t *Token) String() string {
	typeName := tokenNames[t.Type]
	if typeName == "" {
		typeName = fmt.Sprintf("UNKNOWN(%d)", t.Type)
	}
	return fmt.Sprintf("%s(%s) at %d:%d", typeName, t.Value, t.Line, t.Column)
}

// Lexer tokenizes a rule expression
type Lexer struct {
	input  []rune
	pos    int
	line   int
	column int
}

// NewLexer creates a new Lexer over the given input
func NewLexer(input string) *Lexer {
	return &Lexer{input: []rune(input), line: 1, column: 1}
}

func (l *Lexer) current() rune {
	if l.pos >= len(l.input) {
		return 0
	}
	return l.input[l.pos]
}

func (l *Lexer) peek() rune {
	if l.pos+1 >= len(l.input) {
		return 0
	}
	return l.input[l.pos+1]
}

func (l *Lexer) advance() {
	if l.current() == '\n' {
		l.line++
		l.column = 1
	} else {
		l.column++
	}
	l.pos++
}

func (l *Lexer) skipWhitespace() {
	for unicode.IsSpace(l.current()) {
		l.advance()
	}
}

func (l *Lexer) token(t TokenType, value string) *Token {
	return &Token{Type: t, Value: value, Line: l.line, Column: l.column}
}

// NextToken returns the next token from the input
func (l *Lexer) NextToken() (*Token, error) {
	l.skipWhitespace()

	ch := l.current()
	if ch == 0 {
		return l.token(TOKEN_EOF, ""), nil
	}

	switch ch {
	case '(':
		tok := l.token(TOKEN_LPAREN, "(")
		l.advance()
		return tok, nil
	case ')':
		tok := l.token(TOKEN_RPAREN, ")")
		l.advance()
		return tok, nil
	case '[':
		tok := l.token(TOKEN_LBRACKET, "[")
		l.advance()
		return tok, nil
	case ']':
		tok := l.token(TOKEN_RBRACKET, "]")
		l.advance()
		return tok, nil
	case '.':
		tok := l.token(TOKEN_DOT, ".")
		l.advance()
		return tok, nil
	case '&':
		tok := l.token(TOKEN_AMPERSAND, "&")
		l.advance()
		return tok, nil
	case '|':
		tok := l.token(TOKEN_PIPE, "|")
		l.advance()
		return tok, nil
	case '=':
		if l.peek() == '=' {
			tok := l.token(TOKEN_EQ, "==")
			l.advance()
			l.advance()
			return tok, nil
		}
		tok := l.token(TOKEN_ILLEGAL, "=")
		l.advance()
		return tok, fmt.Errorf("unexpected character '=' at %d:%d (did you mean '=='?)", tok.Line, tok.Column)
	case '!':
		if l.peek() == '=' {
			tok := l.token(TOKEN_NEQ, "!=")
			l.advance()
			l.advance()
			return tok, nil
		}
		tok := l.token(TOKEN_EXCLAMATION, "!")
		l.advance()
		return tok, nil
	case '<':
		if l.peek() == '=' {
			tok := l.token(TOKEN_LTE, "<=")
			l.advance()
			l.advance()
			return tok, nil
		}
		tok := l.token(TOKEN_LT, "<")
		l.advance()
		return tok, nil
	case '>':
		if l.peek() == '=' {
			tok := l.token(TOKEN_GTE, ">=")
			l.advance()
			l.advance()
			return tok, nil
		}
		tok := l.token(TOKEN_GT, ">")
		l.advance()
		return tok, nil
	case '"', '\'':
		return l.readString(ch)
	}

	if unicode.IsDigit(ch) || (ch == '-' && unicode.IsDigit(l.peek())) {
		return l.readNumber(), nil
	}
	if unicode.IsLetter(ch) || ch == '_' {
		return l.readIdentifier(), nil
	}

	tok := l.token(TOKEN_ILLEGAL, string(ch))
	l.advance()
	return tok, fmt.Errorf("unexpected character %q at %d:%d", ch, tok.Line, tok.Column)
}

func (l *Lexer) readString(quote rune) (*Token, error) {
	tok := l.token(TOKEN_STRING, "")
	l.advance() // consume opening quote
	var value []rune
	for l.current() != quote {
		if l.current() == 0 {
			return tok, fmt.Errorf("unterminated string at %d:%d", tok.Line, tok.Column)
		}
		value = append(value, l.current())
		l.advance()
	}
	l.advance() // consume closing quote
	tok.Value = string(value)
	return tok, nil
}

func (l *Lexer) readNumber() *Token {
	tok := l.token(TOKEN_NUMBER, "")
	var value []rune
	if l.current() == '-' {
		value = append(value, l.current())
		l.advance()
	}
	for unicode.IsDigit(l.current()) || l.current() == '.' {
		// A period followed by a letter is a path separator, not a
		// decimal point.
		if l.current() == '.' && !unicode.IsDigit(l.peek()) {
			break
		}
		value = append(value, l.current())
		l.advance()
	}
	tok.Value = string(value)
	return tok
}

func (l *Lexer) readIdentifier() *Token {
	tok := l.token(TOKEN_IDENTIFIER, "")
	var value []rune
	for unicode.IsLetter(l.current()) || unicode.IsDigit(l.current()) || l.current() == '_' {
		value = append(value, l.current())
		l.advance()
	}
	tok.Value = string(value)
	if keyword, ok := keywords[tok.Value]; ok {
		tok.Type = keyword
	}
	return tok
}
