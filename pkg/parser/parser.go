package parser

import (
	"fmt"
	"strconv"

	"github.com/daisylb/bridgekeeper/pkg/query"
	"github.com/daisylb/bridgekeeper/pkg/rules"
)

// subjectName is the identifier that refers to the acting identity's
// attributes on the right-hand side of a comparison.
const subjectName = "subject"

// Env supplies the named blanket rules an expression may refer to.
type Env map[string]rules.Rule

// Parse parses a rule expression against an environment of named rules.
// The resulting rule tree is immutable and can be registered and
// evaluated like any programmatically built rule.
func Parse(input string, env Env) (rules.Rule, error) {
	p := newParser(NewLexer(input), env)
	rule, err := p.parseExpression()
	if err != nil {
		return nil, err
	}
	if !p.currentTokenIs(TOKEN_EOF) {
		return nil, fmt.Errorf("unexpected %s after expression", p.current)
	}
	return rule, nil
}

// Parser parses a rule expression into a rule tree
type Parser struct {
	lexer   *Lexer
	env     Env
	current *Token
	peek    *Token
	err     error
}

func newParser(lexer *Lexer, env Env) *Parser {
	p := &Parser{lexer: lexer, env: env}

	// Read two tokens to initialize current and peek
	p.nextToken()
	p.nextToken()

	return p
}

// nextToken advances to the next token
func (p *Parser) nextToken() {
	p.current = p.peek
	tok, err := p.lexer.NextToken()
	if err != nil {
		if p.err == nil {
			p.err = err
		}
		p.peek = &Token{Type: TOKEN_EOF}
	} else {
		p.peek = tok
	}
}

// currentTokenIs checks if the current token is of the given type
func (p *Parser) currentTokenIs(t TokenType) bool {
	return p.current != nil && p.current.Type == t
}

// parseExpression parses an or-expression, the lowest precedence level.
func (p *Parser) parseExpression() (rules.Rule, error) {
	left, err := p.parseAnd()
	if err != nil {
		return nil, err
	}
	for p.currentTokenIs(TOKEN_PIPE) {
		p.nextToken()
		right, err := p.parseAnd()
		if err != nil {
			return nil, err
		}
		left = rules.Or(left, right)
	}
	return left, nil
}

func (p *Parser) parseAnd() (rules.Rule, error) {
	left, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	for p.currentTokenIs(TOKEN_AMPERSAND) {
		p.nextToken()
		right, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		left = rules.And(left, right)
	}
	return left, nil
}

// parseUnary parses a not-expression, the highest precedence level.
func (p *Parser) parseUnary() (rules.Rule, error) {
	if p.currentTokenIs(TOKEN_EXCLAMATION) {
		p.nextToken()
		inner, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return rules.Not(inner), nil
	}
	return p.parsePrimary()
}

func (p *Parser) parsePrimary() (rules.Rule, error) {
	if p.currentTokenIs(TOKEN_LPAREN) {
		p.nextToken()
		inner, err := p.parseExpression()
		if err != nil {
			return nil, err
		}
		if !p.currentTokenIs(TOKEN_RPAREN) {
			return nil, fmt.Errorf("expected ')', got %s", p.current)
		}
		p.nextToken()
		return inner, nil
	}

	if !p.currentTokenIs(TOKEN_IDENTIFIER) {
		if p.err != nil {
			return nil, p.err
		}
		return nil, fmt.Errorf("expected a rule name or attribute path, got %s", p.current)
	}
	if p.current.Value == subjectName {
		return nil, fmt.Errorf("%q can only appear on the right-hand side of a comparison at %d:%d",
			subjectName, p.current.Line, p.current.Column)
	}

	path, err := p.parsePath()
	if err != nil {
		return nil, err
	}

	op, isComparison := comparisonOp(p.current)
	if !isComparison {
		// A bare single-segment path is a reference to a named rule.
		if len(path) == 1 {
			rule, ok := p.env[path[0].Name]
			if !ok {
				return nil, fmt.Errorf("unknown rule name %q", path[0].Name)
			}
			return rule, nil
		}
		return nil, fmt.Errorf("attribute path %q needs a comparison, got %s", path.String(), p.current)
	}
	p.nextToken()

	value, err := p.parseOperand()
	if err != nil {
		return nil, err
	}
	return rules.R(rules.Cond{Path: path, Op: op, Value: value}), nil
}

// parsePath reads a dotted attribute path, marking segments with a []
// suffix as to-many. Non-final unmarked segments are to-one relations.
func (p *Parser) parsePath() (query.Path, error) {
	var path query.Path
	for {
		if !p.currentTokenIs(TOKEN_IDENTIFIER) {
			return nil, fmt.Errorf("expected a path segment, got %s", p.current)
		}
		seg := query.Segment{Name: p.current.Value, Kind: query.Field}
		p.nextToken()
		if p.currentTokenIs(TOKEN_LBRACKET) {
			p.nextToken()
			if !p.currentTokenIs(TOKEN_RBRACKET) {
				return nil, fmt.Errorf("expected ']', got %s", p.current)
			}
			seg.Kind = query.ToMany
			p.nextToken()
		}
		path = append(path, seg)
		if !p.currentTokenIs(TOKEN_DOT) {
			break
		}
		p.nextToken()
	}
	// Unmarked non-final segments traverse singular relations.
	for i := range path[:len(path)-1] {
		if path[i].Kind == query.Field {
			path[i].Kind = query.ToOne
		}
	}
	return path, nil
}

// parseOperand reads the right-hand side of a comparison: a literal, or
// a subject attribute reference resolved from the identity at
// evaluation time.
func (p *Parser) parseOperand() (interface{}, error) {
	tok := p.current
	switch tok.Type {
	case TOKEN_STRING:
		p.nextToken()
		return tok.Value, nil
	case TOKEN_NUMBER:
		p.nextToken()
		if i, err := strconv.ParseInt(tok.Value, 10, 64); err == nil {
			return i, nil
		}
		f, err := strconv.ParseFloat(tok.Value, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid number %q at %d:%d", tok.Value, tok.Line, tok.Column)
		}
		return f, nil
	case TOKEN_TRUE:
		p.nextToken()
		return true, nil
	case TOKEN_FALSE:
		p.nextToken()
		return false, nil
	case TOKEN_NULL:
		p.nextToken()
		return nil, nil
	case TOKEN_IDENTIFIER:
		if tok.Value != subjectName {
			return nil, fmt.Errorf("expected a literal or %s.<attribute>, got %s", subjectName, tok)
		}
		p.nextToken()
		if !p.currentTokenIs(TOKEN_DOT) {
			return nil, fmt.Errorf("expected '.' after %q, got %s", subjectName, p.current)
		}
		p.nextToken()
		if !p.currentTokenIs(TOKEN_IDENTIFIER) {
			return nil, fmt.Errorf("expected an attribute name after %q, got %s", subjectName+".", p.current)
		}
		attr := p.current.Value
		p.nextToken()
		return subjectAttr(attr), nil
	default:
		return nil, fmt.Errorf("expected a comparison operand, got %s", tok)
	}
}

// subjectAttr builds an identity function reading one attribute from an
// identity that implements rules.AttributeCarrier.
func subjectAttr(name string) rules.IdentityFunc {
	return func(user rules.Identity) (interface{}, error) {
		carrier, ok := user.(rules.AttributeCarrier)
		if !ok {
			return nil, fmt.Errorf("identity of type %T does not expose attributes", user)
		}
		return carrier.Attributes()[name], nil
	}
}

func comparisonOp(tok *Token) (query.Op, bool) {
	switch tok.Type {
	case TOKEN_EQ:
		return query.Eq, true
	case TOKEN_NEQ:
		return query.Ne, true
	case TOKEN_LT:
		return query.Lt, true
	case TOKEN_LTE:
		return query.Lte, true
	case TOKEN_GT:
		return query.Gt, true
	case TOKEN_GTE:
		return query.Gte, true
	default:
		return query.Eq, false
	}
}
