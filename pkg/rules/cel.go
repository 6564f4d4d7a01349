package rules

import (
	"fmt"

	"github.com/google/cel-go/cel"

	"github.com/daisylb/bridgekeeper/pkg/query"
)

// AttributeCarrier is implemented by identities that expose their
// attributes as a map, making them usable from CEL expressions and
// parsed rule expressions.
type AttributeCarrier interface {
	Attributes() map[string]interface{}
}

// exprRule is a blanket rule defined by a CEL expression over the acting
// identity's attributes.
type exprRule struct {
	source  string
	program cel.Program
}

// Expr compiles a CEL expression into a blanket rule. The expression
// sees the identity's attributes as the map variable "subject" and must
// evaluate to a boolean:
//
//	rules.Expr(`subject.role == "shrubber" && subject.tier >= 2`)
//
// The identity passed at evaluation time must implement
// AttributeCarrier. Compilation happens once, here; evaluation never
// re-parses the expression.
func Expr(expression string) (Rule, error) {
	env, err := cel.NewEnv(
		cel.Variable("subject", cel.MapType(cel.StringType, cel.DynType)),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create CEL environment: %w", err)
	}
	ast, issues := env.Compile(expression)
	if issues != nil && issues.Err() != nil {
		return nil, configErr(expression, fmt.Errorf("failed to compile expression: %w", issues.Err()))
	}
	// Attribute accesses on the subject map are dyn-typed, so their
	// boolean-ness is only checkable at evaluation time.
	if t := ast.OutputType(); t != cel.BoolType && t != cel.DynType {
		return nil, configErr(expression, fmt.Errorf("expression must return boolean, got %s", t))
	}
	program, err := env.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("failed to create CEL program: %w", err)
	}
	return &exprRule{source: expression, program: program}, nil
}

// MustExpr is like Expr but panics on a malformed expression. It is
// intended for rule definitions at application start.
func MustExpr(expression string) Rule {
	rule, err := Expr(expression)
	if err != nil {
		panic(err)
	}
	return rule
}

func (e *exprRule) evaluate(user Identity) (bool, error) {
	carrier, ok := user.(AttributeCarrier)
	if !ok {
		return false, configErr(e.source,
			fmt.Errorf("identity of type %T does not expose attributes", user))
	}
	out, _, err := e.program.Eval(map[string]interface{}{
		"subject": carrier.Attributes(),
	})
	if err != nil {
		return false, fmt.Errorf("failed to evaluate expression %q: %w", e.source, err)
	}
	result, ok := out.Value().(bool)
	if !ok {
		return false, fmt.Errorf("expression %q did not evaluate to boolean, got %T", e.source, out.Value())
	}
	return result, nil
}

func (e *exprRule) Check(user Identity, _ Resource) (bool, error) {
	return e.evaluate(user)
}

func (e *exprRule) Query(user Identity) (query.Predicate, error) {
	ok, err := e.evaluate(user)
	if err != nil {
		return nil, err
	}
	if ok {
		return query.Universal, nil
	}
	return query.Empty, nil
}

func (e *exprRule) String() string {
	return fmt.Sprintf("Expr(%q)", e.source)
}
