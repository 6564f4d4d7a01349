package rules

import (
	"fmt"
	"strings"

	"github.com/daisylb/bridgekeeper/pkg/query"
)

// Cond is one condition inside an R rule: the value at Path, compared to
// Value with Op. Value may be a constant, an IdentityFunc resolved at
// evaluation time, or a nested Rule applied to the related resource the
// path points at.
type Cond struct {
	Path  query.Path
	Op    query.Op
	Value interface{}

	err error // deferred path parse error, surfaced on first use
}

// C builds an equality condition from a textual attribute path (see
// query.ParsePath for the syntax). A malformed path is reported when the
// rule is first evaluated.
func C(path string, value interface{}) Cond {
	return COp(path, query.Eq, value)
}

// COp is C with an explicit comparison operator.
func COp(path string, op query.Op, value interface{}) Cond {
	parsed, err := query.ParsePath(path)
	if err != nil {
		return Cond{err: configErr(path, err)}
	}
	return Cond{Path: parsed, Op: op, Value: value}
}

// rRule allows access to some resources but not others, by comparing
// attribute or relationship values against constants, identity-derived
// values, or nested rules. All conditions must hold.
type rRule struct {
	conds []Cond
}

// R builds a comparison rule from one or more conditions. With no
// conditions it matches every resource, like an unconstrained filter.
func R(conds ...Cond) Rule {
	return &rRule{conds: conds}
}

// Attr builds a rule matching a single direct attribute for equality.
// The value may be a constant or an IdentityFunc.
func Attr(name string, matches interface{}) Rule {
	return R(C(name, matches))
}

func (r *rRule) Check(user Identity, resource Resource) (bool, error) {
	if resource == nil {
		// A comparison cannot hold for every possible resource.
		return false, nil
	}
	for _, cond := range r.conds {
		ok, err := r.checkCond(user, resource, cond)
		if err != nil || !ok {
			return false, err
		}
	}
	return true, nil
}

func (r *rRule) checkCond(user Identity, resource Resource, cond Cond) (bool, error) {
	if cond.err != nil {
		return false, cond.err
	}
	values, err := resolvePath(resource, cond.Path)
	if err != nil {
		return false, err
	}

	if nested, ok := cond.Value.(Rule); ok {
		if len(values) == 0 {
			return false, nil
		}
		if !cond.Path.Plural() {
			if values[0] == nil {
				// Absent relation: nothing for the nested rule to hold on.
				return false, nil
			}
			related, ok := values[0].(Resource)
			if !ok {
				return false, configErr(cond.Path.String(),
					fmt.Errorf("nested rule needs a related resource, path resolved to %T", values[0]))
			}
			return nested.Check(user, related)
		}
		// Plural paths have exists semantics: the nested rule is compiled
		// once and tested against each related resource.
		pred, err := nested.Query(user)
		if err != nil {
			return false, err
		}
		for _, value := range values {
			related, ok := value.(Resource)
			if !ok {
				return false, configErr(cond.Path.String(),
					fmt.Errorf("nested rule needs related resources, path resolved to %T", value))
			}
			match, err := Matches(pred, related)
			if err != nil {
				return false, err
			}
			if match {
				return true, nil
			}
		}
		return false, nil
	}

	expected, err := resolveExpected(user, cond.Value)
	if err != nil {
		return false, err
	}
	for _, value := range values {
		ok, err := compare(cond.Op, value, expected)
		if err != nil {
			return false, configErr(cond.Path.String(), err)
		}
		if ok {
			return true, nil
		}
	}
	return false, nil
}

func (r *rRule) Query(user Identity) (query.Predicate, error) {
	acc := query.Universal
	for _, cond := range r.conds {
		if cond.err != nil {
			return nil, cond.err
		}
		if nested, ok := cond.Value.(Rule); ok {
			child, err := nested.Query(user)
			if err != nil {
				return nil, err
			}
			acc = query.AndOf(acc, query.Prefix(child, cond.Path))
			continue
		}
		expected, err := resolveExpected(user, cond.Value)
		if err != nil {
			return nil, err
		}
		acc = query.AndOf(acc, &query.Cond{Path: cond.Path, Op: cond.Op, Value: expected})
	}
	return acc, nil
}

func (r *rRule) String() string {
	parts := make([]string, len(r.conds))
	for i, cond := range r.conds {
		if cond.err != nil {
			parts[i] = cond.err.Error()
			continue
		}
		parts[i] = fmt.Sprintf("%s %s %v", cond.Path, cond.Op, cond.Value)
	}
	return fmt.Sprintf("R(%s)", strings.Join(parts, ", "))
}

// resolveExpected resolves an expected value that may be an identity
// function. Plain values pass through untouched.
func resolveExpected(user Identity, value interface{}) (interface{}, error) {
	switch fn := value.(type) {
	case IdentityFunc:
		return fn(user)
	case func(Identity) (interface{}, error):
		return fn(user)
	default:
		return value, nil
	}
}
