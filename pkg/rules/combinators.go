package rules

import (
	"fmt"

	"github.com/daisylb/bridgekeeper/pkg/query"
)

// andRule matches when both children match.
type andRule struct {
	left  Rule
	right Rule
}

// And builds the conjunction of two rules.
func And(left, right Rule) Rule {
	return &andRule{left: left, right: right}
}

func (a *andRule) Check(user Identity, resource Resource) (bool, error) {
	ok, err := a.left.Check(user, resource)
	if err != nil || !ok {
		return false, err
	}
	return a.right.Check(user, resource)
}

func (a *andRule) Query(user Identity) (query.Predicate, error) {
	left, err := a.left.Query(user)
	if err != nil {
		return nil, err
	}
	// Intersecting with the empty set gives the empty set, so the right
	// side cannot affect the result and is never evaluated.
	if left == query.Empty {
		return query.Empty, nil
	}
	right, err := a.right.Query(user)
	if err != nil {
		return nil, err
	}
	return query.AndOf(left, right), nil
}

func (a *andRule) String() string {
	return fmt.Sprintf("(%v & %v)", a.left, a.right)
}

// orRule matches when either child matches.
type orRule struct {
	left  Rule
	right Rule
}

// Or builds the disjunction of two rules.
func Or(left, right Rule) Rule {
	return &orRule{left: left, right: right}
}

func (o *orRule) Check(user Identity, resource Resource) (bool, error) {
	ok, err := o.left.Check(user, resource)
	if err != nil || ok {
		return ok, err
	}
	return o.right.Check(user, resource)
}

func (o *orRule) Query(user Identity) (query.Predicate, error) {
	left, err := o.left.Query(user)
	if err != nil {
		return nil, err
	}
	// Unioning with the universal set gives the universal set, so the
	// right side cannot affect the result and is never evaluated.
	if left == query.Universal {
		return query.Universal, nil
	}
	right, err := o.right.Query(user)
	if err != nil {
		return nil, err
	}
	return query.OrOf(left, right), nil
}

func (o *orRule) String() string {
	return fmt.Sprintf("(%v | %v)", o.left, o.right)
}

// notRule matches when the inner rule does not.
type notRule struct {
	inner Rule
}

// Not builds the negation of a rule. Negating a negation returns the
// original rule.
//
// Combined with resource-dependent rules, Check without a resource and
// IsPossibleFor treat negation structurally; see IsPossibleFor for the
// documented approximation.
func Not(rule Rule) Rule {
	if n, ok := rule.(*notRule); ok {
		return n.inner
	}
	return &notRule{inner: rule}
}

func (n *notRule) Check(user Identity, resource Resource) (bool, error) {
	ok, err := n.inner.Check(user, resource)
	if err != nil {
		return false, err
	}
	return !ok, nil
}

func (n *notRule) Query(user Identity) (query.Predicate, error) {
	inner, err := n.inner.Query(user)
	if err != nil {
		return nil, err
	}
	return query.NotOf(inner), nil
}

func (n *notRule) String() string {
	return fmt.Sprintf("~%v", n.inner)
}
