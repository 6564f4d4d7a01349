// Package rules implements the rule algebra at the heart of bridgekeeper.
//
// A Rule is an immutable expression tree over an acting identity and a
// target resource. One rule definition answers three different questions:
//
//   - Check: does this identity satisfy the rule for this resource?
//     Called with a nil resource, it instead asks whether the identity
//     satisfies the rule for every possible resource.
//   - Filter: narrow a collection of candidate resources down to exactly
//     those the identity may access, by compiling the rule into a
//     query.Predicate and delegating execution to the collection.
//   - IsPossibleFor: could some resource exist for which the identity
//     satisfies the rule? Answered without touching stored data.
//
// Rules never mutate their children; the combinators And, Or and Not
// always build new nodes.
package rules

import "github.com/daisylb/bridgekeeper/pkg/query"

// Identity is the acting principal. The rule engine never inspects it
// beyond what user-supplied evaluators and identity functions choose to
// read from it.
type Identity = interface{}

// Resource is a target object that access is checked against. The rule
// engine only interacts with it through attribute resolution.
//
// Attr resolves a named attribute or relationship. A nil value with a nil
// error means the attribute is present but unset (an absent singular
// relationship resolves this way). An attribute the resource does not
// have at all should return an error wrapping ErrUnknownAttribute.
// To-one relationships resolve to a Resource; to-many relationships
// resolve to a []Resource.
type Resource interface {
	Attr(name string) (interface{}, error)
}

// Keyed is implemented by resources that have a primary key. The Is and
// In rules, and the query.KeyName pseudo-attribute, require it.
type Keyed interface {
	Resource
	Key() interface{}
}

// Collection is the storage collaborator that filter mode delegates to.
// Implementations must execute predicates (including relationship
// traversal) themselves; the rule engine never iterates a collection's
// contents, so ordering and laziness are whatever the implementation
// provides.
type Collection interface {
	// Where returns a collection narrowed to resources matching pred.
	Where(pred query.Predicate) Collection
	// None returns an empty collection of the same shape.
	None() Collection
}

// IdentityFunc derives a comparison value from the acting identity.
// Errors it returns propagate unchanged to the caller.
type IdentityFunc func(user Identity) (interface{}, error)

// Rule is a node in a permission rule tree.
type Rule interface {
	// Check reports whether user satisfies this rule for resource.
	// A nil resource asks whether the user satisfies the rule for every
	// possible resource; resource-dependent rules answer false in that
	// case, since some hypothetical resource could violate them.
	Check(user Identity, resource Resource) (bool, error)

	// Query compiles this rule into a filter predicate for user,
	// resolving identity functions immediately. It returns
	// query.Universal or query.Empty when the rule grants or denies
	// access to every possible resource for this user.
	Query(user Identity) (query.Predicate, error)
}

// Filter narrows collection to the resources user may access under rule.
// The rule is compiled once into a predicate; execution is delegated
// entirely to the collection.
func Filter(rule Rule, user Identity, collection Collection) (Collection, error) {
	pred, err := rule.Query(user)
	if err != nil {
		return nil, err
	}
	if pred == query.Universal {
		return collection, nil
	}
	if pred == query.Empty {
		return collection.None(), nil
	}
	return collection.Where(pred), nil
}

// IsPossibleFor reports whether some resource could exist for which user
// satisfies rule. It is computed structurally from the rule tree without
// any storage access.
//
// For rules mixing Not with resource-dependent conditions this is a
// conservative structural approximation, not a logical guarantee:
// tautologies or contradictions arising from specific attribute values
// are not detected. Applications rely on this documented behavior.
func IsPossibleFor(rule Rule, user Identity) (bool, error) {
	pred, err := rule.Query(user)
	if err != nil {
		return false, err
	}
	return pred != query.Empty, nil
}
