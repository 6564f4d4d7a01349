package rules

import "github.com/daisylb/bridgekeeper/pkg/query"

// BlanketFunc decides a blanket rule from the identity alone.
// Errors it returns propagate unchanged to the caller.
type BlanketFunc func(user Identity) (bool, error)

// blanketRule depends only on the acting identity, never on a resource.
// Its verdict is therefore authoritative in all three evaluation modes:
// true means the whole collection, false means nothing.
type blanketRule struct {
	fn    BlanketFunc
	label string
}

// Blanket wraps an identity-only decision function into a Rule. The
// label is used in the rule's string form for debugging.
func Blanket(fn BlanketFunc, label string) Rule {
	return &blanketRule{fn: fn, label: label}
}

func (b *blanketRule) Check(user Identity, _ Resource) (bool, error) {
	return b.fn(user)
}

func (b *blanketRule) Query(user Identity) (query.Predicate, error) {
	ok, err := b.fn(user)
	if err != nil {
		return nil, err
	}
	if ok {
		return query.Universal, nil
	}
	return query.Empty, nil
}

func (b *blanketRule) String() string {
	return b.label
}

// AlwaysAllow matches every identity and resource pair.
var AlwaysAllow = Blanket(func(Identity) (bool, error) { return true, nil }, "always_allow")

// AlwaysDeny matches no identity and resource pair.
var AlwaysDeny = Blanket(func(Identity) (bool, error) { return false, nil }, "always_deny")
