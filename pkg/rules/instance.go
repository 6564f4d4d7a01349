package rules

import (
	"fmt"

	"github.com/daisylb/bridgekeeper/pkg/query"
)

// isRule matches exactly one resource, identified by its key.
type isRule struct {
	instance interface{} // Keyed resource, or IdentityFunc returning one
}

// Is builds a rule satisfied only by the given resource. The argument
// may be a Keyed resource or an IdentityFunc deriving one from the
// acting identity, for example the user's own profile.
func Is(instance interface{}) Rule {
	return &isRule{instance: instance}
}

// CurrentUser is satisfied by the acting identity's own resource: it
// matches when the checked resource is the user itself. The identity
// must implement Keyed.
var CurrentUser = Is(func(user Identity) (interface{}, error) { return user, nil })

func (i *isRule) target(user Identity) (Keyed, error) {
	resolved, err := resolveExpected(user, i.instance)
	if err != nil {
		return nil, err
	}
	if resolved == nil {
		return nil, nil
	}
	keyed, ok := resolved.(Keyed)
	if !ok {
		return nil, configErr(query.KeyName,
			fmt.Errorf("Is needs a keyed resource to match against, got %T", resolved))
	}
	return keyed, nil
}

func (i *isRule) Check(user Identity, resource Resource) (bool, error) {
	if resource == nil {
		return false, nil
	}
	target, err := i.target(user)
	if err != nil {
		return false, err
	}
	if target == nil {
		return false, nil
	}
	keyed, ok := resource.(Keyed)
	if !ok {
		return false, configErr(query.KeyName,
			fmt.Errorf("Is needs a keyed resource to check, got %T", resource))
	}
	return valuesEqual(target.Key(), keyed.Key()), nil
}

func (i *isRule) Query(user Identity) (query.Predicate, error) {
	target, err := i.target(user)
	if err != nil {
		return nil, err
	}
	if target == nil {
		return query.Empty, nil
	}
	return &query.Cond{Path: query.KeyPath, Op: query.Eq, Value: target.Key()}, nil
}

func (i *isRule) String() string {
	return fmt.Sprintf("Is(%v)", i.instance)
}

// inRule matches resources that are members of a collection.
type inRule struct {
	collection interface{} // []Resource, or IdentityFunc returning one
}

// In builds a rule satisfied by resources belonging to the given
// collection. The argument may be a []Resource or an IdentityFunc
// deriving one from the acting identity, for example the groups a user
// belongs to.
func In(collection interface{}) Rule {
	return &inRule{collection: collection}
}

func (i *inRule) members(user Identity) ([]interface{}, error) {
	resolved, err := resolveExpected(user, i.collection)
	if err != nil {
		return nil, err
	}
	if resolved == nil {
		return nil, nil
	}
	members, err := pluralValues(resolved)
	if err != nil {
		return nil, configErr(query.KeyName,
			fmt.Errorf("In needs a collection of resources: %w", err))
	}
	return members, nil
}

func (i *inRule) Check(user Identity, resource Resource) (bool, error) {
	if resource == nil {
		return false, nil
	}
	members, err := i.members(user)
	if err != nil {
		return false, err
	}
	for _, member := range members {
		if valuesEqual(member, resource) {
			return true, nil
		}
	}
	return false, nil
}

func (i *inRule) Query(user Identity) (query.Predicate, error) {
	members, err := i.members(user)
	if err != nil {
		return nil, err
	}
	keys := make([]interface{}, 0, len(members))
	for _, member := range members {
		if keyed, ok := member.(Keyed); ok {
			keys = append(keys, keyed.Key())
		} else {
			keys = append(keys, member)
		}
	}
	return &query.Cond{Path: query.KeyPath, Op: query.In, Value: keys}, nil
}

func (i *inRule) String() string {
	return fmt.Sprintf("In(%v)", i.collection)
}
