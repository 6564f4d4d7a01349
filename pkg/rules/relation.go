package rules

import (
	"fmt"

	"github.com/daisylb/bridgekeeper/pkg/query"
)

// relationRule applies a nested rule across a to-one relationship.
type relationRule struct {
	attr string
	rule Rule
}

// Relation builds a rule satisfied when the nested rule is satisfied by
// the resource's singular related resource. An absent relationship never
// matches.
func Relation(attr string, rule Rule) Rule {
	return &relationRule{attr: attr, rule: rule}
}

func (r *relationRule) Check(user Identity, resource Resource) (bool, error) {
	if resource == nil {
		return r.rule.Check(user, nil)
	}
	value, err := resolveAttr(resource, r.attr)
	if err != nil {
		return false, configErr(r.attr, err)
	}
	if value == nil {
		return false, nil
	}
	related, ok := value.(Resource)
	if !ok {
		return false, configErr(r.attr,
			fmt.Errorf("relation resolved to %T, want a resource", value))
	}
	return r.rule.Check(user, related)
}

func (r *relationRule) Query(user Identity) (query.Predicate, error) {
	child, err := r.rule.Query(user)
	if err != nil {
		return nil, err
	}
	return query.Prefix(child, query.Path{{Name: r.attr, Kind: query.ToOne}}), nil
}

func (r *relationRule) String() string {
	return fmt.Sprintf("Relation(%s, %v)", r.attr, r.rule)
}

// manyRelationRule applies a nested rule across a to-many relationship.
type manyRelationRule struct {
	attr string
	rule Rule
}

// ManyRelation builds a rule satisfied when at least one resource related
// through the named to-many relationship satisfies the nested rule.
func ManyRelation(attr string, rule Rule) Rule {
	return &manyRelationRule{attr: attr, rule: rule}
}

func (m *manyRelationRule) Check(user Identity, resource Resource) (bool, error) {
	if resource == nil {
		return m.rule.Check(user, nil)
	}
	value, err := resolveAttr(resource, m.attr)
	if err != nil {
		return false, configErr(m.attr, err)
	}
	if value == nil {
		return false, nil
	}
	related, err := pluralValues(value)
	if err != nil {
		return false, configErr(m.attr, err)
	}
	pred, err := m.rule.Query(user)
	if err != nil {
		return false, err
	}
	if pred == query.Empty {
		return false, nil
	}
	for _, item := range related {
		res, ok := item.(Resource)
		if !ok {
			return false, configErr(m.attr,
				fmt.Errorf("relation resolved to %T, want resources", item))
		}
		match, err := Matches(pred, res)
		if err != nil {
			return false, err
		}
		if match {
			return true, nil
		}
	}
	return false, nil
}

func (m *manyRelationRule) Query(user Identity) (query.Predicate, error) {
	child, err := m.rule.Query(user)
	if err != nil {
		return nil, err
	}
	return query.Prefix(child, query.Path{{Name: m.attr, Kind: query.ToMany}}), nil
}

func (m *manyRelationRule) String() string {
	return fmt.Sprintf("ManyRelation(%s, %v)", m.attr, m.rule)
}
