// Package memorycollection provides an in-memory implementation of the
// rules.Collection contract, backed by a plain resource slice. It is the
// reference collaborator for filter mode: predicates are executed with
// rules.Matches, so filtering agrees with Check by construction. Input
// ordering is preserved.
package memorycollection

import (
	"github.com/daisylb/bridgekeeper/pkg/query"
	"github.com/daisylb/bridgekeeper/pkg/rules"
)

// Collection is an immutable in-memory resource collection. Where
// composes lazily: predicates accumulate and are evaluated when the
// contents are materialized with Resources, Count or Contains.
type Collection struct {
	items []rules.Resource
	preds []query.Predicate
}

// New creates a collection over the given resources.
func New(items ...rules.Resource) *Collection {
	return &Collection{items: items}
}

// Where returns a collection narrowed to resources matching pred. The
// receiver is unchanged.
func (c *Collection) Where(pred query.Predicate) rules.Collection {
	preds := make([]query.Predicate, 0, len(c.preds)+1)
	preds = append(preds, c.preds...)
	preds = append(preds, pred)
	return &Collection{items: c.items, preds: preds}
}

// None returns an empty collection.
func (c *Collection) None() rules.Collection {
	return &Collection{}
}

// Resources materializes the collection's contents in their original
// order.
func (c *Collection) Resources() ([]rules.Resource, error) {
	if len(c.preds) == 0 {
		out := make([]rules.Resource, len(c.items))
		copy(out, c.items)
		return out, nil
	}
	var out []rules.Resource
	for _, item := range c.items {
		ok, err := c.matches(item)
		if err != nil {
			return nil, err
		}
		if ok {
			out = append(out, item)
		}
	}
	return out, nil
}

// Count returns the number of resources in the collection.
func (c *Collection) Count() (int, error) {
	items, err := c.Resources()
	if err != nil {
		return 0, err
	}
	return len(items), nil
}

// Contains reports whether the given resource is in the collection.
// Keyed resources are located by key, with the same equality rule
// evaluation uses, so keys of different numeric types still meet.
func (c *Collection) Contains(resource rules.Resource) (bool, error) {
	items, err := c.Resources()
	if err != nil {
		return false, err
	}
	var keyPred *query.Cond
	if keyed, ok := resource.(rules.Keyed); ok {
		keyPred = &query.Cond{Path: query.KeyPath, Op: query.Eq, Value: keyed.Key()}
	}
	for _, item := range items {
		if item == resource {
			return true, nil
		}
		if keyPred == nil {
			continue
		}
		if _, ok := item.(rules.Keyed); !ok {
			continue
		}
		match, err := rules.Matches(keyPred, item)
		if err != nil {
			return false, err
		}
		if match {
			return true, nil
		}
	}
	return false, nil
}

func (c *Collection) matches(item rules.Resource) (bool, error) {
	for _, pred := range c.preds {
		ok, err := rules.Matches(pred, item)
		if err != nil || !ok {
			return false, err
		}
	}
	return true, nil
}
