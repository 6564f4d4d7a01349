package rules

import (
	"fmt"

	"github.com/daisylb/bridgekeeper/pkg/query"
)

// Matches evaluates a compiled filter predicate against a single concrete
// resource in memory. It is the reference executor for query.Predicate:
// in-memory collections use it for filtering, and nested relationship
// rules use it to test related resources.
//
// A condition whose path contains a to-many segment matches when at least
// one related resource satisfies it.
func Matches(pred query.Predicate, resource Resource) (bool, error) {
	if pred == query.Universal {
		return true, nil
	}
	if pred == query.Empty {
		return false, nil
	}
	switch p := pred.(type) {
	case *query.Cond:
		values, err := resolvePath(resource, p.Path)
		if err != nil {
			return false, err
		}
		for _, value := range values {
			ok, err := compare(p.Op, value, p.Value)
			if err != nil {
				return false, configErr(p.Path.String(), err)
			}
			if ok {
				return true, nil
			}
		}
		return false, nil
	case *query.And:
		ok, err := Matches(p.Left, resource)
		if err != nil || !ok {
			return false, err
		}
		return Matches(p.Right, resource)
	case *query.Or:
		ok, err := Matches(p.Left, resource)
		if err != nil || ok {
			return ok, err
		}
		return Matches(p.Right, resource)
	case *query.Not:
		ok, err := Matches(p.Inner, resource)
		if err != nil {
			return false, err
		}
		return !ok, nil
	default:
		return false, fmt.Errorf("unknown predicate type: %T", pred)
	}
}
