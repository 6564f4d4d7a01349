package rules

import (
	"errors"
	"fmt"

	"github.com/daisylb/bridgekeeper/pkg/query"
)

// resolvePath walks a resource along an attribute path and returns every
// value the path resolves to.
//
// Singular segments resolve by direct traversal; a to-many segment fans
// out to all related resources, and the rest of the path is resolved
// against each of them. An absent value on a singular segment mid-path
// (a null relationship) is "no match", not an error: the branch simply
// contributes no values. At the final segment a nil is a value in its
// own right, so equality against nil can see it. An attribute the
// resource does not have at all is a ConfigurationError, except for the
// query.KeyName pseudo-attribute, which falls back to the resource's
// Key.
func resolvePath(resource Resource, path query.Path) ([]interface{}, error) {
	current := []interface{}{resource}
	for i, seg := range path {
		last := i == len(path)-1
		var next []interface{}
		for _, cur := range current {
			if cur == nil {
				continue
			}
			res, ok := cur.(Resource)
			if !ok {
				return nil, configErr(path.String(),
					fmt.Errorf("segment %q reached a non-resource value of type %T", seg.Name, cur))
			}
			value, err := resolveAttr(res, seg.Name)
			if err != nil {
				return nil, configErr(path.String(), err)
			}
			if value == nil {
				if last && seg.Kind != query.ToMany {
					next = append(next, nil)
				}
				continue
			}
			if seg.Kind == query.ToMany {
				related, err := pluralValues(value)
				if err != nil {
					return nil, configErr(path.String(),
						fmt.Errorf("segment %q: %w", seg.Name, err))
				}
				next = append(next, related...)
			} else {
				next = append(next, value)
			}
		}
		current = next
		if len(current) == 0 {
			return nil, nil
		}
	}
	return current, nil
}

// resolveAttr resolves one attribute, treating the primary key
// pseudo-attribute specially for resources that don't expose it as a
// plain field.
func resolveAttr(resource Resource, name string) (interface{}, error) {
	value, err := resource.Attr(name)
	if err != nil && name == query.KeyName && errors.Is(err, ErrUnknownAttribute) {
		if keyed, ok := resource.(Keyed); ok {
			return keyed.Key(), nil
		}
	}
	return value, err
}

// pluralValues normalizes the value of a to-many segment into a slice.
func pluralValues(value interface{}) ([]interface{}, error) {
	switch v := value.(type) {
	case []Resource:
		out := make([]interface{}, len(v))
		for i, r := range v {
			out[i] = r
		}
		return out, nil
	case []interface{}:
		return v, nil
	default:
		return nil, fmt.Errorf("to-many segment resolved to %T, want a resource slice", value)
	}
}
