package rules

import (
	"fmt"
	"reflect"
	"time"

	"github.com/daisylb/bridgekeeper/pkg/query"
)

// compare applies a comparison operator to a resolved attribute value and
// an expected value. Equality on two keyed resources compares their keys,
// so a to-one relationship can be matched directly against an
// identity-derived resource.
func compare(op query.Op, got, want interface{}) (bool, error) {
	switch op {
	case query.Eq:
		return valuesEqual(got, want), nil
	case query.Ne:
		return !valuesEqual(got, want), nil
	case query.In:
		members, err := pluralValues(want)
		if err != nil {
			return false, fmt.Errorf("operator %v needs a slice of values: %w", op, err)
		}
		for _, member := range members {
			if valuesEqual(got, member) {
				return true, nil
			}
		}
		return false, nil
	case query.Lt, query.Lte, query.Gt, query.Gte:
		// An ordering against a null never holds, matching SQL.
		if got == nil || want == nil {
			return false, nil
		}
		cmp, err := orderValues(got, want)
		if err != nil {
			return false, err
		}
		switch op {
		case query.Lt:
			return cmp < 0, nil
		case query.Lte:
			return cmp <= 0, nil
		case query.Gt:
			return cmp > 0, nil
		default:
			return cmp >= 0, nil
		}
	default:
		return false, fmt.Errorf("unknown comparison operator: %v", op)
	}
}

// valuesEqual is the equality used by rule evaluation. Numeric values
// compare by magnitude regardless of their Go type, and keyed resources
// compare by key.
func valuesEqual(a, b interface{}) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	if ak, ok := a.(Keyed); ok {
		if bk, ok := b.(Keyed); ok {
			return valuesEqual(ak.Key(), bk.Key())
		}
	}
	if af, ok := numeric(a); ok {
		if bf, ok := numeric(b); ok {
			return af == bf
		}
	}
	if at, ok := a.(time.Time); ok {
		if bt, ok := b.(time.Time); ok {
			return at.Equal(bt)
		}
	}
	return reflect.DeepEqual(a, b)
}

// orderValues compares two ordered values, returning -1, 0 or 1. Only
// numbers, strings and times have an ordering.
func orderValues(a, b interface{}) (int, error) {
	if af, ok := numeric(a); ok {
		if bf, ok := numeric(b); ok {
			switch {
			case af < bf:
				return -1, nil
			case af > bf:
				return 1, nil
			default:
				return 0, nil
			}
		}
	}
	if as, ok := a.(string); ok {
		if bs, ok := b.(string); ok {
			switch {
			case as < bs:
				return -1, nil
			case as > bs:
				return 1, nil
			default:
				return 0, nil
			}
		}
	}
	if at, ok := a.(time.Time); ok {
		if bt, ok := b.(time.Time); ok {
			switch {
			case at.Before(bt):
				return -1, nil
			case at.After(bt):
				return 1, nil
			default:
				return 0, nil
			}
		}
	}
	return 0, fmt.Errorf("values of type %T and %T have no ordering", a, b)
}

// numeric widens any integer or float value to float64 for comparison.
func numeric(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int8:
		return float64(n), true
	case int16:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint8:
		return float64(n), true
	case uint16:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	default:
		return 0, false
	}
}
