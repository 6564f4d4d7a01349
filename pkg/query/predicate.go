// Package query defines the storage filter specification that rules compile
// into. A Predicate is an abstract description of "which resources match";
// it carries no data access of its own and is handed to a collection
// implementation (in-memory, SQL, ...) for execution.
package query

import "fmt"

// Op is a comparison operator in a Cond predicate.
type Op int

const (
	Eq Op = iota // equal (the default)
	Ne           // not equal
	Lt           // less than
	Lte          // less than or equal
	Gt           // greater than
	Gte          // greater than or equal
	In           // member of a set of values
)

var opNames = map[Op]string{
	Eq:  "==",
	Ne:  "!=",
	Lt:  "<",
	Lte: "<=",
	Gt:  ">",
	Gte: ">=",
	In:  "in",
}

// String returns the operator's surface syntax.
func (o Op) String() string {
	if name, ok := opNames[o]; ok {
		return name
	}
	return fmt.Sprintf("Op(%d)", int(o))
}

// Predicate is a node in a filter specification tree.
//
// The two sentinel values Universal and Empty represent the whole
// collection and the empty collection respectively; they let blanket
// rules short-circuit filtering without touching storage.
type Predicate interface {
	isPredicate()
}

// Cond compares the value at an attribute path against a constant.
// Paths containing a to-many segment use "there exists at least one
// related resource satisfying the rest of the path" semantics.
type Cond struct {
	Path  Path
	Op    Op
	Value interface{}
}

func (*Cond) isPredicate() {}

// String returns a readable form, e.g. "branch.store == 4".
func (c *Cond) String() string {
	return fmt.Sprintf("%s %s %v", c.Path, c.Op, c.Value)
}

// And matches resources satisfying both children.
type And struct {
	Left  Predicate
	Right Predicate
}

func (*And) isPredicate() {}

// Or matches resources satisfying either child.
type Or struct {
	Left  Predicate
	Right Predicate
}

func (*Or) isPredicate() {}

// Not matches resources that do not satisfy the inner predicate.
type Not struct {
	Inner Predicate
}

func (*Not) isPredicate() {}

// sentinel is the type of the Universal and Empty boundary values.
type sentinel struct {
	name string
}

func (*sentinel) isPredicate() {}

func (s *sentinel) String() string {
	return s.name
}

// Universal represents the predicate that matches every resource.
var Universal Predicate = &sentinel{name: "UNIVERSAL"}

// Empty represents the predicate that matches no resource.
var Empty Predicate = &sentinel{name: "EMPTY"}

// AndOf combines two predicates with conjunction, applying the absorption
// identities for the sentinels: anything intersected with Empty is Empty,
// and Universal is the identity element.
func AndOf(left, right Predicate) Predicate {
	if left == Empty || right == Empty {
		return Empty
	}
	if left == Universal {
		return right
	}
	if right == Universal {
		return left
	}
	return &And{Left: left, Right: right}
}

// OrOf combines two predicates with disjunction, applying the absorption
// identities for the sentinels: anything unioned with Universal is
// Universal, and Empty is the identity element.
func OrOf(left, right Predicate) Predicate {
	if left == Universal || right == Universal {
		return Universal
	}
	if left == Empty {
		return right
	}
	if right == Empty {
		return left
	}
	return &Or{Left: left, Right: right}
}

// NotOf negates a predicate. The sentinels invert into each other, and a
// double negation collapses back to the original predicate.
func NotOf(pred Predicate) Predicate {
	if pred == Universal {
		return Empty
	}
	if pred == Empty {
		return Universal
	}
	if n, ok := pred.(*Not); ok {
		return n.Inner
	}
	return &Not{Inner: pred}
}

// Prefix rebases a predicate under a relation path, so that a predicate
// over the related resource becomes a predicate over the referring one.
// The sentinels are unaffected: the universal (or empty) set of related
// resources stays universal (or empty) seen through any relation.
func Prefix(pred Predicate, prefix Path) Predicate {
	switch p := pred.(type) {
	case *sentinel:
		return pred
	case *Cond:
		path := make(Path, 0, len(prefix)+len(p.Path))
		path = append(path, prefix...)
		path = append(path, p.Path...)
		return &Cond{Path: path, Op: p.Op, Value: p.Value}
	case *And:
		return &And{Left: Prefix(p.Left, prefix), Right: Prefix(p.Right, prefix)}
	case *Or:
		return &Or{Left: Prefix(p.Left, prefix), Right: Prefix(p.Right, prefix)}
	case *Not:
		return &Not{Inner: Prefix(p.Inner, prefix)}
	default:
		return pred
	}
}
