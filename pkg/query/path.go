package query

import (
	"fmt"
	"strings"
)

// SegmentKind distinguishes the three ways a path segment can resolve.
type SegmentKind int

const (
	// Field is a plain attribute on the resource.
	Field SegmentKind = iota
	// ToOne traverses a singular relationship (one-to-one or many-to-one).
	ToOne
	// ToMany traverses a plural relationship (one-to-many or many-to-many).
	ToMany
)

// KeyName is the well-known pseudo-attribute that resolves to a
// resource's primary key.
const KeyName = "pk"

// Segment is one step in an attribute path.
type Segment struct {
	Name string
	Kind SegmentKind
}

// Path is an ordered sequence of segments, resolved left to right.
// It is parsed or built once at rule construction time, never at
// evaluation time.
type Path []Segment

// KeyPath is the path addressing a resource's primary key.
var KeyPath = Path{{Name: KeyName, Kind: Field}}

// ParsePath parses a dotted attribute path into segments.
//
// Segments are separated by periods. A segment with a "[]" suffix is a
// to-many relationship; any other non-final segment is a to-one
// relationship; the final segment without a suffix is a plain field.
//
//	"name"              -> field
//	"branch.store"      -> to-one, field
//	"members[].branch"  -> to-many, field
func ParsePath(s string) (Path, error) {
	if s == "" {
		return nil, fmt.Errorf("empty attribute path")
	}
	parts := strings.Split(s, ".")
	path := make(Path, 0, len(parts))
	for i, part := range parts {
		kind := Field
		if strings.HasSuffix(part, "[]") {
			part = strings.TrimSuffix(part, "[]")
			kind = ToMany
		} else if i < len(parts)-1 {
			kind = ToOne
		}
		if part == "" {
			return nil, fmt.Errorf("empty segment in attribute path %q", s)
		}
		path = append(path, Segment{Name: part, Kind: kind})
	}
	return path, nil
}

// MustParsePath is like ParsePath but panics on a malformed path.
// It is intended for path literals in rule definitions.
func MustParsePath(s string) Path {
	path, err := ParsePath(s)
	if err != nil {
		panic(err)
	}
	return path
}

// Plural reports whether the path traverses a to-many relationship
// anywhere, meaning it can resolve to more than one value.
func (p Path) Plural() bool {
	for _, seg := range p {
		if seg.Kind == ToMany {
			return true
		}
	}
	return false
}

// String returns the parseable form of the path.
func (p Path) String() string {
	parts := make([]string, len(p))
	for i, seg := range p {
		if seg.Kind == ToMany {
			parts[i] = seg.Name + "[]"
		} else {
			parts[i] = seg.Name
		}
	}
	return strings.Join(parts, ".")
}
