// Package postgrescollection implements the rules.Collection contract on
// top of PostgreSQL. A rule's compiled predicate is translated into a
// WHERE clause, with relationship traversal expressed as EXISTS
// sub-queries, and executed once when the collection is materialized.
// Filtering itself never loads rows, so composing Where calls stays
// cheap and pagination is a plain LIMIT/OFFSET on the final query.
package postgrescollection

import (
	"fmt"

	"github.com/daisylb/bridgekeeper/pkg/query"
	"github.com/daisylb/bridgekeeper/pkg/rules"
)

// RelationKind describes how two tables are connected.
type RelationKind int

const (
	// ToOne is a foreign key on this table pointing at the target.
	ToOne RelationKind = iota
	// ToMany is a foreign key on the target table pointing back here.
	ToMany
	// ManyToMany connects the tables through a join table.
	ManyToMany
)

// Relation maps a named relationship onto table plumbing.
type Relation struct {
	Kind   RelationKind
	Target *Table

	// Column is the foreign key column on this table (ToOne only).
	Column string

	// TargetColumn is the foreign key column on the target table
	// referencing this table's primary key (ToMany only).
	TargetColumn string

	// JoinTable, JoinSourceColumn and JoinTargetColumn describe the join
	// table (ManyToMany only): JoinSourceColumn references this table's
	// primary key, JoinTargetColumn the target's.
	JoinTable        string
	JoinSourceColumn string
	JoinTargetColumn string
}

// Table maps rule attribute names onto a database table. It is the
// schema knowledge the predicate compiler needs: which column a field
// lives in, and how relationships join.
type Table struct {
	Name string

	// PK is the primary key column. The query.KeyName pseudo-attribute
	// resolves to it.
	PK string

	// Columns maps attribute names to column names.
	Columns map[string]string

	// Relations maps relationship names to their join descriptions.
	Relations map[string]*Relation
}

// column resolves a terminal path segment to a column name. A to-one
// relationship used as a terminal segment compares by foreign key, so a
// related resource can be matched directly.
func (t *Table) column(name string) (string, error) {
	if name == query.KeyName {
		return t.PK, nil
	}
	if col, ok := t.Columns[name]; ok {
		return col, nil
	}
	if rel, ok := t.Relations[name]; ok && rel.Kind == ToOne {
		return rel.Column, nil
	}
	return "", &rules.ConfigurationError{
		Path: name,
		Err:  fmt.Errorf("%w: table %s has no column or to-one relation %q", rules.ErrUnknownAttribute, t.Name, name),
	}
}

// relation resolves a non-terminal path segment.
func (t *Table) relation(name string) (*Relation, error) {
	if rel, ok := t.Relations[name]; ok {
		return rel, nil
	}
	return nil, &rules.ConfigurationError{
		Path: name,
		Err:  fmt.Errorf("%w: table %s has no relation %q", rules.ErrUnknownAttribute, t.Name, name),
	}
}
