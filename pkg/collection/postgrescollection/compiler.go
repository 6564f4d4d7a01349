package postgrescollection

import (
	"fmt"
	"strings"

	"github.com/lib/pq"

	"github.com/daisylb/bridgekeeper/pkg/query"
	"github.com/daisylb/bridgekeeper/pkg/rules"
)

// compiler turns a predicate tree into one WHERE clause, accumulating
// bind parameters as it goes. Each relationship hop gets a fresh table
// alias so nested EXISTS sub-queries never collide.
type compiler struct {
	args    []interface{}
	aliases int
}

func (c *compiler) bind(value interface{}) string {
	c.args = append(c.args, value)
	return fmt.Sprintf("$%d", len(c.args))
}

func (c *compiler) alias() string {
	c.aliases++
	return fmt.Sprintf("t%d", c.aliases)
}

// compile compiles a predicate over the given table, with alias naming
// the table in the surrounding FROM clause. The sentinels compile to
// constant conditions so blanket terms cost the database nothing.
func (c *compiler) compile(table *Table, alias string, pred query.Predicate) (string, error) {
	if pred == query.Universal {
		return "TRUE", nil
	}
	if pred == query.Empty {
		return "FALSE", nil
	}
	switch p := pred.(type) {
	case *query.Cond:
		return c.compilePath(table, alias, p.Path, p.Op, p.Value)
	case *query.And:
		left, err := c.compile(table, alias, p.Left)
		if err != nil {
			return "", err
		}
		right, err := c.compile(table, alias, p.Right)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("(%s AND %s)", left, right), nil
	case *query.Or:
		left, err := c.compile(table, alias, p.Left)
		if err != nil {
			return "", err
		}
		right, err := c.compile(table, alias, p.Right)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("(%s OR %s)", left, right), nil
	case *query.Not:
		inner, err := c.compile(table, alias, p.Inner)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("NOT (%s)", inner), nil
	default:
		return "", fmt.Errorf("unknown predicate type: %T", pred)
	}
}

// compilePath compiles one condition, consuming the path segment by
// segment. Relationship segments become EXISTS sub-queries; the final
// segment becomes a column comparison.
func (c *compiler) compilePath(table *Table, alias string, path query.Path, op query.Op, value interface{}) (string, error) {
	if len(path) == 0 {
		return "", fmt.Errorf("empty path in condition")
	}
	seg := path[0]
	if len(path) == 1 {
		column, err := table.column(seg.Name)
		if err != nil {
			return "", err
		}
		return c.compileComparison(alias, column, op, value)
	}

	rel, err := table.relation(seg.Name)
	if err != nil {
		return "", err
	}
	inner := c.alias()
	rest, err := c.compilePath(rel.Target, inner, path[1:], op, value)
	if err != nil {
		return "", err
	}

	switch rel.Kind {
	case ToOne:
		return fmt.Sprintf("EXISTS (SELECT 1 FROM %s %s WHERE %s.%s = %s.%s AND %s)",
			rel.Target.Name, inner, inner, rel.Target.PK, alias, rel.Column, rest), nil
	case ToMany:
		return fmt.Sprintf("EXISTS (SELECT 1 FROM %s %s WHERE %s.%s = %s.%s AND %s)",
			rel.Target.Name, inner, inner, rel.TargetColumn, alias, table.PK, rest), nil
	case ManyToMany:
		join := c.alias()
		return fmt.Sprintf(
			"EXISTS (SELECT 1 FROM %s %s JOIN %s %s ON %s.%s = %s.%s WHERE %s.%s = %s.%s AND %s)",
			rel.JoinTable, join, rel.Target.Name, inner,
			inner, rel.Target.PK, join, rel.JoinTargetColumn,
			join, rel.JoinSourceColumn, alias, table.PK, rest), nil
	default:
		return "", fmt.Errorf("unknown relation kind: %d", rel.Kind)
	}
}

func (c *compiler) compileComparison(alias, column string, op query.Op, value interface{}) (string, error) {
	// A keyed resource compares by its primary key value.
	if keyed, ok := value.(rules.Keyed); ok {
		value = keyed.Key()
	}

	lhs := fmt.Sprintf("%s.%s", alias, column)
	switch op {
	case query.Eq:
		if value == nil {
			return lhs + " IS NULL", nil
		}
		return fmt.Sprintf("%s = %s", lhs, c.bind(value)), nil
	case query.Ne:
		if value == nil {
			return lhs + " IS NOT NULL", nil
		}
		// A null attribute is unequal to any concrete value; bare <>
		// would drop those rows.
		return fmt.Sprintf("(%s <> %s OR %s IS NULL)", lhs, c.bind(value), lhs), nil
	case query.Lt:
		return fmt.Sprintf("%s < %s", lhs, c.bind(value)), nil
	case query.Lte:
		return fmt.Sprintf("%s <= %s", lhs, c.bind(value)), nil
	case query.Gt:
		return fmt.Sprintf("%s > %s", lhs, c.bind(value)), nil
	case query.Gte:
		return fmt.Sprintf("%s >= %s", lhs, c.bind(value)), nil
	case query.In:
		members, ok := value.([]interface{})
		if !ok {
			return "", fmt.Errorf("operator %v needs a slice of values, got %T", op, value)
		}
		if len(members) == 0 {
			// Membership in the empty set can never hold.
			return "FALSE", nil
		}
		keys := make([]interface{}, len(members))
		for i, member := range members {
			if keyed, ok := member.(rules.Keyed); ok {
				keys[i] = keyed.Key()
			} else {
				keys[i] = member
			}
		}
		return fmt.Sprintf("%s = ANY(%s)", lhs, c.bind(pq.Array(keys))), nil
	default:
		return "", fmt.Errorf("unknown comparison operator: %v", op)
	}
}

// whereClause compiles a conjunction of predicates for the root table.
func whereClause(table *Table, alias string, preds []query.Predicate) (string, []interface{}, error) {
	if len(preds) == 0 {
		return "TRUE", nil, nil
	}
	c := &compiler{}
	clauses := make([]string, 0, len(preds))
	for _, pred := range preds {
		clause, err := c.compile(table, alias, pred)
		if err != nil {
			return "", nil, err
		}
		clauses = append(clauses, clause)
	}
	return strings.Join(clauses, " AND "), c.args, nil
}
