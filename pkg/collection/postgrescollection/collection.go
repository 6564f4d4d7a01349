package postgrescollection

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/daisylb/bridgekeeper/pkg/query"
	"github.com/daisylb/bridgekeeper/pkg/rules"
)

// Collection is a lazy, re-filterable view over one table. Where only
// records the predicate; SQL runs when the collection is materialized
// with All, IDs, Count or Exists. Results are ordered by primary key so
// repeated reads are stable.
type Collection struct {
	db     *sql.DB
	table  *Table
	preds  []query.Predicate
	limit  int
	offset int
}

// New creates a collection over every row of the given table.
func New(db *sql.DB, table *Table) *Collection {
	return &Collection{db: db, table: table}
}

// Where returns a collection narrowed to rows matching pred. The
// receiver is unchanged.
func (c *Collection) Where(pred query.Predicate) rules.Collection {
	return c.with(pred)
}

// None returns an empty collection over the same table.
func (c *Collection) None() rules.Collection {
	return c.with(query.Empty)
}

func (c *Collection) with(pred query.Predicate) *Collection {
	preds := make([]query.Predicate, 0, len(c.preds)+1)
	preds = append(preds, c.preds...)
	preds = append(preds, pred)
	return &Collection{db: c.db, table: c.table, preds: preds, limit: c.limit, offset: c.offset}
}

// Slice returns a collection restricted to a page of results. A zero
// limit means no limit.
func (c *Collection) Slice(offset, limit int) *Collection {
	out := c.with(query.Universal)
	out.offset = offset
	out.limit = limit
	return out
}

func (c *Collection) selectQuery(columns string) (string, []interface{}, error) {
	where, args, err := whereClause(c.table, "t0", c.preds)
	if err != nil {
		return "", nil, err
	}
	q := fmt.Sprintf("SELECT %s FROM %s t0 WHERE %s ORDER BY t0.%s",
		columns, c.table.Name, where, c.table.PK)
	if c.limit > 0 {
		q += fmt.Sprintf(" LIMIT %d", c.limit)
	}
	if c.offset > 0 {
		q += fmt.Sprintf(" OFFSET %d", c.offset)
	}
	return q, args, nil
}

// IDs materializes the primary keys of every row in the collection.
func (c *Collection) IDs(ctx context.Context) ([]interface{}, error) {
	q, args, err := c.selectQuery("t0." + c.table.PK)
	if err != nil {
		return nil, err
	}
	rows, err := c.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query collection ids: %w", err)
	}
	defer rows.Close()

	var ids []interface{}
	for rows.Next() {
		var id interface{}
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan collection id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating collection ids: %w", err)
	}
	return ids, nil
}

// All materializes every row in the collection as column name to value
// maps.
func (c *Collection) All(ctx context.Context) ([]map[string]interface{}, error) {
	q, args, err := c.selectQuery("t0.*")
	if err != nil {
		return nil, err
	}
	rows, err := c.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query collection: %w", err)
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("failed to read result columns: %w", err)
	}

	var out []map[string]interface{}
	for rows.Next() {
		values := make([]interface{}, len(columns))
		targets := make([]interface{}, len(columns))
		for i := range values {
			targets[i] = &values[i]
		}
		if err := rows.Scan(targets...); err != nil {
			return nil, fmt.Errorf("failed to scan collection row: %w", err)
		}
		row := make(map[string]interface{}, len(columns))
		for i, column := range columns {
			row[column] = values[i]
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating collection rows: %w", err)
	}
	return out, nil
}

// Count returns the number of rows in the collection.
func (c *Collection) Count(ctx context.Context) (int, error) {
	where, args, err := whereClause(c.table, "t0", c.preds)
	if err != nil {
		return 0, err
	}
	q := fmt.Sprintf("SELECT COUNT(*) FROM %s t0 WHERE %s", c.table.Name, where)
	var count int
	if err := c.db.QueryRowContext(ctx, q, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count collection: %w", err)
	}
	return count, nil
}

// Exists reports whether the collection contains at least one row.
func (c *Collection) Exists(ctx context.Context) (bool, error) {
	where, args, err := whereClause(c.table, "t0", c.preds)
	if err != nil {
		return false, err
	}
	q := fmt.Sprintf("SELECT EXISTS (SELECT 1 FROM %s t0 WHERE %s)", c.table.Name, where)
	var exists bool
	if err := c.db.QueryRowContext(ctx, q, args...).Scan(&exists); err != nil {
		return false, fmt.Errorf("failed to check collection existence: %w", err)
	}
	return exists, nil
}
