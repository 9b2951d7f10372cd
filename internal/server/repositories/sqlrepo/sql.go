// Package sqlrepo implements repositories.Repository over database/sql.
// Each collection maps to a table of the same name. Tables carry a hidden
// seq column so that listings come back in insertion order.
package sqlrepo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/dmitrijs2005/msgbox/internal/common"
	"github.com/dmitrijs2005/msgbox/internal/dbx"
	"github.com/dmitrijs2005/msgbox/internal/server/repositories"
)

const uniqueViolation = "23505"

// Repository stores one collection in one table.
type Repository[T any] struct {
	db      *sql.DB
	dialect Dialect
	schema  repositories.Schema[T]
	columns string
}

// New returns a repository for schema backed by db.
func New[T any](db *sql.DB, dialect Dialect, schema repositories.Schema[T]) *Repository[T] {
	return &Repository[T]{
		db:      db,
		dialect: dialect,
		schema:  schema,
		columns: strings.Join(schema.Columns, ", "),
	}
}

func (r *Repository[T]) q(query string) string {
	return dbx.Rebind(r.dialect.Placeholder, query)
}

func (r *Repository[T]) query(ctx context.Context, query string, args ...any) ([]*T, error) {
	rows, err := r.db.QueryContext(ctx, r.q(query), args...)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	out := make([]*T, 0)
	for rows.Next() {
		item, err := r.scan(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return out, nil
}

func (r *Repository[T]) scan(rows *sql.Rows) (*T, error) {
	values := make([]any, len(r.schema.Columns))
	targets := make([]any, len(values))
	for i := range values {
		targets[i] = &values[i]
	}
	if err := rows.Scan(targets...); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}

	rec := make(repositories.Fields, len(values))
	for i, col := range r.schema.Columns {
		rec[col] = values[i]
	}
	item, err := r.schema.Decode(rec)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return item, nil
}

func (r *Repository[T]) FindByID(ctx context.Context, id string) (*T, error) {
	items, err := r.query(ctx,
		fmt.Sprintf(`SELECT %s FROM %s WHERE %s = ?`, r.columns, r.schema.Name, r.schema.IDColumn()),
		id)
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, nil
	}
	return items[0], nil
}

func (r *Repository[T]) FindAll(ctx context.Context) ([]*T, error) {
	return r.query(ctx, fmt.Sprintf(`SELECT %s FROM %s ORDER BY seq`, r.columns, r.schema.Name))
}

func (r *Repository[T]) FindByField(ctx context.Context, field string, value any) ([]*T, error) {
	if err := r.schema.CheckField(field); err != nil {
		return nil, err
	}
	return r.query(ctx,
		fmt.Sprintf(`SELECT %s FROM %s WHERE %s = ? ORDER BY seq`, r.columns, r.schema.Name, field),
		value)
}

// Save inserts item, assigning a fresh id when it has none. The id and the
// unique columns are checked inside the same transaction as the insert.
func (r *Repository[T]) Save(ctx context.Context, item *T) error {
	if r.schema.ID(item) == "" {
		r.schema.SetID(item, uuid.NewString())
	}
	fields := r.schema.Encode(item)

	checkCols := append([]string{r.schema.IDColumn()}, r.schema.Unique...)
	conds := make([]string, len(checkCols))
	checkArgs := make([]any, len(checkCols))
	for i, col := range checkCols {
		conds[i] = col + " = ?"
		checkArgs[i] = fields[col]
	}
	checkQuery := fmt.Sprintf(`SELECT COUNT(*) FROM %s WHERE %s`, r.schema.Name, strings.Join(conds, " OR "))

	marks := make([]string, len(r.schema.Columns))
	args := make([]any, len(r.schema.Columns))
	for i, col := range r.schema.Columns {
		marks[i] = "?"
		args[i] = fields[col]
	}
	insertQuery := fmt.Sprintf(`INSERT INTO %s (%s) VALUES (%s)`, r.schema.Name, r.columns, strings.Join(marks, ", "))

	err := dbx.WithTx(ctx, r.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		var n int
		if err := tx.QueryRowContext(ctx, r.q(checkQuery), checkArgs...).Scan(&n); err != nil {
			return fmt.Errorf("db error: %w", err)
		}
		if n > 0 {
			return fmt.Errorf("%s: %w", r.schema.Name, common.ErrAlreadyExists)
		}
		if _, err := tx.ExecContext(ctx, r.q(insertQuery), args...); err != nil {
			var pgErr *pgconn.PgError
			if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
				return fmt.Errorf("%s: %w", r.schema.Name, common.ErrAlreadyExists)
			}
			return fmt.Errorf("db error: %w", err)
		}
		return nil
	})
	return err
}

// Update sets only the supplied columns of the row with the given id.
func (r *Repository[T]) Update(ctx context.Context, id string, fields repositories.Fields) (bool, error) {
	if err := r.schema.CheckUpdate(fields); err != nil {
		return false, err
	}

	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	sets := make([]string, len(keys))
	args := make([]any, 0, len(keys)+1)
	for i, k := range keys {
		sets[i] = k + " = ?"
		args = append(args, fields[k])
	}
	args = append(args, id)

	query := fmt.Sprintf(`UPDATE %s SET %s WHERE %s = ?`, r.schema.Name, strings.Join(sets, ", "), r.schema.IDColumn())
	return r.exec(ctx, query, args...)
}

// Delete removes the row with the given id. Deleting an absent id returns
// false without error.
func (r *Repository[T]) Delete(ctx context.Context, id string) (bool, error) {
	return r.exec(ctx, fmt.Sprintf(`DELETE FROM %s WHERE %s = ?`, r.schema.Name, r.schema.IDColumn()), id)
}

func (r *Repository[T]) exec(ctx context.Context, query string, args ...any) (bool, error) {
	res, err := r.db.ExecContext(ctx, r.q(query), args...)
	if err != nil {
		return false, fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("db error: %w", err)
	}
	return n > 0, nil
}
