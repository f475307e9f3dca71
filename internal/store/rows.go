package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"slices"
	"strings"
)

// Query restricts and orders the rows returned by Keys and CountWhere.
// Where and OrderBy are SQL fragments over quoted column names; values are
// always passed as Params, never interpolated.
type Query struct {
	Where   string
	Params  []any
	OrderBy string
}

// RestrictTo limits q to the rows whose key is in keys. The keys travel as a
// single JSON array parameter, so any number of them can be bound.
func (q Query) RestrictTo(keys []int64) (Query, error) {
	set, err := encodeValue(KindLinkList, keys)
	if err != nil {
		return Query{}, err
	}
	where := "_key IN (SELECT value FROM json_each(?))"
	if q.Where != "" {
		where += " AND (" + q.Where + ")"
	}
	q.Where = where
	q.Params = append([]any{set}, q.Params...)
	return q, nil
}

// AppendRow adds a row with default values at the end of the table and
// returns its key.
func (s *Store) AppendRow(ctx context.Context, class string) (int64, error) {
	if err := s.requireTx("append row"); err != nil {
		return 0, err
	}
	t := QuoteIdent(TableName(class))
	res, err := s.tx.ExecContext(ctx,
		fmt.Sprintf("INSERT INTO %s (_ndx) VALUES ((SELECT COUNT(*) FROM %s))", t, t))
	if err != nil {
		return 0, Error.Wrap(fmt.Errorf("append row to %s: %w", class, err))
	}
	key, err := res.LastInsertId()
	if err != nil {
		return 0, Error.Wrap(fmt.Errorf("append row to %s: %w", class, err))
	}
	return key, nil
}

// Count returns the number of rows.
func (s *Store) Count(ctx context.Context, class string) (int64, error) {
	return s.CountWhere(ctx, class, Query{})
}

// CountWhere returns the number of rows matching q.
func (s *Store) CountWhere(ctx context.Context, class string, q Query) (int64, error) {
	stmt := "SELECT COUNT(*) FROM " + QuoteIdent(TableName(class))
	if q.Where != "" {
		stmt += " WHERE " + q.Where
	}
	var n int64
	if err := s.q().QueryRowContext(ctx, stmt, q.Params...).Scan(&n); err != nil {
		return 0, Error.Wrap(fmt.Errorf("count %s: %w", class, err))
	}
	return n, nil
}

// Keys returns the keys of the rows matching q, in q's order or row order.
func (s *Store) Keys(ctx context.Context, class string, q Query) ([]int64, error) {
	stmt := "SELECT _key FROM " + QuoteIdent(TableName(class))
	if q.Where != "" {
		stmt += " WHERE " + q.Where
	}
	if q.OrderBy != "" {
		stmt += " ORDER BY " + q.OrderBy + ", _ndx ASC"
	} else {
		stmt += " ORDER BY _ndx ASC"
	}

	rows, err := s.q().QueryContext(ctx, stmt, q.Params...)
	if err != nil {
		return nil, Error.Wrap(fmt.Errorf("query %s: %w", class, err))
	}
	defer rows.Close()

	keys := []int64{}
	for rows.Next() {
		var key int64
		if err := rows.Scan(&key); err != nil {
			return nil, Error.Wrap(fmt.Errorf("scan key: %w", err))
		}
		keys = append(keys, key)
	}
	if err := rows.Err(); err != nil {
		return nil, Error.Wrap(fmt.Errorf("iterate %s: %w", class, err))
	}
	return keys, nil
}

// RowExists reports whether key is a live row of the table.
func (s *Store) RowExists(ctx context.Context, class string, key int64) (bool, error) {
	var n int
	err := s.q().QueryRowContext(ctx,
		"SELECT COUNT(*) FROM "+QuoteIdent(TableName(class))+" WHERE _key = ?", key,
	).Scan(&n)
	if err != nil {
		return false, Error.Wrap(fmt.Errorf("lookup row %s/%d: %w", class, key, err))
	}
	return n > 0, nil
}

// RowIndex returns the current row index of key.
func (s *Store) RowIndex(ctx context.Context, class string, key int64) (int64, error) {
	var ndx int64
	err := s.q().QueryRowContext(ctx,
		"SELECT _ndx FROM "+QuoteIdent(TableName(class))+" WHERE _key = ?", key,
	).Scan(&ndx)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, ErrRowNotFound.New("%s/%d", class, key)
	}
	if err != nil {
		return 0, Error.Wrap(fmt.Errorf("row index %s/%d: %w", class, key, err))
	}
	return ndx, nil
}

// FindFirstInt returns the first row whose column equals v.
func (s *Store) FindFirstInt(ctx context.Context, class string, col *Column, v int64) (int64, bool, error) {
	return s.findFirst(ctx, class, col, v)
}

// FindFirstString returns the first row whose column equals v.
func (s *Store) FindFirstString(ctx context.Context, class string, col *Column, v string) (int64, bool, error) {
	return s.findFirst(ctx, class, col, v)
}

// FindFirstNull returns the first row whose column is null.
func (s *Store) FindFirstNull(ctx context.Context, class string, col *Column) (int64, bool, error) {
	return s.findFirst(ctx, class, col, nil)
}

func (s *Store) findFirst(ctx context.Context, class string, col *Column, v any) (int64, bool, error) {
	cond := QuoteIdent(col.physical()) + " = ?"
	args := []any{v}
	if v == nil {
		cond = QuoteIdent(col.physical()) + " IS NULL"
		args = nil
	}

	var key int64
	err := s.q().QueryRowContext(ctx,
		"SELECT _key FROM "+QuoteIdent(TableName(class))+" WHERE "+cond+" ORDER BY _ndx LIMIT 1",
		args...,
	).Scan(&key)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, Error.Wrap(fmt.Errorf("find %s.%s: %w", class, col.Name, err))
	}
	return key, true, nil
}

// Get reads one cell in its normalized type.
func (s *Store) Get(ctx context.Context, class string, key int64, col *Column) (any, error) {
	var raw any
	err := s.q().QueryRowContext(ctx,
		"SELECT "+QuoteIdent(col.physical())+" FROM "+QuoteIdent(TableName(class))+" WHERE _key = ?", key,
	).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrRowNotFound.New("%s/%d", class, key)
	}
	if err != nil {
		return nil, Error.Wrap(fmt.Errorf("get %s.%s: %w", class, col.Name, err))
	}
	return decodeValue(col.Kind, raw)
}

// ReadRow reads several cells of one row, keyed by column name.
func (s *Store) ReadRow(ctx context.Context, class string, key int64, cols []Column) (map[string]any, error) {
	out := make(map[string]any, len(cols))
	if len(cols) == 0 {
		ok, err := s.RowExists(ctx, class, key)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, ErrRowNotFound.New("%s/%d", class, key)
		}
		return out, nil
	}

	names := make([]string, len(cols))
	for i := range cols {
		names[i] = QuoteIdent(cols[i].physical())
	}
	raw := make([]any, len(cols))
	dest := make([]any, len(cols))
	for i := range raw {
		dest[i] = &raw[i]
	}

	err := s.q().QueryRowContext(ctx,
		"SELECT "+strings.Join(names, ", ")+" FROM "+QuoteIdent(TableName(class))+" WHERE _key = ?", key,
	).Scan(dest...)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrRowNotFound.New("%s/%d", class, key)
	}
	if err != nil {
		return nil, Error.Wrap(fmt.Errorf("read row %s/%d: %w", class, key, err))
	}

	for i := range cols {
		v, err := decodeValue(cols[i].Kind, raw[i])
		if err != nil {
			return nil, fmt.Errorf("%s.%s: %w", class, cols[i].Name, err)
		}
		out[cols[i].Name] = v
	}
	return out, nil
}

// Set writes one cell from its normalized type.
func (s *Store) Set(ctx context.Context, class string, key int64, col *Column, v any) error {
	if err := s.requireTx("set value"); err != nil {
		return err
	}
	if v == nil && !col.Nullable && col.Kind != KindLinkList {
		return Error.New("%s.%s is not nullable", class, col.Name)
	}
	enc, err := encodeValue(col.Kind, v)
	if err != nil {
		return fmt.Errorf("%s.%s: %w", class, col.Name, err)
	}

	res, err := s.tx.ExecContext(ctx,
		"UPDATE "+QuoteIdent(TableName(class))+" SET "+QuoteIdent(col.physical())+" = ? WHERE _key = ?",
		enc, key)
	if err != nil {
		return Error.Wrap(fmt.Errorf("set %s.%s: %w", class, col.Name, err))
	}
	n, err := res.RowsAffected()
	if err != nil {
		return Error.Wrap(fmt.Errorf("set %s.%s: %w", class, col.Name, err))
	}
	if n == 0 {
		return ErrRowNotFound.New("%s/%d", class, key)
	}
	return nil
}

// RemoveRowBySwap deletes a row in O(1) index maintenance: the last row takes
// over the removed row's index. Links to the removed row are cleared and it is
// dropped from every link list that contains it.
func (s *Store) RemoveRowBySwap(ctx context.Context, class string, key int64) error {
	if err := s.requireTx("remove row"); err != nil {
		return err
	}
	ndx, err := s.RowIndex(ctx, class, key)
	if err != nil {
		return err
	}
	count, err := s.Count(ctx, class)
	if err != nil {
		return err
	}

	t := QuoteIdent(TableName(class))
	if _, err := s.tx.ExecContext(ctx, "DELETE FROM "+t+" WHERE _key = ?", key); err != nil {
		return Error.Wrap(fmt.Errorf("remove %s/%d: %w", class, key, err))
	}
	if last := count - 1; ndx != last {
		if _, err := s.tx.ExecContext(ctx,
			"UPDATE "+t+" SET _ndx = ? WHERE _ndx = ?", ndx, last); err != nil {
			return Error.Wrap(fmt.Errorf("reindex %s: %w", class, err))
		}
	}
	return s.unlink(ctx, class, []int64{key})
}

// Clear removes every row of the table and every link to them.
func (s *Store) Clear(ctx context.Context, class string) error {
	if err := s.requireTx("clear table"); err != nil {
		return err
	}
	keys, err := s.Keys(ctx, class, Query{})
	if err != nil {
		return err
	}
	if _, err := s.tx.ExecContext(ctx, "DELETE FROM "+QuoteIdent(TableName(class))); err != nil {
		return Error.Wrap(fmt.Errorf("clear %s: %w", class, err))
	}
	if len(keys) == 0 {
		return nil
	}
	return s.unlink(ctx, class, keys)
}

// unlink removes references to the given rows of target from every table.
func (s *Store) unlink(ctx context.Context, target string, keys []int64) error {
	spec, err := s.Describe(ctx)
	if err != nil {
		return err
	}
	removed := make(map[int64]bool, len(keys))
	for _, k := range keys {
		removed[k] = true
	}

	for _, t := range spec.Tables {
		for i := range t.Columns {
			col := &t.Columns[i]
			if col.Target != target {
				continue
			}
			switch col.Kind {
			case KindLink:
				if err := s.nullLinks(ctx, t.Name, col); err != nil {
					return err
				}
			case KindLinkList:
				if err := s.pruneLinkLists(ctx, t.Name, col, removed); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

// nullLinks clears links of class.col whose target row no longer exists. It
// runs after the rows are deleted, so the statement binds no per-key
// parameters and works for any number of removed rows.
func (s *Store) nullLinks(ctx context.Context, class string, col *Column) error {
	c := QuoteIdent(col.Name)
	_, err := s.tx.ExecContext(ctx,
		"UPDATE "+QuoteIdent(TableName(class))+" SET "+c+" = NULL WHERE "+c+" IS NOT NULL AND "+
			c+" NOT IN (SELECT _key FROM "+QuoteIdent(TableName(col.Target))+")")
	if err != nil {
		return Error.Wrap(fmt.Errorf("clear links %s.%s: %w", class, col.Name, err))
	}
	return nil
}

func (s *Store) pruneLinkLists(ctx context.Context, class string, col *Column, removed map[int64]bool) error {
	c := QuoteIdent(col.Name)
	rows, err := s.tx.QueryContext(ctx,
		"SELECT _key, "+c+" FROM "+QuoteIdent(TableName(class))+" WHERE "+c+" != '[]'")
	if err != nil {
		return Error.Wrap(fmt.Errorf("scan link lists %s.%s: %w", class, col.Name, err))
	}

	updates := map[int64][]int64{}
	for rows.Next() {
		var key int64
		var raw any
		if err := rows.Scan(&key, &raw); err != nil {
			rows.Close()
			return Error.Wrap(fmt.Errorf("scan link list: %w", err))
		}
		v, err := decodeValue(KindLinkList, raw)
		if err != nil {
			rows.Close()
			return err
		}
		list := v.([]int64)
		pruned := slices.DeleteFunc(slices.Clone(list), func(k int64) bool { return removed[k] })
		if len(pruned) != len(list) {
			updates[key] = pruned
		}
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return Error.Wrap(fmt.Errorf("iterate link lists: %w", err))
	}
	rows.Close()

	for key, list := range updates {
		if err := s.Set(ctx, class, key, col, list); err != nil {
			return err
		}
	}
	return nil
}
