package persist

import (
	"database/sql"
	"fmt"

	"github.com/openastro/astrocore/xerr"
)

// Adapter binds a Go type T to a single sqlite table, per spec §4.G's
// Adapter<T> contract (tablename/createstatement/row_to_object/
// object_to_updatespec). Columns/Scan/Values replace the spec's
// row-as-generic-map shape with a typed, ordered column list: callers get
// compile-time checked Scan destinations instead of a map[string]any bag.
// Scan is handed a row whose columns are (id, Columns()...), in that order,
// and is responsible for assigning the scanned id onto T itself (every
// concrete record type in this module carries its own ID field).
type Adapter[T any] interface {
	// TableName is the bare table name (no quoting).
	TableName() string
	// CreateStatement is a full "CREATE TABLE IF NOT EXISTS ..." statement,
	// including the "id INTEGER PRIMARY KEY AUTOINCREMENT" column, or "" when
	// the embedded migration creates the table (every adapter in this
	// package returns "").
	CreateStatement() string
	// Columns lists every column other than id, in the order Values and
	// Scan agree on.
	Columns() []string
	// Scan reads one row (id followed by Columns(), in that order) into a T.
	Scan(row *sql.Rows) (T, error)
	// Values returns the column values of obj in Columns() order, for
	// INSERT/UPDATE.
	Values(obj T) []any
}

// Table is the generic persistence port of spec §4.G: add/update/byid/
// selectids/selectrows/remove/count/exists/id over an Adapter[T].
type Table[T any] struct {
	db      *sql.DB
	adapter Adapter[T]
	table   string
	cols    []string
}

// NewTable creates (if necessary) the backing table and returns a Table
// bound to it.
func NewTable[T any](db *sql.DB, adapter Adapter[T]) (*Table[T], error) {
	if _, err := db.Exec(adapter.CreateStatement()); err != nil {
		return nil, fmt.Errorf("%w: creating table %s: %v", xerr.BadDatabase, adapter.TableName(), err)
	}
	return &Table[T]{db: db, adapter: adapter, table: adapter.TableName(), cols: adapter.Columns()}, nil
}

func (t *Table[T]) selectCols() string {
	s := "id"
	for _, c := range t.cols {
		s += ", " + c
	}
	return s
}

func placeholders(n int) string {
	s := ""
	for i := 0; i < n; i++ {
		if i > 0 {
			s += ", "
		}
		s += "?"
	}
	return s
}

func colList(cols []string) string {
	s := ""
	for i, c := range cols {
		if i > 0 {
			s += ", "
		}
		s += c
	}
	return s
}

// Add inserts obj and returns its newly assigned id.
func (t *Table[T]) Add(obj T) (int64, error) {
	q := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)", t.table, colList(t.cols), placeholders(len(t.cols)))
	res, err := t.db.Exec(q, t.adapter.Values(obj)...)
	if err != nil {
		return 0, fmt.Errorf("%w: inserting into %s: %v", xerr.BadDatabase, t.table, err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("%w: reading last insert id from %s: %v", xerr.BadDatabase, t.table, err)
	}
	return id, nil
}

// Update overwrites the row at id with obj's column values.
func (t *Table[T]) Update(id int64, obj T) error {
	set := ""
	for i, c := range t.cols {
		if i > 0 {
			set += ", "
		}
		set += c + " = ?"
	}
	q := fmt.Sprintf("UPDATE %s SET %s WHERE id = ?", t.table, set)
	args := append(t.adapter.Values(obj), id)
	res, err := t.db.Exec(q, args...)
	if err != nil {
		return fmt.Errorf("%w: updating %s id=%d: %v", xerr.BadDatabase, t.table, id, err)
	}
	n, err := res.RowsAffected()
	if err == nil && n == 0 {
		return fmt.Errorf("%s id=%d: %w", t.table, id, xerr.NotFound)
	}
	return nil
}

// ByID returns the row at id.
func (t *Table[T]) ByID(id int64) (T, error) {
	var zero T
	q := fmt.Sprintf("SELECT %s FROM %s WHERE id = ?", t.selectCols(), t.table)
	rows, err := t.db.Query(q, id)
	if err != nil {
		return zero, fmt.Errorf("%w: querying %s id=%d: %v", xerr.BadDatabase, t.table, id, err)
	}
	defer rows.Close()
	if !rows.Next() {
		return zero, fmt.Errorf("%s id=%d: %w", t.table, id, xerr.NotFound)
	}
	obj, err := t.adapter.Scan(rows)
	if err != nil {
		return zero, fmt.Errorf("%w: scanning %s id=%d: %v", xerr.BadDatabase, t.table, id, err)
	}
	return obj, nil
}

// whereClause renders "" as "1=1" so callers can pass an empty condition to
// mean "every row", matching spec §4.G's selectids(condition)/count(condition)
// contract where an empty condition selects everything.
func whereClause(where string) string {
	if where == "" {
		return "1=1"
	}
	return where
}

// SelectIDs returns the ids of every row matching where (a raw SQL boolean
// expression over the table's columns; "" matches every row).
func (t *Table[T]) SelectIDs(where string, args ...any) ([]int64, error) {
	q := fmt.Sprintf("SELECT id FROM %s WHERE %s", t.table, whereClause(where))
	rows, err := t.db.Query(q, args...)
	if err != nil {
		return nil, fmt.Errorf("%w: querying %s: %v", xerr.BadDatabase, t.table, err)
	}
	defer rows.Close()
	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("%w: scanning %s.id: %v", xerr.BadDatabase, t.table, err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// SelectRows returns every row matching where, fully scanned.
func (t *Table[T]) SelectRows(where string, args ...any) ([]T, error) {
	q := fmt.Sprintf("SELECT %s FROM %s WHERE %s", t.selectCols(), t.table, whereClause(where))
	rows, err := t.db.Query(q, args...)
	if err != nil {
		return nil, fmt.Errorf("%w: querying %s: %v", xerr.BadDatabase, t.table, err)
	}
	defer rows.Close()
	var out []T
	for rows.Next() {
		obj, err := t.adapter.Scan(rows)
		if err != nil {
			return nil, fmt.Errorf("%w: scanning %s row: %v", xerr.BadDatabase, t.table, err)
		}
		out = append(out, obj)
	}
	return out, rows.Err()
}

// Remove deletes the row at id.
func (t *Table[T]) Remove(id int64) error {
	res, err := t.db.Exec(fmt.Sprintf("DELETE FROM %s WHERE id = ?", t.table), id)
	if err != nil {
		return fmt.Errorf("%w: deleting from %s id=%d: %v", xerr.BadDatabase, t.table, id, err)
	}
	n, err := res.RowsAffected()
	if err == nil && n == 0 {
		return fmt.Errorf("%s id=%d: %w", t.table, id, xerr.NotFound)
	}
	return nil
}

// RemoveWhere deletes every row matching where and returns the count removed.
func (t *Table[T]) RemoveWhere(where string, args ...any) (int64, error) {
	res, err := t.db.Exec(fmt.Sprintf("DELETE FROM %s WHERE %s", t.table, whereClause(where)), args...)
	if err != nil {
		return 0, fmt.Errorf("%w: deleting from %s: %v", xerr.BadDatabase, t.table, err)
	}
	return res.RowsAffected()
}

// Count returns the number of rows matching where.
func (t *Table[T]) Count(where string, args ...any) (int64, error) {
	var n int64
	q := fmt.Sprintf("SELECT COUNT(*) FROM %s WHERE %s", t.table, whereClause(where))
	if err := t.db.QueryRow(q, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("%w: counting %s: %v", xerr.BadDatabase, t.table, err)
	}
	return n, nil
}

// Exists reports whether id is present.
func (t *Table[T]) Exists(id int64) (bool, error) {
	n, err := t.Count("id = ?", id)
	return n > 0, err
}

// LastID returns the greatest id currently present, or 0 if the table is
// empty.
func (t *Table[T]) LastID() (int64, error) {
	var id sql.NullInt64
	q := fmt.Sprintf("SELECT MAX(id) FROM %s", t.table)
	if err := t.db.QueryRow(q).Scan(&id); err != nil {
		return 0, fmt.Errorf("%w: reading last id of %s: %v", xerr.BadDatabase, t.table, err)
	}
	return id.Int64, nil
}

// ID returns the id of the single row matching a uniqueness condition
// (spec §4.G's id(uniqueness_condition)); ok is false if no row matches.
func (t *Table[T]) ID(where string, args ...any) (id int64, ok bool, err error) {
	q := fmt.Sprintf("SELECT id FROM %s WHERE %s LIMIT 1", t.table, whereClause(where))
	err = t.db.QueryRow(q, args...).Scan(&id)
	if err == sql.ErrNoRows {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("%w: looking up id in %s: %v", xerr.BadDatabase, t.table, err)
	}
	return id, true, nil
}
