// Package daogen is the runtime support library for code generated by
// cmd/daogen. Generated repository implementations prepare statements
// through a DB, bind arguments, and hand decoding closures to the helpers
// of this package, which own statement and cursor lifetimes.
package daogen

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"
)

// DB is the statement preparer generated implementations run against.
// It is satisfied by *sql.DB, *sql.Tx and *sql.Conn.
type DB interface {
	PrepareContext(ctx context.Context, query string) (*sql.Stmt, error)
}

// TxBeginner is implemented by a DB that can start transactions (*sql.DB).
type TxBeginner interface {
	BeginTx(ctx context.Context, opts *sql.TxOptions) (*sql.Tx, error)
}

// NoRowsPolicy selects what a single-value query does when it matches no row.
type NoRowsPolicy uint8

const (
	// NoRowsThrow returns a *NoRowsError.
	NoRowsThrow NoRowsPolicy = iota
	// NoRowsNull returns the zero value (nil, or an invalid sql.Null).
	NoRowsNull
)

// NoMoreRowsPolicy selects what a single-value query does when a second row exists.
type NoMoreRowsPolicy uint8

const (
	// NoMoreRowsThrow returns a *TooManyRowsError.
	NoMoreRowsThrow NoMoreRowsPolicy = iota
	// NoMoreRowsIgnore ignores any extra rows.
	NoMoreRowsIgnore
)

// Query describes one generated statement. Generated code declares one
// Query value per method; the configuration values are applied verbatim.
type Query struct {
	Op         string // e.g. "UserStore.Name"
	SQL        string // native SQL with placeholders
	NoRows     NoRowsPolicy
	NoMoreRows NoMoreRowsPolicy
	Timeout    time.Duration
	FetchSize  int
	MaxRows    int
	TxOptions  *sql.TxOptions
}

// DecodeFunc decodes the current row of rows.
type DecodeFunc[T any] func(rows *sql.Rows) (T, error)

// Close closes c and stores its error in *errp unless *errp already holds one.
func Close(c io.Closer, errp *error) {
	if c == nil {
		return
	}
	if err := c.Close(); err != nil && *errp == nil {
		*errp = err
	}
}

// WithTimeout is context.WithTimeout that is a no-op for non-positive durations.
func WithTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, d)
}

// lease owns the resources of one executing query.
type lease struct {
	op, query string
	cancel    context.CancelFunc
	tx        *sql.Tx
	stmt      *sql.Stmt
	rows      *sql.Rows
	released  bool
}

// acquire prepares q.SQL on db (inside a transaction when q.TxOptions is set
// and db can start one) and runs it with args.
func acquire(ctx context.Context, db DB, q *Query, args []any) (l *lease, err error) {
	l = &lease{op: q.Op, query: q.SQL}
	ctx, l.cancel = WithTimeout(ctx, q.Timeout)
	defer func() {
		if err != nil {
			l.release(&err)
			l = nil
		}
	}()
	if q.TxOptions != nil {
		if b, ok := db.(TxBeginner); ok {
			if l.tx, err = b.BeginTx(ctx, q.TxOptions); err != nil {
				return l, Wrap(q.Op, q.SQL, err)
			}
			db = l.tx
		}
	}
	if l.stmt, err = db.PrepareContext(ctx, q.SQL); err != nil {
		return l, Wrap(q.Op, q.SQL, err)
	}
	if l.rows, err = l.stmt.QueryContext(ctx, args...); err != nil {
		return l, Wrap(q.Op, q.SQL, err)
	}
	return l, nil
}

// release closes rows and statement, ends the owned transaction and cancels
// the timeout context. It is idempotent; the first error wins.
func (l *lease) release(errp *error) {
	if l.released {
		return
	}
	l.released = true
	var cerr error
	if l.rows != nil {
		Close(l.rows, &cerr)
	}
	if l.stmt != nil {
		Close(l.stmt, &cerr)
	}
	if l.tx != nil {
		if *errp == nil && cerr == nil {
			cerr = l.tx.Commit()
		} else {
			_ = l.tx.Rollback()
		}
	}
	l.cancel()
	if cerr != nil && *errp == nil {
		*errp = Wrap(l.op, l.query, cerr)
	}
}

// next advances the cursor, wrapping the iteration error if any.
func (l *lease) next() (bool, error) {
	if l.rows.Next() {
		return true, nil
	}
	return false, Wrap(l.op, l.query, l.rows.Err())
}

// QueryOne runs q and decodes a single row, applying the no-rows and
// no-more-rows policies of q.
func QueryOne[T any](ctx context.Context, db DB, q Query, args []any, decode DecodeFunc[T]) (v T, err error) {
	l, err := acquire(ctx, db, &q, args)
	if err != nil {
		return v, err
	}
	defer l.release(&err)
	ok, err := l.next()
	switch {
	case err != nil:
		return v, err
	case !ok && q.NoRows == NoRowsNull:
		return v, nil
	case !ok:
		return v, NewNoRowsError(q.Op)
	}
	if v, err = decode(l.rows); err != nil {
		var zero T
		return zero, err
	}
	if q.NoMoreRows == NoMoreRowsThrow {
		more, err := l.next()
		if err != nil {
			var zero T
			return zero, err
		}
		if more {
			var zero T
			return zero, NewTooManyRowsError(q.Op)
		}
	}
	return v, nil
}

// QueryAll runs q and decodes every row. It never returns a nil slice on
// success. q.MaxRows caps the number of rows read, q.FetchSize pre-sizes the
// result.
func QueryAll[T any](ctx context.Context, db DB, q Query, args []any, decode DecodeFunc[T]) (vs []T, err error) {
	l, err := acquire(ctx, db, &q, args)
	if err != nil {
		return nil, err
	}
	defer l.release(&err)
	vs = make([]T, 0, max(q.FetchSize, 0))
	for q.MaxRows <= 0 || len(vs) < q.MaxRows {
		ok, err := l.next()
		if err != nil {
			return nil, err
		}
		if !ok {
			break
		}
		v, err := decode(l.rows)
		if err != nil {
			return nil, err
		}
		vs = append(vs, v)
	}
	return vs, nil
}

// Exec prepares and executes a statement that returns no rows.
func Exec(ctx context.Context, db DB, q Query, args []any) (res sql.Result, err error) {
	ctx, cancel := WithTimeout(ctx, q.Timeout)
	defer cancel()
	stmt, err := db.PrepareContext(ctx, q.SQL)
	if err != nil {
		return nil, Wrap(q.Op, q.SQL, err)
	}
	defer func() {
		var cerr error
		Close(stmt, &cerr)
		if err == nil && cerr != nil {
			err = Wrap(q.Op, q.SQL, cerr)
		}
	}()
	if res, err = stmt.ExecContext(ctx, args...); err != nil {
		return nil, Wrap(q.Op, q.SQL, err)
	}
	return res, nil
}

// RowsAffected returns the number of rows affected by res.
func RowsAffected(op string, res sql.Result) (int64, error) {
	n, err := res.RowsAffected()
	if err != nil {
		return 0, Wrap(op, "", err)
	}
	return n, nil
}

// LastInsertID returns the key generated by the driver for res.
func LastInsertID(op string, res sql.Result) (int64, error) {
	id, err := res.LastInsertId()
	if err != nil {
		return 0, Wrap(op, "", err)
	}
	return id, nil
}

// Placeholder is the bind-marker style of a SQL dialect.
type Placeholder uint8

const (
	// Question renders "?" (sqlite, mysql).
	Question Placeholder = iota
	// Dollar renders "$1", "$2", ... (postgres).
	Dollar
)

// Expand joins parts around bind markers. Marker i (between parts[i] and
// parts[i+1]) expands to sizes[i] comma-separated placeholders; an empty
// expansion renders NULL so that "x IN (:ids)" matches nothing.
func Expand(style Placeholder, parts []string, sizes []int) string {
	if len(parts) == 0 {
		return ""
	}
	var b strings.Builder
	n := 0
	b.WriteString(parts[0])
	for i, part := range parts[1:] {
		size := 1
		if i < len(sizes) {
			size = sizes[i]
		}
		if size == 0 {
			b.WriteString("NULL")
		}
		for j := 0; j < size; j++ {
			if j > 0 {
				b.WriteString(", ")
			}
			n++
			switch style {
			case Dollar:
				b.WriteByte('$')
				b.WriteString(strconv.Itoa(n))
			default:
				b.WriteByte('?')
			}
		}
		b.WriteString(part)
	}
	return b.String()
}

// ColumnIndex maps names to their position in cols (case-insensitively).
func ColumnIndex(op string, cols []string, names ...string) ([]int, error) {
	idx := make([]int, len(names))
	for i, name := range names {
		idx[i] = -1
		for j, c := range cols {
			if strings.EqualFold(c, name) {
				idx[i] = j
				break
			}
		}
		if idx[i] < 0 {
			return nil, &DataAccessError{Op: op, Err: fmt.Errorf("column %q is not in the result (have %s)", name, strings.Join(cols, ", "))}
		}
	}
	return idx, nil
}

// ScanDest builds a Scan destination of n slots, placing targets at the
// positions in idx and discarding every other column.
func ScanDest(n int, idx []int, targets ...any) []any {
	dest := make([]any, n)
	for i, j := range idx {
		dest[j] = targets[i]
	}
	for i := range dest {
		if dest[i] == nil {
			dest[i] = new(any)
		}
	}
	return dest
}

// Scan scans the current row into dest, wrapping driver errors.
func Scan(op string, rows *sql.Rows, dest ...any) error {
	return Wrap(op, "", rows.Scan(dest...))
}

// ColumnName returns the name of column i of rows, or its 1-based index
// when the driver reports no name.
func ColumnName(rows *sql.Rows, i int) string {
	if cols, err := rows.Columns(); err == nil && i < len(cols) && cols[i] != "" {
		return cols[i]
	}
	return strconv.Itoa(i + 1)
}
