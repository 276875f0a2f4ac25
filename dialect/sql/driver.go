package sql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/syssam/daogen"
	"github.com/syssam/daogen/dialect"
)

// TxOptions holds the transaction options of BeginTx and WithTx.
type TxOptions = sql.TxOptions

// Driver is a daogen.DB over a database/sql pool.
type Driver struct {
	db      *sql.DB
	dialect string
}

// Open wraps database/sql.Open. driver is the registered driver name; the
// dialect is derived from it.
func Open(driver, source string) (*Driver, error) {
	db, err := sql.Open(driver, source)
	if err != nil {
		return nil, err
	}
	return OpenDB(driver, db), nil
}

// OpenDB wraps an open *sql.DB.
func OpenDB(driver string, db *sql.DB) *Driver {
	return &Driver{db: db, dialect: dialect.Name(driver)}
}

// DB returns the underlying *sql.DB instance.
func (d *Driver) DB() *sql.DB { return d.db }

// Dialect returns the dialect name of the driver.
func (d *Driver) Dialect() string { return d.dialect }

// PrepareContext implements daogen.DB.
func (d *Driver) PrepareContext(ctx context.Context, query string) (*sql.Stmt, error) {
	return d.db.PrepareContext(ctx, query)
}

// BeginTx starts a transaction with options. Queries configured with
// isolation and readonly start their own transaction through it.
func (d *Driver) BeginTx(ctx context.Context, opts *TxOptions) (*sql.Tx, error) {
	return d.db.BeginTx(ctx, opts)
}

// WithTx runs fn in a transaction. The transaction is committed when fn
// returns nil and rolled back otherwise, including when fn panics.
func (d *Driver) WithTx(ctx context.Context, opts *TxOptions, fn func(tx *sql.Tx) error) (err error) {
	tx, err := d.BeginTx(ctx, opts)
	if err != nil {
		return fmt.Errorf("dialect/sql: begin: %w", err)
	}
	defer func() {
		if v := recover(); v != nil {
			_ = tx.Rollback()
			panic(v)
		}
	}()
	if err := fn(tx); err != nil {
		if rerr := tx.Rollback(); rerr != nil {
			return errors.Join(err, fmt.Errorf("dialect/sql: rollback: %w", rerr))
		}
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("dialect/sql: commit: %w", err)
	}
	return nil
}

// Close closes the underlying pool.
func (d *Driver) Close() error { return d.db.Close() }

var (
	_ daogen.DB         = (*Driver)(nil)
	_ daogen.TxBeginner = (*Driver)(nil)
)
