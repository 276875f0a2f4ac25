package daogen

import (
	"context"
	"database/sql"
	"errors"
)

// DefaultBatchSize is the number of queued rows that triggers a flush when
// no batch size is configured.
const DefaultBatchSize = 100

// Batch queues argument lists for a single statement and executes them in
// groups. Each flush prepares the statement once and runs every queued row
// through it, inside a transaction when the DB can start one.
type Batch struct {
	ctx      context.Context
	db       DB
	q        Query
	size     int
	pending  [][]any
	affected int64
	err      error
}

// NewBatch returns a batch that flushes every size rows.
func NewBatch(ctx context.Context, db DB, q Query, size int) *Batch {
	if size <= 0 {
		size = DefaultBatchSize
	}
	return &Batch{ctx: ctx, db: db, q: q, size: size}
}

// Add queues one row of arguments, flushing when the batch is full.
// After a failed flush every call returns the same error.
func (b *Batch) Add(args ...any) error {
	if b.err != nil {
		return b.err
	}
	b.pending = append(b.pending, args)
	if len(b.pending) >= b.size {
		return b.Flush()
	}
	return nil
}

// Flush executes every queued row.
func (b *Batch) Flush() error {
	if b.err != nil {
		return b.err
	}
	if len(b.pending) == 0 {
		return nil
	}
	pending := b.pending
	b.pending = nil
	n, err := b.exec(pending)
	if err != nil {
		b.err = err
		return err
	}
	b.affected += n
	return nil
}

// Finish flushes the remaining rows.
func (b *Batch) Finish() error {
	return b.Flush()
}

// Pending returns the number of queued rows.
func (b *Batch) Pending() int { return len(b.pending) }

// Affected returns the number of rows affected by the flushed statements,
// as reported by the driver.
func (b *Batch) Affected() int64 { return b.affected }

func (b *Batch) exec(rows [][]any) (n int64, err error) {
	ctx, cancel := WithTimeout(b.ctx, b.q.Timeout)
	defer cancel()
	db := b.db
	var tx *sql.Tx
	if bt, ok := db.(TxBeginner); ok {
		if tx, err = bt.BeginTx(ctx, b.q.TxOptions); err != nil {
			return 0, Wrap(b.q.Op, b.q.SQL, err)
		}
		db = tx
		defer func() {
			if err != nil {
				err = errors.Join(err, ignoreDone(tx.Rollback()))
				return
			}
			err = Wrap(b.q.Op, b.q.SQL, tx.Commit())
		}()
	}
	stmt, err := db.PrepareContext(ctx, b.q.SQL)
	if err != nil {
		return 0, Wrap(b.q.Op, b.q.SQL, err)
	}
	defer func() {
		var cerr error
		Close(stmt, &cerr)
		if err == nil {
			err = Wrap(b.q.Op, b.q.SQL, cerr)
		}
	}()
	for _, args := range rows {
		res, err := stmt.ExecContext(ctx, args...)
		if err != nil {
			return n, Wrap(b.q.Op, b.q.SQL, err)
		}
		if c, err := res.RowsAffected(); err == nil {
			n += c
		}
	}
	return n, nil
}

func ignoreDone(err error) error {
	if errors.Is(err, sql.ErrTxDone) {
		return nil
	}
	return err
}
