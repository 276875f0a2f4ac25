package daogen

import (
	"context"
	"iter"
)

// Iterator is a forward-only cursor over decoded rows. It owns the prepared
// statement and the result set; both are released on exhaustion, on the
// first error, or on Close.
//
//	it, err := store.Scan(ctx)
//	if err != nil { ... }
//	defer it.Close()
//	for it.Next() {
//		use(it.Value())
//	}
//	if err := it.Err(); err != nil { ... }
type Iterator[T any] struct {
	l      *lease
	decode DecodeFunc[T]
	max    int
	n      int
	cur    T
	err    error
	done   bool
}

// QueryIterator runs q and returns an Iterator over its rows.
func QueryIterator[T any](ctx context.Context, db DB, q Query, args []any, decode DecodeFunc[T]) (*Iterator[T], error) {
	l, err := acquire(ctx, db, &q, args)
	if err != nil {
		return nil, err
	}
	return &Iterator[T]{l: l, decode: decode, max: q.MaxRows}, nil
}

// Next advances to the next row. It returns false when the rows are
// exhausted or an error occurred; the iterator is closed in both cases.
func (it *Iterator[T]) Next() bool {
	if it.done {
		return false
	}
	if it.max > 0 && it.n >= it.max {
		it.finish(nil)
		return false
	}
	ok, err := it.l.next()
	if err != nil || !ok {
		it.finish(err)
		return false
	}
	v, err := it.decode(it.l.rows)
	if err != nil {
		it.finish(err)
		return false
	}
	it.cur = v
	it.n++
	return true
}

// Value returns the row decoded by the last call to Next.
func (it *Iterator[T]) Value() T { return it.cur }

// Err returns the first error met while iterating or closing.
func (it *Iterator[T]) Err() error { return it.err }

// Close releases the statement and the result set. It is safe to call more
// than once and returns the first error of the iterator.
func (it *Iterator[T]) Close() error {
	it.finish(nil)
	return it.err
}

// All adapts the iterator to a range-over-func sequence. Breaking out of the
// loop closes the iterator.
func (it *Iterator[T]) All() iter.Seq2[T, error] {
	return func(yield func(T, error) bool) {
		defer it.Close()
		for it.Next() {
			if !yield(it.Value(), nil) {
				return
			}
		}
		if err := it.Err(); err != nil {
			var zero T
			yield(zero, err)
		}
	}
}

func (it *Iterator[T]) finish(err error) {
	if it.err == nil {
		it.err = err
	}
	if it.done {
		return
	}
	it.done = true
	var zero T
	it.cur = zero
	it.l.release(&it.err)
}

// Cursor is a random-access view over the rows of a query. Rows are decoded
// on demand and kept, so indexes already visited can be read again.
type Cursor[T any] struct {
	it   *Iterator[T]
	rows []T
}

// QueryCursor runs q and returns a Cursor over its rows.
func QueryCursor[T any](ctx context.Context, db DB, q Query, args []any, decode DecodeFunc[T]) (*Cursor[T], error) {
	it, err := QueryIterator(ctx, db, q, args, decode)
	if err != nil {
		return nil, err
	}
	return &Cursor[T]{it: it, rows: make([]T, 0, max(q.FetchSize, 0))}, nil
}

// At returns the row at index i, reading forward as needed. ok is false
// when the result has fewer rows or an error occurred (see Err).
func (c *Cursor[T]) At(i int) (v T, ok bool) {
	if i < 0 {
		return v, false
	}
	for len(c.rows) <= i && c.it.Next() {
		c.rows = append(c.rows, c.it.Value())
	}
	if i >= len(c.rows) {
		return v, false
	}
	return c.rows[i], true
}

// Len drains the cursor and returns the number of rows.
func (c *Cursor[T]) Len() int {
	for c.it.Next() {
		c.rows = append(c.rows, c.it.Value())
	}
	return len(c.rows)
}

// Err returns the first error met while reading or closing.
func (c *Cursor[T]) Err() error { return c.it.Err() }

// Close releases the statement and the result set.
func (c *Cursor[T]) Close() error { return c.it.Close() }

// QuerySeq returns a lazy sequence over the rows of q. Nothing is prepared
// until the sequence is ranged over; every range re-runs the query. An
// error ends the sequence after being yielded once.
func QuerySeq[T any](ctx context.Context, db DB, q Query, args []any, decode DecodeFunc[T]) iter.Seq2[T, error] {
	return func(yield func(T, error) bool) {
		it, err := QueryIterator(ctx, db, q, args, decode)
		if err != nil {
			var zero T
			yield(zero, err)
			return
		}
		it.All()(yield)
	}
}

// QueryValues is QuerySeq for methods returning iter.Seq[T]. Errors are
// raised as panics since the sequence has no error channel.
func QueryValues[T any](ctx context.Context, db DB, q Query, args []any, decode DecodeFunc[T]) iter.Seq[T] {
	return func(yield func(T) bool) {
		for v, err := range QuerySeq(ctx, db, q, args, decode) {
			Must(err)
			if !yield(v) {
				return
			}
		}
	}
}
