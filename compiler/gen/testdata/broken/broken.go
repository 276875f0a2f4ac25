// Package broken declares repository methods that cannot be generated.
package broken

import (
	"context"
	"database/sql"
	"errors"
)

// Code is a fixed-size code parsed from its text form.
type Code [4]byte

func ParseCode(s string) (Code, error) {
	var c Code
	if len(s) != len(c) {
		return c, errors.New("bad code")
	}
	copy(c[:], s)
	return c, nil
}

func (c Code) String() string { return string(c[:]) }

// ErrNoTag is returned when the zero Tag is bound.
var ErrNoTag = errors.New("broken: empty tag")

// Tag is a two-letter label; the zero Tag has no text form.
type Tag [2]byte

func (t Tag) String() (string, error) {
	if t == (Tag{}) {
		return "", ErrNoTag
	}
	return string(t[:]), nil
}

//dao:repository
type BrokenStore interface {
	//dao:query SELECT id FROM t WHERE id IN (:ids)
	//dao:nullable ids
	Optional(ctx context.Context, ids []int64) ([]int64, error)

	//dao:query SELECT name FROM t LIMIT 3
	Top(ctx context.Context) ([3]string, error)

	//dao:query SELECT code FROM t
	First() Code

	//dao:query SELECT id FROM t WHERE id IN (:ids)
	Wrapped(ctx context.Context, ids sql.Null[[]int64]) ([]int64, error)

	//dao:query SELECT id FROM t WHERE id IN (:ids)
	//dao:nullable ids
	Pointed(ctx context.Context, ids *[]int64) ([]int64, error)

	//dao:query SELECT 1 FROM t WHERE a = :missing
	Missing(ctx context.Context) (int, error)

	//dao:exec DELETE FROM t
	Deleted(ctx context.Context) (string, error)

	//dao:batch INSERT INTO t (a) VALUES (1); INSERT INTO t (a) VALUES (2)
	Twice(ctx context.Context, fill func(add func() error) error) error

	//dao:query SELECT 1
	Nothing(ctx context.Context) error

	// Fine is generated normally next to the stubs.
	//
	//dao:query SELECT code FROM t WHERE code = :c
	Fine(ctx context.Context, c Code) (Code, error)

	//dao:exec INSERT INTO t (tag) VALUES (:tag)
	Put(ctx context.Context, tag Tag) error
}
