// Package store declares the repositories the generator is tested with.
//
//dao:nullmarked
package store

import (
	"context"
	"database/sql"
	"iter"
	"strings"
	"time"

	"github.com/syssam/daogen"
)

type UserID int64

type Status int

const (
	Active Status = iota
	Banned
)

type User struct {
	ID       UserID  `dao:"id"`
	Name     string  `dao:"name"`
	Email    *string `dao:"email,nullable"`
	Status   Status  `dao:"status"`
	JoinedAt time.Time
}

// AddUser queues one user of a batch.
type AddUser func(name string, email *string) error

// UserStore reads and writes users.
//
//dao:repository
//dao:config timeout=2s
type UserStore interface {
	//dao:query SELECT id, name, email, status, joined_at FROM users WHERE id = :id
	Find(ctx context.Context, id UserID) (*User, error)

	//dao:query SELECT name FROM users WHERE id = :id
	//dao:config no_rows=null no_more_rows=ignore
	Name(ctx context.Context, id UserID) (sql.NullString, error)

	//dao:query SELECT id, name, email, status, joined_at FROM users WHERE id IN (:ids) ORDER BY id
	//dao:config isolation=serializable readonly=true max_rows=100 fetch_size=20
	List(ctx context.Context, ids []UserID) ([]User, error)

	//dao:query SELECT id, name, email, status, joined_at FROM users ORDER BY id
	All(ctx context.Context) iter.Seq2[User, error]

	//dao:query SELECT name FROM users ORDER BY name
	Names(ctx context.Context) (*daogen.Iterator[string], error)

	//dao:query SELECT count(*) FROM users
	Count() int64

	//dao:exec INSERT INTO users (name, email, status) VALUES (:u.name, :u.email, :u.status)
	//dao:keys
	Create(ctx context.Context, u *User) (UserID, error)

	//dao:exec UPDATE users SET email = :email WHERE id = :id
	//dao:nullable email
	SetEmail(ctx context.Context, id UserID, email *string) (bool, error)

	//dao:exec UPDATE users SET name = :name WHERE id = :id
	//dao:use name=upper
	Rename(ctx context.Context, id UserID, name string) error

	//dao:exec DELETE FROM users WHERE id = :id
	Delete(ctx context.Context, id UserID) (int64, error)

	//dao:batch INSERT INTO users (name, email) VALUES (:name, :email)
	//dao:config batch_size=50
	//dao:nullunmarked
	Import(ctx context.Context, fill func(add AddUser) error) error
}

//dao:encoder upper
func Upper(s string) string { return strings.ToUpper(s) }
