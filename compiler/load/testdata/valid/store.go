// Package valid declares well-formed repositories.
//
//dao:nullmarked
package valid

import (
	"context"
	"strings"
)

type User struct {
	ID    int64
	Name  string
	Email *string `dao:"email,nullable"`
}

// UserStore reads and writes users.
//
//dao:repository
//dao:config fetch_size=50 timeout=2s
type UserStore interface {
	// Find returns the user with the given id.
	//
	//dao:query SELECT id, name, email
	//dao:query FROM users WHERE id = :id
	Find(ctx context.Context, id int64) (*User, error)

	//dao:exec INSERT INTO users (name, email) VALUES (:u.name, :u.email)
	//dao:keys
	//dao:nullable return
	Create(ctx context.Context, u *User) (int64, error)

	//dao:query SELECT name FROM users WHERE id IN (:ids)
	//dao:nonnull ids[]
	//dao:nullunmarked
	//dao:config max_rows=10 no_rows=null
	Names(ctx context.Context, ids []int64) ([]string, error)

	//dao:exec UPDATE users SET name = :name WHERE id = :id
	//dao:use name=upper
	Rename(ctx context.Context, id int64, name string) (bool, error)
}

// Email is never NULL where it is used.
//
//dao:nonnull
type Email *string

//dao:encoder upper
func Upper(s string) string { return strings.ToUpper(s) }

//dao:decoder
func ParseUser(name string) User { return User{Name: name} }
