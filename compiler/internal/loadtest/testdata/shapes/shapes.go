// Package shapes declares one variable per container structure.
package shapes

import (
	"context"
	"database/sql"
	"iter"

	"github.com/syssam/daogen"
)

type IDs []int64

type AddUser func(name string, age int) error

type User struct {
	Name string
}

var (
	Int      int64
	Str      string
	Bytes    []byte
	Named    IDs
	Ptr      *string
	Obj      User
	Null     sql.Null[int64]
	NullStr  sql.NullString
	NullTime sql.NullTime
	List     []User
	Array    [3]int
	Nested   [][]int
	Seq      iter.Seq[User]
	Seq2     iter.Seq2[User, error]
	Seq2Int  iter.Seq2[int, int]
	Iter     *daogen.Iterator[User]
	Cursor   *daogen.Cursor[int64]
	Batch    func(add AddUser) error
	Literal  func(add func(u User) error) error
	NotBatch func(add func(u User)) error
	Ctx      context.Context
	Err      error
	Fn       func(a, b int, rest ...string) (int, error)
	Map      map[string][]int
	Any      any
)
