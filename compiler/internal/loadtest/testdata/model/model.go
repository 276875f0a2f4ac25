// Package model declares the types converter tests resolve.
package model

import (
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
)

type UserID int64

type Temp float64

type Status int

const (
	Active Status = iota
	Suspended
	Deleted

	Removed = Deleted
)

type Email struct {
	Addr string
}

type User struct {
	ID       UserID `dao:"id"`
	Name     string
	Email    *string `dao:"email,nullable"`
	Status   Status
	Password string `dao:"-"`
	JoinedAt time.Time
	Key      uuid.UUID `dao:"external_key"`
}

type Profile struct {
	Email    Email
	Nickname sql.NullString
	Score    sql.Null[int64]
}

type Node struct {
	Value int
	Next  *Node
}

type A struct {
	Name string
	B    B
}

type B struct {
	Name string
	A    *A
}

type Maybe struct {
	V *string `dao:"v,nullable"`
}

// Hex is a value stored as its hexadecimal form.
type Hex struct {
	v []byte
}

func ParseHex(s string) (Hex, error) {
	if len(s)%2 != 0 {
		return Hex{}, errors.New("odd length")
	}
	return Hex{v: []byte(s)}, nil
}

func (h Hex) String() string { return string(h.v) }

type Ambig struct {
	x int
}

func NewAmbig(s string) Ambig   { return Ambig{x: len(s)} }
func ParseAmbig(s string) Ambig { return Ambig{x: len(s)} }

type Lonely struct {
	x chan int
}

type Code struct {
	c string
}

func (c Code) Int64() (int64, error) { return 0, errors.New("unsupported") }

type Point struct {
	x, y float64
}

func NewPoint(x, y float64) Point { return Point{x: x, y: y} }

type Money struct {
	cents int64
}

//dao:encoder
func EncodeMoney(m Money) int64 { return m.cents }

//dao:decoder
func DecodeMoney(cents int64) Money { return Money{cents: cents} }

//dao:encoder upper
func Upper(s string) string { return strings.ToUpper(s) }

type Dup struct {
	s string
}

//dao:encoder
func DupA(d Dup) string { return d.s }

//dao:encoder
func DupB(d Dup) string { return d.s }

func (d Dup) String() string { return d.s }

//dao:encoder
func Variadic(parts ...string) string { return strings.Join(parts, "") }

type Tally struct {
	n int
}

func NewTally(rows *sql.Rows) (Tally, error) {
	var t Tally
	return t, rows.Scan(&t.n)
}
