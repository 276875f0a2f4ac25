// Package sqlerr classifies driver errors carried by *daogen.DataAccessError.
//
// Generated code wraps every driver failure without interpreting it; callers
// that need to branch on the failure kind (a duplicate key, a busy database)
// pass the error to this package.
package sqlerr

import (
	"errors"
	"strconv"
	"strings"

	"github.com/go-sql-driver/mysql"
	"github.com/lib/pq"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

// Class is a driver-independent failure category.
type Class int

const (
	Unknown Class = iota
	UniqueViolation
	ForeignKeyViolation
	CheckViolation
	NotNullViolation
	Busy
)

// String implements fmt.Stringer.
func (c Class) String() string {
	switch c {
	case UniqueViolation:
		return "unique violation"
	case ForeignKeyViolation:
		return "foreign key violation"
	case CheckViolation:
		return "check violation"
	case NotNullViolation:
		return "not null violation"
	case Busy:
		return "busy"
	default:
		return "unknown"
	}
}

// PostgreSQL SQLSTATE codes (class 23 and serialization failures).
const (
	pgUniqueViolation      = "23505"
	pgForeignKeyViolation  = "23503"
	pgCheckViolation       = "23514"
	pgNotNullViolation     = "23502"
	pgSerializationFailure = "40001"
	pgDeadlockDetected     = "40P01"
)

// MySQL error numbers.
const (
	mysqlDuplicateEntry         = 1062
	mysqlForeignKeyParent       = 1451 // Cannot delete or update a parent row
	mysqlForeignKeyChild        = 1452 // Cannot add or update a child row
	mysqlCheckConstraintViolate = 3819
	mysqlBadNull                = 1048
	mysqlLockWaitTimeout        = 1205
	mysqlDeadlock               = 1213
)

// sqlStateError is implemented by drivers exposing SQLSTATE codes (pgx).
type sqlStateError interface {
	SQLState() string
}

// Code returns the driver's own error code: the SQLSTATE for PostgreSQL, the
// error number for MySQL and the extended result code for SQLite.
func Code(err error) (string, bool) {
	if err == nil {
		return "", false
	}
	if e, ok := asError[*pq.Error](err); ok {
		return string(e.Code), true
	}
	if e, ok := asError[*mysql.MySQLError](err); ok {
		return strconv.Itoa(int(e.Number)), true
	}
	if e, ok := asError[*sqlite.Error](err); ok {
		return strconv.Itoa(e.Code()), true
	}
	if e, ok := asError[sqlStateError](err); ok {
		return e.SQLState(), true
	}
	return "", false
}

// Classify maps err onto a Class.
func Classify(err error) Class {
	if err == nil {
		return Unknown
	}
	if e, ok := asError[*pq.Error](err); ok {
		return pgClass(string(e.Code))
	}
	if e, ok := asError[sqlStateError](err); ok {
		if c := pgClass(e.SQLState()); c != Unknown {
			return c
		}
	}
	if e, ok := asError[*mysql.MySQLError](err); ok {
		switch e.Number {
		case mysqlDuplicateEntry:
			return UniqueViolation
		case mysqlForeignKeyParent, mysqlForeignKeyChild:
			return ForeignKeyViolation
		case mysqlCheckConstraintViolate:
			return CheckViolation
		case mysqlBadNull:
			return NotNullViolation
		case mysqlLockWaitTimeout, mysqlDeadlock:
			return Busy
		}
		return Unknown
	}
	if e, ok := asError[*sqlite.Error](err); ok {
		switch e.Code() {
		case sqlite3.SQLITE_CONSTRAINT_UNIQUE, sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY:
			return UniqueViolation
		case sqlite3.SQLITE_CONSTRAINT_FOREIGNKEY:
			return ForeignKeyViolation
		case sqlite3.SQLITE_CONSTRAINT_CHECK:
			return CheckViolation
		case sqlite3.SQLITE_CONSTRAINT_NOTNULL:
			return NotNullViolation
		case sqlite3.SQLITE_BUSY, sqlite3.SQLITE_LOCKED:
			return Busy
		}
		return Unknown
	}
	// Fallback to string matching for drivers that don't expose codes.
	msg := err.Error()
	switch {
	case containsAny(msg, "Error 1062", "violates unique constraint", "UNIQUE constraint failed"):
		return UniqueViolation
	case containsAny(msg, "Error 1451", "Error 1452", "violates foreign key constraint", "FOREIGN KEY constraint failed"):
		return ForeignKeyViolation
	case containsAny(msg, "Error 3819", "violates check constraint", "CHECK constraint failed"):
		return CheckViolation
	case containsAny(msg, "Error 1048", "violates not-null constraint", "NOT NULL constraint failed"):
		return NotNullViolation
	}
	return Unknown
}

func pgClass(code string) Class {
	switch code {
	case pgUniqueViolation:
		return UniqueViolation
	case pgForeignKeyViolation:
		return ForeignKeyViolation
	case pgCheckViolation:
		return CheckViolation
	case pgNotNullViolation:
		return NotNullViolation
	case pgSerializationFailure, pgDeadlockDetected:
		return Busy
	}
	return Unknown
}

// IsUniqueViolation reports if err resulted from a uniqueness constraint violation.
func IsUniqueViolation(err error) bool { return Classify(err) == UniqueViolation }

// IsForeignKeyViolation reports if err resulted from a foreign-key constraint violation.
func IsForeignKeyViolation(err error) bool { return Classify(err) == ForeignKeyViolation }

// IsConstraintViolation reports if err resulted from any constraint violation.
func IsConstraintViolation(err error) bool {
	switch Classify(err) {
	case UniqueViolation, ForeignKeyViolation, CheckViolation, NotNullViolation:
		return true
	}
	return false
}

// IsRetryable reports if the statement may succeed when retried.
func IsRetryable(err error) bool { return Classify(err) == Busy }

// asError attempts to extract an error of type T from the error chain.
func asError[T any](err error) (T, bool) {
	var target T
	ok := errors.As(err, &target)
	return target, ok
}

// containsAny returns true if s contains any of the substrings.
func containsAny(s string, substrings ...string) bool {
	for _, sub := range substrings {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
