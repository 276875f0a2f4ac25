package sqlerr

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"testing"

	"github.com/go-sql-driver/mysql"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"

	"github.com/syssam/daogen"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Class
		code string
	}{
		{"pq unique", &pq.Error{Code: "23505"}, UniqueViolation, "23505"},
		{"pq fk", &pq.Error{Code: "23503"}, ForeignKeyViolation, "23503"},
		{"pq serialization", &pq.Error{Code: "40001"}, Busy, "40001"},
		{"pq other", &pq.Error{Code: "42P01"}, Unknown, "42P01"},
		{"mysql duplicate", &mysql.MySQLError{Number: 1062}, UniqueViolation, "1062"},
		{"mysql fk child", &mysql.MySQLError{Number: 1452}, ForeignKeyViolation, "1452"},
		{"mysql deadlock", &mysql.MySQLError{Number: 1213}, Busy, "1213"},
		{"mysql bad null", &mysql.MySQLError{Number: 1048}, NotNullViolation, "1048"},
		{"string fallback", errors.New("UNIQUE constraint failed: users.email"), UniqueViolation, ""},
		{"plain", errors.New("boom"), Unknown, ""},
		{"nil", nil, Unknown, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(tt.err))
			code, ok := Code(tt.err)
			assert.Equal(t, tt.code != "", ok)
			assert.Equal(t, tt.code, code)
		})
	}
}

func TestWrapped(t *testing.T) {
	err := daogen.Wrap("UserStore.Create", "INSERT ...", &pq.Error{Code: "23505"})
	assert.True(t, IsUniqueViolation(err))
	assert.True(t, IsConstraintViolation(err))
	assert.False(t, IsRetryable(err))

	joined := errors.Join(fmt.Errorf("flush: %w", err), errors.New("rollback"))
	assert.True(t, IsUniqueViolation(joined))
}

func TestSQLite(t *testing.T) {
	ctx := context.Background()
	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	defer db.Close()
	db.SetMaxOpenConns(1)
	_, err = db.Exec(`CREATE TABLE users (id INTEGER PRIMARY KEY, email TEXT NOT NULL UNIQUE)`)
	require.NoError(t, err)

	ins := daogen.Query{Op: "UserStore.Create", SQL: "INSERT INTO users (email) VALUES (?)"}
	_, err = daogen.Exec(ctx, db, ins, []any{"a@b.c"})
	require.NoError(t, err)

	_, err = daogen.Exec(ctx, db, ins, []any{"a@b.c"})
	require.Error(t, err)
	assert.Equal(t, UniqueViolation, Classify(err))
	code, ok := Code(err)
	assert.True(t, ok)
	assert.Equal(t, "2067", code)

	_, err = daogen.Exec(ctx, db, ins, []any{nil})
	assert.Equal(t, NotNullViolation, Classify(err))
	assert.Equal(t, "not null violation", Classify(err).String())
}
