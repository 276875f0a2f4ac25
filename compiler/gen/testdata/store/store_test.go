package store

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"

	"github.com/syssam/daogen"
)

const schema = `CREATE TABLE users (
	id INTEGER PRIMARY KEY,
	name TEXT,
	email TEXT,
	status TEXT NOT NULL DEFAULT 'Active',
	joined_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
)`

func openDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })
	_, err = db.Exec(schema)
	require.NoError(t, err)
	return db
}

func ptr(s string) *string { return &s }

func TestUserStore(t *testing.T) {
	ctx := context.Background()
	s := NewUserStore(openDB(t))

	id, err := s.Create(ctx, &User{Name: "a8m", Email: ptr("a8m@example.com"), Status: Banned})
	require.NoError(t, err)
	assert.Equal(t, UserID(1), id)
	id, err = s.Create(ctx, &User{Name: "nati"})
	require.NoError(t, err)
	assert.Equal(t, UserID(2), id)

	t.Run("Find", func(t *testing.T) {
		u, err := s.Find(ctx, 1)
		require.NoError(t, err)
		assert.Equal(t, UserID(1), u.ID)
		assert.Equal(t, "a8m", u.Name)
		require.NotNil(t, u.Email)
		assert.Equal(t, "a8m@example.com", *u.Email)
		assert.Equal(t, Banned, u.Status)
		assert.False(t, u.JoinedAt.IsZero())

		u, err = s.Find(ctx, 2)
		require.NoError(t, err)
		assert.Nil(t, u.Email)
		assert.Equal(t, Active, u.Status)
	})

	t.Run("NoRows", func(t *testing.T) {
		_, err := s.Find(ctx, 99)
		assert.True(t, daogen.IsNoRows(err))

		name, err := s.Name(ctx, 99)
		require.NoError(t, err)
		assert.False(t, name.Valid)

		name, err = s.Name(ctx, 1)
		require.NoError(t, err)
		assert.Equal(t, sql.NullString{String: "a8m", Valid: true}, name)
	})

	t.Run("List", func(t *testing.T) {
		users, err := s.List(ctx, nil)
		require.NoError(t, err)
		assert.NotNil(t, users)
		assert.Empty(t, users)

		users, err = s.List(ctx, []UserID{2, 1, 5})
		require.NoError(t, err)
		require.Len(t, users, 2)
		assert.Equal(t, "a8m", users[0].Name)
		assert.Equal(t, "nati", users[1].Name)
	})

	t.Run("Lazy", func(t *testing.T) {
		var names []string
		for u, err := range s.All(ctx) {
			require.NoError(t, err)
			names = append(names, u.Name)
		}
		assert.Equal(t, []string{"a8m", "nati"}, names)

		it, err := s.Names(ctx)
		require.NoError(t, err)
		names = names[:0]
		for it.Next() {
			names = append(names, it.Value())
		}
		require.NoError(t, it.Err())
		require.NoError(t, it.Close())
		assert.Equal(t, []string{"a8m", "nati"}, names)
	})

	t.Run("Mutations", func(t *testing.T) {
		ok, err := s.SetEmail(ctx, 2, ptr("nati@example.com"))
		require.NoError(t, err)
		assert.True(t, ok)
		ok, err = s.SetEmail(ctx, 99, nil)
		require.NoError(t, err)
		assert.False(t, ok)

		require.NoError(t, s.Rename(ctx, 2, "nati"))
		u, err := s.Find(ctx, 2)
		require.NoError(t, err)
		assert.Equal(t, "NATI", u.Name)
		assert.Equal(t, "nati@example.com", *u.Email)
	})

	t.Run("Batch", func(t *testing.T) {
		err := s.Import(ctx, func(add AddUser) error {
			if err := add("x", nil); err != nil {
				return err
			}
			return add("y", ptr("y@example.com"))
		})
		require.NoError(t, err)
		assert.Equal(t, int64(4), s.Count())

		boom := errors.New("boom")
		err = s.Import(ctx, func(add AddUser) error { return boom })
		assert.ErrorIs(t, err, boom)
		assert.Equal(t, int64(4), s.Count())
	})

	t.Run("Delete", func(t *testing.T) {
		n, err := s.Delete(ctx, 99)
		require.NoError(t, err)
		assert.Zero(t, n)
		n, err = s.Delete(ctx, 1)
		require.NoError(t, err)
		assert.Equal(t, int64(1), n)
		assert.Equal(t, int64(3), s.Count())
	})
}

func TestUserStoreNullColumn(t *testing.T) {
	ctx := context.Background()
	db := openDB(t)
	_, err := db.Exec(`INSERT INTO users (id, name) VALUES (1, NULL)`)
	require.NoError(t, err)
	s := NewUserStore(db)

	_, err = s.Find(ctx, 1)
	assert.True(t, daogen.IsNullColumn(err))
	assert.EqualError(t, err, "daogen: UserStore.Find: column name was null")

	it, err := s.Names(ctx)
	require.NoError(t, err)
	assert.False(t, it.Next())
	assert.True(t, daogen.IsNullColumn(it.Err()))
	assert.EqualError(t, it.Err(), "daogen: UserStore.Names: column name was null")

	name, err := s.Name(ctx, 1)
	require.NoError(t, err)
	assert.False(t, name.Valid)
}
