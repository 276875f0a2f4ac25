package gen

import (
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/syssam/daogen"
	"github.com/syssam/daogen/compiler/load"
)

func TestParseSettings(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		s, msgs := ParseSettings(SQLite, nil)
		require.False(t, msgs.HasErrors())
		assert.Equal(t, daogen.DefaultBatchSize, s.BatchSize)
		assert.Equal(t, UseGeneratedKeys, s.Keys)
		assert.Equal(t, daogen.NoRowsThrow, s.NoRows)
		assert.Equal(t, daogen.NoMoreRowsThrow, s.NoMoreRows)
		assert.False(t, s.Tx)
		assert.Zero(t, s.Timeout)

		s, _ = ParseSettings(Postgres, nil)
		assert.Equal(t, Requery, s.Keys)
	})

	t.Run("every key", func(t *testing.T) {
		s, msgs := ParseSettings(SQLite, load.Config{
			KeyBatchSize:     "25",
			KeyFetchSize:     "10",
			KeyMaxRows:       "0",
			KeyTimeout:       "1500ms",
			KeyIsolation:     "READ_COMMITTED",
			KeyReadOnly:      "false",
			KeyNoRows:        "null",
			KeyNoMoreRows:    "ignore",
			KeyGeneratedKeys: "requery",
		})
		require.False(t, msgs.HasErrors(), msgs.String())
		assert.Equal(t, Settings{
			BatchSize:  25,
			FetchSize:  10,
			Timeout:    1500 * time.Millisecond,
			NoRows:     daogen.NoRowsNull,
			NoMoreRows: daogen.NoMoreRowsIgnore,
			Keys:       Requery,
			Tx:         true,
			Isolation:  sql.LevelReadCommitted,
		}, s)
	})

	t.Run("timeout in whole seconds", func(t *testing.T) {
		s, msgs := ParseSettings(SQLite, load.Config{KeyTimeout: "30"})
		require.False(t, msgs.HasErrors())
		assert.Equal(t, 30*time.Second, s.Timeout)
	})

	t.Run("isolation needs readonly", func(t *testing.T) {
		_, msgs := ParseSettings(SQLite, load.Config{KeyIsolation: "serializable"})
		assert.True(t, msgs.Contains("isolation and readonly must be set together"))

		_, msgs = ParseSettings(SQLite, load.Config{KeyReadOnly: "true"})
		assert.True(t, msgs.Contains("isolation and readonly must be set together"))
	})

	t.Run("bad values", func(t *testing.T) {
		tests := []struct {
			key, value, want string
		}{
			{KeyBatchSize, "0", "want a positive integer"},
			{KeyFetchSize, "-1", "want a non-negative integer"},
			{KeyMaxRows, "many", "want a non-negative integer"},
			{KeyTimeout, "soon", "want a duration"},
			{KeyNoRows, "empty", "want throw or null"},
			{KeyNoMoreRows, "null", "want throw or ignore"},
			{KeyGeneratedKeys, "auto", "want use_generated_keys or requery"},
			{"fetchsize", "1", "unknown key"},
		}
		for _, tt := range tests {
			t.Run(tt.key, func(t *testing.T) {
				_, msgs := ParseSettings(SQLite, load.Config{tt.key: tt.value})
				require.True(t, msgs.HasErrors())
				assert.True(t, msgs.Contains(tt.want), msgs.String())
				assert.True(t, msgs.Contains("config "+tt.key+"="), msgs.String())
			})
		}
	})
}

func TestMerge(t *testing.T) {
	process := load.Config{KeyBatchSize: "500", KeyTimeout: "5s"}
	repo := load.Config{KeyTimeout: "2s"}
	method := load.Config{KeyBatchSize: "50"}

	got := Merge(process, repo, method)
	assert.Equal(t, load.Config{KeyBatchSize: "50", KeyTimeout: "2s"}, got)
	assert.Equal(t, "500", process[KeyBatchSize], "layers are not modified")
}

func TestValidateSetting(t *testing.T) {
	require.NoError(t, ValidateSetting(KeyNoRows, "null"))

	err := ValidateSetting(KeyNoRows, "nil")
	require.Error(t, err)
	assert.True(t, IsConfigError(err))
}
