package gen

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/syssam/daogen"
)

func TestLookupDialect(t *testing.T) {
	tests := []struct {
		name        string
		want        string
		placeholder daogen.Placeholder
		keys        KeyStrategy
	}{
		{"sqlite", "sqlite", daogen.Question, UseGeneratedKeys},
		{"sqlite3", "sqlite", daogen.Question, UseGeneratedKeys},
		{"MySQL", "mysql", daogen.Question, UseGeneratedKeys},
		{"postgres", "postgres", daogen.Dollar, Requery},
		{" pgx ", "postgres", daogen.Dollar, Requery},
		{"postgresql", "postgres", daogen.Dollar, Requery},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, err := LookupDialect(tt.name)
			require.NoError(t, err)
			assert.Equal(t, tt.want, d.String())
			assert.Equal(t, tt.placeholder, d.Placeholder)
			assert.Equal(t, tt.keys, d.Keys)
		})
	}

	t.Run("unknown dialect", func(t *testing.T) {
		_, err := LookupDialect("oracle")
		require.Error(t, err)
		assert.True(t, IsConfigError(err))
		assert.Contains(t, err.Error(), "use sqlite, mysql or postgres")
	})
}

func TestKeyStrategy(t *testing.T) {
	assert.Equal(t, "use_generated_keys", UseGeneratedKeys.String())
	assert.Equal(t, "requery", Requery.String())
}

func TestDialectPlaceholder(t *testing.T) {
	assert.Equal(t, "daogen.Dollar", fmtCode(Postgres.placeholder()))
	assert.Equal(t, "daogen.Question", fmtCode(MySQL.placeholder()))
}
