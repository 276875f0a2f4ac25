package dialect

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestName(t *testing.T) {
	tests := map[string]string{
		"mysql":      MySQL,
		"sqlite":     SQLite,
		"sqlite3":    SQLite,
		"postgres":   Postgres,
		"postgresql": Postgres,
		"pgx":        Postgres,
		"Postgres":   Postgres,
		"oracle":     "oracle",
	}
	for driver, want := range tests {
		t.Run(driver, func(t *testing.T) {
			assert.Equal(t, want, Name(driver))
		})
	}
}
