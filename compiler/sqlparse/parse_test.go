package sqlparse

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/syssam/daogen"
)

func TestParse(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		parts   []string
		markers []string
	}{
		{
			name:    "NoMarkers",
			in:      "SELECT 1",
			parts:   []string{"SELECT 1"},
			markers: nil,
		},
		{
			name:    "Simple",
			in:      "SELECT name FROM users WHERE id = :id AND org = :org",
			parts:   []string{"SELECT name FROM users WHERE id = ", " AND org = ", ""},
			markers: []string{":id", ":org"},
		},
		{
			name:    "Field",
			in:      "INSERT INTO users (id, name) VALUES (:u.id, :u.name)",
			parts:   []string{"INSERT INTO users (id, name) VALUES (", ", ", ")"},
			markers: []string{":u.id", ":u.name"},
		},
		{
			name:    "QuotesAndComments",
			in:      "SELECT ':x', \":y\", `:z` -- :c\nFROM t /* :d */ WHERE a = :a",
			parts:   []string{"SELECT ':x', \":y\", `:z` -- :c\nFROM t /* :d */ WHERE a = ", ""},
			markers: []string{":a"},
		},
		{
			name:    "Cast",
			in:      "SELECT :v::text, x::int",
			parts:   []string{"SELECT ", "::text, x::int"},
			markers: []string{":v"},
		},
		{
			name:    "EscapedQuote",
			in:      "SELECT 'it''s :not' , :yes",
			parts:   []string{"SELECT 'it''s :not' , ", ""},
			markers: []string{":yes"},
		},
		{
			name:    "LoneColon",
			in:      "SELECT a : b, :1",
			parts:   []string{"SELECT a : b, :1"},
			markers: nil,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tpl, err := Parse(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.parts, tpl.Parts)
			var got []string
			for _, m := range tpl.Markers {
				got = append(got, m.String())
			}
			assert.Equal(t, tt.markers, got)
			assert.Len(t, tpl.Parts, len(tpl.Markers)+1)
		})
	}
}

func TestParseErrors(t *testing.T) {
	_, err := Parse("SELECT 'open")
	var perr *Error
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, 7, perr.Pos)
	assert.Contains(t, err.Error(), "unterminated quoted text")

	_, err = Parse("SELECT 1 /* open")
	require.ErrorAs(t, err, &perr)
	assert.Contains(t, err.Error(), "unterminated block comment")
}

func TestTemplate(t *testing.T) {
	tpl, err := Parse("SELECT * FROM t WHERE id IN (:ids) AND a = :a OR b = :a")
	require.NoError(t, err)
	assert.Equal(t, []string{"ids", "a"}, tpl.Names())
	assert.Equal(t, 29, tpl.Markers[0].Pos)
	assert.Equal(t, "SELECT * FROM t WHERE id IN ($1) AND a = $2 OR b = $3", tpl.Native(daogen.Dollar))
	assert.Equal(t, "SELECT * FROM t WHERE id IN (?) AND a = ? OR b = ?", tpl.Native(daogen.Question))
}

func TestStatements(t *testing.T) {
	for in, want := range map[string]int{
		"UPDATE t SET a = 1":                   1,
		"UPDATE t SET a = 1;":                  1,
		"UPDATE t SET a = 1; ":                 1,
		"UPDATE t SET a = ';'":                 1,
		"UPDATE t SET a = 1; DELETE FROM t":    2,
		"UPDATE t SET a = 1; DELETE FROM t;\n": 2,
	} {
		tpl, err := Parse(in)
		require.NoError(t, err)
		assert.Equal(t, want, tpl.Statements(), in)
	}
}
