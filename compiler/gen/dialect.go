package gen

import (
	"slices"
	"strings"

	"github.com/dave/jennifer/jen"

	"github.com/syssam/daogen"
	"github.com/syssam/daogen/compiler/shape"
)

// KeyStrategy selects how //dao:keys methods obtain the generated key.
type KeyStrategy int

const (
	// UseGeneratedKeys reads sql.Result.LastInsertId.
	UseGeneratedKeys KeyStrategy = iota
	// Requery runs the statement as a query (e.g. INSERT ... RETURNING id)
	// and reads the single value it returns.
	Requery
)

// String implements fmt.Stringer.
func (k KeyStrategy) String() string {
	if k == Requery {
		return "requery"
	}
	return "use_generated_keys"
}

// Dialect describes the SQL flavour generated statements are written for.
type Dialect struct {
	Name        string
	Aliases     []string
	Placeholder daogen.Placeholder
	// Keys is the generated-key strategy used when none is configured.
	Keys KeyStrategy
}

// Supported dialects.
var (
	SQLite   = Dialect{Name: "sqlite", Aliases: []string{"sqlite3"}, Placeholder: daogen.Question, Keys: UseGeneratedKeys}
	MySQL    = Dialect{Name: "mysql", Placeholder: daogen.Question, Keys: UseGeneratedKeys}
	Postgres = Dialect{Name: "postgres", Aliases: []string{"postgresql", "pgx"}, Placeholder: daogen.Dollar, Keys: Requery}
)

var dialects = []Dialect{SQLite, MySQL, Postgres}

// LookupDialect returns the dialect registered under name.
func LookupDialect(name string) (Dialect, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	for _, d := range dialects {
		if d.Name == name || slices.Contains(d.Aliases, name) {
			return d, nil
		}
	}
	return Dialect{}, NewConfigError("dialect", name, "unsupported dialect; use sqlite, mysql or postgres")
}

// String implements fmt.Stringer.
func (d Dialect) String() string { return d.Name }

// placeholder is the runtime constant naming the dialect's marker style.
func (d Dialect) placeholder() *jen.Statement {
	if d.Placeholder == daogen.Dollar {
		return jen.Qual(shape.RuntimePath, "Dollar")
	}
	return jen.Qual(shape.RuntimePath, "Question")
}
