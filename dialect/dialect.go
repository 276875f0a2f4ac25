package dialect

import "strings"

// Dialect names.
const (
	MySQL    = "mysql"
	SQLite   = "sqlite"
	Postgres = "postgres"
)

// Name maps a database/sql driver name to its dialect. Unknown drivers are
// returned unchanged.
func Name(driver string) string {
	driver = strings.ToLower(driver)
	switch {
	case strings.HasPrefix(driver, MySQL):
		return MySQL
	case strings.HasPrefix(driver, SQLite):
		return SQLite
	case strings.HasPrefix(driver, Postgres), driver == "pgx":
		return Postgres
	}
	return driver
}
