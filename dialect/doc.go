// Package dialect names the database flavours daogen generates code for.
//
// # Supported Dialects
//
//   - Postgres: PostgreSQL, through github.com/lib/pq or pgx's stdlib driver
//   - MySQL: MySQL/MariaDB, through github.com/go-sql-driver/mysql
//   - SQLite: SQLite, through modernc.org/sqlite
//
// Each dialect is identified by a constant string:
//
//	dialect.Postgres = "postgres"
//	dialect.MySQL    = "mysql"
//	dialect.SQLite   = "sqlite"
//
// # Subpackages
//
//   - dialect/sql: a daogen.DB over database/sql with transaction helpers
//     and statement statistics
//   - dialect/sqlerr: classification of driver errors wrapped in
//     *daogen.DataAccessError
package dialect
