// Package migrations embeds the goose migrations for each supported database.
package migrations

import (
	"database/sql"
	"embed"
	"fmt"

	"github.com/pressly/goose/v3"
)

//go:embed postgres/*.sql sqlite/*.sql
var FS embed.FS

// Dialect selects the migration directory and goose dialect.
type Dialect string

const (
	Postgres Dialect = "postgres"
	SQLite   Dialect = "sqlite3"
)

func (d Dialect) dir() string {
	if d == SQLite {
		return "sqlite"
	}
	return "postgres"
}

// Run applies a goose command (up, down, status, version, reset) against db.
func Run(db *sql.DB, dialect Dialect, command string) error {
	goose.SetBaseFS(FS)
	if err := goose.SetDialect(string(dialect)); err != nil {
		return fmt.Errorf("set goose dialect: %w", err)
	}
	switch command {
	case "up":
		return goose.Up(db, dialect.dir())
	case "down":
		return goose.Down(db, dialect.dir())
	case "status":
		return goose.Status(db, dialect.dir())
	case "version":
		return goose.Version(db, dialect.dir())
	case "reset":
		return goose.Reset(db, dialect.dir())
	default:
		return fmt.Errorf("unknown migration command %q", command)
	}
}
