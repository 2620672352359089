package main

import (
	"database/sql"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"

	"toonify/internal/infra"
	"toonify/internal/migrations"
)

func main() {
	_ = godotenv.Load()

	flag.Usage = func() {
		fmt.Fprintln(os.Stderr, "usage: migrate [up|down|status|version|reset]")
	}
	flag.Parse()
	command := "up"
	if flag.NArg() > 0 {
		command = strings.ToLower(flag.Arg(0))
	}

	logger := infra.NewLogger(os.Getenv("APP_ENV"), os.Getenv("LOG_LEVEL")).With().Str("cmd", "migrate").Str("command", command).Logger()

	dbURL := strings.TrimSpace(os.Getenv("DATABASE_URL"))
	if dbURL == "" {
		logger.Fatal().Msg("DATABASE_URL is required")
	}

	driver, dsn, dialect := "postgres", dbURL, migrations.Postgres
	if strings.HasPrefix(dbURL, "sqlite:") {
		driver = "sqlite"
		dsn = strings.TrimPrefix(strings.TrimPrefix(dbURL, "sqlite:"), "//")
		dialect = migrations.SQLite
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to open database")
	}
	defer db.Close()

	if err := migrations.Run(db, dialect, command); err != nil {
		logger.Fatal().Err(err).Msg("migration failed")
	}
	logger.Info().Str("dialect", string(dialect)).Msg("migrations done")
}
