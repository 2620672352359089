package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"

	"toonify/internal/adapter/repo"
	"toonify/internal/adapter/sqlite"
	"toonify/internal/infra"
)

func main() {
	_ = godotenv.Load()
	logger := infra.NewLogger("cli", os.Getenv("LOG_LEVEL")).With().Str("cmd", "credits").Logger()

	open := func(ctx context.Context) (ledger, io.Closer, error) {
		dbURL := strings.TrimSpace(os.Getenv("DATABASE_URL"))
		switch {
		case dbURL == "":
			return nil, nil, fmt.Errorf("DATABASE_URL is required")
		case strings.HasPrefix(dbURL, "sqlite:"):
			store, err := sqlite.Open(strings.TrimPrefix(strings.TrimPrefix(dbURL, "sqlite:"), "//"), logger)
			if err != nil {
				return nil, nil, err
			}
			return store, store, nil
		}
		pool, err := pgxpool.New(ctx, dbURL)
		if err != nil {
			return nil, nil, fmt.Errorf("create pool: %w", err)
		}
		return repo.NewCreditLedger(infra.NewSQLRunner(pool, logger)), closerFunc(pool.Close), nil
	}

	if err := Root(open).Execute(); err != nil {
		os.Exit(1)
	}
}

type closerFunc func()

func (f closerFunc) Close() error {
	f()
	return nil
}
