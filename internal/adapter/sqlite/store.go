// Package sqlite provides the embedded history store and credit ledger used
// for local development and integration tests.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"modernc.org/sqlite"

	"toonify/internal/adapter/repo"
	"toonify/internal/domain"
	"toonify/internal/infra"
	"toonify/internal/migrations"
	"toonify/internal/sqlinline"
)

var hookOnce sync.Once

func registerHook() {
	hookOnce.Do(func() {
		sqlite.RegisterConnectionHook(func(conn sqlite.ExecQuerierContext, dsn string) error {
			pragmas := []string{
				"PRAGMA journal_mode = WAL",
				"PRAGMA busy_timeout = 5000",
				"PRAGMA synchronous = NORMAL",
				"PRAGMA foreign_keys = ON",
			}
			for _, p := range pragmas {
				if _, err := conn.ExecContext(context.Background(), p, nil); err != nil {
					return fmt.Errorf("execute %s: %w", p, err)
				}
			}
			return nil
		})
	})
}

// Store implements domain.TransformRepository and domain.CreditLedger on SQLite.
type Store struct {
	db     *sql.DB
	logger zerolog.Logger
	now    func() time.Time
}

// Open opens (or creates) the database at path and applies migrations.
// Use ":memory:" for a throwaway database.
func Open(path string, logger zerolog.Logger) (*Store, error) {
	registerHook()

	dsn := path
	if !strings.Contains(dsn, "?") {
		dsn += "?_time_format=sqlite"
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	// SQLite has a single writer; one connection also keeps :memory: databases alive.
	db.SetMaxOpenConns(1)

	if err := migrations.Run(db, migrations.SQLite, "up"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return &Store{db: db, logger: logger, now: func() time.Time { return time.Now().UTC() }}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// Ping checks that the database file is still reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// DB exposes the underlying handle for tooling.
func (s *Store) DB() *sql.DB {
	return s.db
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

func (s *Store) exec(ctx context.Context, db execer, query string, args ...any) (sql.Result, error) {
	marker, body, err := infra.StripMarker(query)
	if err != nil {
		return nil, err
	}
	res, err := db.ExecContext(ctx, body, args...)
	if err != nil {
		s.logger.Error().Err(err).Str("sql", marker).Msg("sql exec failed")
		return nil, err
	}
	s.logger.Debug().Str("sql", marker).Msg("sql exec")
	return res, nil
}

func (s *Store) queryRow(ctx context.Context, db execer, query string, args ...any) (*sql.Row, error) {
	marker, body, err := infra.StripMarker(query)
	if err != nil {
		return nil, err
	}
	s.logger.Debug().Str("sql", marker).Msg("sql query_row")
	return db.QueryRowContext(ctx, body, args...), nil
}

// Record inserts a processing row. The provider job id is mandatory.
func (s *Store) Record(ctx context.Context, job *domain.TransformJob) (string, error) {
	if !job.Pollable() {
		return "", fmt.Errorf("record transform: %w: provider job id is required", domain.ErrInvalidRequest)
	}
	if job.ID == "" {
		job.ID = uuid.NewString()
	}
	now := s.now()
	_, err := s.exec(ctx, s.db, sqlinline.QLiteInsertTransform,
		job.ID, job.UserID, string(job.Type), job.StyleID, job.ProviderJobID,
		job.OriginalImageURL, job.GeneratedImageURL, job.CustomPrompt, job.CreditsUsed,
		now, now,
	)
	if err != nil {
		return "", fmt.Errorf("record transform: %w", err)
	}
	job.Status = domain.StatusProcessing
	job.CreatedAt, job.UpdatedAt = now, now
	return job.ID, nil
}

// UpdateStatus applies a terminal transition to a processing row.
func (s *Store) UpdateStatus(ctx context.Context, providerJobID string, status domain.TransformStatus, resultURL, errorMessage string) (bool, error) {
	resultURL, errorMessage, err := repo.TerminalFields(status, resultURL, errorMessage)
	if err != nil {
		return false, err
	}
	res, err := s.exec(ctx, s.db, sqlinline.QLiteUpdateTransformStatus, string(status), resultURL, errorMessage, s.now(), providerJobID)
	if err != nil {
		return false, fmt.Errorf("update transform: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// GetByProviderJobID loads the row keyed by the provider's job id.
func (s *Store) GetByProviderJobID(ctx context.Context, providerJobID string) (*domain.TransformJob, error) {
	row, err := s.queryRow(ctx, s.db, sqlinline.QLiteSelectTransformByProviderJob, providerJobID)
	if err != nil {
		return nil, err
	}
	job, err := scanTransform(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return job, nil
}

// List returns one page of a user's history, newest first, plus the total match count.
func (s *Store) List(ctx context.Context, f domain.ListFilter) ([]domain.TransformJob, int, error) {
	row, err := s.queryRow(ctx, s.db, sqlinline.QLiteCountTransforms, f.UserID, string(f.Status), string(f.Type))
	if err != nil {
		return nil, 0, err
	}
	var total int
	if err := row.Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count transforms: %w", err)
	}

	marker, body, err := infra.StripMarker(sqlinline.QLiteListTransforms)
	if err != nil {
		return nil, 0, err
	}
	s.logger.Debug().Str("sql", marker).Msg("sql query")
	rows, err := s.db.QueryContext(ctx, body, f.UserID, string(f.Status), string(f.Type), f.Limit, f.Offset())
	if err != nil {
		return nil, 0, fmt.Errorf("list transforms: %w", err)
	}
	defer rows.Close()
	items := make([]domain.TransformJob, 0, f.Limit)
	for rows.Next() {
		job, err := scanTransform(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan transform: %w", err)
		}
		items = append(items, *job)
	}
	return items, total, rows.Err()
}

// ListStale returns processing rows last touched before the cutoff, oldest first.
func (s *Store) ListStale(ctx context.Context, before time.Time, limit int) ([]domain.TransformJob, error) {
	marker, body, err := infra.StripMarker(sqlinline.QLiteListStaleTransforms)
	if err != nil {
		return nil, err
	}
	s.logger.Debug().Str("sql", marker).Msg("sql query")
	rows, err := s.db.QueryContext(ctx, body, before.UTC(), limit)
	if err != nil {
		return nil, fmt.Errorf("list stale transforms: %w", err)
	}
	defer rows.Close()
	var items []domain.TransformJob
	for rows.Next() {
		job, err := scanTransform(rows)
		if err != nil {
			return nil, fmt.Errorf("scan transform: %w", err)
		}
		items = append(items, *job)
	}
	return items, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanTransform(row scanner) (*domain.TransformJob, error) {
	var (
		job        domain.TransformJob
		typ, state string
	)
	if err := row.Scan(
		&job.ID, &job.UserID, &typ, &job.StyleID, &job.ProviderJobID, &state,
		&job.OriginalImageURL, &job.GeneratedImageURL, &job.ResultURL, &job.ErrorMessage, &job.CustomPrompt,
		&job.CreditsUsed, &job.CreatedAt, &job.UpdatedAt,
	); err != nil {
		return nil, err
	}
	job.Type = domain.TransformType(typ)
	job.Status = domain.TransformStatus(state)
	return &job, nil
}

// Balance returns the user's credits; users without a row have none.
func (s *Store) Balance(ctx context.Context, userID string) (int, error) {
	return s.balance(ctx, s.db, userID)
}

func (s *Store) balance(ctx context.Context, db execer, userID string) (int, error) {
	row, err := s.queryRow(ctx, db, sqlinline.QLiteSelectCredits, userID)
	if err != nil {
		return 0, err
	}
	var credits int
	if err := row.Scan(&credits); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, nil
		}
		return 0, fmt.Errorf("select credits: %w", err)
	}
	return credits, nil
}

// Deduct charges amount for providerJobID inside one transaction: the
// duplicate check, guarded debit and audit row commit together or not at all.
func (s *Store) Deduct(ctx context.Context, userID string, amount int, reason, providerJobID string) (int, bool, error) {
	if amount <= 0 || providerJobID == "" {
		return 0, false, fmt.Errorf("deduct credits: %w", domain.ErrInvalidRequest)
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, false, fmt.Errorf("deduct credits: begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	row, err := s.queryRow(ctx, tx, sqlinline.QLiteCreditTransactionExists, providerJobID)
	if err != nil {
		return 0, false, err
	}
	var charged int
	if err := row.Scan(&charged); err != nil {
		return 0, false, fmt.Errorf("deduct credits: %w", err)
	}
	if charged > 0 {
		return 0, false, nil
	}

	now := s.now()
	res, err := s.exec(ctx, tx, sqlinline.QLiteDebitCredits, userID, amount, now)
	if err != nil {
		return 0, false, fmt.Errorf("deduct credits: %w", err)
	}
	if n, err := res.RowsAffected(); err != nil || n == 0 {
		return 0, false, err
	}
	if _, err := s.exec(ctx, tx, sqlinline.QLiteInsertCreditTransaction, userID, -amount, reason, providerJobID, now); err != nil {
		if isConstraint(err) {
			return 0, false, nil
		}
		return 0, false, fmt.Errorf("deduct credits: %w", err)
	}
	remaining, err := s.balance(ctx, tx, userID)
	if err != nil {
		return 0, false, err
	}
	if err := tx.Commit(); err != nil {
		return 0, false, fmt.Errorf("deduct credits: commit: %w", err)
	}
	return remaining, true, nil
}

// Grant adds amount to the balance, creating the account when needed.
func (s *Store) Grant(ctx context.Context, userID string, amount int, reason string) (int, error) {
	if amount <= 0 {
		return 0, fmt.Errorf("grant credits: %w: amount must be positive", domain.ErrInvalidRequest)
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer func() { _ = tx.Rollback() }()

	now := s.now()
	if _, err := s.exec(ctx, tx, sqlinline.QLiteGrantCredits, userID, amount, now); err != nil {
		return 0, fmt.Errorf("grant credits: %w", err)
	}
	if _, err := s.exec(ctx, tx, sqlinline.QLiteInsertCreditTransaction, userID, amount, reason, "", now); err != nil {
		return 0, fmt.Errorf("grant credits: %w", err)
	}
	credits, err := s.balance(ctx, tx, userID)
	if err != nil {
		return 0, err
	}
	return credits, tx.Commit()
}

// Transactions returns the newest ledger entries for userID.
func (s *Store) Transactions(ctx context.Context, userID string, limit int) ([]domain.CreditTransaction, error) {
	marker, body, err := infra.StripMarker(sqlinline.QLiteListCreditTransactions)
	if err != nil {
		return nil, err
	}
	s.logger.Debug().Str("sql", marker).Msg("sql query")
	rows, err := s.db.QueryContext(ctx, body, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("list credit transactions: %w", err)
	}
	defer rows.Close()
	var out []domain.CreditTransaction
	for rows.Next() {
		var tx domain.CreditTransaction
		if err := rows.Scan(&tx.ID, &tx.UserID, &tx.Amount, &tx.Reason, &tx.ProviderJobID, &tx.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, tx)
	}
	return out, rows.Err()
}

func isConstraint(err error) bool {
	return strings.Contains(strings.ToLower(err.Error()), "constraint")
}

var (
	_ domain.TransformRepository = (*Store)(nil)
	_ domain.CreditLedger        = (*Store)(nil)
)
