package repo

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"

	"toonify/internal/domain"
	"toonify/internal/infra"
	"toonify/internal/sqlinline"
)

const uniqueViolation = "23505"

// CreditLedgerPG implements domain.CreditLedger on PostgreSQL.
type CreditLedgerPG struct {
	sql infra.SQLExecutor
}

// NewCreditLedger creates a ledger backed by the user_credits table.
func NewCreditLedger(sql infra.SQLExecutor) *CreditLedgerPG {
	return &CreditLedgerPG{sql: sql}
}

// Balance returns the user's credits; users without a row have none.
func (l *CreditLedgerPG) Balance(ctx context.Context, userID string) (int, error) {
	var credits int
	if err := l.sql.QueryRow(ctx, sqlinline.QSelectCredits, userID).Scan(&credits); err != nil {
		if infra.IsNoRows(err) {
			return 0, nil
		}
		return 0, fmt.Errorf("select credits: %w", err)
	}
	return credits, nil
}

// Deduct charges amount for providerJobID. A short balance or a job that was
// already charged yields ok=false without error.
func (l *CreditLedgerPG) Deduct(ctx context.Context, userID string, amount int, reason, providerJobID string) (int, bool, error) {
	if amount <= 0 || providerJobID == "" {
		return 0, false, fmt.Errorf("deduct credits: %w", domain.ErrInvalidRequest)
	}
	var remaining int
	err := l.sql.QueryRow(ctx, sqlinline.QDeductCredits, userID, amount, reason, providerJobID).Scan(&remaining)
	if err != nil {
		if infra.IsNoRows(err) || isUniqueViolation(err) {
			return 0, false, nil
		}
		return 0, false, fmt.Errorf("deduct credits: %w", err)
	}
	return remaining, true, nil
}

// Grant adds amount to the balance, creating the account when needed.
func (l *CreditLedgerPG) Grant(ctx context.Context, userID string, amount int, reason string) (int, error) {
	if amount <= 0 {
		return 0, fmt.Errorf("grant credits: %w: amount must be positive", domain.ErrInvalidRequest)
	}
	var credits int
	if err := l.sql.QueryRow(ctx, sqlinline.QGrantCredits, userID, amount, reason).Scan(&credits); err != nil {
		return 0, fmt.Errorf("grant credits: %w", err)
	}
	return credits, nil
}

// Transactions returns the newest ledger entries for userID.
func (l *CreditLedgerPG) Transactions(ctx context.Context, userID string, limit int) ([]domain.CreditTransaction, error) {
	rows, err := l.sql.Query(ctx, sqlinline.QListCreditTransactions, userID, limit)
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

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}

var _ domain.CreditLedger = (*CreditLedgerPG)(nil)
