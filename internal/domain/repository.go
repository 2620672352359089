package domain

import (
	"context"
	"time"
)

// TransformRepository persists conversion history rows.
type TransformRepository interface {
	Record(ctx context.Context, job *TransformJob) (string, error)
	// UpdateStatus moves a processing row to a terminal status. It reports
	// false when the row is missing or already terminal.
	UpdateStatus(ctx context.Context, providerJobID string, status TransformStatus, resultURL, errorMessage string) (bool, error)
	GetByProviderJobID(ctx context.Context, providerJobID string) (*TransformJob, error)
	List(ctx context.Context, filter ListFilter) ([]TransformJob, int, error)
}

// StaleLister finds processing rows nobody has moved forward since before.
type StaleLister interface {
	ListStale(ctx context.Context, before time.Time, limit int) ([]TransformJob, error)
}

// CreditLedger guards paid operations with a per-user balance.
type CreditLedger interface {
	Balance(ctx context.Context, userID string) (int, error)
	// Deduct charges amount for providerJobID in a single conditional update.
	// ok is false when the balance is short or the job was already charged.
	Deduct(ctx context.Context, userID string, amount int, reason, providerJobID string) (remaining int, ok bool, err error)
	Grant(ctx context.Context, userID string, amount int, reason string) (int, error)
	Transactions(ctx context.Context, userID string, limit int) ([]CreditTransaction, error)
}
