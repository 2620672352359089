package repo

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"toonify/internal/domain"
	"toonify/internal/infra"
	"toonify/internal/sqlinline"
)

// TransformRepositoryPG implements domain.TransformRepository on PostgreSQL.
type TransformRepositoryPG struct {
	sql infra.SQLExecutor
}

// NewTransformRepository creates a history repository backed by PostgreSQL.
func NewTransformRepository(sql infra.SQLExecutor) *TransformRepositoryPG {
	return &TransformRepositoryPG{sql: sql}
}

// Record inserts a processing row. The provider job id is mandatory.
func (r *TransformRepositoryPG) Record(ctx context.Context, job *domain.TransformJob) (string, error) {
	if !job.Pollable() {
		return "", fmt.Errorf("record transform: %w: provider job id is required", domain.ErrInvalidRequest)
	}
	if job.ID == "" {
		job.ID = uuid.NewString()
	}
	row := r.sql.QueryRow(ctx, sqlinline.QInsertTransform,
		job.ID,
		job.UserID,
		string(job.Type),
		job.StyleID,
		job.ProviderJobID,
		job.OriginalImageURL,
		job.GeneratedImageURL,
		job.CustomPrompt,
		job.CreditsUsed,
	)
	var id string
	if err := row.Scan(&id); err != nil {
		return "", fmt.Errorf("record transform: %w", err)
	}
	job.Status = domain.StatusProcessing
	return id, nil
}

// UpdateStatus applies a terminal transition to a processing row.
func (r *TransformRepositoryPG) UpdateStatus(ctx context.Context, providerJobID string, status domain.TransformStatus, resultURL, errorMessage string) (bool, error) {
	if !status.Terminal() {
		return false, fmt.Errorf("update transform: %w: status %q is not terminal", domain.ErrInvalidRequest, status)
	}
	resultURL, errorMessage, err := TerminalFields(status, resultURL, errorMessage)
	if err != nil {
		return false, err
	}
	tag, err := r.sql.Exec(ctx, sqlinline.QUpdateTransformStatus, providerJobID, string(status), resultURL, errorMessage)
	if err != nil {
		return false, fmt.Errorf("update transform: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

// GetByProviderJobID loads the row keyed by the provider's job id.
func (r *TransformRepositoryPG) GetByProviderJobID(ctx context.Context, providerJobID string) (*domain.TransformJob, error) {
	row := r.sql.QueryRow(ctx, sqlinline.QSelectTransformByProviderJob, providerJobID)
	job, err := scanTransform(row)
	if err != nil {
		if infra.IsNoRows(err) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return job, nil
}

// List returns one page of a user's history, newest first, plus the total match count.
func (r *TransformRepositoryPG) List(ctx context.Context, f domain.ListFilter) ([]domain.TransformJob, int, error) {
	var total int
	if err := r.sql.QueryRow(ctx, sqlinline.QCountTransforms, f.UserID, string(f.Status), string(f.Type)).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count transforms: %w", err)
	}
	rows, err := r.sql.Query(ctx, sqlinline.QListTransforms, f.UserID, string(f.Status), string(f.Type), f.Limit, f.Offset())
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
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	return items, total, nil
}

// ListStale returns processing rows last touched before the cutoff, oldest first.
func (r *TransformRepositoryPG) ListStale(ctx context.Context, before time.Time, limit int) ([]domain.TransformJob, error) {
	rows, err := r.sql.Query(ctx, sqlinline.QListStaleTransforms, before, limit)
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

// TerminalFields normalises the result columns of a terminal transition so that
// exactly one of resultURL and errorMessage is set.
func TerminalFields(status domain.TransformStatus, resultURL, errorMessage string) (string, string, error) {
	switch status {
	case domain.StatusCompleted:
		if resultURL == "" {
			return "", "", fmt.Errorf("update transform: %w: completed without result url", domain.ErrInvalidRequest)
		}
		return resultURL, "", nil
	case domain.StatusFailed:
		if errorMessage == "" {
			errorMessage = "conversion failed"
		}
		return "", errorMessage, nil
	}
	return "", "", fmt.Errorf("update transform: %w: status %q is not terminal", domain.ErrInvalidRequest, status)
}

func scanTransform(row pgx.Row) (*domain.TransformJob, error) {
	var (
		job        domain.TransformJob
		typ, state string
	)
	if err := row.Scan(
		&job.ID,
		&job.UserID,
		&typ,
		&job.StyleID,
		&job.ProviderJobID,
		&state,
		&job.OriginalImageURL,
		&job.GeneratedImageURL,
		&job.ResultURL,
		&job.ErrorMessage,
		&job.CustomPrompt,
		&job.CreditsUsed,
		&job.CreatedAt,
		&job.UpdatedAt,
	); err != nil {
		return nil, err
	}
	job.Type = domain.TransformType(typ)
	job.Status = domain.TransformStatus(state)
	return &job, nil
}

var _ domain.TransformRepository = (*TransformRepositoryPG)(nil)
