package pipeline

import (
	"context"
	"fmt"
	"strings"

	"toonify/internal/domain"
	"toonify/internal/storage"
)

const (
	defaultPageSize = 10
	maxPageSize     = 50
)

// Pagination describes one history page.
type Pagination struct {
	Total      int `json:"total"`
	Page       int `json:"page"`
	Limit      int `json:"limit"`
	TotalPages int `json:"totalPages"`
}

// Page is a slice of a user's history, newest first.
type Page struct {
	Tasks      []domain.TransformJob
	Pagination Pagination
}

// History lists the caller's conversions.
func (s *Service) History(ctx context.Context, filter domain.ListFilter) (*Page, error) {
	if strings.TrimSpace(filter.UserID) == "" {
		return nil, domain.ErrUnauthenticated
	}
	if filter.Status != "" && !filter.Status.Valid() {
		return nil, fmt.Errorf("%w: unknown status %q", domain.ErrInvalidRequest, filter.Status)
	}
	if filter.Type != "" && !filter.Type.Valid() {
		return nil, fmt.Errorf("%w: unknown type %q", domain.ErrInvalidRequest, filter.Type)
	}
	if filter.Page < 1 {
		filter.Page = 1
	}
	switch {
	case filter.Limit <= 0:
		filter.Limit = defaultPageSize
	case filter.Limit > maxPageSize:
		filter.Limit = maxPageSize
	}
	rows, total, err := s.history.List(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("list history: %w", err)
	}
	if rows == nil {
		rows = []domain.TransformJob{}
	}
	return &Page{
		Tasks: rows,
		Pagination: Pagination{
			Total:      total,
			Page:       filter.Page,
			Limit:      filter.Limit,
			TotalPages: (total + filter.Limit - 1) / filter.Limit,
		},
	}, nil
}

// Credits returns the caller's balance.
func (s *Service) Credits(ctx context.Context, userID string) (int, error) {
	if strings.TrimSpace(userID) == "" {
		return 0, domain.ErrUnauthenticated
	}
	return s.credits.Balance(ctx, userID)
}

// PresignUpload issues a direct-upload URL for a face image or custom
// video. Uploading requires at least one credit.
func (s *Service) PresignUpload(ctx context.Context, userID string, req storage.UploadRequest) (*storage.PresignedUpload, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, domain.ErrUnauthenticated
	}
	kind, err := storage.ValidateUpload(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrInvalidRequest, err)
	}
	if err := s.admit(ctx, userID, 1); err != nil {
		return nil, err
	}
	if s.uploads == nil {
		return nil, storage.ErrNotConfigured
	}
	key := storage.UploadKey(kind, req.FileName, s.now())
	return s.uploads.PresignUpload(ctx, key, req.ContentType, storage.UploadExpiry)
}
