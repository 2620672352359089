// Package storage persists generated media and issues direct-upload URLs.
package storage

import (
	"context"
	"errors"
	"io"
	"time"
)

// ErrNotConfigured is returned by nil stores.
var ErrNotConfigured = errors.New("storage: no store configured")

// PresignedUpload describes a time-limited direct upload.
type PresignedUpload struct {
	UploadURL       string            `json:"uploadUrl"`
	PublicURL       string            `json:"publicUrl"`
	Key             string            `json:"key"`
	ExpiresAt       int64             `json:"expiresAt"`
	RequiredHeaders map[string]string `json:"requiredHeaders"`
}

// ObjectStore is the persistence surface the pipeline and upload handlers need.
type ObjectStore interface {
	PutObject(ctx context.Context, key, contentType string, body io.Reader, size int64) (string, error)
	PresignUpload(ctx context.Context, key, contentType string, expiry time.Duration) (*PresignedUpload, error)
}
