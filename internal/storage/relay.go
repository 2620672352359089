package storage

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"path"
	"strings"
	"time"

	"toonify/internal/infra"
)

// Folders used for relayed provider output.
const (
	FolderGeneratedImages = "generated-images"
	FolderGeneratedVideos = "generated-videos"
)

// RelayResult reports the outcome of one copy. Failures are carried in
// Error; callers fall back to the source URL.
type RelayResult struct {
	Success bool
	URL     string
	Key     string
	Error   string
}

// Relayer copies provider-hosted assets into the object store.
type Relayer struct {
	store      ObjectStore
	httpClient *http.Client
	logger     *infra.Logger
}

// NewRelayer wires a relayer. A nil httpClient uses a two minute timeout.
func NewRelayer(store ObjectStore, httpClient *http.Client, logger *infra.Logger) *Relayer {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 2 * time.Minute}
	}
	if logger == nil {
		logger = infra.NopLogger()
	}
	return &Relayer{store: store, httpClient: httpClient, logger: logger}
}

// Relay downloads sourceURL once and stores it as folder/nameHint.
func (r *Relayer) Relay(ctx context.Context, sourceURL, nameHint, folder string) RelayResult {
	key := path.Join(folder, nameHint)
	res, err := r.relay(ctx, sourceURL, key)
	if err != nil {
		r.logger.Warn().Err(err).Str("key", key).Msg("storage: relay failed")
		return RelayResult{Key: key, Error: err.Error()}
	}
	return res
}

func (r *Relayer) relay(ctx context.Context, sourceURL, key string) (RelayResult, error) {
	if r == nil || r.store == nil {
		return RelayResult{}, ErrNotConfigured
	}
	if strings.TrimSpace(sourceURL) == "" {
		return RelayResult{}, errors.New("storage: source url is required")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, sourceURL, nil)
	if err != nil {
		return RelayResult{}, fmt.Errorf("storage: build download: %w", err)
	}
	resp, err := r.httpClient.Do(req)
	if err != nil {
		return RelayResult{}, fmt.Errorf("storage: download: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return RelayResult{}, fmt.Errorf("storage: download: status %d", resp.StatusCode)
	}
	contentType := resp.Header.Get("Content-Type")
	if contentType == "" {
		contentType = contentTypeForKey(key)
	}
	url, err := r.store.PutObject(ctx, key, contentType, resp.Body, resp.ContentLength)
	if err != nil {
		return RelayResult{}, err
	}
	r.logger.Debug().Str("key", key).Int64("bytes", resp.ContentLength).Msg("storage: relayed provider asset")
	return RelayResult{Success: true, URL: url, Key: key}, nil
}

func contentTypeForKey(key string) string {
	switch strings.ToLower(path.Ext(key)) {
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".png":
		return "image/png"
	case ".mp4":
		return "video/mp4"
	default:
		return "application/octet-stream"
	}
}
