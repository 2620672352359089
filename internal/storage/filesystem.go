package storage

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// FileStore persists objects onto the local filesystem. It is intended for
// development and test environments where an object storage service is not
// available. Uploads are authorised with HMAC-signed URLs served by ServeHTTP.
type FileStore struct {
	basePath string
	baseURL  string
	secret   []byte
	now      func() time.Time
}

// NewFileStore initializes a FileStore rooted at basePath whose objects are
// reachable under baseURL.
func NewFileStore(basePath, baseURL string, secret []byte) (*FileStore, error) {
	basePath = strings.TrimSpace(basePath)
	if basePath == "" {
		return nil, errors.New("storage: base path is required")
	}
	if len(secret) == 0 {
		return nil, errors.New("storage: signing secret is required")
	}
	if err := os.MkdirAll(basePath, 0o755); err != nil {
		return nil, fmt.Errorf("storage: ensure base path: %w", err)
	}
	return &FileStore{
		basePath: basePath,
		baseURL:  strings.TrimRight(baseURL, "/"),
		secret:   secret,
		now:      time.Now,
	}, nil
}

// BasePath returns the configured root directory.
func (s *FileStore) BasePath() string {
	if s == nil {
		return ""
	}
	return s.basePath
}

// PublicURL returns the URL clients use to read key.
func (s *FileStore) PublicURL(key string) string {
	return s.baseURL + "/" + key
}

// PutObject streams body to key and returns its public URL.
func (s *FileStore) PutObject(ctx context.Context, key, _ string, body io.Reader, _ int64) (string, error) {
	if s == nil {
		return "", ErrNotConfigured
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}
	cleanKey, err := sanitizeKey(key)
	if err != nil {
		return "", err
	}
	if err := s.write(cleanKey, body); err != nil {
		return "", err
	}
	return s.PublicURL(cleanKey), nil
}

func (s *FileStore) write(cleanKey string, body io.Reader) error {
	fullPath := filepath.Join(s.basePath, filepath.FromSlash(cleanKey))
	if err := os.MkdirAll(filepath.Dir(fullPath), 0o755); err != nil {
		return fmt.Errorf("storage: ensure directory: %w", err)
	}
	f, err := os.CreateTemp(filepath.Dir(fullPath), ".upload-*")
	if err != nil {
		return fmt.Errorf("storage: create file: %w", err)
	}
	if _, err := io.Copy(f, body); err != nil {
		f.Close()
		os.Remove(f.Name())
		return fmt.Errorf("storage: write file: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(f.Name())
		return fmt.Errorf("storage: close file: %w", err)
	}
	if err := os.Rename(f.Name(), fullPath); err != nil {
		os.Remove(f.Name())
		return fmt.Errorf("storage: commit file: %w", err)
	}
	return nil
}

// PresignUpload issues a signed PUT URL for key that expires after expiry.
func (s *FileStore) PresignUpload(ctx context.Context, key, contentType string, expiry time.Duration) (*PresignedUpload, error) {
	if s == nil {
		return nil, ErrNotConfigured
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	cleanKey, err := sanitizeKey(key)
	if err != nil {
		return nil, err
	}
	expires := s.now().Add(expiry).Unix()
	q := url.Values{}
	q.Set("expires", strconv.FormatInt(expires, 10))
	q.Set("signature", s.sign(cleanKey, contentType, expires))
	return &PresignedUpload{
		UploadURL:       s.PublicURL(cleanKey) + "?" + q.Encode(),
		PublicURL:       s.PublicURL(cleanKey),
		Key:             cleanKey,
		ExpiresAt:       expires,
		RequiredHeaders: map[string]string{"Content-Type": contentType},
	}, nil
}

func (s *FileStore) sign(key, contentType string, expires int64) string {
	mac := hmac.New(sha256.New, s.secret)
	fmt.Fprintf(mac, "PUT\n%s\n%d\n%s", contentType, expires, key)
	return hex.EncodeToString(mac.Sum(nil))
}

// ServeHTTP serves stored objects on GET and accepts presigned uploads on
// PUT. Mount it with the URL prefix stripped.
func (s *FileStore) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet, http.MethodHead:
		http.FileServer(http.Dir(s.basePath)).ServeHTTP(w, r)
	case http.MethodPut:
		s.acceptUpload(w, r)
	default:
		w.Header().Set("Allow", "GET, HEAD, PUT")
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

func (s *FileStore) acceptUpload(w http.ResponseWriter, r *http.Request) {
	key, err := sanitizeKey(r.URL.Path)
	if err != nil {
		http.Error(w, "invalid key", http.StatusBadRequest)
		return
	}
	expires, err := strconv.ParseInt(r.URL.Query().Get("expires"), 10, 64)
	if err != nil || s.now().Unix() > expires {
		http.Error(w, "upload url expired", http.StatusForbidden)
		return
	}
	want := s.sign(key, r.Header.Get("Content-Type"), expires)
	if !hmac.Equal([]byte(want), []byte(r.URL.Query().Get("signature"))) {
		http.Error(w, "signature mismatch", http.StatusForbidden)
		return
	}
	if err := s.write(key, r.Body); err != nil {
		http.Error(w, "upload failed", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusOK)
}

// sanitizeKey normalizes a key and prevents escaping the storage root.
func sanitizeKey(key string) (string, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return "", errors.New("storage: key is required")
	}
	key = strings.ReplaceAll(key, "\\", "/")
	key = strings.TrimPrefix(key, "./")
	key = strings.TrimLeft(key, "/")
	cleaned := filepath.ToSlash(filepath.Clean(key))
	if cleaned == "." || cleaned == ".." || strings.HasPrefix(cleaned, "../") {
		return "", errors.New("storage: invalid key")
	}
	return cleaned, nil
}
