package storage

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newFileStore(t *testing.T) *FileStore {
	t.Helper()
	store, err := NewFileStore(t.TempDir(), "http://localhost:8080/objects/", []byte("secret"))
	require.NoError(t, err)
	store.now = func() time.Time { return time.Unix(1_700_000_000, 0) }
	return store
}

func TestFileStorePutObject(t *testing.T) {
	store := newFileStore(t)
	got, err := store.PutObject(context.Background(), "/generated-images/../generated-images/a.jpg", "image/jpeg", strings.NewReader("jpeg"), 4)
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:8080/objects/generated-images/a.jpg", got)

	raw, err := os.ReadFile(filepath.Join(store.BasePath(), "generated-images", "a.jpg"))
	require.NoError(t, err)
	assert.Equal(t, "jpeg", string(raw))
}

func TestSanitizeKeyRejectsTraversal(t *testing.T) {
	for _, key := range []string{"", "..", "../etc/passwd", "a/../../b", "  "} {
		_, err := sanitizeKey(key)
		assert.Error(t, err, "key %q", key)
	}
	got, err := sanitizeKey(`.\dir\file.png`)
	require.NoError(t, err)
	assert.Equal(t, "dir/file.png", got)
}

func TestFileStorePresignedUploadRoundTrip(t *testing.T) {
	store := newFileStore(t)
	up, err := store.PresignUpload(context.Background(), "probface/face-images/x.png", "image/png", UploadExpiry)
	require.NoError(t, err)
	assert.Equal(t, int64(1_700_000_300), up.ExpiresAt)
	assert.Equal(t, "http://localhost:8080/objects/probface/face-images/x.png", up.PublicURL)
	assert.Equal(t, "image/png", up.RequiredHeaders["Content-Type"])

	u, err := url.Parse(up.UploadURL)
	require.NoError(t, err)
	handler := http.StripPrefix("/objects", store)

	put := func(contentType, rawQuery string) int {
		req := httptest.NewRequest(http.MethodPut, "/objects/probface/face-images/x.png?"+rawQuery, strings.NewReader("png"))
		req.Header.Set("Content-Type", contentType)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		return rec.Code
	}

	assert.Equal(t, http.StatusForbidden, put("image/jpeg", u.RawQuery), "content type is signed")
	assert.Equal(t, http.StatusForbidden, put("image/png", "expires=1700000300&signature=00"))
	assert.Equal(t, http.StatusOK, put("image/png", u.RawQuery))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/objects/probface/face-images/x.png", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "png", rec.Body.String())

	store.now = func() time.Time { return time.Unix(1_700_000_301, 0) }
	assert.Equal(t, http.StatusForbidden, put("image/png", u.RawQuery), "expired url")
}
