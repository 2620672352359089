package bootstrap

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"toonify/internal/infra"
)

func TestBuildWithEmbeddedStore(t *testing.T) {
	dir := t.TempDir()
	cfg := &infra.Config{
		DatabaseURL:     "sqlite:" + filepath.Join(dir, "toonify.db"),
		JWTSecret:       "secret",
		DashScopeRegion: "singapore",
		StorageDriver:   "file",
		StoragePath:     filepath.Join(dir, "objects"),
		StorageBaseURL:  "http://localhost:8080/objects",
		WanMaxAttempts:  4,
	}
	rt, err := Build(context.Background(), cfg, infra.NopLogger())
	t.Cleanup(rt.Close)
	require.NoError(t, err)

	assert.NotNil(t, rt.Service)
	assert.NotNil(t, rt.Stale)
	assert.NotNil(t, rt.Served, "file storage is served by the api")
	require.NoError(t, rt.Ping(context.Background()))

	credits, err := rt.Service.Credits(context.Background(), "user-1")
	require.NoError(t, err)
	assert.Zero(t, credits)
}

func TestBuildRejectsBadS3Settings(t *testing.T) {
	dir := t.TempDir()
	cfg := &infra.Config{
		DatabaseURL:     "sqlite:" + filepath.Join(dir, "toonify.db"),
		JWTSecret:       "secret",
		DashScopeRegion: "beijing",
		StorageDriver:   "s3",
		S3Endpoint:      "oss.example.com",
	}
	rt, err := Build(context.Background(), cfg, infra.NopLogger())
	t.Cleanup(rt.Close)
	require.Error(t, err)
	assert.Nil(t, rt.Service)
}
