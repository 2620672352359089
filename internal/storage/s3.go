package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// S3Options configures an S3-compatible bucket (Aliyun OSS, MinIO, AWS).
type S3Options struct {
	Endpoint      string
	AccessKey     string
	SecretKey     string
	Bucket        string
	UseSSL        bool
	PublicBaseURL string
}

// S3Store keeps objects in an S3-compatible bucket.
type S3Store struct {
	client     *minio.Client
	bucket     string
	publicBase string
	now        func() time.Time
}

// NewS3Store builds a minio client for opts.
func NewS3Store(opts S3Options) (*S3Store, error) {
	if strings.TrimSpace(opts.Endpoint) == "" || strings.TrimSpace(opts.Bucket) == "" {
		return nil, errors.New("storage: s3 endpoint and bucket are required")
	}
	client, err := minio.New(opts.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(opts.AccessKey, opts.SecretKey, ""),
		Secure: opts.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("storage: init s3 client: %w", err)
	}
	publicBase := strings.TrimRight(opts.PublicBaseURL, "/")
	if publicBase == "" {
		endpoint := client.EndpointURL()
		publicBase = fmt.Sprintf("%s://%s/%s", endpoint.Scheme, endpoint.Host, opts.Bucket)
	}
	return &S3Store{client: client, bucket: opts.Bucket, publicBase: publicBase, now: time.Now}, nil
}

// PublicURL returns the URL clients use to read key.
func (s *S3Store) PublicURL(key string) string {
	return s.publicBase + "/" + key
}

// PutObject uploads body under key. A negative size streams with multipart.
func (s *S3Store) PutObject(ctx context.Context, key, contentType string, body io.Reader, size int64) (string, error) {
	if s == nil {
		return "", ErrNotConfigured
	}
	cleanKey, err := sanitizeKey(key)
	if err != nil {
		return "", err
	}
	_, err = s.client.PutObject(ctx, s.bucket, cleanKey, body, size, minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return "", fmt.Errorf("storage: put %s: %w", cleanKey, err)
	}
	return s.PublicURL(cleanKey), nil
}

// PresignUpload issues a presigned PUT URL for key.
func (s *S3Store) PresignUpload(ctx context.Context, key, contentType string, expiry time.Duration) (*PresignedUpload, error) {
	if s == nil {
		return nil, ErrNotConfigured
	}
	cleanKey, err := sanitizeKey(key)
	if err != nil {
		return nil, err
	}
	u, err := s.client.PresignedPutObject(ctx, s.bucket, cleanKey, expiry)
	if err != nil {
		return nil, fmt.Errorf("storage: presign %s: %w", cleanKey, err)
	}
	return &PresignedUpload{
		UploadURL:       u.String(),
		PublicURL:       s.PublicURL(cleanKey),
		Key:             cleanKey,
		ExpiresAt:       s.now().Add(expiry).Unix(),
		RequiredHeaders: map[string]string{"Content-Type": contentType},
	}, nil
}
