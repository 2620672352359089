package storage

import (
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"
)

// UploadExpiry bounds presigned upload URLs.
const UploadExpiry = 5 * time.Minute

const (
	maxImageUpload = 5 << 20
	maxVideoUpload = 120 << 20
)

var (
	imageUploadTypes = map[string]bool{"image/jpeg": true, "image/jpg": true, "image/png": true}
	videoUploadTypes = map[string]bool{
		"video/mp4": true, "video/avi": true, "video/mov": true, "video/wmv": true, "video/flv": true,
		"video/webm": true, "video/mkv": true, "video/ts": true, "video/mpg": true,
	}
)

// UploadKind separates face images from custom videos.
type UploadKind string

const (
	UploadImage UploadKind = "image"
	UploadVideo UploadKind = "video"
)

// UploadRequest is what a client asks to upload.
type UploadRequest struct {
	FileName    string `json:"fileName"`
	ContentType string `json:"contentType"`
	FileSize    int64  `json:"fileSize"`
}

// ValidateUpload checks type and size and returns the upload kind. A zero
// FileSize skips the size check.
func ValidateUpload(req UploadRequest) (UploadKind, error) {
	if strings.TrimSpace(req.FileName) == "" || strings.TrimSpace(req.ContentType) == "" {
		return "", fmt.Errorf("fileName and contentType are required")
	}
	ct := strings.ToLower(req.ContentType)
	switch {
	case imageUploadTypes[ct]:
		if req.FileSize > maxImageUpload {
			return "", fmt.Errorf("image must not exceed 5MB")
		}
		return UploadImage, nil
	case videoUploadTypes[ct]:
		if req.FileSize > maxVideoUpload {
			return "", fmt.Errorf("video must not exceed 120MB")
		}
		return UploadVideo, nil
	default:
		return "", fmt.Errorf("unsupported content type %q", req.ContentType)
	}
}

// UploadKey builds probface/{face-images|custom-videos}/yyyy/mm/dd/{ms}-{rand}.{ext}.
func UploadKey(kind UploadKind, fileName string, now time.Time) string {
	dir := "probface/face-images"
	ext := "jpg"
	if kind == UploadVideo {
		dir = "probface/custom-videos"
		ext = "mp4"
	}
	if e := strings.TrimPrefix(strings.ToLower(path.Ext(fileName)), "."); e != "" {
		ext = e
	}
	return fmt.Sprintf("%s/%s/%d-%s.%s", dir, now.Format("2006/01/02"), now.UnixMilli(), randomSuffix(11), ext)
}

func randomSuffix(n int) string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:n]
}
