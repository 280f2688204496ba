package storage

import (
	"context"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/richxcame/trustx/pkg/config"
)

// Provider represents a storage provider type
type Provider string

const (
	ProviderNone  Provider = ""
	ProviderS3    Provider = "s3"
	ProviderMinIO Provider = "minio"
)

// UploadResult contains the result of an upload operation
type UploadResult struct {
	Key        string    `json:"key"`
	URL        string    `json:"url"`
	Size       int64     `json:"size"`
	MimeType   string    `json:"mime_type"`
	UploadedAt time.Time `json:"uploaded_at"`
}

// Storage keeps analysis evidence (uploaded screenshots and QR images).
type Storage interface {
	Upload(ctx context.Context, key string, reader io.Reader, size int64, contentType string) (*UploadResult, error)
	Delete(ctx context.Context, key string) error
}

// New builds the configured backend. It returns nil, nil when evidence
// storage is disabled.
func New(ctx context.Context, cfg config.StorageConfig) (Storage, error) {
	switch Provider(cfg.Provider) {
	case ProviderNone:
		return nil, nil
	case ProviderS3:
		s, err := NewS3Storage(ctx, S3Config{
			Bucket:    cfg.Bucket,
			Region:    cfg.Region,
			Endpoint:  cfg.Endpoint,
			AccessKey: cfg.AccessKey,
			SecretKey: cfg.SecretKey,
		})
		if err != nil {
			return nil, err
		}
		return s, nil
	case ProviderMinIO:
		s, err := NewMinIOStorage(ctx, MinIOConfig{
			Endpoint:  cfg.Endpoint,
			Region:    cfg.Region,
			Bucket:    cfg.Bucket,
			AccessKey: cfg.AccessKey,
			SecretKey: cfg.SecretKey,
			UseSSL:    cfg.UseSSL,
		})
		if err != nil {
			return nil, err
		}
		return s, nil
	default:
		return nil, fmt.Errorf("storage: unsupported provider %q", cfg.Provider)
	}
}

// GenerateEvidenceKey generates a unique storage key for an uploaded image.
// Format: evidence/{input_kind}/{yyyymmdd}/{session_or_anonymous}/{unique_id}{ext}
func GenerateEvidenceKey(inputKind, sessionID, contentType string) string {
	owner := sessionID
	if owner == "" {
		owner = "anonymous"
	}
	return fmt.Sprintf("evidence/%s/%s/%s/%s%s",
		strings.ToLower(inputKind),
		time.Now().UTC().Format("20060102"),
		owner,
		uuid.New().String(),
		ExtensionForMimeType(contentType),
	)
}

// ValidateMimeType checks if the mime type is allowed
func ValidateMimeType(mimeType string, allowedTypes []string) bool {
	if len(allowedTypes) == 0 {
		return true
	}

	mimeType = strings.ToLower(mimeType)
	for _, allowed := range allowedTypes {
		if strings.ToLower(allowed) == mimeType {
			return true
		}
		// Support wildcards like "image/*"
		if strings.HasSuffix(allowed, "/*") {
			prefix := strings.TrimSuffix(allowed, "*")
			if strings.HasPrefix(mimeType, prefix) {
				return true
			}
		}
	}
	return false
}

var extensions = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/gif":  ".gif",
	"image/webp": ".webp",
	"image/bmp":  ".bmp",
}

// ExtensionForMimeType returns a file extension for the image types the
// detector accepts, or ".bin".
func ExtensionForMimeType(mimeType string) string {
	if ext, ok := extensions[strings.ToLower(mimeType)]; ok {
		return ext
	}
	return ".bin"
}

// GetMimeTypeFromExtension returns the MIME type for common image file names
func GetMimeTypeFromExtension(filename string) string {
	ext := strings.ToLower(path.Ext(filename))
	if ext == ".jpeg" {
		return "image/jpeg"
	}
	for mime, e := range extensions {
		if e == ext {
			return mime
		}
	}
	return "application/octet-stream"
}
