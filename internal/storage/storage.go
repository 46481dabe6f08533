package storage

import (
	"context"
	"io"
)

// PhotoStorage defines the interface for storing uploaded product photos.
// Photos are keyed by content hash so retried requests reuse the same object.
type PhotoStorage interface {
	// Upload uploads a photo to storage
	Upload(ctx context.Context, key string, reader io.Reader, size int64, contentType string) error

	// Download downloads a photo from storage
	Download(ctx context.Context, key string) (io.ReadCloser, error)

	// GetURL returns the URL for accessing a photo
	GetURL(key string) string

	// Delete deletes a photo from storage
	Delete(ctx context.Context, key string) error

	// Exists checks if a photo exists
	Exists(ctx context.Context, key string) (bool, error)

	// EnsureBucket creates the backing bucket if it does not exist
	EnsureBucket(ctx context.Context) error
}

// PhotoKey builds the storage key for a photo: content-hash bucketed, with the
// photo kind (product/barcode/label) in the path so evidence records stay
// self-describing.
func PhotoKey(kind, contentHash, format string) string {
	return contentHash[:2] + "/" + contentHash + "-" + kind + "." + format
}

// ContentType maps an image format extension to its MIME type.
func ContentType(format string) string {
	switch format {
	case "jpeg", "jpg":
		return "image/jpeg"
	case "png":
		return "image/png"
	case "gif":
		return "image/gif"
	case "webp":
		return "image/webp"
	default:
		return "application/octet-stream"
	}
}
