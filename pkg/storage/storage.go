// Package storage retains uploaded statement files, on the local filesystem
// or in a Google Cloud Storage bucket.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ErrFileNotFound is returned when the owner has no file with the given ID.
var ErrFileNotFound = errors.New("file not found")

// FileInfo contains metadata about a stored file
type FileInfo struct {
	ID          uuid.UUID `json:"id"`
	OwnerID     string    `json:"owner_id"`
	Name        string    `json:"name"`
	Size        int64     `json:"size"`
	ContentType string    `json:"content_type"`
	Path        string    `json:"path"` // Internal storage path
	CreatedAt   time.Time `json:"created_at"`
}

// Storage defines the interface for file storage operations
type Storage interface {
	// Upload stores a file and returns its metadata
	Upload(ctx context.Context, ownerID string, filename string, contentType string, r io.Reader) (*FileInfo, error)

	// Delete removes a file by its ID; unknown IDs return ErrFileNotFound
	Delete(ctx context.Context, ownerID string, fileID uuid.UUID) error

	// GetInfo returns metadata for a file without downloading
	GetInfo(ctx context.Context, ownerID string, fileID uuid.UUID) (*FileInfo, error)

	// GetReader returns a reader for a file (for streaming processing)
	GetReader(ctx context.Context, ownerID string, fileID uuid.UUID) (io.ReadCloser, error)
}

// StorageType identifies the storage backend
type StorageType string

const (
	StorageTypeLocal StorageType = "local"
	StorageTypeGCS   StorageType = "gcs"
)

// Config holds storage configuration
type Config struct {
	Type      StorageType
	LocalPath string
	GCSBucket string
}

// New creates a new Storage implementation based on configuration
func New(ctx context.Context, cfg *Config) (Storage, error) {
	switch cfg.Type {
	case StorageTypeGCS:
		if cfg.GCSBucket == "" {
			return nil, fmt.Errorf("gcs storage requires a bucket")
		}
		return NewGCSStorage(ctx, cfg.GCSBucket)
	case StorageTypeLocal:
		fallthrough
	default:
		return NewLocalStorage(cfg.LocalPath)
	}
}

// ReadAll loads a stored file into memory.
func ReadAll(ctx context.Context, s Storage, ownerID string, fileID uuid.UUID) ([]byte, error) {
	rc, err := s.GetReader(ctx, ownerID, fileID)
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}
	return data, nil
}

// sanitizeFilename removes unsafe characters from filenames
func sanitizeFilename(name string) string {
	// Replace path separators and other dangerous characters
	replacer := strings.NewReplacer(
		"/", "_",
		"\\", "_",
		"..", "_",
		":", "_",
		"*", "_",
		"?", "_",
		"\"", "_",
		"<", "_",
		">", "_",
		"|", "_",
	)
	return replacer.Replace(name)
}

// sanitizeOwner keeps owner IDs usable as a single path segment.
func sanitizeOwner(ownerID string) string {
	s := sanitizeFilename(ownerID)
	if s == "" || s == "." {
		return "_"
	}
	return s
}
