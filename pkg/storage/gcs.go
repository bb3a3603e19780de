package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"cloud.google.com/go/storage"
	"github.com/google/uuid"
	"google.golang.org/api/iterator"
)

// Object metadata keys.
const (
	metaFilename = "filename"
	metaOwner    = "owner"
)

// GCSStorage implements Storage on a Google Cloud Storage bucket.
// Objects are named "<owner>/<fileID>/<filename>".
type GCSStorage struct {
	client *storage.Client
	bucket *storage.BucketHandle
}

// NewGCSStorage creates a client using Application Default Credentials.
func NewGCSStorage(ctx context.Context, bucket string) (*GCSStorage, error) {
	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("create storage client: %w", err)
	}
	return &GCSStorage{client: client, bucket: client.Bucket(bucket)}, nil
}

// Close releases the underlying client.
func (s *GCSStorage) Close() error {
	return s.client.Close()
}

func (s *GCSStorage) Upload(ctx context.Context, ownerID string, filename string, contentType string, r io.Reader) (*FileInfo, error) {
	fileID := uuid.New()
	objectName := path.Join(sanitizeOwner(ownerID), fileID.String(), sanitizeFilename(filename))

	ctx, cancel := context.WithTimeout(ctx, 2*time.Minute)
	defer cancel()

	w := s.bucket.Object(objectName).NewWriter(ctx)
	w.ContentType = contentType
	w.Metadata = map[string]string{
		metaFilename: filename,
		metaOwner:    ownerID,
	}

	size, err := io.Copy(w, r)
	if err != nil {
		_ = w.Close()
		return nil, fmt.Errorf("copy file to GCS writer: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("finalize upload: %w", err)
	}

	return &FileInfo{
		ID:          fileID,
		OwnerID:     ownerID,
		Name:        filename,
		Size:        size,
		ContentType: contentType,
		Path:        objectName,
		CreatedAt:   time.Now(),
	}, nil
}

func (s *GCSStorage) Delete(ctx context.Context, ownerID string, fileID uuid.UUID) error {
	info, err := s.GetInfo(ctx, ownerID, fileID)
	if err != nil {
		return err
	}
	if err := s.bucket.Object(info.Path).Delete(ctx); err != nil && !errors.Is(err, storage.ErrObjectNotExist) {
		return fmt.Errorf("delete GCS object: %w", err)
	}
	return nil
}

func (s *GCSStorage) GetInfo(ctx context.Context, ownerID string, fileID uuid.UUID) (*FileInfo, error) {
	prefix := path.Join(sanitizeOwner(ownerID), fileID.String()) + "/"
	it := s.bucket.Objects(ctx, &storage.Query{Prefix: prefix})

	attrs, err := it.Next()
	if errors.Is(err, iterator.Done) {
		return nil, fmt.Errorf("%s: %w", fileID, ErrFileNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("lookup GCS object: %w", err)
	}

	info, ok := infoFromAttrs(ownerID, attrs)
	if !ok {
		return nil, fmt.Errorf("%s: %w", fileID, ErrFileNotFound)
	}
	return info, nil
}

func (s *GCSStorage) GetReader(ctx context.Context, ownerID string, fileID uuid.UUID) (io.ReadCloser, error) {
	info, err := s.GetInfo(ctx, ownerID, fileID)
	if err != nil {
		return nil, err
	}

	rc, err := s.bucket.Object(info.Path).NewReader(ctx)
	if err != nil {
		return nil, fmt.Errorf("open GCS object reader: %w", err)
	}
	return rc, nil
}

// infoFromAttrs rebuilds FileInfo from an object named "<owner>/<fileID>/<filename>".
func infoFromAttrs(ownerID string, attrs *storage.ObjectAttrs) (*FileInfo, bool) {
	parts := strings.SplitN(attrs.Name, "/", 3)
	if len(parts) != 3 {
		return nil, false
	}
	id, err := uuid.Parse(parts[1])
	if err != nil {
		return nil, false
	}

	name := attrs.Metadata[metaFilename]
	if name == "" {
		name = parts[2]
	}

	return &FileInfo{
		ID:          id,
		OwnerID:     ownerID,
		Name:        name,
		Size:        attrs.Size,
		ContentType: attrs.ContentType,
		Path:        attrs.Name,
		CreatedAt:   attrs.Created,
	}, true
}
