package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
)

const metaFile = "meta.json"

// LocalStorage implements Storage on the local filesystem. Each upload gets
// its own directory "<base>/<owner>/<fileID>/" holding the payload and a
// meta.json sidecar, mirroring the GCS object names.
type LocalStorage struct {
	basePath string
}

// NewLocalStorage creates the base directory if needed.
func NewLocalStorage(basePath string) (*LocalStorage, error) {
	if err := os.MkdirAll(basePath, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create storage directory: %w", err)
	}
	return &LocalStorage{basePath: basePath}, nil
}

func (s *LocalStorage) uploadDir(ownerID string, fileID uuid.UUID) string {
	return filepath.Join(s.basePath, sanitizeOwner(ownerID), fileID.String())
}

func (s *LocalStorage) Upload(ctx context.Context, ownerID string, filename string, contentType string, r io.Reader) (*FileInfo, error) {
	fileID := uuid.New()
	dir := s.uploadDir(ownerID, fileID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create upload directory: %w", err)
	}

	stored := sanitizeFilename(filename)
	if stored == "" || stored == "." || stored == metaFile {
		stored = "upload"
	}

	size, err := writeFile(filepath.Join(dir, stored), r)
	if err != nil {
		os.RemoveAll(dir)
		return nil, err
	}

	info := &FileInfo{
		ID:          fileID,
		OwnerID:     ownerID,
		Name:        filename,
		Size:        size,
		ContentType: contentType,
		Path:        filepath.Join(sanitizeOwner(ownerID), fileID.String(), stored),
		CreatedAt:   time.Now(),
	}

	meta, err := json.Marshal(info)
	if err != nil {
		os.RemoveAll(dir)
		return nil, fmt.Errorf("failed to marshal metadata: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dir, metaFile), meta, 0o644); err != nil {
		os.RemoveAll(dir)
		return nil, fmt.Errorf("failed to write metadata: %w", err)
	}
	return info, nil
}

func writeFile(path string, r io.Reader) (int64, error) {
	f, err := os.Create(path)
	if err != nil {
		return 0, fmt.Errorf("failed to create file: %w", err)
	}
	size, err := io.Copy(f, r)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return 0, fmt.Errorf("failed to write file: %w", err)
	}
	return size, nil
}

// Delete removes the upload directory. Unknown files report ErrFileNotFound.
func (s *LocalStorage) Delete(ctx context.Context, ownerID string, fileID uuid.UUID) error {
	if _, err := s.GetInfo(ctx, ownerID, fileID); err != nil {
		return err
	}
	if err := os.RemoveAll(s.uploadDir(ownerID, fileID)); err != nil {
		return fmt.Errorf("failed to delete upload: %w", err)
	}
	return nil
}

func (s *LocalStorage) GetInfo(ctx context.Context, ownerID string, fileID uuid.UUID) (*FileInfo, error) {
	data, err := os.ReadFile(filepath.Join(s.uploadDir(ownerID, fileID), metaFile))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%s: %w", fileID, ErrFileNotFound)
		}
		return nil, fmt.Errorf("failed to read metadata: %w", err)
	}

	var info FileInfo
	if err := json.Unmarshal(data, &info); err != nil {
		return nil, fmt.Errorf("failed to parse metadata: %w", err)
	}
	return &info, nil
}

func (s *LocalStorage) GetReader(ctx context.Context, ownerID string, fileID uuid.UUID) (io.ReadCloser, error) {
	info, err := s.GetInfo(ctx, ownerID, fileID)
	if err != nil {
		return nil, err
	}

	f, err := os.Open(filepath.Join(s.basePath, info.Path))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%s: %w", fileID, ErrFileNotFound)
		}
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	return f, nil
}
