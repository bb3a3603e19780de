package storage

import (
	"context"
	"testing"
	"time"

	"cloud.google.com/go/storage"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInfoFromAttrs(t *testing.T) {
	id := uuid.New()
	created := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)

	tests := []struct {
		name     string
		attrs    *storage.ObjectAttrs
		wantOK   bool
		wantName string
	}{
		{
			name: "metadata filename wins",
			attrs: &storage.ObjectAttrs{
				Name:        "user-1/" + id.String() + "/statement.csv",
				Metadata:    map[string]string{metaFilename: "明細 5月.csv"},
				Size:        42,
				ContentType: "text/csv",
				Created:     created,
			},
			wantOK:   true,
			wantName: "明細 5月.csv",
		},
		{
			name:     "falls back to object name",
			attrs:    &storage.ObjectAttrs{Name: "user-1/" + id.String() + "/statement.csv"},
			wantOK:   true,
			wantName: "statement.csv",
		},
		{
			name:  "too few segments",
			attrs: &storage.ObjectAttrs{Name: "user-1/statement.csv"},
		},
		{
			name:  "bad file id",
			attrs: &storage.ObjectAttrs{Name: "user-1/not-a-uuid/statement.csv"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			info, ok := infoFromAttrs("user-1", tt.attrs)
			require.Equal(t, tt.wantOK, ok)
			if !ok {
				return
			}
			assert.Equal(t, id, info.ID)
			assert.Equal(t, "user-1", info.OwnerID)
			assert.Equal(t, tt.wantName, info.Name)
			assert.Equal(t, tt.attrs.Name, info.Path)
			assert.Equal(t, tt.attrs.Size, info.Size)
			assert.Equal(t, tt.attrs.Created, info.CreatedAt)
		})
	}
}

func TestNew_GCSRequiresBucket(t *testing.T) {
	_, err := New(context.Background(), &Config{Type: StorageTypeGCS})
	require.Error(t, err)
}

func TestNew_DefaultsToLocal(t *testing.T) {
	s, err := New(context.Background(), &Config{LocalPath: t.TempDir()})
	require.NoError(t, err)
	assert.IsType(t, &LocalStorage{}, s)
}
