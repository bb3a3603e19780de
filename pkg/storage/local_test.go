package storage

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalStorage_RoundTrip(t *testing.T) {
	ctx := context.Background()
	base := t.TempDir()
	s, err := NewLocalStorage(base)
	require.NoError(t, err)

	info, err := s.Upload(ctx, "user-1", "statement.csv", "text/csv", strings.NewReader("取引日,取引内容\n"))
	require.NoError(t, err)
	assert.Equal(t, "statement.csv", info.Name)
	assert.Equal(t, "user-1", info.OwnerID)
	assert.Equal(t, int64(len("取引日,取引内容\n")), info.Size)
	assert.Equal(t, filepath.Join("user-1", info.ID.String(), "statement.csv"), info.Path)

	data, err := ReadAll(ctx, s, "user-1", info.ID)
	require.NoError(t, err)
	assert.Equal(t, "取引日,取引内容\n", string(data))

	// another owner cannot see the file
	_, err = s.GetInfo(ctx, "user-2", info.ID)
	assert.ErrorIs(t, err, ErrFileNotFound)
	assert.ErrorIs(t, s.Delete(ctx, "user-2", info.ID), ErrFileNotFound)

	require.NoError(t, s.Delete(ctx, "user-1", info.ID))
	_, err = s.GetReader(ctx, "user-1", info.ID)
	assert.ErrorIs(t, err, ErrFileNotFound)

	_, err = os.Stat(filepath.Join(base, "user-1", info.ID.String()))
	assert.True(t, os.IsNotExist(err))
}

func TestLocalStorage_ReservedNames(t *testing.T) {
	ctx := context.Background()
	s, err := NewLocalStorage(t.TempDir())
	require.NoError(t, err)

	for _, name := range []string{"meta.json", ".", ""} {
		info, err := s.Upload(ctx, "user-1", name, "text/csv", strings.NewReader("x"))
		require.NoError(t, err, name)
		assert.Equal(t, name, info.Name)

		data, err := ReadAll(ctx, s, "user-1", info.ID)
		require.NoError(t, err)
		assert.Equal(t, "x", string(data))
	}
}

func TestLocalStorage_UnknownFile(t *testing.T) {
	s, err := NewLocalStorage(t.TempDir())
	require.NoError(t, err)

	_, err = s.GetInfo(context.Background(), "user-1", uuid.New())
	assert.ErrorIs(t, err, ErrFileNotFound)
	assert.ErrorIs(t, s.Delete(context.Background(), "user-1", uuid.New()), ErrFileNotFound)
}

func TestSanitize(t *testing.T) {
	assert.Equal(t, "__etc_passwd", sanitizeFilename("../etc/passwd"))
	assert.Equal(t, "_", sanitizeOwner(""))
	assert.Equal(t, "a_b", sanitizeOwner("a/b"))
}
