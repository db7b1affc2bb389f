package storage_test

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/nordvik-media/blog-api/internal/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ============================================================================
// Storage Interface Tests
// ============================================================================

// TestStorageInterfaceCompliance verifies that all storage implementations
// properly implement the Storage interface.
func TestStorageInterfaceCompliance(t *testing.T) {
	var _ storage.Storage = (*storage.LocalStorage)(nil)
	var _ storage.Storage = (*storage.AzureBlobStorage)(nil)
}

// ============================================================================
// LocalStorage Tests
// ============================================================================

func TestNewLocalStorage_CreatesDirectory(t *testing.T) {
	tempDir := t.TempDir()
	basePath := filepath.Join(tempDir, "uploads")

	ls, err := storage.NewLocalStorage(basePath)

	require.NoError(t, err)
	assert.NotNil(t, ls)

	// Verify directory was created
	info, err := os.Stat(basePath)
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}

func TestLocalStorage_Upload(t *testing.T) {
	tempDir := t.TempDir()
	ls, err := storage.NewLocalStorage(tempDir)
	require.NoError(t, err)

	tests := []struct {
		name        string
		key         string
		contentType string
		content     []byte
	}{
		{
			name:        "upload jpg image",
			key:         "A1B2C3D4.jpg",
			contentType: "image/jpeg",
			content:     []byte{0xFF, 0xD8, 0xFF, 0xE0}, // JPEG magic bytes
		},
		{
			name:        "upload png image",
			key:         "E5F6G7H8.png",
			contentType: "image/png",
			content:     []byte("fake png content"),
		},
		{
			name:        "upload empty object",
			key:         "EMPTY.jpg",
			contentType: "image/jpeg",
			content:     []byte{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reader := bytes.NewReader(tt.content)

			size, err := ls.Upload(context.Background(), tt.key, tt.contentType, reader)

			require.NoError(t, err)
			assert.Equal(t, int64(len(tt.content)), size)

			// Object is stored under its key
			_, err = os.Stat(filepath.Join(tempDir, tt.key))
			assert.NoError(t, err)
		})
	}
}

func TestLocalStorage_UploadStripsPathComponents(t *testing.T) {
	tempDir := t.TempDir()
	ls, err := storage.NewLocalStorage(tempDir)
	require.NoError(t, err)

	_, err = ls.Upload(context.Background(), "../escape.jpg", "image/jpeg", bytes.NewReader([]byte("x")))
	require.NoError(t, err)

	// Key is flattened to its base name inside the storage root
	_, err = os.Stat(filepath.Join(tempDir, "escape.jpg"))
	assert.NoError(t, err)
	_, err = os.Stat(filepath.Join(filepath.Dir(tempDir), "escape.jpg"))
	assert.True(t, os.IsNotExist(err))
}

func TestLocalStorage_DownloadRoundTrip(t *testing.T) {
	tempDir := t.TempDir()
	ls, err := storage.NewLocalStorage(tempDir)
	require.NoError(t, err)

	content := []byte("image bytes")
	_, err = ls.Upload(context.Background(), "ROUNDTRIP.png", "image/png", bytes.NewReader(content))
	require.NoError(t, err)

	reader, err := ls.Download(context.Background(), "ROUNDTRIP.png")
	require.NoError(t, err)
	defer reader.Close()

	got, err := io.ReadAll(reader)
	require.NoError(t, err)
	assert.Equal(t, content, got)
}

func TestLocalStorage_DownloadMissingKey(t *testing.T) {
	tempDir := t.TempDir()
	ls, err := storage.NewLocalStorage(tempDir)
	require.NoError(t, err)

	_, err = ls.Download(context.Background(), "DOES_NOT_EXIST.jpg")
	assert.Error(t, err)
}

func TestLocalStorage_Delete(t *testing.T) {
	tempDir := t.TempDir()
	ls, err := storage.NewLocalStorage(tempDir)
	require.NoError(t, err)

	_, err = ls.Upload(context.Background(), "DELETE_ME.jpg", "image/jpeg", bytes.NewReader([]byte("x")))
	require.NoError(t, err)

	require.NoError(t, ls.Delete(context.Background(), "DELETE_ME.jpg"))

	_, err = os.Stat(filepath.Join(tempDir, "DELETE_ME.jpg"))
	assert.True(t, os.IsNotExist(err))
}

func TestLocalStorage_DeleteMissingKeyIsIdempotent(t *testing.T) {
	tempDir := t.TempDir()
	ls, err := storage.NewLocalStorage(tempDir)
	require.NoError(t, err)

	// Deleting an absent object is not an error
	assert.NoError(t, ls.Delete(context.Background(), "NEVER_EXISTED.png"))
}
