package storage

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/foundryml/forge/internal/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newTestBlobLogger creates a logger for blob tests.
func newTestBlobLogger() *common.Logger {
	return common.NewLogger("error")
}

func TestFileBlobStore_Put(t *testing.T) {
	tmpDir := t.TempDir()
	logger := newTestBlobLogger()

	store, err := NewFileBlobStore(logger, &FileBlobConfig{BasePath: tmpDir})
	require.NoError(t, err)
	defer store.Close()

	ctx := context.Background()
	key := "datasets/ds-1/export.jsonl"
	data := []byte(`{"text": "a training record"}` + "\n")

	err = store.Put(ctx, key, data)
	require.NoError(t, err)

	path := filepath.Join(tmpDir, "datasets", "ds-1", "export.jsonl")
	got, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, data, got)
}

func TestFileBlobStore_PutReader(t *testing.T) {
	tmpDir := t.TempDir()
	logger := newTestBlobLogger()

	store, err := NewFileBlobStore(logger, &FileBlobConfig{BasePath: tmpDir})
	require.NoError(t, err)
	defer store.Close()

	ctx := context.Background()
	key := "datasets/ds-1/export.csv"
	pr, pw := os.Pipe()

	done := make(chan error, 1)
	go func() { done <- store.PutReader(ctx, key, pr, -1) }()

	_, err = pw.WriteString("document_id,text\n1,hello\n")
	require.NoError(t, err)
	require.NoError(t, pw.Close())
	require.NoError(t, <-done)

	got, err := os.ReadFile(filepath.Join(tmpDir, "datasets", "ds-1", "export.csv"))
	require.NoError(t, err)
	assert.Equal(t, "document_id,text\n1,hello\n", string(got))
}

func TestFileBlobStore_SanitizeKey(t *testing.T) {
	tmpDir := t.TempDir()
	logger := newTestBlobLogger()

	store, err := NewFileBlobStore(logger, &FileBlobConfig{BasePath: tmpDir})
	require.NoError(t, err)
	defer store.Close()

	// Test path traversal protection
	tests := []struct {
		input    string
		expected string
	}{
		{"normal/key.json", "normal/key.json"},
		{"../escape.json", "escape.json"},
		{"foo/../bar.json", "foo/bar.json"},
		{"foo/../../bar.json", "bar.json"},
		{"/absolute/path.json", "absolute/path.json"},
	}

	for _, tc := range tests {
		t.Run(tc.input, func(t *testing.T) {
			result := store.sanitizeKey(tc.input)
			// The result should not allow escaping the base path
			assert.NotContains(t, result, "..")
		})
	}
}

func TestFileBlobStore_AtomicWrite(t *testing.T) {
	tmpDir := t.TempDir()
	logger := newTestBlobLogger()

	store, err := NewFileBlobStore(logger, &FileBlobConfig{BasePath: tmpDir})
	require.NoError(t, err)
	defer store.Close()

	ctx := context.Background()
	key := "atomic-test.json"

	// Write initial data
	err = store.Put(ctx, key, []byte(`{"version": 1}`))
	require.NoError(t, err)

	// Overwrite with new data
	err = store.Put(ctx, key, []byte(`{"version": 2}`))
	require.NoError(t, err)

	// Verify final content
	data, err := os.ReadFile(filepath.Join(tmpDir, key))
	require.NoError(t, err)
	assert.Equal(t, `{"version": 2}`, string(data))

	// Verify no temp files left behind
	entries, err := os.ReadDir(tmpDir)
	require.NoError(t, err)
	for _, e := range entries {
		assert.False(t, filepath.HasPrefix(e.Name(), ".tmp-"))
	}
}

func TestNewBlobStore_FileBackend(t *testing.T) {
	tmpDir := t.TempDir()
	logger := newTestBlobLogger()

	config := &BlobStoreConfig{
		Backend: "file",
		File:    FileBlobConfig{BasePath: tmpDir},
	}

	store, err := NewBlobStore(logger, config)
	require.NoError(t, err)
	defer store.Close()

	ctx := context.Background()
	err = store.Put(ctx, "test.json", []byte(`{"ok": true}`))
	require.NoError(t, err)

	data, err := os.ReadFile(filepath.Join(tmpDir, "test.json"))
	require.NoError(t, err)
	assert.Equal(t, `{"ok": true}`, string(data))
}

func TestNewBlobStore_DefaultBackend(t *testing.T) {
	tmpDir := t.TempDir()
	logger := newTestBlobLogger()

	// Empty backend should default to "file"
	config := &BlobStoreConfig{
		Backend: "",
		File:    FileBlobConfig{BasePath: tmpDir},
	}

	store, err := NewBlobStore(logger, config)
	require.NoError(t, err)
	defer store.Close()

	// Should work just like file backend
	ctx := context.Background()
	err = store.Put(ctx, "default.json", []byte(`test`))
	require.NoError(t, err)
}

func TestNewBlobStore_UnsupportedBackend(t *testing.T) {
	logger := newTestBlobLogger()

	config := &BlobStoreConfig{
		Backend: "mongodb",
	}

	_, err := NewBlobStore(logger, config)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown storage backend")
}

func TestNewBlobStore_GCSNotImplemented(t *testing.T) {
	logger := newTestBlobLogger()

	config := &BlobStoreConfig{
		Backend: "gcs",
		GCS:     GCSBlobConfig{Bucket: "test-bucket"},
	}

	_, err := NewBlobStore(logger, config)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not implemented")
}

func TestNewBlobStore_S3NotImplemented(t *testing.T) {
	logger := newTestBlobLogger()

	config := &BlobStoreConfig{
		Backend: "s3",
		S3:      S3BlobConfig{Bucket: "test-bucket", Region: "us-east-1"},
	}

	_, err := NewBlobStore(logger, config)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not implemented")
}
