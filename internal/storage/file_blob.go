package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/foundryml/forge/internal/common"
)

// FileBlobStore implements BlobStore using the local filesystem.
// Keys are mapped to file paths under the base directory.
// Key format: "datasets/<dataset-id>/export.jsonl" -> "{basePath}/datasets/<dataset-id>/export.jsonl"
type FileBlobStore struct {
	basePath string
	logger   *common.Logger
}

// NewFileBlobStore creates a new file-based blob store.
func NewFileBlobStore(logger *common.Logger, config *FileBlobConfig) (*FileBlobStore, error) {
	if config.BasePath == "" {
		return nil, fmt.Errorf("file blob store base_path is required")
	}

	// Ensure base directory exists
	if err := os.MkdirAll(config.BasePath, 0755); err != nil {
		return nil, fmt.Errorf("failed to create base directory %s: %w", config.BasePath, err)
	}

	fb := &FileBlobStore{
		basePath: config.BasePath,
		logger:   logger,
	}

	logger.Debug().Str("path", config.BasePath).Msg("FileBlobStore initialized")
	return fb, nil
}

// sanitizeKey converts a key to a safe filesystem path.
// Prevents path traversal attacks while allowing "/" for subdirectories.
func (fb *FileBlobStore) sanitizeKey(key string) string {
	// Clean the path to remove ".." and other traversal attempts
	clean := filepath.Clean(key)
	// Remove leading slashes to prevent absolute paths
	clean = strings.TrimPrefix(clean, "/")
	// Reject any remaining ".." segments
	if strings.Contains(clean, "..") {
		// Replace with safe alternative
		clean = strings.ReplaceAll(clean, "..", "__")
	}
	return clean
}

// keyToPath converts a key to an absolute filesystem path.
func (fb *FileBlobStore) keyToPath(key string) string {
	return filepath.Join(fb.basePath, fb.sanitizeKey(key))
}

// Put stores a blob atomically using temp file + rename.
func (fb *FileBlobStore) Put(ctx context.Context, key string, data []byte) error {
	return fb.PutReader(ctx, key, bytes.NewReader(data), int64(len(data)))
}

// PutReader stores a blob from a reader atomically.
func (fb *FileBlobStore) PutReader(ctx context.Context, key string, r io.Reader, size int64) error {
	path := fb.keyToPath(key)
	dir := filepath.Dir(path)

	// Ensure parent directory exists
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", dir, err)
	}

	// Atomic write: temp file + rename
	tmpFile, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmpFile.Name()

	// Copy data to temp file
	if _, err := io.Copy(tmpFile, r); err != nil {
		tmpFile.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := tmpFile.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to close temp file: %w", err)
	}

	// Atomic rename
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to rename temp file: %w", err)
	}

	return nil
}

// Close releases resources (no-op for file storage).
func (fb *FileBlobStore) Close() error {
	return nil
}
