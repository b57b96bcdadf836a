package storage

import (
	"fmt"

	"github.com/foundryml/forge/internal/common"
)

// Backend type constants.
const (
	BackendFile = "file"
	BackendGCS  = "gcs"
	BackendS3   = "s3"
)

// NewBlobStore creates a blob store based on the configuration.
// Only "file" (the default) is implemented; "gcs" and "s3" are recognized
// but return a not-implemented error.
func NewBlobStore(logger *common.Logger, config *BlobStoreConfig) (BlobStore, error) {
	backend := config.Backend
	if backend == "" {
		backend = BackendFile // Default to file backend
	}

	switch backend {
	case BackendFile:
		return NewFileBlobStore(logger, &config.File)

	case BackendGCS:
		return nil, fmt.Errorf("GCS blob store not implemented: no credentials slot wired into this config (see DESIGN.md)")

	case BackendS3:
		return nil, fmt.Errorf("S3 blob store not implemented: no credentials slot wired into this config (see DESIGN.md)")

	default:
		return nil, fmt.Errorf("unknown storage backend: %s (supported: file, gcs, s3)", backend)
	}
}
