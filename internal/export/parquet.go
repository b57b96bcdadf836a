package export

import (
	"context"

	"github.com/foundryml/forge/internal/common"
	"github.com/foundryml/forge/internal/storage"
)

// parquetFallbackSuffix names the key the Parquet format actually lands at
// when no Parquet writer is available, so it is never confused with a true
// columnar file on disk.
const parquetFallbackSuffix = ".jsonl"

// NewParquetWriter returns a Writer for the Parquet format. No pure-Go
// Arrow/Parquet writer is wired into this module (see DESIGN.md), so this
// falls back to the JSONL writer at a distinctly-suffixed key, per spec:
// "implementations that lack a Parquet writer MAY fall back to JSONL and
// record that fact in export_paths." actualKey reports the key the caller
// should record in export_paths.
func NewParquetWriter(ctx context.Context, blobs storage.BlobStore, key string, logger *common.Logger) (w *JSONLWriter, actualKey string) {
	actualKey = key + parquetFallbackSuffix
	logger.Warn().Str("requested_key", key).Str("actual_key", actualKey).
		Msg("no Parquet writer available, falling back to JSONL")
	return NewJSONLWriter(ctx, blobs, actualKey), actualKey
}
