package export

import (
	"context"
	"encoding/json"

	"github.com/foundryml/forge/internal/dataset"
	"github.com/foundryml/forge/internal/storage"
)

// JSONLWriter writes one JSON object per line, per spec: UTF-8, no trailing
// comma, "\n" line endings.
type JSONLWriter struct {
	*pipedWriter
	enc *json.Encoder
}

// NewJSONLWriter constructs a Writer that streams JSONL into blobs at key.
func NewJSONLWriter(ctx context.Context, blobs storage.BlobStore, key string) *JSONLWriter {
	pw := newPipedWriter(ctx, blobs, key)
	return &JSONLWriter{pipedWriter: pw, enc: json.NewEncoder(pw.pw)}
}

// Write encodes rec as one JSON line.
func (w *JSONLWriter) Write(rec dataset.TrainingRecord) error {
	return w.enc.Encode(rec)
}

// Close finalizes the underlying blob write.
func (w *JSONLWriter) Close() error {
	return w.closeWith(nil)
}
