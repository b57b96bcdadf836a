package export

import (
	"context"
	"encoding/json"
	"time"

	"github.com/foundryml/forge/internal/dataset"
	"github.com/foundryml/forge/internal/storage"
)

// jsonDocument is the on-disk JSON export shape: a single pretty-printed
// object carrying dataset metadata plus the full record array. Unlike the
// other formats this one cannot stream record-by-record — the format
// requires a known document_count up front — so it buffers records in
// memory and writes once on Close.
type jsonDocument struct {
	DatasetID     string                   `json:"dataset_id"`
	Name          string                   `json:"name"`
	Description   string                   `json:"description"`
	CreatedAt     time.Time                `json:"created_at"`
	CreatedBy     string                   `json:"created_by"`
	DocumentCount int                      `json:"document_count"`
	Documents     []dataset.TrainingRecord `json:"documents"`
}

// JSONWriter accumulates records and writes the single pretty-printed
// {dataset_id, name, description, created_at, created_by, document_count,
// documents} object on Close.
type JSONWriter struct {
	*pipedWriter
	doc jsonDocument
}

// JSONMeta carries the dataset-level fields embedded alongside the
// accumulated documents in the final JSON export.
type JSONMeta struct {
	DatasetID   string
	Name        string
	Description string
	CreatedAt   time.Time
	CreatedBy   string
}

// NewJSONWriter constructs a Writer that accumulates records and streams the
// final pretty-printed JSON object into blobs at key on Close.
func NewJSONWriter(ctx context.Context, blobs storage.BlobStore, key string, meta JSONMeta) *JSONWriter {
	pw := newPipedWriter(ctx, blobs, key)
	return &JSONWriter{
		pipedWriter: pw,
		doc: jsonDocument{
			DatasetID:   meta.DatasetID,
			Name:        meta.Name,
			Description: meta.Description,
			CreatedAt:   meta.CreatedAt,
			CreatedBy:   meta.CreatedBy,
		},
	}
}

// Write appends rec to the in-memory document set.
func (w *JSONWriter) Write(rec dataset.TrainingRecord) error {
	w.doc.Documents = append(w.doc.Documents, rec)
	return nil
}

// Close renders the accumulated document set as indent-2 JSON and finalizes
// the underlying blob write.
func (w *JSONWriter) Close() error {
	w.doc.DocumentCount = len(w.doc.Documents)
	enc := json.NewEncoder(w.pw)
	enc.SetIndent("", "  ")
	err := enc.Encode(w.doc)
	return w.closeWith(err)
}
