package export

import (
	"context"
	"encoding/csv"
	"strconv"

	"github.com/foundryml/forge/internal/dataset"
	"github.com/foundryml/forge/internal/storage"
)

// CSVWriter writes the fixed header
// "document_id,text,source,quality_score,relevance_score" followed by one
// row per record, standard CSV quoting, UTF-8.
type CSVWriter struct {
	*pipedWriter
	w           *csv.Writer
	wroteHeader bool
}

// NewCSVWriter constructs a Writer that streams CSV into blobs at key.
func NewCSVWriter(ctx context.Context, blobs storage.BlobStore, key string) *CSVWriter {
	pw := newPipedWriter(ctx, blobs, key)
	return &CSVWriter{pipedWriter: pw, w: csv.NewWriter(pw.pw)}
}

var csvHeader = []string{"document_id", "text", "source", "quality_score", "relevance_score"}

// Write appends one row, writing the header first if this is the first call.
func (w *CSVWriter) Write(rec dataset.TrainingRecord) error {
	if !w.wroteHeader {
		if err := w.w.Write(csvHeader); err != nil {
			return err
		}
		w.wroteHeader = true
	}
	row := []string{
		rec.DocumentID,
		rec.Text,
		rec.Source,
		strconv.FormatFloat(rec.QualityScore, 'f', -1, 64),
		strconv.FormatFloat(rec.RelevanceScore, 'f', -1, 64),
	}
	return w.w.Write(row)
}

// Close flushes the CSV writer and finalizes the underlying blob write.
func (w *CSVWriter) Close() error {
	w.w.Flush()
	return w.closeWith(w.w.Error())
}
