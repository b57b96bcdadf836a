// Package export writes training records produced by the dataset builder
// pipeline to one of the on-disk formats: JSONL, JSON, CSV, or Parquet
// (falling back to JSONL — no pure-Go Parquet writer is wired into this
// module; see DESIGN.md). Each writer streams into a storage.BlobStore
// through an io.Pipe so the exporter never needs the blob store to support
// a separate "append" API.
package export

import (
	"context"
	"io"

	"github.com/foundryml/forge/internal/dataset"
	"github.com/foundryml/forge/internal/storage"
)

// Writer accepts one training record at a time and finalizes the output on Close.
type Writer interface {
	Write(rec dataset.TrainingRecord) error
	Close() error
}

// pipedWriter is the shared streaming machinery: a goroutine reads from the
// pipe and hands it to the blob store's PutReader while the caller writes
// into the pipe synchronously. FileBlobStore.PutReader ignores its size
// argument, so -1 (unknown length) is safe to pass here.
type pipedWriter struct {
	pw     *io.PipeWriter
	done   chan error
	key    string
	closed bool
}

func newPipedWriter(ctx context.Context, blobs storage.BlobStore, key string) *pipedWriter {
	pr, pw := io.Pipe()
	done := make(chan error, 1)
	go func() {
		done <- blobs.PutReader(ctx, key, pr, -1)
	}()
	return &pipedWriter{pw: pw, done: done, key: key}
}

func (p *pipedWriter) closeWith(err error) error {
	if p.closed {
		return nil
	}
	p.closed = true
	p.pw.CloseWithError(err)
	putErr := <-p.done
	if err != nil {
		return err
	}
	return putErr
}
