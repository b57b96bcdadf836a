package datasetbuilder

import (
	"context"
	"testing"
	"time"

	"github.com/foundryml/forge/internal/common"
	"github.com/foundryml/forge/internal/dataset"
	"github.com/foundryml/forge/internal/searchbackend"
	"github.com/foundryml/forge/internal/storage"
	"github.com/foundryml/forge/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeBackend streams a fixed set of documents and a possible terminal error.
type fakeBackend struct {
	docs []dataset.Document
	err  error
}

func (f *fakeBackend) Stream(ctx context.Context, q dataset.Query) (<-chan searchbackend.Batch, <-chan error) {
	out := make(chan searchbackend.Batch, 1)
	errCh := make(chan error, 1)
	out <- searchbackend.Batch{Documents: f.docs}
	close(out)
	errCh <- f.err
	return out, errCh
}

func newTestBuilder(t *testing.T, backend searchbackend.Backend, cfg Config) (*Builder, *store.Store[dataset.Record]) {
	t.Helper()
	st := store.New(dataset.Record.Clone)
	blobs, err := storage.NewFileBlobStore(common.NewLogger("error"), &storage.FileBlobConfig{BasePath: t.TempDir()})
	require.NoError(t, err)
	t.Cleanup(func() { blobs.Close() })
	b := New(backend, st, blobs, common.NewLogger("error"), cfg)
	return b, st
}

func TestBuildCompletesAndExportsJSONL(t *testing.T) {
	backend := &fakeBackend{docs: []dataset.Document{
		{DocumentID: "d1", Content: "hello world", QualityScore: 0.9, TokenCount: 2, Source: "web"},
		{DocumentID: "d2", Content: "low quality", QualityScore: 0.1, TokenCount: 2, Source: "web"},
	}}
	b, st := newTestBuilder(t, backend, Config{BatchSize: 4})

	rec := dataset.Record{
		ID:            "ds-1",
		CreatedAt:     time.Now(),
		State:         dataset.StatePending,
		Query:         dataset.Query{QueryText: "hello", MinQualityScore: 0.5},
		ExportFormats: []dataset.Format{dataset.FormatJSONL},
	}
	st.Put(rec)

	b.Build(context.Background(), "ds-1")

	got, ok := st.Get("ds-1")
	require.True(t, ok)
	assert.Equal(t, dataset.StateCompleted, got.State)
	require.NotNil(t, got.Stats)
	assert.Equal(t, 1, got.Stats.DocumentCount) // the low-quality doc was filtered out
	assert.Contains(t, got.ExportPaths, dataset.FormatJSONL)
}

func TestBuildFailsWhenSourceErrors(t *testing.T) {
	backend := &fakeBackend{err: assertError("source exploded")}
	b, st := newTestBuilder(t, backend, Config{BatchSize: 4})

	rec := dataset.Record{
		ID:            "ds-1",
		CreatedAt:     time.Now(),
		State:         dataset.StatePending,
		Query:         dataset.Query{QueryText: "hello"},
		ExportFormats: []dataset.Format{dataset.FormatJSONL},
	}
	st.Put(rec)

	b.Build(context.Background(), "ds-1")

	got, ok := st.Get("ds-1")
	require.True(t, ok)
	assert.Equal(t, dataset.StateFailed, got.State)
	assert.NotEmpty(t, got.Error)
}

func TestDedupDropsRepeatedContent(t *testing.T) {
	in := make(chan dataset.Document, 3)
	in <- dataset.Document{DocumentID: "d1", Content: "Hello   World"}
	in <- dataset.Document{DocumentID: "d2", Content: "hello world"}
	in <- dataset.Document{DocumentID: "d3", Content: "different text"}
	close(in)

	out := dedup(in)
	var seen []string
	for d := range out {
		seen = append(seen, d.DocumentID)
	}
	assert.Equal(t, []string{"d1", "d3"}, seen)
}

func TestFilterQualityDropsBelowThreshold(t *testing.T) {
	in := make(chan dataset.Document, 2)
	in <- dataset.Document{DocumentID: "low", QualityScore: 0.2}
	in <- dataset.Document{DocumentID: "high", QualityScore: 0.8}
	close(in)

	out := filterQuality(in, 0.5)
	var seen []string
	for d := range out {
		seen = append(seen, d.DocumentID)
	}
	assert.Equal(t, []string{"high"}, seen)
}

// assertError is a tiny error constructor kept local to this test file so it
// does not need to import the stdlib errors package just for one literal.
type assertError string

func (e assertError) Error() string { return string(e) }
