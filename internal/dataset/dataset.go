// Package dataset defines the Dataset Record domain model and the
// training-record shape produced by the dataset builder pipeline.
package dataset

import "time"

// State is a dataset build's position in its lifecycle.
type State string

const (
	StatePending    State = "pending"
	StateProcessing State = "processing"
	StateCompleted  State = "completed"
	StateFailed     State = "failed"
)

// Terminal reports whether s admits no further transitions.
func (s State) Terminal() bool {
	return s == StateCompleted || s == StateFailed
}

// Format identifies an on-disk export format.
type Format string

const (
	FormatJSONL   Format = "jsonl"
	FormatJSON    Format = "json"
	FormatCSV     Format = "csv"
	FormatParquet Format = "parquet"
)

// ValidFormat reports whether f is one of the recognized export formats.
func ValidFormat(f Format) bool {
	switch f {
	case FormatJSONL, FormatJSON, FormatCSV, FormatParquet:
		return true
	default:
		return false
	}
}

// Query is the search specification driving a dataset build.
type Query struct {
	QueryText       string             `json:"query_text"`
	TopK            int                `json:"top_k"`
	Filters         map[string]string  `json:"filters,omitempty"`
	MinQualityScore float64            `json:"min_quality_score"`
	SearchKinds     []string           `json:"search_kinds,omitempty"`
	Weights         map[string]float64 `json:"weights,omitempty"`
	DedupEnabled    bool               `json:"dedup_enabled"`

	// QueryVariants holds alternative phrasings of QueryText produced by an
	// optional query-expansion step before the backend is queried. Empty
	// unless a query expander is configured; the backend falls back to
	// QueryText alone when empty.
	QueryVariants []string `json:"query_variants,omitempty"`
}

// Stats summarizes a completed build's pass over the corpus.
type Stats struct {
	DocumentCount   int     `json:"document_count"`
	TotalTokens     int64   `json:"total_tokens"`
	QualityScoreAvg float64 `json:"quality_score_avg"`
}

// Record is one dataset build tracked end to end by the builder.
type Record struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	CreatedBy   string    `json:"created_by"`
	CreatedAt   time.Time `json:"created_at"`

	State State `json:"state"`
	Query Query `json:"query"`

	ExportFormats []Format          `json:"export_formats"`
	Stats         *Stats            `json:"stats,omitempty"`
	ExportPaths   map[Format]string `json:"export_paths,omitempty"`
	Error         string            `json:"error,omitempty"`

	// HistogramPath is populated when the optional quality-score histogram
	// is rendered alongside the export files.
	HistogramPath string `json:"histogram_path,omitempty"`
}

// RecordID implements store.Record.
func (r Record) RecordID() string { return r.ID }

// RecordCreatedAt implements store.Record.
func (r Record) RecordCreatedAt() time.Time { return r.CreatedAt }

// Clone returns a deep-enough value copy of r.
func (r Record) Clone() Record {
	out := r
	if r.Query.Filters != nil {
		out.Query.Filters = make(map[string]string, len(r.Query.Filters))
		for k, v := range r.Query.Filters {
			out.Query.Filters[k] = v
		}
	}
	if r.Query.SearchKinds != nil {
		out.Query.SearchKinds = append([]string(nil), r.Query.SearchKinds...)
	}
	if r.Query.Weights != nil {
		out.Query.Weights = make(map[string]float64, len(r.Query.Weights))
		for k, v := range r.Query.Weights {
			out.Query.Weights[k] = v
		}
	}
	if r.ExportFormats != nil {
		out.ExportFormats = append([]Format(nil), r.ExportFormats...)
	}
	if r.Stats != nil {
		s := *r.Stats
		out.Stats = &s
	}
	if r.ExportPaths != nil {
		out.ExportPaths = make(map[Format]string, len(r.ExportPaths))
		for k, v := range r.ExportPaths {
			out.ExportPaths[k] = v
		}
	}
	return out
}

// Document is one backend-scored search result flowing through the pipeline.
type Document struct {
	DocumentID     string            `json:"document_id"`
	Content        string            `json:"content"`
	Metadata       map[string]string `json:"metadata,omitempty"`
	Score          float64           `json:"score"`
	QualityScore   float64           `json:"quality_score"`
	TokenCount     int64             `json:"token_count"`
	RelevanceScore float64           `json:"relevance_score"`
	Source         string            `json:"source"`
}

// TrainingRecord is the schema written to every export format, derived from
// a Document that survived the quality/dedup stages.
type TrainingRecord struct {
	Text           string            `json:"text"`
	DocumentID     string            `json:"document_id"`
	Source         string            `json:"source"`
	QualityScore   float64           `json:"quality_score"`
	RelevanceScore float64           `json:"relevance_score"`
	Metadata       map[string]string `json:"metadata,omitempty"`
}

// FromDocument projects a Document into the exported TrainingRecord shape.
func FromDocument(d Document) TrainingRecord {
	return TrainingRecord{
		Text:           d.Content,
		DocumentID:     d.DocumentID,
		Source:         d.Source,
		QualityScore:   d.QualityScore,
		RelevanceScore: d.RelevanceScore,
		Metadata:       d.Metadata,
	}
}
