package server

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/foundryml/forge/internal/apierr"
	"github.com/foundryml/forge/internal/dataset"
	"github.com/foundryml/forge/internal/identity"
	"github.com/foundryml/forge/internal/jobs"
	"github.com/google/uuid"
)

// writeAPIErr maps an apierr.Error (or any other error) to the matching
// HTTP status and a structured body. Unrecognized errors are treated as
// internal and logged, never echoed verbatim to the caller.
func (s *Server) writeAPIErr(w http.ResponseWriter, err error) {
	if ae, ok := apierr.As(err); ok {
		switch ae.Kind {
		case apierr.KindValidation:
			WriteErrorWithCode(w, http.StatusBadRequest, ae.Message, "invalid_request")
			return
		case apierr.KindNotFound:
			WriteErrorWithCode(w, http.StatusNotFound, ae.Message, "not_found")
			return
		case apierr.KindStateConflict:
			WriteErrorWithCode(w, http.StatusConflict, ae.Message, "state_conflict")
			return
		}
	}
	s.logger.Error().Err(err).Msg("unhandled orchestration API error")
	WriteError(w, http.StatusInternalServerError, "internal server error")
}

// --- Jobs ---

type submitJobRequest struct {
	Kind       string   `json:"kind"`
	ConfigRef  string   `json:"config_ref"`
	DatasetRef string   `json:"dataset_ref"`
	Priority   int      `json:"priority"`
	Tags       []string `json:"tags"`
}

func (s *Server) handleSubmitJob(w http.ResponseWriter, r *http.Request) {
	var req submitJobRequest
	if !DecodeJSON(w, r, &req) {
		return
	}

	kind := jobs.Kind(req.Kind)
	if !jobs.ValidKind(kind) {
		WriteErrorWithCode(w, http.StatusBadRequest, "invalid job kind: "+req.Kind, "invalid_kind")
		return
	}
	if req.ConfigRef == "" {
		WriteErrorWithCode(w, http.StatusBadRequest, "config_ref is required", "invalid_reference")
		return
	}

	id := identity.FromContext(r.Context())
	now := time.Now()

	job := jobs.Job{
		ID:         uuid.New().String(),
		Kind:       kind,
		State:      jobs.StatePending,
		ConfigRef:  req.ConfigRef,
		DatasetRef: req.DatasetRef,
		Priority:   req.Priority,
		Tags:       req.Tags,
		CreatedAt:  now,
	}
	s.app.JobStore.Put(job)

	if err := s.app.Pool.Submit(job.ID); err != nil {
		s.writeAPIErr(w, err)
		return
	}

	snapshot, _ := s.app.JobStore.Get(job.ID)
	s.logger.Info().Str("job_id", job.ID).Str("kind", string(kind)).Str("submitted_by", id.Subject).Msg("job submitted")
	WriteJSON(w, http.StatusCreated, snapshot)
}

func (s *Server) handleGetJob(w http.ResponseWriter, r *http.Request, id string) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}
	job, ok := s.app.JobStore.Get(id)
	if !ok {
		WriteErrorWithCode(w, http.StatusNotFound, "job not found", "not_found")
		return
	}
	WriteJSON(w, http.StatusOK, job)
}

func (s *Server) handleListJobs(w http.ResponseWriter, r *http.Request) {
	limit := 100
	if l := r.URL.Query().Get("limit"); l != "" {
		if v, err := strconv.Atoi(l); err == nil && v > 0 && v <= 1000 {
			limit = v
		}
	}

	stateFilter := jobs.State(r.URL.Query().Get("state"))

	var filter func(jobs.Job) bool
	if stateFilter != "" {
		filter = func(j jobs.Job) bool { return j.State == stateFilter }
	}

	list := s.app.JobStore.List(filter, nil, limit)
	totals := jobs.Tally(list)

	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"jobs":   list,
		"totals": totals,
	})
}

func (s *Server) handleCancelJob(w http.ResponseWriter, r *http.Request, id string) {
	if !RequireMethod(w, r, http.MethodPost) {
		return
	}
	cancelled, state, err := s.app.Pool.Cancel(id)
	if err != nil {
		s.writeAPIErr(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"cancelled":     cancelled,
		"current_state": state,
	})
}

// --- Datasets ---

type createDatasetRequest struct {
	Name          string        `json:"name"`
	Description   string        `json:"description"`
	Query         dataset.Query `json:"query"`
	ExportFormats []string      `json:"export_formats"`
}

func (s *Server) handleCreateDataset(w http.ResponseWriter, r *http.Request) {
	var req createDatasetRequest
	if !DecodeJSON(w, r, &req) {
		return
	}
	if req.Query.QueryText == "" {
		WriteErrorWithCode(w, http.StatusBadRequest, "query.query_text is required", "invalid_query")
		return
	}
	if len(req.ExportFormats) == 0 {
		WriteErrorWithCode(w, http.StatusBadRequest, "at least one export format is required", "unsupported_format")
		return
	}

	formats := make([]dataset.Format, 0, len(req.ExportFormats))
	for _, f := range req.ExportFormats {
		format := dataset.Format(f)
		if !dataset.ValidFormat(format) {
			WriteErrorWithCode(w, http.StatusBadRequest, "unsupported export format: "+f, "unsupported_format")
			return
		}
		formats = append(formats, format)
	}

	id := identity.FromContext(r.Context())

	rec := dataset.Record{
		ID:            uuid.New().String(),
		Name:          req.Name,
		Description:   req.Description,
		CreatedBy:     id.Subject,
		CreatedAt:     time.Now(),
		State:         dataset.StatePending,
		Query:         req.Query,
		ExportFormats: formats,
	}
	s.app.DatasetStore.Put(rec)

	go s.app.Builder.Build(context.Background(), rec.ID)

	WriteJSON(w, http.StatusCreated, rec)
}

func (s *Server) handleGetDataset(w http.ResponseWriter, r *http.Request, id string) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}
	rec, ok := s.app.DatasetStore.Get(id)
	if !ok {
		WriteErrorWithCode(w, http.StatusNotFound, "dataset not found", "not_found")
		return
	}
	WriteJSON(w, http.StatusOK, rec)
}

func (s *Server) handleListDatasets(w http.ResponseWriter, r *http.Request) {
	limit := 100
	if l := r.URL.Query().Get("limit"); l != "" {
		if v, err := strconv.Atoi(l); err == nil && v > 0 && v <= 1000 {
			limit = v
		}
	}
	list := s.app.DatasetStore.List(nil, nil, limit)
	WriteJSON(w, http.StatusOK, map[string]interface{}{"datasets": list})
}

// --- Progress subscription ---

func (s *Server) handleProgressWS(w http.ResponseWriter, r *http.Request) {
	s.progressHandler(w, r)
}
