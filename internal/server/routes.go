package server

import (
	"net/http"
	"strings"
)

// registerRoutes sets up all REST API routes on the mux.
func (s *Server) registerRoutes(mux *http.ServeMux) {
	// System
	mux.HandleFunc("/api/health", s.handleHealth)
	mux.HandleFunc("/api/version", s.handleVersion)
	mux.HandleFunc("/api/config", s.handleConfig)
	mux.HandleFunc("/api/shutdown", s.handleShutdown)

	// Progress subscription (websocket upgrade). ServeMux routes by the most
	// specific pattern, so this exact path is not shadowed by "/api/jobs/".
	mux.HandleFunc("/api/jobs/progress/ws", s.handleProgressWS)

	// Jobs
	mux.HandleFunc("/api/jobs", s.handleJobsRoot)
	mux.HandleFunc("/api/jobs/", s.routeJobs)

	// Datasets
	mux.HandleFunc("/api/datasets", s.handleDatasetsRoot)
	mux.HandleFunc("/api/datasets/", s.routeDatasets)
}

// handleShutdown handles POST /api/shutdown (dev mode only).
func (s *Server) handleShutdown(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodPost) {
		return
	}
	if s.app.Config.IsProduction() {
		WriteError(w, http.StatusForbidden, "shutdown endpoint disabled in production")
		return
	}
	s.logger.Info().Msg("shutdown requested via HTTP endpoint")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("shutting down gracefully...\n"))
	if flusher, ok := w.(http.Flusher); ok {
		flusher.Flush()
	}
	if s.shutdownChan != nil {
		go func() { s.shutdownChan <- struct{}{} }()
	}
}

// handleJobsRoot dispatches /api/jobs: POST submits, GET lists.
func (s *Server) handleJobsRoot(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		s.handleSubmitJob(w, r)
	case http.MethodGet:
		s.handleListJobs(w, r)
	default:
		RequireMethod(w, r, http.MethodPost, http.MethodGet)
	}
}

// routeJobs dispatches /api/jobs/{id} and /api/jobs/{id}/cancel.
func (s *Server) routeJobs(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/api/jobs/")
	if path == "" {
		WriteError(w, http.StatusNotFound, "job id is required in path")
		return
	}

	parts := strings.SplitN(path, "/", 2)
	id := parts[0]

	if len(parts) == 1 {
		s.handleGetJob(w, r, id)
		return
	}

	switch parts[1] {
	case "cancel":
		s.handleCancelJob(w, r, id)
	default:
		WriteError(w, http.StatusNotFound, "Not found")
	}
}

// handleDatasetsRoot dispatches /api/datasets: POST creates, GET lists.
func (s *Server) handleDatasetsRoot(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		s.handleCreateDataset(w, r)
	case http.MethodGet:
		s.handleListDatasets(w, r)
	default:
		RequireMethod(w, r, http.MethodPost, http.MethodGet)
	}
}

// routeDatasets dispatches /api/datasets/{id}.
func (s *Server) routeDatasets(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimPrefix(r.URL.Path, "/api/datasets/")
	if id == "" {
		WriteError(w, http.StatusNotFound, "dataset id is required in path")
		return
	}
	s.handleGetDataset(w, r, id)
}

// --- System handlers ---

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet, http.MethodHead) {
		return
	}
	WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleVersion(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet, http.MethodHead) {
		return
	}
	WriteJSON(w, http.StatusOK, map[string]string{
		"environment": s.app.Config.Environment,
	})
}

func (s *Server) handleConfig(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}
	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"environment":         s.app.Config.Environment,
		"max_concurrent_jobs": s.app.Config.Orchestrator.MaxConcurrentJobs,
		"worker_grace_period": s.app.Config.Orchestrator.WorkerGracePeriod,
		"pipeline_batch_size": s.app.Config.Dataset.PipelineBatchSize,
		"quality_threshold":   s.app.Config.Dataset.QualityThreshold,
		"dedup_enabled":       s.app.Config.Dataset.DedupEnabled,
		"gemini_query_expand": s.app.QueryExpander != nil,
		"storage_backend":     s.app.Config.Storage.Backend,
	})
}
