package api

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/somchaik/chunkd/internal/chunk"
	"github.com/somchaik/chunkd/internal/pipeline"
)

func (s *Server) handleSubmit(w http.ResponseWriter, r *http.Request) {
	// Limit total request size.
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxUploadBytes+1024*1024) // extra 1MB for form overhead

	if err := r.ParseMultipartForm(32 << 20); err != nil {
		jsonError(w, "invalid multipart form: "+err.Error(), http.StatusBadRequest)
		return
	}
	defer r.MultipartForm.RemoveAll()

	userID := r.FormValue("user_id")
	if userID == "" {
		jsonError(w, "user_id is required", http.StatusBadRequest)
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		jsonError(w, "file is required: "+err.Error(), http.StatusBadRequest)
		return
	}
	defer file.Close()

	filename := sanitizeFilename(header.Filename)
	if !strings.EqualFold(filepath.Ext(filename), ".pdf") {
		jsonError(w, fmt.Sprintf("unsupported file type: %s (only PDF)", filepath.Ext(filename)), http.StatusBadRequest)
		return
	}

	data, err := io.ReadAll(io.LimitReader(file, s.cfg.MaxUploadBytes+1))
	if err != nil {
		jsonError(w, "failed to read file", http.StatusInternalServerError)
		return
	}
	if int64(len(data)) > s.cfg.MaxUploadBytes {
		jsonError(w, fmt.Sprintf("file exceeds max size (%d bytes)", s.cfg.MaxUploadBytes), http.StatusRequestEntityTooLarge)
		return
	}

	// Optional routing override.
	var forcePath chunk.Path
	switch v := r.FormValue("force_path"); v {
	case "":
	case string(chunk.PathStructural), string(chunk.PathOCRSemantic):
		forcePath = chunk.Path(v)
	default:
		jsonError(w, fmt.Sprintf("invalid force_path: %q", v), http.StatusBadRequest)
		return
	}

	now := time.Now()
	job := &pipeline.Job{
		ID:        pipeline.NewJobID(),
		UserID:    userID,
		Status:    pipeline.StatusQueued,
		Phase:     "queued",
		Filename:  filename,
		ForcePath: forcePath,
		CreatedAt: now,
		UpdatedAt: now,
	}
	job.SetFileData(data)

	if err := s.orchestrator.Submit(job); err != nil {
		jsonError(w, err.Error(), http.StatusServiceUnavailable)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	json.NewEncoder(w).Encode(map[string]any{
		"job_id":   job.ID,
		"status":   job.Status,
		"poll_url": fmt.Sprintf("/api/documents/%s", job.ID),
	})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "jobID")

	if job := s.orchestrator.GetJob(jobID); job != nil {
		snap := job.Snapshot()
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"job_id":   snap.ID,
			"status":   snap.Status,
			"phase":    snap.Phase,
			"filename": snap.Filename,
			"progress": snap.Progress,
		})
		return
	}

	// The job may have been evicted from the in-memory registry; fall back
	// to the persisted run.
	run, err := s.orchestrator.Store().GetRun(r.Context(), jobID)
	if errors.Is(err, sql.ErrNoRows) {
		jsonError(w, "job not found", http.StatusNotFound)
		return
	}
	if err != nil {
		s.log.Error("run lookup failed", "job_id", jobID, "error", err)
		jsonError(w, "failed to load result", http.StatusInternalServerError)
		return
	}

	status := pipeline.StatusCompleted
	if run.Outcome.Error != "" {
		status = pipeline.StatusFailed
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"job_id":   run.JobID,
		"status":   status,
		"filename": run.Filename,
		"result":   summarize(run.Outcome.Outcome, run.Outcome.Classification.Type),
	})
}

func (s *Server) handleChunks(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "jobID")

	run, err := s.orchestrator.Store().GetRun(r.Context(), jobID)
	if errors.Is(err, sql.ErrNoRows) {
		jsonError(w, "job not found", http.StatusNotFound)
		return
	}
	if err != nil {
		s.log.Error("run lookup failed", "job_id", jobID, "error", err)
		jsonError(w, "failed to load result", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(run)
}

// summarize strips chunk contents from an outcome for status responses.
func summarize(out chunk.Outcome, docType any) map[string]any {
	return map[string]any{
		"document_type":     docType,
		"path_used":         out.PathUsed,
		"fallback_occurred": out.FallbackOccurred,
		"fallback_reason":   out.FallbackReason,
		"parent_chunks":     len(out.Parents),
		"child_chunks":      out.ChildCount(),
		"quality_score":     out.QualityScore,
		"confidence_score":  out.ConfidenceScore,
		"duration_ms":       out.Duration.Milliseconds(),
		"error":             out.Error,
	}
}

func jsonError(w http.ResponseWriter, msg string, code int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}

func sanitizeFilename(name string) string {
	// Strip path components, keep only the base name.
	name = filepath.Base(name)
	name = strings.ReplaceAll(name, "/", "_")
	name = strings.ReplaceAll(name, "\\", "_")
	name = strings.ReplaceAll(name, "..", "_")
	if name == "" || name == "." {
		name = "unnamed"
	}
	return name
}
