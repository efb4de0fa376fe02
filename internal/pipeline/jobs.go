package pipeline

import (
	"crypto/sha256"
	"fmt"
	"sync"
	"time"

	"github.com/somchaik/chunkd/internal/chunk"
)

// JobStatus represents the state of a document processing job.
type JobStatus string

const (
	StatusQueued    JobStatus = "queued"
	StatusAnalyzing JobStatus = "analyzing"
	StatusChunking  JobStatus = "chunking"
	StatusStoring   JobStatus = "storing"
	StatusCompleted JobStatus = "completed"
	StatusFailed    JobStatus = "failed"
)

// Job tracks the state of a single document submission.
type Job struct {
	mu sync.Mutex

	ID     string `json:"job_id"`
	UserID string `json:"user_id"`

	Status   JobStatus `json:"status"`
	Phase    string    `json:"phase"`
	Filename string    `json:"filename"`

	Progress Progress `json:"progress"`

	// ForcePath overrides automatic routing when non-empty.
	ForcePath chunk.Path `json:"force_path,omitempty"`

	ContentHash string    `json:"content_hash,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`

	// Internal: not serialized.
	fileData []byte
	errors   []string
}

// Progress tracks processing progress.
type Progress struct {
	PathUsed         string   `json:"path_used,omitempty"`
	FallbackOccurred bool     `json:"fallback_occurred"`
	ParentChunks     int      `json:"parent_chunks"`
	ChildChunks      int      `json:"child_chunks"`
	QualityScore     float64  `json:"quality_score"`
	ConfidenceScore  float64  `json:"confidence_score"`
	Errors           []string `json:"errors"`
}

// JobStore is a thread-safe in-memory job registry with TTL eviction.
type JobStore struct {
	mu   sync.Mutex
	jobs map[string]*Job
	ttl  time.Duration
}

func NewJobStore(ttl time.Duration) *JobStore {
	return &JobStore{
		jobs: make(map[string]*Job),
		ttl:  ttl,
	}
}

func (s *JobStore) Put(job *Job) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs[job.ID] = job
}

func (s *JobStore) Get(id string) *Job {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.jobs[id]
}

// Cleanup removes expired jobs.
func (s *JobStore) Cleanup() {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	for id, job := range s.jobs {
		if now.Sub(job.UpdatedAt) > s.ttl {
			delete(s.jobs, id)
		}
	}
}

// SetStatus updates job status atomically.
func (j *Job) SetStatus(status JobStatus, phase string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.Status = status
	j.Phase = phase
	j.UpdatedAt = time.Now()
}

// AddError records an error.
func (j *Job) AddError(err string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.errors = append(j.errors, err)
	j.Progress.Errors = j.errors
	j.UpdatedAt = time.Now()
}

// RecordOutcome copies the result summary onto the job's progress.
func (j *Job) RecordOutcome(out *chunk.Outcome) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.Progress.PathUsed = string(out.PathUsed)
	j.Progress.FallbackOccurred = out.FallbackOccurred
	j.Progress.ParentChunks = len(out.Parents)
	j.Progress.ChildChunks = out.ChildCount()
	j.Progress.QualityScore = out.QualityScore
	j.Progress.ConfidenceScore = out.ConfidenceScore
	j.UpdatedAt = time.Now()
}

// SetContentHash records the document's content hash.
func (j *Job) SetContentHash(hash string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.ContentHash = hash
	j.UpdatedAt = time.Now()
}

// SetFileData sets the raw file bytes for processing.
func (j *Job) SetFileData(data []byte) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.fileData = data
}

// FileData returns the raw file bytes.
func (j *Job) FileData() []byte {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.fileData
}

// ClearFileData releases the raw bytes once processing is done.
func (j *Job) ClearFileData() {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.fileData = nil
}

// JobSnapshot is a read-only, JSON-safe copy of job state.
type JobSnapshot struct {
	ID       string    `json:"job_id"`
	UserID   string    `json:"user_id"`
	Status   JobStatus `json:"status"`
	Phase    string    `json:"phase"`
	Filename string    `json:"filename"`
	Progress Progress  `json:"progress"`
}

// Snapshot returns a JSON-safe copy of the job state.
func (j *Job) Snapshot() JobSnapshot {
	j.mu.Lock()
	defer j.mu.Unlock()
	errs := j.Progress.Errors
	if errs == nil {
		errs = []string{}
	}
	p := j.Progress
	p.Errors = errs
	return JobSnapshot{
		ID:       j.ID,
		UserID:   j.UserID,
		Status:   j.Status,
		Phase:    j.Phase,
		Filename: j.Filename,
		Progress: p,
	}
}

// ContentHashHex computes SHA-256 of content and returns hex string.
func ContentHashHex(data []byte) string {
	h := sha256.Sum256(data)
	return fmt.Sprintf("%x", h[:])
}
