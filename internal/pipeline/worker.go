package pipeline

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/somchaik/chunkd/internal/coordinator"
	"github.com/somchaik/chunkd/internal/store"
)

// Worker processes a single document job: run the chunking coordinator over
// the uploaded bytes, then persist the outcome.
type Worker struct {
	coord *coordinator.Coordinator
	db    *store.Store
	log   *slog.Logger
}

func NewWorker(coord *coordinator.Coordinator, db *store.Store, log *slog.Logger) *Worker {
	return &Worker{coord: coord, db: db, log: log}
}

// Process runs the full pipeline for a job.
func (w *Worker) Process(ctx context.Context, job *Job) {
	log := w.log.With("job_id", job.ID, "user_id", job.UserID, "filename", job.Filename)
	defer job.ClearFileData()

	job.SetStatus(StatusAnalyzing, "analyzing")
	job.SetContentHash(ContentHashHex(job.FileData()))

	job.SetStatus(StatusChunking, "chunking")
	out := w.coord.Process(ctx, job.FileData(), coordinator.Options{ForcePath: job.ForcePath})
	job.RecordOutcome(&out.Outcome)

	if out.Error != "" {
		log.Error("chunking failed", "error", out.Error, "path", out.PathUsed)
		job.AddError(out.Error)
	} else {
		log.Info("chunking complete",
			"path", out.PathUsed, "fallback", out.FallbackOccurred,
			"parents", len(out.Parents), "children", out.ChildCount(),
			"quality", out.QualityScore, "confidence", out.ConfidenceScore,
			"duration", out.Duration)
	}

	job.SetStatus(StatusStoring, "storing")
	if err := w.db.SaveRun(ctx, job.ID, job.Filename, out); err != nil {
		log.Error("store failed", "error", err)
		job.AddError(fmt.Sprintf("store: %s", err))
		job.SetStatus(StatusFailed, "storing")
		return
	}

	if out.Error != "" {
		job.SetStatus(StatusFailed, "done")
		return
	}
	job.SetStatus(StatusCompleted, "done")
}
