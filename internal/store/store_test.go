package store

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/somchaik/chunkd/internal/analyzer"
	"github.com/somchaik/chunkd/internal/chunk"
	"github.com/somchaik/chunkd/internal/coordinator"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func sampleOutcome() *coordinator.Outcome {
	return &coordinator.Outcome{
		Classification: analyzer.Classification{
			Type:       analyzer.TypeNative,
			Path:       chunk.PathStructural,
			Confidence: 0.92,
			TotalPages: 3,
			Method:     "complete",
			Factors:    []string{"all pages have text"},
		},
		Outcome: chunk.Outcome{
			PathUsed: chunk.PathStructural,
			Parents: []chunk.ParentChunk{
				{
					Content:    "First section body.",
					Chapter:    "Chapter 1",
					Confidence: 0.9,
					Children: []chunk.ChildUnit{
						{Content: "First section body.", Sequence: 1, Role: chunk.RoleMainPoint},
					},
				},
				{
					Content:    "Second section body.",
					Section:    "Section 2",
					Confidence: 0.85,
					Children: []chunk.ChildUnit{
						{Content: "Second section body.", Sequence: 1, Role: chunk.RoleConclusion},
					},
				},
			},
			Duration:        1500 * time.Millisecond,
			QualityScore:    0.85,
			ConfidenceScore: 0.85,
		},
	}
}

func TestSaveAndGetRun(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	out := sampleOutcome()
	out.Structural = &chunk.StructuralMetrics{ParentCount: 2, ChildCount: 2, MeanSize: 19.5, Coverage: 0.95}
	if err := s.SaveRun(ctx, "job-1", "report.pdf", out); err != nil {
		t.Fatalf("save run: %v", err)
	}

	run, err := s.GetRun(ctx, "job-1")
	if err != nil {
		t.Fatalf("get run: %v", err)
	}

	if run.JobID != "job-1" || run.Filename != "report.pdf" {
		t.Errorf("unexpected identity: %s / %s", run.JobID, run.Filename)
	}
	if run.Outcome.PathUsed != chunk.PathStructural {
		t.Errorf("expected structural path, got %s", run.Outcome.PathUsed)
	}
	if run.Outcome.QualityScore != 0.85 {
		t.Errorf("expected quality 0.85, got %v", run.Outcome.QualityScore)
	}
	if run.Outcome.Duration != 1500*time.Millisecond {
		t.Errorf("expected duration preserved, got %v", run.Outcome.Duration)
	}
	if run.Outcome.Classification.Type != analyzer.TypeNative {
		t.Errorf("expected classification round-tripped, got %s", run.Outcome.Classification.Type)
	}
	if run.Outcome.Structural == nil || run.Outcome.Structural.Coverage != 0.95 {
		t.Errorf("expected structural metrics round-tripped, got %+v", run.Outcome.Structural)
	}

	if len(run.Outcome.Parents) != 2 {
		t.Fatalf("expected 2 parents, got %d", len(run.Outcome.Parents))
	}
	p := run.Outcome.Parents[0]
	if p.Content != "First section body." || p.Chapter != "Chapter 1" || p.Confidence != 0.9 {
		t.Errorf("first parent mismatch: %+v", p)
	}
	if len(p.Children) != 1 || p.Children[0].Role != chunk.RoleMainPoint {
		t.Errorf("first parent children mismatch: %+v", p.Children)
	}
	if run.Outcome.Parents[1].Children[0].Role != chunk.RoleConclusion {
		t.Errorf("second parent child role mismatch: %+v", run.Outcome.Parents[1].Children)
	}
}

func TestSaveRun_WithMetrics(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	out := sampleOutcome()
	out.PathUsed = chunk.PathOCRSemantic
	out.OCR = &chunk.OCRMetrics{PagesProcessed: 3, MeanConfidence: 82.5}
	out.Semantic = &chunk.SemanticMetrics{ParentCount: 2, APICalls: 1, TokensUsed: 900}

	if err := s.SaveRun(ctx, "job-2", "scan.pdf", out); err != nil {
		t.Fatalf("save run: %v", err)
	}

	run, err := s.GetRun(ctx, "job-2")
	if err != nil {
		t.Fatalf("get run: %v", err)
	}
	if run.Outcome.OCR == nil || run.Outcome.OCR.MeanConfidence != 82.5 {
		t.Errorf("expected OCR metrics round-tripped, got %+v", run.Outcome.OCR)
	}
	if run.Outcome.Semantic == nil || run.Outcome.Semantic.TokensUsed != 900 {
		t.Errorf("expected semantic metrics round-tripped, got %+v", run.Outcome.Semantic)
	}
}

func TestSaveRun_NilMetricsStayNil(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	if err := s.SaveRun(ctx, "job-3", "doc.pdf", sampleOutcome()); err != nil {
		t.Fatalf("save run: %v", err)
	}
	run, err := s.GetRun(ctx, "job-3")
	if err != nil {
		t.Fatalf("get run: %v", err)
	}
	if run.Outcome.OCR != nil || run.Outcome.Semantic != nil || run.Outcome.Structural != nil {
		t.Error("expected absent metrics to stay nil after round trip")
	}
}

func TestGetRun_Missing(t *testing.T) {
	s := openTestStore(t)
	_, err := s.GetRun(context.Background(), "nope")
	if !errors.Is(err, sql.ErrNoRows) {
		t.Errorf("expected sql.ErrNoRows, got %v", err)
	}
}

func TestSaveRun_DuplicateJobIDRejected(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	if err := s.SaveRun(ctx, "dup", "a.pdf", sampleOutcome()); err != nil {
		t.Fatalf("first save: %v", err)
	}
	if err := s.SaveRun(ctx, "dup", "b.pdf", sampleOutcome()); err == nil {
		t.Error("expected duplicate job ID to be rejected")
	}
}

func TestDeleteOlderThan(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	if err := s.SaveRun(ctx, "old-run", "old.pdf", sampleOutcome()); err != nil {
		t.Fatalf("save run: %v", err)
	}

	// A cutoff in the future expires everything saved so far.
	n, err := s.DeleteOlderThan(ctx, time.Now().Add(time.Hour))
	if err != nil {
		t.Fatalf("delete: %v", err)
	}
	if n != 1 {
		t.Errorf("expected 1 run deleted, got %d", n)
	}
	if _, err := s.GetRun(ctx, "old-run"); !errors.Is(err, sql.ErrNoRows) {
		t.Errorf("expected run gone, got %v", err)
	}

	// Cascade removes the chunk tree as well.
	var count int
	if err := s.db.QueryRow("SELECT COUNT(*) FROM parent_chunks").Scan(&count); err != nil {
		t.Fatalf("count parents: %v", err)
	}
	if count != 0 {
		t.Errorf("expected parent chunks cascaded, got %d", count)
	}
}
