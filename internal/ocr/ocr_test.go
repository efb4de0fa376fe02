package ocr

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// scriptedEngine maps page numbers to canned results.
type scriptedEngine struct {
	pages map[int]RecognizedPage
	errs  map[int]error
	calls atomic.Int64
}

func (e *scriptedEngine) Recognize(ctx context.Context, document []byte, page int, languages []string) (RecognizedPage, error) {
	e.calls.Add(1)
	if err := e.errs[page]; err != nil {
		return RecognizedPage{}, err
	}
	return e.pages[page], nil
}

func TestBatch_OrdersByPage(t *testing.T) {
	eng := &scriptedEngine{pages: map[int]RecognizedPage{
		1: {Page: 1, Text: "one", Confidence: 90},
		2: {Page: 2, Text: "two", Confidence: 80},
		3: {Page: 3, Text: "three", Confidence: 85},
	}}

	got, err := Batch(context.Background(), eng, nil, []int{3, 1, 2}, BatchOptions{Concurrency: 2}, testLogger())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("expected 3 pages, got %d", len(got))
	}
	for i, rp := range got {
		if rp.Page != i+1 {
			t.Errorf("expected page %d at index %d, got %d", i+1, i, rp.Page)
		}
	}
}

func TestBatch_DropsLowConfidencePages(t *testing.T) {
	eng := &scriptedEngine{pages: map[int]RecognizedPage{
		1: {Page: 1, Text: "good", Confidence: 90},
		2: {Page: 2, Text: "noise", Confidence: 20},
	}}

	got, err := Batch(context.Background(), eng, nil, []int{1, 2}, BatchOptions{ConfidenceFloor: 50}, testLogger())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 1 || got[0].Page != 1 {
		t.Errorf("expected only page 1 to survive the floor, got %v", got)
	}
}

func TestBatch_AllPagesDroppedIsError(t *testing.T) {
	eng := &scriptedEngine{pages: map[int]RecognizedPage{
		1: {Page: 1, Text: "noise", Confidence: 10},
	}}

	if _, err := Batch(context.Background(), eng, nil, []int{1}, BatchOptions{ConfidenceFloor: 50}, testLogger()); err == nil {
		t.Error("expected error when no page clears the confidence floor")
	}
}

func TestBatch_NonRetryableErrorFailsFast(t *testing.T) {
	eng := &scriptedEngine{
		pages: map[int]RecognizedPage{1: {Page: 1, Text: "ok", Confidence: 90}},
		errs:  map[int]error{2: errors.New("page missing")},
	}

	_, err := Batch(context.Background(), eng, nil, []int{1, 2}, BatchOptions{}, testLogger())
	if err == nil {
		t.Fatal("expected error from failed page")
	}
}

func TestBatch_EmptyPageList(t *testing.T) {
	eng := &scriptedEngine{}
	if _, err := Batch(context.Background(), eng, nil, nil, BatchOptions{}, testLogger()); err == nil {
		t.Error("expected error for empty page list")
	}
}

func TestMetrics(t *testing.T) {
	pages := []RecognizedPage{
		{Page: 1, Confidence: 90, Preprocess: map[string]bool{"deskew": true}},
		{Page: 2, Confidence: 60},
		{Page: 3, Confidence: 75},
	}
	m := Metrics(pages, 70, 2*time.Second)

	if m.PagesProcessed != 3 {
		t.Errorf("expected 3 pages processed, got %d", m.PagesProcessed)
	}
	if m.MeanConfidence != 75 {
		t.Errorf("expected mean 75, got %v", m.MeanConfidence)
	}
	if m.MinConfidence != 60 || m.MaxConfidence != 90 {
		t.Errorf("expected min 60 max 90, got %v/%v", m.MinConfidence, m.MaxConfidence)
	}
	if m.LowConfidencePages != 1 {
		t.Errorf("expected 1 low-confidence page, got %d", m.LowConfidencePages)
	}
	if !m.Preprocessed {
		t.Error("expected preprocessing flag set")
	}
	if m.Duration != 2*time.Second {
		t.Errorf("expected duration recorded, got %v", m.Duration)
	}
}

func TestMetrics_Empty(t *testing.T) {
	m := Metrics(nil, 70, 0)
	if m.PagesProcessed != 0 || m.MeanConfidence != 0 {
		t.Errorf("expected zero metrics for no pages, got %+v", m)
	}
}

func TestDominantLanguage(t *testing.T) {
	pages := []RecognizedPage{
		{Language: "de"},
		{Language: "de"},
		{Language: "en"},
		{Language: "unknown"},
		{Language: ""},
	}
	if got := DominantLanguage(pages); got != "de" {
		t.Errorf("expected de, got %s", got)
	}
	if got := DominantLanguage(nil); got != "en" {
		t.Errorf("expected default en, got %s", got)
	}
}

func TestIsRetryable(t *testing.T) {
	if !IsRetryable(&RetryableError{StatusCode: 503, Message: "busy"}) {
		t.Error("expected RetryableError to be retryable")
	}
	if IsRetryable(errors.New("plain")) {
		t.Error("expected plain error not to be retryable")
	}
	if IsRetryable(nil) {
		t.Error("expected nil not to be retryable")
	}
}

func TestBackoff_GrowsAndCaps(t *testing.T) {
	for attempt := 0; attempt < 8; attempt++ {
		d := Backoff(attempt)
		if d < time.Second {
			t.Errorf("attempt %d: backoff below base: %v", attempt, d)
		}
		if d > 45*time.Second {
			t.Errorf("attempt %d: backoff above cap with jitter: %v", attempt, d)
		}
	}
}
