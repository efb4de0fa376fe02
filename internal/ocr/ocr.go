// Package ocr defines the text-recognition adapter: the Engine interface the
// pipeline consumes, a remote HTTP-backed implementation, and batch helpers.
// The recognition algorithm itself lives behind the engine; this package only
// moves pages in and recognized text out.
package ocr

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/somchaik/chunkd/internal/chunk"
)

// RecognizedPage is one OCR-processed page. Records are ephemeral: they are
// consumed immediately by the semantic chunker and never persisted.
type RecognizedPage struct {
	Page       int             `json:"page_number"`
	Text       string          `json:"text"`
	Confidence float64         `json:"confidence"` // 0..100
	Language   string          `json:"language_detected"`
	Duration   time.Duration   `json:"duration"`
	Preprocess map[string]bool `json:"preprocessing_applied,omitempty"`
}

// Engine converts one document page to text with a confidence score.
type Engine interface {
	Recognize(ctx context.Context, document []byte, page int, languages []string) (RecognizedPage, error)
}

// BatchOptions tunes Batch.
type BatchOptions struct {
	Languages       []string
	Concurrency     int     // bounded parallelism across pages
	ConfidenceFloor float64 // pages below this are dropped with a warning
}

// Batch recognizes the given pages with bounded concurrency and returns the
// accepted pages in page order. Pages under the confidence floor are dropped;
// an error is returned only when no page at all was recognized.
func Batch(ctx context.Context, eng Engine, document []byte, pages []int, opts BatchOptions, log *slog.Logger) ([]RecognizedPage, error) {
	if len(pages) == 0 {
		return nil, fmt.Errorf("no pages to recognize")
	}
	concurrency := opts.Concurrency
	if concurrency <= 0 {
		concurrency = 4
	}

	results := make([]*RecognizedPage, len(pages))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)
	for i, page := range pages {
		g.Go(func() error {
			var rp RecognizedPage
			var err error
			for attempt := range MaxRetries {
				rp, err = eng.Recognize(gctx, document, page, opts.Languages)
				if err == nil || !IsRetryable(err) {
					break
				}
				log.Warn("retryable OCR error", "page", page, "attempt", attempt, "error", err)
				select {
				case <-time.After(Backoff(attempt)):
				case <-gctx.Done():
					return gctx.Err()
				}
			}
			if err != nil {
				return fmt.Errorf("page %d: %w", page, err)
			}
			results[i] = &rp
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := make([]RecognizedPage, 0, len(results))
	for _, rp := range results {
		if rp.Confidence < opts.ConfidenceFloor {
			log.Warn("page dropped for low OCR confidence", "page", rp.Page, "confidence", rp.Confidence)
			continue
		}
		out = append(out, *rp)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("OCR produced no usable pages (%d attempted)", len(pages))
	}

	sort.Slice(out, func(a, b int) bool { return out[a].Page < out[b].Page })
	return out, nil
}

// Metrics aggregates recognition results for the outcome record.
// lowThreshold is the confidence under which a page counts as low quality.
func Metrics(pages []RecognizedPage, lowThreshold float64, total time.Duration) chunk.OCRMetrics {
	m := chunk.OCRMetrics{PagesProcessed: len(pages), Duration: total}
	if len(pages) == 0 {
		return m
	}
	m.MinConfidence = pages[0].Confidence
	m.MaxConfidence = pages[0].Confidence
	sum := 0.0
	for _, p := range pages {
		sum += p.Confidence
		if p.Confidence < m.MinConfidence {
			m.MinConfidence = p.Confidence
		}
		if p.Confidence > m.MaxConfidence {
			m.MaxConfidence = p.Confidence
		}
		if p.Confidence < lowThreshold {
			m.LowConfidencePages++
		}
		for _, applied := range p.Preprocess {
			if applied {
				m.Preprocessed = true
			}
		}
	}
	m.MeanConfidence = sum / float64(len(pages))
	return m
}

// DominantLanguage returns the most frequent detected language tag across
// pages, defaulting to "en".
func DominantLanguage(pages []RecognizedPage) string {
	counts := map[string]int{}
	for _, p := range pages {
		if p.Language != "" && p.Language != "unknown" {
			counts[p.Language]++
		}
	}
	best, bestN := "en", 0
	for lang, n := range counts {
		if n > bestN {
			best, bestN = lang, n
		}
	}
	return best
}
