// Package analyzer classifies a PDF as text-native, scanned, or mixed by
// sampling pages, and proposes the processing path for the document.
package analyzer

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/somchaik/chunkd/internal/chunk"
	"github.com/somchaik/chunkd/internal/pdfdoc"
)

// DocumentType is the whole-document classification.
type DocumentType string

const (
	TypeNative  DocumentType = "native"
	TypeScanned DocumentType = "scanned"
	TypeMixed   DocumentType = "mixed"
)

// PageAnalysis is the per-page sample result. Produced once, never mutated.
type PageAnalysis struct {
	Page        int     `json:"page_number"` // 1-based
	HasText     bool    `json:"has_text"`
	TextDensity float64 `json:"text_density"` // chars per 1000 sq points
	TextLength  int     `json:"text_length"`
	Readability float64 `json:"estimated_readability"` // 0..1
	RequiresOCR bool    `json:"requires_ocr"`
}

// Classification is the analyzer's whole-document verdict.
type Classification struct {
	Type              DocumentType   `json:"document_type"`
	Path              chunk.Path     `json:"processing_path"`
	Confidence        float64        `json:"confidence"`
	TotalPages        int            `json:"total_pages"`
	PagesWithText     int            `json:"pages_with_text"`     // extrapolated
	PagesRequiringOCR int            `json:"pages_requiring_ocr"` // extrapolated
	Samples           []PageAnalysis `json:"page_analyses"`
	Method            string         `json:"analysis_method"` // complete | sampling | fallback
	Factors           []string       `json:"decision_factors"`
}

// Config tunes the analyzer. Zero values fall back to defaults.
type Config struct {
	SamplePageLimit  int     // max pages sampled for large documents
	MinTextLength    int     // chars below which a page "has no text"
	NativeThreshold  float64 // text-page ratio at or above which a doc is native
	ScannedThreshold float64 // text-page ratio at or below which a doc is scanned
	Concurrency      int     // bounded parallelism for page sampling
}

func DefaultConfig() Config {
	return Config{
		SamplePageLimit:  5,
		MinTextLength:    50,
		NativeThreshold:  0.8,
		ScannedThreshold: 0.3,
		Concurrency:      4,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.SamplePageLimit <= 0 {
		c.SamplePageLimit = d.SamplePageLimit
	}
	if c.MinTextLength <= 0 {
		c.MinTextLength = d.MinTextLength
	}
	if c.NativeThreshold <= 0 {
		c.NativeThreshold = d.NativeThreshold
	}
	if c.ScannedThreshold <= 0 {
		c.ScannedThreshold = d.ScannedThreshold
	}
	if c.Concurrency <= 0 {
		c.Concurrency = d.Concurrency
	}
	return c
}

// Analyzer samples pages and classifies documents.
type Analyzer struct {
	cfg Config
	log *slog.Logger
}

func New(cfg Config, log *slog.Logger) *Analyzer {
	return &Analyzer{cfg: cfg.withDefaults(), log: log}
}

// Classify inspects a sample of pages and returns the document
// classification. It never returns an error: when the document cannot be
// read it falls back to a low-confidence scanned classification so no page
// is silently dropped downstream.
func (a *Analyzer) Classify(ctx context.Context, doc pdfdoc.Document) Classification {
	total := doc.PageCount()
	if total <= 0 {
		return a.fallback("document has no pages")
	}

	pages := a.samplePages(total)

	samples := make([]PageAnalysis, len(pages))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(a.cfg.Concurrency)
	for i, page := range pages {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			pa, err := a.analyzePage(doc, page)
			if err != nil {
				return err
			}
			samples[i] = pa
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		a.log.Error("page analysis failed", "error", err)
		return a.fallback(err.Error())
	}

	return a.classify(samples, total)
}

// samplePages picks which pages to analyze: everything for small documents,
// else first, last, and evenly spaced interior pages up to the limit.
func (a *Analyzer) samplePages(total int) []int {
	if total <= a.cfg.SamplePageLimit {
		pages := make([]int, total)
		for i := range pages {
			pages[i] = i + 1
		}
		return pages
	}

	seen := map[int]bool{1: true, total: true}
	pages := []int{1, total}

	remaining := a.cfg.SamplePageLimit - 2
	if remaining > 0 {
		step := total / (remaining + 1)
		if step < 1 {
			step = 1
		}
		for i := 1; i <= remaining; i++ {
			p := i * step
			if p > total-1 {
				p = total - 1
			}
			if p < 1 {
				p = 1
			}
			if !seen[p] {
				seen[p] = true
				pages = append(pages, p)
			}
		}
	}

	sort.Ints(pages)
	return pages
}

func (a *Analyzer) analyzePage(doc pdfdoc.Document, page int) (PageAnalysis, error) {
	text, err := doc.PageText(page)
	if err != nil {
		return PageAnalysis{}, fmt.Errorf("page %d: %w", page, err)
	}
	text = strings.TrimSpace(text)

	area := doc.PageArea(page)
	density := 0.0
	if area > 0 {
		density = float64(len(text)) * 1000 / area
	}

	hasText := MeaningfulText(text, a.cfg.MinTextLength)

	return PageAnalysis{
		Page:        page,
		HasText:     hasText,
		TextDensity: math.Round(density*100) / 100,
		TextLength:  len(text),
		Readability: Readability(text),
		RequiresOCR: !hasText,
	}, nil
}

func (a *Analyzer) classify(samples []PageAnalysis, total int) Classification {
	withText := 0
	requireOCR := 0
	readabilitySum := 0.0
	densitySum := 0.0
	for _, s := range samples {
		if s.HasText {
			withText++
		}
		if s.RequiresOCR {
			requireOCR++
		}
		readabilitySum += s.Readability
		densitySum += s.TextDensity
	}

	n := float64(len(samples))
	textRatio := float64(withText) / n
	ocrRatio := float64(requireOCR) / n

	var (
		docType    DocumentType
		path       chunk.Path
		confidence float64
		factors    []string
	)

	switch {
	case textRatio >= a.cfg.NativeThreshold:
		docType = TypeNative
		path = chunk.PathStructural
		confidence = math.Min(0.95, 0.5+textRatio*0.5)
		factors = append(factors, fmt.Sprintf("%.0f%% of sampled pages have meaningful text", textRatio*100))

	case textRatio <= a.cfg.ScannedThreshold:
		docType = TypeScanned
		path = chunk.PathOCRSemantic
		confidence = math.Min(0.95, 0.5+ocrRatio*0.5)
		factors = append(factors, fmt.Sprintf("%.0f%% of sampled pages require OCR", ocrRatio*100))

	default:
		docType = TypeMixed
		// Mixed documents take the OCR path so scanned pages are not
		// dropped. Costly for mostly-native documents; a policy choice.
		path = chunk.PathOCRSemantic
		confidence = 0.7
		factors = append(factors, fmt.Sprintf("mixed document: %.0f%% text, %.0f%% OCR", textRatio*100, ocrRatio*100))
	}

	avgReadability := readabilitySum / n
	avgDensity := densitySum / n
	factors = append(factors,
		fmt.Sprintf("average readability: %.2f", avgReadability),
		fmt.Sprintf("average text density: %.1f", avgDensity),
	)

	if avgReadability > 0.8 {
		confidence += 0.1
	} else if avgReadability < 0.3 {
		confidence -= 0.1
	}
	confidence = math.Min(0.98, math.Max(0.5, confidence))

	estimatedText := int(float64(withText) * float64(total) / n)

	method := "complete"
	if len(samples) < total {
		method = "sampling"
	}

	return Classification{
		Type:              docType,
		Path:              path,
		Confidence:        math.Round(confidence*1000) / 1000,
		TotalPages:        total,
		PagesWithText:     estimatedText,
		PagesRequiringOCR: total - estimatedText,
		Samples:           samples,
		Method:            method,
		Factors:           factors,
	}
}

// fallback is the safe classification when analysis itself fails: assume
// everything needs OCR rather than dropping pages.
func (a *Analyzer) fallback(reason string) Classification {
	a.log.Warn("using fallback classification", "reason", reason)
	return FallbackClassification(reason)
}

// FallbackClassification is the safe default when a document cannot be
// analyzed at all.
func FallbackClassification(reason string) Classification {
	return Classification{
		Type:              TypeScanned,
		Path:              chunk.PathOCRSemantic,
		Confidence:        0.3,
		TotalPages:        1,
		PagesWithText:     0,
		PagesRequiringOCR: 1,
		Samples:           []PageAnalysis{},
		Method:            "fallback",
		Factors:           []string{"analysis failed: " + reason, "defaulting to OCR processing"},
	}
}
