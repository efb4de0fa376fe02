// Package coordinator orchestrates the hybrid chunking pipeline: classify
// the document, route it to a chunking strategy, detect failure, fall back
// once to the alternate strategy, and score the result. Process never
// returns an error; every failure mode is absorbed into the outcome record.
package coordinator

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/somchaik/chunkd/internal/analyzer"
	"github.com/somchaik/chunkd/internal/chunk"
	"github.com/somchaik/chunkd/internal/ocr"
	"github.com/somchaik/chunkd/internal/pdfdoc"
	"github.com/somchaik/chunkd/internal/semantic"
	"github.com/somchaik/chunkd/internal/structural"
)

// Config tunes coordination policy. The quality weights are heuristic
// defaults, deliberately configurable rather than baked in.
type Config struct {
	EnableFallback    bool
	MaxProcessingTime time.Duration

	// Quality weights for a successful OCR+semantic run.
	OCRWeight     float64
	ChunkWeight   float64
	ContentWeight float64
	// Fixed baseline for a successful structural run.
	StructuralBaseline float64
	// Summed parent length over original length below this records low
	// coverage on either path's metrics.
	CoverageFloor float64

	OCRLanguages       []string
	OCRConcurrency     int
	OCRConfidenceFloor float64 // pages below this are dropped by the batch
	OCRLowThreshold    float64 // metric: pages below this count as low quality
}

func DefaultConfig() Config {
	return Config{
		EnableFallback:     true,
		MaxProcessingTime:  time.Hour,
		OCRWeight:          0.4,
		ChunkWeight:        0.4,
		ContentWeight:      0.2,
		StructuralBaseline: 0.85,
		CoverageFloor:      0.8,
		OCRLanguages:       []string{"eng"},
		OCRConcurrency:     4,
		OCRConfidenceFloor: 0,
		OCRLowThreshold:    70,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.MaxProcessingTime <= 0 {
		c.MaxProcessingTime = d.MaxProcessingTime
	}
	if c.OCRWeight <= 0 {
		c.OCRWeight = d.OCRWeight
	}
	if c.ChunkWeight <= 0 {
		c.ChunkWeight = d.ChunkWeight
	}
	if c.ContentWeight <= 0 {
		c.ContentWeight = d.ContentWeight
	}
	if c.StructuralBaseline <= 0 {
		c.StructuralBaseline = d.StructuralBaseline
	}
	if c.CoverageFloor <= 0 {
		c.CoverageFloor = d.CoverageFloor
	}
	if len(c.OCRLanguages) == 0 {
		c.OCRLanguages = d.OCRLanguages
	}
	if c.OCRConcurrency <= 0 {
		c.OCRConcurrency = d.OCRConcurrency
	}
	if c.OCRLowThreshold <= 0 {
		c.OCRLowThreshold = d.OCRLowThreshold
	}
	return c
}

// Options apply per invocation.
type Options struct {
	// ForcePath overrides the analyzer's recommended path when non-empty.
	ForcePath chunk.Path
}

// Outcome is the final per-document record: the chunking outcome plus the
// classification that drove routing. Immutable once returned.
type Outcome struct {
	Classification analyzer.Classification `json:"document_analysis"`
	chunk.Outcome
}

// Coordinator wires the analyzer, both chunkers, and the OCR engine.
type Coordinator struct {
	cfg        Config
	analyzer   *analyzer.Analyzer
	structural *structural.Chunker
	semantic   *semantic.Chunker
	engine     ocr.Engine
	log        *slog.Logger
}

func New(cfg Config, an *analyzer.Analyzer, st *structural.Chunker, se *semantic.Chunker, engine ocr.Engine, log *slog.Logger) *Coordinator {
	return &Coordinator{
		cfg:        cfg.withDefaults(),
		analyzer:   an,
		structural: st,
		semantic:   se,
		engine:     engine,
		log:        log,
	}
}

// pathRun carries one strategy invocation's results.
type pathRun struct {
	parents    []chunk.ParentChunk
	ocr        *chunk.OCRMetrics
	semantic   *chunk.SemanticMetrics
	structural *chunk.StructuralMetrics
	quality    float64
}

// Process runs the full pipeline over raw PDF bytes. It never returns an
// error: unreadable input, chunker failures, and exhausted fallbacks all
// surface inside the returned outcome.
func (c *Coordinator) Process(ctx context.Context, data []byte, opts Options) *Outcome {
	doc, err := pdfdoc.FromBytes(data)
	if err != nil {
		c.log.Warn("document unreadable, assuming OCR path", "error", err)
		return c.run(ctx, analyzer.FallbackClassification(err.Error()), nil, data, opts)
	}
	defer doc.Close()
	return c.ProcessDocument(ctx, doc, data, opts)
}

// ProcessDocument is Process for an already opened document. data is still
// required: the OCR engine consumes the raw bytes.
func (c *Coordinator) ProcessDocument(ctx context.Context, doc pdfdoc.Document, data []byte, opts Options) *Outcome {
	cls := c.analyzer.Classify(ctx, doc)
	return c.run(ctx, cls, doc, data, opts)
}

func (c *Coordinator) run(ctx context.Context, cls analyzer.Classification, doc pdfdoc.Document, data []byte, opts Options) *Outcome {
	start := time.Now()

	ctx, cancel := context.WithTimeout(ctx, c.cfg.MaxProcessingTime)
	defer cancel()

	path := cls.Path
	if opts.ForcePath != "" {
		path = opts.ForcePath
	}
	c.log.Info("document classified",
		"type", cls.Type, "recommended_path", cls.Path, "effective_path", path,
		"confidence", cls.Confidence, "method", cls.Method)

	run, runErr := c.runPath(ctx, path, doc, data)

	fallbackOccurred := false
	fallbackReason := ""
	if runErr != nil && c.cfg.EnableFallback {
		fallbackReason = fmt.Sprintf("%s processing failed: %s", path, runErr)
		c.log.Warn("primary path failed, attempting fallback", "path", path, "error", runErr)
		path = path.Other()
		run, runErr = c.runPath(ctx, path, doc, data)
		fallbackOccurred = true
	}

	if runErr != nil {
		c.log.Error("all chunking paths exhausted", "error", runErr)
		return &Outcome{
			Classification: cls,
			Outcome: chunk.Outcome{
				PathUsed:         path,
				FallbackOccurred: fallbackOccurred,
				FallbackReason:   fallbackReason,
				Parents:          []chunk.ParentChunk{},
				Duration:         time.Since(start),
				QualityScore:     0.1,
				ConfidenceScore:  0.1,
				Error:            runErr.Error(),
			},
		}
	}

	return &Outcome{
		Classification: cls,
		Outcome: chunk.Outcome{
			PathUsed:         path,
			FallbackOccurred: fallbackOccurred,
			FallbackReason:   fallbackReason,
			Parents:          run.parents,
			Duration:         time.Since(start),
			OCR:              run.ocr,
			Semantic:         run.semantic,
			Structural:       run.structural,
			QualityScore:     run.quality,
			ConfidenceScore:  math.Min(cls.Confidence, run.quality),
		},
	}
}

func (c *Coordinator) runPath(ctx context.Context, path chunk.Path, doc pdfdoc.Document, data []byte) (*pathRun, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("processing time ceiling exceeded: %w", err)
	}
	if path == chunk.PathStructural {
		return c.runStructural(doc)
	}
	return c.runSemantic(ctx, doc, data)
}

func (c *Coordinator) runStructural(doc pdfdoc.Document) (*pathRun, error) {
	if doc == nil {
		return nil, fmt.Errorf("structural path requires a readable document")
	}
	text, err := pdfdoc.FullText(doc)
	if err != nil {
		return nil, fmt.Errorf("text extraction: %w", err)
	}

	parents, err := c.structural.Chunk(text)
	if err != nil {
		return nil, fmt.Errorf("structural chunking: %w", err)
	}
	v := c.structural.Validate(parents)
	if !v.Valid {
		return nil, fmt.Errorf("structural chunking invalid: %s", v.Reason)
	}

	// Heading lines are consumed as titles, so heading-dense documents can
	// lose a real share of their text. Record it rather than failing the run.
	coverage := chunk.Coverage(parents, len(text))
	lowCoverage := coverage < c.cfg.CoverageFloor
	if lowCoverage {
		c.log.Warn("structural chunking covered less of the document than expected",
			"coverage", fmt.Sprintf("%.2f", coverage))
	}

	children := 0
	for i := range parents {
		children += len(parents[i].Children)
	}
	return &pathRun{
		parents: parents,
		structural: &chunk.StructuralMetrics{
			ParentCount: len(parents),
			ChildCount:  children,
			MeanSize:    v.MeanSize,
			Coverage:    coverage,
			LowCoverage: lowCoverage,
		},
		quality: c.cfg.StructuralBaseline,
	}, nil
}

func (c *Coordinator) runSemantic(ctx context.Context, doc pdfdoc.Document, data []byte) (*pathRun, error) {
	pageCount := 1
	if doc != nil {
		pageCount = doc.PageCount()
	}
	pages := make([]int, pageCount)
	for i := range pages {
		pages[i] = i + 1
	}

	ocrStart := time.Now()
	recognized, err := ocr.Batch(ctx, c.engine, data, pages, ocr.BatchOptions{
		Languages:       c.cfg.OCRLanguages,
		Concurrency:     c.cfg.OCRConcurrency,
		ConfidenceFloor: c.cfg.OCRConfidenceFloor,
	}, c.log)
	if err != nil {
		return nil, fmt.Errorf("ocr: %w", err)
	}
	ocrMetrics := ocr.Metrics(recognized, c.cfg.OCRLowThreshold, time.Since(ocrStart))

	result := c.semantic.Chunk(ctx, recognized)
	if len(result.Parents) == 0 {
		return nil, fmt.Errorf("semantic chunking produced no chunks (status %s)", result.Status)
	}

	return &pathRun{
		parents:  result.Parents,
		ocr:      &ocrMetrics,
		semantic: &result.Metrics,
		quality:  c.semanticQuality(ocrMetrics, result.Parents),
	}, nil
}

// semanticQuality blends OCR confidence, chunk confidence, and the presence
// of meaningful content into one score.
func (c *Coordinator) semanticQuality(m chunk.OCRMetrics, parents []chunk.ParentChunk) float64 {
	ocrQuality := math.Min(1, m.MeanConfidence/100)

	contentLen := 0
	for i := range parents {
		contentLen += len(parents[i].Content)
	}
	hasContent := 0.0
	if contentLen > 100 {
		hasContent = 1.0
	}

	score := c.cfg.OCRWeight*ocrQuality +
		c.cfg.ChunkWeight*chunk.MeanConfidence(parents) +
		c.cfg.ContentWeight*hasContent
	return math.Min(1, math.Max(0, score))
}
