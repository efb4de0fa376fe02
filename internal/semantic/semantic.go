// Package semantic chunks OCR-recognized text by delegating segmentation to
// a generative agent, validating the untrusted result, and degrading to a
// deterministic splitter when the agent fails or scores poorly.
package semantic

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"time"

	"github.com/somchaik/chunkd/internal/chunk"
	"github.com/somchaik/chunkd/internal/ocr"
)

// Config tunes the semantic chunker. Zero values fall back to defaults.
// The size/quality thresholds are heuristics, not validated constants.
type Config struct {
	MaxRetries     int           // agent call attempts
	CallTimeout    time.Duration // per-call ceiling
	MaxChildren    int           // soft cap on children per parent
	CoverageFloor  float64       // below this the run records low coverage
	TargetChars    int           // fallback splitter target parent size
	MinParentChars int           // parents under this flag a quality issue
	MaxParentChars int           // parents over this flag a quality issue
	HighTier       float64       // OCR confidence for "high" quality
	MediumTier     float64       // OCR confidence for "medium" quality
}

func DefaultConfig() Config {
	return Config{
		MaxRetries:     3,
		CallTimeout:    120 * time.Second,
		MaxChildren:    10,
		CoverageFloor:  0.8,
		TargetChars:    500,
		MinParentChars: 50,
		MaxParentChars: 1500,
		HighTier:       80,
		MediumTier:     60,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.MaxRetries <= 0 {
		c.MaxRetries = d.MaxRetries
	}
	if c.CallTimeout <= 0 {
		c.CallTimeout = d.CallTimeout
	}
	if c.MaxChildren <= 0 {
		c.MaxChildren = d.MaxChildren
	}
	if c.CoverageFloor <= 0 {
		c.CoverageFloor = d.CoverageFloor
	}
	if c.TargetChars <= 0 {
		c.TargetChars = d.TargetChars
	}
	if c.MinParentChars <= 0 {
		c.MinParentChars = d.MinParentChars
	}
	if c.MaxParentChars <= 0 {
		c.MaxParentChars = d.MaxParentChars
	}
	if c.HighTier <= 0 {
		c.HighTier = d.HighTier
	}
	if c.MediumTier <= 0 {
		c.MediumTier = d.MediumTier
	}
	return c
}

// Quality summarizes structural checks over a chunk set.
type Quality struct {
	Tier             string   `json:"overall_quality"` // excellent | good | acceptable | poor
	MeanConfidence   float64  `json:"mean_confidence"`
	Issues           []string `json:"issues,omitempty"`
	RequiresFallback bool     `json:"requires_fallback"`
}

// Result is the semantic chunker's partial outcome: parents plus metadata.
// The coordinator merges it into the final record.
type Result struct {
	Parents []chunk.ParentChunk
	Metrics chunk.SemanticMetrics
	Quality Quality
	Status  string // ok | fallback | empty
}

// Chunker runs the agentic path.
type Chunker struct {
	cfg      Config
	proposer Proposer
	log      *slog.Logger
}

func New(cfg Config, proposer Proposer, log *slog.Logger) *Chunker {
	return &Chunker{cfg: cfg.withDefaults(), proposer: proposer, log: log}
}

// Chunk partitions recognized pages into parent chunks and child units. It
// never returns an error: agent failures and poor-quality output degrade to
// the deterministic fallback splitter, and empty input yields an empty
// result the coordinator treats as a path failure.
func (c *Chunker) Chunk(ctx context.Context, pages []ocr.RecognizedPage) *Result {
	start := time.Now()

	text := combinePages(pages)
	if strings.TrimSpace(text) == "" {
		c.log.Warn("no meaningful text in recognized pages")
		return &Result{Status: "empty", Quality: Quality{Tier: "poor", RequiresFallback: true}}
	}

	pctx := c.promptContext(text, pages)

	set, usage, attempts, err := c.proposeWithRetry(ctx, text, pctx)
	if err != nil {
		c.log.Warn("agent chunking failed, using deterministic fallback", "error", err, "attempts", attempts)
		return c.fallbackResult(text, usage, attempts, start)
	}

	parents := c.convert(set)
	quality := c.assess(parents)
	if quality.RequiresFallback {
		c.log.Warn("agent result scored poor, using deterministic fallback", "issues", quality.Issues)
		return c.fallbackResult(text, usage, attempts, start)
	}

	coverage := chunk.Coverage(parents, len(text))
	lowCoverage := coverage < c.cfg.CoverageFloor
	if lowCoverage {
		c.log.Warn("low coverage ratio", "coverage", fmt.Sprintf("%.2f", coverage))
	}

	if usage.Tokens == 0 {
		usage.Tokens = EstimateTokens(text) * attempts
	}

	return &Result{
		Parents: parents,
		Metrics: chunk.SemanticMetrics{
			ParentCount:    len(parents),
			ChildCount:     childCount(parents),
			MeanConfidence: chunk.MeanConfidence(parents),
			TokensUsed:     usage.Tokens,
			APICalls:       attempts,
			LowCoverage:    lowCoverage,
			Duration:       time.Since(start),
		},
		Quality: quality,
		Status:  "ok",
	}
}

// proposeWithRetry invokes the agent with a per-call timeout and exponential
// backoff between attempts. Partial results from a timed-out call are never
// used.
func (c *Chunker) proposeWithRetry(ctx context.Context, text string, pctx PromptContext) (*ChunkSet, Usage, int, error) {
	var lastErr error
	total := Usage{}

	for attempt := 1; attempt <= c.cfg.MaxRetries; attempt++ {
		callCtx, cancel := context.WithTimeout(ctx, c.cfg.CallTimeout)
		set, usage, err := c.proposer.Propose(callCtx, text, pctx)
		cancel()
		total.Tokens += usage.Tokens

		if err == nil {
			return set, total, attempt, nil
		}
		lastErr = err
		c.log.Warn("agent attempt failed", "attempt", attempt, "error", err)

		if attempt < c.cfg.MaxRetries {
			select {
			case <-time.After(time.Duration(1<<uint(attempt)) * time.Second):
			case <-ctx.Done():
				return nil, total, attempt, ctx.Err()
			}
		}
	}
	return nil, total, c.cfg.MaxRetries, fmt.Errorf("all %d attempts failed: %w", c.cfg.MaxRetries, lastErr)
}

func (c *Chunker) fallbackResult(text string, usage Usage, attempts int, start time.Time) *Result {
	parents := fallbackChunks(text, c.cfg.TargetChars, c.cfg.MaxChildren)
	return &Result{
		Parents: parents,
		Metrics: chunk.SemanticMetrics{
			ParentCount:    len(parents),
			ChildCount:     childCount(parents),
			MeanConfidence: chunk.MeanConfidence(parents),
			TokensUsed:     usage.Tokens,
			APICalls:       attempts,
			FallbackUsed:   true,
			LowCoverage:    chunk.Coverage(parents, len(text)) < c.cfg.CoverageFloor,
			Duration:       time.Since(start),
		},
		Quality: Quality{Tier: "acceptable", MeanConfidence: chunk.MeanConfidence(parents)},
		Status:  "fallback",
	}
}

// convert turns the untrusted proposal into owned records: confidences are
// clamped, unknown roles normalized, and sequences renumbered.
func (c *Chunker) convert(set *ChunkSet) []chunk.ParentChunk {
	parents := make([]chunk.ParentChunk, 0, len(set.Parents))
	for _, p := range set.Parents {
		content := strings.TrimSpace(p.Content)
		if content == "" {
			continue
		}
		children := make([]chunk.ChildUnit, 0, len(p.Children))
		for _, ch := range p.Children {
			cc := strings.TrimSpace(ch.Content)
			if cc == "" {
				continue
			}
			role := chunk.Role(ch.Role)
			if !chunk.ValidRole(role) {
				role = chunk.RoleMainPoint
			}
			children = append(children, chunk.ChildUnit{
				Content:  cc,
				Sequence: len(children) + 1,
				Role:     role,
			})
		}
		parents = append(parents, chunk.ParentChunk{
			Content:    content,
			Summary:    strings.TrimSpace(p.Summary),
			Confidence: math.Min(1, math.Max(0, p.Confidence)),
			Children:   children,
			Size:       len(content),
		})
	}
	return parents
}

// assess runs the structural quality checks over a converted chunk set and
// derives an overall tier.
func (c *Chunker) assess(parents []chunk.ParentChunk) Quality {
	if len(parents) == 0 {
		return Quality{Tier: "poor", Issues: []string{"no_chunks_created"}, RequiresFallback: true}
	}

	seen := map[string]bool{}
	var issues []string
	addIssue := func(issue string) {
		if !seen[issue] {
			seen[issue] = true
			issues = append(issues, issue)
		}
	}

	for i := range parents {
		size := len(parents[i].Content)
		if size < c.cfg.MinParentChars {
			addIssue("chunk_too_small")
		} else if size > c.cfg.MaxParentChars {
			addIssue("chunk_too_large")
		}
		if len(parents[i].Children) == 0 {
			addIssue("no_child_chunks")
		} else if len(parents[i].Children) > c.cfg.MaxChildren {
			addIssue("too_many_child_chunks")
		}
	}

	mean := chunk.MeanConfidence(parents)
	var tier string
	switch {
	case mean > 0.8 && len(issues) == 0:
		tier = "excellent"
	case mean > 0.6 && len(issues) <= 2:
		tier = "good"
	case mean > 0.4:
		tier = "acceptable"
	default:
		tier = "poor"
	}

	return Quality{
		Tier:             tier,
		MeanConfidence:   mean,
		Issues:           issues,
		RequiresFallback: tier == "poor",
	}
}

func (c *Chunker) promptContext(text string, pages []ocr.RecognizedPage) PromptContext {
	mean := 0.0
	for _, p := range pages {
		mean += p.Confidence
	}
	if len(pages) > 0 {
		mean /= float64(len(pages))
	}

	tier := "low"
	switch {
	case mean > c.cfg.HighTier:
		tier = "high"
	case mean > c.cfg.MediumTier:
		tier = "medium"
	}

	est := len(text) / c.cfg.TargetChars
	if est < 1 {
		est = 1
	}

	return PromptContext{
		TextLength:      len(text),
		PageCount:       len(pages),
		MeanConfidence:  mean,
		Language:        ocr.DominantLanguage(pages),
		QualityTier:     tier,
		EstimatedChunks: est,
	}
}

// combinePages joins recognized pages into one blob. Page markers are only
// inserted when more than one page carries text, so a document whose other
// pages came back blank reads as a single unmarked span.
func combinePages(pages []ocr.RecognizedPage) string {
	withText := 0
	for _, p := range pages {
		if strings.TrimSpace(p.Text) != "" {
			withText++
		}
	}

	var sb strings.Builder
	for _, p := range pages {
		if strings.TrimSpace(p.Text) == "" {
			continue
		}
		if withText > 1 {
			fmt.Fprintf(&sb, "\n--- Page %d ---\n", p.Page)
		}
		sb.WriteString(p.Text)
		sb.WriteString("\n\n")
	}
	return strings.TrimSpace(sb.String())
}

func childCount(parents []chunk.ParentChunk) int {
	n := 0
	for i := range parents {
		n += len(parents[i].Children)
	}
	return n
}
