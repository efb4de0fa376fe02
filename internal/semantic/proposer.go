package semantic

import (
	"context"
	"fmt"
	"strings"
)

// ProposedChild is one sentence-level unit in an agent proposal.
type ProposedChild struct {
	Content  string `json:"content"`
	Sequence int    `json:"sequence_number"`
	Role     string `json:"semantic_role"`
}

// ProposedParent is one thematic group in an agent proposal.
type ProposedParent struct {
	Content    string          `json:"content"`
	Summary    string          `json:"thematic_summary"`
	Confidence float64         `json:"confidence_score"`
	Children   []ProposedChild `json:"child_chunks"`
}

// ChunkSet is the typed result a proposer must emit.
type ChunkSet struct {
	Parents []ProposedParent `json:"parent_chunks"`
}

// Usage reports agent-call cost, when the provider exposes it.
type Usage struct {
	Tokens int
}

// PromptContext carries aggregate facts about the recognized text so the
// agent can weigh OCR quality when segmenting.
type PromptContext struct {
	TextLength      int
	PageCount       int
	MeanConfidence  float64 // 0..100
	Language        string
	QualityTier     string // high | medium | low
	EstimatedChunks int
}

// Proposer asks a generative agent to partition text into thematic parent
// groups with sentence-level children. Output is untrusted: callers validate
// and score it through the same path as the deterministic fallback.
type Proposer interface {
	Propose(ctx context.Context, text string, pctx PromptContext) (*ChunkSet, Usage, error)
}

// systemPrompt pins the agent to the semantic-chunking policy.
const systemPrompt = `You are an expert document analyst specializing in semantic chunking of unstructured text, typically OCR output. Analyze the provided raw text and group it into logical, contextually complete parent chunks, each broken down into sentence-level child chunks.

The text was extracted via OCR and may contain formatting errors, missing punctuation, or lack structural separators. Identify thematic shifts from semantic meaning rather than formatting cues.

Principles:
1. Group content by meaning and theme, not formatting.
2. Never split a concept across chunk boundaries.
3. Aim for 200-800 words per parent chunk.
4. Child chunks should be complete thoughts.
5. Tolerate OCR mistakes; do not split on obvious errors.

For each parent chunk provide a meaningful thematic summary and a confidence score in [0,1] reflecting content clarity and coherence. Tag every child chunk with a semantic role: introduction, main_point, example, conclusion, or transition.`

// buildPrompt renders the per-call task with its processing context.
func buildPrompt(text string, pctx PromptContext) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Raw OCR text (%d characters from %d pages):\n\n%q\n\n", pctx.TextLength, pctx.PageCount, text)
	fmt.Fprintf(&sb, "Processing context:\n- OCR quality: %s\n- Average confidence: %.1f%%\n- Primary language: %s\n- Estimated chunks needed: %d\n\n",
		pctx.QualityTier, pctx.MeanConfidence, pctx.Language, pctx.EstimatedChunks)
	sb.WriteString("Read the entire text, identify thematic groupings, and emit parent chunks (200-800 words each) with sentence-level child chunks, semantic roles, and confidence scores. Consider the OCR quality when assigning confidence.")
	return sb.String()
}
