// Package chunk holds the records that leave the chunking core: parent
// chunks, their child units, and the outcome envelope handed back to callers.
package chunk

import "time"

// Role classifies a child unit's function within its parent.
type Role string

const (
	RoleIntroduction Role = "introduction"
	RoleMainPoint    Role = "main_point"
	RoleExample      Role = "example"
	RoleConclusion   Role = "conclusion"
	RoleTransition   Role = "transition"
)

// ValidRole reports whether r is one of the recognized semantic roles.
func ValidRole(r Role) bool {
	switch r {
	case RoleIntroduction, RoleMainPoint, RoleExample, RoleConclusion, RoleTransition:
		return true
	}
	return false
}

// ChildUnit is the smallest addressable span: a sentence or thought-level
// subdivision owned by exactly one parent chunk.
type ChildUnit struct {
	Content  string `json:"content"`
	Sequence int    `json:"sequence_number"` // 1-based order within the parent
	Role     Role   `json:"semantic_role"`
}

// ParentChunk is a thematically coherent span of document text, the unit
// ultimately embedded and indexed. Structural parents carry chapter/section
// titles; semantic parents carry a thematic summary.
type ParentChunk struct {
	Content    string      `json:"content"`
	Summary    string      `json:"thematic_summary,omitempty"`
	Chapter    string      `json:"chapter_title,omitempty"`
	Section    string      `json:"section_title,omitempty"`
	Confidence float64     `json:"confidence"` // 0..1
	Children   []ChildUnit `json:"children"`
	Size       int         `json:"chunk_size"` // characters
}

// Path identifies a chunking strategy.
type Path string

const (
	PathStructural  Path = "structural"
	PathOCRSemantic Path = "ocr_semantic"
)

// Other returns the alternate path, used for fallback routing.
func (p Path) Other() Path {
	if p == PathStructural {
		return PathOCRSemantic
	}
	return PathStructural
}

// OCRMetrics summarizes text recognition across a run.
type OCRMetrics struct {
	PagesProcessed     int           `json:"pages_processed"`
	MeanConfidence     float64       `json:"mean_confidence"`
	MinConfidence      float64       `json:"min_confidence"`
	MaxConfidence      float64       `json:"max_confidence"`
	LowConfidencePages int           `json:"low_confidence_pages"`
	Preprocessed       bool          `json:"preprocessing_applied"`
	Duration           time.Duration `json:"duration"`
}

// StructuralMetrics summarizes the deterministic header-based chunking stage.
type StructuralMetrics struct {
	ParentCount int     `json:"parent_count"`
	ChildCount  int     `json:"child_count"`
	MeanSize    float64 `json:"mean_chunk_size"`
	Coverage    float64 `json:"coverage"`
	LowCoverage bool    `json:"low_coverage"`
}

// SemanticMetrics summarizes the generative chunking stage.
type SemanticMetrics struct {
	ParentCount    int           `json:"parent_count"`
	ChildCount     int           `json:"child_count"`
	MeanConfidence float64       `json:"mean_confidence"`
	TokensUsed     int           `json:"tokens_used"`
	APICalls       int           `json:"api_calls"`
	FallbackUsed   bool          `json:"fallback_used"`
	LowCoverage    bool          `json:"low_coverage"`
	Duration       time.Duration `json:"duration"`
}

// Outcome is the coordinator's final record for one document-processing
// invocation. It is created once and never mutated after being returned;
// failures are carried in Error rather than raised to the caller.
type Outcome struct {
	PathUsed         Path   `json:"path_used"`
	FallbackOccurred bool   `json:"fallback_occurred"`
	FallbackReason   string `json:"fallback_reason,omitempty"`

	Parents []ParentChunk `json:"parent_chunks"`

	Duration   time.Duration      `json:"duration"`
	OCR        *OCRMetrics        `json:"ocr_metrics,omitempty"`
	Semantic   *SemanticMetrics   `json:"semantic_metrics,omitempty"`
	Structural *StructuralMetrics `json:"structural_metrics,omitempty"`

	QualityScore    float64 `json:"quality_score"`    // 0..1
	ConfidenceScore float64 `json:"confidence_score"` // min(classification confidence, quality)

	Error string `json:"error,omitempty"`
}

// ChildCount returns the total number of child units across all parents.
func (o *Outcome) ChildCount() int {
	n := 0
	for i := range o.Parents {
		n += len(o.Parents[i].Children)
	}
	return n
}

// Coverage returns the summed parent content length divided by the original
// text length. Callers compare it with their configured coverage floor.
func Coverage(parents []ParentChunk, originalLen int) float64 {
	if originalLen <= 0 {
		return 0
	}
	total := 0
	for i := range parents {
		total += len(parents[i].Content)
	}
	return float64(total) / float64(originalLen)
}

// MeanConfidence averages parent confidences, 0 for an empty slice.
func MeanConfidence(parents []ParentChunk) float64 {
	if len(parents) == 0 {
		return 0
	}
	sum := 0.0
	for i := range parents {
		sum += parents[i].Confidence
	}
	return sum / float64(len(parents))
}
