package semantic

import (
	"fmt"
	"strings"

	"github.com/somchaik/chunkd/internal/chunk"
)

// Deterministic fallback splitter: when the agent result is empty, malformed,
// or scores poor, accumulate words into target-sized parents so the pipeline
// never returns nothing. Parents carry reduced confidence so downstream
// scoring reflects the degraded path.

const (
	fallbackConfidence     = 0.6
	fallbackTailConfidence = 0.5
	fallbackMinChunk       = 100
	fallbackMinTail        = 50
)

// fallbackChunks splits text at approximately targetChars boundaries,
// preferring sentence ends, and builds child units from sentences capped at
// maxChildren per parent.
func fallbackChunks(text string, targetChars, maxChildren int) []chunk.ParentChunk {
	words := strings.Fields(text)
	if len(words) == 0 {
		return nil
	}

	var parents []chunk.ParentChunk
	var cur []string
	curLen := 0

	flush := func(confidence float64, role chunk.Role) {
		content := strings.TrimSpace(strings.Join(cur, " "))
		cur = cur[:0]
		curLen = 0
		if content == "" {
			return
		}
		parents = append(parents, chunk.ParentChunk{
			Content:    content,
			Summary:    fmt.Sprintf("Content section %d", len(parents)+1),
			Confidence: confidence,
			Children:   fallbackChildren(content, maxChildren, role),
			Size:       len(content),
		})
	}

	for _, w := range words {
		cur = append(cur, w)
		curLen += len(w) + 1
		if curLen >= targetChars || strings.HasSuffix(w, ".") {
			if curLen >= fallbackMinChunk {
				flush(fallbackConfidence, chunk.RoleMainPoint)
			}
		}
	}

	// Trailing remainder keeps an even lower confidence; it is usually a
	// fragment rather than a complete thought.
	if curLen >= fallbackMinTail {
		flush(fallbackTailConfidence, chunk.RoleConclusion)
	}

	return parents
}

func fallbackChildren(content string, maxChildren int, role chunk.Role) []chunk.ChildUnit {
	var units []chunk.ChildUnit
	for _, s := range strings.Split(content, ".") {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		if !strings.HasSuffix(s, ".") {
			s += "."
		}
		units = append(units, chunk.ChildUnit{
			Content:  s,
			Sequence: len(units) + 1,
			Role:     role,
		})
		if len(units) >= maxChildren {
			break
		}
	}
	if len(units) == 0 {
		units = []chunk.ChildUnit{{Content: content, Sequence: 1, Role: role}}
	}
	return units
}
