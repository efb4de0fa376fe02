// Package structural chunks machine-readable document text hierarchically:
// heuristic header detection rewrites the text as markdown, a goldmark pass
// splits it into titled parent chunks, and a recursive splitter breaks each
// parent into sentence-level child units.
package structural

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	gtext "github.com/yuin/goldmark/text"

	"github.com/somchaik/chunkd/internal/chunk"
)

// Config tunes chunk sizing. Zero values fall back to defaults.
type Config struct {
	ParentSize    int // target parent chunk size in characters
	ParentOverlap int // overlap when re-splitting oversized parents
	ChildSize     int // target child unit size in characters
	ChildOverlap  int // overlap between adjacent child units
	MinParent     int // parents below this flag a size problem
	MaxParent     int // parents above this flag a size problem
}

func DefaultConfig() Config {
	return Config{
		ParentSize:    1000,
		ParentOverlap: 100,
		ChildSize:     300,
		ChildOverlap:  50,
		MinParent:     100,
		MaxParent:     2000,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.ParentSize <= 0 {
		c.ParentSize = d.ParentSize
	}
	if c.ParentOverlap <= 0 {
		c.ParentOverlap = d.ParentOverlap
	}
	if c.ChildSize <= 0 {
		c.ChildSize = d.ChildSize
	}
	if c.ChildOverlap <= 0 {
		c.ChildOverlap = d.ChildOverlap
	}
	if c.MinParent <= 0 {
		c.MinParent = d.MinParent
	}
	if c.MaxParent <= 0 {
		c.MaxParent = d.MaxParent
	}
	return c
}

// structuralConfidence is the baseline confidence recorded on parents
// produced by deterministic header/size splitting.
const structuralConfidence = 0.9

// Chunker splits machine-readable text into parent chunks and child units.
type Chunker struct {
	cfg Config
	md  goldmark.Markdown
	log *slog.Logger
}

func New(cfg Config, log *slog.Logger) *Chunker {
	return &Chunker{
		cfg: cfg.withDefaults(),
		md:  goldmark.New(),
		log: log,
	}
}

// Chunk splits documentText into parent chunks with owned child units.
// Returns an error only when the input has no usable content at all; size
// and header irregularities degrade to fallback splitting instead.
func (c *Chunker) Chunk(documentText string) ([]chunk.ParentChunk, error) {
	if strings.TrimSpace(documentText) == "" {
		return nil, fmt.Errorf("no text content to chunk")
	}

	markdown := ToMarkdown(documentText)
	parents := c.headerParents(markdown)
	if len(parents) == 0 {
		c.log.Warn("no headers detected, falling back to size-based splitting")
		parents = c.sizeParents(markdown)
	}
	if len(parents) == 0 {
		return nil, fmt.Errorf("no parent chunks produced")
	}

	for i := range parents {
		parents[i].Children = c.childUnits(parents[i].Content)
	}
	return parents, nil
}

type headingMark struct {
	lineStart int // byte offset of the heading line in the source
	bodyStart int // byte offset just past the heading line
	level     int
	title     string
}

// headerParents splits the markdown on goldmark heading nodes. Level-1
// headings set the chapter title, deeper levels the section title.
func (c *Chunker) headerParents(markdown string) []chunk.ParentChunk {
	src := []byte(markdown)
	doc := c.md.Parser().Parse(gtext.NewReader(src))

	var marks []headingMark
	for n := doc.FirstChild(); n != nil; n = n.NextSibling() {
		h, ok := n.(*ast.Heading)
		if !ok || h.Lines().Len() == 0 {
			continue
		}
		seg := h.Lines().At(0)
		marks = append(marks, headingMark{
			lineStart: lineStartBefore(src, seg.Start),
			bodyStart: lineEndAfter(src, seg.Stop),
			level:     h.Level,
			title:     headingText(h, src),
		})
	}
	if len(marks) == 0 {
		return nil
	}

	var parents []chunk.ParentChunk
	var chapter, section string

	appendBody := func(body string) {
		body = strings.TrimSpace(body)
		if body == "" {
			return
		}
		if len(body) > c.cfg.ParentSize*3/2 {
			parents = append(parents, c.resplitLarge(body, chapter, section)...)
			return
		}
		parents = append(parents, chunk.ParentChunk{
			Content:    body,
			Chapter:    chapter,
			Section:    section,
			Confidence: structuralConfidence,
			Size:       len(body),
		})
	}

	// Content before the first heading has no titles.
	appendBody(string(src[:marks[0].lineStart]))

	for i, m := range marks {
		if m.level == 1 {
			chapter = m.title
			section = ""
		} else {
			section = m.title
		}
		end := len(src)
		if i+1 < len(marks) {
			end = marks[i+1].lineStart
		}
		appendBody(string(src[m.bodyStart:end]))
	}

	return parents
}

// resplitLarge breaks an oversized section body into parent-sized parts
// with a larger overlap so context crossing the cut is retained.
func (c *Chunker) resplitLarge(body, chapter, section string) []chunk.ParentChunk {
	s := Splitter{ChunkSize: c.cfg.ParentSize, Overlap: c.cfg.ParentOverlap}
	parts := s.Split(body)
	out := make([]chunk.ParentChunk, 0, len(parts))
	for i, part := range parts {
		title := fmt.Sprintf("Part %d", i+1)
		if section != "" {
			title = fmt.Sprintf("%s (Part %d)", section, i+1)
		}
		out = append(out, chunk.ParentChunk{
			Content:    part,
			Chapter:    chapter,
			Section:    title,
			Confidence: structuralConfidence,
			Size:       len(part),
		})
	}
	return out
}

// sizeParents is the pure size-based fallback for text without headers.
func (c *Chunker) sizeParents(text string) []chunk.ParentChunk {
	s := Splitter{ChunkSize: c.cfg.ParentSize, Overlap: c.cfg.ParentOverlap}
	parts := s.Split(text)
	out := make([]chunk.ParentChunk, 0, len(parts))
	for i, part := range parts {
		out = append(out, chunk.ParentChunk{
			Content:    part,
			Section:    fmt.Sprintf("Section %d", i+1),
			Confidence: structuralConfidence,
			Size:       len(part),
		})
	}
	return out
}

// childUnits splits parent content into sentence-level units. The recursive
// splitter handles the paragraph/line/sentence/word cascade; if it produces
// nothing (content that is all separators), a sentence accumulator runs.
func (c *Chunker) childUnits(parentContent string) []chunk.ChildUnit {
	s := Splitter{ChunkSize: c.cfg.ChildSize, Overlap: c.cfg.ChildOverlap}
	parts := s.Split(parentContent)
	if len(parts) == 0 {
		parts = accumulateSentences(parentContent, c.cfg.ChildSize)
	}
	units := make([]chunk.ChildUnit, 0, len(parts))
	for i, p := range parts {
		units = append(units, chunk.ChildUnit{
			Content:  p,
			Sequence: i + 1,
			Role:     chunk.RoleMainPoint,
		})
	}
	return units
}

// accumulateSentences groups sentences up to target characters, the plain
// fallback when recursive splitting yields nothing.
func accumulateSentences(text string, target int) []string {
	var out []string
	var cur strings.Builder
	for _, sentence := range splitSentences(text) {
		if cur.Len() > 0 && cur.Len()+len(sentence)+1 > target {
			out = append(out, strings.TrimSpace(cur.String()))
			cur.Reset()
		}
		if cur.Len() > 0 {
			cur.WriteString(" ")
		}
		cur.WriteString(sentence)
	}
	if s := strings.TrimSpace(cur.String()); s != "" {
		out = append(out, s)
	}
	return out
}

func splitSentences(text string) []string {
	var sentences []string
	var cur strings.Builder
	runes := []rune(text)
	for i, r := range runes {
		cur.WriteRune(r)
		if (r == '.' || r == '!' || r == '?') && (i+1 >= len(runes) || runes[i+1] == ' ' || runes[i+1] == '\n') {
			if s := strings.TrimSpace(cur.String()); s != "" {
				sentences = append(sentences, s)
			}
			cur.Reset()
		}
	}
	if s := strings.TrimSpace(cur.String()); s != "" {
		sentences = append(sentences, s)
	}
	return sentences
}

// Validation reports on parent chunk size distribution.
type Validation struct {
	Valid    bool
	Reason   string
	Total    int
	TooSmall int
	TooLarge int
	MeanSize float64
}

// Validate flags a chunking result as invalid when nothing was produced or
// more than 30% of parents fall outside the configured size band.
func (c *Chunker) Validate(parents []chunk.ParentChunk) Validation {
	if len(parents) == 0 {
		return Validation{Valid: false, Reason: "no_chunks_created"}
	}
	v := Validation{Valid: true, Total: len(parents)}
	sum := 0
	for i := range parents {
		size := len(parents[i].Content)
		sum += size
		if size < c.cfg.MinParent {
			v.TooSmall++
		} else if size > c.cfg.MaxParent {
			v.TooLarge++
		}
	}
	v.MeanSize = float64(sum) / float64(len(parents))
	if float64(v.TooSmall+v.TooLarge) > float64(len(parents))*0.3 {
		v.Valid = false
		v.Reason = "poor_size_distribution"
	}
	return v
}

func headingText(h *ast.Heading, src []byte) string {
	var sb strings.Builder
	_ = ast.Walk(h, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if t, ok := n.(*ast.Text); ok && entering {
			sb.Write(t.Segment.Value(src))
		}
		return ast.WalkContinue, nil
	})
	return strings.TrimSpace(sb.String())
}

func lineStartBefore(src []byte, off int) int {
	for off > 0 && src[off-1] != '\n' {
		off--
	}
	return off
}

func lineEndAfter(src []byte, off int) int {
	for off < len(src) && src[off] != '\n' {
		off++
	}
	if off < len(src) {
		off++
	}
	return off
}
