package structural

import (
	"fmt"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/somchaik/chunkd/internal/chunk"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func bodyText(sentences int) string {
	var sb strings.Builder
	for i := 0; i < sentences; i++ {
		fmt.Fprintf(&sb, "This body sentence number %d describes the topic in reasonable depth for testing. ", i+1)
	}
	return strings.TrimSpace(sb.String())
}

func TestChunk_HeaderSplit(t *testing.T) {
	text := "Chapter 1: Introduction\n" + bodyText(5) + "\n\nSection 1.1\n" + bodyText(5) + "\n\nChapter 2: Methods\n" + bodyText(5)

	c := New(Config{}, testLogger())
	parents, err := c.Chunk(text)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(parents) != 3 {
		t.Fatalf("expected 3 parents from 3 headed sections, got %d", len(parents))
	}

	if parents[0].Chapter != "Chapter 1: Introduction" {
		t.Errorf("expected first parent titled by chapter, got %q", parents[0].Chapter)
	}
	if parents[1].Section != "Section 1.1" {
		t.Errorf("expected second parent titled by section, got %q", parents[1].Section)
	}
	if parents[1].Chapter != "Chapter 1: Introduction" {
		t.Errorf("expected section to inherit its chapter, got %q", parents[1].Chapter)
	}
	if parents[2].Chapter != "Chapter 2: Methods" {
		t.Errorf("expected third parent under chapter 2, got %q", parents[2].Chapter)
	}
	if parents[2].Section != "" {
		t.Errorf("expected new chapter to reset the section, got %q", parents[2].Section)
	}

	for i, p := range parents {
		if p.Confidence != 0.9 {
			t.Errorf("parent %d: expected confidence 0.9, got %v", i, p.Confidence)
		}
		if len(p.Children) == 0 {
			t.Errorf("parent %d: expected child units", i)
		}
	}
}

func TestChunk_NoHeadersFallsBackToSize(t *testing.T) {
	// ~5000 chars of plain prose, no header-shaped lines.
	text := bodyText(60)

	c := New(Config{ParentSize: 1000, ParentOverlap: 100}, testLogger())
	parents, err := c.Chunk(text)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(parents) < 4 {
		t.Fatalf("expected several size-based parents from ~5000 chars, got %d", len(parents))
	}
	for i, p := range parents {
		if len(p.Content) > 1100 {
			t.Errorf("parent %d too large: %d chars", i, len(p.Content))
		}
		if p.Section == "" {
			t.Errorf("parent %d: expected a generated section title", i)
		}
	}
}

func TestChunk_OversizedSectionResplit(t *testing.T) {
	// One heading with a body well over 1.5x the parent size.
	text := "Chapter 1: Everything\n" + bodyText(40)

	c := New(Config{ParentSize: 1000, ParentOverlap: 100}, testLogger())
	parents, err := c.Chunk(text)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(parents) < 2 {
		t.Fatalf("expected oversized section to be re-split, got %d parents", len(parents))
	}
	for i, p := range parents {
		if p.Chapter != "Chapter 1: Everything" {
			t.Errorf("parent %d: expected chapter retained, got %q", i, p.Chapter)
		}
		if !strings.Contains(p.Section, "Part") {
			t.Errorf("parent %d: expected part-numbered section, got %q", i, p.Section)
		}
	}
}

func TestChunk_ChildUnits(t *testing.T) {
	text := "Chapter 1: Content\n" + bodyText(12)

	c := New(Config{ChildSize: 300, ChildOverlap: 50}, testLogger())
	parents, err := c.Chunk(text)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	for _, p := range parents {
		if len(p.Children) == 0 {
			t.Fatal("expected child units")
		}
		for i, u := range p.Children {
			if u.Sequence != i+1 {
				t.Errorf("expected sequence %d, got %d", i+1, u.Sequence)
			}
			if u.Role != chunk.RoleMainPoint {
				t.Errorf("expected main_point role, got %s", u.Role)
			}
			if strings.TrimSpace(u.Content) == "" {
				t.Error("expected non-empty child content")
			}
		}
	}
}

func TestChunk_EmptyInput(t *testing.T) {
	c := New(Config{}, testLogger())
	if _, err := c.Chunk("   \n\n  "); err == nil {
		t.Error("expected error for empty input")
	}
}

func TestValidate_Empty(t *testing.T) {
	c := New(Config{}, testLogger())
	v := c.Validate(nil)
	if v.Valid {
		t.Error("expected empty result to be invalid")
	}
	if v.Reason != "no_chunks_created" {
		t.Errorf("expected reason no_chunks_created, got %q", v.Reason)
	}
}

func TestValidate_GoodDistribution(t *testing.T) {
	c := New(Config{MinParent: 100, MaxParent: 2000}, testLogger())
	parents := []chunk.ParentChunk{
		{Content: strings.Repeat("a", 500)},
		{Content: strings.Repeat("b", 900)},
		{Content: strings.Repeat("c", 1200)},
	}
	v := c.Validate(parents)
	if !v.Valid {
		t.Errorf("expected valid distribution, got reason %q", v.Reason)
	}
	if v.MeanSize != (500+900+1200)/3.0 {
		t.Errorf("unexpected mean size %v", v.MeanSize)
	}
}

func TestValidate_PoorDistribution(t *testing.T) {
	c := New(Config{MinParent: 100, MaxParent: 2000}, testLogger())
	parents := []chunk.ParentChunk{
		{Content: strings.Repeat("a", 10)},
		{Content: strings.Repeat("b", 20)},
		{Content: strings.Repeat("c", 500)},
	}
	v := c.Validate(parents)
	if v.Valid {
		t.Error("expected invalid result when 2 of 3 parents are undersized")
	}
	if v.Reason != "poor_size_distribution" {
		t.Errorf("expected reason poor_size_distribution, got %q", v.Reason)
	}
	if v.TooSmall != 2 {
		t.Errorf("expected 2 undersized parents, got %d", v.TooSmall)
	}
}
