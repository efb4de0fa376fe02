package pdfdoc

import (
	"strings"
	"testing"
)

func TestFullText_SinglePage(t *testing.T) {
	doc := &Memory{Pages: []string{"Only page."}}
	got, err := FullText(doc)
	if err != nil {
		t.Fatalf("full text: %v", err)
	}
	if got != "Only page." {
		t.Errorf("expected bare page text, got %q", got)
	}
	if strings.Contains(got, "--- Page") {
		t.Error("single page should carry no marker")
	}
}

func TestFullText_InsertsMarkersBetweenPages(t *testing.T) {
	doc := &Memory{Pages: []string{"First page.", "Second page.", "Third page."}}
	got, err := FullText(doc)
	if err != nil {
		t.Fatalf("full text: %v", err)
	}
	if !strings.Contains(got, "--- Page 2 ---") || !strings.Contains(got, "--- Page 3 ---") {
		t.Errorf("expected markers for pages 2 and 3, got %q", got)
	}
	if strings.Contains(got, "--- Page 1 ---") {
		t.Error("first page should not be preceded by a marker")
	}
	if !strings.HasPrefix(got, "First page.") {
		t.Errorf("text should start with the first page, got %q", got)
	}
}

func TestFullText_SkipsEmptyPages(t *testing.T) {
	doc := &Memory{Pages: []string{"Has text.", "   ", "", "More text."}}
	got, err := FullText(doc)
	if err != nil {
		t.Fatalf("full text: %v", err)
	}
	if strings.Contains(got, "--- Page 2 ---") || strings.Contains(got, "--- Page 3 ---") {
		t.Error("blank pages should not produce markers")
	}
	if !strings.Contains(got, "--- Page 4 ---") {
		t.Errorf("expected marker for page 4, got %q", got)
	}
}

func TestMemory_PageAccess(t *testing.T) {
	doc := &Memory{Pages: []string{"one", "two"}, Areas: []float64{1000}}

	if doc.PageCount() != 2 {
		t.Errorf("expected 2 pages, got %d", doc.PageCount())
	}
	text, err := doc.PageText(2)
	if err != nil {
		t.Fatalf("page text: %v", err)
	}
	if text != "two" {
		t.Errorf("expected %q, got %q", "two", text)
	}
	if _, err := doc.PageText(0); err == nil {
		t.Error("expected error for page 0")
	}
	if _, err := doc.PageText(3); err == nil {
		t.Error("expected error for page past the end")
	}

	if got := doc.PageArea(1); got != 1000 {
		t.Errorf("expected explicit area, got %v", got)
	}
	if got := doc.PageArea(2); got != defaultPageArea {
		t.Errorf("expected default area for unspecified page, got %v", got)
	}
}

func TestFromBytes_RejectsGarbage(t *testing.T) {
	if _, err := FromBytes([]byte("this is not a pdf")); err == nil {
		t.Error("expected error for non-PDF bytes")
	}
}
