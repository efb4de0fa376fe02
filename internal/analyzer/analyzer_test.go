package analyzer

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/somchaik/chunkd/internal/chunk"
	"github.com/somchaik/chunkd/internal/pdfdoc"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// nativePage is realistic body text well above the minimum length.
var nativePage = strings.Repeat(
	"The quarterly report covers revenue, operating expenses, and headcount changes. "+
		"Management expects modest growth in the coming period. ", 3)

func TestClassify_NativeDocument(t *testing.T) {
	doc := &pdfdoc.Memory{Pages: []string{nativePage, nativePage, nativePage}}
	a := New(Config{}, testLogger())

	cls := a.Classify(context.Background(), doc)

	if cls.Type != TypeNative {
		t.Fatalf("expected native, got %s", cls.Type)
	}
	if cls.Path != chunk.PathStructural {
		t.Errorf("expected structural path, got %s", cls.Path)
	}
	if cls.Confidence < 0.8 {
		t.Errorf("expected confidence >= 0.8 for all-text document, got %v", cls.Confidence)
	}
	if cls.Method != "complete" {
		t.Errorf("expected complete analysis for a 3-page document, got %s", cls.Method)
	}
	if cls.PagesWithText != 3 {
		t.Errorf("expected 3 pages with text, got %d", cls.PagesWithText)
	}
	if cls.PagesRequiringOCR != 0 {
		t.Errorf("expected 0 pages requiring OCR, got %d", cls.PagesRequiringOCR)
	}
}

func TestClassify_ScannedDocument(t *testing.T) {
	// Image-only pages carry an empty text layer.
	doc := &pdfdoc.Memory{Pages: []string{"", "", ""}}
	a := New(Config{}, testLogger())

	cls := a.Classify(context.Background(), doc)

	if cls.Type != TypeScanned {
		t.Fatalf("expected scanned, got %s", cls.Type)
	}
	if cls.Path != chunk.PathOCRSemantic {
		t.Errorf("expected ocr_semantic path, got %s", cls.Path)
	}
	if cls.PagesRequiringOCR != 3 {
		t.Errorf("expected all 3 pages to require OCR, got %d", cls.PagesRequiringOCR)
	}
}

func TestClassify_MixedDocument(t *testing.T) {
	doc := &pdfdoc.Memory{Pages: []string{nativePage, "", nativePage, "", ""}}
	a := New(Config{}, testLogger())

	cls := a.Classify(context.Background(), doc)

	if cls.Type != TypeMixed {
		t.Fatalf("expected mixed, got %s", cls.Type)
	}
	// Mixed documents route through OCR so image pages are not dropped.
	if cls.Path != chunk.PathOCRSemantic {
		t.Errorf("expected ocr_semantic path for mixed document, got %s", cls.Path)
	}
}

func TestClassify_SamplingLargeDocument(t *testing.T) {
	pages := make([]string, 20)
	for i := range pages {
		pages[i] = "" // scanned
	}
	doc := &pdfdoc.Memory{Pages: pages}
	a := New(Config{SamplePageLimit: 5}, testLogger())

	cls := a.Classify(context.Background(), doc)

	if cls.Method != "sampling" {
		t.Fatalf("expected sampling method for 20-page document, got %s", cls.Method)
	}
	if len(cls.Samples) > 5 {
		t.Errorf("expected at most 5 sampled pages, got %d", len(cls.Samples))
	}
	if cls.TotalPages != 20 {
		t.Errorf("expected total pages 20, got %d", cls.TotalPages)
	}
	// Extrapolation: all sampled pages scanned implies all pages scanned.
	if cls.PagesRequiringOCR != 20 {
		t.Errorf("expected 20 pages requiring OCR by extrapolation, got %d", cls.PagesRequiringOCR)
	}
}

func TestClassify_Idempotent(t *testing.T) {
	doc := &pdfdoc.Memory{Pages: []string{nativePage, "", nativePage}}
	a := New(Config{}, testLogger())

	first := a.Classify(context.Background(), doc)
	second := a.Classify(context.Background(), doc)

	if first.Type != second.Type || first.Path != second.Path || first.Confidence != second.Confidence {
		t.Errorf("expected identical classifications, got %+v vs %+v", first, second)
	}
}

func TestClassify_MoreTextNeverLowersNativeVerdict(t *testing.T) {
	// A document with strictly more text pages must not move away from
	// native once it is already native.
	base := &pdfdoc.Memory{Pages: []string{nativePage, nativePage, nativePage, nativePage, ""}}
	all := &pdfdoc.Memory{Pages: []string{nativePage, nativePage, nativePage, nativePage, nativePage}}
	a := New(Config{}, testLogger())

	clsBase := a.Classify(context.Background(), base)
	clsAll := a.Classify(context.Background(), all)

	if clsBase.Type != TypeNative {
		t.Fatalf("expected 80%% text document to be native, got %s", clsBase.Type)
	}
	if clsAll.Type != TypeNative {
		t.Fatalf("expected all-text document to be native, got %s", clsAll.Type)
	}
	if clsAll.Confidence < clsBase.Confidence {
		t.Errorf("confidence dropped with more text pages: %v -> %v", clsBase.Confidence, clsAll.Confidence)
	}
}

func TestClassify_EmptyDocumentFallsBack(t *testing.T) {
	doc := &pdfdoc.Memory{Pages: []string{}}
	a := New(Config{}, testLogger())

	cls := a.Classify(context.Background(), doc)

	if cls.Method != "fallback" {
		t.Fatalf("expected fallback classification, got %s", cls.Method)
	}
	if cls.Path != chunk.PathOCRSemantic {
		t.Errorf("expected fallback to route to OCR, got %s", cls.Path)
	}
	if cls.Confidence != 0.3 {
		t.Errorf("expected fallback confidence 0.3, got %v", cls.Confidence)
	}
}

func TestFallbackClassification(t *testing.T) {
	cls := FallbackClassification("corrupt xref table")
	if cls.Type != TypeScanned {
		t.Errorf("expected scanned type, got %s", cls.Type)
	}
	if cls.Confidence != 0.3 {
		t.Errorf("expected confidence 0.3, got %v", cls.Confidence)
	}
	if len(cls.Factors) == 0 || !strings.Contains(cls.Factors[0], "corrupt xref table") {
		t.Errorf("expected the failure reason in decision factors, got %v", cls.Factors)
	}
}

func TestSamplePages_SmallDocumentTakesAll(t *testing.T) {
	a := New(Config{SamplePageLimit: 5}, testLogger())
	pages := a.samplePages(3)
	if len(pages) != 3 {
		t.Fatalf("expected all 3 pages, got %v", pages)
	}
	for i, p := range pages {
		if p != i+1 {
			t.Errorf("expected page %d at index %d, got %d", i+1, i, p)
		}
	}
}

func TestSamplePages_LargeDocumentIncludesEnds(t *testing.T) {
	a := New(Config{SamplePageLimit: 5}, testLogger())
	pages := a.samplePages(100)

	if len(pages) > 5 {
		t.Fatalf("expected at most 5 pages, got %d: %v", len(pages), pages)
	}
	if pages[0] != 1 {
		t.Errorf("expected first page sampled, got %v", pages)
	}
	if pages[len(pages)-1] != 100 {
		t.Errorf("expected last page sampled, got %v", pages)
	}
	for i := 1; i < len(pages); i++ {
		if pages[i] <= pages[i-1] {
			t.Errorf("expected strictly increasing pages, got %v", pages)
		}
	}
}
