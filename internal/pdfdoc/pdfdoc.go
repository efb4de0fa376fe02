// Package pdfdoc provides page-level access to PDF documents: page count,
// extractable text, and page area. The rest of the pipeline consumes the
// Document interface so tests can substitute in-memory fixtures.
package pdfdoc

import (
	"fmt"
	"os"
	"strings"

	pdflib "github.com/ledongthuc/pdf"
)

// Document is the accessor the analyzer and chunkers read pages through.
// Page numbers are 1-based throughout.
type Document interface {
	PageCount() int
	PageText(page int) (string, error)
	PageArea(page int) float64
	Close() error
}

// defaultPageArea is US Letter in PDF points, used when a page carries no
// resolvable MediaBox.
const defaultPageArea = 612.0 * 792.0

// File is a Document backed by a PDF on disk.
type File struct {
	f      *os.File
	reader *pdflib.Reader
	// Temp files created by FromBytes are removed on Close.
	tempPath string
}

// Open opens a PDF file for page access.
func Open(path string) (*File, error) {
	f, reader, err := pdflib.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open pdf: %w", err)
	}
	return &File{f: f, reader: reader}, nil
}

// FromBytes writes data to a temp file and opens it. The pdf library needs a
// ReadSeeker with a known size, so uploaded documents take this route.
func FromBytes(data []byte) (*File, error) {
	tmp, err := os.CreateTemp("", "chunkd-*.pdf")
	if err != nil {
		return nil, fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return nil, fmt.Errorf("write temp file: %w", err)
	}
	tmp.Close()

	doc, err := Open(tmpPath)
	if err != nil {
		os.Remove(tmpPath)
		return nil, err
	}
	doc.tempPath = tmpPath
	return doc, nil
}

func (d *File) PageCount() int {
	return d.reader.NumPage()
}

// PageText extracts the embedded text layer of a page. Pages with no text
// layer return an empty string without error.
func (d *File) PageText(page int) (string, error) {
	if page < 1 || page > d.reader.NumPage() {
		return "", fmt.Errorf("page %d out of range (1-%d)", page, d.reader.NumPage())
	}
	p := d.reader.Page(page)
	if p.V.IsNull() {
		return "", nil
	}
	text, err := p.GetPlainText(nil)
	if err != nil {
		// A page that fails text extraction is indistinguishable from an
		// image-only page for classification purposes.
		return "", nil
	}
	return text, nil
}

// PageArea returns the page's MediaBox area in square points, falling back
// to US Letter when the box is absent or malformed.
func (d *File) PageArea(page int) float64 {
	if page < 1 || page > d.reader.NumPage() {
		return defaultPageArea
	}
	p := d.reader.Page(page)
	if p.V.IsNull() {
		return defaultPageArea
	}
	box := p.V.Key("MediaBox")
	if box.IsNull() || box.Len() != 4 {
		return defaultPageArea
	}
	w := box.Index(2).Float64() - box.Index(0).Float64()
	h := box.Index(3).Float64() - box.Index(1).Float64()
	if w <= 0 || h <= 0 {
		return defaultPageArea
	}
	return w * h
}

func (d *File) Close() error {
	err := d.f.Close()
	if d.tempPath != "" {
		os.Remove(d.tempPath)
	}
	return err
}

// FullText concatenates all page text with page markers, the input form the
// structural chunker expects. Markers are only inserted between non-empty
// pages after the first.
func FullText(doc Document) (string, error) {
	var sb strings.Builder
	for page := 1; page <= doc.PageCount(); page++ {
		text, err := doc.PageText(page)
		if err != nil {
			return "", err
		}
		if strings.TrimSpace(text) == "" {
			continue
		}
		if sb.Len() > 0 {
			fmt.Fprintf(&sb, "\n\n--- Page %d ---\n\n", page)
		}
		sb.WriteString(text)
	}
	return sb.String(), nil
}

// Memory is an in-memory Document used by fixtures.
type Memory struct {
	Pages []string  // text layer per page, "" for image-only pages
	Areas []float64 // optional per-page areas, default US Letter
}

func (m *Memory) PageCount() int { return len(m.Pages) }

func (m *Memory) PageText(page int) (string, error) {
	if page < 1 || page > len(m.Pages) {
		return "", fmt.Errorf("page %d out of range (1-%d)", page, len(m.Pages))
	}
	return m.Pages[page-1], nil
}

func (m *Memory) PageArea(page int) float64 {
	if page >= 1 && page <= len(m.Areas) {
		return m.Areas[page-1]
	}
	return defaultPageArea
}

func (m *Memory) Close() error { return nil }
