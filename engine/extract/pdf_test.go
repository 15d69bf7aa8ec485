package extract

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/CoachingAI/coaching-mvp/engine/domain"
)

// fakeDoc is a pdfDoc with fixed per-page text.
type fakeDoc struct {
	pages  []string
	closed bool
}

func (d *fakeDoc) NumPage() int                  { return len(d.pages) }
func (d *fakeDoc) Text(i int) (string, error)    { return d.pages[i], nil }
func (d *fakeDoc) ImagePNG(i int, _ float64) ([]byte, error) {
	return []byte("png-" + d.pages[i]), nil
}
func (d *fakeDoc) Close() error { d.closed = true; return nil }

func pdfWith(t *testing.T, doc *fakeDoc, ocrRan *bool) *PDF {
	t.Helper()
	p := NewPDF()
	p.open = func([]byte) (pdfDoc, error) { return doc, nil }
	p.ocr = func(pages [][]byte) (string, error) {
		if ocrRan != nil {
			*ocrRan = true
		}
		var b strings.Builder
		for i := range pages {
			b.WriteString("ocr-page ")
			_ = i
		}
		return b.String(), nil
	}
	return p
}

func TestPDF_TextPathAtThreshold(t *testing.T) {
	// Exactly MinTextChars characters of embedded text stays on the text path.
	doc := &fakeDoc{pages: []string{strings.Repeat("x", MinTextChars)}}
	ocrRan := false
	p := pdfWith(t, doc, &ocrRan)

	text, err := p.Extract(context.Background(), domain.SourceObject{ID: "f-1"}, nil)
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if ocrRan {
		t.Error("OCR must not run at the threshold")
	}
	if len(text) != MinTextChars {
		t.Errorf("unexpected text %q", text)
	}
	if !doc.closed {
		t.Error("document not closed")
	}
}

func TestPDF_OCRPathBelowThreshold(t *testing.T) {
	doc := &fakeDoc{pages: []string{strings.Repeat("x", MinTextChars-1), ""}}
	ocrRan := false
	p := pdfWith(t, doc, &ocrRan)

	text, err := p.Extract(context.Background(), domain.SourceObject{ID: "f-1"}, nil)
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if !ocrRan {
		t.Fatal("expected OCR fallback below the threshold")
	}
	if !strings.Contains(text, "ocr-page") {
		t.Errorf("expected OCR output, got %q", text)
	}
}

func TestPDF_WhitespaceDoesNotCountTowardGate(t *testing.T) {
	doc := &fakeDoc{pages: []string{strings.Repeat(" \n", 50)}}
	ocrRan := false
	p := pdfWith(t, doc, &ocrRan)

	if _, err := p.Extract(context.Background(), domain.SourceObject{ID: "f-1"}, nil); err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if !ocrRan {
		t.Error("whitespace-only pages should route through OCR")
	}
}

func TestPDF_OpenFailure(t *testing.T) {
	p := NewPDF()
	p.open = func([]byte) (pdfDoc, error) { return nil, errors.New("corrupt file") }

	_, err := p.Extract(context.Background(), domain.SourceObject{ID: "f-1"}, []byte("junk"))
	if !errors.Is(err, domain.ErrExtractionFailure) {
		t.Fatalf("expected ErrExtractionFailure, got %v", err)
	}
}

func TestPDF_OCRFailure(t *testing.T) {
	doc := &fakeDoc{pages: []string{""}}
	p := NewPDF()
	p.open = func([]byte) (pdfDoc, error) { return doc, nil }
	p.ocr = func([][]byte) (string, error) { return "", errors.New("tesseract missing") }

	_, err := p.Extract(context.Background(), domain.SourceObject{ID: "f-1"}, nil)
	if !errors.Is(err, domain.ErrExtractionFailure) {
		t.Fatalf("expected ErrExtractionFailure, got %v", err)
	}
}
