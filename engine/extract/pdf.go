package extract

import (
	"context"
	"fmt"
	"strings"

	"github.com/CoachingAI/coaching-mvp/engine/domain"
	"github.com/gen2brain/go-fitz"
	"github.com/otiai10/gosseract/v2"
)

const (
	// MinTextChars is the quality gate: a PDF whose embedded text is
	// shorter than this is treated as image-based and routed through OCR.
	MinTextChars = 20
	// OCRDPI is the raster resolution for OCR page rendering.
	OCRDPI = 300
	// OCRLanguage is the Tesseract language model.
	OCRLanguage = "eng"
)

// pdfDoc is the slice of go-fitz used here, extracted for testing.
type pdfDoc interface {
	NumPage() int
	Text(page int) (string, error)
	ImagePNG(page int, dpi float64) ([]byte, error)
	Close() error
}

// PDF extracts embedded text per page and falls back to rendering pages
// and running OCR when the document turns out to be image-based. The gate
// is content quality, not format: the same document can take either path.
type PDF struct {
	MinTextChars int
	DPI          float64

	open func(data []byte) (pdfDoc, error)
	ocr  func(pages [][]byte) (string, error)
}

// NewPDF creates a PDF extractor with default policy.
func NewPDF() *PDF {
	return &PDF{
		MinTextChars: MinTextChars,
		DPI:          OCRDPI,
		open: func(data []byte) (pdfDoc, error) {
			return fitz.NewFromMemory(data)
		},
		ocr: tesseractPages,
	}
}

// Extract implements Extractor.
func (p *PDF) Extract(ctx context.Context, src domain.SourceObject, data []byte) (string, error) {
	doc, err := p.open(data)
	if err != nil {
		return "", fmt.Errorf("extract: open pdf %s: %w: %w", src.ID, domain.ErrExtractionFailure, err)
	}
	defer doc.Close()

	var text strings.Builder
	for i := 0; i < doc.NumPage(); i++ {
		page, err := doc.Text(i)
		if err != nil {
			return "", fmt.Errorf("extract: pdf %s page %d: %w: %w", src.ID, i, domain.ErrExtractionFailure, err)
		}
		text.WriteString(page)
	}

	if len(strings.TrimSpace(text.String())) >= p.MinTextChars {
		return text.String(), nil
	}

	// Too little embedded text: render each page and OCR it.
	pages := make([][]byte, doc.NumPage())
	for i := range pages {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		img, err := doc.ImagePNG(i, p.DPI)
		if err != nil {
			return "", fmt.Errorf("extract: render pdf %s page %d: %w: %w", src.ID, i, domain.ErrExtractionFailure, err)
		}
		pages[i] = img
	}

	out, err := p.ocr(pages)
	if err != nil {
		return "", fmt.Errorf("extract: ocr pdf %s: %w: %w", src.ID, domain.ErrExtractionFailure, err)
	}
	return out, nil
}

// tesseractPages runs Tesseract over each rendered page, concatenating
// per-page output with a page-boundary marker.
func tesseractPages(pages [][]byte) (string, error) {
	client := gosseract.NewClient()
	defer client.Close()
	if err := client.SetLanguage(OCRLanguage); err != nil {
		return "", err
	}

	var out strings.Builder
	for i, png := range pages {
		if err := client.SetImageFromBytes(png); err != nil {
			return "", err
		}
		text, err := client.Text()
		if err != nil {
			return "", err
		}
		fmt.Fprintf(&out, "\n--- OCR Page %d ---\n%s", i+1, text)
	}
	return out.String(), nil
}
