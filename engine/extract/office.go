package extract

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"code.sajari.com/docconv"
	"github.com/CoachingAI/coaching-mvp/engine/domain"
)

// Docx extracts text from Office Open XML word documents.
type Docx struct{}

// Extract implements Extractor.
func (Docx) Extract(_ context.Context, src domain.SourceObject, data []byte) (string, error) {
	text, _, err := docconv.ConvertDocx(bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("extract: docx %s: %w: %w", src.ID, domain.ErrExtractionFailure, err)
	}
	return text, nil
}

// LegacyDoc delegates binary .doc files to the legacy-format converter.
type LegacyDoc struct{}

// Extract implements Extractor.
func (LegacyDoc) Extract(_ context.Context, src domain.SourceObject, data []byte) (string, error) {
	text, _, err := docconv.ConvertDoc(bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("extract: doc %s: %w: %w", src.ID, domain.ErrExtractionFailure, err)
	}
	return text, nil
}

// Plain treats the bytes as UTF-8 text.
type Plain struct{}

// Extract implements Extractor.
func (Plain) Extract(_ context.Context, src domain.SourceObject, data []byte) (string, error) {
	if !utf8.Valid(data) {
		return "", fmt.Errorf("extract: txt %s: not valid UTF-8: %w", src.ID, domain.ErrExtractionFailure)
	}
	return strings.ToValidUTF8(string(data), ""), nil
}
