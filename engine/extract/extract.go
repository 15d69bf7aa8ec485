// Package extract converts source objects into normalized text. Each
// source kind has its own Extractor; dispatch happens through a Registry
// so adding a format means adding an implementation, not editing a chain.
package extract

import (
	"context"
	"fmt"

	"github.com/CoachingAI/coaching-mvp/engine/domain"
)

// Extractor converts one source object's raw bytes into text. Extractors
// for remote kinds (video links) ignore data and use src.Location.
type Extractor interface {
	Extract(ctx context.Context, src domain.SourceObject, data []byte) (string, error)
}

// Registry dispatches extraction by source kind.
type Registry struct {
	byKind map[domain.SourceKind]Extractor
}

// NewRegistry builds a registry with the default extractor per kind.
// transcripts may be nil when video links are not ingested.
func NewRegistry(transcripts TranscriptFetcher) *Registry {
	r := &Registry{byKind: make(map[domain.SourceKind]Extractor)}
	r.Register(domain.KindPDF, NewPDF())
	r.Register(domain.KindDocx, Docx{})
	r.Register(domain.KindLegacyDoc, LegacyDoc{})
	r.Register(domain.KindText, Plain{})
	if transcripts != nil {
		r.Register(domain.KindVideoLink, &Video{Transcripts: transcripts})
	}
	return r
}

// Register installs (or replaces) the extractor for a kind.
func (r *Registry) Register(kind domain.SourceKind, e Extractor) {
	r.byKind[kind] = e
}

// Extract runs the extractor registered for the source's kind.
func (r *Registry) Extract(ctx context.Context, src domain.SourceObject, data []byte) (string, error) {
	e, ok := r.byKind[src.Kind]
	if !ok {
		return "", fmt.Errorf("extract: kind %q: %w", src.Kind, domain.ErrUnsupportedSource)
	}
	return e.Extract(ctx, src, data)
}
