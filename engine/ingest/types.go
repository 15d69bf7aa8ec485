package ingest

import (
	"context"

	"github.com/CoachingAI/coaching-mvp/engine/domain"
)

// Downloader fetches the raw bytes of an uploaded source object.
type Downloader interface {
	Download(ctx context.Context, key string) ([]byte, error)
}

// Embedder turns texts into fixed-dimension vectors in one batched call.
type Embedder interface {
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
}

// PassageWriter persists a source's passages as one batch.
type PassageWriter interface {
	UpsertPassages(ctx context.Context, passages []domain.Passage) error
}

// PassageVectors reads a stored passage and overwrites its vector. Used by
// the re-embedding job.
type PassageVectors interface {
	FetchPassage(ctx context.Context, id string) (domain.Passage, error)
	UpdateVector(ctx context.Context, id string, embedding []float32) error
}

// StatusStore records a source object's terminal ingestion status.
type StatusStore interface {
	SetStatus(ctx context.Context, sourceID string, kind domain.SourceKind, status domain.IngestStatus) error
}

// EmptyTextPolicy decides what an extraction that yields no text means.
type EmptyTextPolicy int

const (
	// SoftSuccess finishes the job with zero passages and a processed
	// status. Matches the historical behavior for empty documents.
	SoftSuccess EmptyTextPolicy = iota
	// FailOnEmpty treats empty extraction as an extraction failure.
	FailOnEmpty
)

// Options tunes the ingestion pipeline.
type Options struct {
	ChunkSize    int
	ChunkOverlap int
	EmptyText    EmptyTextPolicy
}

// DefaultOptions returns the default chunking and empty-text policy.
func DefaultOptions() Options {
	return Options{
		ChunkSize:    300,
		ChunkOverlap: 50,
		EmptyText:    SoftSuccess,
	}
}

// payload carries a source and its downloaded bytes between stages.
type payload struct {
	src  domain.SourceObject
	data []byte
}

// extractedDoc is a source with normalized text.
type extractedDoc struct {
	src  domain.SourceObject
	text string
}

// chunkedDoc is a source split into embeddable chunks.
type chunkedDoc struct {
	src    domain.SourceObject
	chunks []string
}

// embeddedDoc is a chunked source with one vector per chunk.
type embeddedDoc struct {
	src     domain.SourceObject
	chunks  []string
	vectors [][]float32
}
