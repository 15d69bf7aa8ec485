package domain

import (
	"errors"
	"fmt"
)

// Sentinel errors for ingestion and chat failures.
var (
	ErrUnsupportedSource  = errors.New("unsupported source")
	ErrNotFound           = errors.New("not found")
	ErrDownloadFailure    = errors.New("download failed")
	ErrExtractionFailure  = errors.New("extraction failed")
	ErrEmbeddingService   = errors.New("embedding service error")
	ErrCompletionService  = errors.New("completion service error")
	ErrPersistenceFailure = errors.New("persistence failed")
)

// StageError wraps a sentinel with the pipeline stage and source it failed in.
type StageError struct {
	Stage    string
	SourceID string
	Wrapped  error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("ingest: stage %s: source %s: %v", e.Stage, e.SourceID, e.Wrapped)
}

func (e *StageError) Unwrap() error { return e.Wrapped }

// NewStageError creates a StageError.
func NewStageError(stage, sourceID string, wrapped error) *StageError {
	return &StageError{Stage: stage, SourceID: sourceID, Wrapped: wrapped}
}
