package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/CoachingAI/coaching-mvp/engine/domain"
	"github.com/CoachingAI/coaching-mvp/pkg/fn"
)

// Callback receives the outcome of one ingestion job. It is invoked exactly
// once per submitted source, after the terminal status has been recorded.
type Callback func(sourceID string, kind domain.SourceKind, err error)

// Runner executes ingestion jobs in the background. Submit returns
// immediately; job outcomes surface through the status store and the
// per-job callback, never through Submit itself.
type Runner struct {
	deps     Deps
	pipeline fn.Stage[domain.SourceObject, []domain.Passage]
	vectors  PassageVectors

	wg sync.WaitGroup
}

// NewRunner builds a runner around the given collaborators. vectors may be
// nil when re-embedding is not needed.
func NewRunner(deps Deps, vectors PassageVectors) *Runner {
	if deps.Opts == (Options{}) {
		deps.Opts = DefaultOptions()
	}
	return &Runner{
		deps:     deps,
		pipeline: newPipeline(deps),
		vectors:  vectors,
	}
}

// Submit starts an ingestion job for src and returns without waiting for
// it. cb may be nil.
func (r *Runner) Submit(src domain.SourceObject, cb Callback) {
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		err := r.run(src)
		if cb != nil {
			cb(src.ID, src.Kind, err)
		}
	}()
}

func (r *Runner) run(src domain.SourceObject) (err error) {
	log := r.deps.logger().With("source_id", src.ID, "kind", src.Kind)
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("ingest: panic: %v", rec)
		}
		r.finish(src, err, log)
	}()

	ctx := context.Background()
	passages, runErr := r.pipeline(ctx, src).Unwrap()
	if runErr != nil {
		return runErr
	}
	log.Info("source ingested", "passages", len(passages))
	return nil
}

// finish records the sticky terminal status. A failure to write the status
// is logged but does not change the job outcome.
func (r *Runner) finish(src domain.SourceObject, jobErr error, log *slog.Logger) {
	status := domain.StatusProcessed
	if jobErr != nil {
		status = domain.StatusFailed
		log.Error("ingestion failed", "error", jobErr)
	}
	if r.deps.Status == nil {
		return
	}
	if err := r.deps.Status.SetStatus(context.Background(), src.ID, src.Kind, status); err != nil {
		log.Error("status update failed", "status", status, "error", err)
	}
}

// SubmitReembed re-embeds one stored passage in the background: fetch its
// text, embed it with the current model, overwrite the stored vector.
// cb may be nil.
func (r *Runner) SubmitReembed(passageID string, cb func(passageID string, err error)) {
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		err := r.reembed(passageID)
		if err != nil {
			r.deps.logger().Error("re-embedding failed", "passage_id", passageID, "error", err)
		}
		if cb != nil {
			cb(passageID, err)
		}
	}()
}

func (r *Runner) reembed(passageID string) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("ingest: panic: %v", rec)
		}
	}()

	ctx := context.Background()
	p, err := r.vectors.FetchPassage(ctx, passageID)
	if err != nil {
		return fmt.Errorf("ingest: fetch passage: %w", err)
	}
	vectors, err := r.deps.Embedder.EmbedBatch(ctx, []string{p.Text})
	if err != nil {
		return fmt.Errorf("ingest: embed passage: %w", err)
	}
	if len(vectors) != 1 {
		return fmt.Errorf("ingest: got %d vectors for one passage: %w",
			len(vectors), domain.ErrEmbeddingService)
	}
	if err := r.vectors.UpdateVector(ctx, passageID, vectors[0]); err != nil {
		return fmt.Errorf("ingest: update vector: %w", err)
	}
	return nil
}

// Wait blocks until every in-flight job has finished.
func (r *Runner) Wait() { r.wg.Wait() }
