// Package ingest turns source objects into embedded passages. The flow is
// download -> extract -> chunk -> embed -> persist, composed from fn stages
// so each step carries tracing and fails with a StageError naming where it
// broke. Jobs run fire-and-forget through a Runner that records a terminal
// status and invokes the submitter's callback exactly once.
package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/CoachingAI/coaching-mvp/engine/chunk"
	"github.com/CoachingAI/coaching-mvp/engine/domain"
	"github.com/CoachingAI/coaching-mvp/engine/extract"
	"github.com/CoachingAI/coaching-mvp/pkg/fn"
)

// PassageID derives the stable id of a source's i-th passage. Re-ingesting
// the same source overwrites its passages instead of duplicating them.
func PassageID(sourceID string, index int) string {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte(fmt.Sprintf("%s-%d", sourceID, index))).String()
}

// Deps are the collaborators the pipeline and runner need.
type Deps struct {
	Downloader Downloader
	Extractors *extract.Registry
	Embedder   Embedder
	Passages   PassageWriter
	Status     StatusStore
	Logger     *slog.Logger
	Opts       Options
}

func (d *Deps) logger() *slog.Logger {
	if d.Logger != nil {
		return d.Logger
	}
	return slog.Default()
}

// newPipeline composes the ingestion stages for one source object.
func newPipeline(d Deps) fn.Stage[domain.SourceObject, []domain.Passage] {
	download := fn.TracedStage("ingest.download", stageDownload(d.Downloader))
	extractS := fn.TracedStage("ingest.extract", stageExtract(d.Extractors))
	chunkS := fn.TracedStage("ingest.chunk", stageChunk(d.Opts))
	logChunks := fn.TapStage(func(_ context.Context, doc chunkedDoc) {
		d.logger().Debug("ingest: chunked source", "source_id", doc.src.ID, "chunks", len(doc.chunks))
	})
	embed := fn.TracedStage("ingest.embed", stageEmbed(d.Embedder))
	persist := fn.TracedStage("ingest.persist", stagePersist(d.Passages))

	return fn.Then(fn.Then(fn.Then(fn.Then(fn.Then(download, extractS), chunkS), logChunks), embed), persist)
}

// stageDownload fetches the source bytes. Video links carry their content
// by reference, so they pass through with no data.
func stageDownload(dl Downloader) fn.Stage[domain.SourceObject, payload] {
	return func(ctx context.Context, src domain.SourceObject) fn.Result[payload] {
		if err := domain.ValidateSource(src); err != nil {
			return fn.Err[payload](domain.NewStageError("download", src.ID, err))
		}
		if src.Kind == domain.KindVideoLink {
			return fn.Ok(payload{src: src})
		}
		data, err := dl.Download(ctx, src.StoragePath)
		if err != nil {
			return fn.Err[payload](domain.NewStageError("download", src.ID, err))
		}
		return fn.Ok(payload{src: src, data: data})
	}
}

func stageExtract(reg *extract.Registry) fn.Stage[payload, extractedDoc] {
	return func(ctx context.Context, p payload) fn.Result[extractedDoc] {
		text, err := reg.Extract(ctx, p.src, p.data)
		if err != nil {
			return fn.Err[extractedDoc](domain.NewStageError("extract", p.src.ID, err))
		}
		return fn.Ok(extractedDoc{src: p.src, text: text})
	}
}

func stageChunk(opts Options) fn.Stage[extractedDoc, chunkedDoc] {
	return func(_ context.Context, doc extractedDoc) fn.Result[chunkedDoc] {
		if strings.TrimSpace(doc.text) == "" {
			if opts.EmptyText == FailOnEmpty {
				err := fmt.Errorf("no text extracted: %w", domain.ErrExtractionFailure)
				return fn.Err[chunkedDoc](domain.NewStageError("chunk", doc.src.ID, err))
			}
			return fn.Ok(chunkedDoc{src: doc.src})
		}
		chunks, err := chunk.Split(doc.text, opts.ChunkSize, opts.ChunkOverlap)
		if err != nil {
			return fn.Err[chunkedDoc](domain.NewStageError("chunk", doc.src.ID, err))
		}
		return fn.Ok(chunkedDoc{src: doc.src, chunks: chunks})
	}
}

func stageEmbed(embedder Embedder) fn.Stage[chunkedDoc, embeddedDoc] {
	return func(ctx context.Context, doc chunkedDoc) fn.Result[embeddedDoc] {
		if len(doc.chunks) == 0 {
			return fn.Ok(embeddedDoc{src: doc.src})
		}
		vectors, err := embedder.EmbedBatch(ctx, doc.chunks)
		if err != nil {
			return fn.Err[embeddedDoc](domain.NewStageError("embed", doc.src.ID, err))
		}
		if len(vectors) != len(doc.chunks) {
			err := fmt.Errorf("got %d vectors for %d chunks: %w",
				len(vectors), len(doc.chunks), domain.ErrEmbeddingService)
			return fn.Err[embeddedDoc](domain.NewStageError("embed", doc.src.ID, err))
		}
		return fn.Ok(embeddedDoc{src: doc.src, chunks: doc.chunks, vectors: vectors})
	}
}

// stagePersist writes all passages of the source as a single batch, so a
// storage failure leaves either every passage or none of them behind.
func stagePersist(store PassageWriter) fn.Stage[embeddedDoc, []domain.Passage] {
	return func(ctx context.Context, doc embeddedDoc) fn.Result[[]domain.Passage] {
		if len(doc.chunks) == 0 {
			return fn.Ok[[]domain.Passage](nil)
		}
		passages := make([]domain.Passage, len(doc.chunks))
		for i, text := range doc.chunks {
			passages[i] = domain.Passage{
				ID:         PassageID(doc.src.ID, i),
				SourceID:   doc.src.ID,
				ChunkIndex: i,
				Text:       text,
				Embedding:  doc.vectors[i],
				UserID:     doc.src.UserID,
				Kind:       doc.src.Kind,
				Location:   doc.src.Location,
				Name:       doc.src.Name,
			}
		}
		if err := store.UpsertPassages(ctx, passages); err != nil {
			return fn.Err[[]domain.Passage](domain.NewStageError("persist", doc.src.ID, err))
		}
		return fn.Ok(passages)
	}
}
