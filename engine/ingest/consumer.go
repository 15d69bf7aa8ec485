package ingest

import (
	"context"
	"log/slog"

	"github.com/nats-io/nats.go"

	"github.com/CoachingAI/coaching-mvp/engine/domain"
	"github.com/CoachingAI/coaching-mvp/pkg/natsutil"
)

// NATS subjects for ingestion work.
const (
	SubjectSource  = "coach.ingest.source"
	SubjectReembed = "coach.ingest.reembed"
)

// SourceJob asks for one source object to be ingested.
type SourceJob struct {
	Source domain.SourceObject `json:"source"`
}

// ReembedJob asks for one stored passage to be re-embedded.
type ReembedJob struct {
	PassageID string `json:"passage_id"`
}

// StartConsumer subscribes the runner to the ingestion subjects. Delivery
// is at-most-once: a job that fails is recorded as failed and not retried.
func StartConsumer(nc *nats.Conn, r *Runner, logger *slog.Logger) ([]*nats.Subscription, error) {
	if logger == nil {
		logger = slog.Default()
	}

	srcSub, err := natsutil.Subscribe(nc, SubjectSource, func(ctx context.Context, job SourceJob) {
		logger.Info("ingest job received", "source_id", job.Source.ID, "kind", job.Source.Kind)
		r.Submit(job.Source, func(sourceID string, kind domain.SourceKind, err error) {
			if err != nil {
				logger.Error("ingest job failed", "source_id", sourceID, "kind", kind, "error", err)
				return
			}
			logger.Info("ingest job done", "source_id", sourceID, "kind", kind)
		})
	})
	if err != nil {
		return nil, err
	}

	reSub, err := natsutil.Subscribe(nc, SubjectReembed, func(ctx context.Context, job ReembedJob) {
		logger.Info("re-embed job received", "passage_id", job.PassageID)
		r.SubmitReembed(job.PassageID, nil)
	})
	if err != nil {
		srcSub.Unsubscribe()
		return nil, err
	}

	return []*nats.Subscription{srcSub, reSub}, nil
}
