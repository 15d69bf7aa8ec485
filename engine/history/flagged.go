package history

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/CoachingAI/coaching-mvp/engine/domain"
	"github.com/CoachingAI/coaching-mvp/pkg/repo"
)

// NewFlaggedRepo returns a FlaggedAnswer repository over Neo4j.
func NewFlaggedRepo(driver neo4j.DriverWithContext) *repo.Neo4jRepo[domain.FlaggedAnswer, string] {
	return repo.NewNeo4jRepo[domain.FlaggedAnswer, string](driver, "FlaggedAnswer", flaggedProps, flaggedFromRecord)
}

func flaggedProps(f domain.FlaggedAnswer) map[string]any {
	ids := make([]any, len(f.PassageIDs))
	for i, id := range f.PassageIDs {
		ids[i] = id
	}
	return map[string]any{
		"id":          f.ID,
		"question":    f.Question,
		"answer":      f.Answer,
		"passage_ids": ids,
		"created_at":  f.CreatedAt,
	}
}

func flaggedFromRecord(rec *neo4j.Record) (domain.FlaggedAnswer, error) {
	if len(rec.Values) == 0 {
		return domain.FlaggedAnswer{}, fmt.Errorf("empty record")
	}
	node, ok := rec.Values[0].(neo4j.Node)
	if !ok {
		return domain.FlaggedAnswer{}, fmt.Errorf("unexpected record value %T", rec.Values[0])
	}
	props := node.Props
	return domain.FlaggedAnswer{
		ID:         asString(props["id"]),
		Question:   asString(props["question"]),
		Answer:     asString(props["answer"]),
		PassageIDs: asStrings(props["passage_ids"]),
		CreatedAt:  asTime(props["created_at"]),
	}, nil
}

// Flagger pairs the latest bot answer of a chat with its question and
// records the pair for offline review.
type Flagger struct {
	turns   *Neo4jStore
	flagged repo.Repository[domain.FlaggedAnswer, string]
}

// NewFlagger creates a flagger over the same driver used for turns.
func NewFlagger(driver neo4j.DriverWithContext) *Flagger {
	return &Flagger{
		turns:   NewNeo4jStore(driver),
		flagged: NewFlaggedRepo(driver),
	}
}

// FlagLast flags the most recent answered exchange of chatID.
func (f *Flagger) FlagLast(ctx context.Context, chatID int64) (domain.FlaggedAnswer, error) {
	question, answer, err := f.turns.LastAnswered(ctx, chatID)
	if err != nil {
		return domain.FlaggedAnswer{}, err
	}
	return f.flagged.Create(ctx, domain.FlaggedAnswer{
		ID:         uuid.NewString(),
		Question:   question.Text,
		Answer:     answer.Text,
		PassageIDs: answer.PassageIDs,
		CreatedAt:  time.Now().UTC(),
	})
}
