// Package history stores conversation turns in Neo4j and serves the
// recent-window reads the chat flow needs. Turns are append-only; a turn
// is never edited after it is written.
package history

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/CoachingAI/coaching-mvp/engine/domain"
)

// Store is what the chat flow needs from conversation storage.
type Store interface {
	Append(ctx context.Context, turn domain.ChatTurn) error
	// Recent returns the most recent limit turns of a chat, ordered
	// oldest-first so they read chronologically.
	Recent(ctx context.Context, chatID int64, limit int) ([]domain.ChatTurn, error)
}

// result is the minimal interface needed from a neo4j result.
type result interface {
	Next(ctx context.Context) bool
	Record() *neo4j.Record
}

// runner is the minimal interface needed from a neo4j session.
type runner interface {
	Run(ctx context.Context, cypher string, params map[string]any) (result, error)
	Close(ctx context.Context) error
}

// Neo4jStore keeps chat turns as ChatTurn nodes.
type Neo4jStore struct {
	driver     neo4j.DriverWithContext
	newSession func(ctx context.Context) runner // for testing
}

// NewNeo4jStore creates a turn store on an existing driver.
func NewNeo4jStore(driver neo4j.DriverWithContext) *Neo4jStore {
	return &Neo4jStore{driver: driver}
}

var _ Store = (*Neo4jStore)(nil)

type sessionAdapter struct {
	sess neo4j.SessionWithContext
}

func (a *sessionAdapter) Run(ctx context.Context, cypher string, params map[string]any) (result, error) {
	return a.sess.Run(ctx, cypher, params)
}

func (a *sessionAdapter) Close(ctx context.Context) error {
	return a.sess.Close(ctx)
}

func (s *Neo4jStore) session(ctx context.Context) runner {
	if s.newSession != nil {
		return s.newSession(ctx)
	}
	return &sessionAdapter{sess: s.driver.NewSession(ctx, neo4j.SessionConfig{})}
}

// Append writes one turn. Missing id and timestamp are filled in.
func (s *Neo4jStore) Append(ctx context.Context, turn domain.ChatTurn) error {
	if turn.ID == "" {
		turn.ID = uuid.NewString()
	}
	if turn.CreatedAt.IsZero() {
		turn.CreatedAt = time.Now().UTC()
	}

	sess := s.session(ctx)
	defer sess.Close(ctx)

	_, err := sess.Run(ctx, "CREATE (t:ChatTurn $props)", map[string]any{"props": turnProps(turn)})
	if err != nil {
		return fmt.Errorf("history: append turn: %w", err)
	}
	return nil
}

// Recent fetches the newest limit turns and reverses them, so callers get
// the window in chronological order.
func (s *Neo4jStore) Recent(ctx context.Context, chatID int64, limit int) ([]domain.ChatTurn, error) {
	if limit <= 0 {
		limit = 20
	}

	sess := s.session(ctx)
	defer sess.Close(ctx)

	res, err := sess.Run(ctx,
		"MATCH (t:ChatTurn {chat_id: $chat_id}) RETURN t ORDER BY t.created_at DESC LIMIT $limit",
		map[string]any{"chat_id": chatID, "limit": limit})
	if err != nil {
		return nil, fmt.Errorf("history: recent turns: %w", err)
	}

	var turns []domain.ChatTurn
	for res.Next(ctx) {
		turn, err := turnFromRecord(res.Record())
		if err != nil {
			return nil, fmt.Errorf("history: recent turns: %w", err)
		}
		turns = append(turns, turn)
	}
	for i, j := 0, len(turns)-1; i < j; i, j = i+1, j-1 {
		turns[i], turns[j] = turns[j], turns[i]
	}
	return turns, nil
}

// LastAnswered returns the most recent bot turn of the chat and the user
// turn that preceded it. Used when a reviewer flags the latest answer.
func (s *Neo4jStore) LastAnswered(ctx context.Context, chatID int64) (question, answer domain.ChatTurn, err error) {
	sess := s.session(ctx)
	defer sess.Close(ctx)

	res, err := sess.Run(ctx,
		`MATCH (a:ChatTurn {chat_id: $chat_id, role: $bot})
		 WITH a ORDER BY a.created_at DESC LIMIT 1
		 MATCH (q:ChatTurn {chat_id: $chat_id, role: $user})
		 WHERE q.created_at <= a.created_at
		 WITH a, q ORDER BY q.created_at DESC LIMIT 1
		 RETURN q, a`,
		map[string]any{"chat_id": chatID, "bot": string(domain.RoleBot), "user": string(domain.RoleUser)})
	if err != nil {
		return question, answer, fmt.Errorf("history: last answered: %w", err)
	}
	if !res.Next(ctx) {
		return question, answer, fmt.Errorf("history: chat %d: %w", chatID, domain.ErrNotFound)
	}

	rec := res.Record()
	if question, err = turnFromValue(rec.Values[0]); err != nil {
		return question, answer, fmt.Errorf("history: last answered: %w", err)
	}
	if answer, err = turnFromValue(rec.Values[1]); err != nil {
		return question, answer, fmt.Errorf("history: last answered: %w", err)
	}
	return question, answer, nil
}

func turnProps(t domain.ChatTurn) map[string]any {
	ids := make([]any, len(t.PassageIDs))
	for i, id := range t.PassageIDs {
		ids[i] = id
	}
	return map[string]any{
		"id":          t.ID,
		"chat_id":     t.ChatID,
		"user_id":     t.UserID,
		"username":    t.Username,
		"fullname":    t.FullName,
		"role":        string(t.Role),
		"text":        t.Text,
		"passage_ids": ids,
		"created_at":  t.CreatedAt,
	}
}

func turnFromRecord(rec *neo4j.Record) (domain.ChatTurn, error) {
	if len(rec.Values) == 0 {
		return domain.ChatTurn{}, fmt.Errorf("empty record")
	}
	return turnFromValue(rec.Values[0])
}

func turnFromValue(v any) (domain.ChatTurn, error) {
	node, ok := v.(neo4j.Node)
	if !ok {
		return domain.ChatTurn{}, fmt.Errorf("unexpected record value %T", v)
	}
	props := node.Props
	return domain.ChatTurn{
		ID:         asString(props["id"]),
		ChatID:     asInt64(props["chat_id"]),
		UserID:     asInt64(props["user_id"]),
		Username:   asString(props["username"]),
		FullName:   asString(props["fullname"]),
		Role:       domain.Role(asString(props["role"])),
		Text:       asString(props["text"]),
		PassageIDs: asStrings(props["passage_ids"]),
		CreatedAt:  asTime(props["created_at"]),
	}, nil
}

func asString(v any) string {
	s, _ := v.(string)
	return s
}

func asInt64(v any) int64 {
	switch n := v.(type) {
	case int64:
		return n
	case int:
		return int64(n)
	case float64:
		return int64(n)
	}
	return 0
}

func asStrings(v any) []string {
	raw, ok := v.([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(raw))
	for _, item := range raw {
		if s, ok := item.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

func asTime(v any) time.Time {
	t, _ := v.(time.Time)
	return t
}
