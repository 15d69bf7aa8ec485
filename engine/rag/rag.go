package rag

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/CoachingAI/coaching-mvp/engine/domain"
	"github.com/CoachingAI/coaching-mvp/engine/history"
	"github.com/CoachingAI/coaching-mvp/pkg/openai"
)

const (
	// DefaultTopK is how many passages a question retrieves.
	DefaultTopK = 5
	// DefaultHistoryLimit bounds the conversation window sent with each
	// question.
	DefaultHistoryLimit = 20
)

// Embedder embeds question text. Must be the same model that embedded the
// stored passages, or similarity scores are meaningless.
type Embedder interface {
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
}

// Searcher is similarity search over stored passages.
type Searcher interface {
	Search(ctx context.Context, embedding []float32, topK int) ([]domain.Passage, error)
}

// Completer generates the final answer from an assembled prompt.
type Completer interface {
	Complete(ctx context.Context, messages []openai.Message) (string, error)
}

// Retriever finds the passages most similar to a question.
type Retriever struct {
	embedder Embedder
	store    Searcher
	k        int
}

// NewRetriever builds a retriever. k <= 0 selects DefaultTopK.
func NewRetriever(embedder Embedder, store Searcher, k int) *Retriever {
	if k <= 0 {
		k = DefaultTopK
	}
	return &Retriever{embedder: embedder, store: store, k: k}
}

// TopK embeds the question and returns up to k passages, most similar
// first. No minimum-similarity cutoff is applied here; weak results are
// the prompt assembler's problem.
func (r *Retriever) TopK(ctx context.Context, question string) ([]domain.Passage, error) {
	vectors, err := r.embedder.EmbedBatch(ctx, []string{question})
	if err != nil {
		return nil, fmt.Errorf("rag: embed question: %w", err)
	}
	if len(vectors) != 1 {
		return nil, fmt.Errorf("rag: got %d vectors for one question: %w",
			len(vectors), domain.ErrEmbeddingService)
	}
	passages, err := r.store.Search(ctx, vectors[0], r.k)
	if err != nil {
		return nil, fmt.Errorf("rag: search passages: %w", err)
	}
	return passages, nil
}

// Service runs one chat exchange end to end.
type Service struct {
	retriever    *Retriever
	turns        history.Store
	completer    Completer
	historyLimit int
	logger       *slog.Logger
}

// NewService wires the chat flow. logger may be nil.
func NewService(retriever *Retriever, turns history.Store, completer Completer, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		retriever:    retriever,
		turns:        turns,
		completer:    completer,
		historyLimit: DefaultHistoryLimit,
		logger:       logger,
	}
}

// Ask answers one question in a chat. The user turn is appended before
// generation starts, so a concurrent history reader never sees an answer
// without its question; the bot turn follows after generation, tagged with
// the passages that were in its reference block.
func (s *Service) Ask(ctx context.Context, chatID int64, user domain.ChatUser, question string) (string, error) {
	passages, err := s.retriever.TopK(ctx, question)
	if err != nil {
		return "", err
	}

	recent, err := s.turns.Recent(ctx, chatID, s.historyLimit)
	if err != nil {
		return "", fmt.Errorf("rag: load history: %w", err)
	}

	if err := s.turns.Append(ctx, domain.ChatTurn{
		ChatID:   chatID,
		UserID:   user.ID,
		Username: user.Username,
		FullName: user.FullName,
		Role:     domain.RoleUser,
		Text:     question,
	}); err != nil {
		return "", fmt.Errorf("rag: append question: %w", err)
	}

	answer, err := s.completer.Complete(ctx, BuildPrompt(question, passages, recent))
	if err != nil {
		return "", err
	}

	passageIDs := make([]string, len(passages))
	for i, p := range passages {
		passageIDs[i] = p.ID
	}
	if err := s.turns.Append(ctx, domain.ChatTurn{
		ChatID:     chatID,
		UserID:     user.ID,
		Username:   user.Username,
		FullName:   user.FullName,
		Role:       domain.RoleBot,
		Text:       answer,
		PassageIDs: passageIDs,
	}); err != nil {
		// The answer exists; losing the record is bad but losing the
		// reply is worse.
		s.logger.Error("failed to record bot turn", "chat_id", chatID, "error", err)
	}

	return answer, nil
}
