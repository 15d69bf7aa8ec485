package rag

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/CoachingAI/coaching-mvp/engine/domain"
	"github.com/CoachingAI/coaching-mvp/pkg/openai"
)

func TestBuildPrompt_EmptyRetrievalIncludesDeclinePhrase(t *testing.T) {
	messages := BuildPrompt("what is the meaning of life?", nil, nil)

	found := false
	for _, m := range messages {
		if m.Role == openai.RoleSystem && strings.Contains(m.Content, DeclinePhrase) &&
			strings.Contains(m.Content, "No relevant information was found") {
			found = true
		}
	}
	if !found {
		t.Fatalf("empty retrieval must state no info and carry the decline phrase verbatim")
	}
	last := messages[len(messages)-1]
	if last.Role != openai.RoleUser || last.Content != "what is the meaning of life?" {
		t.Fatalf("final message = %+v, want the question as a user turn", last)
	}
}

func TestBuildPrompt_AlwaysCarriesDeclinePhrase(t *testing.T) {
	passages := []domain.Passage{{ID: "p-1", Text: "squat depth matters"}}
	messages := BuildPrompt("q", passages, nil)

	found := false
	for _, m := range messages {
		if strings.Contains(m.Content, DeclinePhrase) {
			found = true
		}
	}
	if !found {
		t.Fatalf("decline phrase missing from instructions")
	}
}

func TestBuildPrompt_LinkPassagesGetWatchPointer(t *testing.T) {
	passages := []domain.Passage{
		{ID: "p-1", Text: "warm up first", Kind: domain.KindPDF, Location: "/files/guide.pdf"},
		{ID: "p-2", Text: "full session walkthrough", Kind: domain.KindVideoLink, Location: "https://youtu.be/dQw4w9WgXcQ"},
	}
	messages := BuildPrompt("q", passages, nil)

	var refs string
	for _, m := range messages {
		if strings.HasPrefix(m.Content, "References:") {
			refs = m.Content
		}
	}
	if refs == "" {
		t.Fatalf("no reference block in prompt")
	}
	if !strings.Contains(refs, "Watch here: https://youtu.be/dQw4w9WgXcQ") {
		t.Errorf("link passage missing watch pointer:\n%s", refs)
	}
	if strings.Contains(refs, "Watch here: /files/guide.pdf") {
		t.Errorf("non-link passage got a watch pointer:\n%s", refs)
	}
	if strings.Index(refs, "warm up first") > strings.Index(refs, "full session walkthrough") {
		t.Errorf("passages out of retrieval order:\n%s", refs)
	}
}

func TestBuildPrompt_HistoryIsChronologicalBeforeQuestion(t *testing.T) {
	hist := []domain.ChatTurn{
		{Role: domain.RoleUser, Text: "hi"},
		{Role: domain.RoleBot, Text: "hello! how can I help?"},
	}
	messages := BuildPrompt("how do I deadlift?", nil, hist)

	n := len(messages)
	if messages[n-3].Role != openai.RoleUser || messages[n-3].Content != "hi" {
		t.Errorf("message %d = %+v, want prior user turn", n-3, messages[n-3])
	}
	if messages[n-2].Role != openai.RoleAssistant || messages[n-2].Content != "hello! how can I help?" {
		t.Errorf("message %d = %+v, want prior bot turn as assistant", n-2, messages[n-2])
	}
	if messages[n-1].Content != "how do I deadlift?" {
		t.Errorf("question is not the final turn")
	}
}

type stubEmbedder struct {
	vector []float32
	err    error
}

func (s *stubEmbedder) EmbedBatch(_ context.Context, texts []string) ([][]float32, error) {
	if s.err != nil {
		return nil, s.err
	}
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = s.vector
	}
	return out, nil
}

type stubSearcher struct {
	gotVector []float32
	gotK      int
	passages  []domain.Passage
}

func (s *stubSearcher) Search(_ context.Context, embedding []float32, topK int) ([]domain.Passage, error) {
	s.gotVector = embedding
	s.gotK = topK
	return s.passages, nil
}

type stubHistory struct {
	appended []domain.ChatTurn
	recent   []domain.ChatTurn
}

func (s *stubHistory) Append(_ context.Context, turn domain.ChatTurn) error {
	s.appended = append(s.appended, turn)
	return nil
}

func (s *stubHistory) Recent(context.Context, int64, int) ([]domain.ChatTurn, error) {
	return s.recent, nil
}

type stubCompleter struct {
	answer string
	err    error
	calls  int
	seen   []openai.Message
}

func (s *stubCompleter) Complete(_ context.Context, messages []openai.Message) (string, error) {
	s.calls++
	s.seen = messages
	if s.err != nil {
		return "", s.err
	}
	return s.answer, nil
}

func TestRetriever_TopK(t *testing.T) {
	searcher := &stubSearcher{passages: []domain.Passage{{ID: "p-1"}, {ID: "p-2"}}}
	r := NewRetriever(&stubEmbedder{vector: []float32{0.1, 0.2}}, searcher, 0)

	passages, err := r.TopK(context.Background(), "how much protein?")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if searcher.gotK != DefaultTopK {
		t.Errorf("search k = %d, want %d", searcher.gotK, DefaultTopK)
	}
	if len(searcher.gotVector) != 2 {
		t.Errorf("search used wrong vector: %v", searcher.gotVector)
	}
	if len(passages) != 2 {
		t.Errorf("got %d passages, want 2", len(passages))
	}
}

func TestAsk_AppendsQuestionBeforeGeneration(t *testing.T) {
	hist := &stubHistory{}
	completer := &stubCompleter{answer: "bend at the hips"}
	retriever := NewRetriever(&stubEmbedder{vector: []float32{1}},
		&stubSearcher{passages: []domain.Passage{{ID: "p-9", Text: "hinge, don't squat"}}}, 5)
	svc := NewService(retriever, hist, completer, nil)

	user := domain.ChatUser{ID: 11, Username: "lifter", FullName: "Sam"}
	answer, err := svc.Ask(context.Background(), 42, user, "how do I deadlift?")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if answer != "bend at the hips" {
		t.Fatalf("answer = %q", answer)
	}

	if len(hist.appended) != 2 {
		t.Fatalf("appended %d turns, want 2", len(hist.appended))
	}
	if hist.appended[0].Role != domain.RoleUser || hist.appended[0].Text != "how do I deadlift?" {
		t.Errorf("first appended turn = %+v, want the user question", hist.appended[0])
	}
	if len(hist.appended[0].PassageIDs) != 0 {
		t.Errorf("user turn carries passage ids: %v", hist.appended[0].PassageIDs)
	}
	bot := hist.appended[1]
	if bot.Role != domain.RoleBot || bot.Text != "bend at the hips" {
		t.Errorf("second appended turn = %+v, want the bot answer", bot)
	}
	if len(bot.PassageIDs) != 1 || bot.PassageIDs[0] != "p-9" {
		t.Errorf("bot turn passage ids = %v, want [p-9]", bot.PassageIDs)
	}
}

func TestAsk_CompletionFailurePropagates(t *testing.T) {
	hist := &stubHistory{}
	completer := &stubCompleter{err: domain.ErrCompletionService}
	retriever := NewRetriever(&stubEmbedder{vector: []float32{1}}, &stubSearcher{}, 5)
	svc := NewService(retriever, hist, completer, nil)

	_, err := svc.Ask(context.Background(), 42, domain.ChatUser{ID: 11}, "q")
	if !errors.Is(err, domain.ErrCompletionService) {
		t.Fatalf("error = %v, want completion service error", err)
	}
	// The question was still durably recorded before the failure.
	if len(hist.appended) != 1 || hist.appended[0].Role != domain.RoleUser {
		t.Fatalf("appended turns = %+v, want just the user question", hist.appended)
	}
}

func TestAsk_SendsHistoryAndQuestionInOneCall(t *testing.T) {
	hist := &stubHistory{recent: []domain.ChatTurn{{Role: domain.RoleUser, Text: "hi"}}}
	completer := &stubCompleter{answer: "hello"}
	retriever := NewRetriever(&stubEmbedder{vector: []float32{1}}, &stubSearcher{}, 5)
	svc := NewService(retriever, hist, completer, nil)

	if _, err := svc.Ask(context.Background(), 42, domain.ChatUser{ID: 11}, "q"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if completer.calls != 1 {
		t.Fatalf("completer called %d times, want 1", completer.calls)
	}
	var hasPrior bool
	for _, m := range completer.seen {
		if m.Role == openai.RoleUser && m.Content == "hi" {
			hasPrior = true
		}
	}
	if !hasPrior {
		t.Fatalf("prior history turn missing from completion request")
	}
}
