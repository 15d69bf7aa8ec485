package openai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/CoachingAI/coaching-mvp/engine/domain"
)

func embedServer(t *testing.T, handler http.HandlerFunc) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return srv
}

func TestEmbedBatch_PreservesOrderAndLength(t *testing.T) {
	srv := embedServer(t, func(w http.ResponseWriter, r *http.Request) {
		var req embedRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		// Answer out of order on purpose; the client must reorder by index.
		fmt.Fprintf(w, `{"data":[{"index":1,"embedding":[2]},{"index":0,"embedding":[1]},{"index":2,"embedding":[3]}]}`)
	})

	c := NewEmbedClient(srv.URL, "key", "")
	vecs, err := c.EmbedBatch(context.Background(), []string{"a", "b", "c"})
	if err != nil {
		t.Fatalf("EmbedBatch: %v", err)
	}
	if len(vecs) != 3 {
		t.Fatalf("expected 3 vectors, got %d", len(vecs))
	}
	for i, want := range []float32{1, 2, 3} {
		if vecs[i][0] != want {
			t.Errorf("vector %d: got %v, want [%g]", i, vecs[i], want)
		}
	}
}

func TestEmbedBatch_EmptyInput(t *testing.T) {
	c := NewEmbedClient("http://unused", "key", "")
	vecs, err := c.EmbedBatch(context.Background(), nil)
	if err != nil || vecs != nil {
		t.Fatalf("empty input should be a no-op, got %v %v", vecs, err)
	}
}

func TestEmbedBatch_ServerErrorFailsWholeBatch(t *testing.T) {
	srv := embedServer(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})
	c := NewEmbedClient(srv.URL, "key", "")
	_, err := c.EmbedBatch(context.Background(), []string{"a", "b"})
	if !errors.Is(err, domain.ErrEmbeddingService) {
		t.Fatalf("expected ErrEmbeddingService, got %v", err)
	}
}

func TestEmbedBatch_LengthMismatch(t *testing.T) {
	srv := embedServer(t, func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, `{"data":[{"index":0,"embedding":[1]}]}`)
	})
	c := NewEmbedClient(srv.URL, "key", "")
	_, err := c.EmbedBatch(context.Background(), []string{"a", "b"})
	if !errors.Is(err, domain.ErrEmbeddingService) {
		t.Fatalf("expected ErrEmbeddingService, got %v", err)
	}
}

func TestComplete_ReturnsReply(t *testing.T) {
	srv := embedServer(t, func(w http.ResponseWriter, r *http.Request) {
		var req chatRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		if len(req.Messages) == 0 {
			t.Fatal("expected messages")
		}
		fmt.Fprint(w, `{"choices":[{"message":{"role":"assistant","content":"hello there"}}]}`)
	})

	c := NewChatClient(srv.URL, "key", "")
	reply, err := c.Complete(context.Background(), []Message{{Role: RoleUser, Content: "hi"}})
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if reply != "hello there" {
		t.Fatalf("unexpected reply %q", reply)
	}
}

func TestComplete_ServiceError(t *testing.T) {
	srv := embedServer(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})
	c := NewChatClient(srv.URL, "key", "")
	_, err := c.Complete(context.Background(), []Message{{Role: RoleUser, Content: "hi"}})
	if !errors.Is(err, domain.ErrCompletionService) {
		t.Fatalf("expected ErrCompletionService, got %v", err)
	}
}
