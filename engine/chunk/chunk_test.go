package chunk

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestSplit_Example(t *testing.T) {
	chunks, err := Split("A B C D E F", 3, 1)
	if err != nil {
		t.Fatalf("Split: %v", err)
	}
	want := []string{"A B C", "C D E", "E F"}
	if len(chunks) != len(want) {
		t.Fatalf("got %d chunks %v, want %v", len(chunks), chunks, want)
	}
	for i := range want {
		if chunks[i] != want[i] {
			t.Errorf("chunk %d: got %q, want %q", i, chunks[i], want[i])
		}
	}
}

func TestSplit_WindowInvariants(t *testing.T) {
	tests := []struct {
		n, size, overlap int
	}{
		{1, 300, 50},
		{10, 4, 2},
		{100, 10, 3},
		{299, 300, 50},
		{300, 300, 50},
		{301, 300, 50},
		{1000, 300, 50},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprintf("n=%d_size=%d_overlap=%d", tt.n, tt.size, tt.overlap), func(t *testing.T) {
			words := make([]string, tt.n)
			for i := range words {
				words[i] = fmt.Sprintf("w%d", i)
			}
			chunks, err := Split(strings.Join(words, " "), tt.size, tt.overlap)
			if err != nil {
				t.Fatalf("Split: %v", err)
			}
			if len(chunks) == 0 {
				t.Fatal("expected at least one chunk")
			}
			for i, c := range chunks {
				tokens := strings.Fields(c)
				if len(tokens) > tt.size {
					t.Errorf("chunk %d has %d tokens, max %d", i, len(tokens), tt.size)
				}
				if i > 0 {
					prev := strings.Fields(chunks[i-1])
					tail := prev[len(prev)-tt.overlap:]
					head := tokens[:tt.overlap]
					for j := range tail {
						if tail[j] != head[j] {
							t.Fatalf("chunk %d does not share %d-token overlap with predecessor", i, tt.overlap)
						}
					}
				}
			}
			// Every token appears, in order, across the chunk sequence.
			last := strings.Fields(chunks[len(chunks)-1])
			if last[len(last)-1] != words[len(words)-1] {
				t.Error("final token missing from last chunk")
			}
		})
	}
}

func TestSplit_SuppressesOverlapOnlyTail(t *testing.T) {
	// The second window ends exactly on the last token; a third window
	// would repeat only the overlap, so the walk stops at two chunks.
	chunks, err := Split("A B C D E", 3, 1)
	if err != nil {
		t.Fatalf("Split: %v", err)
	}
	want := []string{"A B C", "C D E"}
	if len(chunks) != len(want) {
		t.Fatalf("got %d chunks %v, want %v", len(chunks), chunks, want)
	}
	for i := range want {
		if chunks[i] != want[i] {
			t.Errorf("chunk %d: got %q, want %q", i, chunks[i], want[i])
		}
	}
}

func TestSplit_RejectsBadConfig(t *testing.T) {
	for _, tt := range []struct{ size, overlap int }{
		{3, 3}, {3, 5}, {0, 0}, {-1, 0}, {5, -1},
	} {
		if _, err := Split("a b c", tt.size, tt.overlap); !errors.Is(err, ErrBadConfig) {
			t.Errorf("size=%d overlap=%d: expected ErrBadConfig, got %v", tt.size, tt.overlap, err)
		}
	}
}

func TestSplit_EmptyText(t *testing.T) {
	chunks, err := Split("   \n\t  ", 300, 50)
	if err != nil {
		t.Fatalf("Split: %v", err)
	}
	if chunks != nil {
		t.Fatalf("expected no chunks for blank text, got %v", chunks)
	}
}

func TestSplit_ShortTextSingleChunk(t *testing.T) {
	chunks, err := Split("one two three", 300, 50)
	if err != nil {
		t.Fatalf("Split: %v", err)
	}
	if len(chunks) != 1 || chunks[0] != "one two three" {
		t.Fatalf("expected single chunk, got %v", chunks)
	}
}
