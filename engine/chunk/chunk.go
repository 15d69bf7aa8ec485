// Package chunk splits extracted text into overlapping, bounded-size
// passages suitable for embedding and retrieval.
package chunk

import (
	"errors"
	"strings"
)

const (
	// DefaultSize is the target number of whitespace tokens per chunk.
	DefaultSize = 300
	// DefaultOverlap is the number of tokens shared between consecutive chunks.
	DefaultOverlap = 50
)

// ErrBadConfig is returned when the window configuration cannot terminate.
var ErrBadConfig = errors.New("chunk: overlap must be non-negative and smaller than size")

// Split builds fixed-size windows of size tokens, advancing the window
// start by size-overlap tokens each step, so consecutive chunks share the
// last overlap tokens of the prior window. The final chunk may be shorter.
// A tail window that would contain only tokens already covered by the
// previous chunk's overlap is intentionally suppressed: once a window
// reaches the last token, the walk stops.
// overlap >= size is rejected eagerly: the advance step would be
// non-positive and the walk would never terminate.
func Split(text string, size, overlap int) ([]string, error) {
	if size <= 0 || overlap < 0 || overlap >= size {
		return nil, ErrBadConfig
	}

	words := strings.Fields(text)
	if len(words) == 0 {
		return nil, nil
	}

	step := size - overlap
	var chunks []string
	for start := 0; start < len(words); start += step {
		end := start + size
		if end > len(words) {
			end = len(words)
		}
		chunks = append(chunks, strings.Join(words[start:end], " "))
		if end == len(words) {
			break
		}
	}
	return chunks, nil
}
