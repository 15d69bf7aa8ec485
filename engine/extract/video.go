package extract

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/CoachingAI/coaching-mvp/engine/domain"
)

// youtubeURL matches the common YouTube URL shapes.
var youtubeURL = regexp.MustCompile(
	`^(https?://)?(www\.)?(youtube|youtu|youtube-nocookie)\.(com|be)/(watch\?v=|embed/|v/|shorts/)?([A-Za-z0-9_-]{11})`)

// videoIDPattern extracts the 11-character video identifier.
var videoIDPattern = regexp.MustCompile(
	`(?:v=|/embed/|/shorts/|/watch\?v=|youtu\.be/|/v/)([A-Za-z0-9_-]{11})`)

// IsVideoURL reports whether the location points at a supported video host.
func IsVideoURL(location string) bool {
	return youtubeURL.MatchString(location)
}

// VideoID extracts the 11-character video identifier from a URL, or ""
// when none is present.
func VideoID(location string) string {
	m := videoIDPattern.FindStringSubmatch(location)
	if m == nil {
		return ""
	}
	return m[1]
}

// Segment is one timed piece of a video transcript.
type Segment struct {
	StartMS int
	DurMS   int
	Text    string
}

// TranscriptFetcher loads a video's transcript as ordered timed segments.
type TranscriptFetcher interface {
	Fetch(ctx context.Context, videoID string) ([]Segment, error)
}

// Video extracts text from video links by fetching the transcript and
// concatenating its segments in temporal order.
type Video struct {
	Transcripts TranscriptFetcher
}

// Extract implements Extractor. Only known video-hosting URLs are accepted.
func (v *Video) Extract(ctx context.Context, src domain.SourceObject, _ []byte) (string, error) {
	if !IsVideoURL(src.Location) {
		return "", fmt.Errorf("extract: link %q: %w", src.Location, domain.ErrUnsupportedSource)
	}
	id := VideoID(src.Location)
	if id == "" {
		return "", fmt.Errorf("extract: link %q: no video id: %w", src.Location, domain.ErrUnsupportedSource)
	}

	segments, err := v.Transcripts.Fetch(ctx, id)
	if err != nil {
		return "", fmt.Errorf("extract: transcript %s: %w: %w", id, domain.ErrExtractionFailure, err)
	}

	parts := make([]string, 0, len(segments))
	for _, s := range segments {
		if s.Text != "" {
			parts = append(parts, s.Text)
		}
	}
	return strings.Join(parts, " "), nil
}
