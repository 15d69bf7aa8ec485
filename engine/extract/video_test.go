package extract

import (
	"context"
	"errors"
	"testing"

	"github.com/CoachingAI/coaching-mvp/engine/domain"
)

func TestIsVideoURL(t *testing.T) {
	tests := []struct {
		url  string
		want bool
	}{
		{"https://www.youtube.com/watch?v=dQw4w9WgXcQ", true},
		{"http://youtube.com/watch?v=dQw4w9WgXcQ", true},
		{"https://youtu.be/dQw4w9WgXcQ", true},
		{"https://www.youtube.com/embed/dQw4w9WgXcQ", true},
		{"https://www.youtube.com/shorts/dQw4w9WgXcQ", true},
		{"https://www.youtube-nocookie.com/embed/dQw4w9WgXcQ", true},
		{"https://vimeo.com/12345", false},
		{"https://example.com/watch?v=dQw4w9WgXcQ", false},
		{"not a url", false},
	}
	for _, tt := range tests {
		if got := IsVideoURL(tt.url); got != tt.want {
			t.Errorf("IsVideoURL(%q) = %v, want %v", tt.url, got, tt.want)
		}
	}
}

func TestVideoID(t *testing.T) {
	tests := []struct {
		url  string
		want string
	}{
		{"https://www.youtube.com/watch?v=dQw4w9WgXcQ", "dQw4w9WgXcQ"},
		{"https://youtu.be/AbCdEfGhIjK", "AbCdEfGhIjK"},
		{"https://www.youtube.com/embed/1234567890_", "1234567890_"},
		{"https://www.youtube.com/shorts/a-b_c-d_e-f", "a-b_c-d_e-f"},
		{"https://example.com/page", ""},
	}
	for _, tt := range tests {
		if got := VideoID(tt.url); got != tt.want {
			t.Errorf("VideoID(%q) = %q, want %q", tt.url, got, tt.want)
		}
	}
}

type fakeTranscripts struct {
	segments []Segment
	err      error
	gotID    string
}

func (f *fakeTranscripts) Fetch(_ context.Context, videoID string) ([]Segment, error) {
	f.gotID = videoID
	return f.segments, f.err
}

func TestVideo_Extract(t *testing.T) {
	ft := &fakeTranscripts{segments: []Segment{
		{StartMS: 0, Text: "welcome to"},
		{StartMS: 1500, Text: "the session"},
	}}
	v := &Video{Transcripts: ft}

	text, err := v.Extract(context.Background(), domain.SourceObject{
		Kind:     domain.KindVideoLink,
		Location: "https://youtu.be/dQw4w9WgXcQ",
	}, nil)
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if text != "welcome to the session" {
		t.Fatalf("unexpected text %q", text)
	}
	if ft.gotID != "dQw4w9WgXcQ" {
		t.Fatalf("fetched wrong id %q", ft.gotID)
	}
}

func TestVideo_RejectsNonVideoLink(t *testing.T) {
	v := &Video{Transcripts: &fakeTranscripts{}}
	_, err := v.Extract(context.Background(), domain.SourceObject{
		Kind:     domain.KindVideoLink,
		Location: "https://example.com/blog",
	}, nil)
	if !errors.Is(err, domain.ErrUnsupportedSource) {
		t.Fatalf("expected ErrUnsupportedSource, got %v", err)
	}
}

func TestVideo_TranscriptFailure(t *testing.T) {
	v := &Video{Transcripts: &fakeTranscripts{err: errors.New("no captions")}}
	_, err := v.Extract(context.Background(), domain.SourceObject{
		Kind:     domain.KindVideoLink,
		Location: "https://youtu.be/dQw4w9WgXcQ",
	}, nil)
	if !errors.Is(err, domain.ErrExtractionFailure) {
		t.Fatalf("expected ErrExtractionFailure, got %v", err)
	}
}
