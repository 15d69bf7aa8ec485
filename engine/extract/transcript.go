package extract

import (
	"bytes"
	"context"
	"encoding/json"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/CoachingAI/coaching-mvp/pkg/fn"
)

// captionRetry covers transient innertube failures; caption fetches are
// cheap and the job behind them only runs once.
var captionRetry = fn.RetryOpts{
	MaxAttempts: 3,
	InitialWait: 500 * time.Millisecond,
	MaxWait:     5 * time.Second,
	Jitter:      true,
}

const innertubeUserAgent = "com.google.android.youtube/19.09.37 (Linux; U; Android 11) gzip"

// timedText is the YouTube timedtext XML response (srv3 format).
type timedText struct {
	XMLName xml.Name `xml:"timedtext"`
	Body    ttBody   `xml:"body"`
}

type ttBody struct {
	Paragraphs []ttParagraph `xml:"p"`
}

type ttParagraph struct {
	Start int    `xml:"t,attr"`
	Dur   int    `xml:"d,attr"`
	Text  string `xml:",chardata"`
}

// legacyTimedText is the older transcript XML format.
type legacyTimedText struct {
	XMLName xml.Name      `xml:"transcript"`
	Texts   []legacyEntry `xml:"text"`
}

type legacyEntry struct {
	Start string `xml:"start,attr"`
	Dur   string `xml:"dur,attr"`
	Text  string `xml:",chardata"`
}

var bracketNoise = regexp.MustCompile(`\[(?:Music|Applause|Laughter|Cheering|Inaudible)\]`)
var multiSpace = regexp.MustCompile(`\s+`)

// captionTrack from the innertube player response.
type captionTrack struct {
	BaseURL string `json:"baseUrl"`
	Lang    string `json:"languageCode"`
	Kind    string `json:"kind"`
}

// TranscriptClient fetches video transcripts through the innertube API.
type TranscriptClient struct {
	client  *http.Client
	limiter *rate.Limiter
}

// NewTranscriptClient creates a rate-limited transcript client.
func NewTranscriptClient(client *http.Client) *TranscriptClient {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	return &TranscriptClient{
		client:  client,
		limiter: rate.NewLimiter(rate.Every(200*time.Millisecond), 5),
	}
}

// Fetch implements TranscriptFetcher. Segments come back ordered by start
// time. Manual English captions are preferred over ASR, ASR over anything.
func (c *TranscriptClient) Fetch(ctx context.Context, videoID string) ([]Segment, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	tracks, err := fn.Retry(ctx, captionRetry, func(ctx context.Context) fn.Result[[]captionTrack] {
		return fn.FromPair(c.fetchCaptionTracks(ctx, videoID))
	}).Unwrap()
	if err != nil {
		return nil, fmt.Errorf("no transcript available for video %s: %w", videoID, err)
	}

	var urls []string
	for _, t := range tracks {
		if t.Lang == "en" && t.Kind != "asr" {
			urls = append([]string{t.BaseURL + "&fmt=srv3"}, urls...)
		} else if t.Lang == "en" {
			urls = append(urls, t.BaseURL+"&fmt=srv3")
		}
	}
	if len(urls) == 0 {
		for _, t := range tracks {
			urls = append(urls, t.BaseURL+"&fmt=srv3")
		}
	}

	for _, u := range urls {
		segments, err := c.fetchSegments(ctx, u)
		if err == nil && len(segments) > 0 {
			sort.SliceStable(segments, func(i, j int) bool { return segments[i].StartMS < segments[j].StartMS })
			return segments, nil
		}
	}
	return nil, fmt.Errorf("no transcript available for video %s", videoID)
}

// fetchCaptionTracks uses the YouTube innertube API (ANDROID client) to get
// caption track URLs.
func (c *TranscriptClient) fetchCaptionTracks(ctx context.Context, videoID string) ([]captionTrack, error) {
	payload := map[string]any{
		"context": map[string]any{
			"client": map[string]any{
				"clientName":        "ANDROID",
				"clientVersion":     "19.09.37",
				"androidSdkVersion": 30,
				"hl":                "en",
				"gl":                "US",
			},
		},
		"videoId":        videoID,
		"contentCheckOk": true,
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		"https://www.youtube.com/youtubei/v1/player?prettyPrint=false",
		bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", innertubeUserAgent)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	var result struct {
		Captions struct {
			PlayerCaptionsTracklistRenderer struct {
				CaptionTracks []captionTrack `json:"captionTracks"`
			} `json:"playerCaptionsTracklistRenderer"`
		} `json:"captions"`
	}
	if err := json.Unmarshal(respBody, &result); err != nil {
		return nil, fmt.Errorf("decode player response: %w", err)
	}

	tracks := result.Captions.PlayerCaptionsTracklistRenderer.CaptionTracks
	if len(tracks) == 0 {
		return nil, fmt.Errorf("no caption tracks in player response")
	}
	return tracks, nil
}

func (c *TranscriptClient) fetchSegments(ctx context.Context, u string) ([]Segment, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", innertubeUserAgent)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK || len(body) < 50 {
		return nil, fmt.Errorf("bad response: status=%d len=%d", resp.StatusCode, len(body))
	}
	return parseSegments(body)
}

// parseSegments accepts either srv3 (<timedtext>) or legacy (<transcript>)
// caption XML.
func parseSegments(body []byte) ([]Segment, error) {
	var tt timedText
	if err := xml.Unmarshal(body, &tt); err == nil && len(tt.Body.Paragraphs) > 0 {
		segments := make([]Segment, 0, len(tt.Body.Paragraphs))
		for _, p := range tt.Body.Paragraphs {
			if text := cleanCaption(p.Text); text != "" {
				segments = append(segments, Segment{StartMS: p.Start, DurMS: p.Dur, Text: text})
			}
		}
		return segments, nil
	}

	var legacy legacyTimedText
	if err := xml.Unmarshal(body, &legacy); err == nil && len(legacy.Texts) > 0 {
		segments := make([]Segment, 0, len(legacy.Texts))
		for _, e := range legacy.Texts {
			start, _ := strconv.ParseFloat(e.Start, 64)
			dur, _ := strconv.ParseFloat(e.Dur, 64)
			if text := cleanCaption(e.Text); text != "" {
				segments = append(segments, Segment{
					StartMS: int(start * 1000),
					DurMS:   int(dur * 1000),
					Text:    text,
				})
			}
		}
		return segments, nil
	}

	return nil, fmt.Errorf("no text entries in transcript")
}

// cleanCaption removes bracket noise, unescapes entities, collapses
// whitespace, and trims.
func cleanCaption(text string) string {
	text = bracketNoise.ReplaceAllString(text, "")
	text = strings.ReplaceAll(text, "&#39;", "'")
	text = strings.ReplaceAll(text, "&amp;", "&")
	text = strings.ReplaceAll(text, "&quot;", `"`)
	text = strings.ReplaceAll(text, "&lt;", "<")
	text = strings.ReplaceAll(text, "&gt;", ">")
	text = multiSpace.ReplaceAllString(text, " ")
	return strings.TrimSpace(text)
}
