package youtube

import (
	"context"
	"encoding/json"
	"encoding/xml"
	"errors"
	"fmt"
	"html"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"github.com/kirillkom/context-assistant/internal/core/domain"
	"github.com/kirillkom/context-assistant/internal/infrastructure/resilience"
)

const (
	DefaultBaseURL = "https://www.youtube.com"

	captionTracksMarker = `"captionTracks":`
	maxWatchPageBytes   = 16 << 20
	autoGeneratedKind   = "asr"
)

var (
	ErrTranscriptsDisabled = errors.New("transcripts are disabled for this video")
	ErrNoTranscript        = errors.New("no transcript found")
	ErrMalformedCaptions   = errors.New("malformed caption data")
)

var formattingTags = regexp.MustCompile(`<[^>]*>`)

type captionTrack struct {
	BaseURL      string `json:"baseUrl"`
	LanguageCode string `json:"languageCode"`
	Kind         string `json:"kind"`
}

type timedText struct {
	Texts []struct {
		Start    string `xml:"start,attr"`
		Duration string `xml:"dur,attr"`
		Body     string `xml:",chardata"`
	} `xml:"text"`
}

// Client reads manually created captions from the public watch page. Auto-generated
// tracks are never used.
type Client struct {
	baseURL   *url.URL
	client    *http.Client
	userAgent string
	executor  *resilience.Executor
}

func NewClient(baseURL string, client *http.Client, userAgent string, executor *resilience.Executor) (*Client, error) {
	if strings.TrimSpace(baseURL) == "" {
		baseURL = DefaultBaseURL
	}
	parsed, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse youtube base url: %w", err)
	}
	if client == nil {
		client = http.DefaultClient
	}
	return &Client{
		baseURL:   parsed,
		client:    client,
		userAgent: userAgent,
		executor:  executor,
	}, nil
}

func (c *Client) FetchTranscript(ctx context.Context, videoID string, languages []string) ([]domain.CaptionFragment, error) {
	fragments, err := resilience.Call(ctx, c.executor, "transcript.fetch", func(callCtx context.Context) ([]domain.CaptionFragment, error) {
		return c.fetch(callCtx, videoID, languages)
	}, classifyTranscriptError)
	if err != nil {
		return nil, resilience.WrapTemporary("fetch transcript", err, classifyTranscriptError)
	}
	return fragments, nil
}

// classifyTranscriptError keeps per-video outcomes (no captions in the wanted languages,
// captions disabled, unreadable caption data) away from the breaker every session shares.
func classifyTranscriptError(err error) resilience.ErrorClassification {
	if errors.Is(err, ErrNoTranscript) || errors.Is(err, ErrTranscriptsDisabled) || errors.Is(err, ErrMalformedCaptions) {
		return resilience.Rejected
	}
	return resilience.ClassifyHTTP(err)
}

func (c *Client) fetch(ctx context.Context, videoID string, languages []string) ([]domain.CaptionFragment, error) {
	watchURL := c.baseURL.JoinPath("watch")
	watchURL.RawQuery = url.Values{"v": {videoID}}.Encode()

	page, err := c.get(ctx, "watch", watchURL.String(), languages)
	if err != nil {
		return nil, err
	}
	tracks, err := parseCaptionTracks(page)
	if err != nil {
		return nil, fmt.Errorf("video %s: %w", videoID, err)
	}
	track, ok := pickTrack(tracks, languages)
	if !ok {
		return nil, fmt.Errorf("%w for video %s in %s (available: %s)",
			ErrNoTranscript, videoID, strings.Join(languages, ", "), describeTracks(tracks))
	}

	trackURL, err := c.baseURL.Parse(track.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("%w: caption url: %w", ErrMalformedCaptions, err)
	}
	raw, err := c.get(ctx, "timedtext", trackURL.String(), languages)
	if err != nil {
		return nil, err
	}
	return parseTimedText(raw)
}

func (c *Client) get(ctx context.Context, operation, target string, languages []string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, fmt.Errorf("build youtube %s request: %w", operation, err)
	}
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}
	if len(languages) > 0 {
		req.Header.Set("Accept-Language", strings.Join(languages, ","))
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("youtube %s: %w", operation, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxWatchPageBytes))
	if err != nil {
		return nil, fmt.Errorf("read youtube %s: %w", operation, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &resilience.StatusError{
			Service:    "youtube",
			Operation:  operation,
			StatusCode: resp.StatusCode,
			Status:     resp.Status,
		}
	}
	return body, nil
}

func parseCaptionTracks(page []byte) ([]captionTrack, error) {
	idx := strings.Index(string(page), captionTracksMarker)
	if idx < 0 {
		return nil, ErrTranscriptsDisabled
	}
	var tracks []captionTrack
	decoder := json.NewDecoder(strings.NewReader(string(page[idx+len(captionTracksMarker):])))
	if err := decoder.Decode(&tracks); err != nil {
		return nil, fmt.Errorf("%w: caption tracks: %w", ErrMalformedCaptions, err)
	}
	if len(tracks) == 0 {
		return nil, ErrTranscriptsDisabled
	}
	return tracks, nil
}

// pickTrack honors the preference order of languages, considering manual tracks only.
func pickTrack(tracks []captionTrack, languages []string) (captionTrack, bool) {
	for _, lang := range languages {
		for _, track := range tracks {
			if track.Kind == autoGeneratedKind {
				continue
			}
			if strings.EqualFold(track.LanguageCode, lang) {
				return track, true
			}
		}
	}
	return captionTrack{}, false
}

func describeTracks(tracks []captionTrack) string {
	parts := make([]string, 0, len(tracks))
	for _, track := range tracks {
		label := track.LanguageCode
		if track.Kind == autoGeneratedKind {
			label += " (auto)"
		}
		parts = append(parts, label)
	}
	if len(parts) == 0 {
		return "none"
	}
	return strings.Join(parts, ", ")
}

func parseTimedText(raw []byte) ([]domain.CaptionFragment, error) {
	var doc timedText
	if err := xml.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("%w: timed text: %w", ErrMalformedCaptions, err)
	}

	fragments := make([]domain.CaptionFragment, 0, len(doc.Texts))
	for _, item := range doc.Texts {
		text := formattingTags.ReplaceAllString(html.UnescapeString(item.Body), "")
		if text == "" {
			continue
		}
		start, _ := strconv.ParseFloat(item.Start, 64)
		duration, _ := strconv.ParseFloat(item.Duration, 64)
		fragments = append(fragments, domain.CaptionFragment{
			Text:     text,
			Start:    start,
			Duration: duration,
		})
	}
	return fragments, nil
}
