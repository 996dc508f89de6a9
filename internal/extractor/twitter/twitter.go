// Package twitter extracts media from X/Twitter posts through a mirror
// API that serves structured tweet JSON without authentication.
package twitter

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"time"

	"mediagrab/internal/config"
	"mediagrab/internal/domain"
	"mediagrab/internal/downloader"
	"mediagrab/pkg/httpx"
	"mediagrab/pkg/urlx"
)

var urlRe = regexp.MustCompile(`(?i)(?:https?:)?//(?:www\.|mobile\.)?(?:twitter|x)\.com/[a-z0-9_]+/status/\d+[^\s]*`)

var statusRe = regexp.MustCompile(`(?i)(?:twitter|x)\.com/([A-Za-z0-9_]+)/status/(\d+)`)

// Provider fetches tweets.
type Provider struct {
	cfg    config.TwitterConfig
	client *httpx.Client
	dl     *downloader.Downloader
	logger *slog.Logger
}

// New creates a Twitter provider.
func New(cfg config.TwitterConfig, client *httpx.Client, dl *downloader.Downloader, logger *slog.Logger) *Provider {
	return &Provider{
		cfg:    cfg,
		client: client,
		dl:     dl,
		logger: logger.With("provider", "twitter"),
	}
}

func (p *Provider) Name() string { return "twitter" }

func (p *Provider) Website() string { return "X" }

// ExtractURLs returns the status links found in text.
func (p *Provider) ExtractURLs(text string) []string {
	return urlx.FindAll(urlRe, text)
}

// Fetch resolves a status URL into a MediaPost.
func (p *Provider) Fetch(ctx context.Context, rawURL string) (*domain.MediaPost, error) {
	m := statusRe.FindStringSubmatch(rawURL)
	if m == nil {
		return nil, nil
	}
	user, id := m[1], m[2]

	body, err := p.client.GetBody(ctx, fmt.Sprintf("%s/%s/status/%s", p.cfg.MirrorURL, user, id),
		map[string]string{"Accept": "application/json"})
	if err != nil {
		if errors.Is(err, domain.ErrInvalidStatus) {
			return nil, nil // tweet gone or protected
		}
		return nil, fmt.Errorf("fetch tweet: %w", err)
	}

	tweet, err := decodeTweet(body)
	if err != nil {
		return nil, fmt.Errorf("decode tweet: %w", err)
	}

	sources := sourcesFromTweet(tweet)
	if len(sources) == 0 {
		return nil, nil
	}

	items := p.dl.Download(ctx, sources)
	if len(items) == 0 {
		return nil, nil
	}

	return &domain.MediaPost{
		AuthorName:   tweet.Author.Name,
		AuthorHandle: tweet.Author.ScreenName,
		Text:         tweet.Text,
		URL:          rawURL,
		Website:      p.Website(),
		Media:        items,
	}, nil
}

// decodeTweet normalizes the envelope shapes different mirror versions
// respond with: {"tweet": {...}}, {"data": {...}}, or the bare object.
func decodeTweet(body []byte) (*tweetPayload, error) {
	var envelope struct {
		Tweet json.RawMessage `json:"tweet"`
		Data  json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, err
	}

	raw := body
	switch {
	case len(envelope.Tweet) > 0 && string(envelope.Tweet) != "null":
		raw = envelope.Tweet
	case len(envelope.Data) > 0 && string(envelope.Data) != "null":
		raw = envelope.Data
	}

	tweet := &tweetPayload{}
	if err := json.Unmarshal(raw, tweet); err != nil {
		return nil, err
	}
	return tweet, nil
}

func sourcesFromTweet(tweet *tweetPayload) []domain.MediaSource {
	var sources []domain.MediaSource
	for _, photo := range tweet.Media.Photos {
		sources = append(sources, domain.MediaSource{
			Kind:   domain.KindPhoto,
			URL:    photo.URL,
			Width:  photo.Width,
			Height: photo.Height,
		})
	}
	for _, video := range tweet.Media.Videos {
		sources = append(sources, domain.MediaSource{
			Kind:         domain.KindVideo,
			URL:          video.bestURL(),
			ThumbnailURL: video.ThumbnailURL,
			Duration:     time.Duration(video.Duration * float64(time.Second)),
			Width:        video.Width,
			Height:       video.Height,
		})
	}
	return sources
}
