package extractor

import (
	"context"
	"log/slog"

	"mediagrab/internal/config"
	"mediagrab/internal/domain"
	"mediagrab/internal/downloader"
	"mediagrab/internal/extractor/bluesky"
	"mediagrab/internal/extractor/instagram"
	"mediagrab/internal/extractor/reddit"
	"mediagrab/internal/extractor/tiktok"
	"mediagrab/internal/extractor/twitter"
	"mediagrab/internal/hls"
	"mediagrab/pkg/httpx"
)

// Engine is the single entry point of the extraction core.
type Engine struct {
	providers []Provider
	logger    *slog.Logger
}

// NewEngine wires the providers, downloader, and HLS resolver from
// configuration and a shared HTTP client. Downloads run on their own
// client so the longer download timeout never applies to API calls.
func NewEngine(cfg *config.Config, client *httpx.Client, logger *slog.Logger) *Engine {
	dlClient := httpx.New(httpx.Options{
		Timeout:   cfg.HTTP.DownloadTimeout,
		UserAgent: cfg.HTTP.UserAgent,
	})
	dl := downloader.New(dlClient, cfg.Media.MaxBytes, logger)
	resolver := hls.NewResolver(client, logger)

	return NewEngineWithProviders(logger,
		bluesky.New(cfg.Bluesky, client, dl, logger),
		twitter.New(cfg.Twitter, client, dl, logger),
		instagram.New(cfg.Instagram, client, dl, logger),
		reddit.New(cfg.Reddit, client, dl, resolver, logger),
		tiktok.New(cfg.TikTok, client, dl, logger),
	)
}

// NewEngineWithProviders creates an Engine over an explicit provider
// list, in match order.
func NewEngineWithProviders(logger *slog.Logger, providers ...Provider) *Engine {
	return &Engine{providers: providers, logger: logger}
}

// ExtractMedia scans text for a supported link and returns the first
// post that resolves to downloadable media, or nil when nothing
// matched. Recoverable provider failures are logged and skipped; the
// only returned error is context cancellation.
func (e *Engine) ExtractMedia(ctx context.Context, text string) (*domain.MediaPost, error) {
	for _, provider := range e.providers {
		for _, url := range provider.ExtractURLs(text) {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			post, err := provider.Fetch(ctx, url)
			if err != nil {
				e.logger.Warn("provider fetch failed",
					"provider", provider.Name(),
					"url", url,
					"error", err,
				)
				continue
			}
			if post != nil {
				return post, nil
			}
		}
	}
	return nil, nil
}
