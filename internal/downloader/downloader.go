// Package downloader fetches the final media bytes for extracted
// sources, enforcing the configured payload ceiling.
package downloader

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"

	"github.com/google/uuid"

	"mediagrab/internal/domain"
	"mediagrab/pkg/httpx"
	"mediagrab/pkg/urlx"
)

// Downloader turns MediaSources into MediaItems.
type Downloader struct {
	client   *httpx.Client
	maxBytes int64
	logger   *slog.Logger
}

// New creates a Downloader. maxBytes is the hard payload ceiling per
// media file.
func New(client *httpx.Client, maxBytes int64, logger *slog.Logger) *Downloader {
	return &Downloader{client: client, maxBytes: maxBytes, logger: logger}
}

// Download fetches every source concurrently and returns the ones that
// survived, in input order. Failures (network errors, oversized bodies)
// drop that source only; the batch never fails as a whole. An empty
// result means the post degrades to absence at the adapter level.
func (d *Downloader) Download(ctx context.Context, sources []domain.MediaSource) []domain.MediaItem {
	results := make([]*domain.MediaItem, len(sources))

	var wg sync.WaitGroup
	for i, src := range sources {
		wg.Add(1)
		go func(i int, src domain.MediaSource) {
			defer wg.Done()
			item, err := d.downloadOne(ctx, src)
			if err != nil {
				d.logger.Warn("dropping media source",
					"url", src.URL,
					"kind", src.Kind.String(),
					"error", err,
				)
				return
			}
			results[i] = item
		}(i, src)
	}
	wg.Wait()

	items := make([]domain.MediaItem, 0, len(sources))
	for _, item := range results {
		if item != nil {
			items = append(items, *item)
		}
	}
	return items
}

func (d *Downloader) downloadOne(ctx context.Context, src domain.MediaSource) (*domain.MediaItem, error) {
	resp, err := d.client.Get(ctx, src.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("fetch media: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: %d", domain.ErrInvalidStatus, resp.StatusCode)
	}

	// Abort before reading anything when the server already tells us
	// the payload is over the ceiling.
	if resp.ContentLength > d.maxBytes {
		return nil, fmt.Errorf("%w: %d > %d", domain.ErrMediaTooLarge, resp.ContentLength, d.maxBytes)
	}

	// Servers omit or lie about Content-Length, so re-check the actual
	// size. Reading one byte past the ceiling is enough to detect it.
	data, err := io.ReadAll(io.LimitReader(resp.Body, d.maxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read media: %w", err)
	}
	if int64(len(data)) > d.maxBytes {
		return nil, fmt.Errorf("%w: body exceeds %d", domain.ErrMediaTooLarge, d.maxBytes)
	}

	return &domain.MediaItem{
		Kind:     src.Kind,
		Data:     data,
		Filename: filenameFor(src),
	}, nil
}

// filenameFor derives a filename from the URL path, falling back to a
// generated name with a kind-appropriate extension.
func filenameFor(src domain.MediaSource) string {
	if name := urlx.Filename(src.URL); name != "" && urlx.Extension(src.URL) != "" {
		return name
	}
	return uuid.New().String() + "." + src.Kind.DefaultExtension()
}
