// Package bluesky extracts media from Bluesky posts through the public
// AT Protocol APIs.
package bluesky

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"regexp"
	"strings"

	"mediagrab/internal/config"
	"mediagrab/internal/domain"
	"mediagrab/internal/downloader"
	"mediagrab/pkg/httpx"
	"mediagrab/pkg/urlx"
)

var urlRe = regexp.MustCompile(`(?i)(?:https?:)?//(?:www\.)?bsky\.app/profile/[^/\s]+/post/[a-z0-9]+[^\s]*`)

var postPathRe = regexp.MustCompile(`/profile/([^/]+)/post/([a-z0-9]+)$`)

const (
	embedImages          = "app.bsky.embed.images#view"
	embedVideo           = "app.bsky.embed.video#view"
	embedRecordWithMedia = "app.bsky.embed.recordWithMedia#view"
)

// Provider fetches Bluesky posts.
type Provider struct {
	cfg    config.BlueskyConfig
	client *httpx.Client
	dl     *downloader.Downloader
	logger *slog.Logger
}

// New creates a Bluesky provider.
func New(cfg config.BlueskyConfig, client *httpx.Client, dl *downloader.Downloader, logger *slog.Logger) *Provider {
	return &Provider{
		cfg:    cfg,
		client: client,
		dl:     dl,
		logger: logger.With("provider", "bluesky"),
	}
}

func (p *Provider) Name() string { return "bluesky" }

func (p *Provider) Website() string { return "Bluesky" }

// ExtractURLs returns the Bluesky post links found in text.
func (p *Provider) ExtractURLs(text string) []string {
	return urlx.FindAll(urlRe, text)
}

// Fetch resolves a post URL into a MediaPost. A nil post means the URL
// was malformed or the content no longer exists.
func (p *Provider) Fetch(ctx context.Context, rawURL string) (*domain.MediaPost, error) {
	actor, rkey, ok := parsePostURL(rawURL)
	if !ok {
		return nil, nil
	}

	did := actor
	if !strings.HasPrefix(did, "did:") {
		resolved, err := p.resolveHandle(ctx, actor)
		if err != nil {
			if errors.Is(err, domain.ErrInvalidStatus) {
				return nil, nil // unknown handle
			}
			return nil, err
		}
		did = resolved
	}

	var thread threadResponse
	threadURL := fmt.Sprintf("%s/xrpc/app.bsky.feed.getPostThread?uri=%s&depth=0",
		p.cfg.APIURL,
		url.QueryEscape(fmt.Sprintf("at://%s/app.bsky.feed.post/%s", did, rkey)),
	)
	if err := p.client.GetJSON(ctx, threadURL, &thread); err != nil {
		if errors.Is(err, domain.ErrInvalidStatus) {
			return nil, nil // post gone
		}
		return nil, fmt.Errorf("fetch post thread: %w", err)
	}

	post := thread.Thread.Post
	sources, err := p.sourcesFromEmbed(ctx, did, post.Embed)
	if err != nil {
		return nil, err
	}
	if len(sources) == 0 {
		return nil, nil
	}

	items := p.dl.Download(ctx, sources)
	if len(items) == 0 {
		return nil, nil
	}

	return &domain.MediaPost{
		AuthorName:   post.Author.DisplayName,
		AuthorHandle: post.Author.Handle,
		Text:         post.Record.Text,
		URL:          rawURL,
		Website:      p.Website(),
		Media:        items,
	}, nil
}

func parsePostURL(rawURL string) (actor, rkey string, ok bool) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", "", false
	}
	m := postPathRe.FindStringSubmatch(u.Path)
	if m == nil {
		return "", "", false
	}
	return m[1], m[2], true
}

func (p *Provider) resolveHandle(ctx context.Context, handle string) (string, error) {
	var resp resolveHandleResponse
	resolveURL := fmt.Sprintf("%s/xrpc/com.atproto.identity.resolveHandle?handle=%s",
		p.cfg.APIURL, url.QueryEscape(handle))
	if err := p.client.GetJSON(ctx, resolveURL, &resp); err != nil {
		return "", err
	}
	if resp.DID == "" {
		return "", fmt.Errorf("empty did for handle %s", handle)
	}
	return resp.DID, nil
}

// sourcesFromEmbed maps an embed view onto media sources. Video blobs
// are not served from a CDN; they live behind the author's PDS, which
// has to be resolved from the DID first.
func (p *Provider) sourcesFromEmbed(ctx context.Context, did string, embed *embedView) ([]domain.MediaSource, error) {
	if embed == nil {
		return nil, nil
	}

	switch embed.Type {
	case embedImages:
		sources := make([]domain.MediaSource, 0, len(embed.Images))
		for _, img := range embed.Images {
			src := domain.MediaSource{
				Kind:         domain.KindPhoto,
				URL:          img.Fullsize,
				ThumbnailURL: img.Thumb,
			}
			if img.AspectRatio != nil {
				src.Width = img.AspectRatio.Width
				src.Height = img.AspectRatio.Height
			}
			sources = append(sources, src)
		}
		return sources, nil

	case embedVideo:
		pds, err := p.resolvePDS(ctx, did)
		if err != nil {
			return nil, fmt.Errorf("resolve pds: %w", err)
		}
		src := domain.MediaSource{
			Kind: domain.KindVideo,
			URL: fmt.Sprintf("%s/xrpc/com.atproto.sync.getBlob?did=%s&cid=%s",
				pds, url.QueryEscape(did), url.QueryEscape(embed.CID)),
			ThumbnailURL: embed.Thumbnail,
		}
		if embed.AspectRatio != nil {
			src.Width = embed.AspectRatio.Width
			src.Height = embed.AspectRatio.Height
		}
		return []domain.MediaSource{src}, nil

	case embedRecordWithMedia:
		return p.sourcesFromEmbed(ctx, did, embed.Media)

	default:
		return nil, nil
	}
}

// resolvePDS finds the author's Personal Data Server base URL.
func (p *Provider) resolvePDS(ctx context.Context, did string) (string, error) {
	switch {
	case strings.HasPrefix(did, "did:plc:"):
		var doc didDocument
		if err := p.client.GetJSON(ctx, p.cfg.PLCURL+"/"+did, &doc); err != nil {
			return "", err
		}
		for _, svc := range doc.Service {
			if svc.Type == "AtprotoPersonalDataServer" {
				return strings.TrimSuffix(svc.ServiceEndpoint, "/"), nil
			}
		}
		return "", fmt.Errorf("no pds service in did document for %s", did)

	case strings.HasPrefix(did, "did:web:"):
		return "https://" + strings.TrimPrefix(did, "did:web:"), nil

	default:
		return "", fmt.Errorf("unsupported did method: %s", did)
	}
}
