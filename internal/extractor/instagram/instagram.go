// Package instagram extracts media from Instagram posts by scraping the
// Open Graph tags a mirror renders for each post page.
package instagram

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"mediagrab/internal/config"
	"mediagrab/internal/domain"
	"mediagrab/internal/downloader"
	"mediagrab/pkg/httpx"
	"mediagrab/pkg/urlx"
)

var urlRe = regexp.MustCompile(`(?i)(?:https?:)?//(?:www\.)?instagram\.com/(?:[a-z0-9_.]+/)?(?:p|reel|reels|tv)/[a-z0-9_-]+[^\s]*`)

var codeRe = regexp.MustCompile(`(?i)/(?:p|reel|reels|tv)/([A-Za-z0-9_-]+)`)

// handleRe pulls the @handle out of a "Name (@handle)" page title.
var handleRe = regexp.MustCompile(`\(@([A-Za-z0-9_.]+)\)`)

// Provider fetches Instagram posts.
type Provider struct {
	cfg    config.InstagramConfig
	client *httpx.Client
	dl     *downloader.Downloader
	logger *slog.Logger
}

// New creates an Instagram provider.
func New(cfg config.InstagramConfig, client *httpx.Client, dl *downloader.Downloader, logger *slog.Logger) *Provider {
	return &Provider{
		cfg:    cfg,
		client: client,
		dl:     dl,
		logger: logger.With("provider", "instagram"),
	}
}

func (p *Provider) Name() string { return "instagram" }

func (p *Provider) Website() string { return "Instagram" }

// ExtractURLs returns the post/reel links found in text.
func (p *Provider) ExtractURLs(text string) []string {
	return urlx.FindAll(urlRe, text)
}

// Fetch scrapes the mirror-rendered page for a post and resolves its
// media. The CDN URL in the meta tags is the mirror's proxy endpoint;
// the actually-downloadable URL is one redirect behind it.
func (p *Provider) Fetch(ctx context.Context, rawURL string) (*domain.MediaPost, error) {
	m := codeRe.FindStringSubmatch(rawURL)
	if m == nil {
		return nil, nil
	}
	code := m[1]

	body, err := p.client.GetBody(ctx, fmt.Sprintf("%s/p/%s", p.cfg.MirrorURL, code), nil)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidStatus) {
			return nil, nil
		}
		return nil, fmt.Errorf("fetch post page: %w", err)
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(string(body)))
	if err != nil {
		return nil, fmt.Errorf("parse post page: %w", err)
	}

	page := parseMeta(doc)
	source, ok := page.mediaSource()
	if !ok {
		return nil, nil
	}

	// The mirror proxies bytes instead of serving them; follow one
	// redirect to get the real CDN URL.
	if resolved, err := p.client.ResolveRedirect(ctx, source.URL); err == nil {
		source.URL = resolved
	}

	items := p.dl.Download(ctx, []domain.MediaSource{source})
	if len(items) == 0 {
		return nil, nil
	}

	return &domain.MediaPost{
		AuthorName:   page.authorName(),
		AuthorHandle: page.authorHandle(),
		Text:         page.description,
		URL:          rawURL,
		Website:      p.Website(),
		Media:        items,
	}, nil
}

// pageMeta is the Open Graph slice of a rendered post page.
type pageMeta struct {
	videoURL    string
	imageURL    string
	title       string
	description string
}

func parseMeta(doc *goquery.Document) pageMeta {
	meta := func(names ...string) string {
		for _, name := range names {
			sel := fmt.Sprintf(`meta[property=%q], meta[name=%q]`, name, name)
			if v, ok := doc.Find(sel).First().Attr("content"); ok && v != "" {
				return v
			}
		}
		return ""
	}
	return pageMeta{
		videoURL:    meta("og:video", "og:video:secure_url"),
		imageURL:    meta("og:image"),
		title:       meta("twitter:title", "og:title"),
		description: meta("og:description"),
	}
}

func (m pageMeta) mediaSource() (domain.MediaSource, bool) {
	if m.videoURL != "" {
		return domain.MediaSource{
			Kind:         domain.KindVideo,
			URL:          m.videoURL,
			ThumbnailURL: m.imageURL,
		}, true
	}
	if m.imageURL != "" {
		return domain.MediaSource{Kind: domain.KindPhoto, URL: m.imageURL}, true
	}
	return domain.MediaSource{}, false
}

func (m pageMeta) authorName() string {
	name := m.title
	if i := strings.Index(name, "(@"); i > 0 {
		name = name[:i]
	}
	return strings.TrimSpace(name)
}

func (m pageMeta) authorHandle() string {
	if h := handleRe.FindStringSubmatch(m.title); h != nil {
		return h[1]
	}
	return ""
}
