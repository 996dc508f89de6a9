// Package reddit extracts media from Reddit posts through Redlib mirror
// instances, solving the anti-bot challenge those instances sit behind.
package reddit

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"mediagrab/internal/config"
	"mediagrab/internal/domain"
	"mediagrab/internal/downloader"
	"mediagrab/internal/hls"
	"mediagrab/pkg/httpx"
	"mediagrab/pkg/urlx"
)

var urlRe = regexp.MustCompile(`(?i)(?:https?:)?//(?:(?:www|old|new|np|amp|m)\.)?(?:reddit\.com|redd\.it|safereddit\.com|libreddit\.[a-z0-9.-]+|redlib\.[a-z0-9.-]+)/[^\s]+`)

var manifestRe = regexp.MustCompile(`[^"'\s]+\.m3u8[^"'\s]*`)

const hlsSourceType = `application/vnd.apple.mpegurl`

// Provider fetches Reddit posts via mirror instances.
type Provider struct {
	cfg    config.RedditConfig
	client *httpx.Client
	dl     *downloader.Downloader
	hls    *hls.Resolver
	solver *solver
	logger *slog.Logger
}

// New creates a Reddit provider.
func New(cfg config.RedditConfig, client *httpx.Client, dl *downloader.Downloader, resolver *hls.Resolver, logger *slog.Logger) *Provider {
	logger = logger.With("provider", "reddit")
	return &Provider{
		cfg:    cfg,
		client: client,
		dl:     dl,
		hls:    resolver,
		solver: newSolver(client, cfg.PassPath, logger),
		logger: logger,
	}
}

func (p *Provider) Name() string { return "reddit" }

func (p *Provider) Website() string { return "Reddit" }

// ExtractURLs returns the Reddit post links found in text, including
// short redd.it links and known mirror hostnames.
func (p *Provider) ExtractURLs(text string) []string {
	return urlx.FindAll(urlRe, text)
}

// Fetch resolves a Reddit URL into a MediaPost by walking the mirror
// instance list until one serves a clean post page.
func (p *Provider) Fetch(ctx context.Context, rawURL string) (*domain.MediaPost, error) {
	path, ok := p.postPath(ctx, rawURL)
	if !ok {
		return nil, nil
	}

	page := p.fetchMirrorPage(ctx, path)
	if page == nil {
		return nil, nil
	}

	sources := p.sourcesFromPage(ctx, page)
	if len(sources) == 0 {
		return nil, nil
	}

	items := p.dl.Download(ctx, sources)
	if len(items) == 0 {
		return nil, nil
	}

	handle := strings.TrimPrefix(page.author, "u/")
	return &domain.MediaPost{
		AuthorName:   handle,
		AuthorHandle: handle,
		Text:         page.title,
		URL:          rawURL,
		Website:      p.Website(),
		Media:        items,
	}, nil
}

// postPath normalizes the URL into the post path served by every
// mirror. Short redd.it and /s/ share links hide the real path behind a
// redirect.
func (p *Provider) postPath(ctx context.Context, rawURL string) (string, bool) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", false
	}

	host := strings.ToLower(u.Hostname())
	if host == "redd.it" || strings.Contains(u.Path, "/s/") {
		resolved, err := p.client.ResolveRedirect(ctx, rawURL)
		if err != nil {
			return "", false
		}
		ru, err := url.Parse(urlx.Normalize(resolved))
		if err != nil {
			return "", false
		}
		u = ru
	}

	if u.Path == "" || u.Path == "/" {
		return "", false
	}
	return u.Path, true
}

// mirrorPage is a parsed, unblocked post page from one instance.
type mirrorPage struct {
	doc    *goquery.Document
	raw    string
	url    string
	title  string
	author string
}

// fetchMirrorPage tries each configured instance in order and
// short-circuits on the first non-blocked 200 page. Blocked instances
// get one challenge-solving attempt before falling through.
func (p *Provider) fetchMirrorPage(ctx context.Context, path string) *mirrorPage {
	for _, instance := range p.cfg.Instances {
		pageURL := strings.TrimSuffix(instance, "/") + path

		body, err := p.client.GetBody(ctx, pageURL, nil)
		if err != nil {
			p.logger.Warn("mirror fetch failed", "instance", instance, "error", err)
			continue
		}

		html := string(body)
		if isBlocked(html) {
			html, err = p.solver.Solve(ctx, pageURL, html)
			if err != nil {
				p.logger.Warn("mirror challenge unsolved", "instance", instance, "error", err)
				continue
			}
		}

		doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
		if err != nil {
			p.logger.Warn("mirror page unparseable", "instance", instance, "error", err)
			continue
		}
		return parseMirrorPage(doc, html, pageURL)
	}
	return nil
}

func parseMirrorPage(doc *goquery.Document, raw, pageURL string) *mirrorPage {
	page := &mirrorPage{doc: doc, raw: raw, url: pageURL}

	page.title = strings.TrimSpace(doc.Find("h1").First().Text())
	if page.title == "" {
		page.title, _ = doc.Find(`meta[property="og:title"]`).First().Attr("content")
	}
	page.author = strings.TrimSpace(doc.Find("a.post_author").First().Text())
	if page.author == "" {
		// Comment and sidebar author links also point at /user/; only
		// the post header identifies the post author.
		sel := doc.Find(`.post_header a[href^="/user/"], .post_header a[href^="/u/"]`)
		page.author = strings.TrimSpace(sel.First().Text())
	}
	return page
}

// sourcesFromPage collects the post's media references: an HLS video
// when present, otherwise the gallery or single post image.
func (p *Provider) sourcesFromPage(ctx context.Context, page *mirrorPage) []domain.MediaSource {
	if src := p.videoSource(ctx, page); src != nil {
		return []domain.MediaSource{*src}
	}
	return p.photoSources(page)
}

func (p *Provider) videoSource(ctx context.Context, page *mirrorPage) *domain.MediaSource {
	manifest, _ := page.doc.Find(fmt.Sprintf(`source[type=%q]`, hlsSourceType)).First().Attr("src")
	if manifest == "" {
		manifest = manifestRe.FindString(page.raw)
	}
	if manifest == "" {
		return nil
	}

	manifestURL := resolveAgainst(page.url, manifest)
	variant, err := p.hls.Resolve(ctx, manifestURL)
	if err != nil {
		p.logger.Warn("hls resolution failed", "manifest", manifestURL, "error", err)
		return nil
	}

	poster, _ := page.doc.Find("video").First().Attr("poster")
	return &domain.MediaSource{
		Kind:         domain.KindVideo,
		URL:          variant.URL,
		ThumbnailURL: resolveAgainst(page.url, poster),
		Width:        variant.Width,
		Height:       variant.Height,
	}
}

func (p *Provider) photoSources(page *mirrorPage) []domain.MediaSource {
	var sources []domain.MediaSource
	seen := make(map[string]bool)

	add := func(raw string) {
		if raw == "" {
			return
		}
		u := resolveAgainst(page.url, raw)
		if seen[u] {
			return
		}
		seen[u] = true
		sources = append(sources, domain.MediaSource{Kind: domain.KindPhoto, URL: u})
	}

	page.doc.Find(".gallery img, img.post_media_image").Each(func(_ int, s *goquery.Selection) {
		if src, ok := s.Attr("src"); ok && src != "" {
			add(src)
			return
		}
		if src, ok := s.Attr("data-src"); ok {
			add(src)
		}
	})

	if len(sources) == 0 {
		if og, ok := page.doc.Find(`meta[property="og:image"]`).First().Attr("content"); ok {
			add(og)
		}
	}
	return sources
}

// resolveAgainst resolves a possibly relative reference against the
// mirror page URL.
func resolveAgainst(pageURL, ref string) string {
	if ref == "" {
		return ""
	}
	base, err := url.Parse(pageURL)
	if err != nil {
		return ref
	}
	r, err := url.Parse(ref)
	if err != nil {
		return ref
	}
	return base.ResolveReference(r).String()
}
