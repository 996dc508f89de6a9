// Package hls resolves an HLS master manifest into a single direct
// media URL by picking the highest-bandwidth variant.
package hls

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strconv"
	"strings"

	"mediagrab/internal/domain"
	"mediagrab/pkg/httpx"
)

// Variant is the selected stream variant of a master manifest.
type Variant struct {
	URL    string
	Width  int
	Height int
}

// Resolver fetches and parses HLS master manifests.
type Resolver struct {
	client *httpx.Client
	logger *slog.Logger
}

// NewResolver creates an HLS resolver.
func NewResolver(client *httpx.Client, logger *slog.Logger) *Resolver {
	return &Resolver{client: client, logger: logger}
}

// Resolve fetches the manifest at manifestURL and returns its best
// variant. Variant URIs are resolved against the manifest URL and carry
// over the master's query string, since CDN auth tokens commonly live
// there. A variant path still ending in .m3u8 is rewritten to .mp4, the
// progressive file the CDN serves at the same path.
func (r *Resolver) Resolve(ctx context.Context, manifestURL string) (*Variant, error) {
	body, err := r.client.GetBody(ctx, manifestURL, nil)
	if err != nil {
		return nil, fmt.Errorf("fetch manifest: %w", err)
	}

	best, err := selectVariant(body)
	if err != nil {
		return nil, err
	}

	resolved, err := resolveVariantURL(manifestURL, best.uri)
	if err != nil {
		return nil, err
	}

	r.logger.Debug("resolved hls variant",
		"manifest", manifestURL,
		"bandwidth", best.bandwidth,
		"url", resolved,
	)
	return &Variant{URL: resolved, Width: best.width, Height: best.height}, nil
}

type variantInfo struct {
	uri       string
	bandwidth int
	width     int
	height    int
}

// selectVariant scans the manifest for #EXT-X-STREAM-INF headers and the
// URI lines that follow them, keeping the highest bandwidth seen. Ties
// go to the first variant.
func selectVariant(manifest []byte) (*variantInfo, error) {
	var (
		best    *variantInfo
		pending *variantInfo
	)

	scanner := bufio.NewScanner(bytes.NewReader(manifest))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if strings.HasPrefix(line, "#EXT-X-STREAM-INF:") {
			pending = parseStreamInf(strings.TrimPrefix(line, "#EXT-X-STREAM-INF:"))
			continue
		}
		if strings.HasPrefix(line, "#") {
			continue
		}
		if pending == nil {
			continue
		}
		pending.uri = line
		if best == nil || pending.bandwidth > best.bandwidth {
			best = pending
		}
		pending = nil
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan manifest: %w", err)
	}
	if best == nil {
		return nil, domain.ErrNoVariant
	}
	return best, nil
}

// parseStreamInf parses the attribute list of a stream header line.
func parseStreamInf(attrs string) *variantInfo {
	v := &variantInfo{}
	for _, attr := range splitAttributes(attrs) {
		key, value, ok := strings.Cut(attr, "=")
		if !ok {
			continue
		}
		switch key {
		case "BANDWIDTH":
			v.bandwidth, _ = strconv.Atoi(value)
		case "RESOLUTION":
			w, h, ok := strings.Cut(value, "x")
			if ok {
				v.width, _ = strconv.Atoi(w)
				v.height, _ = strconv.Atoi(h)
			}
		}
	}
	return v
}

// splitAttributes splits an attribute list on commas outside quotes.
func splitAttributes(s string) []string {
	var (
		parts  []string
		start  int
		quoted bool
	)
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '"':
			quoted = !quoted
		case ',':
			if !quoted {
				parts = append(parts, s[start:i])
				start = i + 1
			}
		}
	}
	return append(parts, s[start:])
}

func resolveVariantURL(manifestURL, uri string) (string, error) {
	base, err := url.Parse(manifestURL)
	if err != nil {
		return "", fmt.Errorf("parse manifest url: %w", err)
	}
	ref, err := url.Parse(uri)
	if err != nil {
		return "", fmt.Errorf("parse variant uri: %w", err)
	}
	resolved := base.ResolveReference(ref)

	// Carry the master's query over to the variant.
	if base.RawQuery != "" {
		if resolved.RawQuery == "" {
			resolved.RawQuery = base.RawQuery
		} else if resolved.RawQuery != base.RawQuery {
			resolved.RawQuery += "&" + base.RawQuery
		}
	}

	if strings.HasSuffix(resolved.Path, ".m3u8") {
		resolved.Path = strings.TrimSuffix(resolved.Path, ".m3u8") + ".mp4"
	}
	return resolved.String(), nil
}
