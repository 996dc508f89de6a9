// Package urlx holds URL helpers shared by the provider adapters.
package urlx

import (
	"net/url"
	"regexp"
	"strings"
)

// FindAll returns every match of re in text, normalized for downstream
// use: protocol-relative matches get an https scheme and trailing query
// strings/fragments are stripped. Order and duplicates follow the text.
func FindAll(re *regexp.Regexp, text string) []string {
	matches := re.FindAllString(text, -1)
	if len(matches) == 0 {
		return nil
	}
	urls := make([]string, 0, len(matches))
	for _, m := range matches {
		urls = append(urls, Normalize(m))
	}
	return urls
}

// Normalize inserts an https scheme into protocol-relative URLs and
// strips the query string and fragment.
func Normalize(raw string) string {
	if strings.HasPrefix(raw, "//") {
		raw = "https:" + raw
	}
	if i := strings.IndexAny(raw, "?#"); i >= 0 {
		raw = raw[:i]
	}
	return raw
}

var extRe = regexp.MustCompile(`\.([a-zA-Z0-9]+)$`)

// Extension returns the lowercase file extension indicated by the URL
// path, without the dot, or "" when the path has none.
func Extension(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	m := extRe.FindStringSubmatch(u.Path)
	if len(m) < 2 {
		return ""
	}
	return strings.ToLower(m[1])
}

// Filename returns the final path segment of the URL, or "" when the
// URL has no usable path.
func Filename(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	path := strings.TrimSuffix(u.Path, "/")
	if i := strings.LastIndexByte(path, '/'); i >= 0 {
		path = path[i+1:]
	}
	return path
}
