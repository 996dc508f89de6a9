// Package extractor turns free-form chat text into downloaded media
// posts by fanning out over the per-platform provider adapters.
package extractor

import (
	"context"

	"mediagrab/internal/domain"
)

// Provider is one platform adapter. Implementations are stateless
// beyond compile-time constants and injected collaborators, so a single
// instance serves concurrent extractions.
type Provider interface {
	// Name is the short machine name of the platform.
	Name() string

	// Website is the display name used in MediaPost.Website.
	Website() string

	// ExtractURLs scans free text and returns candidate URLs belonging
	// to this platform, in first-seen order.
	ExtractURLs(text string) []string

	// Fetch turns one matched URL into a MediaPost. A nil post with a
	// nil error means no content (malformed URL, deleted post, no
	// media); a non-nil error is a recoverable failure the caller may
	// log and skip.
	Fetch(ctx context.Context, url string) (*domain.MediaPost, error)
}
