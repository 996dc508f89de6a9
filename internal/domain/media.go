package domain

import "time"

// MediaKind is the type of a piece of media, fixed at extraction time.
type MediaKind byte

const (
	_ MediaKind = iota
	KindPhoto
	KindVideo
)

// String returns the string representation of the MediaKind.
func (k MediaKind) String() string {
	switch k {
	case KindPhoto:
		return "photo"
	case KindVideo:
		return "video"
	default:
		return "unknown"
	}
}

// DefaultExtension is the filename extension used when the media URL
// does not carry one.
func (k MediaKind) DefaultExtension() string {
	if k == KindVideo {
		return "mp4"
	}
	return "jpg"
}

// MediaSource is a reference to remotely-hosted media that has not been
// downloaded yet. Providers produce them; the downloader consumes each
// one exactly once.
type MediaSource struct {
	Kind         MediaKind
	URL          string
	ThumbnailURL string
	Duration     time.Duration
	Width        int
	Height       int
}

// MediaItem is a downloaded payload ready for re-upload. The caller owns
// the bytes once returned; nothing is retained by the engine.
type MediaItem struct {
	Kind     MediaKind
	Data     []byte
	Filename string
}

// MediaPost is the terminal aggregate for one matched link.
//
// Media is never empty: a post with no downloadable media is represented
// as absence (a nil *MediaPost), so callers never have to special-case
// an empty slice.
type MediaPost struct {
	AuthorName   string
	AuthorHandle string
	Text         string
	URL          string
	Website      string
	Media        []MediaItem
}
