package domain

import "errors"

// Domain errors.
//
// These mark recoverable failures: the engine logs them and falls back
// (next mirror, next URL, or overall absence). "Content does not exist"
// is never an error; it is a nil post.
var (
	// ErrInvalidStatus is returned when an upstream responds with an
	// unexpected HTTP status code.
	ErrInvalidStatus = errors.New("unexpected status code")

	// ErrMediaTooLarge is returned when a media payload exceeds the
	// configured byte ceiling.
	ErrMediaTooLarge = errors.New("media exceeds size limit")

	// ErrChallengeFailed is returned when a bot challenge was detected
	// but could not be solved within budget, or the mirror kept serving
	// the challenge after submission.
	ErrChallengeFailed = errors.New("bot challenge could not be solved")

	// ErrNoVariant is returned when an HLS manifest contains no
	// parseable stream variant.
	ErrNoVariant = errors.New("no stream variant in manifest")
)
