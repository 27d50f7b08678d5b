package domain

import "errors"

// Retrieval and pipeline errors. Classification happens at the retrieval
// engine boundary; the transport layer translates these into a small set of
// human-readable messages.
var (
	// ErrInvalidURL is returned when the URL does not match a known
	// watch/short/embed pattern. No network call is made.
	ErrInvalidURL = errors.New("invalid YouTube URL")

	// ErrUnavailable is returned when the video is private or deleted.
	// Not recoverable by switching retrieval strategy.
	ErrUnavailable = errors.New("video is unavailable or private")

	// ErrAgeRestricted is returned for age-gated videos.
	ErrAgeRestricted = errors.New("video is age-restricted")

	// ErrRegionBlocked is returned for region-locked videos.
	ErrRegionBlocked = errors.New("video is not available in this region")

	// ErrUpstreamBlocked is returned when the upstream service challenged
	// the request as automated traffic.
	ErrUpstreamBlocked = errors.New("upstream blocked the request")

	// ErrUpstreamChanged is returned when the upstream page or format
	// structure changed in a way the active strategy cannot parse.
	ErrUpstreamChanged = errors.New("upstream format changed")

	// ErrEmptyOutput is returned when a retrieval strategy produced a
	// zero-byte file.
	ErrEmptyOutput = errors.New("retrieval produced an empty file")

	// ErrOutputMissing is returned when a retrieval strategy reported
	// success but the expected output could not be found or decoded.
	ErrOutputMissing = errors.New("retrieval output missing")

	// ErrTranslationUnavailable is returned when no translation credential
	// is configured. Callers must treat this as skip, not failure.
	ErrTranslationUnavailable = errors.New("translation credential not configured")

	// ErrRateLimited is returned when a client exceeds the request quota.
	ErrRateLimited = errors.New("rate limit exceeded")
)
