package crawler

import "errors"

var (
	// ErrFetch marks a page that could not be fetched or rendered.
	ErrFetch = errors.New("fetch failed")
	// ErrExtract marks a page that rendered but could not be extracted.
	ErrExtract = errors.New("extract failed")
	// ErrCoordination is a queue or worker-pool fault that aborts the crawl.
	ErrCoordination = errors.New("crawl coordination failure")
	// ErrFrontierClosed is returned by Push and Pop once the frontier is closed.
	ErrFrontierClosed = errors.New("frontier closed")
	// ErrFrontierFull is returned by Push when a bounded frontier is at capacity.
	ErrFrontierFull = errors.New("frontier full")
	// ErrCounterUnderflow means Done was called more times than Push succeeded.
	ErrCounterUnderflow = errors.New("frontier outstanding count below zero")
	// ErrNotFound is returned by stores when an object or record is missing.
	ErrNotFound = errors.New("not found")
)
