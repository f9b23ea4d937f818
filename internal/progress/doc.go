// Package progress streams crawl progress events from workers to pluggable
// sinks. Events are buffered and batched on a background goroutine so the
// crawl never waits on a slow sink.
package progress
