package crawler

import (
	"context"
	"io"
	"time"
)

// Renderer fetches a URL and returns the rendered page.
type Renderer interface {
	Fetch(ctx context.Context, url string) (*RenderedPage, error)
}

// Extractor pulls structured content out of a rendered page.
type Extractor interface {
	Extract(ctx context.Context, page *RenderedPage) (PageRecord, error)
}

// LinkEnumerator lists the raw hrefs (absolute or relative) found on a page.
type LinkEnumerator interface {
	Links(ctx context.Context, page *RenderedPage) ([]string, error)
}

// Pauser blocks for a politeness delay, returning early when ctx ends.
type Pauser interface {
	Pause(ctx context.Context, delay time.Duration)
}

// DomainLimiter throttles requests per host.
type DomainLimiter interface {
	Wait(ctx context.Context, url string) error
}

// Summarizer condenses page markdown into a short summary.
type Summarizer interface {
	Summarize(ctx context.Context, text string) (string, error)
}

// BlobStore writes and reads report artifacts.
type BlobStore interface {
	PutObject(ctx context.Context, path string, contentType string, data io.Reader) (string, error)
	GetObject(ctx context.Context, path string) ([]byte, error)
}

// Publisher pushes completion events to Pub/Sub (or similar).
type Publisher interface {
	Publish(ctx context.Context, topic string, payload any) (string, error)
}

// RunStore persists the history of completed crawl runs.
type RunStore interface {
	RecordRun(ctx context.Context, run RunRecord) error
	GetRun(ctx context.Context, id string) (RunRecord, error)
	ListRuns(ctx context.Context, limit int) ([]RunRecord, error)
}

// Hasher computes digests for report integrity.
type Hasher interface {
	Hash(data []byte) (string, error)
}

// Clock returns the current time (useful for testing).
type Clock interface {
	Now() time.Time
}

// IDGenerator produces run IDs and report file tokens.
type IDGenerator interface {
	NewID() (string, error)
	NewHexID() (string, error)
}

// RunRecord describes one completed crawl and its report files.
type RunRecord struct {
	ID          string    `json:"id"`
	SeedURL     string    `json:"seed_url"`
	MaxDepth    int       `json:"max_depth"`
	Pages       int       `json:"pages"`
	SummaryFile string    `json:"summary_file"`
	ReportFile  string    `json:"report_file"`
	SummaryHash string    `json:"summary_hash"`
	StartedAt   time.Time `json:"started_at"`
	FinishedAt  time.Time `json:"finished_at"`
}
