package progress

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Stage names the crawl milestone an Event reports.
type Stage string

// Supported stages.
const (
	StageCrawlStart Stage = "CRAWL_START"
	StagePageDone   Stage = "PAGE_DONE"
	StagePageFailed Stage = "PAGE_FAILED"
	StageCrawlDone  Stage = "CRAWL_DONE"
)

// StatusClass is a coarse HTTP response grouping.
type StatusClass string

// Supported HTTP status classes.
const (
	Status2xx   StatusClass = "2xx"
	Status3xx   StatusClass = "3xx"
	Status4xx   StatusClass = "4xx"
	Status5xx   StatusClass = "5xx"
	StatusOther StatusClass = "other"
)

// Event is one crawl milestone.
type Event struct {
	// CrawlID groups the events of a single Crawl call.
	CrawlID     string        `json:"crawl_id"`
	TS          time.Time     `json:"ts"`
	Stage       Stage         `json:"stage"`
	Seed        string        `json:"seed,omitempty"`
	URL         string        `json:"url,omitempty"`
	Depth       int           `json:"depth"`
	Bytes       int64         `json:"bytes,omitempty"`
	StatusClass StatusClass   `json:"status_class,omitempty"`
	Dur         time.Duration `json:"dur_ns,omitempty"`
	// Pages is the number of extracted records; set on CRAWL_DONE.
	Pages       int           `json:"pages,omitempty"`
	Note        string        `json:"note,omitempty"`
}

// Validate performs coarse validation on an Event.
func (e Event) Validate() error {
	if e.CrawlID == "" {
		return errors.New("crawl id is required")
	}
	if e.TS.IsZero() {
		return errors.New("timestamp is required")
	}
	switch e.Stage {
	case StageCrawlStart, StageCrawlDone:
	case StagePageDone:
		if e.URL == "" {
			return errors.New("page done requires url")
		}
		if e.StatusClass == "" {
			return errors.New("page done requires status class")
		}
	case StagePageFailed:
		if e.URL == "" {
			return errors.New("page failed requires url")
		}
	default:
		return fmt.Errorf("unknown stage %q", e.Stage)
	}
	if e.Dur < 0 {
		return errors.New("duration must be >= 0")
	}
	return nil
}

// ClassifyStatus groups HTTP status codes.
func ClassifyStatus(code int) StatusClass {
	switch {
	case code >= 200 && code < 300:
		return Status2xx
	case code >= 300 && code < 400:
		return Status3xx
	case code >= 400 && code < 500:
		return Status4xx
	case code >= 500 && code < 600:
		return Status5xx
	default:
		return StatusOther
	}
}

// Sink consumes batches of events. Implementations may be called from the
// hub goroutine only, but must honor ctx deadlines.
type Sink interface {
	Consume(ctx context.Context, batch []Event) error
	Close(ctx context.Context) error
}

// Emitter accepts single events without blocking.
type Emitter interface {
	Emit(evt Event)
}

// Discard is an Emitter that drops every event.
type Discard struct{}

// Emit implements Emitter.
func (Discard) Emit(Event) {}
