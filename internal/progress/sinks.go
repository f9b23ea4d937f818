package progress

import (
	"context"
	"fmt"

	"go.uber.org/zap"
)

// LogSink writes every event as a structured log line.
type LogSink struct {
	logger *zap.Logger
}

// NewLogSink returns a LogSink writing to logger.
func NewLogSink(logger *zap.Logger) *LogSink {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogSink{logger: logger}
}

// Consume logs each event in the batch.
func (s *LogSink) Consume(_ context.Context, batch []Event) error {
	for _, evt := range batch {
		s.logger.Info("Crawl progress",
			zap.String("crawl_id", evt.CrawlID),
			zap.String("stage", string(evt.Stage)),
			zap.String("url", evt.URL),
			zap.Int("depth", evt.Depth),
			zap.Int64("bytes", evt.Bytes),
			zap.String("status_class", string(evt.StatusClass)),
			zap.Duration("dur", evt.Dur),
			zap.Int("pages", evt.Pages),
			zap.String("note", evt.Note),
		)
	}
	return nil
}

// Close implements Sink.
func (s *LogSink) Close(context.Context) error {
	return nil
}

// Publisher is the message bus a PublishSink forwards batches to.
type Publisher interface {
	Publish(ctx context.Context, topic string, payload any) (string, error)
}

// Batch is the payload a PublishSink sends for each flush.
type Batch struct {
	Events []Event `json:"events"`
}

// PublishSink publishes each batch as one message on a topic.
type PublishSink struct {
	publisher Publisher
	topic     string
}

// NewPublishSink returns a sink publishing to topic.
func NewPublishSink(publisher Publisher, topic string) *PublishSink {
	return &PublishSink{publisher: publisher, topic: topic}
}

// Consume publishes the batch.
func (s *PublishSink) Consume(ctx context.Context, batch []Event) error {
	if _, err := s.publisher.Publish(ctx, s.topic, Batch{Events: batch}); err != nil {
		return fmt.Errorf("publish progress batch: %w", err)
	}
	return nil
}

// Close implements Sink. The publisher is owned by the caller.
func (s *PublishSink) Close(context.Context) error {
	return nil
}
