package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/maltedev/listing-scraper/internal/models"
)

type EventType string

const (
	// EventTypeListingRunCommitted is published after a run's transaction commits.
	EventTypeListingRunCommitted EventType = "LISTING_RUN_COMMITTED"

	DefaultStream = "stream:listing_runs"
)

// RedisClient is the subset of the redis client the publisher needs.
type RedisClient interface {
	XAdd(ctx context.Context, args *redis.XAddArgs) *redis.StringCmd
	Close() error
}

type RunCommittedPayload struct {
	EventID   string            `json:"event_id"`
	EventType string            `json:"event_type"`
	Timestamp time.Time         `json:"timestamp"`
	Source    string            `json:"source"`
	Report    *models.RunReport `json:"report"`
}

// Publisher appends run events to a Redis stream. It satisfies
// scraper.RunPublisher.
type Publisher struct {
	redis  RedisClient
	stream string
	logger *slog.Logger
}

func NewPublisher(client RedisClient, stream string, logger *slog.Logger) *Publisher {
	if stream == "" {
		stream = DefaultStream
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Publisher{
		redis:  client,
		stream: stream,
		logger: logger.With("component", "event_publisher"),
	}
}

func (p *Publisher) PublishRun(ctx context.Context, report *models.RunReport) error {
	payload := &RunCommittedPayload{
		EventID:   uuid.New().String(),
		EventType: string(EventTypeListingRunCommitted),
		Timestamp: time.Now().UTC(),
		Source:    "listing-scraper",
		Report:    report,
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	args := &redis.XAddArgs{
		Stream: p.stream,
		Values: map[string]interface{}{
			"data":         string(data),
			"type":         payload.EventType,
			"event_id":     payload.EventID,
			"aggregate_id": report.RunID,
			"timestamp":    fmt.Sprintf("%d", payload.Timestamp.UnixNano()),
		},
	}

	id, err := p.redis.XAdd(ctx, args).Result()
	if err != nil {
		return fmt.Errorf("failed to publish to redis: %w", err)
	}

	p.logger.Info("run event published",
		"stream", p.stream,
		"stream_id", id,
		"event_id", payload.EventID,
		"run_id", report.RunID,
		"rows_committed", report.Committed)

	return nil
}

func (p *Publisher) Close() error {
	return p.redis.Close()
}
