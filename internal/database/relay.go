package database

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/maltedev/catalog-scraper/internal/models"
	"github.com/redis/go-redis/v9"
)

// RedisClient is the subset of *redis.Client the relay publishes through
type RedisClient interface {
	XAdd(ctx context.Context, args *redis.XAddArgs) *redis.StringCmd
	Close() error
}

// OutboxRepo is the outbox access the relay needs
type OutboxRepo interface {
	GetPending(ctx context.Context, limit int) ([]*OutboxEvent, error)
	MarkProcessed(ctx context.Context, id uuid.UUID) error
	MarkFailed(ctx context.Context, id uuid.UUID, err error) error
	CountByStatus(ctx context.Context) (map[string]int64, error)
}

// Relay moves committed catalog events from the outbox table to Redis streams
type Relay struct {
	redis     RedisClient
	outbox    OutboxRepo
	logger    *slog.Logger
	interval  time.Duration
	batchSize int
	source    string
}

type RelayConfig struct {
	PollInterval time.Duration
	BatchSize    int
	// Source is stamped into the metadata of every published event.
	Source string
}

func NewRelay(db *DB, redisClient RedisClient, logger *slog.Logger, config RelayConfig) *Relay {
	if config.PollInterval == 0 {
		config.PollInterval = 5 * time.Second
	}
	if config.BatchSize == 0 {
		config.BatchSize = 100
	}
	if config.Source == "" {
		config.Source = "catalog-scraper"
	}

	return &Relay{
		redis:     redisClient,
		outbox:    NewOutboxRepository(db),
		logger:    logger.With("component", "relay"),
		interval:  config.PollInterval,
		batchSize: config.BatchSize,
		source:    config.Source,
	}
}

// Start processes the outbox every poll interval until ctx is done.
func (r *Relay) Start(ctx context.Context) error {
	r.logger.Info("starting relay",
		"interval", r.interval,
		"batch_size", r.batchSize)

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	if err := r.processEvents(ctx); err != nil {
		r.logger.Error("failed to process events on startup", "error", err)
	}

	for {
		select {
		case <-ctx.Done():
			r.logger.Info("relay stopped")
			return ctx.Err()
		case <-ticker.C:
			if err := r.processEvents(ctx); err != nil {
				r.logger.Error("failed to process events", "error", err)
			}
		}
	}
}

// Flush publishes one batch immediately.
func (r *Relay) Flush(ctx context.Context) error {
	return r.processEvents(ctx)
}

func (r *Relay) processEvents(ctx context.Context) error {
	events, err := r.outbox.GetPending(ctx, r.batchSize)
	if err != nil {
		return fmt.Errorf("failed to get pending events: %w", err)
	}

	if len(events) == 0 {
		return nil
	}

	r.logger.Debug("processing events", "count", len(events))

	for _, event := range events {
		if err := r.processEvent(ctx, event); err != nil {
			r.logger.Error("failed to process event",
				"event_id", event.ID,
				"aggregate_id", event.AggregateID,
				"error", err)
		}
	}

	return nil
}

func (r *Relay) processEvent(ctx context.Context, event *OutboxEvent) error {
	if err := r.publishToRedis(ctx, event); err != nil {
		if markErr := r.outbox.MarkFailed(ctx, event.ID, err); markErr != nil {
			r.logger.Error("failed to mark event as failed",
				"event_id", event.ID,
				"error", markErr)
		}
		return err
	}

	if err := r.outbox.MarkProcessed(ctx, event.ID); err != nil {
		r.logger.Error("failed to mark catalog event as processed",
			"event_id", event.ID,
			"error", err)
		return err
	}

	r.logger.Info("catalog change published",
		"event_id", event.ID,
		"change", event.EventType,
		"identity_key", event.AggregateID,
		"stream", event.TargetStream)

	return nil
}

// streamMessage is the "data" field of every catalog stream entry.
type streamMessage struct {
	EventID    string       `json:"event_id"`
	Change     string       `json:"change"`
	Key        string       `json:"identity_key"`
	Record     CatalogEvent `json:"record"`
	Source     string       `json:"source"`
	Attempt    int          `json:"attempt"`
	EnqueuedAt time.Time    `json:"enqueued_at"`
}

func (r *Relay) publishToRedis(ctx context.Context, event *OutboxEvent) error {
	var record CatalogEvent
	if err := json.Unmarshal(event.Payload, &record); err != nil {
		return fmt.Errorf("failed to decode catalog event: %w", err)
	}
	if err := record.validate(); err != nil {
		return err
	}

	data, err := json.Marshal(streamMessage{
		EventID:    event.ID.String(),
		Change:     event.EventType,
		Key:        event.AggregateID,
		Record:     record,
		Source:     r.source,
		Attempt:    event.RetryCount + 1,
		EnqueuedAt: event.CreatedAt,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal stream message: %w", err)
	}

	args := &redis.XAddArgs{
		Stream: event.TargetStream,
		Values: map[string]interface{}{
			"data":         string(data),
			"change":       event.EventType,
			"identity_key": event.AggregateID,
			"category":     record.Category,
			"sources":      joinSites(record.Sources),
			"last_updated": record.LastUpdated.Format(time.RFC3339Nano),
			"event_id":     event.ID.String(),
		},
	}

	if _, err := r.redis.XAdd(ctx, args).Result(); err != nil {
		return fmt.Errorf("failed to publish to redis: %w", err)
	}

	return nil
}

func joinSites(sites []models.SiteID) string {
	parts := make([]string, len(sites))
	for i, s := range sites {
		parts[i] = string(s)
	}
	return strings.Join(parts, ",")
}

// Backlog returns the number of events still waiting to be published and the
// number parked in dead letter.
func (r *Relay) Backlog(ctx context.Context) (pending, deadLetter int64, err error) {
	counts, err := r.outbox.CountByStatus(ctx)
	if err != nil {
		return 0, 0, err
	}
	return counts[OutboxStatusPending] + counts[OutboxStatusFailed], counts[OutboxStatusDeadLetter], nil
}
