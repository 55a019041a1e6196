package messaging

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	json "github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
	"github.com/sirupsen/logrus"

	"github.com/temcen/storerec/internal/config"
	"github.com/temcen/storerec/internal/services"
	"github.com/temcen/storerec/internal/validation"
)

const (
	maxRetries       = 3
	defaultBaseDelay = time.Second
	maxBackoff       = 30 * time.Second
)

var ErrInvalidEvent = errors.New("invalid catalog event")

// CatalogEvent announces a change to a product, a category or a review.
type CatalogEvent struct {
	ID         uuid.UUID `json:"id"`
	Type       string    `json:"type"`
	EntityID   string    `json:"entity_id,omitempty"`
	OccurredAt time.Time `json:"occurred_at,omitempty"`
}

// ArtifactsFor maps an event type to the artifacts derived from the changed
// entity. Product and category changes alter the catalog snapshot and
// therefore the content index built from it; reviews only feed ratings.
func ArtifactsFor(eventType string) ([]string, bool) {
	entity, _, _ := strings.Cut(eventType, ".")
	switch entity {
	case "product", "category":
		return []string{services.ArtifactCatalog, services.ArtifactContent}, true
	case "review":
		return []string{services.ArtifactCollaborative}, true
	}
	return nil, false
}

// MessageReader is the subset of *kafka.Reader the consumer needs.
type MessageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type Invalidator interface {
	Invalidate(ctx context.Context, artifacts ...string) ([]string, error)
}

// InvalidationConsumer deletes cached artifacts when the catalog changes so
// the next request rebuilds them from the database.
type InvalidationConsumer struct {
	reader    MessageReader
	artifacts Invalidator
	validator *validation.SchemaValidator
	logger    *logrus.Logger
	baseDelay time.Duration
}

func NewInvalidationConsumer(cfg *config.KafkaConfig, artifacts Invalidator, logger *logrus.Logger) (*InvalidationConsumer, error) {
	if len(cfg.Brokers) == 0 {
		return nil, errors.New("no kafka brokers configured")
	}

	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:        cfg.Brokers,
		Topic:          cfg.Topics.CatalogEvents,
		GroupID:        cfg.GroupID,
		MinBytes:       1,
		MaxBytes:       1e6, // 1MB
		CommitInterval: 0,   // commit synchronously after each event
		StartOffset:    kafka.LastOffset,
	})

	return newInvalidationConsumer(reader, artifacts, logger)
}

func newInvalidationConsumer(reader MessageReader, artifacts Invalidator, logger *logrus.Logger) (*InvalidationConsumer, error) {
	validator, err := validation.NewSchemaValidator()
	if err != nil {
		return nil, fmt.Errorf("failed to load event schemas: %w", err)
	}

	return &InvalidationConsumer{
		reader:    reader,
		artifacts: artifacts,
		validator: validator,
		logger:    logger,
		baseDelay: defaultBaseDelay,
	}, nil
}

// Run consumes until ctx is cancelled. Invalid events are logged and
// committed. An event whose invalidation fails is retried with backoff until it
// succeeds; later events on the partition wait behind it, since committing one
// of them would commit past the failed offset.
func (c *InvalidationConsumer) Run(ctx context.Context) error {
	fetchFailures := 0
	for {
		message, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			c.logger.WithError(err).WithField("failures", fetchFailures+1).Error("Failed to read message from Kafka")
			if err := c.wait(ctx, c.backoff(fetchFailures)); err != nil {
				return err
			}
			fetchFailures++
			continue
		}
		fetchFailures = 0

		if err := c.process(ctx, message); err != nil {
			return err
		}

		if err := c.reader.CommitMessages(ctx, message); err != nil {
			c.logger.WithError(err).WithField("offset", message.Offset).Error("Failed to commit Kafka offset")
		}
	}
}

// process handles message until it either succeeds or is found invalid. It
// only returns an error when ctx is done.
func (c *InvalidationConsumer) process(ctx context.Context, message kafka.Message) error {
	for attempt := 0; ; attempt++ {
		err := c.Handle(ctx, message)
		if err == nil {
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if errors.Is(err, ErrInvalidEvent) {
			c.logger.WithError(err).WithField("offset", message.Offset).Warn("Skipping catalog event")
			return nil
		}

		c.logger.WithError(err).WithFields(logrus.Fields{
			"offset":  message.Offset,
			"attempt": attempt + 1,
		}).Error("Failed to process catalog event, holding partition")
		if err := c.wait(ctx, c.backoff(attempt)); err != nil {
			return err
		}
	}
}

// backoff doubles baseDelay per attempt up to maxBackoff.
func (c *InvalidationConsumer) backoff(attempt int) time.Duration {
	delay := c.baseDelay
	for i := 0; i < attempt && delay < maxBackoff; i++ {
		delay *= 2
	}
	if delay > maxBackoff {
		delay = maxBackoff
	}
	return delay
}

func (c *InvalidationConsumer) wait(ctx context.Context, delay time.Duration) error {
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Handle invalidates the artifacts affected by one event.
func (c *InvalidationConsumer) Handle(ctx context.Context, message kafka.Message) error {
	if err := c.validator.ValidateCatalogEvent(message.Value).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidEvent, err)
	}

	var event CatalogEvent
	if err := json.Unmarshal(message.Value, &event); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidEvent, err)
	}

	artifacts, ok := ArtifactsFor(event.Type)
	if !ok {
		return fmt.Errorf("%w: unsupported type %q", ErrInvalidEvent, event.Type)
	}

	invalidated, err := c.invalidateWithRetry(ctx, event, artifacts)
	if err != nil {
		return err
	}

	c.logger.WithFields(logrus.Fields{
		"event_id":  event.ID,
		"type":      event.Type,
		"entity_id": event.EntityID,
		"artifacts": invalidated,
	}).Info("Invalidated artifacts for catalog event")
	return nil
}

func (c *InvalidationConsumer) invalidateWithRetry(ctx context.Context, event CatalogEvent, artifacts []string) ([]string, error) {
	var lastErr error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		if attempt > 0 {
			delay := c.backoff(attempt - 1)
			c.logger.WithFields(logrus.Fields{
				"event_id": event.ID,
				"attempt":  attempt,
				"delay":    delay,
			}).Info("Retrying artifact invalidation")

			if err := c.wait(ctx, delay); err != nil {
				return nil, err
			}
		}

		invalidated, err := c.artifacts.Invalidate(ctx, artifacts...)
		if err == nil {
			return invalidated, nil
		}
		lastErr = err
		c.logger.WithError(err).WithFields(logrus.Fields{
			"event_id": event.ID,
			"attempt":  attempt,
		}).Warn("Artifact invalidation failed")
	}
	return nil, fmt.Errorf("max retries exceeded: %w", lastErr)
}

// Stats reports reader statistics when the reader is a *kafka.Reader.
func (c *InvalidationConsumer) Stats() map[string]interface{} {
	reader, ok := c.reader.(*kafka.Reader)
	if !ok {
		return nil
	}
	stats := reader.Stats()
	return map[string]interface{}{
		"consumer_lag":    stats.Lag,
		"consumer_offset": stats.Offset,
		"messages_read":   stats.Messages,
		"rebalances":      stats.Rebalances,
		"errors":          stats.Errors,
	}
}

func (c *InvalidationConsumer) Close() error {
	if err := c.reader.Close(); err != nil {
		return fmt.Errorf("failed to close consumer: %w", err)
	}
	return nil
}
