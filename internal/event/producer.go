package event

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/utafrali/bulkpromo/internal/domain"
	pkgkafka "github.com/utafrali/bulkpromo/pkg/kafka"
	"github.com/utafrali/bulkpromo/pkg/logger"
)

// Kafka topic constants for batch domain events.
const (
	TopicBatchGenerated = "bulkpromo.batch.generated"
	TopicBatchFailed    = "bulkpromo.batch.failed"
)

// AggregateTypeBatch is the aggregate type of every batch event.
const AggregateTypeBatch = "code_batch"

// SourceBulkPromo identifies events originating from this service.
const SourceBulkPromo = "bulkpromo-service"

// BatchGeneratedData is the payload for a batch.generated event.
type BatchGeneratedData struct {
	BatchID        string  `json:"batch_id"`
	IdempotencyKey string  `json:"idempotency_key"`
	CreatedCount   int     `json:"created_count"`
	Type           string  `json:"type"`
	Prefix         string  `json:"prefix,omitempty"`
	Suffix         string  `json:"suffix,omitempty"`
	BaseValue      float64 `json:"base_value"`
	Randomized     bool    `json:"randomized"`
}

// BatchFailedData is the payload for a batch.failed event.
type BatchFailedData struct {
	IdempotencyKey string `json:"idempotency_key"`
	Count          int    `json:"count"`
	Type           string `json:"type"`
	Prefix         string `json:"prefix,omitempty"`
	Reason         string `json:"reason"`
}

// Publisher is the part of pkg/kafka.Producer used here.
type Publisher interface {
	Publish(ctx context.Context, topic string, event *pkgkafka.Event) error
}

// Producer publishes batch domain events to Kafka.
type Producer struct {
	kafka  Publisher
	logger *slog.Logger
}

// NewProducer creates a new event producer.
func NewProducer(kafka Publisher, logger *slog.Logger) *Producer {
	return &Producer{
		kafka:  kafka,
		logger: logger,
	}
}

// PublishBatchGenerated publishes a batch.generated event.
func (p *Producer) PublishBatchGenerated(ctx context.Context, key string, t domain.DiscountTemplate, s domain.GenerationSettings, receipt *domain.CommitReceipt) error {
	data := BatchGeneratedData{
		BatchID:        receipt.BatchID,
		IdempotencyKey: key,
		CreatedCount:   receipt.CreatedCount,
		Type:           string(t.Type),
		Prefix:         s.Prefix,
		Suffix:         s.Suffix,
		BaseValue:      t.Value,
		Randomized:     s.VariationActive(),
	}

	event, err := pkgkafka.NewEvent(TopicBatchGenerated, receipt.BatchID, AggregateTypeBatch, SourceBulkPromo, data)
	if err != nil {
		return fmt.Errorf("create batch.generated event: %w", err)
	}
	tagEvent(ctx, event)

	if err := p.kafka.Publish(ctx, TopicBatchGenerated, event); err != nil {
		return fmt.Errorf("publish batch.generated event: %w", err)
	}

	p.logger.DebugContext(ctx, "published batch.generated event",
		slog.String("batch_id", receipt.BatchID),
		slog.Int("created_count", receipt.CreatedCount),
	)
	return nil
}

// PublishBatchFailed publishes a batch.failed event. The idempotency key is
// the aggregate id because no batch id exists yet.
func (p *Producer) PublishBatchFailed(ctx context.Context, key string, t domain.DiscountTemplate, s domain.GenerationSettings, cause error) error {
	data := BatchFailedData{
		IdempotencyKey: key,
		Count:          s.Count,
		Type:           string(t.Type),
		Prefix:         s.Prefix,
		Reason:         cause.Error(),
	}

	event, err := pkgkafka.NewEvent(TopicBatchFailed, key, AggregateTypeBatch, SourceBulkPromo, data)
	if err != nil {
		return fmt.Errorf("create batch.failed event: %w", err)
	}
	tagEvent(ctx, event)

	if err := p.kafka.Publish(ctx, TopicBatchFailed, event); err != nil {
		return fmt.Errorf("publish batch.failed event: %w", err)
	}

	p.logger.DebugContext(ctx, "published batch.failed event",
		slog.String("idempotency_key", key),
	)
	return nil
}

// tagEvent copies the request correlation id and editing session id onto the event.
func tagEvent(ctx context.Context, event *pkgkafka.Event) {
	if id := logger.CorrelationIDFromContext(ctx); id != "" {
		event.WithCorrelationID(id)
	}
	if id := logger.SessionIDFromContext(ctx); id != "" {
		event.WithMetadata("session_id", id)
	}
}
