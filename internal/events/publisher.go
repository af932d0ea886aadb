// Package events publishes batch completion events. Publishing is
// best-effort and asynchronous to the request path; a publish failure
// never changes a batch outcome.
package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/finclear/oms/pkg/models"
)

// BatchResultEvent is the message emitted once per completed batch
type BatchResultEvent struct {
	BatchID        string    `json:"batchId"`
	Status         string    `json:"status"`
	TotalRequested int       `json:"totalRequested"`
	Successful     int       `json:"successful"`
	Failed         int       `json:"failed"`
	CompletedAt    time.Time `json:"completedAt"`
}

// Publisher emits batch lifecycle events
type Publisher interface {
	PublishBatchResult(ctx context.Context, batchID uuid.UUID, result *models.BatchSubmitResult)
	Close() error
}

// KafkaPublisher wraps a Kafka writer
type KafkaPublisher struct {
	writer *kafka.Writer
	logger *zap.Logger
}

var _ Publisher = (*KafkaPublisher)(nil)

// NewKafkaPublisher creates a publisher writing to the given topic
func NewKafkaPublisher(brokers []string, topic string, logger *zap.Logger) *KafkaPublisher {
	w := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.LeastBytes{},
		WriteTimeout: 5 * time.Second,
	}
	return &KafkaPublisher{writer: w, logger: logger}
}

// PublishBatchResult sends one batch completion event
func (p *KafkaPublisher) PublishBatchResult(ctx context.Context, batchID uuid.UUID, result *models.BatchSubmitResult) {
	event := BatchResultEvent{
		BatchID:        batchID.String(),
		Status:         result.Status,
		TotalRequested: result.TotalRequested,
		Successful:     result.Successful,
		Failed:         result.Failed,
		CompletedAt:    time.Now().UTC(),
	}
	value, err := json.Marshal(event)
	if err != nil {
		p.logger.Warn("failed to encode batch event", zap.Error(err))
		return
	}
	err = p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(batchID.String()),
		Value: value,
	})
	if err != nil {
		p.logger.Warn("failed to publish batch event", zap.String("batch_id", batchID.String()), zap.Error(err))
	}
}

// Close shuts down the Kafka writer
func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}

// NoopPublisher drops all events; used when Kafka is not configured
type NoopPublisher struct{}

var _ Publisher = (*NoopPublisher)(nil)

func (NoopPublisher) PublishBatchResult(context.Context, uuid.UUID, *models.BatchSubmitResult) {}

func (NoopPublisher) Close() error { return nil }
