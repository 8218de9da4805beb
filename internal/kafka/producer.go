package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/trogers1052/portfolio-ledger/internal/models"
)

// Producer handles publishing sync lifecycle events to Kafka
type Producer struct {
	writer *kafka.Writer
	topic  string
}

// NewProducer creates a new Kafka producer
func NewProducer(brokers []string, topic string) *Producer {
	writer := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.LeastBytes{},
		BatchTimeout: 10 * time.Millisecond,
	}

	return &Producer{
		writer: writer,
		topic:  topic,
	}
}

// PublishSyncResult publishes the outcome of one account sync. Keyed by
// account ID so results for the same account stay ordered.
func (p *Producer) PublishSyncResult(ctx context.Context, result *models.SyncResult) error {
	eventType := "SYNC_COMPLETED"
	if result.Status == models.SyncResultError {
		eventType = "SYNC_FAILED"
	}
	event := models.SyncEvent{
		EventType: eventType,
		AccountID: result.AccountID,
		Result:    result,
		Timestamp: time.Now(),
	}
	return p.publish(ctx, strconv.Itoa(result.AccountID), event)
}

// PublishSyncRequested publishes a request to sync one account.
func (p *Producer) PublishSyncRequested(ctx context.Context, accountID int) error {
	event := models.SyncEvent{
		EventType: "SYNC_REQUESTED",
		AccountID: accountID,
		Timestamp: time.Now(),
	}
	return p.publish(ctx, strconv.Itoa(accountID), event)
}

func (p *Producer) publish(ctx context.Context, key string, event models.SyncEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	msg := kafka.Message{
		Key:   []byte(key),
		Value: data,
	}

	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("failed to write message to kafka: %w", err)
	}

	return nil
}

// Close closes the Kafka producer
func (p *Producer) Close() error {
	return p.writer.Close()
}
