package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/trogers1052/portfolio-ledger/internal/models"
)

// Syncer runs account syncs on behalf of consumed requests
type Syncer interface {
	SyncAccount(ctx context.Context, accountID int) (*models.SyncResult, error)
	SyncAllAccounts(ctx context.Context, userID int) ([]*models.SyncResult, error)
}

// Consumer handles consuming sync request events from Kafka
type Consumer struct {
	reader *kafka.Reader
	syncer Syncer
}

// NewConsumer creates a new Kafka consumer for sync requests
func NewConsumer(brokers []string, topic, groupID string, syncer Syncer) *Consumer {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:        brokers,
		Topic:          topic,
		GroupID:        groupID,
		MinBytes:       10e3, // 10KB
		MaxBytes:       10e6, // 10MB
		MaxWait:        1 * time.Second,
		StartOffset:    kafka.FirstOffset,
		CommitInterval: time.Second,
	})

	return &Consumer{
		reader: reader,
		syncer: syncer,
	}
}

// Start begins consuming messages from Kafka
func (c *Consumer) Start(ctx context.Context) error {
	log.Printf("Starting Kafka consumer for topic: %s", c.reader.Config().Topic)

	for {
		select {
		case <-ctx.Done():
			log.Println("Kafka consumer shutting down...")
			return c.reader.Close()
		default:
			msg, err := c.reader.ReadMessage(ctx)
			if err != nil {
				if ctx.Err() != nil {
					return nil // Context cancelled, normal shutdown
				}
				log.Printf("Error reading message: %v", err)
				continue
			}

			if err := c.processMessage(ctx, msg); err != nil {
				log.Printf("Error processing message: %v", err)
				// Continue processing other messages
			}
		}
	}
}

// processMessage handles a single Kafka message
func (c *Consumer) processMessage(ctx context.Context, msg kafka.Message) error {
	log.Printf("Received message from partition %d offset %d: key=%s",
		msg.Partition, msg.Offset, string(msg.Key))

	var event models.SyncEvent
	if err := json.Unmarshal(msg.Value, &event); err != nil {
		return fmt.Errorf("failed to unmarshal sync event: %w", err)
	}

	switch event.EventType {
	case "SYNC_REQUESTED":
		if event.AccountID == 0 {
			return fmt.Errorf("sync request missing account id")
		}
		result, err := c.syncer.SyncAccount(ctx, event.AccountID)
		if err != nil {
			return fmt.Errorf("failed to sync account %d: %w", event.AccountID, err)
		}
		log.Printf("Synced account %d: %s", event.AccountID, result.Status)
		return nil
	case "SYNC_ALL_REQUESTED":
		if event.UserID == 0 {
			return fmt.Errorf("sync-all request missing user id")
		}
		results, err := c.syncer.SyncAllAccounts(ctx, event.UserID)
		if err != nil {
			return fmt.Errorf("failed to sync accounts for user %d: %w", event.UserID, err)
		}
		log.Printf("Synced %d accounts for user %d", len(results), event.UserID)
		return nil
	default:
		log.Printf("Ignoring event type: %s", event.EventType)
		return nil
	}
}

// Close closes the Kafka consumer
func (c *Consumer) Close() error {
	return c.reader.Close()
}
