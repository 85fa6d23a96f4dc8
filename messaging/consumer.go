package messaging

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/giygas/cureid-api/caseparser/entities"
	"github.com/giygas/cureid-api/interfaces"
	"github.com/giygas/cureid-api/logging"
)

// Reader is the part of kafka.Reader the consumer uses.
type Reader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// NewKafkaReader creates a consumer group reader over topics.
func NewKafkaReader(brokers []string, groupID string, topics ...string) *kafka.Reader {
	return kafka.NewReader(kafka.ReaderConfig{
		Brokers:     brokers,
		GroupID:     groupID,
		GroupTopics: topics,
		MinBytes:    1,
		MaxBytes:    10 * 1024 * 1024,
		MaxWait:     time.Second,
		StartOffset: kafka.FirstOffset,
	})
}

// Consumer persists the entries published by KafkaSink. Every message is
// committed after one attempt, whether or not persisting it succeeded.
type Consumer struct {
	reader       Reader
	persister    interfaces.EntryPersister
	drugTopic    string
	regimenTopic string
	fetchBackoff time.Duration
}

// NewConsumer creates a consumer for the drug and regimen topics.
func NewConsumer(reader Reader, persister interfaces.EntryPersister, drugTopic, regimenTopic string) *Consumer {
	return &Consumer{
		reader:       reader,
		persister:    persister,
		drugTopic:    drugTopic,
		regimenTopic: regimenTopic,
		fetchBackoff: time.Second,
	}
}

// Run consumes until ctx is cancelled.
func (c *Consumer) Run(ctx context.Context) error {
	logging.Info("Entry consumer started", "drug_topic", c.drugTopic, "regimen_topic", c.regimenTopic)
	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				logging.Info("Entry consumer stopped")
				return nil
			}
			logging.Error("Failed to fetch message", "error", err)
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(c.fetchBackoff):
			}
			continue
		}

		if err := c.handle(ctx, msg); err != nil {
			logging.Error("Failed to persist entry",
				"topic", msg.Topic,
				"partition", msg.Partition,
				"offset", msg.Offset,
				"key", string(msg.Key),
				"error", err,
			)
		}
		if err := c.reader.CommitMessages(ctx, msg); err != nil {
			logging.Error("Failed to commit message", "topic", msg.Topic, "offset", msg.Offset, "error", err)
		}
	}
}

func (c *Consumer) handle(ctx context.Context, msg kafka.Message) error {
	switch msg.Topic {
	case c.drugTopic:
		var entry entities.DrugEntry
		if err := json.Unmarshal(msg.Value, &entry); err != nil {
			return fmt.Errorf("decode drug entry: %w", err)
		}
		return c.persister.PersistDrug(ctx, &entry)
	case c.regimenTopic:
		var entry entities.RegimenEntry
		if err := json.Unmarshal(msg.Value, &entry); err != nil {
			return fmt.Errorf("decode regimen entry: %w", err)
		}
		_, err := c.persister.PersistRegimen(ctx, &entry)
		return err
	}
	logging.Warn("Message on unknown topic", "topic", msg.Topic)
	return nil
}

// Close closes the reader.
func (c *Consumer) Close() error {
	return c.reader.Close()
}
