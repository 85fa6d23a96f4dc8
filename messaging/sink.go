// Package messaging moves entries between the ingestion pipeline and the
// persistence workers through Kafka topics, one topic per entry kind.
package messaging

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/giygas/cureid-api/caseparser/entities"
	"github.com/giygas/cureid-api/interfaces"
)

var _ interfaces.EntrySink = (*KafkaSink)(nil)

const typeHeader = "type"

// Writer is the part of kafka.Writer the sink uses.
type Writer interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// NewKafkaWriter creates a writer that takes the topic from each message.
func NewKafkaWriter(brokers []string) *kafka.Writer {
	return &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireAll,
		BatchTimeout:           50 * time.Millisecond,
		AllowAutoTopicCreation: true,
	}
}

// KafkaSink publishes entries as JSON. Drug entries are keyed by drug id and
// regimen entries by regimen id.
type KafkaSink struct {
	writer       Writer
	drugTopic    string
	regimenTopic string
}

// NewKafkaSink creates a sink publishing to the two topics.
func NewKafkaSink(writer Writer, drugTopic, regimenTopic string) *KafkaSink {
	return &KafkaSink{writer: writer, drugTopic: drugTopic, regimenTopic: regimenTopic}
}

func (s *KafkaSink) EmitDrug(ctx context.Context, entry *entities.DrugEntry) error {
	return s.publish(ctx, s.drugTopic, strconv.Itoa(entry.DrugID), entities.DrugEntryTypeName, entry)
}

func (s *KafkaSink) EmitRegimen(ctx context.Context, entry *entities.RegimenEntry) error {
	return s.publish(ctx, s.regimenTopic, strconv.Itoa(entry.RegimenID), entities.RegimenEntryTypeName, entry)
}

func (s *KafkaSink) publish(ctx context.Context, topic, key, typeName string, entry any) error {
	value, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("encode %s: %w", typeName, err)
	}
	msg := kafka.Message{
		Topic:   topic,
		Key:     []byte(key),
		Value:   value,
		Headers: []kafka.Header{{Key: typeHeader, Value: []byte(typeName)}},
	}
	if err := s.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("publish %s to %s: %w", typeName, topic, err)
	}
	return nil
}

// Close flushes pending messages.
func (s *KafkaSink) Close() error {
	return s.writer.Close()
}
