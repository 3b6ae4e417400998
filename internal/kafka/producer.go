package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/b3quotes/b3-quote-service/internal/models"
)

// Producer handles publishing events to Kafka
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

// PublishDayLoaded publishes an event announcing that a trading day's
// quotes were committed
func (p *Producer) PublishDayLoaded(ctx context.Context, dayKey string, quotes int64) error {
	event := models.DayEvent{
		EventType: "DAY_LOADED",
		DayKey:    dayKey,
		Quotes:    quotes,
		Timestamp: time.Now(),
	}
	return p.publish(ctx, dayKey, event)
}

func (p *Producer) publish(ctx context.Context, key string, event models.DayEvent) error {
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
