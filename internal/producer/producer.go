// Package producer publishes dispatched-advisory events to Kafka for
// downstream consumers.
package producer

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/segmentio/kafka-go"

	"cvewatch/internal/feed"
	"cvewatch/internal/severity"
)

// writeTimeout is the maximum time to wait for a Kafka write operation.
const writeTimeout = 10 * time.Second

// AdvisoryDispatched is the event published after each dispatch attempt.
type AdvisoryDispatched struct {
	CVEID        string  `json:"cve_id"`
	Source       string  `json:"source"`
	Severity     string  `json:"severity"`
	Score        float64 `json:"score"`
	Sent         bool    `json:"sent"`
	DispatchedAt string  `json:"dispatched_at"`
}

// Producer wraps a Kafka writer and publishes advisory dispatch events.
type Producer struct {
	writer *kafka.Writer
	topic  string
}

// NewProducer creates a Kafka producer configured for at-least-once delivery
// with synchronous writes, keyed by CVE ID.
func NewProducer(brokers string, topic string) (*Producer, error) {
	if brokers == "" {
		return nil, fmt.Errorf("brokers cannot be empty")
	}
	if topic == "" {
		return nil, fmt.Errorf("topic cannot be empty")
	}

	brokerList := strings.Split(brokers, ",")
	for i := range brokerList {
		brokerList[i] = strings.TrimSpace(brokerList[i])
	}

	writer := &kafka.Writer{
		Addr:         kafka.TCP(brokerList...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		WriteTimeout: writeTimeout,
		RequiredAcks: kafka.RequireOne,
		Async:        false,
	}

	slog.Info("Kafka producer configured",
		"brokers", brokerList,
		"topic", topic,
		"write_timeout", writeTimeout,
	)

	return &Producer{
		writer: writer,
		topic:  topic,
	}, nil
}

// Publish serializes the event to JSON and writes it to Kafka.
func (p *Producer) Publish(ctx context.Context, event *AdvisoryDispatched) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal advisory event: %w", err)
	}

	msg := kafka.Message{
		Key:   []byte(event.CVEID),
		Value: payload,
		Headers: []kafka.Header{
			{Key: "source", Value: []byte(event.Source)},
			{Key: "severity", Value: []byte(event.Severity)},
		},
		Time: time.Now(),
	}

	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("failed to write message to Kafka: %w", err)
	}

	slog.Debug("Published advisory event",
		"cve_id", event.CVEID,
		"topic", p.topic,
	)
	return nil
}

// AdvisoryProcessed implements the processor observer contract. Publish
// failures are logged and dropped; event delivery never blocks alerting.
func (p *Producer) AdvisoryProcessed(ctx context.Context, adv feed.Advisory, sent bool) {
	event := &AdvisoryDispatched{
		CVEID:        adv.ID,
		Source:       adv.Source,
		Severity:     severity.Classify(adv.Score).Label,
		Score:        adv.Score,
		Sent:         sent,
		DispatchedAt: time.Now().UTC().Format(time.RFC3339),
	}
	if err := p.Publish(ctx, event); err != nil {
		slog.Error("Failed to publish advisory event",
			"cve_id", adv.ID,
			"error", err,
		)
	}
}

// Close gracefully closes the Kafka writer.
func (p *Producer) Close() error {
	slog.Info("Closing Kafka producer", "topic", p.topic)
	if err := p.writer.Close(); err != nil {
		return fmt.Errorf("failed to close Kafka producer: %w", err)
	}
	return nil
}
