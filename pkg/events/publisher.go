// Package events publishes credential assembly lifecycle events.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel/attribute"

	"github.com/Ramsey-B/fern/pkg/tracing"
)

const (
	TypeAssemblySucceeded = "assembly.succeeded"
	TypeAssemblyFailed    = "assembly.failed"
)

// AssemblyEvent records the outcome of one credential assembly. It never carries the auth token.
type AssemblyEvent struct {
	Type             string            `json:"type"`
	CorrelationID    string            `json:"correlation_id"`
	SystemName       string            `json:"system_name"`
	State            string            `json:"state"`
	ErrorKind        string            `json:"error_kind,omitempty"`
	Error            string            `json:"error,omitempty"`
	ResolvedEntities map[string]string `json:"resolved_entities,omitempty"`
	DetectedEntity   string            `json:"detected_entity,omitempty"`
	DurationMs       int64             `json:"duration_ms"`
	Timestamp        time.Time         `json:"timestamp"`
	TraceID          string            `json:"trace_id,omitempty"`
}

// Publisher delivers assembly events
type Publisher interface {
	PublishAssembly(ctx context.Context, evt *AssemblyEvent) error
	Close() error
}

// NoopPublisher drops every event. Used when no broker is configured.
type NoopPublisher struct{}

func (NoopPublisher) PublishAssembly(context.Context, *AssemblyEvent) error { return nil }
func (NoopPublisher) Close() error { return nil }

// Config holds Kafka configuration
type Config struct {
	Brokers []string
	Topic   string
}

// ParseConfig parses a comma-separated broker string
func ParseConfig(brokers string, topic string) Config {
	brokerList := []string{}
	for _, b := range strings.Split(brokers, ",") {
		if b = strings.TrimSpace(b); b != "" {
			brokerList = append(brokerList, b)
		}
	}
	return Config{Brokers: brokerList, Topic: topic}
}

// Enabled reports whether enough is configured to publish
func (c Config) Enabled() bool {
	return len(c.Brokers) > 0 && c.Topic != ""
}

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaPublisher publishes assembly events to a Kafka topic keyed by system name
type KafkaPublisher struct {
	writer messageWriter
	topic  string
	logger ectologger.Logger
}

// NewKafkaPublisher creates a publisher writing to cfg.Topic
func NewKafkaPublisher(cfg Config, logger ectologger.Logger) *KafkaPublisher {
	writer := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        cfg.Topic,
		Balancer:     &kafka.Hash{},
		BatchSize:    100,
		BatchTimeout: 10 * time.Millisecond,
		RequiredAcks: kafka.RequireOne,
		Async:        false,
		// topics are auto-created in dev environments on first publish
		AllowAutoTopicCreation: true,
	}
	return newKafkaPublisher(writer, cfg.Topic, logger)
}

func newKafkaPublisher(writer messageWriter, topic string, logger ectologger.Logger) *KafkaPublisher {
	return &KafkaPublisher{writer: writer, topic: topic, logger: logger}
}

// Close closes the underlying writer
func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}

// PublishAssembly publishes an assembly event
func (p *KafkaPublisher) PublishAssembly(ctx context.Context, evt *AssemblyEvent) error {
	if evt == nil {
		return fmt.Errorf("assembly event is nil")
	}

	ctx, span := tracing.StartSpan(ctx, "Kafka.PublishAssembly")
	defer span.End()
	span.SetAttributes(
		attribute.String("messaging.system", "kafka"),
		attribute.String("messaging.destination", p.topic),
		attribute.String("messaging.operation", "publish"),
		attribute.String("correlation_id", evt.CorrelationID),
	)

	if evt.Timestamp.IsZero() {
		evt.Timestamp = time.Now().UTC()
	}
	evt.TraceID = tracing.GetTraceID(ctx)

	data, err := json.Marshal(evt)
	if err != nil {
		tracing.RecordError(span, err, "failed to marshal assembly event")
		return fmt.Errorf("failed to marshal assembly event: %w", err)
	}

	headers := []kafka.Header{
		{Key: "type", Value: []byte(evt.Type)},
		{Key: "system_name", Value: []byte(evt.SystemName)},
		{Key: "correlation_id", Value: []byte(evt.CorrelationID)},
	}
	if traceparent := tracing.GetTraceParent(ctx); traceparent != "" {
		headers = append(headers, kafka.Header{Key: "traceparent", Value: []byte(traceparent)})
	}

	if err := p.writer.WriteMessages(ctx, kafka.Message{
		Key:     []byte(evt.SystemName),
		Value:   data,
		Headers: headers,
	}); err != nil {
		tracing.RecordError(span, err, "failed to publish assembly event")
		p.logger.WithContext(ctx).WithError(err).Errorf("Failed to publish assembly event to Kafka topic %s", p.topic)
		return err
	}

	p.logger.WithContext(ctx).Debugf("Published %s event for %s (correlation=%s)", evt.Type, evt.SystemName, evt.CorrelationID)
	return nil
}
