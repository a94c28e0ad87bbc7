package messaging

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/garyjia/procurement-hub/internal/application/port"
	"github.com/garyjia/procurement-hub/internal/domain/event"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// Header names set on published messages. Rev and sequence appear only when
// the event payload carries them.
const (
	HeaderEventType     = "event-type"
	HeaderEventID       = "event-id"
	HeaderCorrelationID = "correlation-id"
	HeaderRev           = "po-rev"
	HeaderSequence      = "po-sequence"
)

// KafkaConfig contains the publisher settings
type KafkaConfig struct {
	Brokers      []string
	Topic        string
	MaxAttempts  int
	WriteTimeout time.Duration
}

// messageWriter is the subset of *kafka.Writer the publisher needs
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaPublisher writes domain events to a topic keyed by purchase order id,
// so every event of one order lands on the same partition. Subscribed with
// SubscribeOrdered it writes in dispatch order; status changes also carry
// the order's revision and history sequence so consumers can detect a gap
// or a reordering across concurrent writers.
type KafkaPublisher struct {
	writer       messageWriter
	topic        string
	maxAttempts  int
	writeTimeout time.Duration
	backoff      time.Duration
	logger       *zap.Logger
}

// NewKafkaPublisher constructs a publisher backed by a kafka-go Writer
func NewKafkaPublisher(cfg KafkaConfig, logger *zap.Logger) (*KafkaPublisher, error) {
	if len(cfg.Brokers) == 0 {
		return nil, fmt.Errorf("kafka: at least one broker required")
	}
	if cfg.Topic == "" {
		return nil, fmt.Errorf("kafka: topic required")
	}
	cfg = withDefaults(cfg)

	w := kafka.NewWriter(kafka.WriterConfig{
		Brokers:      cfg.Brokers,
		Topic:        cfg.Topic,
		Balancer:     &kafka.Hash{},
		BatchTimeout: 10 * time.Millisecond,
		WriteTimeout: cfg.WriteTimeout,
	})

	return newKafkaPublisher(w, cfg, logger), nil
}

func newKafkaPublisher(w messageWriter, cfg KafkaConfig, logger *zap.Logger) *KafkaPublisher {
	cfg = withDefaults(cfg)
	return &KafkaPublisher{
		writer:       w,
		topic:        cfg.Topic,
		maxAttempts:  cfg.MaxAttempts,
		writeTimeout: cfg.WriteTimeout,
		backoff:      100 * time.Millisecond,
		logger:       logger,
	}
}

func withDefaults(cfg KafkaConfig) KafkaConfig {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 3
	}
	if cfg.WriteTimeout == 0 {
		cfg.WriteTimeout = 10 * time.Second
	}
	return cfg
}

// Publish implements port.EventPublisher
func (p *KafkaPublisher) Publish(ctx context.Context, evt *event.Event) error {
	msg, err := encode(evt)
	if err != nil {
		return err
	}

	var lastErr error
	backoff := p.backoff
	for attempt := 1; attempt <= p.maxAttempts; attempt++ {
		attemptCtx, cancel := context.WithTimeout(ctx, p.writeTimeout)
		err := p.writer.WriteMessages(attemptCtx, msg)
		cancel()

		if err == nil {
			p.logger.Debug("Event published",
				zap.String("topic", p.topic),
				zap.String("event_type", string(evt.Type)),
				zap.Int64("purchase_order_id", evt.PurchaseOrderID))
			return nil
		}

		lastErr = err
		p.logger.Warn("Kafka write failed",
			zap.Int("attempt", attempt),
			zap.String("event_type", string(evt.Type)),
			zap.Error(err))

		if attempt == p.maxAttempts {
			break
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("publish cancelled: %w", ctx.Err())
		case <-time.After(backoff):
		}
		if backoff < 2*time.Second {
			backoff *= 2
		}
	}

	p.logger.Error("Failed to publish event",
		zap.String("event_id", evt.ID),
		zap.String("event_type", string(evt.Type)),
		zap.Int64("purchase_order_id", evt.PurchaseOrderID),
		zap.Error(lastErr))
	return fmt.Errorf("publish failed after %d attempts: %w", p.maxAttempts, lastErr)
}

// Handle lets the publisher be subscribed to the dispatcher directly
func (p *KafkaPublisher) Handle(ctx context.Context, evt *event.Event) error {
	return p.Publish(ctx, evt)
}

// Close shuts down the underlying writer
func (p *KafkaPublisher) Close() error {
	if p == nil || p.writer == nil {
		return nil
	}
	return p.writer.Close()
}

func encode(evt *event.Event) (kafka.Message, error) {
	value, err := json.Marshal(evt)
	if err != nil {
		return kafka.Message{}, fmt.Errorf("marshal event: %w", err)
	}
	headers := []kafka.Header{
		{Key: HeaderEventType, Value: []byte(evt.Type)},
		{Key: HeaderEventID, Value: []byte(evt.ID)},
		{Key: HeaderCorrelationID, Value: []byte(evt.CorrelationID)},
	}
	if _, ok := evt.Payload[event.KeyRev]; ok {
		headers = append(headers, kafka.Header{Key: HeaderRev, Value: []byte(strconv.FormatInt(evt.GetPayloadInt(event.KeyRev), 10))})
	}
	if _, ok := evt.Payload[event.KeySequence]; ok {
		headers = append(headers, kafka.Header{Key: HeaderSequence, Value: []byte(strconv.FormatInt(evt.GetPayloadInt(event.KeySequence), 10))})
	}

	return kafka.Message{
		Key:     []byte(strconv.FormatInt(evt.PurchaseOrderID, 10)),
		Value:   value,
		Time:    evt.Timestamp,
		Headers: headers,
	}, nil
}

// Verify interface compliance
var _ port.EventPublisher = (*KafkaPublisher)(nil)
