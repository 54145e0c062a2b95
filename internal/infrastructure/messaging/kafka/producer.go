package kafka

import (
	"context"
	"encoding/json"
	"sync/atomic"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/turtacn/TRAXX-Intelligence/internal/config"
	"github.com/turtacn/TRAXX-Intelligence/internal/domain/fleet"
	"github.com/turtacn/TRAXX-Intelligence/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/TRAXX-Intelligence/pkg/errors"
	"github.com/turtacn/TRAXX-Intelligence/pkg/types/common"
)

var (
	ErrProducerClosed = errors.New(errors.ErrCodeMessagingError, "producer closed")
)

const defaultMaxMessageBytes = 1024 * 1024

// ProducerMessage is one outgoing record.
type ProducerMessage struct {
	Topic     string
	Key       []byte
	Value     []byte
	Headers   map[string]string
	Timestamp time.Time
}

// ProducerMetrics holds producer metrics.
type ProducerMetrics struct {
	MessagesSent   atomic.Int64
	MessagesFailed atomic.Int64
	BytesSent      atomic.Int64
	LastSentAt     atomic.Value // time.Time
}

// WriterInterface abstracts kafka.Writer for testing.
type WriterInterface interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
	Stats() kafka.WriterStats
}

// Producer publishes fleet events.
type Producer struct {
	writer     WriterInterface
	alertTopic string
	maxBytes   int
	clock      common.Clock
	logger     logging.Logger
	closed     atomic.Bool
	metrics    *ProducerMetrics
}

// ProducerOption configures a Producer.
type ProducerOption func(*Producer)

// WithWriter replaces the broker-backed writer.
func WithWriter(w WriterInterface) ProducerOption {
	return func(p *Producer) { p.writer = w }
}

// WithProducerClock sets the clock stamped on envelopes.
func WithProducerClock(c common.Clock) ProducerOption {
	return func(p *Producer) {
		if c != nil {
			p.clock = c
		}
	}
}

// NewProducer creates a producer for cfg.AlertTopic.
func NewProducer(cfg config.KafkaConfig, logger logging.Logger, opts ...ProducerOption) (*Producer, error) {
	if len(cfg.Brokers) == 0 {
		return nil, errors.New(errors.ErrCodeValidation, "kafka brokers required")
	}
	if cfg.MaxRetries < 0 {
		return nil, errors.New(errors.ErrCodeValidation, "kafka max_retries must be >= 0")
	}
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	p := &Producer{
		alertTopic: cfg.AlertTopic,
		maxBytes:   defaultMaxMessageBytes,
		clock:      common.SystemClock(),
		logger:     logger.Named("kafka.producer"),
		metrics:    &ProducerMetrics{},
	}
	for _, o := range opts {
		o(p)
	}
	if p.writer == nil {
		batchTimeout := cfg.BatchTimeout
		if batchTimeout == 0 {
			batchTimeout = 50 * time.Millisecond
		}
		p.writer = &kafka.Writer{
			Addr:         kafka.TCP(cfg.Brokers...),
			Balancer:     &kafka.Hash{},
			MaxAttempts:  cfg.MaxRetries + 1,
			BatchTimeout: batchTimeout,
			WriteTimeout: 10 * time.Second,
			RequiredAcks: kafka.RequireOne,
			Transport:    &kafka.Transport{DialTimeout: 10 * time.Second},
		}
	}
	return p, nil
}

// Publish writes a single message.
func (p *Producer) Publish(ctx context.Context, msg *ProducerMessage) error {
	if p.closed.Load() {
		return ErrProducerClosed
	}
	if err := p.validate(msg); err != nil {
		return err
	}
	return p.write(ctx, []*ProducerMessage{msg})
}

// PublishAlerts sends one alert.raised envelope per alert to the alert
// topic, keyed by tracker id so a kit's alerts stay ordered.
func (p *Producer) PublishAlerts(ctx context.Context, alerts []fleet.Alert) error {
	if p.closed.Load() {
		return ErrProducerClosed
	}
	if len(alerts) == 0 {
		return nil
	}
	if p.alertTopic == "" {
		return errors.New(errors.ErrCodeValidation, "alert topic not configured")
	}
	now := p.clock.Now()
	msgs := make([]*ProducerMessage, 0, len(alerts))
	for _, a := range alerts {
		env, err := NewEnvelope(EventAlertRaised, "traxx-fleet", a, now)
		if err != nil {
			return err
		}
		value, err := json.Marshal(env)
		if err != nil {
			return errors.Wrap(err, errors.ErrCodeSerialization, "failed to marshal alert envelope")
		}
		msgs = append(msgs, &ProducerMessage{
			Topic:     p.alertTopic,
			Key:       []byte(a.TrackerID),
			Value:     value,
			Headers:   map[string]string{HeaderEventType: EventAlertRaised},
			Timestamp: now,
		})
	}
	return p.write(ctx, msgs)
}

func (p *Producer) validate(msg *ProducerMessage) error {
	if msg.Topic == "" {
		return errors.New(errors.ErrCodeValidation, "topic required")
	}
	if len(msg.Value) == 0 {
		return errors.New(errors.ErrCodeValidation, "value required")
	}
	if len(msg.Value) > p.maxBytes {
		return errors.New(errors.ErrCodeValidation, "message too large")
	}
	return nil
}

func (p *Producer) write(ctx context.Context, msgs []*ProducerMessage) error {
	kMsgs := make([]kafka.Message, len(msgs))
	var bytes int64
	for i, m := range msgs {
		kMsgs[i] = p.toKafkaMessage(m)
		bytes += int64(len(m.Value))
	}
	if err := p.writer.WriteMessages(ctx, kMsgs...); err != nil {
		p.metrics.MessagesFailed.Add(int64(len(msgs)))
		return errors.Wrap(err, errors.ErrCodeMessagingError, "publish failed")
	}
	p.metrics.MessagesSent.Add(int64(len(msgs)))
	p.metrics.BytesSent.Add(bytes)
	p.metrics.LastSentAt.Store(p.clock.Now())
	p.logger.Debug("Messages published",
		logging.String("topic", msgs[0].Topic),
		logging.Int("count", len(msgs)))
	return nil
}

// GetMetrics returns metrics snapshot.
func (p *Producer) GetMetrics() ProducerMetrics {
	m := ProducerMetrics{}
	m.MessagesSent.Store(p.metrics.MessagesSent.Load())
	m.MessagesFailed.Store(p.metrics.MessagesFailed.Load())
	m.BytesSent.Store(p.metrics.BytesSent.Load())
	if v := p.metrics.LastSentAt.Load(); v != nil {
		m.LastSentAt.Store(v)
	}
	return m
}

// Close closes the producer.
func (p *Producer) Close() error {
	if !p.closed.CompareAndSwap(false, true) {
		return nil
	}
	err := p.writer.Close()
	p.logger.Info("Kafka producer closed", logging.Int64("sent", p.metrics.MessagesSent.Load()))
	return err
}

func (p *Producer) toKafkaMessage(msg *ProducerMessage) kafka.Message {
	headers := make([]kafka.Header, 0, len(msg.Headers))
	for k, v := range msg.Headers {
		headers = append(headers, kafka.Header{Key: k, Value: []byte(v)})
	}
	ts := msg.Timestamp
	if ts.IsZero() {
		ts = p.clock.Now()
	}
	return kafka.Message{
		Topic:   msg.Topic,
		Key:     msg.Key,
		Value:   msg.Value,
		Headers: headers,
		Time:    ts,
	}
}

//Personal.AI order the ending
