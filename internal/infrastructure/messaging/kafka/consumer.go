package kafka

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/turtacn/TRAXX-Intelligence/internal/application/ingestion"
	"github.com/turtacn/TRAXX-Intelligence/internal/config"
	"github.com/turtacn/TRAXX-Intelligence/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/TRAXX-Intelligence/pkg/errors"
)

var (
	ErrAlreadyRunning = errors.New(errors.ErrCodeConflict, "consumer already running")
)

const maxRetryBackoff = 30 * time.Second

// Message is one consumed record.
type Message struct {
	Topic     string
	Partition int
	Offset    int64
	Key       []byte
	Value     []byte
	Headers   map[string]string
	Timestamp time.Time
}

// MessageHandler processes one message.  Errors carrying ING_001 are
// treated as poison and skip the retry loop.
type MessageHandler func(ctx context.Context, msg *Message) error

// ConsumerMetrics holds consumer metrics.
type ConsumerMetrics struct {
	MessagesConsumed     atomic.Int64
	MessagesProcessed    atomic.Int64
	MessagesFailed       atomic.Int64
	MessagesRetried      atomic.Int64
	MessagesDeadLettered atomic.Int64
	Lag                  atomic.Int64
}

// ReaderInterface abstracts kafka.Reader for testing.
type ReaderInterface interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
	Stats() kafka.ReaderStats
}

// Consumer reads the scan feed and dispatches by topic.
type Consumer struct {
	reader ReaderInterface
	config config.KafkaConfig
	logger logging.Logger

	handlers map[string]MessageHandler
	mu       sync.RWMutex

	running atomic.Bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup

	deadLetter *Producer
	metrics    *ConsumerMetrics
}

// ConsumerOption configures a Consumer.
type ConsumerOption func(*Consumer)

// WithReader replaces the broker-backed reader.
func WithReader(r ReaderInterface) ConsumerOption {
	return func(c *Consumer) { c.reader = r }
}

// WithDeadLetter sets the producer used for exhausted messages.
func WithDeadLetter(p *Producer) ConsumerOption {
	return func(c *Consumer) { c.deadLetter = p }
}

// NewConsumer creates a consumer of cfg.ScanTopic in cfg.GroupID.
func NewConsumer(cfg config.KafkaConfig, logger logging.Logger, opts ...ConsumerOption) (*Consumer, error) {
	if err := ValidateConsumerConfig(cfg); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	c := &Consumer{
		config:   cfg,
		logger:   logger.Named("kafka.consumer"),
		handlers: make(map[string]MessageHandler),
		metrics:  &ConsumerMetrics{},
	}
	for _, o := range opts {
		o(c)
	}
	if c.reader == nil {
		commit := cfg.CommitInterval
		if commit == 0 {
			commit = time.Second
		}
		c.reader = kafka.NewReader(kafka.ReaderConfig{
			Brokers:           cfg.Brokers,
			GroupID:           cfg.GroupID,
			GroupTopics:       []string{cfg.ScanTopic},
			MinBytes:          1,
			MaxBytes:          10 * 1024 * 1024,
			MaxWait:           500 * time.Millisecond,
			CommitInterval:    commit,
			SessionTimeout:    30 * time.Second,
			HeartbeatInterval: 3 * time.Second,
			StartOffset:       kafka.LastOffset,
			Dialer:            &kafka.Dialer{Timeout: 10 * time.Second, DualStack: true},
		})
	}
	if c.deadLetter == nil && cfg.DLQTopic != "" {
		p, err := NewProducer(cfg, logger)
		if err != nil {
			return nil, err
		}
		c.deadLetter = p
	}
	return c, nil
}

// Subscribe registers handler for topic.
func (c *Consumer) Subscribe(topic string, handler MessageHandler) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.handlers[topic] = handler
	c.logger.Info("Subscribed to topic", logging.String("topic", topic))
}

// Start starts the consumer loop.
func (c *Consumer) Start(ctx context.Context) error {
	if c.running.Swap(true) {
		return ErrAlreadyRunning
	}
	ctx, cancel := context.WithCancel(ctx)
	c.cancel = cancel
	c.wg.Add(1)
	go c.consumeLoop(ctx)

	c.logger.Info("Kafka consumer started",
		logging.String("group", c.config.GroupID),
		logging.String("topic", c.config.ScanTopic))
	return nil
}

func (c *Consumer) consumeLoop(ctx context.Context) {
	defer c.wg.Done()

	for {
		if ctx.Err() != nil {
			return
		}
		m, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			c.logger.Error("FetchMessage error", logging.Err(err))
			select {
			case <-ctx.Done():
				return
			case <-time.After(time.Second):
			}
			continue
		}

		c.metrics.MessagesConsumed.Add(1)
		if m.HighWaterMark > 0 {
			c.metrics.Lag.Store(m.HighWaterMark - m.Offset - 1)
		}

		msg := &Message{
			Topic:     m.Topic,
			Partition: m.Partition,
			Offset:    m.Offset,
			Key:       m.Key,
			Value:     m.Value,
			Timestamp: m.Time,
			Headers:   make(map[string]string, len(m.Headers)),
		}
		for _, h := range m.Headers {
			msg.Headers[h.Key] = string(h.Value)
		}

		c.mu.RLock()
		handler, ok := c.handlers[m.Topic]
		c.mu.RUnlock()

		if !ok {
			c.logger.Warn("No handler for topic", logging.String("topic", m.Topic))
		} else if err := c.processMessage(ctx, msg, handler); err != nil {
			c.metrics.MessagesFailed.Add(1)
		} else {
			c.metrics.MessagesProcessed.Add(1)
		}

		if ctx.Err() != nil {
			return
		}
		if err := c.reader.CommitMessages(ctx, m); err != nil {
			c.logger.Error("CommitMessages failed", logging.Err(err))
		}
	}
}

// processMessage runs handler with exponential backoff.  A message that
// still fails is sent to the dead-letter topic and the error returned.
func (c *Consumer) processMessage(ctx context.Context, msg *Message, handler MessageHandler) error {
	err := handler(ctx, msg)
	if err == nil {
		return nil
	}

	if !errors.IsCode(err, errors.ErrCodeIngestDecodeFailed) {
		backoff := c.config.RetryBackoff
		if backoff <= 0 {
			backoff = time.Second
		}
		for i := 0; i < c.config.MaxRetries; i++ {
			c.metrics.MessagesRetried.Add(1)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(backoff):
			}
			if err = handler(ctx, msg); err == nil {
				return nil
			}
			backoff *= 2
			if backoff > maxRetryBackoff {
				backoff = maxRetryBackoff
			}
		}
	}

	c.logger.Error("Message processing failed",
		logging.String("topic", msg.Topic),
		logging.Int64("offset", msg.Offset),
		logging.Err(err))
	c.sendDeadLetter(ctx, msg, err)
	return err
}

func (c *Consumer) sendDeadLetter(ctx context.Context, msg *Message, cause error) {
	if c.deadLetter == nil || c.config.DLQTopic == "" {
		return
	}
	headers := make(map[string]string, len(msg.Headers)+2)
	for k, v := range msg.Headers {
		headers[k] = v
	}
	headers[HeaderOriginTopic] = msg.Topic
	headers[HeaderError] = cause.Error()

	dl := &ProducerMessage{Topic: c.config.DLQTopic, Key: msg.Key, Value: msg.Value, Headers: headers}
	if err := c.deadLetter.Publish(ctx, dl); err != nil {
		c.logger.Error("Failed to send to dead letter queue", logging.Err(err))
		return
	}
	c.metrics.MessagesDeadLettered.Add(1)
}

// GetMetrics returns a snapshot of metrics.
func (c *Consumer) GetMetrics() ConsumerMetrics {
	var m ConsumerMetrics
	m.MessagesConsumed.Store(c.metrics.MessagesConsumed.Load())
	m.MessagesProcessed.Store(c.metrics.MessagesProcessed.Load())
	m.MessagesFailed.Store(c.metrics.MessagesFailed.Load())
	m.MessagesRetried.Store(c.metrics.MessagesRetried.Load())
	m.MessagesDeadLettered.Store(c.metrics.MessagesDeadLettered.Load())
	m.Lag.Store(c.metrics.Lag.Load())
	return m
}

// Close stops the loop and releases the reader and dead-letter producer.
func (c *Consumer) Close() error {
	if c.running.CompareAndSwap(true, false) && c.cancel != nil {
		c.cancel()
	}
	c.wg.Wait()

	var err error
	if c.reader != nil {
		err = c.reader.Close()
	}
	if c.deadLetter != nil {
		c.deadLetter.Close()
	}
	c.logger.Info("Kafka consumer closed",
		logging.Int64("consumed", c.metrics.MessagesConsumed.Load()))
	return err
}

// ValidateConsumerConfig checks the settings the consumer depends on.
func ValidateConsumerConfig(cfg config.KafkaConfig) error {
	if len(cfg.Brokers) == 0 {
		return errors.New(errors.ErrCodeValidation, "kafka brokers required")
	}
	if cfg.GroupID == "" {
		return errors.New(errors.ErrCodeValidation, "kafka group_id required")
	}
	if cfg.ScanTopic == "" {
		return errors.New(errors.ErrCodeValidation, "kafka scan_topic required")
	}
	if cfg.MaxRetries < 0 {
		return errors.New(errors.ErrCodeValidation, "kafka max_retries must be >= 0")
	}
	return nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Scan feed handler
// ─────────────────────────────────────────────────────────────────────────────

// ScanApplier is the ingestion entry point for live telemetry.
type ScanApplier interface {
	ApplyScans(ctx context.Context, source string, events []ingestion.ScanEvent) (ingestion.ScanReport, error)
}

// ScanHandler decodes a feed message, bare or enveloped, and applies it.
func ScanHandler(svc ScanApplier, logger logging.Logger) MessageHandler {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return func(ctx context.Context, msg *Message) error {
		payload, eventType := Unwrap(msg.Value)
		if eventType != "" && eventType != EventTrackerScan {
			return errors.Newf(errors.ErrCodeIngestDecodeFailed, "unexpected event type %q", eventType)
		}
		events, err := ingestion.DecodeScanEvents(payload)
		if err != nil {
			return err
		}
		report, err := svc.ApplyScans(ctx, "kafka", events)
		if err != nil {
			return err
		}
		if len(report.Unknown) > 0 {
			logger.Warn("scan batch referenced unknown trackers",
				logging.Strings("tracker_ids", report.Unknown),
				logging.Int64("offset", msg.Offset))
		}
		return nil
	}
}

//Personal.AI order the ending
