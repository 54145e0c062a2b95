package mqtt

import (
	"context"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/turtacn/TRAXX-Intelligence/internal/application/ingestion"
	"github.com/turtacn/TRAXX-Intelligence/internal/config"
	"github.com/turtacn/TRAXX-Intelligence/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/TRAXX-Intelligence/pkg/errors"
)

// SourceName is the ingestion source label of this feed.
const SourceName = "mqtt"

// ScanApplier is the ingestion entry point for live telemetry.
type ScanApplier interface {
	ApplyScans(ctx context.Context, source string, events []ingestion.ScanEvent) (ingestion.ScanReport, error)
}

// Subscriber feeds scan messages from one topic filter into ingestion.
type Subscriber struct {
	conn   Conn
	svc    ScanApplier
	topic  string
	qos    byte
	idx    int
	logger logging.Logger

	mu       sync.Mutex
	ctx      context.Context
	cancel   context.CancelFunc
	received atomic.Int64
	rejected atomic.Int64
}

// NewSubscriber binds conn to svc.  The position of the single-level
// wildcard in cfg.Topic marks the tracker id level.
func NewSubscriber(conn Conn, svc ScanApplier, cfg config.MQTTConfig, logger logging.Logger) (*Subscriber, error) {
	if conn == nil || svc == nil {
		return nil, errors.New(errors.ErrCodeValidation, "mqtt subscriber needs a connection and an ingestion service")
	}
	topic := cfg.Topic
	if topic == "" {
		topic = config.DefaultMQTTTopic
	}
	if cfg.QoS > 2 {
		return nil, errors.Newf(errors.ErrCodeValidation, "mqtt qos %d is invalid", cfg.QoS)
	}
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &Subscriber{
		conn:   conn,
		svc:    svc,
		topic:  topic,
		qos:    cfg.QoS,
		idx:    wildcardLevel(topic),
		logger: logger.Named("mqtt.subscriber"),
	}, nil
}

// Start subscribes.  Messages are applied under ctx until Stop.
func (s *Subscriber) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.cancel != nil {
		s.mu.Unlock()
		return errors.New(errors.ErrCodeConflict, "mqtt subscriber already started")
	}
	s.ctx, s.cancel = context.WithCancel(ctx)
	s.mu.Unlock()

	if err := s.conn.Subscribe(s.topic, s.qos, s.Handle); err != nil {
		s.Stop()
		return err
	}
	s.logger.Info("MQTT subscriber started", logging.String("topic", s.topic))
	return nil
}

// Handle decodes and applies one message.
func (s *Subscriber) Handle(topic string, payload []byte) error {
	s.received.Add(1)
	ctx := s.context()
	if err := ctx.Err(); err != nil {
		return err
	}
	events, err := ingestion.DecodeTrackerScans(payload, s.TrackerID(topic))
	if err != nil {
		s.rejected.Add(1)
		return err
	}
	if _, err := s.svc.ApplyScans(ctx, SourceName, events); err != nil {
		s.rejected.Add(1)
		return err
	}
	return nil
}

// TrackerID extracts the tracker id level of topic, or "" when the filter
// has no single-level wildcard or topic is too short.
func (s *Subscriber) TrackerID(topic string) string {
	if s.idx < 0 {
		return ""
	}
	levels := strings.Split(topic, "/")
	if s.idx >= len(levels) {
		return ""
	}
	return levels[s.idx]
}

// Stats returns received and rejected message counts.
func (s *Subscriber) Stats() (received, rejected int64) {
	return s.received.Load(), s.rejected.Load()
}

// Stop unsubscribes and disconnects.
func (s *Subscriber) Stop() {
	s.mu.Lock()
	cancel := s.cancel
	s.cancel = nil
	s.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	if s.conn.IsConnected() {
		if err := s.conn.Unsubscribe(s.topic); err != nil {
			s.logger.Warn("MQTT unsubscribe failed", logging.Err(err))
		}
	}
	s.conn.Disconnect()
	s.logger.Info("MQTT subscriber stopped", logging.Int64("received", s.received.Load()))
}

func (s *Subscriber) context() context.Context {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ctx == nil {
		return context.Background()
	}
	return s.ctx
}

func wildcardLevel(filter string) int {
	for i, level := range strings.Split(filter, "/") {
		if level == "+" {
			return i
		}
	}
	return -1
}

//Personal.AI order the ending
