// Package mqtt subscribes to device telemetry published by tracker gateways
// and feeds it into ingestion.  One topic level carries the tracker id, so
// payloads may omit it.
package mqtt

import (
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"

	"github.com/turtacn/TRAXX-Intelligence/internal/config"
	"github.com/turtacn/TRAXX-Intelligence/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/TRAXX-Intelligence/pkg/errors"
)

const (
	connectTimeout  = 10 * time.Second
	disconnectQuiet = 250 // ms
)

// MessageHandler processes one MQTT message.
type MessageHandler func(topic string, payload []byte) error

// Conn is the slice of a broker connection the subscriber uses.
type Conn interface {
	Subscribe(topic string, qos byte, handler MessageHandler) error
	Unsubscribe(topics ...string) error
	IsConnected() bool
	Disconnect()
}

// Client wraps a paho client.
type Client struct {
	client paho.Client
	logger logging.Logger
}

// NewClient connects to cfg.Broker.
func NewClient(cfg config.MQTTConfig, logger logging.Logger) (*Client, error) {
	if cfg.Broker == "" {
		return nil, errors.New(errors.ErrCodeValidation, "mqtt broker required")
	}
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	logger = logger.Named("mqtt")

	opts := paho.NewClientOptions()
	opts.AddBroker(cfg.Broker)
	opts.SetClientID(cfg.ClientID)
	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
	}
	if cfg.Password != "" {
		opts.SetPassword(cfg.Password)
	}
	opts.SetAutoReconnect(true)
	opts.SetCleanSession(true)
	opts.SetConnectTimeout(connectTimeout)
	opts.SetConnectionLostHandler(func(_ paho.Client, err error) {
		logger.Warn("MQTT connection lost", logging.Err(err))
	})
	opts.SetOnConnectHandler(func(paho.Client) {
		logger.Info("MQTT connected", logging.String("broker", cfg.Broker))
	})

	client := paho.NewClient(opts)
	token := client.Connect()
	if !token.WaitTimeout(connectTimeout) {
		return nil, errors.New(errors.ErrCodeMessagingError, "timed out connecting to MQTT broker")
	}
	if err := token.Error(); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeMessagingError, "failed to connect to MQTT broker")
	}
	return &Client{client: client, logger: logger}, nil
}

// Subscribe registers handler on topic.  Handler errors are logged and the
// message is dropped.
func (c *Client) Subscribe(topic string, qos byte, handler MessageHandler) error {
	token := c.client.Subscribe(topic, qos, func(_ paho.Client, msg paho.Message) {
		if err := handler(msg.Topic(), msg.Payload()); err != nil {
			c.logger.Error("Error handling MQTT message",
				logging.String("topic", msg.Topic()),
				logging.Err(err))
		}
	})
	if token.Wait() && token.Error() != nil {
		return errors.Wrap(token.Error(), errors.ErrCodeMessagingError, "failed to subscribe to topic "+topic)
	}
	return nil
}

func (c *Client) Unsubscribe(topics ...string) error {
	token := c.client.Unsubscribe(topics...)
	if token.Wait() && token.Error() != nil {
		return errors.Wrap(token.Error(), errors.ErrCodeMessagingError, "failed to unsubscribe")
	}
	return nil
}

func (c *Client) IsConnected() bool { return c.client.IsConnected() }

func (c *Client) Disconnect() { c.client.Disconnect(disconnectQuiet) }

//Personal.AI order the ending
