package amqp

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/koios/countdown-renderer/internal/config"
	"github.com/koios/countdown-renderer/pkg/models"
	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

// Connection wraps the AMQP connection and channel and re-dials on demand
type Connection struct {
	mu      sync.Mutex
	conn    *amqp.Connection
	channel *amqp.Channel
	config  config.AMQPConfig
	logger  *zap.Logger
}

// NewConnection creates a new AMQP connection and declares the topology
func NewConnection(cfg config.AMQPConfig, logger *zap.Logger) (*Connection, error) {
	c := &Connection{
		config: cfg,
		logger: logger,
	}
	if err := c.EnsureConnection(); err != nil {
		return nil, err
	}
	return c, nil
}

// EnsureConnection dials and declares the topology if the current
// connection or channel is missing or closed.
func (c *Connection) EnsureConnection() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn != nil && !c.conn.IsClosed() && c.channel != nil && !c.channel.IsClosed() {
		return nil
	}
	c.closeLocked()

	conn, err := amqp.Dial(c.config.URL)
	if err != nil {
		return fmt.Errorf("failed to connect to AMQP: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return fmt.Errorf("failed to open channel: %w", err)
	}

	if err := declareTopology(ch, c.config); err != nil {
		ch.Close()
		conn.Close()
		return err
	}

	c.conn = conn
	c.channel = ch

	c.logger.Info("Connected to AMQP",
		zap.String("exchange", c.config.Exchange),
		zap.String("queue", c.config.QueueName))
	return nil
}

func declareTopology(ch *amqp.Channel, cfg config.AMQPConfig) error {
	// Set QoS for fair distribution across multiple consumers
	// This ensures each consumer gets only the configured number of unacknowledged messages
	err := ch.Qos(
		cfg.PrefetchCount, // prefetch count (number of messages to prefetch)
		0,                 // prefetch size (0 = no limit on message size)
		false,             // global (false = apply to current consumer only)
	)
	if err != nil {
		return fmt.Errorf("failed to set QoS: %w", err)
	}

	// Declare exchange
	err = ch.ExchangeDeclare(
		cfg.Exchange, // name
		"topic",      // type
		true,         // durable
		false,        // auto-deleted
		false,        // internal
		false,        // no-wait
		nil,          // arguments
	)
	if err != nil {
		return fmt.Errorf("failed to declare exchange: %w", err)
	}

	// Declare input queue
	_, err = ch.QueueDeclare(
		cfg.QueueName, // name
		true,          // durable
		false,         // delete when unused
		false,         // exclusive
		false,         // no-wait
		nil,           // arguments
	)
	if err != nil {
		return fmt.Errorf("failed to declare queue: %w", err)
	}

	// Bind queue to exchange
	err = ch.QueueBind(
		cfg.QueueName,  // queue name
		cfg.RoutingKey, // routing key
		cfg.Exchange,   // exchange
		false,          // no-wait
		nil,            // arguments
	)
	if err != nil {
		return fmt.Errorf("failed to bind queue: %w", err)
	}

	return nil
}

// Consume registers a consumer on queueName with manual acknowledgement
func (c *Connection) Consume(queueName, consumerTag string) (<-chan amqp.Delivery, error) {
	c.mu.Lock()
	ch := c.channel
	c.mu.Unlock()

	if ch == nil {
		return nil, fmt.Errorf("channel not open")
	}

	return ch.Consume(
		queueName,   // queue
		consumerTag, // consumer tag (unique identifier for this consumer)
		false,       // auto-ack (disabled for manual acknowledgment)
		false,       // exclusive (allow multiple consumers)
		false,       // no-local
		false,       // no-wait
		nil,         // args
	)
}

// forceClose drops the current connection so the next EnsureConnection re-dials
func (c *Connection) forceClose() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closeLocked()
}

func (c *Connection) closeLocked() {
	if c.channel != nil {
		c.channel.Close()
		c.channel = nil
	}
	if c.conn != nil {
		c.conn.Close()
		c.conn = nil
	}
}

// Close closes the AMQP connection and channel
func (c *Connection) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.channel != nil {
		c.channel.Close()
		c.channel = nil
	}
	if c.conn != nil {
		err := c.conn.Close()
		c.conn = nil
		return err
	}
	return nil
}

// resultRoute picks where a result goes: straight to the requester's reply
// queue through the default exchange, or to the configured result routing key.
func resultRoute(cfg config.AMQPConfig, replyTo string) (exchange, routingKey string) {
	if replyTo != "" {
		return "", replyTo
	}
	return cfg.Exchange, cfg.ResultRoutingKey
}

// PublishResult publishes a result message for a request
func (c *Connection) PublishResult(ctx context.Context, result *models.RenderResult, replyTo, correlationID string) error {
	body, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("failed to marshal result: %w", err)
	}

	exchange, routingKey := resultRoute(c.config, replyTo)

	c.mu.Lock()
	ch := c.channel
	c.mu.Unlock()
	if ch == nil {
		return fmt.Errorf("channel not open")
	}

	err = ch.PublishWithContext(
		ctx,
		exchange,   // exchange
		routingKey, // routing key
		false,      // mandatory
		false,      // immediate
		amqp.Publishing{
			ContentType:   "application/json",
			CorrelationId: correlationID,
			Body:          body,
			DeliveryMode:  amqp.Persistent,
		},
	)
	if err != nil {
		return fmt.Errorf("failed to publish result: %w", err)
	}

	c.logger.Debug("Published render result",
		zap.String("id", result.ID),
		zap.String("name", result.Name),
		zap.String("exchange", exchange),
		zap.String("routing_key", routingKey))
	return nil
}
