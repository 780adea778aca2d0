package amqp

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/koios/countdown-renderer/pkg/models"
	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

// EventHandler defines the interface for handling events
type EventHandler interface {
	Handle(ctx context.Context, event *models.RenderRequest) (*models.RenderResult, error)
}

// Consumer handles consuming messages from AMQP
type Consumer struct {
	conn    *Connection
	handler EventHandler
	logger  *zap.Logger
}

// NewConsumer creates a new consumer
func NewConsumer(conn *Connection, handler EventHandler, logger *zap.Logger) *Consumer {
	return &Consumer{
		conn:    conn,
		handler: handler,
		logger:  logger,
	}
}

// Start starts consuming messages from the specified queue with automatic reconnection
func (c *Consumer) Start(ctx context.Context, queueName string) error {
	retryDelay := time.Second
	maxRetryDelay := 30 * time.Second
	retryCount := 0

	for {
		select {
		case <-ctx.Done():
			c.logger.Info("Consumer context cancelled, stopping")
			return ctx.Err()
		default:
		}

		err := c.startConsuming(ctx, queueName)
		if err == nil || ctx.Err() != nil {
			return ctx.Err()
		}

		retryCount++
		c.logger.Error("Consumer failed, will retry after delay",
			zap.Error(err),
			zap.String("queue", queueName),
			zap.Int("retry_count", retryCount),
			zap.Duration("retry_delay", retryDelay))

		// Wait before retrying with exponential backoff, but respect context cancellation
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(retryDelay):
			retryDelay = nextDelay(retryDelay, maxRetryDelay)
		}
	}
}

func nextDelay(current, max time.Duration) time.Duration {
	next := time.Duration(float64(current) * 1.5)
	if next > max {
		return max
	}
	return next
}

// startConsuming handles a single consumption session
func (c *Consumer) startConsuming(ctx context.Context, queueName string) error {
	// Ensure we have a valid connection
	if err := c.conn.EnsureConnection(); err != nil {
		return fmt.Errorf("failed to ensure connection: %w", err)
	}

	// Generate unique consumer tag for this instance
	hostname, _ := os.Hostname()
	consumerTag := fmt.Sprintf("countdown-renderer-%s-%d", hostname, time.Now().Unix())

	msgs, err := c.conn.Consume(queueName, consumerTag)
	if err != nil {
		// If consume fails, force a reconnection on next attempt
		c.logger.Warn("Failed to register consumer, forcing reconnection",
			zap.Error(err),
			zap.String("queue", queueName))

		c.conn.forceClose()

		return fmt.Errorf("failed to register consumer: %w", err)
	}

	c.logger.Info("Started consuming messages",
		zap.String("queue", queueName),
		zap.String("consumer_tag", consumerTag))

	for {
		select {
		case <-ctx.Done():
			c.logger.Info("Consumer context cancelled, stopping")
			return ctx.Err()
		case msg, ok := <-msgs:
			if !ok {
				c.logger.Warn("Message channel closed, will reconnect")
				return fmt.Errorf("message channel closed")
			}

			// The render pool bounds concurrency; prefetch bounds the backlog.
			go c.handleMessage(ctx, msg)
		}
	}
}

// handleMessage processes a single message
func (c *Consumer) handleMessage(ctx context.Context, msg amqp.Delivery) {
	c.logger.Debug("Received message",
		zap.String("routing_key", msg.RoutingKey),
		zap.String("correlation_id", msg.CorrelationId))

	// Parse the message
	request, err := decodeRequest(msg.Body, msg.CorrelationId)
	if err != nil {
		c.logger.Error("Failed to unmarshal message",
			zap.Error(err),
			zap.String("correlation_id", msg.CorrelationId))
		msg.Nack(false, false)
		return
	}

	// Handle the event; on failure the handler still returns a publishable result
	result, err := c.handler.Handle(ctx, request)
	if err != nil {
		c.logger.Error("Failed to handle event",
			zap.Error(err),
			zap.String("id", request.ID))
	}
	if result == nil {
		result = &models.RenderResult{
			Type:        models.RenderResultType,
			ID:          request.ID,
			ProcessedAt: time.Now(),
		}
		if err != nil {
			result.Error = err.Error()
		}
	}

	// Always publish result (successful or error)
	if publishErr := c.conn.PublishResult(ctx, result, msg.ReplyTo, msg.CorrelationId); publishErr != nil {
		c.logger.Error("Failed to publish result",
			zap.Error(publishErr),
			zap.String("id", request.ID))

		// Only requeue if it was a successful render that failed to publish
		// For error results, we still want to ack to avoid infinite retry loops
		if err == nil {
			msg.Nack(false, true)
		} else if ackErr := msg.Ack(false); ackErr != nil {
			c.logger.Error("Failed to acknowledge message after publish error",
				zap.Error(ackErr),
				zap.String("id", request.ID))
		}
		return
	}

	// Acknowledge the message on successful publish
	if ackErr := msg.Ack(false); ackErr != nil {
		c.logger.Error("Failed to acknowledge message",
			zap.Error(ackErr),
			zap.String("id", request.ID))
	}
}

// decodeRequest parses a delivery body. A missing id falls back to the
// correlation id so results can still be matched by the requester.
func decodeRequest(body []byte, correlationID string) (*models.RenderRequest, error) {
	var request models.RenderRequest
	if err := json.Unmarshal(body, &request); err != nil {
		return nil, err
	}
	if request.ID == "" {
		request.ID = correlationID
	}
	return &request, nil
}
