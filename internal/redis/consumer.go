package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/koios/countdown-renderer/pkg/models"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// EventHandler defines the interface for handling render requests
type EventHandler interface {
	Handle(ctx context.Context, event *models.RenderRequest) (*models.RenderResult, error)
}

// Consumer handles Redis stream consumption for render requests
type Consumer struct {
	client  *Client
	handler EventHandler
	logger  *zap.Logger
	ctx     context.Context
	cancel  context.CancelFunc
}

// NewConsumer creates a new Redis consumer
func NewConsumer(client *Client, handler EventHandler, logger *zap.Logger) *Consumer {
	ctx, cancel := context.WithCancel(context.Background())

	return &Consumer{
		client:  client,
		handler: handler,
		logger:  logger,
		ctx:     ctx,
		cancel:  cancel,
	}
}

// Start starts consuming messages from the render requests stream
func (c *Consumer) Start() error {
	c.logger.Info("Starting Redis consumer for render requests")

	for {
		select {
		case <-c.ctx.Done():
			c.logger.Info("Redis consumer stopped")
			return nil
		default:
			if err := c.consumeMessages(); err != nil {
				c.logger.Error("Error consuming messages, will retry",
					zap.Error(err),
					zap.Duration("retry_delay", 5*time.Second))
				select {
				case <-c.ctx.Done():
				case <-time.After(5 * time.Second):
				}
				continue
			}
		}
	}
}

// Stop stops the consumer
func (c *Consumer) Stop() {
	c.logger.Info("Stopping Redis consumer")
	c.cancel()
}

// consumeMessages handles the actual message consumption from Redis Streams
func (c *Consumer) consumeMessages() error {
	c.logger.Info("Started consuming Redis stream messages")

	for {
		select {
		case <-c.ctx.Done():
			return nil
		default:
			// Read messages from stream with blocking timeout
			streams, err := c.client.ReadFromStream(c.ctx, 10, 5*time.Second)
			if err != nil {
				if c.ctx.Err() != nil {
					return nil
				}
				// Check if connection is healthy
				if !c.client.IsHealthy() {
					return fmt.Errorf("Redis connection unhealthy, will reconnect")
				}
				c.logger.Error("Error reading from stream", zap.Error(err))
				time.Sleep(1 * time.Second)
				continue
			}

			// Process messages from the stream
			for _, stream := range streams {
				for _, message := range stream.Messages {
					c.handleStreamMessage(message)
				}
			}
		}
	}
}

// handleStreamMessage processes a single Redis Stream message
func (c *Consumer) handleStreamMessage(msg redis.XMessage) {
	c.logger.Debug("Received render request from stream",
		zap.String("message_id", msg.ID),
		zap.Int("fields_count", len(msg.Values)))

	request, err := parseStreamMessage(msg)
	if err != nil {
		c.logger.Error("Dropping malformed stream message",
			zap.Error(err),
			zap.String("message_id", msg.ID))
		// Acknowledge the message to prevent reprocessing bad data
		_ = c.client.AcknowledgeMessage(c.ctx, msg.ID)
		return
	}

	// Handle the request; failures still produce a result carrying the error
	result, err := c.handler.Handle(c.ctx, request)
	if err != nil {
		c.logger.Error("Failed to handle render request",
			zap.Error(err),
			zap.String("message_id", msg.ID),
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

	// Publish the result to the request's pub/sub channel
	if err := c.client.PublishRenderResult(c.ctx, result); err != nil {
		c.logger.Error("Failed to publish render result",
			zap.Error(err),
			zap.String("message_id", msg.ID),
			zap.String("id", request.ID))
		// Don't acknowledge if we failed to publish - allow retry
		return
	}

	// Acknowledge the message after successful processing and publishing
	if err := c.client.AcknowledgeMessage(c.ctx, msg.ID); err != nil {
		c.logger.Error("Failed to acknowledge message",
			zap.Error(err),
			zap.String("message_id", msg.ID))
	} else {
		c.logger.Debug("Message processed and acknowledged",
			zap.String("message_id", msg.ID),
			zap.String("id", request.ID))
	}
}

// parseStreamMessage extracts the JSON payload of a stream entry. A request
// without an id takes the stream message id.
func parseStreamMessage(msg redis.XMessage) (*models.RenderRequest, error) {
	payload, ok := msg.Values["payload"].(string)
	if !ok {
		return nil, fmt.Errorf("message has no payload field")
	}

	var request models.RenderRequest
	if err := json.Unmarshal([]byte(payload), &request); err != nil {
		return nil, fmt.Errorf("failed to unmarshal render request: %w", err)
	}
	if request.ID == "" {
		request.ID = msg.ID
	}
	return &request, nil
}
