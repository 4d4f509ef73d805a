package queue

import (
	"context"
	"time"

	"github.com/aspirant2018/niqatech-backend/internal/config"

	"github.com/go-redis/redis/v8"
	"github.com/rs/zerolog"
)

const (
	popTimeout   = 5 * time.Second
	errorBackoff = time.Second
)

type Consumer struct {
	client    listClient
	queue     string
	dlqSuffix string
	log       zerolog.Logger
}

type MessageHandler func(ctx context.Context, data []byte) error

func NewConsumer(redisClient *RedisClient, cfg config.RedisConfig, log zerolog.Logger) *Consumer {
	return &Consumer{
		client:    redisClient.Client(),
		queue:     cfg.RewriteQueue,
		dlqSuffix: cfg.DLQSuffix,
		log:       log.With().Str("component", "consumer").Logger(),
	}
}

// ConsumeRewriteQueue blocks until ctx is done, passing every message to
// handler. Messages the handler rejects are moved to the dead letter queue.
func (c *Consumer) ConsumeRewriteQueue(ctx context.Context, handler MessageHandler) error {
	return c.consume(ctx, c.queue, handler)
}

func (c *Consumer) consume(ctx context.Context, queueName string, handler MessageHandler) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
			result, err := c.client.BRPop(ctx, popTimeout, queueName).Result()
			if err != nil {
				if err == redis.Nil {
					continue // Timeout, continue polling
				}
				if ctx.Err() != nil {
					return ctx.Err()
				}
				c.log.Error().Err(err).Str("queue", queueName).Msg("Failed to consume message")
				select {
				case <-ctx.Done():
				case <-time.After(errorBackoff):
				}
				continue
			}

			if len(result) < 2 {
				continue
			}

			message := result[1]
			if err := handler(ctx, []byte(message)); err != nil {
				c.log.Error().Err(err).Str("queue", queueName).Msg("Failed to process message")
				// Move to DLQ
				dlqName := queueName + c.dlqSuffix
				if dlqErr := c.client.LPush(context.Background(), dlqName, message).Err(); dlqErr != nil {
					c.log.Error().Err(dlqErr).Str("dlq", dlqName).Msg("Failed to move message to DLQ")
				}
			}
		}
	}
}
