package queue

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/aspirant2018/niqatech-backend/internal/config"
	"github.com/aspirant2018/niqatech-backend/internal/model"
	"github.com/aspirant2018/niqatech-backend/pkg/errors"
)

type Producer struct {
	client listClient
	queue  string
	dlq    string
}

func NewProducer(redisClient *RedisClient, cfg config.RedisConfig) *Producer {
	return &Producer{
		client: redisClient.Client(),
		queue:  cfg.RewriteQueue,
		dlq:    cfg.RewriteQueue + cfg.DLQSuffix,
	}
}

func (p *Producer) EnqueueRewriteJob(ctx context.Context, job model.RewriteJob) error {
	return p.push(ctx, p.queue, job)
}

// DeadLetter parks a job that failed for good on the dead letter queue.
func (p *Producer) DeadLetter(ctx context.Context, job model.RewriteJob) error {
	return p.push(ctx, p.dlq, job)
}

func (p *Producer) push(ctx context.Context, queue string, job model.RewriteJob) error {
	data, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("failed to marshal rewrite job: %w", err)
	}

	if err := p.client.LPush(ctx, queue, data).Err(); err != nil {
		return errors.NewRetryableError(err, "failed to push rewrite job to "+queue)
	}
	return nil
}
