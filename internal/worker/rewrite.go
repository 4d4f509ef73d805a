package worker

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/aspirant2018/niqatech-backend/internal/config"
	"github.com/aspirant2018/niqatech-backend/internal/model"
	"github.com/aspirant2018/niqatech-backend/internal/queue"
	"github.com/aspirant2018/niqatech-backend/pkg/errors"

	"github.com/rs/zerolog"
)

// maxAttempts bounds how often a job failing with a retryable error is
// put back on the queue.
const maxAttempts = 3

type WriteBacker interface {
	WriteBack(ctx context.Context, job model.RewriteJob) error
}

type Enqueuer interface {
	EnqueueRewriteJob(ctx context.Context, job model.RewriteJob) error
	DeadLetter(ctx context.Context, job model.RewriteJob) error
}

// RewriteWorker consumes write-back jobs and runs them on a keyed pool so
// that jobs for the same file run one at a time.
type RewriteWorker struct {
	consumer   *queue.Consumer
	requeue    Enqueuer
	writer     WriteBacker
	workerPool *KeyedPool
	log        zerolog.Logger
}

func NewRewriteWorker(
	cfg *config.Config,
	writer WriteBacker,
	redisClient *queue.RedisClient,
	log zerolog.Logger,
) *RewriteWorker {
	log = log.With().Str("component", "rewrite_worker").Logger()
	return &RewriteWorker{
		consumer:   queue.NewConsumer(redisClient, cfg.Redis, log),
		requeue:    queue.NewProducer(redisClient, cfg.Redis),
		writer:     writer,
		workerPool: NewKeyedPool(cfg.Workers.Rewrite.Count, cfg.Workers.Rewrite.QueueSize, log),
		log:        log,
	}
}

func (w *RewriteWorker) Start(ctx context.Context) error {
	w.log.Info().Msg("Starting rewrite worker")

	// Start worker pool
	w.workerPool.Start(ctx)

	// Start consuming messages
	return w.consumer.ConsumeRewriteQueue(ctx, w.handleMessage)
}

// Stop waits for every accepted job to finish. Call it after the context
// given to Start is cancelled and Start has returned.
func (w *RewriteWorker) Stop() {
	w.log.Info().Msg("Stopping rewrite worker")
	w.workerPool.Stop()
}

func (w *RewriteWorker) handleMessage(ctx context.Context, data []byte) error {
	var job model.RewriteJob
	if err := json.Unmarshal(data, &job); err != nil {
		w.log.Error().Err(err).Msg("Failed to unmarshal rewrite job")
		return err
	}
	if job.FileID == "" {
		return fmt.Errorf("rewrite job without file id")
	}

	w.log.Info().
		Str("file_id", job.FileID).
		Int64("classroom_id", job.ClassroomID).
		Int("students", len(job.StudentIDs)).
		Msg("Processing rewrite job")

	// Submit job to worker pool. The message is already off the queue, so
	// shutdown must not abandon it between BRPOP and the pool.
	return w.workerPool.Submit(context.WithoutCancel(ctx), job.FileID, func(ctx context.Context) error {
		return w.process(ctx, job)
	})
}

func (w *RewriteWorker) process(ctx context.Context, job model.RewriteJob) error {
	log := w.log.With().Str("file_id", job.FileID).Int64("classroom_id", job.ClassroomID).Logger()

	err := w.writer.WriteBack(ctx, job)
	if err == nil {
		log.Info().Msg("Workbook updated")
		return nil
	}

	if errors.IsRetryable(err) && job.Attempt+1 < maxAttempts {
		job.Attempt++
		log.Warn().Err(err).Int("attempt", job.Attempt).Msg("Write-back failed, requeueing")
		if qerr := w.requeue.EnqueueRewriteJob(ctx, job); qerr != nil {
			return fmt.Errorf("failed to requeue job after %v: %w", err, qerr)
		}
		return nil
	}

	if dlqErr := w.requeue.DeadLetter(ctx, job); dlqErr != nil {
		log.Error().Err(dlqErr).Msg("Failed to move job to DLQ")
	}
	return fmt.Errorf("failed to write back grades of file %s: %w", job.FileID, err)
}
