package worker

import (
	"context"
	"errors"
	"hash/fnv"
	"sync"

	"github.com/rs/zerolog"
)

var ErrPoolStopped = errors.New("worker pool stopped")

type Job func(context.Context) error

// KeyedPool runs jobs on a fixed set of workers. All jobs submitted with the
// same key run on the same worker in submission order, so two jobs for one
// key never overlap.
type KeyedPool struct {
	workerCount int
	queues      []chan Job
	wg          sync.WaitGroup
	mu          sync.RWMutex
	stopped     bool
	log         zerolog.Logger
}

func NewKeyedPool(workerCount, queueSize int, log zerolog.Logger) *KeyedPool {
	if workerCount <= 0 {
		workerCount = 1
	}
	if queueSize <= 0 {
		queueSize = workerCount * 2
	}
	queues := make([]chan Job, workerCount)
	for i := range queues {
		queues[i] = make(chan Job, queueSize)
	}
	return &KeyedPool{
		workerCount: workerCount,
		queues:      queues,
		log:         log.With().Str("component", "worker_pool").Logger(),
	}
}

func (wp *KeyedPool) Start(ctx context.Context) {
	wp.log.Info().Int("worker_count", wp.workerCount).Msg("Starting worker pool")

	for i := 0; i < wp.workerCount; i++ {
		wp.wg.Add(1)
		go wp.worker(ctx, i)
	}
}

// Stop lets the workers drain their queues and waits for them.
func (wp *KeyedPool) Stop() {
	wp.log.Info().Msg("Stopping worker pool")
	wp.mu.Lock()
	if !wp.stopped {
		wp.stopped = true
		for _, q := range wp.queues {
			close(q)
		}
	}
	wp.mu.Unlock()
	wp.wg.Wait()
	wp.log.Info().Msg("Worker pool stopped")
}

// Submit queues job on the worker that owns key. It blocks while that
// worker's queue is full.
func (wp *KeyedPool) Submit(ctx context.Context, key string, job Job) error {
	wp.mu.RLock()
	defer wp.mu.RUnlock()
	if wp.stopped {
		return ErrPoolStopped
	}

	select {
	case wp.queues[wp.shard(key)] <- job:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (wp *KeyedPool) shard(key string) int {
	h := fnv.New32a()
	h.Write([]byte(key))
	return int(h.Sum32() % uint32(wp.workerCount))
}

// worker runs every job of its queue until Stop closes it. Jobs accepted
// before Stop still run, on a context that outlives the one given to Start.
func (wp *KeyedPool) worker(ctx context.Context, id int) {
	defer wp.wg.Done()

	ctx = context.WithoutCancel(ctx)
	log := wp.log.With().Int("worker_id", id).Logger()
	log.Debug().Msg("Worker started")

	for job := range wp.queues[id] {
		if err := job(ctx); err != nil {
			log.Error().Err(err).Msg("Job execution failed")
		}
	}
	log.Debug().Msg("Worker stopping due to closed job channel")
}
