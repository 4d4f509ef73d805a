package queue

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"sync"
	"testing"
	"time"

	"github.com/aspirant2018/niqatech-backend/internal/model"
	"github.com/aspirant2018/niqatech-backend/pkg/errors"

	"github.com/go-redis/redis/v8"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeList is an in-memory stand-in for redis lists.
type fakeList struct {
	mu      sync.Mutex
	lists   map[string][]string
	pushErr error
}

func newFakeList() *fakeList {
	return &fakeList{lists: map[string][]string{}}
}

func (f *fakeList) LPush(ctx context.Context, key string, values ...interface{}) *redis.IntCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.pushErr != nil {
		return redis.NewIntResult(0, f.pushErr)
	}
	for _, v := range values {
		var s string
		switch v := v.(type) {
		case []byte:
			s = string(v)
		case string:
			s = v
		}
		f.lists[key] = append([]string{s}, f.lists[key]...)
	}
	return redis.NewIntResult(int64(len(f.lists[key])), nil)
}

func (f *fakeList) BRPop(ctx context.Context, timeout time.Duration, keys ...string) *redis.StringSliceCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, key := range keys {
		l := f.lists[key]
		if len(l) == 0 {
			continue
		}
		last := l[len(l)-1]
		f.lists[key] = l[:len(l)-1]
		return redis.NewStringSliceResult([]string{key, last}, nil)
	}
	if err := ctx.Err(); err != nil {
		return redis.NewStringSliceResult(nil, err)
	}
	return redis.NewStringSliceResult(nil, redis.Nil)
}

func (f *fakeList) items(key string) []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.lists[key]...)
}

func TestProducerEnqueuesJSON(t *testing.T) {
	list := newFakeList()
	p := &Producer{client: list, queue: "gradebook:rewrite"}

	job := model.RewriteJob{FileID: "f-1", ClassroomID: 3, StudentIDs: []int64{11, 12}}
	require.NoError(t, p.EnqueueRewriteJob(context.Background(), job))

	items := list.items("gradebook:rewrite")
	require.Len(t, items, 1)
	var got model.RewriteJob
	require.NoError(t, json.Unmarshal([]byte(items[0]), &got))
	assert.Equal(t, job, got)
}

func TestProducerDeadLetter(t *testing.T) {
	list := newFakeList()
	p := &Producer{client: list, queue: "q", dlq: "q:dlq"}

	require.NoError(t, p.DeadLetter(context.Background(), model.RewriteJob{FileID: "f-1", Attempt: 2}))
	assert.Empty(t, list.items("q"))
	assert.Len(t, list.items("q:dlq"), 1)
}

func TestProducerFailureIsRetryable(t *testing.T) {
	list := newFakeList()
	list.pushErr = stderrors.New("connection refused")
	p := &Producer{client: list, queue: "q"}

	err := p.EnqueueRewriteJob(context.Background(), model.RewriteJob{FileID: "f-1"})
	assert.True(t, errors.IsRetryable(err))
}

func TestConsumerFIFOAndDLQ(t *testing.T) {
	list := newFakeList()
	p := &Producer{client: list, queue: "q"}
	c := &Consumer{client: list, queue: "q", dlqSuffix: ":dlq", log: zerolog.Nop()}

	for _, id := range []string{"a", "b", "c"} {
		require.NoError(t, p.EnqueueRewriteJob(context.Background(), model.RewriteJob{FileID: id}))
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var seen []string
	err := c.ConsumeRewriteQueue(ctx, func(ctx context.Context, data []byte) error {
		var job model.RewriteJob
		require.NoError(t, json.Unmarshal(data, &job))
		seen = append(seen, job.FileID)
		if len(seen) == 3 {
			cancel()
		}
		if job.FileID == "b" {
			return stderrors.New("sheet not found")
		}
		return nil
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, []string{"a", "b", "c"}, seen)

	dlq := list.items("q:dlq")
	require.Len(t, dlq, 1)
	assert.Contains(t, dlq[0], `"file_id":"b"`)
	assert.Empty(t, list.items("q"))
}
