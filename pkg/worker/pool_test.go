package worker

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type testJob struct {
	id        string
	shouldErr bool
	delay     time.Duration
	processed int32
}

func (j *testJob) GetID() string {
	return j.id
}

func (j *testJob) Process(ctx context.Context) error {
	if j.delay > 0 {
		time.Sleep(j.delay)
	}

	atomic.AddInt32(&j.processed, 1)

	if j.shouldErr {
		return errors.New("test error")
	}

	return nil
}

func TestNewPool(t *testing.T) {
	pool := NewPool(context.Background(), 5, 10)

	assert.NotNil(t, pool)
	assert.Equal(t, 5, pool.workers)
	assert.Equal(t, 10, cap(pool.jobs))

	pool.Close()
}

func TestPoolSubmit(t *testing.T) {
	pool := NewPool(context.Background(), 2, 10)
	defer pool.Close()

	job := &testJob{id: "encode-1"}

	err := pool.Submit(job)
	assert.NoError(t, err)

	time.Sleep(100 * time.Millisecond)

	assert.Equal(t, int32(1), atomic.LoadInt32(&job.processed))
}

func TestPoolBufferFull(t *testing.T) {
	pool := NewPool(context.Background(), 1, 2)
	defer pool.Close()

	slow := 300 * time.Millisecond

	err := pool.Submit(&testJob{id: "job1", delay: slow})
	assert.NoError(t, err)

	time.Sleep(10 * time.Millisecond)

	err = pool.Submit(&testJob{id: "job2", delay: slow})
	assert.NoError(t, err)

	err = pool.Submit(&testJob{id: "job3", delay: slow})
	assert.NoError(t, err)

	err = pool.Submit(&testJob{id: "job4"})
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "buffer cheio")

	assert.False(t, pool.SubmitNonBlocking(&testJob{id: "job5"}))
}

func TestPoolWithErrors(t *testing.T) {
	pool := NewPool(context.Background(), 2, 10)
	defer pool.Close()

	assert.NoError(t, pool.Submit(&testJob{id: "success"}))
	assert.NoError(t, pool.Submit(&testJob{id: "error", shouldErr: true}))

	time.Sleep(200 * time.Millisecond)

	stats := pool.Stats()
	assert.Equal(t, int64(2), stats.TotalProcessed)
	assert.Equal(t, int64(1), stats.TotalErrors)
}

func TestPoolClose(t *testing.T) {
	pool := NewPool(context.Background(), 2, 10)

	job := &testJob{id: "encode", delay: 100 * time.Millisecond}
	assert.NoError(t, pool.Submit(job))

	time.Sleep(200 * time.Millisecond)

	pool.Close()

	assert.Equal(t, int32(1), atomic.LoadInt32(&job.processed))
}

func TestPoolStats(t *testing.T) {
	pool := NewPool(context.Background(), 3, 20)
	defer pool.Close()

	stats := pool.Stats()
	assert.Equal(t, 3, stats.Workers)
	assert.Equal(t, 20, stats.Capacity)
	assert.Equal(t, int64(0), stats.TotalProcessed)

	for i := 0; i < 10; i++ {
		_ = pool.Submit(&testJob{
			id:        fmt.Sprintf("job-%d", i),
			shouldErr: i%3 == 0,
		})
	}

	time.Sleep(500 * time.Millisecond)

	stats = pool.Stats()
	assert.Equal(t, int64(10), stats.TotalProcessed)
	assert.Greater(t, stats.TotalErrors, int64(0))
}
