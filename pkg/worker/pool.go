package worker

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/T3-Labs/coop-cam/pkg/logger"
)

type Job interface {
	Process(ctx context.Context) error
	GetID() string
}

// Pool executa jobs pesados (codificação de gravações) fora do caminho de
// ingestão de frames.
type Pool struct {
	jobs       chan Job
	results    chan error
	workers    int
	ctx        context.Context
	cancel     context.CancelFunc
	processing int32

	totalProcessed int64
	totalErrors    int64
}

func NewPool(ctx context.Context, workers int, bufferSize int) *Pool {
	ctx, cancel := context.WithCancel(ctx)

	pool := &Pool{
		jobs:    make(chan Job, bufferSize),
		results: make(chan error, bufferSize),
		workers: workers,
		ctx:     ctx,
		cancel:  cancel,
	}

	for i := 0; i < workers; i++ {
		go pool.worker(i)
	}

	go pool.resultCollector()

	if logger.Log != nil {
		logger.Log.Infow("Worker pool inicializado",
			"workers", workers,
			"buffer_size", bufferSize)
	}

	return pool
}

func (p *Pool) worker(id int) {
	for {
		select {
		case <-p.ctx.Done():
			return

		case job, ok := <-p.jobs:
			if !ok {
				return
			}

			atomic.AddInt32(&p.processing, 1)

			err := job.Process(p.ctx)

			atomic.AddInt32(&p.processing, -1)
			atomic.AddInt64(&p.totalProcessed, 1)

			if err != nil {
				atomic.AddInt64(&p.totalErrors, 1)
				if logger.Log != nil {
					logger.Log.Errorw("Job falhou",
						"worker", id,
						"job_id", job.GetID(),
						"error", err)
				}
			}

			select {
			case p.results <- err:
			case <-p.ctx.Done():
				return
			default:
			}
		}
	}
}

func (p *Pool) resultCollector() {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-p.ctx.Done():
			return

		case <-ticker.C:
			processed := atomic.LoadInt64(&p.totalProcessed)
			errors := atomic.LoadInt64(&p.totalErrors)
			if processed > 0 && logger.Log != nil {
				errorRate := float64(errors) / float64(processed) * 100
				logger.Log.Infow("Worker pool stats",
					"processed", processed,
					"errors", errors,
					"error_rate_pct", fmt.Sprintf("%.2f", errorRate),
					"processing", atomic.LoadInt32(&p.processing))
			}

		case <-p.results:
		}
	}
}

func (p *Pool) Submit(job Job) error {
	select {
	case p.jobs <- job:
		return nil
	case <-p.ctx.Done():
		return fmt.Errorf("pool fechado")
	default:
		return fmt.Errorf("buffer cheio")
	}
}

func (p *Pool) SubmitNonBlocking(job Job) bool {
	select {
	case p.jobs <- job:
		return true
	default:
		return false
	}
}

func (p *Pool) Close() {
	close(p.jobs)

	timeout := time.After(5 * time.Second)
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-timeout:
			if logger.Log != nil {
				logger.Log.Warnw("Timeout no encerramento do worker pool",
					"processing", atomic.LoadInt32(&p.processing))
			}
			p.cancel()
			return

		case <-ticker.C:
			if atomic.LoadInt32(&p.processing) == 0 {
				p.cancel()
				return
			}
		}
	}
}

func (p *Pool) Stats() PoolStats {
	return PoolStats{
		Workers:        p.workers,
		QueueSize:      len(p.jobs),
		Processing:     int(atomic.LoadInt32(&p.processing)),
		Capacity:       cap(p.jobs),
		TotalProcessed: atomic.LoadInt64(&p.totalProcessed),
		TotalErrors:    atomic.LoadInt64(&p.totalErrors),
	}
}

type PoolStats struct {
	Workers        int
	QueueSize      int
	Processing     int
	Capacity       int
	TotalProcessed int64
	TotalErrors    int64
}

func (ps PoolStats) String() string {
	return fmt.Sprintf("Workers: %d, Queue: %d/%d, Processing: %d, Total: %d (erros: %d)",
		ps.Workers, ps.QueueSize, ps.Capacity, ps.Processing, ps.TotalProcessed, ps.TotalErrors)
}
