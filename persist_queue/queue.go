package persist_queue

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	DefaultWorkers       = 4
	DefaultCapacity      = 100
	DefaultFailureBuffer = 32
)

var ErrStopped = errors.New("persist queue is stopped")

type queueImpl struct {
	queue    chan Task
	failures chan Failure
	log      *slog.Logger
	metrics  *metrics

	mu      sync.RWMutex
	stopped bool

	// pending counts unfinished tasks; idle is broadcast when it reaches zero.
	pendingMu sync.Mutex
	pending   int
	idle      *sync.Cond

	workers sync.WaitGroup
}

type Config struct {
	Workers       int
	Capacity      int
	FailureBuffer int
	Logger        *slog.Logger
	// Registerer receives the queue metrics; nil leaves them unregistered.
	Registerer prometheus.Registerer
}

func New(cfg Config) (Queue, error) {
	if cfg.Workers < 0 || cfg.Capacity < 0 || cfg.FailureBuffer < 0 {
		return nil, errors.New("queue sizes must not be negative")
	}

	if cfg.Workers == 0 {
		cfg.Workers = DefaultWorkers
	}

	if cfg.Capacity == 0 {
		cfg.Capacity = DefaultCapacity
	}

	if cfg.FailureBuffer == 0 {
		cfg.FailureBuffer = DefaultFailureBuffer
	}

	q := &queueImpl{
		queue:    make(chan Task, cfg.Capacity),
		failures: make(chan Failure, cfg.FailureBuffer),
		log:      cfg.Logger,
		metrics:  newMetrics(cfg.Registerer),
	}

	if q.log == nil {
		q.log = slog.Default()
	}

	q.idle = sync.NewCond(&q.pendingMu)

	for i := 0; i < cfg.Workers; i++ {
		q.workers.Add(1)

		go q.work()
	}

	return q, nil
}

func (q *queueImpl) Enqueue(t Task) error {
	if t.Run == nil {
		return errors.New("task has nothing to run")
	}

	q.mu.RLock()
	defer q.mu.RUnlock()

	if q.stopped {
		return ErrStopped
	}

	q.pendingMu.Lock()
	q.pending++
	q.pendingMu.Unlock()
	q.metrics.pending.Inc()

	// Blocks while the buffer is full.
	q.queue <- t

	return nil
}

func (q *queueImpl) Failures() <-chan Failure {
	return q.failures
}

func (q *queueImpl) Wait() {
	q.pendingMu.Lock()
	defer q.pendingMu.Unlock()

	for q.pending > 0 {
		q.idle.Wait()
	}
}

func (q *queueImpl) done() {
	q.metrics.pending.Dec()

	q.pendingMu.Lock()
	defer q.pendingMu.Unlock()

	q.pending--
	if q.pending == 0 {
		q.idle.Broadcast()
	}
}

func (q *queueImpl) Stop() {
	q.mu.Lock()
	if q.stopped {
		q.mu.Unlock()

		return
	}

	q.stopped = true
	close(q.queue)
	q.mu.Unlock()

	q.workers.Wait()
}

func (q *queueImpl) work() {
	defer q.workers.Done()

	for t := range q.queue {
		q.run(t)
	}
}

func (q *queueImpl) run(t Task) {
	const op = "persist_queue.run"

	defer q.done()

	err := q.safeRun(t)
	if err == nil {
		q.metrics.tasks.WithLabelValues("success").Inc()

		return
	}

	q.metrics.tasks.WithLabelValues("failure").Inc()

	q.log.Warn("background persistence failed",
		slog.String("op", op),
		slog.String("task", t.Name),
		slog.String("miniature_id", t.MiniatureID.String()),
		slog.Any("err", err))

	select {
	case q.failures <- Failure{Task: t.Name, MiniatureID: t.MiniatureID, Err: err}:
	default:
		q.metrics.dropped.Inc()
	}
}

// safeRun keeps a panicking task from taking a worker down with it.
func (q *queueImpl) safeRun(t Task) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("task panicked: %v", r)
		}
	}()

	return t.Run(context.Background())
}
