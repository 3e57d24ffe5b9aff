package workers

import (
	"context"
	"errors"
	"strconv"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/yoockh/medscribe/internal/utils"
)

// Task is one unit of work, typically a whole workflow run. ctx is the
// pool's context.
type Task func(ctx context.Context)

type WorkflowPool struct {
	NumWorkers int
	QueueSize  int
	Logger     *logrus.Logger

	queue   chan Task
	wg      sync.WaitGroup
	mu      sync.RWMutex
	started bool
	closed  bool
}

func (p *WorkflowPool) Start(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.started {
		return errors.New("WorkflowPool already started")
	}
	if p.NumWorkers <= 0 {
		p.NumWorkers = 4
	}
	if p.QueueSize <= 0 {
		p.QueueSize = 64
	}
	if p.Logger == nil {
		p.Logger = logrus.New()
	}

	p.queue = make(chan Task, p.QueueSize)
	p.started = true

	for i := 0; i < p.NumWorkers; i++ {
		p.wg.Add(1)
		go p.runWorker(ctx, "w-"+strconv.Itoa(i+1))
	}
	return nil
}

func (p *WorkflowPool) runWorker(ctx context.Context, name string) {
	defer p.wg.Done()
	log := p.Logger.WithField("worker", name)

	for task := range p.queue {
		p.run(ctx, log, task)
	}
}

func (p *WorkflowPool) run(ctx context.Context, log *logrus.Entry, task Task) {
	defer func() {
		if r := recover(); r != nil {
			log.WithField("panic", r).Error("task panicked")
		}
	}()
	task(ctx)
}

// Enqueue hands t to a worker without blocking. It fails with
// UNAVAILABLE when the queue is full or the pool is not running.
func (p *WorkflowPool) Enqueue(t Task) error {
	const op = "WorkflowPool.Enqueue"

	p.mu.RLock()
	defer p.mu.RUnlock()

	if !p.started || p.closed {
		return utils.E(utils.CodeUnavailable, op, "worker pool is not running", nil)
	}
	select {
	case p.queue <- t:
		return nil
	default:
		return utils.E(utils.CodeUnavailable, op, "workflow queue is full", nil)
	}
}

// Shutdown stops accepting tasks and waits for queued ones to finish or
// ctx to expire.
func (p *WorkflowPool) Shutdown(ctx context.Context) error {
	p.mu.Lock()
	if p.started && !p.closed {
		p.closed = true
		close(p.queue)
	}
	p.mu.Unlock()

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
