// Package background runs detached, best-effort work that must never delay or
// fail the request that scheduled it.
package background

import (
	"context"
	"fmt"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
)

// Task is a unit of detached work. Its error is logged and discarded.
type Task func(ctx context.Context) error

// Runner schedules detached tasks.
type Runner interface {
	Go(name string, task Task)
}

// Pool runs every task on its own goroutine with a context that is detached
// from the caller and bounded by a per-task timeout.
type Pool struct {
	mu      sync.Mutex
	wg      sync.WaitGroup
	closed  bool
	base    context.Context
	cancel  context.CancelFunc
	timeout time.Duration
}

func NewPool(timeout time.Duration) *Pool {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Pool{base: ctx, cancel: cancel, timeout: timeout}
}

func (p *Pool) Go(name string, task Task) {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		log.WithField("task", name).Warn("background pool is shut down, task dropped")
		return
	}
	p.wg.Add(1)
	p.mu.Unlock()

	go func() {
		defer p.wg.Done()
		ctx, cancel := context.WithTimeout(p.base, p.timeout)
		defer cancel()
		run(ctx, name, task)
	}()
}

// Shutdown stops accepting tasks and waits for running ones. When ctx expires
// first, the remaining tasks are cancelled.
func (p *Pool) Shutdown(ctx context.Context) error {
	p.mu.Lock()
	p.closed = true
	p.mu.Unlock()

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		p.cancel()
		return nil
	case <-ctx.Done():
		p.cancel()
		return fmt.Errorf("background tasks still running: %w", ctx.Err())
	}
}

// Inline runs tasks synchronously on the calling goroutine.
type Inline struct{}

func (Inline) Go(name string, task Task) {
	run(context.Background(), name, task)
}

func run(ctx context.Context, name string, task Task) {
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			log.WithField("task", name).Errorf("background task panicked: %v", r)
		}
	}()

	if err := task(ctx); err != nil {
		log.WithFields(log.Fields{
			"task":    name,
			"latency": time.Since(start),
		}).WithError(err).Error("background task failed")
		return
	}
	log.WithFields(log.Fields{"task": name, "latency": time.Since(start)}).Debug("background task finished")
}
