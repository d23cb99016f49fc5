// Package concurrency provides a bounded executor for blocking calls.
//
// The executor caps the number of concurrently running calls at a fixed
// size, so a shared client (e.g. an object storage SDK) can service many
// callers without each call occupying its own unbounded OS thread. The
// caller blocks until its own call finishes; there is no queueing layer
// or fire-and-forget mode.
package concurrency

import (
	"context"
	"errors"
	"sync/atomic"
	"time"
)

// Metrics tracks the executor's operational counters.
type Metrics struct {
	ActiveCalls    atomic.Int64
	CompletedCalls atomic.Int64
	FailedCalls    atomic.Int64
	WaitTime       atomic.Int64 // nanoseconds spent waiting for a slot
}

// Executor limits the number of concurrently executing calls.
type Executor struct {
	slots   chan struct{}
	metrics *Metrics
}

// NewExecutor creates an executor with the given number of slots.
// Size values below 1 fall back to 1.
func NewExecutor(size int) *Executor {
	if size < 1 {
		size = 1
	}
	return &Executor{
		slots:   make(chan struct{}, size),
		metrics: &Metrics{},
	}
}

// Execute runs fn once a slot is available and returns its error.
// Waiting for a slot is interruptible through ctx; the running call
// itself is not.
func (e *Executor) Execute(ctx context.Context, fn func() error) error {
	if fn == nil {
		return errors.New("executor: nil call")
	}

	start := time.Now()
	select {
	case e.slots <- struct{}{}:
		e.metrics.WaitTime.Add(time.Since(start).Nanoseconds())
	case <-ctx.Done():
		return ctx.Err()
	}

	e.metrics.ActiveCalls.Add(1)
	defer func() {
		e.metrics.ActiveCalls.Add(-1)
		<-e.slots
	}()

	if err := fn(); err != nil {
		e.metrics.FailedCalls.Add(1)
		return err
	}
	e.metrics.CompletedCalls.Add(1)
	return nil
}

// GetMetrics returns the current counters.
func (e *Executor) GetMetrics() map[string]int64 {
	return map[string]int64{
		"active_calls":    e.metrics.ActiveCalls.Load(),
		"completed_calls": e.metrics.CompletedCalls.Load(),
		"failed_calls":    e.metrics.FailedCalls.Load(),
		"wait_time":       e.metrics.WaitTime.Load(),
	}
}

// IsIdle returns whether no call is currently executing.
func (e *Executor) IsIdle() bool {
	return e.metrics.ActiveCalls.Load() == 0
}
