// Package task runs named goroutines under a shared cancellable context.
package task

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/arloliu/go-urg/logger"
)

// ErrStopped is returned when starting a task on a stopped Manager.
var ErrStopped = errors.New("task: manager stopped")

// Func is a one-shot task. It should return when ctx is cancelled.
type Func func(ctx context.Context) error

// TickFunc is run on every tick of an interval task.
// It should return true to keep running, or false to stop the task.
type TickFunc func() bool

// PanicError is the result of a task that panicked.
type PanicError struct {
	Name  string
	Value any
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("task: %s panicked: %v", e.Name, e.Value)
}

// Manager manages the lifecycle of goroutines (tasks).
//
// Every task runs under a child of the parent context. Stop cancels it, and
// Wait blocks until all tasks have returned and reports their results.
//
// Example Usage:
//
//	mgr := task.NewManager(ctx, logger)
//	_ = mgr.Start("device", func(ctx context.Context) error { return responder.Run() })
//	<-mgr.Done("device")
//	mgr.Stop()
//	results := mgr.Wait()
type Manager struct {
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	logger logger.Logger
	count  atomic.Int32

	mu      sync.Mutex // protects results and done
	results map[string]error
	done    map[string]chan struct{}
}

// NewManager creates a Manager with ctx as the parent context.
func NewManager(ctx context.Context, l logger.Logger) *Manager {
	mgr := &Manager{
		logger:  l,
		results: make(map[string]error),
		done:    make(map[string]chan struct{}),
	}
	mgr.ctx, mgr.cancel = context.WithCancel(ctx)

	return mgr
}

// Context returns the context tasks run under.
func (mgr *Manager) Context() context.Context { return mgr.ctx }

// Start runs fn once in a new goroutine. Names must be unique.
func (mgr *Manager) Start(name string, fn Func) error {
	mgr.logger.Debug("task: start", "name", name)

	done, err := mgr.register(name)
	if err != nil {
		return err
	}

	mgr.wg.Add(1)
	mgr.count.Add(1)

	go func() {
		defer mgr.finish(name, done)

		err := mgr.callWithRecover(name, func() error { return fn(mgr.ctx) })

		mgr.mu.Lock()
		mgr.results[name] = err
		mgr.mu.Unlock()
	}()

	return nil
}

// StartInterval runs fn every interval until fn returns false or the manager stops.
func (mgr *Manager) StartInterval(name string, fn TickFunc, interval time.Duration) error {
	if interval <= 0 {
		return fmt.Errorf("task: invalid interval %v", interval)
	}

	return mgr.Start(name, func(ctx context.Context) error {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return nil
			case <-ticker.C:
				if !fn() {
					return nil
				}
			}
		}
	})
}

// Done returns a channel closed when the named task has returned. An unknown
// name yields a closed channel.
func (mgr *Manager) Done(name string) <-chan struct{} {
	mgr.mu.Lock()
	defer mgr.mu.Unlock()

	if ch, ok := mgr.done[name]; ok {
		return ch
	}

	ch := make(chan struct{})
	close(ch)

	return ch
}

// Stop cancels the context of all tasks.
func (mgr *Manager) Stop() {
	mgr.cancel()
}

// Wait waits for all tasks to return and reports each task's result by name.
func (mgr *Manager) Wait() map[string]error {
	mgr.wg.Wait()

	mgr.mu.Lock()
	defer mgr.mu.Unlock()

	out := make(map[string]error, len(mgr.results))
	for k, v := range mgr.results {
		out[k] = v
	}

	return out
}

// TaskCount returns the number of running tasks.
func (mgr *Manager) TaskCount() int {
	return int(mgr.count.Load())
}

func (mgr *Manager) register(name string) (chan struct{}, error) {
	if mgr.ctx.Err() != nil {
		return nil, ErrStopped
	}

	mgr.mu.Lock()
	defer mgr.mu.Unlock()

	if _, ok := mgr.done[name]; ok {
		return nil, fmt.Errorf("task: %s already exists", name)
	}

	done := make(chan struct{})
	mgr.done[name] = done

	return done, nil
}

func (mgr *Manager) finish(name string, done chan struct{}) {
	mgr.count.Add(-1)
	close(done)
	mgr.wg.Done()
	mgr.logger.Debug("task: terminated", "name", name, "task_count", mgr.TaskCount())
}

// callWithRecover calls fn with panic protection.
func (mgr *Manager) callWithRecover(name string, fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			mgr.logger.Error("task: panic in task", "name", name, "panic", r)
			err = &PanicError{Name: name, Value: r}
		}
	}()

	return fn()
}
