package scheduler

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
)

// ErrAlreadyRunning is returned when a second loop is started.
var ErrAlreadyRunning = errors.New("scheduler is already running")

// State is the lifecycle token of a scheduler.
type State int32

const (
	StateIdle State = iota
	StateRunning
	StateStopping
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRunning:
		return "running"
	case StateStopping:
		return "stopping"
	default:
		return "unknown"
	}
}

// control guards the Idle -> Running -> Stopping -> Idle transitions. The
// stop context is cancelled by stop() so in-progress sleeps end early.
type control struct {
	state  atomic.Int32
	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

func (c *control) begin(parent context.Context) (context.Context, error) {
	if !c.state.CompareAndSwap(int32(StateIdle), int32(StateRunning)) {
		return nil, ErrAlreadyRunning
	}
	stopCtx, cancel := context.WithCancel(parent)

	c.mu.Lock()
	c.cancel = cancel
	c.done = make(chan struct{})
	c.mu.Unlock()
	return stopCtx, nil
}

func (c *control) end() {
	c.mu.Lock()
	cancel, done := c.cancel, c.done
	c.cancel = nil
	c.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	c.state.Store(int32(StateIdle))
	if done != nil {
		close(done)
	}
}

func (c *control) stop() bool {
	if !c.state.CompareAndSwap(int32(StateRunning), int32(StateStopping)) {
		return false
	}
	c.mu.Lock()
	cancel := c.cancel
	c.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	return true
}

func (c *control) stopped(stopCtx context.Context) bool {
	return stopCtx.Err() != nil || State(c.state.Load()) == StateStopping
}

func (c *control) wait(ctx context.Context) error {
	c.mu.Lock()
	done := c.done
	c.mu.Unlock()
	if done == nil {
		return nil
	}
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *control) current() State {
	return State(c.state.Load())
}
