// Package performance runs virtual users against a target service.
package performance

import (
	"context"
	"fmt"
	"math/rand"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/wesleyorama2/shortload/internal/logger"
	"github.com/wesleyorama2/shortload/internal/performance/metrics"
)

// VUState represents the lifecycle state of a Virtual User.
type VUState int32

const (
	// VUStateIdle indicates the VU is ready but not currently running.
	VUStateIdle VUState = iota
	// VUStateRunning indicates the VU is actively running an iteration.
	VUStateRunning
	// VUStateStopping indicates the VU has been requested to stop.
	VUStateStopping
	// VUStateStopped indicates the VU has fully stopped.
	VUStateStopped
)

func (s VUState) String() string {
	switch s {
	case VUStateIdle:
		return "idle"
	case VUStateRunning:
		return "running"
	case VUStateStopping:
		return "stopping"
	case VUStateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// VirtualUser is a single simulated user.
//
// Each VU owns its random source and its Behavior, so a VU must only be
// driven from one goroutine at a time. Lifecycle state is atomic and may be
// read from anywhere.
type VirtualUser struct {
	// ID is unique within a scheduler and starts at 1.
	ID int

	// HTTPClient is shared across VUs unless connection reuse is disabled.
	HTTPClient *http.Client

	// Metrics receives every sample the behavior records.
	Metrics *metrics.Engine

	rng      *rand.Rand
	behavior Behavior
	started  bool

	state     atomic.Int32
	stopCh    chan struct{}
	doneCh    chan struct{}
	iteration atomic.Int64
}

// NewVirtualUser creates a VU with the given random seed. The behavior is
// built by factory once the VU exists; a nil factory yields a VU whose
// iterations do nothing.
func NewVirtualUser(id int, seed int64, factory BehaviorFactory, httpClient *http.Client, metricsEngine *metrics.Engine) *VirtualUser {
	vu := &VirtualUser{
		ID:         id,
		HTTPClient: httpClient,
		Metrics:    metricsEngine,
		rng:        rand.New(rand.NewSource(seed)),
		stopCh:     make(chan struct{}),
		doneCh:     make(chan struct{}),
	}
	if factory != nil {
		vu.behavior = factory(vu)
	}
	return vu
}

// Rand returns the VU's private random source.
func (vu *VirtualUser) Rand() *rand.Rand {
	return vu.rng
}

// Behavior returns the VU's user model, or nil.
func (vu *VirtualUser) Behavior() Behavior {
	return vu.behavior
}

// GetState returns the current VU state.
func (vu *VirtualUser) GetState() VUState {
	return VUState(vu.state.Load())
}

// GetIteration returns the number of iterations started so far.
func (vu *VirtualUser) GetIteration() int64 {
	return vu.iteration.Load()
}

// RunIteration runs one iteration: OnStart on the first call, then a single
// task picked by weight.
func (vu *VirtualUser) RunIteration(ctx context.Context) error {
	currentState := vu.GetState()
	if currentState == VUStateStopping || currentState == VUStateStopped {
		return fmt.Errorf("VU %d is stopping or stopped", vu.ID)
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-vu.stopCh:
		return nil
	default:
	}

	vu.state.CompareAndSwap(int32(VUStateIdle), int32(VUStateRunning))
	defer vu.state.CompareAndSwap(int32(VUStateRunning), int32(VUStateIdle))
	vu.iteration.Add(1)

	if vu.behavior == nil {
		return nil
	}

	if !vu.started {
		vu.started = true
		vu.behavior.OnStart(ctx)
		if ctx.Err() != nil {
			return ctx.Err()
		}
	}

	task, ok := PickTask(vu.rng, vu.behavior.Tasks())
	if !ok {
		return nil
	}

	logger.Log.Debugw("running task", "vu", vu.ID, "iteration", vu.iteration.Load(), "task", task.Name)
	task.Run(ctx)
	return ctx.Err()
}

// Record implements Recorder by forwarding the sample to the metrics engine.
func (vu *VirtualUser) Record(s Sample) {
	if vu.Metrics == nil {
		return
	}
	vu.Metrics.RecordLatency(s.Duration, s.Name, s.Passed, s.Bytes)
	if !s.Passed && s.Failure != "" {
		vu.Metrics.RecordFailure(s.Name, s.Failure)
	}
	if s.Checked {
		vu.Metrics.RecordCheck(s.Passed)
	}
}

// RequestStop signals the VU to stop after the current iteration.
func (vu *VirtualUser) RequestStop() {
	if vu.state.CompareAndSwap(int32(VUStateRunning), int32(VUStateStopping)) ||
		vu.state.CompareAndSwap(int32(VUStateIdle), int32(VUStateStopping)) {
		close(vu.stopCh)
	}
}

// WaitForStop waits for the VU to stop. It returns false on timeout.
func (vu *VirtualUser) WaitForStop(timeout time.Duration) bool {
	select {
	case <-vu.doneCh:
		return true
	case <-time.After(timeout):
		return false
	}
}

// MarkStopped marks the VU as fully stopped.
// Should be called by the scheduler when the VU goroutine exits.
func (vu *VirtualUser) MarkStopped() {
	if vu.state.Swap(int32(VUStateStopped)) == int32(VUStateStopped) {
		return
	}
	close(vu.doneCh)
}

var _ Recorder = (*VirtualUser)(nil)
