package performance

import (
	"context"
	"math/rand"
	"time"
)

// Task is one weighted action a behavior can perform in an iteration.
type Task struct {
	// Name labels the task in logs.
	Name string

	// Weight is the relative pick frequency. Tasks with Weight <= 0 are
	// never picked.
	Weight int

	// Run performs the action. Outcomes are reported through the VU's
	// Recorder, so Run returns nothing.
	Run func(ctx context.Context)
}

// Behavior is the per-VU user model: optional setup plus weighted tasks.
type Behavior interface {
	// OnStart runs once, before the VU's first task.
	OnStart(ctx context.Context)

	// Tasks returns the tasks to pick from. The slice is read on every
	// iteration and must not be mutated concurrently.
	Tasks() []Task
}

// BehaviorFactory builds a fresh Behavior for each spawned VU, so per-user
// state (such as the short ids a user created) is never shared.
type BehaviorFactory func(vu *VirtualUser) Behavior

// Sample is one classified outcome reported by a task.
type Sample struct {
	// Name is the request label used for the per-request breakdown.
	Name string

	Duration time.Duration
	Bytes    int64

	// Passed is the outcome. For checked samples it is the check verdict.
	Passed bool

	// Failure is the message recorded when Passed is false.
	Failure string

	// Checked marks samples whose outcome was decided by a response check.
	Checked bool
}

// Recorder receives samples. VirtualUser implements it on top of the
// metrics engine.
type Recorder interface {
	Record(s Sample)
}

// PickTask chooses one task with probability proportional to its weight.
// It returns false when no task has a positive weight.
func PickTask(rng *rand.Rand, tasks []Task) (Task, bool) {
	total := 0
	for _, t := range tasks {
		if t.Weight > 0 {
			total += t.Weight
		}
	}
	if total == 0 {
		return Task{}, false
	}

	n := rng.Intn(total)
	for _, t := range tasks {
		if t.Weight <= 0 {
			continue
		}
		if n < t.Weight {
			return t, true
		}
		n -= t.Weight
	}
	return Task{}, false
}

// WaitRange is an inclusive pause range between iterations.
type WaitRange struct {
	Min time.Duration
	Max time.Duration
}

// Pick returns a uniformly random duration within the range.
func (w WaitRange) Pick(rng *rand.Rand) time.Duration {
	if w.Max <= w.Min {
		return w.Min
	}
	return w.Min + time.Duration(rng.Int63n(int64(w.Max-w.Min)+1))
}

// IsZero reports whether the range pauses at all.
func (w WaitRange) IsZero() bool {
	return w.Min <= 0 && w.Max <= 0
}
