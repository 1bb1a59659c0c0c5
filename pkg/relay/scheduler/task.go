package scheduler

import (
	"go.uber.org/atomic"
)

// Tick is a single scheduler cycle.
// The relay drives 20 ticks per second by default.
type Tick uint64

// Task is a unit of work that can be scheduled with a Scheduler.
//
// Run is invoked on the relay's tick goroutine and must return quickly.
// Long running work should be started in a new goroutine.
type Task interface {
	// ID identifies the task within its owner's registrations.
	ID() int
	// Run is invoked when the task is due.
	Run()
}

// Canceler cancels a scheduled task by its id.
// A Task typically keeps a Canceler to cancel itself from within Run.
type Canceler interface {
	// CancelTask cancels the task and reports whether it was still queued.
	CancelTask(id int) bool
}

// TaskFunc adapts a function into a Task with the given id.
func TaskFunc(id int, fn func()) Task { return &funcTask{id: id, fn: fn} }

type funcTask struct {
	id int
	fn func()
}

func (t *funcTask) ID() int { return t.id }
func (t *funcTask) Run()    { t.fn() }

// State is the state of a scheduled task.
type State uint8

const (
	StateScheduled State = iota
	StateCancelled
)

func (s State) String() string {
	switch s {
	case StateScheduled:
		return "Scheduled"
	case StateCancelled:
		return "Cancelled"
	}
	return "Unknown"
}

// Handler is a Task queued with a Scheduler.
type Handler struct {
	task   Task
	period Tick // 0 for one-shot tasks
	seq    uint64

	nextRun   atomic.Uint64
	cancelled atomic.Bool
}

// Task returns the scheduled task.
func (h *Handler) Task() Task { return h.task }

// ID returns the id of the scheduled task.
func (h *Handler) ID() int { return h.task.ID() }

// NextRun returns the tick the task runs next.
func (h *Handler) NextRun() Tick { return Tick(h.nextRun.Load()) }

// Period returns the repeat period, 0 if the task runs only once.
func (h *Handler) Period() Tick { return h.period }

// Repeating reports whether the task is re-queued after each run.
func (h *Handler) Repeating() bool { return h.period > 0 }

// Cancelled reports whether the task was cancelled.
func (h *Handler) Cancelled() bool { return h.cancelled.Load() }

// State returns the current state of the task.
func (h *Handler) State() State {
	if h.Cancelled() {
		return StateCancelled
	}
	return StateScheduled
}

// cancel transitions the handler to StateCancelled.
// It reports false if the handler was already cancelled.
func (h *Handler) cancel() bool {
	return h.cancelled.CompareAndSwap(false, true)
}
