// Package scheduler implements the relay's tick based task scheduler.
//
// Each plugin owns one Scheduler. The relay calls Heartbeat on every tick
// and the Scheduler runs all tasks that became due on the caller's goroutine.
package scheduler

import (
	"errors"
	"fmt"
	"sync"

	"github.com/go-logr/logr"
	"github.com/zyedidia/generic/heap"
)

var (
	// ErrClosed is returned when scheduling with a Scheduler that was shut down.
	ErrClosed = errors.New("scheduler is shut down")
	// ErrDuplicateTaskID is returned when a task with the same id is already queued.
	ErrDuplicateTaskID = errors.New("task id already scheduled")
	// ErrInvalidPeriod is returned when a repeating task has a zero period.
	ErrInvalidPeriod = errors.New("repeating period must be at least one tick")
)

// Options are Scheduler options.
type Options struct {
	// Logger is used to log panicking tasks.
	// If not set, no logging is done.
	Logger logr.Logger
}

// Scheduler queues tasks and runs them when their tick is due.
type Scheduler struct {
	log logr.Logger

	mu      sync.Mutex // Protects following fields
	closed  bool
	current Tick
	seq     uint64
	queue   *heap.Heap[*Handler]
	tasks   map[int]*Handler // queued tasks by id
}

// New returns a new Scheduler.
func New(options Options) *Scheduler {
	log := options.Logger
	if log.GetSink() == nil {
		log = logr.Discard()
	}
	return &Scheduler{
		log:   log,
		queue: heap.New[*Handler](runsBefore),
		tasks: map[int]*Handler{},
	}
}

// runsBefore orders handlers by due tick, then by schedule order.
func runsBefore(a, b *Handler) bool {
	if an, bn := a.NextRun(), b.NextRun(); an != bn {
		return an < bn
	}
	return a.seq < b.seq
}

// ScheduleTask runs the task once on the next tick.
func (s *Scheduler) ScheduleTask(t Task) (*Handler, error) {
	return s.schedule(t, 1, 0)
}

// ScheduleDelayedTask runs the task once after delay ticks.
// A delay of 0 is treated as 1, the task never runs within the current tick.
func (s *Scheduler) ScheduleDelayedTask(t Task, delay Tick) (*Handler, error) {
	return s.schedule(t, delay, 0)
}

// ScheduleRepeatingTask runs the task on the next tick and then every period ticks.
func (s *Scheduler) ScheduleRepeatingTask(t Task, period Tick) (*Handler, error) {
	return s.ScheduleDelayedRepeatingTask(t, 1, period)
}

// ScheduleDelayedRepeatingTask runs the task after delay ticks and then every period ticks.
func (s *Scheduler) ScheduleDelayedRepeatingTask(t Task, delay, period Tick) (*Handler, error) {
	if period == 0 {
		return nil, ErrInvalidPeriod
	}
	return s.schedule(t, delay, period)
}

func (s *Scheduler) schedule(t Task, delay, period Tick) (*Handler, error) {
	if t == nil {
		return nil, errors.New("task must not be nil")
	}
	if delay == 0 {
		delay = 1
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, ErrClosed
	}
	if _, ok := s.tasks[t.ID()]; ok {
		return nil, fmt.Errorf("%w: %d", ErrDuplicateTaskID, t.ID())
	}

	s.seq++
	h := &Handler{task: t, period: period, seq: s.seq}
	h.nextRun.Store(uint64(s.current + delay))
	s.tasks[t.ID()] = h
	s.queue.Push(h)
	return h, nil
}

// CancelTask cancels the queued task with the given id.
// It is safe to call from within the task's own Run.
// Returns false if no task with that id is queued.
func (s *Scheduler) CancelTask(id int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	h, ok := s.tasks[id]
	if !ok {
		return false
	}
	delete(s.tasks, id)
	cancelled := h.cancel()
	// Cancelled handlers are dropped when they surface,
	// unless they pile up in the queue.
	if n := s.queue.Size(); n > compactMinSize && n > 2*len(s.tasks) {
		s.compact()
	}
	return cancelled
}

// compactMinSize is the queue size below which cancelled handlers are never compacted.
const compactMinSize = 64

// compact rebuilds the queue without cancelled handlers.
// Handlers currently running are not in the queue and stay untouched.
func (s *Scheduler) compact() {
	live := heap.New[*Handler](runsBefore)
	for h, ok := s.queue.Pop(); ok; h, ok = s.queue.Pop() {
		if !h.Cancelled() {
			live.Push(h)
		}
	}
	s.queue = live
}

// IsQueued reports whether a task with the given id is queued.
func (s *Scheduler) IsQueued(id int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.tasks[id]
	return ok
}

// Len returns the number of queued tasks.
func (s *Scheduler) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.tasks)
}

// CurrentTick returns the tick of the last Heartbeat.
func (s *Scheduler) CurrentTick() Tick {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

// Heartbeat advances the Scheduler to tick and runs every task that is due.
// Tasks run on the calling goroutine in order of their due tick.
func (s *Scheduler) Heartbeat(tick Tick) {
	s.mu.Lock()
	if tick > s.current {
		s.current = tick
	}
	s.mu.Unlock()

	for {
		h, ok := s.next(tick)
		if !ok {
			return
		}
		s.run(h)

		s.mu.Lock()
		switch {
		case h.Cancelled() || s.closed:
		case h.Repeating():
			h.nextRun.Store(uint64(tick + h.period))
			s.queue.Push(h)
			s.mu.Unlock()
			continue
		default:
			if s.tasks[h.ID()] == h {
				delete(s.tasks, h.ID())
			}
			h.cancel()
		}
		s.mu.Unlock()
	}
}

// next pops the next handler due at tick, skipping cancelled ones.
func (s *Scheduler) next(tick Tick) (*Handler, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for {
		h, ok := s.queue.Peek()
		if !ok || h.NextRun() > tick {
			return nil, false
		}
		s.queue.Pop()
		if h.Cancelled() {
			continue
		}
		return h, true
	}
}

func (s *Scheduler) run(h *Handler) {
	defer func() {
		if r := recover(); r != nil {
			s.log.Error(fmt.Errorf("%v", r), "recovered from panicking task, cancelling it",
				"taskID", h.ID())
			s.CancelTask(h.ID())
		}
	}()
	h.task.Run()
}

// Shutdown cancels all queued tasks and rejects further scheduling.
func (s *Scheduler) Shutdown() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	for id, h := range s.tasks {
		h.cancel()
		delete(s.tasks, id)
	}
	s.queue = heap.New[*Handler](runsBefore)
}
