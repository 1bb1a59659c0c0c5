package scheduler

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingTask struct {
	id   int
	runs int
	fn   func()
}

func (t *countingTask) ID() int { return t.id }
func (t *countingTask) Run() {
	t.runs++
	if t.fn != nil {
		t.fn()
	}
}

func TestScheduleDelayedTask_RunsOnceWhenDue(t *testing.T) {
	s := New(Options{})
	task := &countingTask{id: 1}

	h, err := s.ScheduleDelayedTask(task, 3)
	require.NoError(t, err)
	assert.Equal(t, Tick(3), h.NextRun())
	assert.False(t, h.Repeating())
	assert.Equal(t, StateScheduled, h.State())

	s.Heartbeat(1)
	s.Heartbeat(2)
	assert.Equal(t, 0, task.runs)

	s.Heartbeat(3)
	assert.Equal(t, 1, task.runs)
	assert.False(t, s.IsQueued(1))
	assert.Equal(t, StateCancelled, h.State())

	s.Heartbeat(4)
	assert.Equal(t, 1, task.runs, "one-shot task must not run again")
}

func TestScheduleTask_ZeroDelayRunsNextTick(t *testing.T) {
	s := New(Options{})
	s.Heartbeat(10)

	task := &countingTask{id: 7}
	h, err := s.ScheduleDelayedTask(task, 0)
	require.NoError(t, err)
	assert.Equal(t, Tick(11), h.NextRun())

	s.Heartbeat(10)
	assert.Equal(t, 0, task.runs)
	s.Heartbeat(11)
	assert.Equal(t, 1, task.runs)
}

func TestScheduleRepeatingTask(t *testing.T) {
	s := New(Options{})
	task := &countingTask{id: 2}

	h, err := s.ScheduleDelayedRepeatingTask(task, 2, 3)
	require.NoError(t, err)
	assert.True(t, h.Repeating())
	assert.Equal(t, Tick(3), h.Period())

	for tick := Tick(1); tick <= 11; tick++ {
		s.Heartbeat(tick)
	}
	// ticks 2, 5, 8, 11
	assert.Equal(t, 4, task.runs)
	assert.True(t, s.IsQueued(2))
	assert.Equal(t, Tick(14), h.NextRun())
}

func TestScheduleRepeatingTask_ZeroPeriod(t *testing.T) {
	s := New(Options{})
	_, err := s.ScheduleRepeatingTask(&countingTask{id: 1}, 0)
	assert.ErrorIs(t, err, ErrInvalidPeriod)
	assert.Equal(t, 0, s.Len())
}

func TestSchedule_DuplicateID(t *testing.T) {
	s := New(Options{})
	_, err := s.ScheduleTask(&countingTask{id: 1})
	require.NoError(t, err)

	_, err = s.ScheduleTask(&countingTask{id: 1})
	assert.ErrorIs(t, err, ErrDuplicateTaskID)
	assert.Equal(t, 1, s.Len())

	// The id is free again once the first task ran.
	s.Heartbeat(1)
	_, err = s.ScheduleTask(&countingTask{id: 1})
	assert.NoError(t, err)
}

func TestSchedule_NilTask(t *testing.T) {
	s := New(Options{})
	_, err := s.ScheduleTask(nil)
	assert.Error(t, err)
}

func TestCancelTask_Idempotent(t *testing.T) {
	s := New(Options{})
	task := &countingTask{id: 5}
	h, err := s.ScheduleDelayedTask(task, 2)
	require.NoError(t, err)

	assert.True(t, s.CancelTask(5))
	assert.False(t, s.CancelTask(5))
	assert.False(t, s.CancelTask(42))
	assert.Equal(t, StateCancelled, h.State())

	s.Heartbeat(2)
	s.Heartbeat(3)
	assert.Equal(t, 0, task.runs)
}

func TestCancelTask_FromWithinRun(t *testing.T) {
	s := New(Options{})
	task := &countingTask{id: 3}
	task.fn = func() { assert.True(t, s.CancelTask(task.ID())) }

	h, err := s.ScheduleRepeatingTask(task, 1)
	require.NoError(t, err)

	for tick := Tick(1); tick <= 5; tick++ {
		s.Heartbeat(tick)
	}
	assert.Equal(t, 1, task.runs, "self cancelled repeating task must not run again")
	assert.True(t, h.Cancelled())
	assert.Equal(t, 0, s.Len())
}

func TestHeartbeat_Order(t *testing.T) {
	s := New(Options{})
	var order []int
	add := func(id int, delay Tick) {
		_, err := s.ScheduleDelayedTask(TaskFunc(id, func() { order = append(order, id) }), delay)
		require.NoError(t, err)
	}
	add(1, 3)
	add(2, 1)
	add(3, 3)
	add(4, 2)

	// Skipping ticks still runs everything that became due, in due order.
	s.Heartbeat(5)
	assert.Equal(t, []int{2, 4, 1, 3}, order)
	assert.Equal(t, Tick(5), s.CurrentTick())
}

func TestHeartbeat_RecoversPanic(t *testing.T) {
	s := New(Options{})
	panicking := TaskFunc(1, func() { panic("boom") })
	next := &countingTask{id: 2}

	_, err := s.ScheduleRepeatingTask(panicking, 1)
	require.NoError(t, err)
	_, err = s.ScheduleTask(next)
	require.NoError(t, err)

	assert.NotPanics(t, func() { s.Heartbeat(1) })
	assert.Equal(t, 1, next.runs)
	assert.False(t, s.IsQueued(1), "panicking task is cancelled")
}

func TestShutdown(t *testing.T) {
	s := New(Options{})
	task := &countingTask{id: 1}
	h, err := s.ScheduleRepeatingTask(task, 1)
	require.NoError(t, err)

	s.Shutdown()
	assert.True(t, h.Cancelled())
	assert.Equal(t, 0, s.Len())

	s.Heartbeat(1)
	assert.Equal(t, 0, task.runs)

	_, err = s.ScheduleTask(&countingTask{id: 2})
	assert.ErrorIs(t, err, ErrClosed)
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "Scheduled", StateScheduled.String())
	assert.Equal(t, "Cancelled", StateCancelled.String())
	assert.Equal(t, "Unknown", State(9).String())
}

func TestCancelTask_CompactsQueue(t *testing.T) {
	s := New(Options{})
	tasks := make([]*countingTask, 1000)
	for i := range tasks {
		tasks[i] = &countingTask{id: i}
		_, err := s.ScheduleDelayedTask(tasks[i], 10_000)
		require.NoError(t, err)
	}
	for i := 1; i < len(tasks); i++ {
		require.True(t, s.CancelTask(i))
	}
	assert.Equal(t, 1, s.Len())
	assert.LessOrEqual(t, s.queue.Size(), compactMinSize, "cancelled handlers must not pile up")

	s.Heartbeat(10_000)
	assert.Equal(t, 1, tasks[0].runs)
	for _, task := range tasks[1:] {
		assert.Zero(t, task.runs)
	}
}

func TestCancelTask_CompactsWhileRepeatingTaskRuns(t *testing.T) {
	s := New(Options{})
	for i := 1; i <= 200; i++ {
		_, err := s.ScheduleDelayedTask(&countingTask{id: i}, 10_000)
		require.NoError(t, err)
	}
	ticker := &countingTask{id: 0}
	ticker.fn = func() {
		if ticker.runs == 1 {
			for i := 1; i <= 200; i++ {
				s.CancelTask(i)
			}
		}
	}
	_, err := s.ScheduleRepeatingTask(ticker, 1)
	require.NoError(t, err)

	s.Heartbeat(1)
	assert.Equal(t, 1, s.Len())
	assert.LessOrEqual(t, s.queue.Size(), compactMinSize)

	// A duplicate queue entry would run the task twice per tick.
	s.Heartbeat(2)
	s.Heartbeat(3)
	assert.Equal(t, 3, ticker.runs)
}
