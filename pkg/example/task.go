package example

import (
	"fmt"
	"time"

	"go.aquarelay.dev/example/pkg/relay/scheduler"
)

// TaskID identifies ExampleTask within the plugin's scheduler.
const TaskID = 1

// ExampleTask logs the current time once and cancels itself.
//
// It does not guard against being run again; once cancelled,
// the scheduler never runs it again.
type ExampleTask struct {
	plugin   *ExamplePlugin // borrowed, outlives the task
	canceler scheduler.Canceler
	now      func() time.Time
}

var _ scheduler.Task = (*ExampleTask)(nil)

// NewExampleTask returns a new ExampleTask logging through p
// and cancelling itself with canceler.
func NewExampleTask(p *ExamplePlugin, canceler scheduler.Canceler) *ExampleTask {
	return &ExampleTask{plugin: p, canceler: canceler, now: time.Now}
}

// ID implements scheduler.Task.
func (t *ExampleTask) ID() int { return TaskID }

// Run implements scheduler.Task.
func (t *ExampleTask) Run() {
	t.plugin.Logger().Info(fmt.Sprintf("ExampleTask is running... id: %d Time: %s",
		t.ID(), t.now().Format(time.TimeOnly)))
	t.canceler.CancelTask(t.ID())
}
