// Package example is a minimal AquaRelay plugin.
//
// It logs its lifecycle and schedules a single ExampleTask
// that logs the current time once and cancels itself.
//
// Register it before starting the relay:
//
//	plugin.Plugins = append(plugin.Plugins, example.Registration())
package example

import (
	_ "embed"
	"fmt"

	"github.com/go-logr/logr"

	"go.aquarelay.dev/example/pkg/relay/plugin"
	"go.aquarelay.dev/example/pkg/relay/scheduler"
)

//go:embed plugin.yml
var descriptionYAML []byte

// Description is the plugin's packaging metadata from plugin.yml.
var Description = plugin.MustParseDescription(descriptionYAML)

// DefaultTaskDelay is the number of ticks before ExampleTask runs, one second at the default tick rate.
const DefaultTaskDelay = 20

// Registration returns the registration to add to plugin.Plugins.
func Registration() plugin.Registration {
	return plugin.Registration{
		Description: Description,
		New: func(host plugin.Host) (plugin.Plugin, error) {
			return New(host), nil
		},
	}
}

// TaskScheduler is the part of the relay scheduler the plugin uses.
type TaskScheduler interface {
	scheduler.Canceler
	ScheduleDelayedTask(t scheduler.Task, delay scheduler.Tick) (*scheduler.Handler, error)
}

// ExamplePlugin logs its lifecycle and schedules an ExampleTask when enabled.
type ExamplePlugin struct {
	log       logr.Logger
	desc      plugin.Description
	scheduler TaskScheduler
	taskDelay scheduler.Tick
}

var _ plugin.Plugin = (*ExamplePlugin)(nil)

// New returns a new ExamplePlugin using the handles of host.
func New(host plugin.Host) *ExamplePlugin {
	settings := host.Settings()
	settings.SetDefault("taskDelay", DefaultTaskDelay)
	delay := max(settings.GetInt("taskDelay"), 0)

	return &ExamplePlugin{
		log:       host.Logger(),
		desc:      host.Description(),
		scheduler: host.Scheduler(),
		taskDelay: scheduler.Tick(delay),
	}
}

// Logger returns the plugin's logger.
func (p *ExamplePlugin) Logger() logr.Logger { return p.log }

// Version returns the plugin version declared in its description.
func (p *ExamplePlugin) Version() string { return p.desc.Version }

// OnLoad implements plugin.Plugin.
func (p *ExamplePlugin) OnLoad() {
	p.log.Info("ExamplePlugin is loading...")
}

// OnEnable implements plugin.Plugin.
func (p *ExamplePlugin) OnEnable() {
	p.log.Info(fmt.Sprintf("ExamplePlugin v%s enabled!", p.Version()))

	task := NewExampleTask(p, p.scheduler)
	if _, err := p.scheduler.ScheduleDelayedTask(task, p.taskDelay); err != nil {
		p.log.Error(err, "error scheduling task", "taskID", task.ID())
	}
}

// OnDisable implements plugin.Plugin.
func (p *ExamplePlugin) OnDisable() {
	p.log.Info("ExamplePlugin disabled!")
}
