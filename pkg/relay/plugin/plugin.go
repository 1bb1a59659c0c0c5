// Package plugin provides the relay's plugin contract and the Manager
// driving the plugin lifecycle.
package plugin

import (
	"github.com/go-logr/logr"
	"github.com/spf13/viper"

	"go.aquarelay.dev/example/pkg/relay/scheduler"
)

// Plugins is used to register plugins with the relay.
// The relay constructs, loads and enables them in order on start
// and disables them in reverse order on shutdown.
var Plugins []Registration

// Registration describes how to construct a plugin.
type Registration struct {
	// Description is the plugin's packaging metadata.
	Description Description
	// New constructs the plugin with the handles provided by the relay.
	New func(host Host) (Plugin, error)
}

// Plugin provides the ability to extend the relay with external code.
//
// The relay calls the hooks synchronously and in order, never
// concurrently for the same plugin:
//
//	OnLoad -> OnEnable -> OnDisable
//
// A hook must not block. A panicking hook is recovered and marks the plugin as failed.
type Plugin interface {
	// OnLoad is called once after the plugin was constructed.
	OnLoad()
	// OnEnable is called once when the plugin is activated.
	OnEnable()
	// OnDisable is called once when the plugin is deactivated,
	// on shutdown or if the plugin is disabled at runtime.
	OnDisable()
}

// Host provides the relay handles a plugin may depend on.
// It is handed to Registration.New; plugins should keep what they need.
type Host interface {
	// Logger returns the logger named after the plugin.
	Logger() logr.Logger
	// Scheduler returns the plugin's own task scheduler.
	// It is shut down when the plugin is disabled.
	Scheduler() *scheduler.Scheduler
	// Description returns the plugin's packaging metadata.
	Description() Description
	// Settings returns the plugin's section of the relay configuration.
	// It is never nil.
	Settings() *viper.Viper
}

type host struct {
	log       logr.Logger
	scheduler *scheduler.Scheduler
	desc      Description
	settings  *viper.Viper
}

var _ Host = (*host)(nil)

func (h *host) Logger() logr.Logger             { return h.log }
func (h *host) Scheduler() *scheduler.Scheduler { return h.scheduler }
func (h *host) Description() Description        { return h.desc }
func (h *host) Settings() *viper.Viper          { return h.settings }
