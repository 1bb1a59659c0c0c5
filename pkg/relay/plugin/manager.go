package plugin

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"

	"github.com/go-logr/logr"
	"github.com/robinbraemer/event"
	"github.com/spf13/viper"

	"go.aquarelay.dev/example/pkg/internal/suggest"
	"go.aquarelay.dev/example/pkg/relay/scheduler"
)

// State is the lifecycle state of a registered plugin.
type State uint8

const (
	StateUnknown State = iota
	StateRegistered
	StateLoaded
	StateEnabled
	StateDisabled
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateRegistered:
		return "Registered"
	case StateLoaded:
		return "Loaded"
	case StateEnabled:
		return "Enabled"
	case StateDisabled:
		return "Disabled"
	case StateFailed:
		return "Failed"
	}
	return "Unknown"
}

var (
	// ErrDuplicatePlugin is returned when registering a plugin name twice.
	ErrDuplicatePlugin = errors.New("plugin already registered")
	// ErrPluginNotFound is returned when no plugin is registered by a name.
	ErrPluginNotFound = errors.New("plugin not found")
)

// Options are Manager options.
type Options struct {
	// Logger is the parent of every plugin logger.
	// If not set, no logging is done.
	Logger logr.Logger
	// Event is the manager lifecycle events are fired with.
	// If not set, events are dropped.
	Event event.Manager
	// Settings holds a section per plugin keyed by plugin name.
	// If not set, plugins get empty settings.
	Settings *viper.Viper
	// Disabled lists plugin names that are registered but never loaded.
	Disabled []string
}

// Manager drives the lifecycle of registered plugins.
// Lifecycle methods must be called from a single goroutine, usually the relay's.
type Manager struct {
	log      logr.Logger
	event    event.Manager
	settings *viper.Viper
	disabled map[string]struct{}

	mu      sync.RWMutex // Protects following fields
	entries []*entry
	byName  map[string]*entry // by lower case names
}

type entry struct {
	reg    Registration
	host   *host
	plugin Plugin
	state  State
}

// NewManager returns a new plugin Manager.
func NewManager(options Options) *Manager {
	log := options.Logger
	if log.GetSink() == nil {
		log = logr.Discard()
	}
	mgr := options.Event
	if mgr == nil {
		mgr = event.Nop
	}
	disabled := make(map[string]struct{}, len(options.Disabled))
	for _, name := range options.Disabled {
		disabled[strings.ToLower(name)] = struct{}{}
	}
	return &Manager{
		log:      log,
		event:    mgr,
		settings: options.Settings,
		disabled: disabled,
		byName:   map[string]*entry{},
	}
}

// Register adds a plugin to the Manager.
// Plugins are loaded and enabled in registration order.
func (m *Manager) Register(reg Registration) error {
	if err := reg.Description.Validate(); err != nil {
		return err
	}
	if reg.New == nil {
		return fmt.Errorf("plugin %q has no constructor", reg.Description.Name)
	}
	key := strings.ToLower(reg.Description.Name)

	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.byName[key]; ok {
		return fmt.Errorf("%w: %q", ErrDuplicatePlugin, reg.Description.Name)
	}
	e := &entry{reg: reg, state: StateRegistered}
	m.entries = append(m.entries, e)
	m.byName[key] = e
	return nil
}

// LoadAll constructs every registered plugin and calls its OnLoad hook.
// A plugin failing to construct or load is marked as failed and skipped.
func (m *Manager) LoadAll() {
	for _, e := range m.inState(StateRegistered) {
		desc := e.reg.Description
		log := m.log.WithValues("plugin", desc.Name)

		if _, ok := m.disabled[strings.ToLower(desc.Name)]; ok {
			log.Info("skipping plugin disabled by config")
			m.setState(e, StateDisabled)
			continue
		}

		log.V(1).Info("loading plugin", "version", desc.Version)
		h := &host{
			log:       m.log.WithName(desc.Name),
			scheduler: scheduler.New(scheduler.Options{Logger: log.WithName("scheduler")}),
			desc:      desc,
			settings:  m.pluginSettings(desc.Name),
		}
		var (
			p   Plugin
			err error
		)
		ok := m.call(e, "constructor", func() { p, err = e.reg.New(h) })
		if ok && err == nil && p == nil {
			err = errors.New("constructor returned no plugin")
		}
		if !ok || err != nil {
			if err != nil {
				log.Error(err, "error constructing plugin")
			}
			h.scheduler.Shutdown()
			m.setState(e, StateFailed)
			continue
		}

		m.mu.Lock()
		e.host, e.plugin = h, p
		m.mu.Unlock()

		if !m.call(e, "OnLoad", p.OnLoad) {
			h.scheduler.Shutdown()
			m.setState(e, StateFailed)
			continue
		}
		m.setState(e, StateLoaded)
		m.event.Fire(&PluginLoadEvent{Description: desc})
	}
}

// EnableAll calls the OnEnable hook of every loaded plugin.
// A plugin panicking on enable is disabled again and marked as failed.
func (m *Manager) EnableAll() {
	for _, e := range m.inState(StateLoaded) {
		m.log.V(1).Info("enabling plugin", "plugin", e.reg.Description.Name)
		if !m.call(e, "OnEnable", e.plugin.OnEnable) {
			m.disable(e, true)
			continue
		}
		m.setState(e, StateEnabled)
		m.event.Fire(&PluginEnableEvent{Description: e.reg.Description})
	}
}

// DisableAll disables every enabled plugin in reverse registration order.
func (m *Manager) DisableAll() {
	enabled := m.inState(StateEnabled)
	slices.Reverse(enabled)
	for _, e := range enabled {
		m.disable(e, false)
	}
}

// Disable disables a single enabled plugin by name.
// Disabling an already disabled plugin is a no-op.
func (m *Manager) Disable(name string) error {
	m.mu.RLock()
	e, ok := m.byName[strings.ToLower(name)]
	m.mu.RUnlock()
	if !ok {
		return m.notFound(name)
	}
	if m.stateOf(e) != StateEnabled {
		return nil
	}
	m.disable(e, false)
	return nil
}

func (m *Manager) disable(e *entry, failed bool) {
	m.log.V(1).Info("disabling plugin", "plugin", e.reg.Description.Name)
	if !m.call(e, "OnDisable", e.plugin.OnDisable) {
		failed = true
	}
	e.host.scheduler.Shutdown()
	if failed {
		m.setState(e, StateFailed)
	} else {
		m.setState(e, StateDisabled)
	}
	m.event.Fire(&PluginDisableEvent{Description: e.reg.Description, Failed: failed})
}

// Heartbeat runs the due tasks of every enabled plugin.
func (m *Manager) Heartbeat(tick scheduler.Tick) {
	for _, e := range m.inState(StateEnabled) {
		e.host.scheduler.Heartbeat(tick)
	}
}

// Plugin returns the constructed plugin by name.
func (m *Manager) Plugin(name string) (Plugin, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.byName[strings.ToLower(name)]
	if !ok || e.plugin == nil {
		return nil, false
	}
	return e.plugin, true
}

// State returns the lifecycle state of a plugin by name.
func (m *Manager) State(name string) State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if e, ok := m.byName[strings.ToLower(name)]; ok {
		return e.state
	}
	return StateUnknown
}

// Descriptions returns the descriptions of all registered plugins in registration order.
func (m *Manager) Descriptions() []Description {
	m.mu.RLock()
	defer m.mu.RUnlock()
	descs := make([]Description, 0, len(m.entries))
	for _, e := range m.entries {
		descs = append(descs, e.reg.Description)
	}
	return descs
}

func (m *Manager) notFound(name string) error {
	m.mu.RLock()
	names := make([]string, 0, len(m.entries))
	for _, e := range m.entries {
		names = append(names, e.reg.Description.Name)
	}
	m.mu.RUnlock()
	if s, ok := suggest.Closest(name, names); ok {
		return fmt.Errorf("%w: %q (did you mean %q?)", ErrPluginNotFound, name, s)
	}
	return fmt.Errorf("%w: %q", ErrPluginNotFound, name)
}

// call runs a plugin hook and recovers from panics.
func (m *Manager) call(e *entry, hook string, fn func()) (ok bool) {
	defer func() {
		if r := recover(); r != nil {
			err, isErr := r.(error)
			if !isErr {
				err = fmt.Errorf("%v", r)
			}
			m.log.Error(err, "plugin hook failed",
				"plugin", e.reg.Description.Name, "hook", hook)
			ok = false
		}
	}()
	fn()
	return true
}

func (m *Manager) pluginSettings(name string) *viper.Viper {
	if m.settings != nil {
		if sub := m.settings.Sub(name); sub != nil {
			return sub
		}
	}
	return viper.New()
}

func (m *Manager) inState(state State) []*entry {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var list []*entry
	for _, e := range m.entries {
		if e.state == state {
			list = append(list, e)
		}
	}
	return list
}

func (m *Manager) stateOf(e *entry) State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return e.state
}

func (m *Manager) setState(e *entry, state State) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e.state = state
}
