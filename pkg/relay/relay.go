// Package relay is the AquaRelay runtime hosting plugins and driving their task schedulers.
package relay

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-logr/logr"
	"github.com/robinbraemer/event"
	"go.uber.org/atomic"
	"golang.org/x/sync/errgroup"

	"go.aquarelay.dev/example/pkg/internal/reload"
	"go.aquarelay.dev/example/pkg/relay/config"
	"go.aquarelay.dev/example/pkg/relay/plugin"
	"go.aquarelay.dev/example/pkg/relay/scheduler"
	"go.aquarelay.dev/example/pkg/util/errs"
	"go.aquarelay.dev/example/pkg/version"
)

// ErrAlreadyRun is returned by Relay.Start if the relay instance was already run.
var ErrAlreadyRun = errors.New("relay was already run, create a new one")

// Options are Relay options.
type Options struct {
	// Config requires a valid relay configuration.
	Config *config.Config
	// ConfigFile is the path Config was read from.
	// It is watched for changes if Config.AutoReload is enabled.
	ConfigFile string
	// Logger is the logger used for the relay and its plugins.
	// If not set, the logger found in the Start context is used.
	Logger logr.Logger
	// Event is the event manager used by the relay and plugins.
	// If not set, a new one is created.
	Event event.Manager
	// Plugins to register on start.
	// If nil, plugin.Plugins is used.
	Plugins []plugin.Registration
}

// Relay hosts plugins and drives their schedulers at a fixed tick rate.
type Relay struct {
	cfg        *config.Config
	configFile string
	log        logr.Logger
	event      event.Manager
	plugins    []plugin.Registration

	manager  *plugin.Manager
	runOnce  atomic.Bool
	tick     atomic.Uint64
	tickRate atomic.Int64
}

// New returns a new Relay ready to Start.
// The given Options requires a validated Config.
func New(options Options) (*Relay, error) {
	if options.Config == nil {
		return nil, errs.ErrMissingConfig
	}
	mgr := options.Event
	if mgr == nil {
		mgr = event.New()
	}
	plugins := options.Plugins
	if plugins == nil {
		plugins = plugin.Plugins
	}
	r := &Relay{
		cfg:        options.Config,
		configFile: options.ConfigFile,
		log:        options.Logger,
		event:      mgr,
		plugins:    plugins,
	}
	r.tickRate.Store(int64(options.Config.TickRate))
	return r, nil
}

// Event returns the relay's event manager.
func (r *Relay) Event() event.Manager { return r.event }

// Plugins returns the plugin manager. It is nil until Start was called.
func (r *Relay) Plugins() *plugin.Manager { return r.manager }

// CurrentTick returns the number of ticks since start.
func (r *Relay) CurrentTick() scheduler.Tick { return scheduler.Tick(r.tick.Load()) }

// TickRate returns the current number of ticks per second.
func (r *Relay) TickRate() int { return int(r.tickRate.Load()) }

// Start runs the relay and blocks until ctx is canceled or an error occurred.
//
// Plugins are registered, loaded and enabled before the first tick.
// On return, all plugins are disabled.
// A Relay can only be run once or ErrAlreadyRun is returned.
func (r *Relay) Start(ctx context.Context) error {
	if !r.runOnce.CompareAndSwap(false, true) {
		return ErrAlreadyRun
	}
	if r.log.GetSink() == nil {
		r.log = logr.FromContextOrDiscard(ctx)
	}
	ctx = logr.NewContext(ctx, r.log)

	r.manager = plugin.NewManager(plugin.Options{
		Logger:   r.log.WithName("plugin"),
		Event:    r.event,
		Settings: r.cfg.PluginSettings(),
		Disabled: r.cfg.Plugins.Disabled,
	})
	for _, reg := range r.plugins {
		if err := r.manager.Register(reg); err != nil {
			return fmt.Errorf("error registering plugin: %w", err)
		}
	}

	r.manager.LoadAll()
	r.manager.EnableAll()
	defer func() {
		r.log.Info("shutting down the relay...")
		r.event.Fire(&ShutdownEvent{})
		r.manager.DisableAll()
		r.event.Wait()
		r.log.Info("finished shutdown.")
	}()

	unsubscribe := reload.Subscribe(r.event, r.onConfigUpdate)
	defer unsubscribe()

	r.log.Info("relay ready", "version", version.UserAgent(),
		"plugins", len(r.plugins), "tickRate", r.TickRate())
	r.event.Fire(&ReadyEvent{})

	eg, ctx := errgroup.WithContext(ctx)
	eg.Go(func() error { return r.tickLoop(ctx) })
	if r.configFile != "" && r.cfg.AutoReload {
		eg.Go(func() error {
			return reload.Watch(ctx, r.configFile, r.reloadConfig)
		})
	}
	return eg.Wait()
}

// tickLoop advances the tick counter and runs due plugin tasks
// until ctx is canceled. The tick rate may change between ticks.
func (r *Relay) tickLoop(ctx context.Context) error {
	rate := r.TickRate()
	ticker := time.NewTicker(tickInterval(rate))
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
		r.manager.Heartbeat(scheduler.Tick(r.tick.Inc()))

		if current := r.TickRate(); current != rate {
			rate = current
			ticker.Reset(tickInterval(rate))
		}
	}
}

func tickInterval(rate int) time.Duration {
	if rate <= 0 {
		rate = config.DefaultTickRate
	}
	return time.Second / time.Duration(rate)
}

func (r *Relay) reloadConfig() error {
	cfg, err := config.LoadConfig(config.NewViper(r.configFile))
	if err != nil {
		return err
	}
	warns, errList := cfg.Validate()
	for _, w := range warns {
		r.log.Info("config validation warning", "warning", w.Error())
	}
	if len(errList) != 0 {
		return fmt.Errorf("invalid config: %w", errors.Join(errList...))
	}
	prev := r.cfg
	r.cfg = cfg
	reload.FireConfigUpdate(r.event, cfg, prev)
	return nil
}

func (r *Relay) onConfigUpdate(e *reload.ConfigUpdateEvent[config.Config]) {
	if e.PrevConfig != nil && e.Config.TickRate == e.PrevConfig.TickRate {
		return
	}
	r.tickRate.Store(int64(e.Config.TickRate))
	r.log.Info("applied new tick rate", "tickRate", e.Config.TickRate)
}
