// Package aquarelay is the AquaRelay command line entrypoint.
//
// Programs embedding plugins register them with plugin.Plugins
// and call Execute, blocking main until shutdown.
package aquarelay

import (
	"fmt"
	"os"

	"github.com/go-logr/logr"
	"github.com/go-logr/zapr"
	"github.com/spf13/viper"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"go.aquarelay.dev/example/pkg/relay"
	"go.aquarelay.dev/example/pkg/relay/config"
	"go.aquarelay.dev/example/pkg/util/interrupt"
	"go.aquarelay.dev/example/pkg/version"
)

// Execute runs App() and calls os.Exit when finished.
func Execute() {
	if err := App().Run(os.Args); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// App returns the AquaRelay cli application.
func App() *cli.App {
	app := cli.NewApp()
	app.Name = "aquarelay"
	app.Usage = "AquaRelay is an extensible game server relay."
	app.Description = `A lightweight game server relay hosting plugins
that are compiled into the binary and driven by a tick based task scheduler.

Visit the website https://www.aquarelay.dev/ for more information.`
	app.Version = version.String()
	// The version flag is part of app.Flags, keep cli from adding its own.
	app.HideVersion = true

	var (
		configFile string
		debug      bool
		verbosity  int
	)
	app.Flags = []cli.Flag{
		// -v is taken by verbosity, follow the Unix convention of -V for version.
		&cli.BoolFlag{
			Name:    "version",
			Aliases: []string{"V"},
			Usage:   "print the version",
		},
		&cli.StringFlag{
			Name:        "config",
			Aliases:     []string{"c"},
			Usage:       `config file (default: ./config.yml)`,
			EnvVars:     []string{"RELAY_CONFIG"},
			Destination: &configFile,
		},
		&cli.BoolFlag{
			Name:        "debug",
			Aliases:     []string{"d"},
			Usage:       "Enable debug mode and highest log verbosity",
			Destination: &debug,
			EnvVars:     []string{"RELAY_DEBUG"},
		},
		&cli.IntFlag{
			Name:        "verbosity",
			Aliases:     []string{"v"},
			Usage:       "The higher the verbosity the more logs are shown",
			EnvVars:     []string{"RELAY_VERBOSITY"},
			Destination: &verbosity,
		},
	}
	app.Commands = []*cli.Command{
		configCommand(),
		pluginsCommand(),
	}
	app.Action = func(c *cli.Context) error {
		if c.Bool("version") {
			cli.ShowVersion(c)
			return nil
		}

		v, err := initViper(c, configFile)
		if err != nil {
			return cli.Exit(err, 1)
		}
		cfg, err := config.LoadConfig(v)
		if err != nil {
			return cli.Exit(err, 1)
		}
		debug = debug || cfg.Debug

		log, err := newLogger(debug, verbosity)
		if err != nil {
			return cli.Exit(fmt.Errorf("error creating zap logger: %w", err), 1)
		}
		c.Context = logr.NewContext(c.Context, log)
		log.Info("logging verbosity", "verbosity", verbosity)
		log.Info("using config file", "config", v.ConfigFileUsed())

		warns, errs := cfg.Validate()
		for _, w := range warns {
			log.Info("config validation warning", "warning", w.Error())
		}
		if len(errs) != 0 {
			for _, e := range errs {
				log.Info("config validation error", "error", e.Error())
			}
			return cli.Exit(fmt.Errorf("invalid config with %d error(s)", len(errs)), 1)
		}

		ctx, cancel := interrupt.TerminationContext(c.Context)
		defer cancel()

		r, err := relay.New(relay.Options{
			Config:     cfg,
			ConfigFile: v.ConfigFileUsed(),
			Logger:     log,
		})
		if err != nil {
			return cli.Exit(err, 1)
		}
		if err = r.Start(ctx); err != nil {
			return cli.Exit(fmt.Errorf("error running relay: %w", err), 1)
		}
		return nil
	}
	return app
}

func initViper(c *cli.Context, configFile string) (*viper.Viper, error) {
	if configFile == "" {
		configFile = "config.yml" // default config file
	}
	v := config.NewViper(configFile)

	// Only error if the user explicitly set a missing config file.
	if c.IsSet("config") {
		if _, err := os.Stat(configFile); err != nil {
			return nil, fmt.Errorf("error reading config file %q: %w", configFile, err)
		}
	}
	return v, nil
}

// newLogger returns a new zap logger with a modified production
// or development default config to ensure human readability.
func newLogger(debug bool, v int) (l logr.Logger, err error) {
	var cfg zap.Config
	if debug {
		cfg = zap.NewDevelopmentConfig()
	} else {
		cfg = zap.NewProductionConfig()
	}

	// logr V(n) maps to zap level -n.
	level := zapcore.Level(-v)
	if debug && level > zapcore.DebugLevel {
		level = zapcore.DebugLevel
	}
	cfg.Level = zap.NewAtomicLevelAt(level)

	cfg.Encoding = "console"
	cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	zl, err := cfg.Build()
	if err != nil {
		return logr.Discard(), err
	}
	return zapr.NewLogger(zl), nil
}
