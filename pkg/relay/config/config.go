// Package config holds the relay configuration.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"maps"
	"strings"

	"github.com/spf13/viper"

	"go.aquarelay.dev/example/pkg/util/validation"
)

// EnvPrefix prefixes environment variables overriding config keys, e.g. RELAY_TICKRATE.
const EnvPrefix = "RELAY"

// DefaultTickRate is the default number of ticks per second.
const DefaultTickRate = 20

// DefaultConfig is a default Config.
var DefaultConfig = Config{
	TickRate:   DefaultTickRate,
	AutoReload: false,
	Plugins: Plugins{
		Disabled: []string{},
		Settings: map[string]map[string]any{
			"ExamplePlugin": {"taskDelay": DefaultTickRate},
		},
	},
}

// Config is the root configuration of the relay.
type Config struct {
	// TickRate is the number of scheduler ticks per second.
	TickRate int `json:"tickRate" yaml:"tickRate"`
	// AutoReload watches the config file and applies changes while running.
	AutoReload bool `json:"autoReload" yaml:"autoReload"`
	// Debug enables debug logging.
	Debug bool `json:"debug,omitempty" yaml:"debug,omitempty"`
	// See Plugins struct.
	Plugins Plugins `json:"plugins" yaml:"plugins"`
}

// Plugins configures registered plugins.
type Plugins struct {
	// Disabled lists plugin names that are not loaded.
	Disabled []string `json:"disabled" yaml:"disabled"`
	// Settings holds a free-form section per plugin name.
	Settings map[string]map[string]any `json:"settings,omitempty" yaml:"settings,omitempty"`
}

// Validate validates the Config.
func (c *Config) Validate() (warns []error, errs []error) {
	e := func(m string, args ...any) { errs = append(errs, fmt.Errorf(m, args...)) }
	w := func(m string, args ...any) { warns = append(warns, fmt.Errorf(m, args...)) }
	if c == nil {
		e("config must not be nil")
		return
	}

	if !validation.ValidTickRate(c.TickRate) {
		e("Invalid tick rate %d, must be between 1 and 1000", c.TickRate)
	} else if c.TickRate > 100 {
		w("Tick rate %d is unusually high and may waste CPU time", c.TickRate)
	}

	for _, name := range c.Plugins.Disabled {
		if !validation.ValidPluginName(name) {
			e("Invalid disabled plugin name %q: %s", name, validation.PluginNameErrMsg)
		}
	}
	for name := range c.Plugins.Settings {
		if !validation.ValidPluginName(name) {
			w("Settings for invalid plugin name %q are ignored", name)
		}
	}
	return
}

// LoadConfig reads the config file set on v (if any) on top of DefaultConfig.
// A missing config file is not an error.
func LoadConfig(v *viper.Viper) (*Config, error) {
	if v.ConfigFileUsed() != "" {
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
				return nil, fmt.Errorf("error reading config file %q: %w", v.ConfigFileUsed(), err)
			}
		}
	}

	// Maps must not be shared between loads. Plugin setting
	// defaults are applied by the plugins themselves.
	cfg := DefaultConfig
	cfg.Plugins = Plugins{}

	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error loading config: %w", err)
	}
	return &cfg, nil
}

// NewViper returns a Viper with the Config defaults set that reads file,
// if not empty, and environment variables prefixed with EnvPrefix.
func NewViper(file string) *viper.Viper {
	v := viper.New()
	SetDefaults(v)
	if file != "" {
		v.SetConfigFile(file)
	}
	v.SetEnvPrefix(EnvPrefix)
	v.AutomaticEnv() // read in environment variables that match
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	return v
}

// SetDefaults sets Config defaults to use with Viper.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("tickRate", DefaultConfig.TickRate)
	v.SetDefault("autoReload", DefaultConfig.AutoReload)
}

// PluginSettings returns a Viper holding the plugin settings sections.
// Section names are case-insensitive.
func (c *Config) PluginSettings() *viper.Viper {
	v := viper.New()
	for name, section := range c.Plugins.Settings {
		v.Set(name, maps.Clone(section))
	}
	return v
}
