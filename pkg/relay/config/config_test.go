package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoadConfig(t *testing.T) {
	path := writeConfig(t, `
tickRate: 40
autoReload: true
plugins:
  disabled: [Other]
  settings:
    ExamplePlugin:
      taskDelay: 60
`)
	v := viper.New()
	v.SetConfigFile(path)
	cfg, err := LoadConfig(v)
	require.NoError(t, err)

	assert.Equal(t, 40, cfg.TickRate)
	assert.True(t, cfg.AutoReload)
	assert.Equal(t, []string{"Other"}, cfg.Plugins.Disabled)
	assert.Equal(t, 60, cfg.PluginSettings().Sub("ExamplePlugin").GetInt("taskDelay"))

	warns, errs := cfg.Validate()
	assert.Empty(t, warns)
	assert.Empty(t, errs)
}

func TestLoadConfig_MissingFileUsesDefaults(t *testing.T) {
	v := viper.New()
	v.SetConfigFile(filepath.Join(t.TempDir(), "missing.yml"))
	cfg, err := LoadConfig(v)
	require.NoError(t, err)
	assert.Equal(t, DefaultTickRate, cfg.TickRate)
	assert.False(t, cfg.AutoReload)
}

func TestLoadConfig_Malformed(t *testing.T) {
	v := viper.New()
	v.SetConfigFile(writeConfig(t, "tickRate: [\n"))
	_, err := LoadConfig(v)
	assert.Error(t, err)
}

// Settings maps must not leak between loads, or removed sections
// would persist across config reloads.
func TestLoadConfig_IndependentInstances(t *testing.T) {
	path := writeConfig(t, `
plugins:
  settings:
    a: {x: 1}
`)
	v1 := viper.New()
	v1.SetConfigFile(path)
	cfg1, err := LoadConfig(v1)
	require.NoError(t, err)
	cfg1.Plugins.Settings["dynamic"] = map[string]any{}

	require.NoError(t, os.WriteFile(path, []byte("tickRate: 20\n"), 0644))
	v2 := viper.New()
	v2.SetConfigFile(path)
	cfg2, err := LoadConfig(v2)
	require.NoError(t, err)

	assert.NotContains(t, cfg2.Plugins.Settings, "dynamic")
	assert.NotContains(t, cfg2.Plugins.Settings, "a")
	assert.Contains(t, DefaultConfig.Plugins.Settings, "ExamplePlugin")
	assert.NotContains(t, DefaultConfig.Plugins.Settings, "a")
}

func TestValidate(t *testing.T) {
	cfg := DefaultConfig
	warns, errs := cfg.Validate()
	assert.Empty(t, warns)
	assert.Empty(t, errs)

	cfg.TickRate = 0
	_, errs = cfg.Validate()
	assert.Len(t, errs, 1)

	cfg.TickRate = 200
	warns, errs = cfg.Validate()
	assert.Len(t, warns, 1)
	assert.Empty(t, errs)

	cfg.TickRate = DefaultTickRate
	cfg.Plugins.Disabled = []string{"bad/name"}
	_, errs = cfg.Validate()
	assert.Len(t, errs, 1)

	var nilCfg *Config
	_, errs = nilCfg.Validate()
	assert.Len(t, errs, 1)
}

func TestDefaultConfig_YAMLRoundTrip(t *testing.T) {
	out, err := yaml.Marshal(DefaultConfig)
	require.NoError(t, err)
	assert.Contains(t, string(out), "tickRate: 20")

	v := viper.New()
	v.SetConfigFile(writeConfig(t, string(out)))
	cfg, err := LoadConfig(v)
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig.TickRate, cfg.TickRate)
	assert.Equal(t, DefaultTickRate, cfg.PluginSettings().Sub("exampleplugin").GetInt("taskdelay"))
}

func TestNewViper_EnvOverridesFile(t *testing.T) {
	path := writeConfig(t, "tickRate: 40\n")
	t.Setenv("RELAY_TICKRATE", "35")

	cfg, err := LoadConfig(NewViper(path))
	require.NoError(t, err)
	assert.Equal(t, 35, cfg.TickRate)
	assert.Equal(t, DefaultConfig.AutoReload, cfg.AutoReload)
}

func TestNewViper_NoFile(t *testing.T) {
	cfg, err := LoadConfig(NewViper(""))
	require.NoError(t, err)
	assert.Equal(t, DefaultTickRate, cfg.TickRate)
}
