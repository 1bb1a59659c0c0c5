package plugin

import (
	"fmt"

	"gopkg.in/yaml.v3"

	"go.aquarelay.dev/example/pkg/util/validation"
)

// Description is the packaging metadata of a plugin, usually read from its plugin.yml.
type Description struct {
	Name        string   `yaml:"name" json:"name"`
	Version     string   `yaml:"version" json:"version"`
	Main        string   `yaml:"main,omitempty" json:"main,omitempty"`
	API         string   `yaml:"api,omitempty" json:"api,omitempty"`
	Authors     []string `yaml:"authors,omitempty" json:"authors,omitempty"`
	Description string   `yaml:"description,omitempty" json:"description,omitempty"`
	Website     string   `yaml:"website,omitempty" json:"website,omitempty"`
}

// ParseDescription parses and validates a plugin.yml document.
func ParseDescription(b []byte) (Description, error) {
	var d Description
	if err := yaml.Unmarshal(b, &d); err != nil {
		return Description{}, fmt.Errorf("error parsing plugin description: %w", err)
	}
	return d, d.Validate()
}

// MustParseDescription is like ParseDescription but panics on error.
// It is meant for descriptions embedded into the binary.
func MustParseDescription(b []byte) Description {
	d, err := ParseDescription(b)
	if err != nil {
		panic(err)
	}
	return d
}

// Validate validates the description.
func (d Description) Validate() error {
	if !validation.ValidPluginName(d.Name) {
		return fmt.Errorf("invalid plugin name %q: %s", d.Name, validation.PluginNameErrMsg)
	}
	if d.Version == "" {
		return fmt.Errorf("plugin %q is missing a version", d.Name)
	}
	return nil
}

// FullName returns the plugin name together with its version.
func (d Description) FullName() string {
	return d.Name + " v" + d.Version
}
