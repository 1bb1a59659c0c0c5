package validation

import (
	"regexp"
)

const (
	PluginNameMaxLength = 64
	PluginNameErrMsg    = "must be non-empty and consist of alphanumeric characters, " +
		"spaces, '-', '_' or '.'"
)

var pluginNameRegexp = regexp.MustCompile(`^[A-Za-z0-9 _.-]+$`)

// ValidPluginName reports whether str can be used as a plugin name.
func ValidPluginName(str string) bool {
	return str != "" && len(str) <= PluginNameMaxLength && pluginNameRegexp.MatchString(str)
}

// ValidTickRate reports whether the ticks per second are within the supported range.
func ValidTickRate(rate int) bool {
	return rate >= 1 && rate <= 1000
}
