package version

import (
	"strings"
)

// version is the current version of the relay.
// Set using -ldflags "-X go.aquarelay.dev/example/pkg/version.version=v1.2.3"
var version = "unknown"

// String returns the relay version.
func String() string {
	return version
}

// UserAgent returns the relay's identifier including its version.
func UserAgent() string {
	s := strings.Builder{}
	s.WriteString("AquaRelay/")
	if v := String(); v != "" {
		s.WriteString(v)
	} else {
		s.WriteString("Dirty")
	}
	return s.String()
}
