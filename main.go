// AquaRelay with the example plugin compiled in.
package main

import (
	"go.aquarelay.dev/example/cmd/aquarelay"
	"go.aquarelay.dev/example/pkg/example"
	"go.aquarelay.dev/example/pkg/relay/plugin"
)

func main() {
	// Add the example plugin to be loaded on relay start.
	plugin.Plugins = append(plugin.Plugins, example.Registration())

	// Execute the relay entrypoint and block until shutdown.
	aquarelay.Execute()
}
