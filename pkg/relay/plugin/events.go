package plugin

// PluginLoadEvent is fired after a plugin's OnLoad hook returned.
type PluginLoadEvent struct {
	Description Description
}

// PluginEnableEvent is fired after a plugin's OnEnable hook returned.
type PluginEnableEvent struct {
	Description Description
}

// PluginDisableEvent is fired after a plugin's OnDisable hook returned
// and its scheduler was shut down.
type PluginDisableEvent struct {
	Description Description
	// Failed is true if the plugin is disabled because one of its hooks panicked.
	Failed bool
}
