package relay

// ReadyEvent is fired once all plugins were enabled,
// right before the first tick.
type ReadyEvent struct{}

// ShutdownEvent is fired when the relay shuts down,
// before plugins are disabled.
type ShutdownEvent struct{}
