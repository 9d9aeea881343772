package log

// Logger is the interface applications implement to receive registry events.
// Pass nil or NoopLogger to disable logging.
type Logger interface {
	// Log records a registry event. Implementations must be thread-safe
	// and must not block: events are emitted inside the registry's
	// critical section.
	Log(event Event)
}

// NoopLogger discards all events. Use when logging is disabled.
// NoopLogger is safe for concurrent use and usable as a zero value.
type NoopLogger struct{}

// Log discards the event.
func (NoopLogger) Log(Event) {}

// Compile-time interface satisfaction check.
var _ Logger = NoopLogger{}
