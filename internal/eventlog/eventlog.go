// Package eventlog defines the event-logging collaborator used by the
// document repository and the scheduler. It is a one-way sink: logging
// failures never propagate to callers.
package eventlog

// Logger receives coarse-grained lifecycle events and caught errors.
type Logger interface {
	// LogEvent records a named event with optional string properties.
	LogEvent(name string, properties map[string]string)

	// LogException records an error with optional string properties.
	LogException(err error, properties map[string]string)
}

// Nop is a Logger that discards everything.
type Nop struct{}

func (Nop) LogEvent(string, map[string]string) {}

func (Nop) LogException(error, map[string]string) {}
