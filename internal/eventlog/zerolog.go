package eventlog

import (
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/curio-sh/curio/internal/metrics"
)

// ZerologLogger writes events and exceptions through a zerolog.Logger.
// It optionally emits a periodic heartbeat event; the heartbeat ticker is
// owned explicitly and runs only between StartHeartbeat and Stop.
type ZerologLogger struct {
	log zerolog.Logger

	mu   sync.Mutex
	done chan struct{}
	wg   sync.WaitGroup
}

// New creates an event logger writing through the given zerolog.Logger.
func New(log zerolog.Logger) *ZerologLogger {
	return &ZerologLogger{log: log}
}

// LogEvent records a named event at info level.
func (l *ZerologLogger) LogEvent(name string, properties map[string]string) {
	ev := l.log.Info().Str("event", name)
	for k, v := range properties {
		ev = ev.Str(k, v)
	}
	ev.Msg("Event")
	metrics.EventLogged("event")
}

// LogException records an error at error level.
func (l *ZerologLogger) LogException(err error, properties map[string]string) {
	ev := l.log.Error().Err(err)
	for k, v := range properties {
		ev = ev.Str(k, v)
	}
	ev.Msg("Exception")
	metrics.EventLogged("exception")
}

// StartHeartbeat begins emitting a "Heartbeat" event every interval.
// It is a no-op if a heartbeat is already running or interval <= 0.
func (l *ZerologLogger) StartHeartbeat(interval time.Duration) {
	if interval <= 0 {
		return
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if l.done != nil {
		return
	}

	done := make(chan struct{})
	l.done = done

	l.wg.Add(1)
	go func() {
		defer l.wg.Done()

		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				l.LogEvent("Heartbeat", nil)
			}
		}
	}()
}

// Stop shuts down the heartbeat, if one is running.
func (l *ZerologLogger) Stop() {
	l.mu.Lock()
	if l.done != nil {
		close(l.done)
		l.done = nil
	}
	l.mu.Unlock()

	l.wg.Wait()
}
