// Package ingest accepts finished telemetry records from the host
// application's collectors and persists them. Writes are fire-and-forget:
// storage failures are logged once per operation kind and never surface
// to the hot request path.
package ingest

import (
	"sync"

	"github.com/rs/zerolog"
)

// Reporter logs at most one warning per operation kind for the lifetime
// of its engine instance. The state is instance-owned, not process-wide,
// so embedding two engines (or resetting between tests) cannot leak
// suppression across instances.
type Reporter struct {
	mu     sync.Mutex
	warned map[string]bool
	log    zerolog.Logger
}

// NewReporter creates a reporter logging through the given logger.
func NewReporter(log zerolog.Logger) *Reporter {
	return &Reporter{
		warned: make(map[string]bool),
		log:    log,
	}
}

// Report records a failure of the given operation kind. The first
// failure per kind is logged as a warning; subsequent ones are silent.
func (r *Reporter) Report(kind string, err error) {
	if err == nil {
		return
	}

	r.mu.Lock()
	already := r.warned[kind]
	r.warned[kind] = true
	r.mu.Unlock()

	if already {
		return
	}
	r.log.Warn().Err(err).Str("operation", kind).
		Msg("telemetry write failed; further failures of this kind will not be logged")
}

// Reset clears the warned state. Test support.
func (r *Reporter) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.warned = make(map[string]bool)
}
