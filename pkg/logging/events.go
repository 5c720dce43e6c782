package logging

import (
	"time"

	"github.com/rs/zerolog"

	"github.com/eunmann/idxbench/pkg/humanfmt"
)

// CompletionEvent builds a structured "something finished" log line with
// a consistent set of fields.
type CompletionEvent struct {
	log     zerolog.Logger
	event   string
	phase   string
	elapsed time.Duration
	fields  map[string]any
}

// NewCompletionEvent starts an event.
func NewCompletionEvent(log zerolog.Logger, event, phase string, elapsed time.Duration) *CompletionEvent {
	return &CompletionEvent{
		log:     log,
		event:   event,
		phase:   phase,
		elapsed: elapsed,
		fields:  make(map[string]any),
	}
}

// Str adds a string field.
func (ce *CompletionEvent) Str(key, val string) *CompletionEvent {
	ce.fields[key] = val
	return ce
}

// Int adds an int field.
func (ce *CompletionEvent) Int(key string, val int) *CompletionEvent {
	ce.fields[key] = val
	return ce
}

// Uint64 adds a uint64 field.
func (ce *CompletionEvent) Uint64(key string, val uint64) *CompletionEvent {
	ce.fields[key] = val
	return ce
}

// Float64 adds a float64 field.
func (ce *CompletionEvent) Float64(key string, val float64) *CompletionEvent {
	ce.fields[key] = val
	return ce
}

// Bool adds a bool field.
func (ce *CompletionEvent) Bool(key string, val bool) *CompletionEvent {
	ce.fields[key] = val
	return ce
}

// Count adds a count with a human-readable companion in pretty mode.
func (ce *CompletionEvent) Count(key string, n uint64) *CompletionEvent {
	ce.fields[key] = n
	if IsPrettyMode() {
		ce.fields[key+"_h"] = humanfmt.CountUint64(n)
	}
	return ce
}

// Bytes adds a byte size with a human-readable companion in pretty mode.
func (ce *CompletionEvent) Bytes(key string, n uint64) *CompletionEvent {
	ce.fields[key] = n
	if IsPrettyMode() {
		ce.fields[key+"_h"] = humanfmt.BytesUint64(n)
	}
	return ce
}

// Rate adds ops_per_sec computed from ops over the event's elapsed time.
func (ce *CompletionEvent) Rate(ops uint64) *CompletionEvent {
	if ce.elapsed > 0 {
		ce.fields["ops_per_sec"] = float64(ops) / ce.elapsed.Seconds()
		if IsPrettyMode() {
			ce.fields["ops_per_sec_h"] = humanfmt.Rate(ops, ce.elapsed)
		}
	}
	return ce
}

// Log emits the event at info level.
func (ce *CompletionEvent) Log(msg string) {
	ce.emit(ce.log.Info(), msg)
}

// LogDebug emits the event at debug level.
func (ce *CompletionEvent) LogDebug(msg string) {
	ce.emit(ce.log.Debug(), msg)
}

func (ce *CompletionEvent) emit(e *zerolog.Event, msg string) {
	e = e.Str("event", ce.event).
		Str("phase", ce.phase).
		Int64("duration_ms", ce.elapsed.Milliseconds())

	if IsPrettyMode() {
		e = e.Str("duration_h", humanfmt.Duration(ce.elapsed))
	}

	for k, v := range ce.fields {
		e = e.Interface(k, v)
	}

	e.Msg(msg)
}

// PhaseComplete starts a phase completion event.
func PhaseComplete(log zerolog.Logger, phase string, elapsed time.Duration) *CompletionEvent {
	return NewCompletionEvent(log, "phase_completed", phase, elapsed)
}

// WindowComplete starts a sampling-window event.
func WindowComplete(log zerolog.Logger, phase string, elapsed time.Duration) *CompletionEvent {
	return NewCompletionEvent(log, "window_completed", phase, elapsed)
}

// ArtifactWritten starts an event for a file written or uploaded.
func ArtifactWritten(log zerolog.Logger, phase string, elapsed time.Duration) *CompletionEvent {
	return NewCompletionEvent(log, "artifact_written", phase, elapsed)
}

// PhaseStarted logs the start of a phase.
func PhaseStarted(log zerolog.Logger, phase string, workers int) {
	log.Info().
		Str("event", "phase_started").
		Str("phase", phase).
		Int("workers", workers).
		Msg("phase started")
}
