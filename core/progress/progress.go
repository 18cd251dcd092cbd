// Package progress publishes an ordered phase-notification stream for one
// execution. The stream is independent of the terminal result: consumers can
// render live progress while the engine is still running, and a full channel
// never blocks the engine.
package progress

import (
	"sync"
	"time"
)

// Phase identifies one step of the execution pipeline.
type Phase string

const (
	PhaseInitializing      Phase = "initializing"
	PhaseValidating        Phase = "validating"
	PhaseSettingUp         Phase = "setting_up"
	PhasePreparingEnv      Phase = "preparing_environment"
	PhaseLoadingContext    Phase = "loading_context"
	PhaseExecuting         Phase = "executing"
	PhaseProcessingResults Phase = "processing_results"
	PhaseCompleted         Phase = "completed"
	PhaseFailed            Phase = "failed"
)

// Event is one progress notification. The wire shape matches the
// PROGRESS:{json} line protocol consumed by orchestration callers.
type Event struct {
	Phase      Phase   `json:"step"`
	Percentage int     `json:"percentage"`
	Message    string  `json:"message"`
	EmittedAt  float64 `json:"timestamp"`
}

// Status is a terminal status notification, emitted once per run on the
// STATUS:{json} line alongside the final payload.
type Status struct {
	Status    string         `json:"status"`
	Message   string         `json:"message"`
	Details   map[string]any `json:"details,omitempty"`
	EmittedAt float64        `json:"timestamp"`
}

// Emitter publishes events for a single request. A nil *Emitter is valid and
// discards everything, so callers never need to guard emission.
type Emitter struct {
	mu       sync.Mutex
	events   chan Event
	statuses chan Status
	closed   bool
}

func NewEmitter() *Emitter {
	return &Emitter{
		events:   make(chan Event, 64),
		statuses: make(chan Status, 4),
	}
}

// Emit appends a phase notification. Events are dropped rather than blocking
// when no consumer is draining the stream.
func (e *Emitter) Emit(phase Phase, percentage int, message string) {
	if e == nil {
		return
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return
	}
	ev := Event{
		Phase:      phase,
		Percentage: percentage,
		Message:    message,
		EmittedAt:  now(),
	}
	select {
	case e.events <- ev:
	default:
	}
}

// EmitStatus appends a terminal status notification.
func (e *Emitter) EmitStatus(status, message string, details map[string]any) {
	if e == nil {
		return
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return
	}
	st := Status{
		Status:    status,
		Message:   message,
		Details:   details,
		EmittedAt: now(),
	}
	select {
	case e.statuses <- st:
	default:
	}
}

// Events is the ordered phase stream.
func (e *Emitter) Events() <-chan Event {
	if e == nil {
		return nil
	}
	return e.events
}

// Statuses is the terminal status stream.
func (e *Emitter) Statuses() <-chan Status {
	if e == nil {
		return nil
	}
	return e.statuses
}

// Close ends both streams. Emitting after Close is a no-op.
func (e *Emitter) Close() {
	if e == nil {
		return
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return
	}
	e.closed = true
	close(e.events)
	close(e.statuses)
}

func now() float64 {
	return float64(time.Now().UnixNano()) / float64(time.Second)
}
