package fake

import (
	"context"
	"time"

	"crucible/core/deadline"
	"crucible/core/execution"
	"crucible/watch"
)

// Backend is a configurable fake strategy useful for contract tests.
type Backend struct {
	Outcome     execution.Outcome
	Observation *watch.Summary

	// Delay stalls the run so callers can assert elapsed-time stamping.
	Delay time.Duration
	// Panics makes the run panic instead of returning.
	Panics bool

	// LastRequest records the most recent request for assertions.
	LastRequest execution.Request
	Calls       int
}

func New(out execution.Outcome) *Backend {
	return &Backend{Outcome: out}
}

func (b *Backend) Name() string      { return "fake" }
func (b *Backend) Isolation() string { return "none" }

func (b *Backend) Run(ctx context.Context, req execution.Request, sup *deadline.Supervisor) execution.Outcome {
	_ = ctx
	_ = sup
	b.LastRequest = req
	b.Calls++
	if b.Panics {
		panic("fake: forced panic")
	}
	if b.Delay > 0 {
		time.Sleep(b.Delay)
	}
	return b.Outcome
}

func (b *Backend) Observed() *watch.Summary { return b.Observation }

var _ execution.Strategy = (*Backend)(nil)
var _ execution.ObservationProvider = (*Backend)(nil)
