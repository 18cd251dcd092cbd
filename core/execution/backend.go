package execution

import (
	"context"

	"crucible/core/deadline"
)

// Strategy is implemented by the isolation adapters. It is intentionally
// minimal so strategies can be swapped without touching validation, progress
// or outcome assembly. The strategy arms the supervisor around the actual
// run and classifies its own failures; the engine stamps elapsed time and
// guarantees the supervisor is disarmed on every exit path.
//
// A Strategy instance serves one run at a time.
type Strategy interface {
	Name() string
	// Isolation describes the boundary: "namespace" for the in-process
	// restricted environment, "process" for the spawned child.
	Isolation() string
	Run(ctx context.Context, req Request, sup *deadline.Supervisor) Outcome
}
