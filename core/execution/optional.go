package execution

import (
	"os"

	"crucible/watch"
)

// ObservationProvider allows strategies to surface syscall-watch diagnostics
// collected during the run.
type ObservationProvider interface {
	Observed() *watch.Summary
}

// ProcessStateProvider is implemented by strategies that can expose the
// child's resource usage after the run.
type ProcessStateProvider interface {
	ProcessState() *os.ProcessState
}
