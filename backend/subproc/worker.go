package subproc

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"runtime"
	"runtime/debug"

	"crucible/backend/inproc"
	"crucible/core/deadline"
	"crucible/core/execution"
)

// RunWorker is the child half of the process-isolated strategy. It reads one
// request from stdin, pins the runtime down, installs the kernel ceilings and
// runs the snippet in the restricted environment, then writes one result JSON
// to stdout. The exit code signals protocol failures only; snippet failures
// travel inside the result.
func RunWorker(stdin io.Reader, stdout, stderr io.Writer) int {
	dec := json.NewDecoder(stdin)
	dec.UseNumber()
	var req workerRequest
	if err := dec.Decode(&req); err != nil {
		fmt.Fprintln(stderr, "crucible:", fmt.Errorf("decode worker request: %w", err))
		return 1
	}

	// Thread creation after the process ceiling is installed would fail, so
	// pin the scheduler first. The soft memory limit makes the collector
	// push back before the kernel's heap ceiling kills the process.
	runtime.GOMAXPROCS(1)
	if req.Limits.MaxMemoryBytes > 0 {
		debug.SetMemoryLimit(req.Limits.MaxMemoryBytes)
	}

	backend := inproc.New(inproc.Options{Limits: req.Limits, ApplyProcessLimits: true})
	sup := deadline.New()
	defer sup.Disarm()
	out := backend.Run(context.Background(), execution.Request{
		Snippet:   req.Snippet,
		Variables: req.Variables,
		Data:      req.Data,
	}, sup)

	if err := json.NewEncoder(stdout).Encode(resultFromOutcome(out)); err != nil {
		fmt.Fprintln(stderr, "crucible:", fmt.Errorf("encode worker result: %w", err))
		return 1
	}
	return 0
}
