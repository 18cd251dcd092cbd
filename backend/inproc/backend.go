// Package inproc runs a snippet inside the host process, bound to the
// restricted evaluation namespace. Print output goes to a private buffer for
// the call's duration, the wall-clock deadline cancels the interpreter
// thread at its next safe point, and the CPU ceiling maps onto an
// execution-step budget. The process-isolated strategy reuses this backend
// inside the spawned worker, so both variants share one execution path.
package inproc

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"

	"go.starlark.net/starlark"

	"crucible/core/capability"
	"crucible/core/deadline"
	"crucible/core/execution"
	"crucible/core/limits"
)

// stepsPerCPUSecond approximates interpreter throughput. The interpreter
// cannot meter host CPU time directly, so the CPU ceiling becomes a step
// budget; exhausting it classifies as a CPU resource failure, not a crash.
const stepsPerCPUSecond = 50_000_000

const snippetFilename = "snippet.star"

type Options struct {
	Limits limits.Limits

	// ApplyProcessLimits installs the rlimit ceilings on the calling
	// process before the snippet runs. Only the isolated worker sets
	// this: rlimits are process-wide and irreversible, so a long-lived
	// host must not install them on itself.
	ApplyProcessLimits bool
}

type Backend struct {
	opts Options
}

func New(opts Options) *Backend { return &Backend{opts: opts} }

func (b *Backend) Name() string      { return "inproc" }
func (b *Backend) Isolation() string { return "namespace" }

func (b *Backend) Run(ctx context.Context, req execution.Request, sup *deadline.Supervisor) execution.Outcome {
	if err := ctx.Err(); err != nil {
		return execution.Internal(err)
	}
	if b.opts.ApplyProcessLimits {
		if err := limits.Apply(b.opts.Limits); err != nil {
			return execution.Internal(fmt.Errorf("install resource limits: %w", err))
		}
	}

	env, err := capability.BuildEnv(req.Variables, req.Data)
	if err != nil {
		return execution.Internal(err)
	}

	var stdout bytes.Buffer
	thread := &starlark.Thread{
		Name: "snippet",
		Print: func(_ *starlark.Thread, msg string) {
			fmt.Fprintln(&stdout, msg)
		},
		Load: capability.Loader,
	}
	if b.opts.Limits.MaxCPUSeconds > 0 {
		thread.SetMaxExecutionSteps(uint64(b.opts.Limits.MaxCPUSeconds) * stepsPerCPUSecond)
	}

	disarm := sup.Arm(b.opts.Limits.Wall(), func() {
		thread.Cancel("wall clock deadline exceeded")
	})
	defer disarm()

	value, runErr := evalSnippet(thread, req.Snippet, env)
	disarm()

	if runErr != nil {
		return b.classify(runErr, sup, stdout.String())
	}
	goValue, err := capability.FromStarlark(value)
	if err != nil {
		return execution.Internal(err)
	}
	return execution.Success(goValue, stdout.String(), "")
}

// evalSnippet classifies the snippet by parse mode: a snippet that parses as
// an expression is evaluated as one; otherwise it runs as a statement
// sequence and the value is read from the conventional "result" binding.
func evalSnippet(thread *starlark.Thread, snippet string, env starlark.StringDict) (starlark.Value, error) {
	opts := capability.SyntaxOptions()
	if expr, err := opts.ParseExpr(snippetFilename, snippet, 0); err == nil {
		return starlark.EvalExprOptions(opts, thread, expr, env)
	}
	globals, err := starlark.ExecFileOptions(opts, thread, snippetFilename, snippet, env)
	if err != nil {
		return nil, err
	}
	if v, ok := globals["result"]; ok {
		return v, nil
	}
	return starlark.None, nil
}

// classify maps an interpreter error onto the outcome taxonomy. Deadline
// expiry wins over the cancellation error text it produces; a spent step
// budget is a CPU resource failure; everything else is a snippet-raised
// runtime error with partial output preserved.
func (b *Backend) classify(err error, sup *deadline.Supervisor, partialStdout string) execution.Outcome {
	if sup.Expired() {
		out := execution.TimedOut(b.opts.Limits.MaxWallSeconds)
		out.Stdout = partialStdout
		return out
	}
	if strings.Contains(err.Error(), "too many steps") {
		out := execution.ResourceExceeded(limits.KindCPU)
		out.Stdout = partialStdout
		return out
	}
	var evalErr *starlark.EvalError
	if errors.As(err, &evalErr) {
		return execution.RuntimeFailure(evalErr.Msg, partialStdout, "")
	}
	return execution.RuntimeFailure(err.Error(), partialStdout, "")
}

var _ execution.Strategy = (*Backend)(nil)
