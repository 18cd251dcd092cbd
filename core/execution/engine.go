package execution

import (
	"context"
	"errors"
	"fmt"
	"time"

	"crucible/core/capability"
	"crucible/core/deadline"
	"crucible/core/progress"
	"crucible/core/validate"
)

// Engine orchestrates one execution: static validation, strategy dispatch,
// deadline supervision, and outcome assembly. It holds no mutable state of
// its own; everything per-request lives in the strategy and the supervisor.
type Engine struct {
	Strategy Strategy
	Policy   validate.Policy

	// SyntaxCheck enables the allowlist-based structural pass on top of the
	// denylist. The strict profile turns it on.
	SyntaxCheck bool

	Progress *progress.Emitter
}

// Run takes a request to its single terminal outcome. Validation rejections
// return before any limit is installed, any namespace is built, or the
// deadline is armed. Every other exit state is normalized into exactly one
// outcome kind with elapsed wall time stamped by the engine.
func (e Engine) Run(ctx context.Context, req Request) (out Outcome) {
	e.Progress.Emit(progress.PhaseValidating, 10, "validating code security")
	if verdict := e.Policy.Check(req.Snippet); !verdict.Allowed {
		return e.reject(verdict.Pattern)
	}
	if e.SyntaxCheck {
		allowed := capability.AllowedNames()
		for name := range req.Variables {
			allowed[name] = true
		}
		if req.Data != nil {
			allowed["data"] = true
		}
		if verdict := validate.CheckSyntax(req.Snippet, allowed); !verdict.Allowed {
			return e.reject(verdict.Pattern)
		}
	}
	if e.Strategy == nil {
		return Internal(errors.New("strategy required"))
	}

	e.Progress.Emit(progress.PhaseSettingUp, 20, "setting up security restrictions")
	e.Progress.Emit(progress.PhasePreparingEnv, 30, "preparing execution environment")
	if len(req.Variables) > 0 || req.Data != nil {
		e.Progress.Emit(progress.PhaseLoadingContext, 40, "loading context data")
	}

	sup := deadline.New()
	defer sup.Disarm()

	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			out = Internal(fmt.Errorf("strategy panic: %v", r))
			out.ElapsedMs = time.Since(start).Milliseconds()
			e.Progress.Emit(progress.PhaseFailed, 100, out.Message)
		}
	}()

	e.Progress.Emit(progress.PhaseExecuting, 50, "executing code")
	out = e.Strategy.Run(ctx, req, sup)
	// The engine stamps authoritative elapsed time.
	out.ElapsedMs = time.Since(start).Milliseconds()

	if op, ok := e.Strategy.(ObservationProvider); ok {
		out.Observed = op.Observed()
	}

	e.Progress.Emit(progress.PhaseProcessingResults, 90, "processing execution results")
	if out.Kind == KindSuccess {
		e.Progress.Emit(progress.PhaseCompleted, 100, "code execution completed successfully")
	} else {
		e.Progress.Emit(progress.PhaseFailed, 100, out.Message)
	}
	return out
}

func (e Engine) reject(pattern string) Outcome {
	out := Rejected(pattern)
	e.Progress.Emit(progress.PhaseFailed, 100, out.Message)
	return out
}
