package execution

import (
	"fmt"

	"crucible/core/limits"
	"crucible/watch"
)

// Request is one snippet execution, immutable once accepted. Resource
// ceilings are not part of the request: they are fixed by the deployment
// profile and installed by the strategy.
type Request struct {
	Snippet   string
	Variables map[string]any
	Data      any
}

// OutcomeKind tags the terminal classification of a run. Exactly one kind
// applies per request.
type OutcomeKind int

const (
	KindSuccess OutcomeKind = iota + 1
	KindValidationRejected
	KindRuntimeError
	KindTimedOut
	KindResourceExceeded
	KindInternalError
)

func (k OutcomeKind) String() string {
	switch k {
	case KindSuccess:
		return "success"
	case KindValidationRejected:
		return "validation_rejected"
	case KindRuntimeError:
		return "runtime_error"
	case KindTimedOut:
		return "timed_out"
	case KindResourceExceeded:
		return "resource_exceeded"
	case KindInternalError:
		return "internal_error"
	default:
		return "unknown"
	}
}

// Outcome is the single normalized result shape every exit state maps onto.
type Outcome struct {
	Kind OutcomeKind

	// Value is the snippet's expression result, or the conventional
	// "result" binding for statement snippets. Success only.
	Value any

	// Stdout holds captured print output; preserved on runtime errors that
	// follow partial output.
	Stdout string
	Stderr string

	// Message is the human-readable failure description; empty on success.
	Message string

	// Pattern is the denylist or allowlist pattern that triggered a
	// validation rejection.
	Pattern string

	// Limit names the exceeded ceiling for KindResourceExceeded.
	Limit limits.Kind

	// ElapsedMs is stamped by the engine; zero for validation rejections,
	// which never reach execution.
	ElapsedMs int64

	// Observed carries optional syscall-watch diagnostics from the
	// isolated strategy. Never part of the security boundary.
	Observed *watch.Summary
}

func Success(value any, stdout, stderr string) Outcome {
	return Outcome{Kind: KindSuccess, Value: value, Stdout: stdout, Stderr: stderr}
}

func Rejected(pattern string) Outcome {
	return Outcome{
		Kind:    KindValidationRejected,
		Pattern: pattern,
		Message: fmt.Sprintf("code contains potentially dangerous operation: %s", pattern),
	}
}

func RuntimeFailure(message, partialStdout, stderr string) Outcome {
	return Outcome{Kind: KindRuntimeError, Message: message, Stdout: partialStdout, Stderr: stderr}
}

func TimedOut(wallSeconds int) Outcome {
	return Outcome{
		Kind:    KindTimedOut,
		Message: fmt.Sprintf("code execution timed out (%d seconds)", wallSeconds),
	}
}

func ResourceExceeded(kind limits.Kind) Outcome {
	return Outcome{
		Kind:    KindResourceExceeded,
		Limit:   kind,
		Message: fmt.Sprintf("code execution exceeded %s limit", kind),
	}
}

func Internal(err error) Outcome {
	return Outcome{Kind: KindInternalError, Message: fmt.Sprintf("sandbox error: %v", err)}
}
