package subproc

import (
	"bytes"
	"encoding/json"
	"fmt"

	"crucible/core/execution"
	"crucible/core/limits"
)

// WorkerMode is the argv marker that switches the binary into its worker
// personality.
const WorkerMode = "worker"

// workerRequest crosses the parent/worker boundary on the worker's stdin.
// The snippet travels as data; it is never spliced into generated source.
type workerRequest struct {
	Snippet   string         `json:"snippet"`
	Variables map[string]any `json:"variables,omitempty"`
	Data      any            `json:"data,omitempty"`
	Limits    limits.Limits  `json:"limits"`
}

// workerResult is the single JSON object the worker writes to stdout.
type workerResult struct {
	Kind    string      `json:"kind"`
	Value   any         `json:"value,omitempty"`
	Stdout  string      `json:"stdout,omitempty"`
	Message string      `json:"message,omitempty"`
	Limit   limits.Kind `json:"limit,omitempty"`
}

func resultFromOutcome(out execution.Outcome) workerResult {
	return workerResult{
		Kind:    out.Kind.String(),
		Value:   out.Value,
		Stdout:  out.Stdout,
		Message: out.Message,
		Limit:   out.Limit,
	}
}

func (r workerResult) toOutcome() (execution.Outcome, error) {
	kind, err := kindFromString(r.Kind)
	if err != nil {
		return execution.Outcome{}, err
	}
	return execution.Outcome{
		Kind:    kind,
		Value:   normalizeValue(r.Value),
		Stdout:  r.Stdout,
		Message: r.Message,
		Limit:   r.Limit,
	}, nil
}

// kindFromString covers the kinds a worker can actually report; validation
// runs in the parent and never crosses this boundary.
func kindFromString(s string) (execution.OutcomeKind, error) {
	switch s {
	case "success":
		return execution.KindSuccess, nil
	case "runtime_error":
		return execution.KindRuntimeError, nil
	case "timed_out":
		return execution.KindTimedOut, nil
	case "resource_exceeded":
		return execution.KindResourceExceeded, nil
	case "internal_error":
		return execution.KindInternalError, nil
	}
	return 0, fmt.Errorf("unknown outcome kind %q", s)
}

// decodeResult parses the worker's stdout. A missing or malformed result is
// not an error here: the caller classifies the death by exit status instead.
func decodeResult(raw []byte) (execution.Outcome, bool) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return execution.Outcome{}, false
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var res workerResult
	if err := dec.Decode(&res); err != nil {
		return execution.Outcome{}, false
	}
	out, err := res.toOutcome()
	if err != nil {
		return execution.Outcome{}, false
	}
	return out, true
}

// normalizeValue undoes JSON's number erasure on the way back from the
// worker so integer results stay integers.
func normalizeValue(v any) any {
	switch v := v.(type) {
	case json.Number:
		if i, err := v.Int64(); err == nil {
			return i
		}
		if f, err := v.Float64(); err == nil {
			return f
		}
		return v.String()
	case []any:
		for i, elem := range v {
			v[i] = normalizeValue(elem)
		}
		return v
	case map[string]any:
		for k, elem := range v {
			v[k] = normalizeValue(elem)
		}
		return v
	default:
		return v
	}
}
