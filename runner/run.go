// Package runner drives one request end to end: decode the request JSON from
// stdin, build the configured strategy and engine, stream the PROGRESS: and
// STATUS: notification lines, and print the terminal response JSON last.
package runner

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"crucible/backend/inproc"
	"crucible/backend/subproc"
	"crucible/config"
	"crucible/core/execution"
	"crucible/core/progress"
	"crucible/core/validate"
	"crucible/core/version"
	"crucible/watch"
)

// Input is the request read from stdin.
type Input struct {
	Code        string       `json:"code"`
	ContextData *ContextData `json:"context_data,omitempty"`
}

// ContextData carries caller-provided bindings: named variables injected
// directly into the environment, and an opaque payload bound as "data".
type ContextData struct {
	Variables map[string]any `json:"variables,omitempty"`
	Data      any            `json:"data,omitempty"`
}

// Response is the terminal JSON object, always the last line written.
type Response struct {
	Success       bool           `json:"success"`
	Output        string         `json:"output"`
	Result        any            `json:"result"`
	Error         string         `json:"error,omitempty"`
	ExecutionTime int64          `json:"execution_time"`
	Timestamp     string         `json:"timestamp"`
	Version       string         `json:"version"`
	Observed      *watch.Summary `json:"observed,omitempty"`
}

// Run executes one request. The exit code distinguishes protocol failures
// from engine results: malformed or empty input returns 2, everything the
// engine classifies, including rejections and timeouts, returns 0 with the
// failure described inside the response.
func Run(ctx context.Context, in io.Reader, out io.Writer, cfg config.Config) int {
	dec := json.NewDecoder(in)
	dec.UseNumber()
	var input Input
	if err := dec.Decode(&input); err != nil {
		writeResponse(out, errorResponse(fmt.Sprintf("invalid input: %v", err)))
		return 2
	}
	if strings.TrimSpace(input.Code) == "" {
		writeResponse(out, errorResponse("no code provided"))
		return 2
	}

	policy, ok := validate.PolicyByName(cfg.Policy)
	if !ok {
		writeResponse(out, errorResponse(fmt.Sprintf("unknown policy %q", cfg.Policy)))
		return 2
	}
	strategy, err := buildStrategy(cfg)
	if err != nil {
		writeResponse(out, errorResponse(err.Error()))
		return 2
	}

	emitter := progress.NewEmitter()
	engine := execution.Engine{
		Strategy: strategy,
		Policy:   policy,
		// The strict profile implies the structural pass.
		SyntaxCheck: cfg.SyntaxCheck || cfg.Policy == "strict",
		Progress:    emitter,
	}

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		streamNotifications(out, emitter)
	}()

	emitter.Emit(progress.PhaseInitializing, 0, "starting code execution")
	req := execution.Request{Snippet: input.Code}
	if input.ContextData != nil {
		req.Variables = input.ContextData.Variables
		req.Data = input.ContextData.Data
	}
	outcome := engine.Run(ctx, req)

	emitStatus(emitter, outcome)
	emitter.Close()
	// Every notification line lands before the terminal response.
	wg.Wait()

	writeResponse(out, responseFromOutcome(outcome))
	return 0
}

func buildStrategy(cfg config.Config) (execution.Strategy, error) {
	switch cfg.Strategy {
	case "inproc":
		return inproc.New(inproc.Options{Limits: cfg.Limits}), nil
	case "subproc":
		return subproc.New(subproc.Options{
			Limits:         cfg.Limits,
			GraceSeconds:   cfg.GraceSeconds,
			WorkerPath:     cfg.WorkerPath,
			Watch:          cfg.Watch,
			WatchObjectDir: cfg.WatchObjectDir,
		}), nil
	}
	return nil, fmt.Errorf("unknown strategy %q", cfg.Strategy)
}

// streamNotifications drains both notification channels until the emitter
// closes, one prefixed JSON line each. The status is terminal and is emitted
// only after the final progress event, so draining the event channel to
// completion first keeps every PROGRESS line ahead of the STATUS line.
func streamNotifications(w io.Writer, em *progress.Emitter) {
	for ev := range em.Events() {
		writeLine(w, "PROGRESS:", ev)
	}
	for st := range em.Statuses() {
		writeLine(w, "STATUS:", st)
	}
}

func emitStatus(em *progress.Emitter, out execution.Outcome) {
	if out.Kind == execution.KindSuccess {
		em.EmitStatus("completed", "code execution completed successfully", nil)
		return
	}
	em.EmitStatus("failed", out.Message, map[string]any{"kind": out.Kind.String()})
}

func responseFromOutcome(out execution.Outcome) Response {
	resp := Response{
		ExecutionTime: out.ElapsedMs,
		Timestamp:     time.Now().UTC().Format(time.RFC3339),
		Version:       version.ResponseVersion,
		Observed:      out.Observed,
	}
	switch out.Kind {
	case execution.KindSuccess:
		resp.Success = true
		resp.Output = out.Stdout
		if out.Stderr != "" {
			resp.Output += "\nSTDERR: " + out.Stderr
		}
		resp.Result = out.Value
	default:
		resp.Output = out.Stdout
		resp.Error = out.Message
	}
	return resp
}

func errorResponse(msg string) Response {
	return Response{
		Error:     msg,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Version:   version.ResponseVersion,
	}
}

func writeLine(w io.Writer, prefix string, v any) {
	raw, err := json.Marshal(v)
	if err != nil {
		return
	}
	fmt.Fprintf(w, "%s%s\n", prefix, raw)
}

func writeResponse(w io.Writer, resp Response) {
	enc := json.NewEncoder(w)
	if err := enc.Encode(resp); err != nil {
		fmt.Fprintf(w, `{"success":false,"error":"encode response: %v"}`+"\n", err)
	}
}
