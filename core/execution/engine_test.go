package execution_test

import (
	"context"
	"strings"
	"testing"
	"time"

	"crucible/backend/fake"
	"crucible/core/execution"
	"crucible/core/progress"
	"crucible/core/validate"
	"crucible/watch"
)

func TestRejectionShortCircuits(t *testing.T) {
	s := fake.New(execution.Success(nil, "", ""))
	engine := execution.Engine{Strategy: s, Policy: validate.DefaultPolicy()}

	out := engine.Run(context.Background(), execution.Request{Snippet: "import os"})
	if out.Kind != execution.KindValidationRejected {
		t.Fatalf("kind %v", out.Kind)
	}
	if out.Pattern != "import os" {
		t.Fatalf("pattern %q", out.Pattern)
	}
	if !strings.Contains(out.Message, "dangerous operation: import os") {
		t.Fatalf("message %q", out.Message)
	}
	if s.Calls != 0 {
		t.Fatal("strategy must not run for a rejected snippet")
	}
	if out.ElapsedMs != 0 {
		t.Fatalf("rejection should not report elapsed time, got %d", out.ElapsedMs)
	}
}

func TestSyntaxCheckGatesUnknownIdentifiers(t *testing.T) {
	s := fake.New(execution.Success(nil, "", ""))
	engine := execution.Engine{Strategy: s, Policy: validate.DefaultPolicy(), SyntaxCheck: true}

	out := engine.Run(context.Background(), execution.Request{Snippet: "mystery(1)"})
	if out.Kind != execution.KindValidationRejected {
		t.Fatalf("kind %v", out.Kind)
	}
	if s.Calls != 0 {
		t.Fatal("strategy must not run")
	}

	// The same snippet passes when the identifier arrives as a context variable.
	s2 := fake.New(execution.Success(nil, "", ""))
	engine2 := execution.Engine{Strategy: s2, Policy: validate.DefaultPolicy(), SyntaxCheck: true}
	out = engine2.Run(context.Background(), execution.Request{
		Snippet:   "mystery + 1",
		Variables: map[string]any{"mystery": 1},
	})
	if out.Kind != execution.KindSuccess {
		t.Fatalf("kind %v: %s", out.Kind, out.Message)
	}
	if s2.Calls != 1 {
		t.Fatal("strategy should run")
	}
}

func TestEngineStampsElapsedTime(t *testing.T) {
	s := fake.New(execution.Success(int64(4), "", ""))
	s.Delay = 20 * time.Millisecond
	engine := execution.Engine{Strategy: s, Policy: validate.DefaultPolicy()}

	out := engine.Run(context.Background(), execution.Request{Snippet: "2 + 2"})
	if out.Kind != execution.KindSuccess {
		t.Fatalf("kind %v", out.Kind)
	}
	if out.ElapsedMs < 10 {
		t.Fatalf("elapsed %dms, want >= 10", out.ElapsedMs)
	}
}

func TestEngineForwardsRequestToStrategy(t *testing.T) {
	s := fake.New(execution.Success(nil, "", ""))
	engine := execution.Engine{Strategy: s, Policy: validate.DefaultPolicy()}

	req := execution.Request{Snippet: "a", Variables: map[string]any{"a": 1}}
	engine.Run(context.Background(), req)
	if s.LastRequest.Snippet != "a" || s.LastRequest.Variables["a"] != 1 {
		t.Fatalf("request %+v", s.LastRequest)
	}
}

func TestEngineAttachesObservation(t *testing.T) {
	s := fake.New(execution.Success(nil, "", ""))
	s.Observation = &watch.Summary{Opens: 3}
	engine := execution.Engine{Strategy: s, Policy: validate.DefaultPolicy()}

	out := engine.Run(context.Background(), execution.Request{Snippet: "1"})
	if out.Observed == nil || out.Observed.Opens != 3 {
		t.Fatalf("observed %+v", out.Observed)
	}
}

func TestStrategyPanicBecomesInternalError(t *testing.T) {
	s := fake.New(execution.Outcome{})
	s.Panics = true
	engine := execution.Engine{Strategy: s, Policy: validate.DefaultPolicy()}

	out := engine.Run(context.Background(), execution.Request{Snippet: "2 + 2"})
	if out.Kind != execution.KindInternalError {
		t.Fatalf("kind %v", out.Kind)
	}
	if !strings.Contains(out.Message, "forced panic") {
		t.Fatalf("message %q", out.Message)
	}
}

func TestMissingStrategyIsInternalError(t *testing.T) {
	engine := execution.Engine{Policy: validate.DefaultPolicy()}
	out := engine.Run(context.Background(), execution.Request{Snippet: "2 + 2"})
	if out.Kind != execution.KindInternalError {
		t.Fatalf("kind %v", out.Kind)
	}
}

func TestProgressPhaseOrder(t *testing.T) {
	emitter := progress.NewEmitter()
	s := fake.New(execution.Success(int64(7), "", ""))
	engine := execution.Engine{Strategy: s, Policy: validate.DefaultPolicy(), Progress: emitter}

	out := engine.Run(context.Background(), execution.Request{
		Snippet:   "a + b",
		Variables: map[string]any{"a": 3, "b": 4},
	})
	if out.Kind != execution.KindSuccess {
		t.Fatalf("kind %v", out.Kind)
	}
	emitter.Close()

	var phases []progress.Phase
	for ev := range emitter.Events() {
		phases = append(phases, ev.Phase)
	}
	want := []progress.Phase{
		progress.PhaseValidating,
		progress.PhaseSettingUp,
		progress.PhasePreparingEnv,
		progress.PhaseLoadingContext,
		progress.PhaseExecuting,
		progress.PhaseProcessingResults,
		progress.PhaseCompleted,
	}
	if len(phases) != len(want) {
		t.Fatalf("phases %v, want %v", phases, want)
	}
	for i := range want {
		if phases[i] != want[i] {
			t.Fatalf("phase %d is %q, want %q", i, phases[i], want[i])
		}
	}
}

func TestFailedRunEmitsFailedPhase(t *testing.T) {
	emitter := progress.NewEmitter()
	s := fake.New(execution.RuntimeFailure("division by zero", "", ""))
	engine := execution.Engine{Strategy: s, Policy: validate.DefaultPolicy(), Progress: emitter}

	out := engine.Run(context.Background(), execution.Request{Snippet: "1 // 0"})
	if out.Kind != execution.KindRuntimeError {
		t.Fatalf("kind %v", out.Kind)
	}
	emitter.Close()

	var last progress.Event
	for ev := range emitter.Events() {
		last = ev
	}
	if last.Phase != progress.PhaseFailed {
		t.Fatalf("last phase %q", last.Phase)
	}
}
