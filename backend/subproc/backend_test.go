package subproc

import (
	"context"
	"errors"
	"os"
	"strings"
	"testing"
	"time"

	"crucible/core/deadline"
	"crucible/core/execution"
	"crucible/core/limits"
)

// TestMain lets the re-executed test binary serve as the worker, the same
// dispatch the production binary performs in its main.
func TestMain(m *testing.M) {
	if len(os.Args) > 1 && os.Args[1] == WorkerMode {
		os.Exit(RunWorker(os.Stdin, os.Stdout, os.Stderr))
	}
	os.Exit(m.Run())
}

func TestDecodeResultRoundTrip(t *testing.T) {
	res := resultFromOutcome(execution.Success(int64(4), "hi\n", ""))
	raw := []byte(`{"kind":"success","value":4,"stdout":"hi\n"}`)
	out, ok := decodeResult(raw)
	if !ok {
		t.Fatal("decode failed")
	}
	if out.Kind != execution.KindSuccess || out.Value != int64(4) || out.Stdout != "hi\n" {
		t.Fatalf("outcome %+v (from %+v)", out, res)
	}
}

func TestDecodeResultPreservesFloats(t *testing.T) {
	out, ok := decodeResult([]byte(`{"kind":"success","value":2.5}`))
	if !ok || out.Value != float64(2.5) {
		t.Fatalf("ok=%v value=%v", ok, out.Value)
	}
}

func TestDecodeResultNormalizesNested(t *testing.T) {
	out, ok := decodeResult([]byte(`{"kind":"success","value":{"n":3,"xs":[1,2]}}`))
	if !ok {
		t.Fatal("decode failed")
	}
	m := out.Value.(map[string]any)
	if m["n"] != int64(3) {
		t.Fatalf("n = %v (%T)", m["n"], m["n"])
	}
	xs := m["xs"].([]any)
	if xs[0] != int64(1) || xs[1] != int64(2) {
		t.Fatalf("xs = %v", xs)
	}
}

func TestDecodeResultRejectsGarbage(t *testing.T) {
	for _, raw := range []string{"", "   ", "not json", `{"kind":"martian"}`} {
		if _, ok := decodeResult([]byte(raw)); ok {
			t.Fatalf("decoded %q", raw)
		}
	}
}

func TestClassifyDeathExpiredDeadlineWins(t *testing.T) {
	b := New(Options{Limits: limits.Limits{MaxWallSeconds: 15}})
	sup := deadline.New()
	sup.Arm(time.Millisecond, func() {})
	time.Sleep(50 * time.Millisecond)
	if !sup.Expired() {
		t.Fatal("supervisor should have expired")
	}

	out := b.classifyDeath(errors.New("signal: killed"), sup, "")
	if out.Kind != execution.KindTimedOut {
		t.Fatalf("kind %v", out.Kind)
	}
	if !strings.Contains(out.Message, "timed out (15 seconds)") {
		t.Fatalf("message %q", out.Message)
	}
}

func TestClassifyDeathRuntimeOOM(t *testing.T) {
	b := New(Options{})
	sup := deadline.New()
	out := b.classifyDeath(errors.New("exit status 2"), sup, "runtime: out of memory\n\ngoroutine 1 [running]:")
	if out.Kind != execution.KindResourceExceeded || out.Limit != limits.KindMemory {
		t.Fatalf("outcome %+v", out)
	}
}

func TestClassifyDeathUnexplained(t *testing.T) {
	b := New(Options{})
	sup := deadline.New()
	out := b.classifyDeath(errors.New("exit status 3"), sup, "something odd\nmore lines")
	if out.Kind != execution.KindInternalError {
		t.Fatalf("kind %v", out.Kind)
	}
	if !strings.Contains(out.Message, "something odd") || strings.Contains(out.Message, "more lines") {
		t.Fatalf("message %q", out.Message)
	}
}

func TestSpawnFailureIsInternalError(t *testing.T) {
	b := New(Options{WorkerPath: "/nonexistent/worker-binary"})
	sup := deadline.New()
	defer sup.Disarm()
	out := b.Run(context.Background(), execution.Request{Snippet: "1"}, sup)
	if out.Kind != execution.KindInternalError {
		t.Fatalf("kind %v: %s", out.Kind, out.Message)
	}
}

func TestFirstLine(t *testing.T) {
	if got := firstLine("  a\nb\n"); got != "a" {
		t.Fatalf("got %q", got)
	}
	if got := firstLine("\n\n"); got != "(empty)" {
		t.Fatalf("got %q", got)
	}
}
