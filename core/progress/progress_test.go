package progress

import "testing"

func TestEmitPreservesOrder(t *testing.T) {
	e := NewEmitter()
	e.Emit(PhaseValidating, 10, "validating code security")
	e.Emit(PhaseExecuting, 50, "executing code")
	e.Emit(PhaseCompleted, 100, "done")
	e.Close()

	var phases []Phase
	for ev := range e.Events() {
		phases = append(phases, ev.Phase)
	}
	want := []Phase{PhaseValidating, PhaseExecuting, PhaseCompleted}
	if len(phases) != len(want) {
		t.Fatalf("got %d events, want %d", len(phases), len(want))
	}
	for i := range want {
		if phases[i] != want[i] {
			t.Fatalf("event %d is %q, want %q", i, phases[i], want[i])
		}
	}
}

func TestEmitNeverBlocks(t *testing.T) {
	e := NewEmitter()
	// No consumer; far more events than the buffer holds.
	for i := 0; i < 1000; i++ {
		e.Emit(PhaseExecuting, 50, "still running")
	}
	e.Close()
}

func TestEmitAfterCloseIsNoop(t *testing.T) {
	e := NewEmitter()
	e.Close()
	e.Emit(PhaseCompleted, 100, "late")
	e.EmitStatus("completed", "late", nil)
}

func TestNilEmitterIsSafe(t *testing.T) {
	var e *Emitter
	e.Emit(PhaseValidating, 10, "x")
	e.EmitStatus("failed", "x", nil)
	e.Close()
	if e.Events() != nil || e.Statuses() != nil {
		t.Fatal("nil emitter should expose nil channels")
	}
}

func TestStatusDetails(t *testing.T) {
	e := NewEmitter()
	e.EmitStatus("completed", "execution finished", map[string]any{"execution_time": 12.5})
	e.Close()
	st, ok := <-e.Statuses()
	if !ok {
		t.Fatal("expected a status")
	}
	if st.Status != "completed" {
		t.Fatalf("status %q", st.Status)
	}
	if st.Details["execution_time"] != 12.5 {
		t.Fatalf("details %v", st.Details)
	}
}
