// Package subproc runs each snippet in a spawned copy of the host binary
// operating in worker mode: empty environment, throwaway working directory,
// its own process group, and kernel resource ceilings installed before any
// snippet code is interpreted. The parent supervises with a padded deadline
// and classifies worker death by exit status when no result comes back.
package subproc

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"crucible/core/deadline"
	"crucible/core/execution"
	"crucible/core/limits"
	"crucible/watch"
)

// defaultGraceSeconds pads the parent's deadline past the worker's own wall
// ceiling, giving the worker the chance to report its own timeout before the
// process group is killed.
const defaultGraceSeconds = 5

type Options struct {
	Limits       limits.Limits
	GraceSeconds int

	// WorkerPath overrides the spawned executable; empty means the current
	// binary re-executed in worker mode.
	WorkerPath string

	// Watch attaches the syscall collector to the worker's process tree.
	// Diagnostics only; never the enforcement boundary.
	Watch          bool
	WatchObjectDir string
}

type Backend struct {
	opts     Options
	state    *os.ProcessState
	observed *watch.Summary
}

func New(opts Options) *Backend { return &Backend{opts: opts} }

func (b *Backend) Name() string      { return "subproc" }
func (b *Backend) Isolation() string { return "process" }

func (b *Backend) Observed() *watch.Summary       { return b.observed }
func (b *Backend) ProcessState() *os.ProcessState { return b.state }

func (b *Backend) Run(ctx context.Context, req execution.Request, sup *deadline.Supervisor) execution.Outcome {
	b.state, b.observed = nil, nil

	exe := b.opts.WorkerPath
	if exe == "" {
		path, err := os.Executable()
		if err != nil {
			return execution.Internal(fmt.Errorf("locate worker executable: %w", err))
		}
		exe = path
	}

	workDir := filepath.Join(os.TempDir(), "sandbox_"+uuid.NewString())
	if err := os.Mkdir(workDir, 0o700); err != nil {
		return execution.Internal(fmt.Errorf("create sandbox dir: %w", err))
	}
	defer os.RemoveAll(workDir)

	payload, err := json.Marshal(workerRequest{
		Snippet:   req.Snippet,
		Variables: req.Variables,
		Data:      req.Data,
		Limits:    b.opts.Limits,
	})
	if err != nil {
		return execution.Internal(fmt.Errorf("encode worker request: %w", err))
	}

	cmd := exec.CommandContext(ctx, exe, WorkerMode)
	cmd.Dir = workDir
	cmd.Env = []string{} // nothing from the host environment leaks in
	cmd.Stdin = bytes.NewReader(payload)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	setProcessGroup(cmd)

	if err := cmd.Start(); err != nil {
		return execution.Internal(fmt.Errorf("spawn worker: %w", err))
	}
	pid := cmd.Process.Pid

	agg, stopWatch := b.startWatch(ctx, pid)

	grace := b.opts.GraceSeconds
	if grace <= 0 {
		grace = defaultGraceSeconds
	}
	var parentCeiling time.Duration
	if wall := b.opts.Limits.Wall(); wall > 0 {
		parentCeiling = wall + time.Duration(grace)*time.Second
	}
	disarm := sup.Arm(parentCeiling, func() {
		killProcessGroup(pid)
	})
	waitErr := cmd.Wait()
	disarm()
	// No survivors: the group dies even after a clean exit.
	killProcessGroup(pid)

	stopWatch()
	if agg != nil {
		b.observed = agg.Summary()
	}
	b.state = cmd.ProcessState

	if out, ok := decodeResult(stdout.Bytes()); ok {
		return out
	}
	return b.classifyDeath(waitErr, sup, stderr.String())
}

// startWatch attaches the syscall collector to the worker's tree. Collector
// failures degrade to a diagnostic note on the summary; they never fail the
// run.
func (b *Backend) startWatch(ctx context.Context, pid int) (*watch.Aggregator, func()) {
	if !b.opts.Watch {
		return nil, func() {}
	}
	agg := watch.NewAggregator(uint32(pid))
	col, err := watch.NewCollector(watch.Config{ObjectDir: b.opts.WatchObjectDir})
	if err != nil {
		agg.RecordError(fmt.Sprintf("collector unavailable: %v", err))
		return agg, func() {}
	}
	if err := col.Start(ctx); err != nil {
		agg.RecordError(fmt.Sprintf("collector start: %v", err))
		_ = col.Close()
		return agg, func() {}
	}
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			select {
			case ev, ok := <-col.Events():
				if !ok {
					return
				}
				agg.HandleEvent(ev)
			case err, ok := <-col.Errors():
				if ok {
					agg.RecordError(err.Error())
				}
			}
		}
	}()
	return agg, func() {
		_ = col.Close()
		<-done
	}
}

// classifyDeath maps a worker that died without reporting onto the outcome
// taxonomy. The parent's padded deadline wins, then the kernel's limit
// signals, then the runtime's own out-of-memory abort on stderr.
func (b *Backend) classifyDeath(waitErr error, sup *deadline.Supervisor, stderr string) execution.Outcome {
	if sup.Expired() {
		return execution.TimedOut(b.opts.Limits.MaxWallSeconds)
	}
	if kind, ok := limitSignal(waitErr); ok {
		return execution.ResourceExceeded(kind)
	}
	if oomStderr(stderr) {
		return execution.ResourceExceeded(limits.KindMemory)
	}
	if waitErr == nil {
		return execution.Internal(errors.New("worker exited without a result"))
	}
	return execution.Internal(fmt.Errorf("worker died: %v; stderr: %s", waitErr, firstLine(stderr)))
}

func oomStderr(s string) bool {
	return strings.Contains(s, "out of memory") ||
		strings.Contains(s, "cannot allocate memory") ||
		strings.Contains(s, "exceeds memory limit")
}

func firstLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[:i]
	}
	if s == "" {
		return "(empty)"
	}
	return s
}

var (
	_ execution.Strategy             = (*Backend)(nil)
	_ execution.ObservationProvider  = (*Backend)(nil)
	_ execution.ProcessStateProvider = (*Backend)(nil)
)
