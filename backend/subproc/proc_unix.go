//go:build unix

package subproc

import (
	"errors"
	"os/exec"
	"syscall"

	"crucible/core/limits"
)

// setProcessGroup gives the worker its own process group so the overrun kill
// reaps every descendant, not just the direct child.
func setProcessGroup(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
}

func killProcessGroup(pid int) {
	_ = syscall.Kill(-pid, syscall.SIGKILL)
}

// limitSignal maps a kernel limit signal on the dead worker to the ceiling it
// enforces.
func limitSignal(waitErr error) (limits.Kind, bool) {
	var exitErr *exec.ExitError
	if !errors.As(waitErr, &exitErr) {
		return "", false
	}
	status, ok := exitErr.Sys().(syscall.WaitStatus)
	if !ok || !status.Signaled() {
		return "", false
	}
	switch status.Signal() {
	case syscall.SIGXCPU:
		return limits.KindCPU, true
	case syscall.SIGXFSZ:
		return limits.KindFile, true
	case syscall.SIGKILL:
		// The padded-deadline kill is classified by the supervisor before
		// this point, so a KILL here is the kernel's out-of-memory reaper.
		return limits.KindMemory, true
	}
	return "", false
}
