//go:build !unix

package subproc

import (
	"os/exec"

	"crucible/core/limits"
)

func setProcessGroup(cmd *exec.Cmd) {}

func killProcessGroup(pid int) {}

func limitSignal(waitErr error) (limits.Kind, bool) { return "", false }
