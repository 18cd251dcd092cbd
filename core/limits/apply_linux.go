//go:build linux

package limits

import (
	"fmt"

	"golang.org/x/sys/unix"
)

// Apply installs the ceilings on the calling process via setrlimit. The
// isolated worker calls this before any snippet code is interpreted; once
// installed the ceilings cannot be raised again without privilege.
//
// The memory ceiling uses RLIMIT_DATA, which since Linux 4.7 counts brk plus
// writable private anonymous mappings. RLIMIT_AS would charge the runtime's
// PROT_NONE heap arena reservations against the ceiling, so the enforced
// budget would bear no relation to what the snippet actually allocates;
// RLIMIT_DATA charges only pages the process can write.
func Apply(l Limits) error {
	if l.MaxMemoryBytes > 0 {
		if err := setrlimit(unix.RLIMIT_DATA, uint64(l.MaxMemoryBytes)); err != nil {
			return fmt.Errorf("data segment limit: %w", err)
		}
	}
	if l.MaxCPUSeconds > 0 {
		if err := setrlimit(unix.RLIMIT_CPU, uint64(l.MaxCPUSeconds)); err != nil {
			return fmt.Errorf("cpu time limit: %w", err)
		}
	}
	if l.MaxProcesses > 0 {
		if err := setrlimit(unix.RLIMIT_NPROC, uint64(l.MaxProcesses)); err != nil {
			return fmt.Errorf("process count limit: %w", err)
		}
	}
	// RLIMIT_FSIZE is always installed: the isolated profile forbids writes
	// with a hard zero ceiling rather than leaving the limit absent.
	if err := setrlimit(unix.RLIMIT_FSIZE, uint64(l.MaxFileBytes)); err != nil {
		return fmt.Errorf("file size limit: %w", err)
	}
	return nil
}

func setrlimit(resource int, value uint64) error {
	rl := unix.Rlimit{Cur: value, Max: value}
	return unix.Setrlimit(resource, &rl)
}
