package limits

import (
	"fmt"
	"time"
)

// Limits are the per-deployment resource ceilings for one execution. They are
// fixed by the profile at engine construction and never caller-overridable.
// A zero field means the corresponding ceiling is not installed.
type Limits struct {
	// MaxMemoryBytes caps the writable heap memory of the executing process.
	MaxMemoryBytes int64 `yaml:"max_memory_bytes" json:"max_memory_bytes"`
	// MaxCPUSeconds caps consumed CPU time, independent of the wall clock.
	MaxCPUSeconds int `yaml:"max_cpu_seconds" json:"max_cpu_seconds"`
	// MaxWallSeconds is the wall-clock deadline for the whole run.
	MaxWallSeconds int `yaml:"max_wall_seconds" json:"max_wall_seconds"`
	// MaxProcesses caps the process count, blocking subprocess spawning even
	// under a partial sandbox escape.
	MaxProcesses int `yaml:"max_processes" json:"max_processes"`
	// MaxFileBytes caps the size of any file the process may write. The
	// isolated strategy runs with a zero ceiling installed explicitly,
	// forbidding writes outright.
	MaxFileBytes int64 `yaml:"max_file_bytes" json:"max_file_bytes"`
}

// Defaults mirrors the baseline sandbox profile: 64MB of heap, 10s of CPU,
// 15s of wall clock, a single process, and no file writes.
func Defaults() Limits {
	return Limits{
		MaxMemoryBytes: 64 * 1024 * 1024,
		MaxCPUSeconds:  10,
		MaxWallSeconds: 15,
		MaxProcesses:   1,
		MaxFileBytes:   0,
	}
}

// Wall returns the wall-clock ceiling as a duration, or zero when unbounded.
func (l Limits) Wall() time.Duration {
	return time.Duration(l.MaxWallSeconds) * time.Second
}

// Validate ensures the ceilings are usable.
func (l Limits) Validate() error {
	if l.MaxMemoryBytes < 0 {
		return fmt.Errorf("max memory must be >= 0")
	}
	if l.MaxCPUSeconds < 0 || l.MaxWallSeconds < 0 {
		return fmt.Errorf("time ceilings must be >= 0")
	}
	if l.MaxProcesses < 0 {
		return fmt.Errorf("max processes must be >= 0")
	}
	if l.MaxFileBytes < 0 {
		return fmt.Errorf("max file size must be >= 0")
	}
	if l.MaxCPUSeconds > 0 && l.MaxWallSeconds > 0 && l.MaxCPUSeconds > l.MaxWallSeconds {
		return fmt.Errorf("cpu ceiling %ds exceeds wall ceiling %ds", l.MaxCPUSeconds, l.MaxWallSeconds)
	}
	return nil
}

// Kind names the ceiling that was exceeded, for outcome classification.
type Kind string

const (
	KindMemory  Kind = "memory"
	KindCPU     Kind = "cpu"
	KindProcess Kind = "process"
	KindFile    Kind = "file"
)
