// Package watch observes the isolated child's syscall activity (process
// spawning, file opens, connect attempts) through kernel tracepoints. It is
// diagnostics only: the security boundary is the resource limits and the
// restricted namespace, never this collector, and execution proceeds
// unchanged when the collector is unavailable.
package watch

import "context"

type EventType uint32

const (
	EventExec    EventType = 1
	EventOpen    EventType = 2
	EventConnect EventType = 3
)

// Event is one decoded tracepoint record.
type Event struct {
	Type       EventType
	PID        uint32
	PPID       uint32
	Flags      uint32
	Comm       string
	Path       string
	AddrFamily uint8
	Proto      uint8
	Addr       [16]byte
	Port       uint16
}

// Summary is the per-run aggregation attached to the outcome.
type Summary struct {
	Execs    int      `json:"execs"`
	Opens    int      `json:"opens"`
	Connects int      `json:"connects"`
	Paths    []string `json:"paths,omitempty"`
	Errors   []string `json:"errors,omitempty"`
}

// Config selects where compiled tracepoint objects live.
type Config struct {
	ObjectDir string
}

// Collector streams decoded events until closed.
type Collector interface {
	Start(ctx context.Context) error
	Events() <-chan Event
	Errors() <-chan error
	Close() error
}
