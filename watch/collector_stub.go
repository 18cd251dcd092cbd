//go:build !linux

package watch

import "fmt"

func NewCollector(cfg Config) (Collector, error) {
	return nil, fmt.Errorf("syscall watch is only supported on Linux")
}
