// Package deadline arms a single wall-clock deadline around one execution.
// The deadline is armed immediately before snippet code runs and disarmed on
// every exit path; validator rejections never arm it. Expiry is recorded so
// the engine can classify the abort as a timeout rather than a crash.
package deadline

import (
	"sync"
	"time"
)

// Supervisor guards one execution. The zero value is ready to use.
type Supervisor struct {
	mu      sync.Mutex
	timer   *time.Timer
	expired bool
}

func New() *Supervisor {
	return &Supervisor{}
}

// Arm starts the deadline and returns its disarm function. On expiry the
// abort callback runs once, on the timer goroutine. A non-positive duration
// means no deadline: abort never fires and the returned disarm is a no-op.
// Disarm is idempotent and safe to call after expiry.
func (s *Supervisor) Arm(d time.Duration, abort func()) (disarm func()) {
	if d <= 0 {
		return func() {}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	timer := time.AfterFunc(d, func() {
		s.mu.Lock()
		s.expired = true
		s.mu.Unlock()
		if abort != nil {
			abort()
		}
	})
	s.timer = timer
	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		timer.Stop()
		if s.timer == timer {
			s.timer = nil
		}
	}
}

// Disarm stops any armed deadline. The engine calls it unconditionally on the
// way out, so no timer outlives the request even when a strategy faults.
func (s *Supervisor) Disarm() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
}

// Expired reports whether the deadline fired.
func (s *Supervisor) Expired() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.expired
}
