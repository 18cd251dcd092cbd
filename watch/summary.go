package watch

const maxRecordedPaths = 32

// Aggregator folds collector events for one child process tree into a
// Summary. Descendant processes are tracked through exec events' parent
// PIDs, so a partial escape that manages to fork still shows up.
type Aggregator struct {
	pids map[uint32]bool
	sum  Summary
}

func NewAggregator(rootPID uint32) *Aggregator {
	return &Aggregator{pids: map[uint32]bool{rootPID: true}}
}

func (a *Aggregator) HandleEvent(ev Event) {
	if a.pids[ev.PPID] {
		a.pids[ev.PID] = true
	}
	if !a.pids[ev.PID] {
		return
	}
	switch ev.Type {
	case EventExec:
		a.sum.Execs++
		a.recordPath(ev.Path)
	case EventOpen:
		a.sum.Opens++
		a.recordPath(ev.Path)
	case EventConnect:
		a.sum.Connects++
	}
}

func (a *Aggregator) RecordError(msg string) {
	a.sum.Errors = append(a.sum.Errors, msg)
}

// Summary returns the aggregation, or nil when nothing was observed.
func (a *Aggregator) Summary() *Summary {
	if a.sum.Execs == 0 && a.sum.Opens == 0 && a.sum.Connects == 0 && len(a.sum.Errors) == 0 {
		return nil
	}
	out := a.sum
	return &out
}

func (a *Aggregator) recordPath(path string) {
	if path == "" || len(a.sum.Paths) >= maxRecordedPaths {
		return
	}
	a.sum.Paths = append(a.sum.Paths, path)
}
