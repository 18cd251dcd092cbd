//go:build linux

package watch

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/cilium/ebpf"
	"github.com/cilium/ebpf/link"
	"github.com/cilium/ebpf/ringbuf"
)

const (
	defaultObjectDir = "ebpf/objects"
	eventSize        = 308
)

type tracepointCollector struct {
	mu      sync.Mutex
	started bool
	events  chan Event
	errs    chan error
	readers []*ringbuf.Reader
	links   []link.Link
	objs    []*ebpf.Collection
	wg      sync.WaitGroup
	closed  chan struct{}
}

// tracepoints maps each object file to the programs it attaches.
var tracepoints = map[string][]struct{ prog, category, name string }{
	"exec.o": {
		{"trace_execve", "syscalls", "sys_enter_execve"},
		{"trace_execveat", "syscalls", "sys_enter_execveat"},
	},
	"fs.o": {
		{"trace_openat", "syscalls", "sys_enter_openat"},
		{"trace_open", "syscalls", "sys_enter_open"},
	},
	"net.o": {
		{"trace_connect", "syscalls", "sys_enter_connect"},
		{"trace_socket_enter", "syscalls", "sys_enter_socket"},
	},
}

// NewCollector loads the compiled tracepoint objects. A missing or partially
// loadable object set is not fatal to the caller: whatever loaded still
// streams, and a fully empty set returns an error the strategy downgrades to
// a diagnostic.
func NewCollector(cfg Config) (Collector, error) {
	dir := cfg.ObjectDir
	if dir == "" {
		if env := os.Getenv("CRUCIBLE_BPF_DIR"); env != "" {
			dir = env
		} else {
			dir = defaultObjectDir
		}
	}

	c := &tracepointCollector{
		events: make(chan Event, 1024),
		errs:   make(chan error, 16),
		closed: make(chan struct{}),
	}

	loaded := 0
	for name := range tracepoints {
		path := filepath.Join(dir, name)
		if _, err := os.Stat(path); err != nil {
			continue
		}
		if err := c.loadObject(path); err != nil {
			select {
			case c.errs <- err:
			default:
			}
			continue
		}
		loaded++
	}
	if loaded == 0 {
		return nil, fmt.Errorf("no tracepoint objects found in %s", dir)
	}
	return c, nil
}

func (c *tracepointCollector) loadObject(path string) error {
	spec, err := ebpf.LoadCollectionSpec(path)
	if err != nil {
		return fmt.Errorf("load spec %s: %w", path, err)
	}
	coll, err := ebpf.NewCollection(spec)
	if err != nil {
		return fmt.Errorf("load collection %s: %w", path, err)
	}

	eventsMap := coll.Maps["events"]
	if eventsMap == nil {
		coll.Close()
		return fmt.Errorf("%s: no events map", path)
	}
	reader, err := ringbuf.NewReader(eventsMap)
	if err != nil {
		coll.Close()
		return fmt.Errorf("open ringbuf %s: %w", path, err)
	}

	var links []link.Link
	for _, tp := range tracepoints[filepath.Base(path)] {
		prog := coll.Programs[tp.prog]
		if prog == nil {
			continue
		}
		l, err := link.Tracepoint(tp.category, tp.name, prog, nil)
		if err != nil {
			for _, prev := range links {
				_ = prev.Close()
			}
			_ = reader.Close()
			coll.Close()
			return fmt.Errorf("attach %s/%s: %w", tp.category, tp.name, err)
		}
		links = append(links, l)
	}

	c.objs = append(c.objs, coll)
	c.readers = append(c.readers, reader)
	c.links = append(c.links, links...)
	return nil
}

func (c *tracepointCollector) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.started {
		return nil
	}
	c.started = true
	for _, reader := range c.readers {
		c.wg.Add(1)
		go c.readLoop(ctx, reader)
	}
	return nil
}

func (c *tracepointCollector) Events() <-chan Event { return c.events }
func (c *tracepointCollector) Errors() <-chan error { return c.errs }

func (c *tracepointCollector) Close() error {
	c.mu.Lock()
	if !c.started {
		c.started = true // prevent a later Start from spawning readers
	}
	c.mu.Unlock()

	select {
	case <-c.closed:
		return nil
	default:
	}
	close(c.closed)
	for _, reader := range c.readers {
		_ = reader.Close()
	}
	c.wg.Wait()
	for _, l := range c.links {
		_ = l.Close()
	}
	for _, obj := range c.objs {
		obj.Close()
	}
	close(c.events)
	close(c.errs)
	return nil
}

func (c *tracepointCollector) readLoop(ctx context.Context, reader *ringbuf.Reader) {
	defer c.wg.Done()
	for {
		record, err := reader.Read()
		if err != nil {
			if errors.Is(err, ringbuf.ErrClosed) {
				return
			}
			select {
			case c.errs <- err:
			case <-c.closed:
			}
			continue
		}
		ev, err := parseEvent(record.RawSample)
		if err != nil {
			select {
			case c.errs <- err:
			case <-c.closed:
			}
			continue
		}
		select {
		case c.events <- ev:
		case <-c.closed:
			return
		case <-ctx.Done():
			return
		}
	}
}

func parseEvent(data []byte) (Event, error) {
	if len(data) < eventSize {
		return Event{}, fmt.Errorf("short event: %d bytes", len(data))
	}
	ev := Event{}
	ev.Type = EventType(binary.LittleEndian.Uint32(data[0:4]))
	ev.PID = binary.LittleEndian.Uint32(data[4:8])
	ev.PPID = binary.LittleEndian.Uint32(data[8:12])
	ev.Flags = binary.LittleEndian.Uint32(data[12:16])
	ev.Port = binary.LittleEndian.Uint16(data[16:18])
	ev.AddrFamily = data[18]
	ev.Proto = data[19]
	copy(ev.Addr[:], data[20:36])
	ev.Comm = trimNull(data[36:52])
	ev.Path = trimNull(data[52:308])
	return ev, nil
}

func trimNull(b []byte) string {
	idx := bytes.IndexByte(b, 0)
	if idx == -1 {
		idx = len(b)
	}
	return string(b[:idx])
}
