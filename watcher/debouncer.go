package watcher

import (
	"sort"
	"sync"
	"time"
)

// BatchDebouncer collects paths and hands them to a callback once no new path
// has arrived for the configured delay.
type BatchDebouncer struct {
	delay    time.Duration
	callback func(paths []string)

	mu      sync.Mutex
	timer   *time.Timer
	pending map[string]struct{}
	stopped bool
	running sync.WaitGroup
}

// NewBatchDebouncer creates a debouncer that calls callback with sorted, unique paths.
func NewBatchDebouncer(delay time.Duration, callback func(paths []string)) *BatchDebouncer {
	return &BatchDebouncer{
		delay:    delay,
		callback: callback,
		pending:  make(map[string]struct{}),
	}
}

// Add records path and restarts the quiet period.
func (d *BatchDebouncer) Add(path string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.stopped {
		return
	}
	d.pending[path] = struct{}{}

	if d.timer != nil {
		d.timer.Stop()
	}
	d.timer = time.AfterFunc(d.delay, d.fire)
}

func (d *BatchDebouncer) fire() {
	d.mu.Lock()
	if d.stopped || len(d.pending) == 0 {
		d.mu.Unlock()
		return
	}
	paths := make([]string, 0, len(d.pending))
	for path := range d.pending {
		paths = append(paths, path)
	}
	d.pending = make(map[string]struct{})
	d.timer = nil
	d.running.Add(1)
	d.mu.Unlock()

	defer d.running.Done()
	sort.Strings(paths)
	d.callback(paths)
}

// Stop drops pending paths and waits for a running callback to return.
func (d *BatchDebouncer) Stop() {
	d.mu.Lock()
	d.stopped = true
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
	d.pending = make(map[string]struct{})
	d.mu.Unlock()

	d.running.Wait()
}
