// Package watch emits hotplug events by diffing repeated enumeration
// passes. Event ordering is best-effort; a device that reconnects between
// two passes shows up as a single Changed event at most.
package watch

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pixfid/bootforge/core/scanner"
	"github.com/pixfid/bootforge/data"
)

// Watcher is a hotplug event source. Start returns the event channel; the
// channel is closed after Stop once the current pass finishes.
type Watcher interface {
	Start() (<-chan data.DeviceEvent, error)
	Stop()
}

// DefaultInterval is the poll period used when none is configured.
const DefaultInterval = time.Second

// PollWatcher diffs scanner passes at a fixed interval. The first pass is
// the baseline and produces no events.
type PollWatcher struct {
	scanner  *scanner.Scanner
	interval time.Duration

	started  atomic.Bool
	stopOnce sync.Once
	stop     chan struct{}
	done     chan struct{}
}

func NewPollWatcher(s *scanner.Scanner, interval time.Duration) *PollWatcher {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &PollWatcher{
		scanner:  s,
		interval: interval,
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// Start takes the baseline snapshot and spawns the poll loop. The baseline
// scan error is the only hard failure; later scan errors skip that cycle.
func (w *PollWatcher) Start() (<-chan data.DeviceEvent, error) {
	w.started.Store(true)
	baseline, err := w.scanner.Scan()
	if err != nil {
		close(w.done)
		return nil, err
	}

	events := make(chan data.DeviceEvent, 16)
	go w.loop(snapshot(baseline), events)
	return events, nil
}

// Stop ends the poll loop and waits for it to drain. Safe to call more
// than once, and a no-op on a watcher that was never started.
func (w *PollWatcher) Stop() {
	w.stopOnce.Do(func() { close(w.stop) })
	if !w.started.Load() {
		return
	}
	<-w.done
}

func (w *PollWatcher) loop(previous map[string]data.DeviceRecord, events chan<- data.DeviceEvent) {
	defer close(w.done)
	defer close(events)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-w.stop:
			return
		case <-ticker.C:
		}

		records, err := w.scanner.Scan()
		if err != nil {
			continue
		}

		current := snapshot(records)
		for _, event := range diff(previous, current, records) {
			select {
			case events <- event:
			case <-w.stop:
				return
			}
		}
		previous = current
	}
}

// key identifies a device across passes: the stable port path when known,
// the transient bus address otherwise, always qualified by identity so a
// swap in the same port reads as remove+add.
func key(record *data.DeviceRecord) string {
	if record.Location.PortPath != "" {
		return fmt.Sprintf("%s@%s", record.ID, record.Location.PortPath)
	}
	return fmt.Sprintf("%s@%d:%d", record.ID, record.Location.Bus, record.Location.Address)
}

func snapshot(records []data.DeviceRecord) map[string]data.DeviceRecord {
	m := make(map[string]data.DeviceRecord, len(records))
	for i := range records {
		m[key(&records[i])] = records[i]
	}
	return m
}

// diff produces Added events in scan order, then Removed events for keys
// that disappeared, then Changed events for devices whose observable state
// moved.
func diff(previous, current map[string]data.DeviceRecord, ordered []data.DeviceRecord) []data.DeviceEvent {
	var events []data.DeviceEvent

	for i := range ordered {
		k := key(&ordered[i])
		old, seen := previous[k]
		if !seen {
			events = append(events, data.DeviceEvent{Type: data.DeviceAdded, Record: ordered[i]})
			continue
		}
		if changed(&old, &ordered[i]) {
			events = append(events, data.DeviceEvent{Type: data.DeviceChanged, Record: ordered[i]})
		}
	}

	for k, old := range previous {
		if _, still := current[k]; !still {
			events = append(events, data.DeviceEvent{Type: data.DeviceRemoved, Record: old})
		}
	}
	return events
}

// changed compares the fields a device can plausibly mutate in place: its
// driver binding, its reported strings, and its address after a re-reset.
func changed(old, new *data.DeviceRecord) bool {
	if old.Location.Address != new.Location.Address {
		return true
	}
	if old.Driver.State != new.Driver.State || old.Driver.Name != new.Driver.Name {
		return true
	}
	return old.Descriptor.Product != new.Descriptor.Product ||
		old.Descriptor.SerialNumber != new.Descriptor.SerialNumber
}
