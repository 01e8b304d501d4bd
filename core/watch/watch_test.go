package watch

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pixfid/bootforge/core/scanner"
	"github.com/pixfid/bootforge/data"
	"github.com/pixfid/bootforge/usb"
)

type stubDevice struct {
	desc scanner.Descriptor
	loc  data.DeviceLocation
}

func (d *stubDevice) Location() data.DeviceLocation { return d.loc }

func (d *stubDevice) Descriptor() (scanner.Descriptor, error) { return d.desc, nil }

func (d *stubDevice) Open() (scanner.StringReader, error) {
	return nil, usb.New(usb.KindPermission, "open denied")
}

// mutableTransport lets a test swap the attached device set between scan
// passes.
type mutableTransport struct {
	mu      sync.Mutex
	devices []scanner.Device
	err     error
}

func (t *mutableTransport) Devices() ([]scanner.Device, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.devices, t.err
}

func (t *mutableTransport) set(devices []scanner.Device, err error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.devices = devices
	t.err = err
}

func pixel() *stubDevice {
	return &stubDevice{
		desc: scanner.Descriptor{VendorID: 0x18d1, ProductID: 0x4ee2},
		loc:  data.DeviceLocation{Bus: 1, Address: 5, PortPath: "1-2"},
	}
}

func waitEvent(t *testing.T, events <-chan data.DeviceEvent) data.DeviceEvent {
	t.Helper()
	select {
	case event, ok := <-events:
		require.True(t, ok, "event channel closed early")
		return event
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for event")
		return data.DeviceEvent{}
	}
}

func TestWatcherEmitsAddedAndRemoved(t *testing.T) {
	transport := &mutableTransport{}
	watcher := NewPollWatcher(scanner.New(transport), 5*time.Millisecond)

	events, err := watcher.Start()
	require.NoError(t, err)
	defer watcher.Stop()

	transport.set([]scanner.Device{pixel()}, nil)
	added := waitEvent(t, events)
	assert.Equal(t, data.DeviceAdded, added.Type)
	assert.Equal(t, "18d1:4ee2", added.Record.ID.String())

	transport.set(nil, nil)
	removed := waitEvent(t, events)
	assert.Equal(t, data.DeviceRemoved, removed.Type)
	assert.Equal(t, "18d1:4ee2", removed.Record.ID.String())
}

func TestWatcherBaselineProducesNoEvents(t *testing.T) {
	transport := &mutableTransport{devices: []scanner.Device{pixel()}}
	watcher := NewPollWatcher(scanner.New(transport), 5*time.Millisecond)

	events, err := watcher.Start()
	require.NoError(t, err)

	select {
	case event := <-events:
		t.Fatalf("unexpected event for pre-existing device: %v", event.Type)
	case <-time.After(50 * time.Millisecond):
	}
	watcher.Stop()
}

func TestWatcherEmitsChangedOnAddressMove(t *testing.T) {
	device := pixel()
	transport := &mutableTransport{devices: []scanner.Device{device}}
	watcher := NewPollWatcher(scanner.New(transport), 5*time.Millisecond)

	events, err := watcher.Start()
	require.NoError(t, err)
	defer watcher.Stop()

	moved := pixel()
	moved.loc.Address = 9
	transport.set([]scanner.Device{moved}, nil)

	event := waitEvent(t, events)
	assert.Equal(t, data.DeviceChanged, event.Type)
	assert.Equal(t, 9, event.Record.Location.Address)
}

func TestWatcherSkipsFailedPass(t *testing.T) {
	transport := &mutableTransport{devices: []scanner.Device{pixel()}}
	watcher := NewPollWatcher(scanner.New(transport), 5*time.Millisecond)

	events, err := watcher.Start()
	require.NoError(t, err)
	defer watcher.Stop()

	// A transport outage must not synthesize Removed events.
	transport.set(nil, usb.New(usb.KindPlatform, "usb stack gone"))
	select {
	case event := <-events:
		t.Fatalf("unexpected event during outage: %v", event.Type)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestWatcherStartFailsOnBaselineError(t *testing.T) {
	transport := &mutableTransport{err: usb.New(usb.KindPlatform, "no usb stack")}
	watcher := NewPollWatcher(scanner.New(transport), 5*time.Millisecond)

	_, err := watcher.Start()
	require.Error(t, err)
}

func TestWatcherStopBeforeStartReturns(t *testing.T) {
	watcher := NewPollWatcher(scanner.New(&mutableTransport{}), 5*time.Millisecond)

	done := make(chan struct{})
	go func() {
		watcher.Stop()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Stop blocked on a watcher that was never started")
	}
}

func TestWatcherStopClosesChannel(t *testing.T) {
	transport := &mutableTransport{}
	watcher := NewPollWatcher(scanner.New(transport), 5*time.Millisecond)

	events, err := watcher.Start()
	require.NoError(t, err)

	watcher.Stop()
	watcher.Stop() // idempotent

	_, ok := <-events
	assert.False(t, ok)
}
