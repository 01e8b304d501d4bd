package dfu

import (
	"time"

	"github.com/pixfid/bootforge/usb"
)

// fakeDevice emulates a DFU-mode device's control-endpoint behavior. It
// reports DnBusy busyPerBlock times after each data block before settling
// into DnloadIdle, serves uploads from its image, and records every
// download payload it receives.
type fakeDevice struct {
	state        State
	status       Status
	busyPerBlock int
	busyLeft     int

	received [][]byte // DNLOAD payloads in arrival order
	image    []byte   // served by UPLOAD
	offset   int

	dnloadErr error // injected transport failure on DNLOAD
	requests  []uint8
}

func newFakeDevice() *fakeDevice {
	return &fakeDevice{state: Idle, status: StatusOK}
}

func (d *fakeDevice) ControlWrite(requestType, request uint8, value, index uint16, buf []byte, timeout time.Duration) (int, error) {
	d.requests = append(d.requests, request)
	switch request {
	case reqDnload:
		if d.dnloadErr != nil {
			return 0, d.dnloadErr
		}
		d.received = append(d.received, append([]byte(nil), buf...))
		if len(buf) > 0 {
			d.state = DnloadSync
			d.busyLeft = d.busyPerBlock
		} else {
			d.state = ManifestSync
		}
	case reqAbort:
		d.state = Idle
		d.status = StatusOK
	case reqClrStatus:
		d.state = Idle
		d.status = StatusOK
	case reqDetach:
		d.state = AppDetach
	}
	return len(buf), nil
}

func (d *fakeDevice) ControlRead(requestType, request uint8, value, index uint16, buf []byte, timeout time.Duration) (int, error) {
	d.requests = append(d.requests, request)
	switch request {
	case reqGetStatus:
		d.advance()
		buf[0] = byte(d.status)
		buf[1], buf[2], buf[3] = 1, 0, 0 // 1ms poll timeout
		buf[4] = byte(d.state)
		buf[5] = 0
		return 6, nil
	case reqGetState:
		buf[0] = byte(d.state)
		return 1, nil
	case reqUpload:
		d.state = UploadIdle
		n := copy(buf, d.image[d.offset:])
		d.offset += n
		return n, nil
	}
	return 0, usb.New(usb.KindTransport, "unexpected request")
}

// advance steps the emulated state machine the way real hardware does
// between status polls.
func (d *fakeDevice) advance() {
	switch d.state {
	case DnloadSync:
		if d.busyLeft > 0 {
			d.busyLeft--
			d.state = DnBusy
		} else {
			d.state = DnloadIdle
		}
	case DnBusy:
		if d.busyLeft > 0 {
			d.busyLeft--
		} else {
			d.state = DnloadIdle
		}
	case ManifestSync:
		d.state = Manifest
	case Manifest:
		d.state = Idle
	}
}

func (d *fakeDevice) BulkRead(endpoint uint8, buf []byte, timeout time.Duration) (int, error) {
	return 0, usb.New(usb.KindTransport, "no bulk endpoints")
}

func (d *fakeDevice) BulkWrite(endpoint uint8, buf []byte, timeout time.Duration) (int, error) {
	return 0, usb.New(usb.KindTransport, "no bulk endpoints")
}

func (d *fakeDevice) InterruptRead(endpoint uint8, buf []byte, timeout time.Duration) (int, error) {
	return 0, usb.New(usb.KindTransport, "no interrupt endpoints")
}

func (d *fakeDevice) InterruptWrite(endpoint uint8, buf []byte, timeout time.Duration) (int, error) {
	return 0, usb.New(usb.KindTransport, "no interrupt endpoints")
}
