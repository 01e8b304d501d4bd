package transfer

import (
	"context"
	"time"

	"github.com/pixfid/bootforge/usb"
)

// Interrupt performs single interrupt transfers. Unlike bulk there is no
// implicit retry; callers retry manually if they want to.
type Interrupt struct {
	handle  usb.DeviceHandle
	timeout time.Duration
}

func NewInterrupt(handle usb.DeviceHandle) *Interrupt {
	return &Interrupt{handle: handle, timeout: DefaultTimeout}
}

func (i *Interrupt) WithTimeout(timeout time.Duration) *Interrupt {
	i.timeout = timeout
	return i
}

func (i *Interrupt) Read(endpoint uint8, buf []byte) (int, error) {
	return i.handle.InterruptRead(usb.EndpointIn(endpoint), buf, i.timeout)
}

func (i *Interrupt) Write(endpoint uint8, buf []byte) (int, error) {
	return i.handle.InterruptWrite(usb.EndpointOut(endpoint), buf, i.timeout)
}

// TryRead polls the endpoint with a 1ms timeout and reports only success.
func (i *Interrupt) TryRead(endpoint uint8, buf []byte) (int, bool) {
	n, err := i.handle.InterruptRead(usb.EndpointIn(endpoint), buf, time.Millisecond)
	if err != nil {
		return 0, false
	}
	return n, true
}

// Poller continuously reads an interrupt IN endpoint and hands each chunk
// to a callback.
type Poller struct {
	endpoint   uint8
	bufferSize int
	interval   time.Duration
}

func NewPoller(endpoint uint8, bufferSize int) *Poller {
	return &Poller{
		endpoint:   usb.EndpointIn(endpoint),
		bufferSize: bufferSize,
		interval:   10 * time.Millisecond,
	}
}

func (p *Poller) WithInterval(interval time.Duration) *Poller {
	p.interval = interval
	return p
}

// Poll blocks, invoking callback for every chunk received. Returning false
// from the callback stops the loop, as does cancelling ctx; cancellation is
// cooperative and takes effect between iterations, never mid-transfer.
// Timeouts are expected while polling and silently continue the loop; any
// other transfer error stops the loop and is returned.
func (p *Poller) Poll(ctx context.Context, handle usb.DeviceHandle, callback func([]byte) bool) error {
	buf := make([]byte, p.bufferSize)

	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		n, err := handle.InterruptRead(p.endpoint, buf, p.interval)
		if err != nil {
			if usb.IsRetryable(err) {
				continue
			}
			return err
		}
		if !callback(buf[:n]) {
			return nil
		}
	}
}
