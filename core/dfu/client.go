package dfu

import (
	"fmt"
	"time"

	"github.com/pixfid/bootforge/usb"
)

const (
	// Class requests on the DFU interface.
	rtOut uint8 = 0x21 // host to device, class, interface
	rtIn  uint8 = 0xa1 // device to host, class, interface

	defaultTimeout = 10 * time.Second
	settleDelay    = 100 * time.Millisecond

	// DefaultTransferSize is used when the caller passes a zero block size.
	// A zero-sized block could never move data and would stall Download.
	DefaultTransferSize uint16 = 1024
)

// StatusError is a non-OK status reported by the device itself, as opposed
// to a transport failure. It is fatal to the current operation; callers
// should ClearStatus or Abort before retrying.
type StatusError struct {
	Status Status
	State  State
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("device reported %s in state %s", e.Status, e.State)
}

// ProgressFunc receives (bytesTransferred, totalBytes) after each block.
type ProgressFunc func(transferred, total int)

// Client drives one DFU session over a device handle. The cached state is
// only ever updated by a successful GETSTATUS/GETSTATE round trip and must
// not be assumed correct across an external device reset. A Client is not
// safe for concurrent use.
type Client struct {
	handle       usb.DeviceHandle
	iface        uint16
	transferSize int
	timeout      time.Duration
	state        State
}

func NewClient(handle usb.DeviceHandle, iface uint8, transferSize uint16) *Client {
	if transferSize == 0 {
		transferSize = DefaultTransferSize
	}
	return &Client{
		handle:       handle,
		iface:        uint16(iface),
		transferSize: int(transferSize),
		timeout:      defaultTimeout,
		state:        Idle,
	}
}

func (c *Client) WithTimeout(timeout time.Duration) *Client {
	c.timeout = timeout
	return c
}

// State returns the cached device state from the last successful poll.
func (c *Client) State() State { return c.state }

// Status issues GETSTATUS and updates the cached state. A non-OK device
// status is returned as a *StatusError alongside the parsed response.
func (c *Client) Status() (StatusResponse, error) {
	buf := make([]byte, 6)
	if _, err := c.handle.ControlRead(rtIn, reqGetStatus, 0, c.iface, buf, c.timeout); err != nil {
		return StatusResponse{}, err
	}

	resp, err := ParseStatusResponse(buf)
	if err != nil {
		return StatusResponse{}, err
	}

	c.state = resp.State
	if !resp.Status.IsOK() {
		return resp, &StatusError{Status: resp.Status, State: resp.State}
	}
	return resp, nil
}

// GetState issues GETSTATE, a cheaper state-only poll.
func (c *Client) GetState() (State, error) {
	buf := make([]byte, 1)
	if _, err := c.handle.ControlRead(rtIn, reqGetState, 0, c.iface, buf, c.timeout); err != nil {
		return c.state, err
	}
	c.state = StateFromByte(buf[0])
	return c.state, nil
}

// ClearStatus moves the device out of the error state.
func (c *Client) ClearStatus() error {
	_, err := c.handle.ControlWrite(rtOut, reqClrStatus, 0, c.iface, nil, c.timeout)
	return err
}

// Abort cancels the current transfer. The cached state is optimistically
// reset to idle; a follow-up Status confirms.
func (c *Client) Abort() error {
	if _, err := c.handle.ControlWrite(rtOut, reqAbort, 0, c.iface, nil, c.timeout); err != nil {
		return err
	}
	c.state = Idle
	return nil
}

// Detach asks a runtime-mode device to re-enumerate into DFU mode within
// timeoutMs.
func (c *Client) Detach(timeoutMs uint16) error {
	_, err := c.handle.ControlWrite(rtOut, reqDetach, timeoutMs, c.iface, nil, c.timeout)
	return err
}

func (c *Client) downloadBlock(block uint16, data []byte) error {
	_, err := c.handle.ControlWrite(rtOut, reqDnload, block, c.iface, data, c.timeout)
	return err
}

func (c *Client) uploadBlock(block uint16, buf []byte) (int, error) {
	return c.handle.ControlRead(rtIn, reqUpload, block, c.iface, buf, c.timeout)
}

// waitReady polls GETSTATUS until the device is writable again, sleeping
// for the device-dictated poll timeout between polls.
func (c *Client) waitReady() error {
	for {
		resp, err := c.Status()
		if err != nil {
			return err
		}

		switch downloadStep(resp.State) {
		case stepPoll:
			time.Sleep(time.Duration(resp.PollTimeoutMs) * time.Millisecond)
		case stepDone:
			return nil
		default:
			return fmt.Errorf("unexpected state %s during download", resp.State)
		}
	}
}

func (c *Client) ensureIdle() error {
	if c.state == Idle {
		return nil
	}
	if err := c.Abort(); err != nil {
		return err
	}
	_, err := c.Status()
	return err
}

// Download transfers a firmware image to the device in sequentially
// numbered blocks no larger than the negotiated transfer size, then signals
// end-of-transfer with an empty block and waits out manifestation.
func (c *Client) Download(firmware []byte, progress ProgressFunc) error {
	if err := c.ensureIdle(); err != nil {
		return err
	}

	total := len(firmware)
	var block uint16
	for offset := 0; offset < total; {
		end := offset + c.transferSize
		if end > total {
			end = total
		}

		if err := c.downloadBlock(block, firmware[offset:end]); err != nil {
			return fmt.Errorf("dfu block %d: %w", block, err)
		}
		if err := c.waitReady(); err != nil {
			return fmt.Errorf("dfu block %d: %w", block, err)
		}

		offset = end
		block++
		if progress != nil {
			progress(offset, total)
		}
	}

	if err := c.downloadBlock(block, nil); err != nil {
		return fmt.Errorf("dfu end-of-transfer: %w", err)
	}

	for {
		resp, err := c.Status()
		if err != nil {
			return fmt.Errorf("manifestation: %w", err)
		}

		kind, settle := manifestStep(resp.State)
		if kind == stepDone {
			return nil
		}
		if settle {
			time.Sleep(settleDelay)
		} else {
			time.Sleep(time.Duration(resp.PollTimeoutMs) * time.Millisecond)
		}
	}
}

// Upload pulls the firmware image off the device. It stops on an empty
// block, a short block (the protocol's end-of-data signal), or once maxSize
// bytes have been read.
func (c *Client) Upload(maxSize int, progress ProgressFunc) ([]byte, error) {
	if err := c.ensureIdle(); err != nil {
		return nil, err
	}

	var firmware []byte
	var block uint16
	buf := make([]byte, c.transferSize)

	for {
		n, err := c.uploadBlock(block, buf)
		if err != nil {
			return nil, fmt.Errorf("dfu block %d: %w", block, err)
		}
		if n == 0 {
			break
		}

		firmware = append(firmware, buf[:n]...)
		block++

		if progress != nil {
			progress(len(firmware), maxSize)
		}
		if len(firmware) >= maxSize {
			break
		}
		if n < c.transferSize {
			break
		}

		if _, err := c.Status(); err != nil {
			return nil, err
		}
	}
	return firmware, nil
}
