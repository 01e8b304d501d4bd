// Package usb defines the capability set this library expects from a USB
// transport backend and the error taxonomy shared by everything built on it.
package usb

import "time"

// Endpoint direction bit as defined by the USB specification.
const (
	DirIn        uint8 = 0x80
	EndpointMask uint8 = 0x7f
)

// EndpointIn normalizes an endpoint address to the IN direction.
func EndpointIn(endpoint uint8) uint8 { return endpoint | DirIn }

// EndpointOut normalizes an endpoint address to the OUT direction.
func EndpointOut(endpoint uint8) uint8 { return endpoint & EndpointMask }

// DeviceHandle is the transfer capability set of an opened USB device.
// Implementations are provided by transport backends; a handle must only be
// used by one logical session at a time, the transport does not serialize
// concurrent callers.
type DeviceHandle interface {
	BulkRead(endpoint uint8, buf []byte, timeout time.Duration) (int, error)
	BulkWrite(endpoint uint8, buf []byte, timeout time.Duration) (int, error)
	ControlRead(requestType, request uint8, value, index uint16, buf []byte, timeout time.Duration) (int, error)
	ControlWrite(requestType, request uint8, value, index uint16, buf []byte, timeout time.Duration) (int, error)
	InterruptRead(endpoint uint8, buf []byte, timeout time.Duration) (int, error)
	InterruptWrite(endpoint uint8, buf []byte, timeout time.Duration) (int, error)
}
