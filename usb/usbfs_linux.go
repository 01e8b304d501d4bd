//go:build linux

package usb

import (
	"fmt"
	"os"
	"runtime"
	"time"
	"unsafe"

	"golang.org/x/sys/unix"
)

// usbfs ioctl request codes, from linux/usbdevice_fs.h.
const (
	usbdevfsControl          = 0xc0185500
	usbdevfsBulk             = 0xc0185502
	usbdevfsClaimInterface   = 0x8004550f
	usbdevfsReleaseInterface = 0x80045510
)

type usbfsCtrlTransfer struct {
	RequestType uint8
	Request     uint8
	Value       uint16
	Index       uint16
	Length      uint16
	Timeout     uint32
	_           uint32
	Data        unsafe.Pointer
}

type usbfsBulkTransfer struct {
	Endpoint uint32
	Length   uint32
	Timeout  uint32
	_        uint32
	Data     unsafe.Pointer
}

// UsbfsHandle is a DeviceHandle over a /dev/bus/usb device node. It drives
// the synchronous usbfs ioctls, so no cgo and no external USB stack is
// needed. The kernel handles interrupt endpoints through the same bulk
// ioctl.
type UsbfsHandle struct {
	f          *os.File
	claimed    map[uint32]bool
	devicePath string
}

// OpenUsbfs opens a device node such as /dev/bus/usb/001/004.
func OpenUsbfs(path string) (*UsbfsHandle, error) {
	f, err := os.OpenFile(path, os.O_RDWR, 0)
	if err != nil {
		switch {
		case os.IsPermission(err):
			return nil, Wrap(KindPermission, path, err)
		case os.IsNotExist(err):
			return nil, Wrap(KindNotFound, path, err)
		default:
			return nil, Wrap(KindPlatform, path, err)
		}
	}
	return &UsbfsHandle{f: f, claimed: make(map[uint32]bool), devicePath: path}, nil
}

// DevicePathFor builds the usbfs node path for a bus/address pair.
func DevicePathFor(bus, address int) string {
	return fmt.Sprintf("/dev/bus/usb/%03d/%03d", bus, address)
}

func (h *UsbfsHandle) Close() error {
	for iface := range h.claimed {
		n := iface
		_, _ = h.ioctl(usbdevfsReleaseInterface, unsafe.Pointer(&n))
	}
	return h.f.Close()
}

func (h *UsbfsHandle) ClaimInterface(iface uint32) error {
	if _, err := h.ioctl(usbdevfsClaimInterface, unsafe.Pointer(&iface)); err != nil {
		return mapErrno("claim interface", err)
	}
	h.claimed[iface] = true
	return nil
}

func (h *UsbfsHandle) ReleaseInterface(iface uint32) error {
	delete(h.claimed, iface)
	if _, err := h.ioctl(usbdevfsReleaseInterface, unsafe.Pointer(&iface)); err != nil {
		return mapErrno("release interface", err)
	}
	return nil
}

func (h *UsbfsHandle) ControlRead(requestType, request uint8, value, index uint16, buf []byte, timeout time.Duration) (int, error) {
	return h.control(requestType|DirIn, request, value, index, buf, timeout)
}

func (h *UsbfsHandle) ControlWrite(requestType, request uint8, value, index uint16, buf []byte, timeout time.Duration) (int, error) {
	return h.control(requestType&EndpointMask, request, value, index, buf, timeout)
}

func (h *UsbfsHandle) BulkRead(endpoint uint8, buf []byte, timeout time.Duration) (int, error) {
	return h.bulk(EndpointIn(endpoint), buf, timeout, "bulk read")
}

func (h *UsbfsHandle) BulkWrite(endpoint uint8, buf []byte, timeout time.Duration) (int, error) {
	return h.bulk(EndpointOut(endpoint), buf, timeout, "bulk write")
}

func (h *UsbfsHandle) InterruptRead(endpoint uint8, buf []byte, timeout time.Duration) (int, error) {
	return h.bulk(EndpointIn(endpoint), buf, timeout, "interrupt read")
}

func (h *UsbfsHandle) InterruptWrite(endpoint uint8, buf []byte, timeout time.Duration) (int, error) {
	return h.bulk(EndpointOut(endpoint), buf, timeout, "interrupt write")
}

func (h *UsbfsHandle) control(requestType, request uint8, value, index uint16, buf []byte, timeout time.Duration) (int, error) {
	req := usbfsCtrlTransfer{
		RequestType: requestType,
		Request:     request,
		Value:       value,
		Index:       index,
		Length:      uint16(len(buf)),
		Timeout:     timeoutMillis(timeout),
	}
	if len(buf) > 0 {
		req.Data = unsafe.Pointer(&buf[0])
	}

	n, err := h.ioctl(usbdevfsControl, unsafe.Pointer(&req))
	runtime.KeepAlive(buf)
	if err != nil {
		return 0, mapErrno("control transfer", err)
	}
	return n, nil
}

func (h *UsbfsHandle) bulk(endpoint uint8, buf []byte, timeout time.Duration, op string) (int, error) {
	req := usbfsBulkTransfer{
		Endpoint: uint32(endpoint),
		Length:   uint32(len(buf)),
		Timeout:  timeoutMillis(timeout),
	}
	if len(buf) > 0 {
		req.Data = unsafe.Pointer(&buf[0])
	}

	n, err := h.ioctl(usbdevfsBulk, unsafe.Pointer(&req))
	runtime.KeepAlive(buf)
	if err != nil {
		return 0, mapErrno(op, err)
	}
	return n, nil
}

func (h *UsbfsHandle) ioctl(request uintptr, arg unsafe.Pointer) (int, error) {
	r, _, errno := unix.Syscall(unix.SYS_IOCTL, h.f.Fd(), request, uintptr(arg))
	if errno != 0 {
		return 0, errno
	}
	return int(r), nil
}

func timeoutMillis(timeout time.Duration) uint32 {
	if timeout <= 0 {
		return 0
	}
	ms := timeout.Milliseconds()
	if ms < 1 {
		ms = 1
	}
	return uint32(ms)
}

// mapErrno translates a usbfs errno into the library taxonomy. Timeouts,
// busy endpoints, and interrupted calls are transient; everything else is
// surfaced as a terminal transport error.
func mapErrno(op string, err error) error {
	errno, ok := err.(unix.Errno)
	if !ok {
		return Wrap(KindTransport, op, err)
	}
	switch errno {
	case unix.ETIMEDOUT, unix.EBUSY, unix.EINTR, unix.EAGAIN:
		return Transient(op, errno)
	case unix.EACCES, unix.EPERM:
		return Wrap(KindPermission, op, errno)
	case unix.ENODEV, unix.ENOENT:
		return Wrap(KindNotFound, op, errno)
	default:
		return Wrap(KindTransport, op, errno)
	}
}
