//go:build linux

package scanner

import (
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/pixfid/bootforge/core/transfer"
	"github.com/pixfid/bootforge/data"
	"github.com/pixfid/bootforge/usb"
)

// DefaultSysfsRoot is where the kernel exposes the USB device tree.
const DefaultSysfsRoot = "/sys/bus/usb/devices"

// SysfsTransport enumerates devices from sysfs. Descriptors come from the
// kernel's cached binary descriptor dump, so no device access or special
// permission is needed until strings are read through usbfs.
type SysfsTransport struct {
	Root string
}

func NewSysfsTransport() *SysfsTransport {
	return &SysfsTransport{Root: DefaultSysfsRoot}
}

func (t *SysfsTransport) Devices() ([]Device, error) {
	entries, err := os.ReadDir(t.Root)
	if err != nil {
		return nil, usb.Wrap(usb.KindPlatform, "read sysfs", err)
	}

	var devices []Device
	for _, entry := range entries {
		name := entry.Name()
		// Interface nodes ("1-2:1.0") and hub ports are not devices.
		if strings.ContainsRune(name, ':') {
			continue
		}
		path := filepath.Join(t.Root, name)
		if _, err := os.Stat(filepath.Join(path, "descriptors")); err != nil {
			continue
		}
		devices = append(devices, &sysfsDevice{name: name, path: path})
	}
	return devices, nil
}

type sysfsDevice struct {
	name string
	path string
}

func (d *sysfsDevice) Location() data.DeviceLocation {
	loc := data.DeviceLocation{Bus: data.CodeUnknown, Address: data.CodeUnknown}
	if bus, err := d.readInt("busnum"); err == nil {
		loc.Bus = bus
	}
	if addr, err := d.readInt("devnum"); err == nil {
		loc.Address = addr
	}
	// Root hubs are named "usbN"; everything else encodes its port path.
	if !strings.HasPrefix(d.name, "usb") {
		loc.PortPath = d.name
	}
	return loc
}

func (d *sysfsDevice) Descriptor() (Descriptor, error) {
	raw, err := os.ReadFile(filepath.Join(d.path, "descriptors"))
	if err != nil {
		return Descriptor{}, usb.Wrap(usb.KindIO, "read descriptors", err)
	}
	if len(raw) < 18 {
		return Descriptor{}, usb.New(usb.KindParse, "device descriptor too short")
	}

	bcdUSB := binary.LittleEndian.Uint16(raw[2:4])
	return Descriptor{
		VendorID:          binary.LittleEndian.Uint16(raw[8:10]),
		ProductID:         binary.LittleEndian.Uint16(raw[10:12]),
		Class:             raw[4],
		SubClass:          raw[5],
		Protocol:          raw[6],
		USBVersion:        fmt.Sprintf("%x.%02x", bcdUSB>>8, bcdUSB&0xff),
		ManufacturerIndex: raw[14],
		ProductIndex:      raw[15],
		SerialIndex:       raw[16],
	}, nil
}

func (d *sysfsDevice) Open() (StringReader, error) {
	loc := d.Location()
	if loc.Bus == data.CodeUnknown || loc.Address == data.CodeUnknown {
		return nil, usb.New(usb.KindNotFound, "device has no bus address")
	}

	handle, err := usb.OpenUsbfs(usb.DevicePathFor(loc.Bus, loc.Address))
	if err != nil {
		return nil, err
	}
	return &usbfsStrings{handle: handle, ctrl: transfer.NewControl(handle)}, nil
}

func (d *sysfsDevice) readInt(file string) (int, error) {
	raw, err := os.ReadFile(filepath.Join(d.path, file))
	if err != nil {
		return 0, err
	}
	return strconv.Atoi(strings.TrimSpace(string(raw)))
}

// usbfsStrings resolves string descriptors through control transfers on an
// open usbfs handle.
type usbfsStrings struct {
	handle *usb.UsbfsHandle
	ctrl   *transfer.Control
}

func (s *usbfsStrings) Languages() ([]uint16, error) {
	return s.ctrl.LanguageIDs()
}

func (s *usbfsStrings) String(index uint8, langID uint16) (string, error) {
	return s.ctrl.StringDescriptor(index, langID)
}

func (s *usbfsStrings) Close() error {
	return s.handle.Close()
}
