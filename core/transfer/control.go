package transfer

import (
	"encoding/binary"
	"time"
	"unicode/utf16"

	"github.com/pixfid/bootforge/usb"
)

// Request-type byte sub-fields.
const (
	DirIn  uint8 = 0x80
	DirOut uint8 = 0x00

	TypeStandard uint8 = 0x00
	TypeClass    uint8 = 0x20
	TypeVendor   uint8 = 0x40

	RecipDevice    uint8 = 0x00
	RecipInterface uint8 = 0x01
	RecipEndpoint  uint8 = 0x02
	RecipOther     uint8 = 0x03
)

// RequestType builds a bmRequestType byte from direction, request class,
// and recipient.
func RequestType(direction, requestType, recipient uint8) uint8 {
	return direction | requestType | recipient
}

// Standard device requests.
const (
	ReqGetStatus        uint8 = 0x00
	ReqClearFeature     uint8 = 0x01
	ReqSetFeature       uint8 = 0x03
	ReqSetAddress       uint8 = 0x05
	ReqGetDescriptor    uint8 = 0x06
	ReqSetDescriptor    uint8 = 0x07
	ReqGetConfiguration uint8 = 0x08
	ReqSetConfiguration uint8 = 0x09
	ReqGetInterface     uint8 = 0x0a
	ReqSetInterface     uint8 = 0x0b
	ReqSynchFrame       uint8 = 0x0c
)

// Descriptor types.
const (
	DescDevice        uint8 = 0x01
	DescConfiguration uint8 = 0x02
	DescString        uint8 = 0x03
	DescInterface     uint8 = 0x04
	DescEndpoint      uint8 = 0x05
	DescQualifier     uint8 = 0x06
	DescBOS           uint8 = 0x0f
	DescHID           uint8 = 0x21
	DescHIDReport     uint8 = 0x22
)

const deviceDescriptorLen = 18

// Control performs control transfers and the standard descriptor reads
// built on them.
type Control struct {
	handle  usb.DeviceHandle
	timeout time.Duration
}

func NewControl(handle usb.DeviceHandle) *Control {
	return &Control{handle: handle, timeout: DefaultTimeout}
}

func (c *Control) WithTimeout(timeout time.Duration) *Control {
	c.timeout = timeout
	return c
}

// DeviceDescriptor reads the 18-byte standard device descriptor.
func (c *Control) DeviceDescriptor() ([]byte, error) {
	buf := make([]byte, deviceDescriptorLen)
	rt := RequestType(DirIn, TypeStandard, RecipDevice)

	n, err := c.handle.ControlRead(rt, ReqGetDescriptor, uint16(DescDevice)<<8, 0, buf, c.timeout)
	if err != nil {
		return nil, err
	}
	return buf[:n], nil
}

// ConfigurationDescriptor reads the full configuration descriptor. The total
// length is not known up front, so the fixed-size header is read first and
// the request re-issued at full size.
func (c *Control) ConfigurationDescriptor(index uint8) ([]byte, error) {
	rt := RequestType(DirIn, TypeStandard, RecipDevice)
	value := uint16(DescConfiguration)<<8 | uint16(index)

	header := make([]byte, 9)
	if _, err := c.handle.ControlRead(rt, ReqGetDescriptor, value, 0, header, c.timeout); err != nil {
		return nil, err
	}

	total := binary.LittleEndian.Uint16(header[2:4])
	buf := make([]byte, total)
	n, err := c.handle.ControlRead(rt, ReqGetDescriptor, value, 0, buf, c.timeout)
	if err != nil {
		return nil, err
	}
	return buf[:n], nil
}

// BOSDescriptor reads the full BOS descriptor, two-phase like
// ConfigurationDescriptor.
func (c *Control) BOSDescriptor() ([]byte, error) {
	rt := RequestType(DirIn, TypeStandard, RecipDevice)
	value := uint16(DescBOS) << 8

	header := make([]byte, 5)
	if _, err := c.handle.ControlRead(rt, ReqGetDescriptor, value, 0, header, c.timeout); err != nil {
		return nil, err
	}

	total := binary.LittleEndian.Uint16(header[2:4])
	buf := make([]byte, total)
	n, err := c.handle.ControlRead(rt, ReqGetDescriptor, value, 0, buf, c.timeout)
	if err != nil {
		return nil, err
	}
	return buf[:n], nil
}

// StringDescriptor reads a string descriptor and decodes its UTF-16LE
// payload. Invalid sequences decode to the replacement rune, never an error.
func (c *Control) StringDescriptor(index uint8, langID uint16) (string, error) {
	buf := make([]byte, 255)
	rt := RequestType(DirIn, TypeStandard, RecipDevice)

	n, err := c.handle.ControlRead(rt, ReqGetDescriptor, uint16(DescString)<<8|uint16(index), langID, buf, c.timeout)
	if err != nil {
		return "", err
	}
	if n < 2 {
		return "", usb.New(usb.KindParse, "string descriptor too short")
	}

	units := make([]uint16, 0, (n-2)/2)
	for i := 2; i+1 < n; i += 2 {
		units = append(units, binary.LittleEndian.Uint16(buf[i:i+2]))
	}
	return string(utf16.Decode(units)), nil
}

// LanguageIDs reads string descriptor zero, the supported-language list.
// A short response falls back to US English.
func (c *Control) LanguageIDs() ([]uint16, error) {
	buf := make([]byte, 255)
	rt := RequestType(DirIn, TypeStandard, RecipDevice)

	n, err := c.handle.ControlRead(rt, ReqGetDescriptor, uint16(DescString)<<8, 0, buf, c.timeout)
	if err != nil {
		return nil, err
	}
	if n < 4 {
		return []uint16{0x0409}, nil
	}

	langs := make([]uint16, 0, (n-2)/2)
	for i := 2; i+1 < n; i += 2 {
		langs = append(langs, binary.LittleEndian.Uint16(buf[i:i+2]))
	}
	return langs, nil
}

// HIDReportDescriptor reads a HID report descriptor for an interface.
func (c *Control) HIDReportDescriptor(iface, length uint16) ([]byte, error) {
	buf := make([]byte, length)
	rt := RequestType(DirIn, TypeStandard, RecipInterface)

	n, err := c.handle.ControlRead(rt, ReqGetDescriptor, uint16(DescHIDReport)<<8, iface, buf, c.timeout)
	if err != nil {
		return nil, err
	}
	return buf[:n], nil
}

func (c *Control) SetConfiguration(config uint8) error {
	rt := RequestType(DirOut, TypeStandard, RecipDevice)
	_, err := c.handle.ControlWrite(rt, ReqSetConfiguration, uint16(config), 0, nil, c.timeout)
	return err
}

func (c *Control) DeviceStatus() (uint16, error) {
	buf := make([]byte, 2)
	rt := RequestType(DirIn, TypeStandard, RecipDevice)

	if _, err := c.handle.ControlRead(rt, ReqGetStatus, 0, 0, buf, c.timeout); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint16(buf), nil
}

// VendorRead passes the caller's request, value, and index through
// unmodified on a vendor-specific IN transfer.
func (c *Control) VendorRead(request uint8, value, index uint16, buf []byte) (int, error) {
	rt := RequestType(DirIn, TypeVendor, RecipDevice)
	return c.handle.ControlRead(rt, request, value, index, buf, c.timeout)
}

// VendorWrite is the OUT counterpart of VendorRead.
func (c *Control) VendorWrite(request uint8, value, index uint16, buf []byte) (int, error) {
	rt := RequestType(DirOut, TypeVendor, RecipDevice)
	return c.handle.ControlWrite(rt, request, value, index, buf, c.timeout)
}
