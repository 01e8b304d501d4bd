package data

import (
	"fmt"
	"strconv"
	"strings"
)

// CodeUnknown marks a descriptor code or location field that was not read.
const CodeUnknown = -1

type DeviceIdentity struct {
	VendorID  uint16
	ProductID uint16
}

func (id DeviceIdentity) String() string {
	return fmt.Sprintf("%04x:%04x", id.VendorID, id.ProductID)
}

type DeviceLocation struct {
	Bus      int
	Address  int
	PortPath string
}

type DescriptorSummary struct {
	Manufacturer string
	Product      string
	SerialNumber string
	Class        int
	SubClass     int
	Protocol     int
	USBVersion   string
}

// NewDescriptorSummary returns a summary with all optional fields absent.
func NewDescriptorSummary() DescriptorSummary {
	return DescriptorSummary{
		Class:    CodeUnknown,
		SubClass: CodeUnknown,
		Protocol: CodeUnknown,
	}
}

type DriverState int8

const (
	DriverUnknown DriverState = iota
	DriverBound
	DriverMissing
	DriverBlocked
	DriverMultiple
)

type DriverStatus struct {
	State  DriverState
	Name   string
	Reason string
	Names  []string
}

type HealthState int8

const (
	HealthGood HealthState = iota
	HealthUnstable
	HealthPowerIssue
	HealthResetLoop
	HealthDisconnected
)

type LinkHealth struct {
	State  HealthState
	Reason string
}

type DeviceRecord struct {
	ID         DeviceIdentity
	Location   DeviceLocation
	Descriptor DescriptorSummary
	Driver     DriverStatus
	Health     LinkHealth
	Tags       []string
	RawData    string
}

// NewDeviceRecord builds a record with scanner defaults: driver status
// unknown, link health good, no tags.
func NewDeviceRecord(vid, pid uint16) DeviceRecord {
	return DeviceRecord{
		ID:         DeviceIdentity{VendorID: vid, ProductID: pid},
		Location:   DeviceLocation{Bus: CodeUnknown, Address: CodeUnknown},
		Descriptor: NewDescriptorSummary(),
	}
}

// HasTag reports whether the record carries tag, ignoring case.
func (r *DeviceRecord) HasTag(tag string) bool {
	for _, t := range r.Tags {
		if strings.EqualFold(t, tag) {
			return true
		}
	}
	return false
}

// AddTag appends tag unless an equal-fold duplicate is already present.
func (r *DeviceRecord) AddTag(tag string) {
	if !r.HasTag(tag) {
		r.Tags = append(r.Tags, tag)
	}
}

func (r DeviceRecord) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "USB Device [%s]", r.ID)
	if r.Descriptor.Manufacturer != "" {
		fmt.Fprintf(&b, " %s", r.Descriptor.Manufacturer)
	}
	if r.Descriptor.Product != "" {
		fmt.Fprintf(&b, " %s", r.Descriptor.Product)
	}
	if r.Descriptor.SerialNumber != "" {
		fmt.Fprintf(&b, " (S/N: %s)", r.Descriptor.SerialNumber)
	}
	if r.Location.Bus != CodeUnknown && r.Location.Address != CodeUnknown {
		fmt.Fprintf(&b, " Bus %03d Device %03d", r.Location.Bus, r.Location.Address)
	}
	return b.String()
}

type Protocol string

const (
	ProtocolADB      Protocol = "adb"
	ProtocolFastboot Protocol = "fastboot"
	ProtocolApple    Protocol = "apple"
	ProtocolMTP      Protocol = "mtp"
	ProtocolUnknown  Protocol = "unknown"
)

type EventType int8

const (
	DeviceAdded EventType = iota
	DeviceRemoved
	DeviceChanged
)

func (t EventType) String() string {
	switch t {
	case DeviceAdded:
		return "added"
	case DeviceRemoved:
		return "removed"
	case DeviceChanged:
		return "changed"
	}
	return "unknown"
}

// DeviceEvent carries a full record snapshot taken at the time of the event.
type DeviceEvent struct {
	Type   EventType
	Record DeviceRecord
}

// ParsePortPath splits a port path such as "1-2.3.4" into the chain of port
// numbers after the bus prefix.
func ParsePortPath(path string) ([]int, error) {
	parts := strings.FieldsFunc(path, func(r rune) bool {
		return r == '-' || r == '.'
	})
	if len(parts) < 2 {
		return nil, fmt.Errorf("invalid port path: %s", path)
	}

	ports := make([]int, 0, len(parts)-1)
	for _, part := range parts[1:] {
		n, err := strconv.Atoi(part)
		if err != nil {
			return nil, fmt.Errorf("invalid port number in path: %s", part)
		}
		ports = append(ports, n)
	}
	return ports, nil
}
