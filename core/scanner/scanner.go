// Package scanner enumerates attached USB devices into DeviceRecord
// snapshots. The scan itself is transport-agnostic; a Transport supplies
// the candidate devices and the scanner assembles best-effort records,
// never letting a single broken device abort the pass.
package scanner

import (
	"github.com/pixfid/bootforge/data"
	"github.com/pixfid/bootforge/usb"
)

// Descriptor is the pre-parsed standard device descriptor, plus the string
// descriptor indices needed to resolve the human-readable fields.
type Descriptor struct {
	VendorID          uint16
	ProductID         uint16
	Class             uint8
	SubClass          uint8
	Protocol          uint8
	USBVersion        string
	ManufacturerIndex uint8
	ProductIndex      uint8
	SerialIndex       uint8
}

// Device is one enumeration candidate. Descriptor must be readable without
// opening the device; Open is only needed for string descriptors.
type Device interface {
	Location() data.DeviceLocation
	Descriptor() (Descriptor, error)
	Open() (StringReader, error)
}

// StringReader resolves string descriptor indices on an opened device.
type StringReader interface {
	Languages() ([]uint16, error)
	String(index uint8, langID uint16) (string, error)
	Close() error
}

// Transport lists the physically present devices. A Transport error is the
// only hard failure a scan can produce.
type Transport interface {
	Devices() ([]Device, error)
}

// Enricher mutates freshly scanned records in place, typically filling the
// OS-specific driver and port fields the core pipeline leaves at their
// defaults. Enricher failures degrade the records, never the scan.
type Enricher func(records []data.DeviceRecord)

// Scanner runs enumeration passes over one transport.
type Scanner struct {
	transport Transport
	enrichers []Enricher
}

func New(transport Transport) *Scanner {
	return &Scanner{transport: transport}
}

// WithEnricher appends an enrichment step run after every scan pass.
func (s *Scanner) WithEnricher(enricher Enricher) *Scanner {
	s.enrichers = append(s.enrichers, enricher)
	return s
}

// Scan enumerates every candidate the transport reports, in transport
// order. Candidates whose descriptor cannot be read are skipped; candidates
// that cannot be opened are included with the string fields absent.
func (s *Scanner) Scan() ([]data.DeviceRecord, error) {
	devices, err := s.transport.Devices()
	if err != nil {
		return nil, usb.Wrap(usb.KindPlatform, "enumerate devices", err)
	}

	records := make([]data.DeviceRecord, 0, len(devices))
	for _, device := range devices {
		desc, err := device.Descriptor()
		if err != nil {
			continue
		}

		record := data.NewDeviceRecord(desc.VendorID, desc.ProductID)
		record.Location = device.Location()
		record.Descriptor.Class = int(desc.Class)
		record.Descriptor.SubClass = int(desc.SubClass)
		record.Descriptor.Protocol = int(desc.Protocol)
		record.Descriptor.USBVersion = desc.USBVersion

		s.readStrings(device, desc, &record)
		records = append(records, record)
	}

	for _, enricher := range s.enrichers {
		enricher(records)
	}
	return records, nil
}

// readStrings opens the device and resolves the manufacturer, product, and
// serial strings in the first supported language. Every step is tolerated
// independently; a field that cannot be read stays absent.
func (s *Scanner) readStrings(device Device, desc Descriptor, record *data.DeviceRecord) {
	reader, err := device.Open()
	if err != nil {
		return
	}
	defer reader.Close()

	langs, err := reader.Languages()
	if err != nil || len(langs) == 0 {
		return
	}
	lang := langs[0]

	if desc.ManufacturerIndex != 0 {
		if v, err := reader.String(desc.ManufacturerIndex, lang); err == nil {
			record.Descriptor.Manufacturer = v
		}
	}
	if desc.ProductIndex != 0 {
		if v, err := reader.String(desc.ProductIndex, lang); err == nil {
			record.Descriptor.Product = v
		}
	}
	if desc.SerialIndex != 0 {
		if v, err := reader.String(desc.SerialIndex, lang); err == nil {
			record.Descriptor.SerialNumber = v
		}
	}
}
