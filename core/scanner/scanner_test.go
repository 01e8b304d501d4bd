package scanner

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pixfid/bootforge/data"
	"github.com/pixfid/bootforge/usb"
)

type fakeTransport struct {
	devices []Device
	err     error
}

func (t *fakeTransport) Devices() ([]Device, error) {
	return t.devices, t.err
}

type fakeDevice struct {
	location data.DeviceLocation
	desc     Descriptor
	descErr  error
	reader   *fakeStrings
	openErr  error
}

func (d *fakeDevice) Location() data.DeviceLocation { return d.location }

func (d *fakeDevice) Descriptor() (Descriptor, error) { return d.desc, d.descErr }

func (d *fakeDevice) Open() (StringReader, error) {
	if d.openErr != nil {
		return nil, d.openErr
	}
	return d.reader, nil
}

type fakeStrings struct {
	langs    []uint16
	langErr  error
	strings  map[uint8]string
	failures map[uint8]bool
	closed   bool
}

func (s *fakeStrings) Languages() ([]uint16, error) { return s.langs, s.langErr }

func (s *fakeStrings) String(index uint8, langID uint16) (string, error) {
	if s.failures[index] {
		return "", usb.New(usb.KindIO, "stalled")
	}
	return s.strings[index], nil
}

func (s *fakeStrings) Close() error {
	s.closed = true
	return nil
}

func pixelDevice() *fakeDevice {
	return &fakeDevice{
		location: data.DeviceLocation{Bus: 1, Address: 4, PortPath: "1-2"},
		desc: Descriptor{
			VendorID: 0x18d1, ProductID: 0x4ee2,
			Class: 0xff, USBVersion: "3.20",
			ManufacturerIndex: 1, ProductIndex: 2, SerialIndex: 3,
		},
		reader: &fakeStrings{
			langs:   []uint16{0x0409},
			strings: map[uint8]string{1: "Google", 2: "Pixel 7", 3: "29051FDH3"},
		},
	}
}

func TestScanAssemblesRecords(t *testing.T) {
	device := pixelDevice()
	scanner := New(&fakeTransport{devices: []Device{device}})

	records, err := scanner.Scan()
	require.NoError(t, err)
	require.Len(t, records, 1)

	record := records[0]
	assert.Equal(t, "18d1:4ee2", record.ID.String())
	assert.Equal(t, 1, record.Location.Bus)
	assert.Equal(t, "1-2", record.Location.PortPath)
	assert.Equal(t, 0xff, record.Descriptor.Class)
	assert.Equal(t, "Google", record.Descriptor.Manufacturer)
	assert.Equal(t, "Pixel 7", record.Descriptor.Product)
	assert.Equal(t, "29051FDH3", record.Descriptor.SerialNumber)
	assert.Equal(t, data.DriverUnknown, record.Driver.State)
	assert.Equal(t, data.HealthGood, record.Health.State)
	assert.True(t, device.reader.closed)
}

func TestScanTransportFailureIsHard(t *testing.T) {
	scanner := New(&fakeTransport{err: usb.New(usb.KindPlatform, "no usb stack")})
	_, err := scanner.Scan()
	require.Error(t, err)
}

func TestScanSkipsUnreadableDescriptor(t *testing.T) {
	broken := &fakeDevice{descErr: usb.New(usb.KindPermission, "open denied")}
	scanner := New(&fakeTransport{devices: []Device{broken, pixelDevice()}})

	records, err := scanner.Scan()
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "18d1:4ee2", records[0].ID.String())
}

func TestScanOpenFailureLeavesStringsAbsent(t *testing.T) {
	device := pixelDevice()
	device.openErr = usb.New(usb.KindPermission, "open denied")
	scanner := New(&fakeTransport{devices: []Device{device}})

	records, err := scanner.Scan()
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Empty(t, records[0].Descriptor.Manufacturer)
	assert.Empty(t, records[0].Descriptor.Product)
	assert.Empty(t, records[0].Descriptor.SerialNumber)
}

func TestScanToleratesPerStringFailure(t *testing.T) {
	device := pixelDevice()
	device.reader.failures = map[uint8]bool{2: true}
	scanner := New(&fakeTransport{devices: []Device{device}})

	records, err := scanner.Scan()
	require.NoError(t, err)
	assert.Equal(t, "Google", records[0].Descriptor.Manufacturer)
	assert.Empty(t, records[0].Descriptor.Product)
	assert.Equal(t, "29051FDH3", records[0].Descriptor.SerialNumber)
}

func TestScanLanguageFailureLeavesStringsAbsent(t *testing.T) {
	device := pixelDevice()
	device.reader.langErr = usb.New(usb.KindIO, "stalled")
	scanner := New(&fakeTransport{devices: []Device{device}})

	records, err := scanner.Scan()
	require.NoError(t, err)
	assert.Empty(t, records[0].Descriptor.Manufacturer)
}

func TestScanZeroStringIndexSkipsRead(t *testing.T) {
	device := pixelDevice()
	device.desc.SerialIndex = 0
	delete(device.reader.strings, 3)
	scanner := New(&fakeTransport{devices: []Device{device}})

	records, err := scanner.Scan()
	require.NoError(t, err)
	assert.Empty(t, records[0].Descriptor.SerialNumber)
	assert.Equal(t, "Pixel 7", records[0].Descriptor.Product)
}

func TestScanPreservesTransportOrder(t *testing.T) {
	first := pixelDevice()
	second := pixelDevice()
	second.desc.VendorID = 0x05ac
	second.desc.ProductID = 0x12a0
	scanner := New(&fakeTransport{devices: []Device{first, second}})

	records, err := scanner.Scan()
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "18d1:4ee2", records[0].ID.String())
	assert.Equal(t, "05ac:12a0", records[1].ID.String())
}

func TestScanRunsEnrichers(t *testing.T) {
	scanner := New(&fakeTransport{devices: []Device{pixelDevice()}}).
		WithEnricher(func(records []data.DeviceRecord) {
			for i := range records {
				records[i].Driver = data.DriverStatus{State: data.DriverBound, Name: "usbfs"}
			}
		})

	records, err := scanner.Scan()
	require.NoError(t, err)
	assert.Equal(t, data.DriverBound, records[0].Driver.State)
	assert.Equal(t, "usbfs", records[0].Driver.Name)
}
