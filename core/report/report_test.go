package report

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pixfid/bootforge/data"
)

func sampleRecords() []data.DeviceRecord {
	pixel := data.NewDeviceRecord(0x18d1, 0x4ee2)
	pixel.Location = data.DeviceLocation{Bus: 1, Address: 5, PortPath: "1-2"}
	pixel.Descriptor.Manufacturer = "Google"
	pixel.Descriptor.Product = "Pixel 7"
	pixel.Descriptor.SerialNumber = "29051FDH3"
	pixel.AddTag("adb")

	iphone := data.NewDeviceRecord(0x05ac, 0x12a0)
	iphone.Location = data.DeviceLocation{Bus: 1, Address: 6}
	iphone.Descriptor.Manufacturer = "Apple Inc."
	iphone.Descriptor.Product = "iPhone"
	iphone.Driver = data.DriverStatus{State: data.DriverBound, Name: "usbmuxd"}
	iphone.AddTag("apple")

	return []data.DeviceRecord{pixel, iphone}
}

func TestFilterByTag(t *testing.T) {
	got := FilterByTag(sampleRecords(), "ADB")
	require.Len(t, got, 1)
	assert.Equal(t, "18d1:4ee2", got[0].ID.String())
}

func TestFilterByVendor(t *testing.T) {
	got := FilterByVendor(sampleRecords(), 0x05ac)
	require.Len(t, got, 1)
	assert.Equal(t, "05ac:12a0", got[0].ID.String())
}

func TestPrintTable(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, PrintTable(&buf, sampleRecords()))

	out := buf.String()
	assert.Contains(t, out, "18d1")
	assert.Contains(t, out, "4ee2")
	assert.Contains(t, out, "Pixel 7")
	assert.Contains(t, out, "29051FDH3")
	assert.Contains(t, out, "usbmuxd")
	assert.Contains(t, out, "1-2")
}

func TestExportJSON(t *testing.T) {
	base := filepath.Join(t.TempDir(), "devices")
	require.NoError(t, Export(sampleRecords(), "json", base))

	raw, err := os.ReadFile(base + ".json")
	require.NoError(t, err)

	var decoded []data.DeviceRecord
	require.NoError(t, json.Unmarshal(raw, &decoded))
	require.Len(t, decoded, 2)
	assert.Equal(t, "Pixel 7", decoded[0].Descriptor.Product)
}

func TestExportXML(t *testing.T) {
	base := filepath.Join(t.TempDir(), "devices")
	require.NoError(t, Export(sampleRecords(), "xml", base))

	raw, err := os.ReadFile(base + ".xml")
	require.NoError(t, err)
	assert.Contains(t, string(raw), "<devices>")
	assert.Contains(t, string(raw), "Pixel 7")
}

func TestExportPDF(t *testing.T) {
	base := filepath.Join(t.TempDir(), "devices")
	require.NoError(t, Export(sampleRecords(), "pdf", base))

	info, err := os.Stat(base + ".pdf")
	require.NoError(t, err)
	assert.Greater(t, info.Size(), int64(0))
}

func TestExportUnknownFormat(t *testing.T) {
	assert.Error(t, Export(nil, "csv", "devices"))
}

func TestDriverLabel(t *testing.T) {
	record := data.NewDeviceRecord(0, 0)
	assert.Equal(t, "-", driverLabel(&record))

	record.Driver = data.DriverStatus{State: data.DriverMissing}
	assert.Equal(t, "none", driverLabel(&record))

	record.Driver = data.DriverStatus{State: data.DriverMultiple, Names: []string{"a", "b"}}
	assert.Equal(t, "a,b", driverLabel(&record))
}
