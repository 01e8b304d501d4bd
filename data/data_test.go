package data

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewDeviceRecordDefaults(t *testing.T) {
	rec := NewDeviceRecord(0x18d1, 0x4ee2)

	assert.Equal(t, "18d1:4ee2", rec.ID.String())
	assert.Equal(t, DriverUnknown, rec.Driver.State)
	assert.Equal(t, HealthGood, rec.Health.State)
	assert.Equal(t, CodeUnknown, rec.Descriptor.Class)
	assert.Equal(t, CodeUnknown, rec.Location.Bus)
	assert.Empty(t, rec.Tags)
}

func TestTagsCaseInsensitive(t *testing.T) {
	rec := NewDeviceRecord(0x1234, 0x5678)

	rec.AddTag("ADB")
	assert.True(t, rec.HasTag("adb"))
	assert.True(t, rec.HasTag("Adb"))

	rec.AddTag("adb")
	assert.Len(t, rec.Tags, 1)

	rec.AddTag("mtp")
	assert.Len(t, rec.Tags, 2)
}

func TestDeviceRecordString(t *testing.T) {
	rec := NewDeviceRecord(0x1234, 0x5678)
	rec.Descriptor.Manufacturer = "Test Manufacturer"
	rec.Descriptor.Product = "Test Product"
	rec.Location.Bus = 1
	rec.Location.Address = 2

	s := rec.String()
	assert.Contains(t, s, "1234:5678")
	assert.Contains(t, s, "Test Manufacturer")
	assert.Contains(t, s, "Test Product")
	assert.Contains(t, s, "Bus 001 Device 002")
}

func TestParsePortPath(t *testing.T) {
	ports, err := ParsePortPath("1-2.3.4")
	require.NoError(t, err)
	assert.Equal(t, []int{2, 3, 4}, ports)

	ports, err = ParsePortPath("3-1")
	require.NoError(t, err)
	assert.Equal(t, []int{1}, ports)

	_, err = ParsePortPath("1")
	assert.Error(t, err)

	_, err = ParsePortPath("1-x.2")
	assert.Error(t, err)
}
