package classify

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/pixfid/bootforge/data"
)

func TestGooglePixelADB(t *testing.T) {
	record := data.NewDeviceRecord(0x18d1, 0x4ee2)
	record.Descriptor.Class = 0xff

	assert.Equal(t, []data.Protocol{data.ProtocolADB}, Protocols(&record))
}

func TestSamsungADB(t *testing.T) {
	record := data.NewDeviceRecord(0x04e8, 0x6860)
	assert.True(t, IsADB(&record))
}

func TestVendorClassWithADBProductString(t *testing.T) {
	record := data.NewDeviceRecord(0x2717, 0xff48)
	record.Descriptor.Class = 0xff
	record.Descriptor.Product = "Mi 9 (ADB Interface)"

	assert.True(t, IsADB(&record))
}

func TestFastbootPIDs(t *testing.T) {
	for _, pid := range []uint16{0x4ee0, 0xd00d, 0x0d02} {
		record := data.NewDeviceRecord(0x18d1, pid)
		assert.True(t, IsFastboot(&record), "pid %04x", pid)
	}

	edl := data.NewDeviceRecord(0x05c6, 0x9008)
	assert.True(t, IsFastboot(&edl))
}

func TestFastbootProductString(t *testing.T) {
	record := data.NewDeviceRecord(0x0b05, 0x7777)
	record.Descriptor.Product = "ASUS Bootloader Interface"
	assert.True(t, IsFastboot(&record))
}

func TestAppleByID(t *testing.T) {
	record := data.NewDeviceRecord(0x05ac, 0x12a0)
	assert.Equal(t, []data.Protocol{data.ProtocolApple}, Protocols(&record))
}

func TestAppleByStrings(t *testing.T) {
	record := data.NewDeviceRecord(0x0000, 0x0000)
	record.Descriptor.Manufacturer = "Apple Inc."
	assert.True(t, IsApple(&record))

	record = data.NewDeviceRecord(0x0000, 0x0000)
	record.Descriptor.Product = "iPhone 15 Pro"
	assert.True(t, IsApple(&record))
}

func TestMTPInterfaceTriple(t *testing.T) {
	record := data.NewDeviceRecord(0x04b0, 0x0422)
	record.Descriptor.Class = 0x06
	record.Descriptor.SubClass = 0x01
	record.Descriptor.Protocol = 0x01

	assert.Equal(t, []data.Protocol{data.ProtocolMTP}, Protocols(&record))
}

func TestMTPTripleRequiresAllThreeCodes(t *testing.T) {
	record := data.NewDeviceRecord(0x04b0, 0x0422)
	record.Descriptor.Class = 0x06
	// SubClass and Protocol stay absent.
	assert.False(t, IsMTP(&record))
}

func TestAndroidMTPHeuristic(t *testing.T) {
	record := data.NewDeviceRecord(0x2a70, 0x4ee1)
	record.Descriptor.Manufacturer = "Android"
	record.Descriptor.Class = 0x00
	assert.True(t, IsMTP(&record))

	record.Descriptor.Class = 0xff
	assert.True(t, IsMTP(&record))

	record.Descriptor.Class = 0x09
	assert.False(t, IsMTP(&record))
}

func TestNoMatchYieldsUnknown(t *testing.T) {
	record := data.NewDeviceRecord(0x1d6b, 0x0002)
	assert.Equal(t, []data.Protocol{data.ProtocolUnknown}, Protocols(&record))
}

func TestTagsAreMonotonic(t *testing.T) {
	record := data.NewDeviceRecord(0x05ac, 0x12a0)
	assert.Equal(t, []data.Protocol{data.ProtocolApple}, Protocols(&record))

	record.AddTag("adb")
	got := Protocols(&record)
	assert.Contains(t, got, data.ProtocolADB)
	assert.Contains(t, got, data.ProtocolApple)
}

func TestTagHelper(t *testing.T) {
	record := data.NewDeviceRecord(0x18d1, 0x4ee2)
	Tag(&record)
	assert.True(t, record.HasTag("adb"))

	unknown := data.NewDeviceRecord(0x1d6b, 0x0003)
	Tag(&unknown)
	assert.Empty(t, unknown.Tags, "unknown must not become a tag")
}

func TestMultiProtocolDevice(t *testing.T) {
	record := data.NewDeviceRecord(0x18d1, 0x4ee2)
	record.Descriptor.Manufacturer = "Android"
	record.Descriptor.Class = 0xff

	got := Protocols(&record)
	assert.Contains(t, got, data.ProtocolADB)
	assert.Contains(t, got, data.ProtocolMTP)
}
