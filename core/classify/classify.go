// Package classify derives the set of application-level protocols a USB
// device appears to speak, from its descriptor codes, vendor/product IDs,
// string descriptors, and any tags already on the record. The result is
// heuristic; callers needing certainty must perform a protocol handshake.
package classify

import (
	"strings"

	"github.com/thoas/go-funk"

	"github.com/pixfid/bootforge/data"
)

// Known vendor IDs.
const (
	vendorGoogle   uint16 = 0x18d1
	vendorSamsung  uint16 = 0x04e8
	vendorApple    uint16 = 0x05ac
	vendorQualcomm uint16 = 0x05c6
)

// Google PIDs exposing an ADB interface.
var googleADBProducts = []uint16{
	0x4ee1, 0x4ee2, 0x4ee3, 0x4ee4, 0x4ee5, 0x4ee6, 0x4ee7,
}

// Samsung PIDs known to carry ADB.
var samsungADBProducts = []uint16{0x6860, 0x6864}

// Google bootloader-mode PIDs.
var googleFastbootProducts = []uint16{0x4ee0, 0xd00d, 0x0d02}

// Qualcomm Emergency Download mode.
const qualcommEDLProduct uint16 = 0x9008

// Apple iPhone/iPad/iPod PIDs.
var appleMobileProducts = []uint16{
	0x1290, 0x1291, 0x1292, 0x1293, 0x12a0, 0x12a1, 0x12a2, 0x12a3,
	0x1294, 0x1297, 0x129a, 0x129c, 0x12ab, 0x12ac,
}

// Protocols evaluates every probe against the record and returns the union
// of matches. The result is never empty; a record matching nothing yields
// {ProtocolUnknown}.
func Protocols(record *data.DeviceRecord) []data.Protocol {
	var protocols []data.Protocol
	if IsADB(record) {
		protocols = append(protocols, data.ProtocolADB)
	}
	if IsFastboot(record) {
		protocols = append(protocols, data.ProtocolFastboot)
	}
	if IsApple(record) {
		protocols = append(protocols, data.ProtocolApple)
	}
	if IsMTP(record) {
		protocols = append(protocols, data.ProtocolMTP)
	}

	if len(protocols) == 0 {
		return []data.Protocol{data.ProtocolUnknown}
	}
	return protocols
}

// Tag runs the probes and adds a tag per matched protocol, skipping
// ProtocolUnknown. Tags already present are kept, so re-tagging after the
// caller adds its own tags only widens the set.
func Tag(record *data.DeviceRecord) {
	for _, protocol := range Protocols(record) {
		if protocol != data.ProtocolUnknown {
			record.AddTag(string(protocol))
		}
	}
}

// IsADB reports whether the device looks like it exposes the Android Debug
// Bridge.
func IsADB(record *data.DeviceRecord) bool {
	vid := record.ID.VendorID
	pid := record.ID.ProductID

	switch vid {
	case vendorGoogle:
		if funk.Contains(googleADBProducts, pid) {
			return true
		}
	case vendorSamsung:
		if funk.Contains(samsungADBProducts, pid) {
			return true
		}
	}

	// Vendor-specific class with an explicit hint in the product string.
	if record.Descriptor.Class == 0xff && containsFold(record.Descriptor.Product, "adb") {
		return true
	}
	return record.HasTag("adb")
}

// IsFastboot reports whether the device looks like an Android bootloader.
func IsFastboot(record *data.DeviceRecord) bool {
	vid := record.ID.VendorID
	pid := record.ID.ProductID

	if vid == vendorGoogle && funk.Contains(googleFastbootProducts, pid) {
		return true
	}
	if vid == vendorQualcomm && pid == qualcommEDLProduct {
		return true
	}
	if containsFold(record.Descriptor.Product, "fastboot") ||
		containsFold(record.Descriptor.Product, "bootloader") {
		return true
	}
	return record.HasTag("fastboot")
}

// IsApple reports whether the device looks like an Apple mobile device.
func IsApple(record *data.DeviceRecord) bool {
	if record.ID.VendorID == vendorApple && funk.Contains(appleMobileProducts, record.ID.ProductID) {
		return true
	}
	if containsFold(record.Descriptor.Manufacturer, "apple") {
		return true
	}
	if containsFold(record.Descriptor.Product, "iphone") ||
		containsFold(record.Descriptor.Product, "ipad") ||
		containsFold(record.Descriptor.Product, "ipod") {
		return true
	}
	return record.HasTag("apple")
}

// IsMTP reports whether the device looks like it speaks the Media Transfer
// Protocol.
func IsMTP(record *data.DeviceRecord) bool {
	desc := record.Descriptor
	if desc.Class == 0x06 && desc.SubClass == 0x01 && desc.Protocol == 0x01 {
		return true
	}
	if containsFold(desc.Product, "mtp") || containsFold(desc.Product, "media transfer") {
		return true
	}
	// Android phones commonly expose MTP behind a composite or
	// vendor-specific device class.
	if containsFold(desc.Manufacturer, "android") && (desc.Class == 0x00 || desc.Class == 0xff) {
		return true
	}
	return record.HasTag("mtp")
}

func containsFold(s, substr string) bool {
	return s != "" && strings.Contains(strings.ToLower(s), substr)
}
