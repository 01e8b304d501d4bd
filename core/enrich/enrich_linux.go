//go:build linux

// Package enrich fills the OS-specific fields of scanned device records:
// driver bindings, stable port paths, and raw platform data from sysfs.
package enrich

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/thoas/go-funk"

	"github.com/pixfid/bootforge/core/scanner"
	"github.com/pixfid/bootforge/data"
)

// Sysfs returns an enricher reading driver bindings from the given sysfs
// root, normally scanner.DefaultSysfsRoot. Every failure leaves the record
// as the scanner produced it.
func Sysfs(root string) scanner.Enricher {
	return func(records []data.DeviceRecord) {
		for i := range records {
			enrichRecord(root, &records[i])
		}
	}
}

func enrichRecord(root string, record *data.DeviceRecord) {
	portPath := record.Location.PortPath
	if portPath == "" {
		portPath = findPortPath(root, record.Location)
		record.Location.PortPath = portPath
	}
	if portPath == "" {
		return
	}

	deviceDir := filepath.Join(root, portPath)
	if raw, err := os.ReadFile(filepath.Join(deviceDir, "uevent")); err == nil {
		record.RawData = string(raw)
	}
	record.Driver = driverStatus(root, portPath)
}

// findPortPath locates the sysfs directory whose busnum/devnum match the
// record's transient address.
func findPortPath(root string, loc data.DeviceLocation) string {
	if loc.Bus == data.CodeUnknown || loc.Address == data.CodeUnknown {
		return ""
	}

	entries, err := os.ReadDir(root)
	if err != nil {
		return ""
	}
	for _, entry := range entries {
		name := entry.Name()
		if strings.ContainsRune(name, ':') || strings.HasPrefix(name, "usb") {
			continue
		}
		dir := filepath.Join(root, name)
		if readInt(filepath.Join(dir, "busnum")) == loc.Bus &&
			readInt(filepath.Join(dir, "devnum")) == loc.Address {
			return name
		}
	}
	return ""
}

// driverStatus inspects the device's interface nodes and classifies the
// union of their driver bindings.
func driverStatus(root, portPath string) data.DriverStatus {
	entries, err := os.ReadDir(root)
	if err != nil {
		return data.DriverStatus{State: data.DriverUnknown}
	}

	var names []string
	interfaces := 0
	for _, entry := range entries {
		name := entry.Name()
		if !strings.HasPrefix(name, portPath+":") {
			continue
		}
		interfaces++
		target, err := os.Readlink(filepath.Join(root, name, "driver"))
		if err != nil {
			continue
		}
		names = append(names, filepath.Base(target))
	}

	if interfaces == 0 {
		return data.DriverStatus{State: data.DriverUnknown}
	}

	names = funk.UniqString(names)
	switch len(names) {
	case 0:
		return data.DriverStatus{State: data.DriverMissing}
	case 1:
		return data.DriverStatus{State: data.DriverBound, Name: names[0]}
	default:
		return data.DriverStatus{State: data.DriverMultiple, Names: names}
	}
}

func readInt(path string) int {
	raw, err := os.ReadFile(path)
	if err != nil {
		return data.CodeUnknown
	}
	n, err := strconv.Atoi(strings.TrimSpace(string(raw)))
	if err != nil {
		return data.CodeUnknown
	}
	return n
}
