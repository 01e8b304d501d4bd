// Package usbids resolves vendor and product names from the usb.ids
// repository database.
package usbids

import (
	"bufio"
	"os"
	"regexp"
	"strconv"
	"strings"
)

var (
	vendors    = map[uint16]*Vendor{}
	vendorLine = regexp.MustCompile(`^([[:xdigit:]]{4})\s{2}(.+)$`)
	deviceLine = regexp.MustCompile(`^\t([[:xdigit:]]{4})\s{2}(.+)$`)
)

type Vendor struct {
	ID      uint16
	Name    string
	Product map[uint16]*Device
}

type Device struct {
	ID   uint16
	Name string
}

// LoadFromFile parses a usb.ids file into the package database. The vendor
// block ends at the first class/subclass section of the file.
func LoadFromFile(path string) error {
	file, err := os.Open(path)
	if err != nil {
		return err
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	buf := make([]byte, 0, 64*1024)
	scanner.Buffer(buf, 1024*1024)

	var currVendor *Vendor
	for scanner.Scan() {
		line := scanner.Text()
		if len(line) == 0 || strings.HasPrefix(line, `#`) {
			continue
		}
		if result := vendorLine.FindStringSubmatch(line); len(result) != 0 {
			id, err := strconv.ParseUint(result[1], 16, 16)
			if err != nil {
				continue
			}
			currVendor = &Vendor{
				ID:      uint16(id),
				Name:    result[2],
				Product: map[uint16]*Device{},
			}
			vendors[currVendor.ID] = currVendor
		} else if result := deviceLine.FindStringSubmatch(line); len(result) != 0 {
			if currVendor == nil {
				continue
			}
			id, err := strconv.ParseUint(result[1], 16, 16)
			if err != nil {
				continue
			}
			currVendor.Product[uint16(id)] = &Device{
				ID:   uint16(id),
				Name: result[2],
			}
		} else {
			break
		}
	}
	return scanner.Err()
}

// FindDevice returns the vendor and product names for an identity pair.
// An unknown product under a known vendor still returns the vendor name.
func FindDevice(vid, pid uint16) (string, string) {
	vendor := vendors[vid]
	if vendor == nil {
		return "", ""
	}
	if product := vendor.Product[pid]; product != nil {
		return vendor.Name, product.Name
	}
	return vendor.Name, ""
}
