// Package report renders device snapshots for humans and exports them for
// machines: console tables, JSON, XML, and PDF.
package report

import (
	"encoding/json"
	"encoding/xml"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/jung-kurt/gofpdf"
	"github.com/olekukonko/tablewriter"
	"github.com/thoas/go-funk"

	"github.com/pixfid/bootforge/data"
	"github.com/pixfid/bootforge/usbids"
)

// FilterByTag keeps records carrying the tag, case-insensitive.
func FilterByTag(records []data.DeviceRecord, tag string) []data.DeviceRecord {
	return funk.Filter(records, func(record data.DeviceRecord) bool {
		return record.HasTag(tag)
	}).([]data.DeviceRecord)
}

// FilterByVendor keeps records of one vendor.
func FilterByVendor(records []data.DeviceRecord, vendorID uint16) []data.DeviceRecord {
	return funk.Filter(records, func(record data.DeviceRecord) bool {
		return record.ID.VendorID == vendorID
	}).([]data.DeviceRecord)
}

// manufacturerName falls back to the usb.ids database when the device did
// not report a manufacturer string.
func manufacturerName(record *data.DeviceRecord) string {
	if record.Descriptor.Manufacturer != "" {
		return record.Descriptor.Manufacturer
	}
	vendor, _ := usbids.FindDevice(record.ID.VendorID, record.ID.ProductID)
	return vendor
}

func productName(record *data.DeviceRecord) string {
	if record.Descriptor.Product != "" {
		return record.Descriptor.Product
	}
	_, product := usbids.FindDevice(record.ID.VendorID, record.ID.ProductID)
	return product
}

func driverLabel(record *data.DeviceRecord) string {
	switch record.Driver.State {
	case data.DriverBound:
		return record.Driver.Name
	case data.DriverMissing:
		return "none"
	case data.DriverBlocked:
		return "blocked"
	case data.DriverMultiple:
		return strings.Join(record.Driver.Names, ",")
	}
	return "-"
}

func location(record *data.DeviceRecord) string {
	if record.Location.PortPath != "" {
		return record.Location.PortPath
	}
	if record.Location.Bus == data.CodeUnknown {
		return "-"
	}
	return fmt.Sprintf("%d:%d", record.Location.Bus, record.Location.Address)
}

func row(record *data.DeviceRecord) []string {
	return []string{
		location(record),
		fmt.Sprintf("%04x", record.ID.VendorID),
		fmt.Sprintf("%04x", record.ID.ProductID),
		manufacturerName(record),
		productName(record),
		record.Descriptor.SerialNumber,
		driverLabel(record),
		strings.Join(record.Tags, ","),
	}
}

var (
	serialColor = color.New(color.FgHiRed)
	driverColor = color.New(color.FgGreen)
)

// PrintTable renders the device list as a bordered console table.
func PrintTable(w io.Writer, records []data.DeviceRecord) error {
	table := tablewriter.NewWriter(w)
	table.Header("Port", "VID", "PID", "Manufacturer", "Product", "Serial Number", "Driver", "Tags")

	for i := range records {
		cells := row(&records[i])
		cells[5] = serialColor.Sprint(cells[5])
		if records[i].Driver.State == data.DriverBound {
			cells[6] = driverColor.Sprint(cells[6])
		}
		if err := table.Append(cells); err != nil {
			return err
		}
	}
	return table.Render()
}

// Export writes the records as fileName.<format> next to the caller.
// Formats: json, xml, pdf.
func Export(records []data.DeviceRecord, format, fileName string) error {
	fn := fmt.Sprintf("%s.%s", fileName, format)

	var exportData []byte
	var err error
	switch format {
	case "json":
		exportData, err = json.MarshalIndent(records, "", " ")
	case "xml":
		exportData, err = xml.MarshalIndent(xmlSnapshot{Devices: records}, "", " ")
	case "pdf":
		return generatePDF(records, fn)
	default:
		return fmt.Errorf("unknown export format: %s", format)
	}
	if err != nil {
		return err
	}
	return os.WriteFile(fn, exportData, 0o644)
}

type xmlSnapshot struct {
	XMLName xml.Name            `xml:"devices"`
	Devices []data.DeviceRecord `xml:"device"`
}

var colWidths = map[string]float64{"L": 25, "V": 15, "P": 15, "M": 60, "PR": 60, "S": 55, "D": 25, "T": 25}
var rowHeight = 6.5

func generatePDF(records []data.DeviceRecord, fn string) error {
	pdf := newReport()
	pdf = pdfHeader(pdf)
	pdf = pdfTable(pdf, records)

	if pdf.Err() {
		return pdf.Error()
	}
	return pdf.OutputFileAndClose(fn)
}

func newReport() *gofpdf.Fpdf {
	pdf := gofpdf.New("L", "mm", "A4", "")
	pdf.AddPage()
	pdf.SetFont("Times", "B", 20)
	pdf.SetTextColor(255, 24, 0)
	pdf.Cell(40, 10, "USB device snapshot")
	pdf.SetTextColor(0, 0, 255)
	pdf.Ln(12)
	pdf.SetFont("Times", "B", 15)
	pdf.Cell(40, 7, time.Now().Format("Mon Jan 2, 2006"))
	pdf.Ln(20)
	pdf.SetTextColor(0, 0, 0)
	return pdf
}

func pdfHeader(pdf *gofpdf.Fpdf) *gofpdf.Fpdf {
	pdf.SetFont("Times", "B", 12)
	pdf.SetFillColor(240, 240, 240)
	pdf.CellFormat(colWidths["L"], rowHeight, "PORT", "1", 0, "", true, 0, "")
	pdf.CellFormat(colWidths["V"], rowHeight, "VID", "1", 0, "", true, 0, "")
	pdf.CellFormat(colWidths["P"], rowHeight, "PID", "1", 0, "", true, 0, "")
	pdf.CellFormat(colWidths["M"], rowHeight, "MANUFACTURER", "1", 0, "", true, 0, "")
	pdf.CellFormat(colWidths["PR"], rowHeight, "PRODUCT", "1", 0, "", true, 0, "")
	pdf.CellFormat(colWidths["S"], rowHeight, "SERIAL NUMBER", "1", 0, "", true, 0, "")
	pdf.CellFormat(colWidths["D"], rowHeight, "DRIVER", "1", 0, "", true, 0, "")
	pdf.CellFormat(colWidths["T"], rowHeight, "TAGS", "1", 0, "", true, 0, "")
	return pdf
}

func pdfTable(pdf *gofpdf.Fpdf, records []data.DeviceRecord) *gofpdf.Fpdf {
	pdf.SetFont("Helvetica", "", 10)
	pdf.SetFillColor(255, 255, 255)
	pdf.Ln(-1)

	for i := range records {
		cells := row(&records[i])
		pdf.SetTextColor(75, 177, 24)
		pdf.CellFormat(colWidths["L"], rowHeight, cells[0], "1", 0, "L", true, 0, "")
		pdf.SetTextColor(0, 0, 0)
		pdf.CellFormat(colWidths["V"], rowHeight, cells[1], "1", 0, "L", false, 0, "")
		pdf.CellFormat(colWidths["P"], rowHeight, cells[2], "1", 0, "L", false, 0, "")
		pdf.CellFormat(colWidths["M"], rowHeight, cells[3], "1", 0, "L", false, 0, "")
		pdf.CellFormat(colWidths["PR"], rowHeight, cells[4], "1", 0, "L", false, 0, "")
		pdf.SetTextColor(255, 24, 0)
		pdf.CellFormat(colWidths["S"], rowHeight, cells[5], "1", 0, "L", false, 0, "")
		pdf.SetTextColor(0, 0, 0)
		pdf.CellFormat(colWidths["D"], rowHeight, cells[6], "1", 0, "L", false, 0, "")
		pdf.CellFormat(colWidths["T"], rowHeight, cells[7], "1", 0, "L", false, 0, "")
		pdf.Ln(-1)
	}
	return pdf
}
