package cmd

import (
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/i582/cfmt/cmd/cfmt"
	"github.com/spf13/cobra"

	"github.com/pixfid/bootforge/core/classify"
	"github.com/pixfid/bootforge/core/enrich"
	"github.com/pixfid/bootforge/core/report"
	"github.com/pixfid/bootforge/core/scanner"
	"github.com/pixfid/bootforge/data"
	"github.com/pixfid/bootforge/usbids"
)

var (
	// Filter flags
	filterTag    string
	filterVendor string
	usbidsPath   string
	noEnrich     bool

	// Export flags
	listExport   bool
	exportFormat string
	exportFile   string
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "Enumerate and classify attached USB devices",
	Long: `Enumerate attached USB devices, classify the protocols they
appear to speak, and print or export the snapshot.

Examples:
  # Print all devices
  bootforge list

  # Only ADB-capable devices
  bootforge list --tag adb

  # Only one vendor, exported as PDF
  bootforge list --vendor 05ac --export --format pdf --output devices`,
	RunE: runList,
}

func init() {
	rootCmd.AddCommand(listCmd)

	listCmd.Flags().StringVarP(&filterTag, "tag", "t", "", "show only devices carrying a tag (adb, fastboot, apple, mtp)")
	listCmd.Flags().StringVarP(&filterVendor, "vendor", "v", "", "show only devices of a vendor (hex VID)")
	listCmd.Flags().StringVarP(&usbidsPath, "usbids", "U", "", "USB IDs database path")
	listCmd.Flags().BoolVar(&noEnrich, "no-enrich", false, "skip sysfs driver/port enrichment")

	listCmd.Flags().BoolVarP(&listExport, "export", "e", false, "export the snapshot instead of printing")
	listCmd.Flags().StringVarP(&exportFormat, "format", "F", "", "export format (json, xml, pdf)")
	listCmd.Flags().StringVarP(&exportFile, "output", "o", "devices", "export filename (without extension)")
}

func runList(cmd *cobra.Command, args []string) error {
	loadUSBIDs()

	records, err := scanDevices().Scan()
	if err != nil {
		return err
	}
	for i := range records {
		classify.Tag(&records[i])
	}
	_, _ = cfmt.Println(cfmt.Sprintf("{{[%v] Found %d devices}}::green", time.Now().Format(time.Stamp), len(records)))

	if filterTag != "" {
		records = report.FilterByTag(records, filterTag)
	}
	if filterVendor != "" {
		vid, err := strconv.ParseUint(filterVendor, 16, 16)
		if err != nil {
			return err
		}
		records = report.FilterByVendor(records, uint16(vid))
	}

	if listExport {
		format := exportFormat
		if format == "" {
			format = configLoaded.Export.Format
		}
		target := filepath.Join(configLoaded.Export.Path, exportFile)
		if err := report.Export(records, format, target); err != nil {
			return err
		}
		_, _ = cfmt.Println(cfmt.Sprintf("{{[%v] Exported %d devices to %s.%s}}::green",
			time.Now().Format(time.Stamp), len(records), target, format))
		return nil
	}

	return report.PrintTable(os.Stdout, records)
}

// scanDevices builds the configured scanner: sysfs transport plus the
// driver enricher unless disabled.
func scanDevices() *scanner.Scanner {
	transport := &scanner.SysfsTransport{Root: configLoaded.SysfsRoot}
	s := scanner.New(transport)
	if !noEnrich {
		s.WithEnricher(enrich.Sysfs(configLoaded.SysfsRoot))
	}
	return s
}

// loadUSBIDs loads the usb.ids database best-effort; lookups degrade to
// empty names without it.
func loadUSBIDs() {
	path := usbidsPath
	if path == "" {
		path = configLoaded.UsbIds
	}
	if _, err := os.Stat(path); err != nil {
		return
	}
	if err := usbids.LoadFromFile(path); err != nil {
		_, _ = cfmt.Println(cfmt.Sprintf("{{[%v] Warning: cannot load usb.ids: %s}}::yellow",
			time.Now().Format(time.Stamp), err.Error()))
	}
}

// tagSummary renders a record's protocol tags for event output.
func tagSummary(record *data.DeviceRecord) string {
	if len(record.Tags) == 0 {
		return "unknown"
	}
	out := record.Tags[0]
	for _, tag := range record.Tags[1:] {
		out += "," + tag
	}
	return out
}
