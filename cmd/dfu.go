package cmd

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/i582/cfmt/cmd/cfmt"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/pixfid/bootforge/core/dfu"
	"github.com/pixfid/bootforge/core/remote"
	"github.com/pixfid/bootforge/data"
	"github.com/pixfid/bootforge/usb"
)

var (
	// Device selection flags
	dfuDevice       string
	dfuInterface    int
	dfuTransferSize int
	dfuTimeoutMs    int

	// Download flags
	dfuFile       string
	dfuRemoteHost string
	dfuRemotePath string

	// Upload flags
	dfuOutput  string
	dfuMaxSize int

	// Detach flags
	dfuDetachTimeout int
)

var dfuCmd = &cobra.Command{
	Use:   "dfu",
	Short: "Drive DFU-class firmware operations",
	Long: `Drive USB Device Firmware Upgrade operations against a DFU-mode
device: flash an image, read one back, or detach a runtime-mode device
into its bootloader.

Examples:
  # Flash a local image
  bootforge dfu download --device 0483:df11 --file firmware.bin

  # Flash an image straight from a build server
  bootforge dfu download --device 0483:df11 --remote-host build01 --remote-path /srv/fw/app.bin.gz

  # Read back up to 1 MiB of flash
  bootforge dfu upload --device 0483:df11 --output dump.bin --max-size 1048576`,
}

var dfuDownloadCmd = &cobra.Command{
	Use:   "download",
	Short: "Flash a firmware image onto the device",
	RunE:  runDFUDownload,
}

var dfuUploadCmd = &cobra.Command{
	Use:   "upload",
	Short: "Read the firmware image back from the device",
	RunE:  runDFUUpload,
}

var dfuDetachCmd = &cobra.Command{
	Use:   "detach",
	Short: "Ask a runtime-mode device to re-enumerate into DFU mode",
	RunE:  runDFUDetach,
}

func init() {
	rootCmd.AddCommand(dfuCmd)
	dfuCmd.AddCommand(dfuDownloadCmd, dfuUploadCmd, dfuDetachCmd)

	dfuCmd.PersistentFlags().StringVarP(&dfuDevice, "device", "d", "", "target device as VID:PID in hex [required]")
	dfuCmd.PersistentFlags().IntVar(&dfuInterface, "interface", 0, "DFU interface number")
	dfuCmd.PersistentFlags().IntVar(&dfuTransferSize, "transfer-size", 0, "block size in bytes")
	dfuCmd.PersistentFlags().IntVar(&dfuTimeoutMs, "timeout", 0, "control transfer timeout in milliseconds")
	_ = dfuCmd.MarkPersistentFlagRequired("device")

	dfuDownloadCmd.Flags().StringVarP(&dfuFile, "file", "f", "", "local firmware image")
	dfuDownloadCmd.Flags().StringVar(&dfuRemoteHost, "remote-host", "", "firmware server name from config file")
	dfuDownloadCmd.Flags().StringVar(&dfuRemotePath, "remote-path", "", "firmware path on the remote server")

	dfuUploadCmd.Flags().StringVarP(&dfuOutput, "output", "o", "firmware.bin", "output file")
	dfuUploadCmd.Flags().IntVar(&dfuMaxSize, "max-size", 1<<20, "maximum bytes to read")

	dfuDetachCmd.Flags().IntVar(&dfuDetachTimeout, "detach-timeout", 1000, "detach timeout in milliseconds")
}

func runDFUDownload(cmd *cobra.Command, args []string) error {
	firmware, err := loadFirmware()
	if err != nil {
		return err
	}
	_, _ = cfmt.Println(cfmt.Sprintf("{{[%v] Firmware image: %d bytes}}::green", time.Now().Format(time.Stamp), len(firmware)))

	client, cleanup, err := openDFUClient()
	if err != nil {
		return err
	}
	defer cleanup()

	bar := progressbar.DefaultBytes(int64(len(firmware)), "flashing")
	err = client.Download(firmware, func(transferred, total int) {
		_ = bar.Set(transferred)
	})
	if err != nil {
		return err
	}

	_, _ = cfmt.Println(cfmt.Sprintf("\n{{[%v] Download complete, device state: %s}}::green",
		time.Now().Format(time.Stamp), client.State()))
	return nil
}

func runDFUUpload(cmd *cobra.Command, args []string) error {
	client, cleanup, err := openDFUClient()
	if err != nil {
		return err
	}
	defer cleanup()

	bar := progressbar.DefaultBytes(int64(dfuMaxSize), "reading")
	firmware, err := client.Upload(dfuMaxSize, func(transferred, total int) {
		_ = bar.Set(transferred)
	})
	if err != nil {
		return err
	}

	if err := os.WriteFile(dfuOutput, firmware, 0o644); err != nil {
		return err
	}
	_, _ = cfmt.Println(cfmt.Sprintf("\n{{[%v] Read %d bytes into %s}}::green",
		time.Now().Format(time.Stamp), len(firmware), dfuOutput))
	return nil
}

func runDFUDetach(cmd *cobra.Command, args []string) error {
	client, cleanup, err := openDFUClient()
	if err != nil {
		return err
	}
	defer cleanup()

	if err := client.Detach(uint16(dfuDetachTimeout)); err != nil {
		return err
	}
	_, _ = cfmt.Println(cfmt.Sprintf("{{[%v] Detach requested, device will re-enumerate}}::green",
		time.Now().Format(time.Stamp)))
	return nil
}

// openDFUClient locates the target device, opens it through usbfs, claims
// the DFU interface, and wires up a client with the configured tuning.
func openDFUClient() (*dfu.Client, func(), error) {
	vid, pid, err := parseIdentity(dfuDevice)
	if err != nil {
		return nil, nil, err
	}

	records, err := scanDevices().Scan()
	if err != nil {
		return nil, nil, err
	}

	var target *data.DeviceRecord
	for i := range records {
		if records[i].ID.VendorID == vid && records[i].ID.ProductID == pid {
			target = &records[i]
			break
		}
	}
	if target == nil {
		return nil, nil, usb.New(usb.KindNotFound, fmt.Sprintf("device %s not attached", dfuDevice))
	}
	if target.Location.Bus == data.CodeUnknown || target.Location.Address == data.CodeUnknown {
		return nil, nil, usb.New(usb.KindNotFound, "device has no bus address")
	}

	handle, err := usb.OpenUsbfs(usb.DevicePathFor(target.Location.Bus, target.Location.Address))
	if err != nil {
		return nil, nil, err
	}

	iface := uint8(dfuInterface)
	if err := handle.ClaimInterface(uint32(iface)); err != nil {
		handle.Close()
		return nil, nil, err
	}
	cleanup := func() {
		_ = handle.ReleaseInterface(uint32(iface))
		_ = handle.Close()
	}

	transferSize := dfuTransferSize
	if transferSize == 0 {
		transferSize = configLoaded.DFU.TransferSize
	}
	timeoutMs := dfuTimeoutMs
	if timeoutMs == 0 {
		timeoutMs = configLoaded.DFU.TimeoutMs
	}

	client := dfu.NewClient(handle, iface, uint16(transferSize)).
		WithTimeout(time.Duration(timeoutMs) * time.Millisecond)

	_, _ = cfmt.Println(cfmt.Sprintf("{{[%v] Using %s}}::green", time.Now().Format(time.Stamp), target.String()))
	return client, cleanup, nil
}

// loadFirmware reads the image from a local file or fetches it over SFTP
// when a remote host is named.
func loadFirmware() ([]byte, error) {
	if dfuFile != "" {
		return os.ReadFile(dfuFile)
	}
	if dfuRemoteHost == "" || dfuRemotePath == "" {
		return nil, fmt.Errorf("either --file or --remote-host with --remote-path is required")
	}

	host, err := configLoaded.GetRemoteHost(dfuRemoteHost)
	if err != nil {
		return nil, err
	}
	if host.InsecureSSH {
		_, _ = cfmt.Println(cfmt.Sprintf("{{[%v] WARNING: SSH host key verification is DISABLED!}}::bgRed|white|bold",
			time.Now().Format(time.Stamp)))
	}

	_, _ = cfmt.Println(cfmt.Sprintf("{{[%v] Fetching %s from %s...}}::green",
		time.Now().Format(time.Stamp), dfuRemotePath, host.Name))
	return remote.FetchFirmware(remote.Host{
		Server:         host.IP,
		Port:           host.Port,
		User:           host.User,
		Password:       host.Password,
		KeyFile:        host.SSHKey,
		KnownHostsFile: host.KnownHosts,
	}, dfuRemotePath)
}

func parseIdentity(s string) (uint16, uint16, error) {
	parts := strings.Split(s, ":")
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("device must be VID:PID in hex, got %q", s)
	}
	vid, err := strconv.ParseUint(parts[0], 16, 16)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid vendor id %q", parts[0])
	}
	pid, err := strconv.ParseUint(parts[1], 16, 16)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid product id %q", parts[1])
	}
	return uint16(vid), uint16(pid), nil
}
