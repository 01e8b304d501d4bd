package cmd

import (
	"time"

	"github.com/i582/cfmt/cmd/cfmt"
	"github.com/spf13/cobra"

	"github.com/pixfid/bootforge/core/classify"
	"github.com/pixfid/bootforge/core/watch"
	"github.com/pixfid/bootforge/data"
)

var watchIntervalMs int

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Watch USB hotplug events",
	Long: `Poll the USB bus and print added, removed, and changed devices
as they happen. Stop with Ctrl-C.`,
	RunE: runWatch,
}

func init() {
	rootCmd.AddCommand(watchCmd)
	watchCmd.Flags().IntVarP(&watchIntervalMs, "interval", "i", 0, "poll interval in milliseconds")
}

func runWatch(cmd *cobra.Command, args []string) error {
	loadUSBIDs()

	interval := watchIntervalMs
	if interval == 0 {
		interval = configLoaded.Watch.IntervalMs
	}

	watcher := watch.NewPollWatcher(scanDevices(), time.Duration(interval)*time.Millisecond)
	events, err := watcher.Start()
	if err != nil {
		return err
	}
	defer watcher.Stop()

	_, _ = cfmt.Println(cfmt.Sprintf("{{[%v] Watching for USB events (interval %dms)...}}::green",
		time.Now().Format(time.Stamp), interval))

	for {
		select {
		case <-rootCtx.Done():
			return nil
		case event, ok := <-events:
			if !ok {
				return nil
			}
			printEvent(event)
		}
	}
}

func printEvent(event data.DeviceEvent) {
	record := event.Record
	classify.Tag(&record)

	stamp := time.Now().Format(time.Stamp)
	switch event.Type {
	case data.DeviceAdded:
		_, _ = cfmt.Println(cfmt.Sprintf("{{[%v] + %s [%s]}}::green", stamp, record.String(), tagSummary(&record)))
	case data.DeviceRemoved:
		_, _ = cfmt.Println(cfmt.Sprintf("{{[%v] - %s}}::red", stamp, record.String()))
	case data.DeviceChanged:
		_, _ = cfmt.Println(cfmt.Sprintf("{{[%v] ~ %s [%s]}}::yellow", stamp, record.String(), tagSummary(&record)))
	}
}
