package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/lumendev/lumen-ota/internal/detect"
	"github.com/lumendev/lumen-ota/internal/session"
	"github.com/lumendev/lumen-ota/internal/transport"
	"github.com/lumendev/lumen-ota/internal/transport/ble"
	"github.com/lumendev/lumen-ota/internal/transport/slipserial"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

var (
	addressFlag string
	nameFlag    string
	serialFlag  bool
	portFlag    string
	baudFlag    int
	fastFlag    bool
	verboseFlag bool
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "lumen-ota",
		Short: "Push firmware to Lumen devices over BLE or a UART bridge",
		Long: `Lumen OTA is a cross-platform tool for delivering firmware images
to Lumen wearable devices.

The default link is BLE; the factory-line UART bridge is available
with --serial.`,
	}

	flashCmd := &cobra.Command{
		Use:   "flash <firmware.bin>",
		Short: "Transfer a firmware image to a device",
		Long: `Transfer a firmware image to a Lumen device.

Over BLE, the device is found by --address or by its advertised
--name. Over the UART bridge (--serial), the port is auto-detected
unless --port is given.

Safe mode paces packets for the default link buffer; --fast assumes
a negotiated MTU and disables pacing.`,
		Args: cobra.ExactArgs(1),
		RunE: runFlash,
	}
	flashCmd.Flags().StringVarP(&addressFlag, "address", "a", "", "BLE device address")
	flashCmd.Flags().StringVarP(&nameFlag, "name", "n", "Lumen", "BLE advertised device name")
	flashCmd.Flags().BoolVar(&serialFlag, "serial", false, "Use the UART bridge instead of BLE")
	flashCmd.Flags().StringVarP(&portFlag, "port", "p", "", "Serial port (auto-detect if not specified)")
	flashCmd.Flags().IntVarP(&baudFlag, "baud", "b", slipserial.DefaultBaudRate, "Baud rate")
	flashCmd.Flags().BoolVar(&fastFlag, "fast", false, "Fast mode: larger packets, no inter-packet delay")
	flashCmd.Flags().BoolVarP(&verboseFlag, "verbose", "v", false, "Verbose transfer logging")

	portsCmd := &cobra.Command{
		Use:   "ports",
		Short: "List serial ports and detected bridges",
		RunE:  runPorts,
	}

	versionCmd := &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("lumen-ota %s (commit %s, built %s)\n", version, commit, date)
		},
	}

	rootCmd.AddCommand(flashCmd, portsCmd, versionCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func runFlash(cmd *cobra.Command, args []string) error {
	firmwarePath := args[0]

	firmware, err := os.ReadFile(firmwarePath)
	if err != nil {
		return fmt.Errorf("failed to read firmware file: %w", err)
	}

	fmt.Printf("Firmware: %s (%d bytes)\n", firmwarePath, len(firmware))

	tr, err := openTransport()
	if err != nil {
		return err
	}
	defer tr.Close()

	opts := []session.Option{}
	if verboseFlag {
		logger, err := zap.NewDevelopment()
		if err != nil {
			return fmt.Errorf("failed to build logger: %w", err)
		}
		defer logger.Sync()
		opts = append(opts, session.WithLogger(logger.Sugar()))
	}

	s, err := session.New(tr, opts...)
	if err != nil {
		return fmt.Errorf("failed to set up session: %w", err)
	}

	// Ctrl-C aborts the transfer cleanly instead of leaving the device
	// mid-sector.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	go func() {
		<-ctx.Done()
		s.Abort()
	}()

	mode := "safe"
	if fastFlag {
		mode = "fast"
	}
	fmt.Printf("Transferring in %s mode...\n", mode)

	events, err := s.Start(ctx, firmware, session.Config{FastMode: fastFlag})
	if err != nil {
		return err
	}

	bar := progressbar.NewOptions(100,
		progressbar.OptionSetDescription("Transferring"),
		progressbar.OptionSetWidth(40),
		progressbar.OptionShowBytes(false),
		progressbar.OptionSetPredictTime(true),
		progressbar.OptionThrottle(100*time.Millisecond),
		progressbar.OptionClearOnFinish(),
	)

	for ev := range events {
		bar.Set(ev.Percent)
		if !ev.Terminal {
			continue
		}

		if ev.Err != nil {
			bar.Finish()
			return fmt.Errorf("transfer failed after %d/%d sectors: %w",
				ev.SectorsDone, ev.TotalSectors, ev.Err)
		}

		bar.Finish()
		fmt.Printf("\nTransfer complete: %d bytes in %d sectors (%s)\n",
			ev.BytesWritten, ev.TotalSectors, ev.Elapsed.Round(10*time.Millisecond))
	}

	return nil
}

func openTransport() (transport.Transport, error) {
	if !serialFlag {
		fmt.Println("Scanning for device...")
		tr, err := ble.Dial(ble.Options{Address: addressFlag, Name: nameFlag})
		if err != nil {
			return nil, fmt.Errorf("BLE connection failed: %w", err)
		}
		fmt.Println("Connected over BLE")
		return tr, nil
	}

	portName := portFlag
	if portName == "" {
		fmt.Println("Detecting bridge...")
		result, err := detect.Bridge()
		if err != nil {
			return nil, err
		}
		portName = result.Port
		fmt.Printf("Found bridge on %s\n", portName)
	}

	tr, err := slipserial.Dial(portName, baudFlag)
	if err != nil {
		return nil, fmt.Errorf("failed to open bridge: %w", err)
	}
	fmt.Printf("Port: %s @ %d baud\n", portName, baudFlag)
	return tr, nil
}

func runPorts(cmd *cobra.Command, args []string) error {
	ports, err := slipserial.ListPorts()
	if err != nil {
		return err
	}

	if len(ports) == 0 {
		fmt.Println("No serial ports found")
		return nil
	}

	fmt.Println("Available serial ports:")
	for _, p := range ports {
		fmt.Printf("  %s\n", p)
	}

	bridges, err := detect.BridgePorts()
	if err != nil {
		return err
	}
	if len(bridges) > 0 {
		fmt.Println("\nDetected Lumen bridges:")
		for _, b := range bridges {
			fmt.Printf("  %s", b.Port)
			if b.SerialNumber != "" {
				fmt.Printf(" (serial %s)", b.SerialNumber)
			}
			fmt.Println()
		}
	}

	return nil
}
