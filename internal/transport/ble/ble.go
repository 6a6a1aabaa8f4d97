// Package ble connects to a Lumen device over BLE GATT. The OTA service
// exposes a command characteristic (write + notify) and a data
// characteristic (write-without-response + notify); acknowledgements
// arrive as notifications on the matching characteristic.
package ble

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"tinygo.org/x/bluetooth"

	"github.com/lumendev/lumen-ota/internal/transport"
)

// Lumen OTA GATT identifiers.
const (
	ServiceUUID     = "6e1d0001-b5a3-f393-e0a9-e50e24dcca9e"
	CommandCharUUID = "6e1d0002-b5a3-f393-e0a9-e50e24dcca9e"
	DataCharUUID    = "6e1d0003-b5a3-f393-e0a9-e50e24dcca9e"
)

// DefaultScanTimeout bounds device discovery.
const DefaultScanTimeout = 15 * time.Second

// Options selects the device to connect to. Address wins when both are
// set; Name matches the advertised local name.
type Options struct {
	Address     string
	Name        string
	ScanTimeout time.Duration
}

// Transport is a transport.Transport over a connected BLE device.
type Transport struct {
	adapter *bluetooth.Adapter
	device  bluetooth.Device

	commandChar bluetooth.DeviceCharacteristic
	dataChar    bluetooth.DeviceCharacteristic

	mu sync.Mutex
	cb transport.Callbacks

	closed    chan struct{}
	closeOnce sync.Once
}

// Dial scans for the device, connects, and resolves the OTA service.
func Dial(opts Options) (*Transport, error) {
	if opts.Address == "" && opts.Name == "" {
		return nil, fmt.Errorf("either a device address or a device name is required")
	}
	if opts.ScanTimeout <= 0 {
		opts.ScanTimeout = DefaultScanTimeout
	}

	adapter := bluetooth.DefaultAdapter
	if err := adapter.Enable(); err != nil {
		return nil, fmt.Errorf("failed to enable BLE adapter: %w", err)
	}

	result, err := scan(adapter, opts)
	if err != nil {
		return nil, err
	}

	device, err := adapter.Connect(result.Address, bluetooth.ConnectionParams{})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", result.Address, err)
	}

	t := &Transport{
		adapter: adapter,
		device:  device,
		closed:  make(chan struct{}),
	}
	if err := t.resolveCharacteristics(); err != nil {
		device.Disconnect()
		return nil, err
	}
	return t, nil
}

// scan looks for a matching advertisement until the timeout elapses.
func scan(adapter *bluetooth.Adapter, opts Options) (*bluetooth.ScanResult, error) {
	wantAddr := strings.ToUpper(opts.Address)

	var (
		found bluetooth.ScanResult
		ok    bool
	)
	timer := time.AfterFunc(opts.ScanTimeout, func() { adapter.StopScan() })
	defer timer.Stop()

	err := adapter.Scan(func(adapter *bluetooth.Adapter, result bluetooth.ScanResult) {
		match := false
		if wantAddr != "" {
			match = strings.ToUpper(result.Address.String()) == wantAddr
		} else {
			match = result.LocalName() == opts.Name
		}
		if match {
			found = result
			ok = true
			adapter.StopScan()
		}
	})
	if err != nil {
		return nil, fmt.Errorf("scan failed: %w", err)
	}
	if !ok {
		return nil, fmt.Errorf("device not found within %s", opts.ScanTimeout)
	}
	return &found, nil
}

func (t *Transport) resolveCharacteristics() error {
	serviceUUID, err := bluetooth.ParseUUID(ServiceUUID)
	if err != nil {
		return err
	}
	commandUUID, err := bluetooth.ParseUUID(CommandCharUUID)
	if err != nil {
		return err
	}
	dataUUID, err := bluetooth.ParseUUID(DataCharUUID)
	if err != nil {
		return err
	}

	services, err := t.device.DiscoverServices([]bluetooth.UUID{serviceUUID})
	if err != nil {
		return fmt.Errorf("OTA service discovery failed: %w", err)
	}
	if len(services) == 0 {
		return fmt.Errorf("device does not expose the OTA service")
	}

	chars, err := services[0].DiscoverCharacteristics([]bluetooth.UUID{commandUUID, dataUUID})
	if err != nil {
		return fmt.Errorf("OTA characteristic discovery failed: %w", err)
	}

	resolved := 0
	for _, char := range chars {
		switch char.UUID().String() {
		case CommandCharUUID:
			t.commandChar = char
			resolved++
		case DataCharUUID:
			t.dataChar = char
			resolved++
		}
	}
	if resolved != 2 {
		return fmt.Errorf("OTA service is missing characteristics (%d of 2 found)", resolved)
	}
	return nil
}

// Subscribe enables notifications on both characteristics and installs the
// disconnect watcher.
func (t *Transport) Subscribe(cb transport.Callbacks) error {
	t.mu.Lock()
	t.cb = cb
	t.mu.Unlock()

	err := t.commandChar.EnableNotifications(func(data []byte) {
		t.mu.Lock()
		onCommand := t.cb.OnCommandNotification
		t.mu.Unlock()
		if onCommand != nil {
			onCommand(data)
		}
	})
	if err != nil {
		return fmt.Errorf("failed to enable command notifications: %w", err)
	}

	err = t.dataChar.EnableNotifications(func(data []byte) {
		t.mu.Lock()
		onData := t.cb.OnDataNotification
		t.mu.Unlock()
		if onData != nil {
			onData(data)
		}
	})
	if err != nil {
		return fmt.Errorf("failed to enable data notifications: %w", err)
	}

	t.adapter.SetConnectHandler(func(device bluetooth.Device, connected bool) {
		if connected {
			return
		}
		select {
		case <-t.closed:
			// Local close; not a link loss.
			return
		default:
		}
		t.mu.Lock()
		onDisconnect := t.cb.OnDisconnect
		t.mu.Unlock()
		if onDisconnect != nil {
			onDisconnect(fmt.Errorf("device disconnected"))
		}
	})

	return nil
}

// WriteCommand writes a frame to the command characteristic.
func (t *Transport) WriteCommand(data []byte) error {
	if _, err := t.commandChar.WriteWithoutResponse(data); err != nil {
		return fmt.Errorf("command characteristic write: %w", err)
	}
	return nil
}

// WriteData writes a frame to the data characteristic, unacknowledged at
// the link layer.
func (t *Transport) WriteData(data []byte) error {
	if _, err := t.dataChar.WriteWithoutResponse(data); err != nil {
		return fmt.Errorf("data characteristic write: %w", err)
	}
	return nil
}

// Close disconnects from the device.
func (t *Transport) Close() error {
	t.closeOnce.Do(func() { close(t.closed) })
	return t.device.Disconnect()
}
