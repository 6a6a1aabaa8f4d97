package slipserial

import (
	"fmt"
	"time"

	"go.bug.st/serial"
)

// DefaultBaudRate of the Lumen factory-line UART bridge.
const DefaultBaudRate = 115200

// readPollInterval bounds each blocking read so the reader can notice a
// locally closed transport.
const readPollInterval = 100 * time.Millisecond

// Port wraps a serial port configured for the bridge.
type Port struct {
	port     serial.Port
	portName string
	baudRate int
}

// Open opens a serial port with the bridge's settings: 8 data bits, no
// parity, one stop bit.
func Open(portName string, baudRate int) (*Port, error) {
	mode := &serial.Mode{
		BaudRate: baudRate,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}

	port, err := serial.Open(portName, mode)
	if err != nil {
		return nil, fmt.Errorf("failed to open port %s: %w", portName, err)
	}

	if err := port.SetReadTimeout(readPollInterval); err != nil {
		port.Close()
		return nil, fmt.Errorf("failed to set read timeout: %w", err)
	}

	return &Port{
		port:     port,
		portName: portName,
		baudRate: baudRate,
	}, nil
}

// Close closes the serial port.
func (p *Port) Close() error {
	if p.port != nil {
		return p.port.Close()
	}
	return nil
}

// Write writes data to the serial port.
func (p *Port) Write(data []byte) (int, error) {
	return p.port.Write(data)
}

// Read reads available data, returning 0 bytes and no error when the poll
// interval elapses with nothing to read.
func (p *Port) Read(buf []byte) (int, error) {
	return p.port.Read(buf)
}

// Flush discards any buffered inbound data.
func (p *Port) Flush() error {
	return p.port.ResetInputBuffer()
}

// PortName returns the port name.
func (p *Port) PortName() string {
	return p.portName
}

// BaudRate returns the configured baud rate.
func (p *Port) BaudRate() int {
	return p.baudRate
}

// ListPorts returns the names of all serial ports on the system.
func ListPorts() ([]string, error) {
	return serial.GetPortsList()
}
