// Package slipserial carries the OTA command and data channels over a
// SLIP-framed UART bridge. Every SLIP frame starts with a one-byte channel
// discriminator; notifications arrive the same way in the other direction.
package slipserial

import (
	"fmt"
	"sync"

	"github.com/lumendev/lumen-ota/internal/slip"
	"github.com/lumendev/lumen-ota/internal/transport"
)

// Channel discriminators, first byte of every frame body.
const (
	chanCommand = 0x01
	chanData    = 0x02
)

// encodeFrame builds the SLIP frame for one channel write.
func encodeFrame(channel byte, payload []byte) []byte {
	body := make([]byte, 0, 1+len(payload))
	body = append(body, channel)
	body = append(body, payload...)
	return slip.Encode(body)
}

// splitFrame separates a decoded frame body into channel and payload.
func splitFrame(body []byte) (channel byte, payload []byte, err error) {
	if len(body) < 1 {
		return 0, nil, fmt.Errorf("empty bridge frame")
	}
	switch body[0] {
	case chanCommand, chanData:
		return body[0], body[1:], nil
	default:
		return 0, nil, fmt.Errorf("unknown bridge channel 0x%02X", body[0])
	}
}

// Transport is a transport.Transport over the UART bridge.
type Transport struct {
	port *Port

	writeMu sync.Mutex

	mu sync.Mutex
	cb transport.Callbacks

	closed    chan struct{}
	closeOnce sync.Once
}

// Dial opens the bridge on the given port and flushes any stale input.
func Dial(portName string, baudRate int) (*Transport, error) {
	port, err := Open(portName, baudRate)
	if err != nil {
		return nil, err
	}
	port.Flush()

	return &Transport{
		port:   port,
		closed: make(chan struct{}),
	}, nil
}

// WriteCommand sends a frame on the command channel.
func (t *Transport) WriteCommand(data []byte) error {
	return t.write(chanCommand, data)
}

// WriteData sends a frame on the data channel.
func (t *Transport) WriteData(data []byte) error {
	return t.write(chanData, data)
}

func (t *Transport) write(channel byte, data []byte) error {
	t.writeMu.Lock()
	defer t.writeMu.Unlock()

	if _, err := t.port.Write(encodeFrame(channel, data)); err != nil {
		return fmt.Errorf("bridge write: %w", err)
	}
	return nil
}

// Subscribe registers the callbacks and starts the notification reader.
func (t *Transport) Subscribe(cb transport.Callbacks) error {
	t.mu.Lock()
	t.cb = cb
	t.mu.Unlock()

	go t.readLoop()
	return nil
}

// Close tears the bridge down. The reader exits without signalling a
// disconnect for a local close.
func (t *Transport) Close() error {
	t.closeOnce.Do(func() { close(t.closed) })
	return t.port.Close()
}

func (t *Transport) readLoop() {
	var buf []byte
	chunk := make([]byte, 256)

	for {
		n, err := t.port.Read(chunk)
		select {
		case <-t.closed:
			return
		default:
		}

		if n > 0 {
			var frames [][]byte
			frames, buf = slip.Feed(buf, chunk[:n])
			for _, frame := range frames {
				t.dispatch(frame)
			}
		}

		// A poll timeout is n == 0 with a nil error; anything else means
		// the port is gone.
		if err != nil {
			t.mu.Lock()
			onDisconnect := t.cb.OnDisconnect
			t.mu.Unlock()
			if onDisconnect != nil {
				onDisconnect(fmt.Errorf("bridge read: %w", err))
			}
			return
		}
	}
}

func (t *Transport) dispatch(frame []byte) {
	channel, payload, err := splitFrame(frame)
	if err != nil {
		// Line noise that survived SLIP framing; drop it.
		return
	}

	t.mu.Lock()
	cb := t.cb
	t.mu.Unlock()

	switch channel {
	case chanCommand:
		if cb.OnCommandNotification != nil {
			cb.OnCommandNotification(payload)
		}
	case chanData:
		if cb.OnDataNotification != nil {
			cb.OnDataNotification(payload)
		}
	}
}
