// Package transport defines the link boundary the OTA session drives: two
// unidirectional outbound channels plus asynchronous inbound notifications.
package transport

// Callbacks receives the inbound half of the link. All callbacks may be
// invoked from the transport's own goroutine; implementations must return
// quickly.
type Callbacks struct {
	// OnCommandNotification delivers a raw command-channel notification.
	OnCommandNotification func(data []byte)

	// OnDataNotification delivers a raw data-channel notification.
	OnDataNotification func(data []byte)

	// OnDisconnect signals that the underlying link is gone. Invoked at
	// most once.
	OnDisconnect func(err error)
}

// Transport is a connected two-channel link to a device.
type Transport interface {
	// WriteCommand sends a frame on the command channel. Delivery is
	// acknowledged at the application layer, not here.
	WriteCommand(data []byte) error

	// WriteData sends a frame on the data channel, best effort, no
	// acknowledgement of any kind.
	WriteData(data []byte) error

	// Subscribe registers the inbound callbacks and starts notification
	// delivery. Must be called once, before any write.
	Subscribe(cb Callbacks) error

	// Close tears down the link. Callbacks are not invoked for a local
	// close.
	Close() error
}
