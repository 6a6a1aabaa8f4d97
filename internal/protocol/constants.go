package protocol

import "time"

// OTA command opcodes (16-bit little-endian on the wire)
const (
	OpStart  = 0x0001
	OpFinish = 0x0002
)

// AckTypeCommand identifies a command-acknowledgement notification.
// Command notifications with any other leading 16-bit type are not
// acknowledgements and must be ignored.
const AckTypeCommand = 0x0003

// Sector and packet geometry
const (
	SectorSize = 4096

	// SeqTerminal marks the last packet of a sector. It is reserved and
	// never used as a real sequence number.
	SeqTerminal = 0xFF

	PacketHeaderSize = 3
)

// Packet payload sizes per throughput mode.
// Safe mode fits the 23-byte default ATT MTU; fast mode assumes a
// negotiated 247-byte MTU minus the 3-byte ATT header.
const (
	PayloadSizeSafe = 20
	PayloadSizeFast = 244
)

// Timing
const (
	// AckTimeout bounds every wait for a command or sector acknowledgement.
	AckTimeout = 12 * time.Second

	// PacketDelaySafe is the inter-packet gap in safe mode. The link drops
	// writes issued faster than its buffer drains at the default MTU.
	PacketDelaySafe = 12 * time.Millisecond
)

// StatusOK is the device status meaning "accepted". Any other value is a
// device-side rejection of the command or sector it acknowledges.
const StatusOK = 0x0000
