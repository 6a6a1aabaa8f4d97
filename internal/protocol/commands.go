package protocol

import (
	"encoding/binary"
	"fmt"
)

// CommandAck is an application-layer acknowledgement for a command sent on
// the command channel.
type CommandAck struct {
	Opcode uint16
	Status uint16
}

// SectorAck is an application-layer acknowledgement for one transferred
// sector, delivered on the data notification path.
type SectorAck struct {
	SectorIndex uint16
	Status      uint16
}

// EncodeStartCommand builds the transfer start command.
// Format: opcode 0x0001, 32-bit image length, all little-endian.
func EncodeStartCommand(imageLen uint32) []byte {
	buf := make([]byte, 6)
	binary.LittleEndian.PutUint16(buf[0:2], OpStart)
	binary.LittleEndian.PutUint32(buf[2:6], imageLen)
	return buf
}

// EncodeFinishCommand builds the transfer finish command.
// Format: opcode 0x0002. Any fixed-frame padding is the transport's job.
func EncodeFinishCommand() []byte {
	buf := make([]byte, 2)
	binary.LittleEndian.PutUint16(buf, OpFinish)
	return buf
}

// DecodeCommandAck parses a command-channel notification.
// Format: ack type 0x0003, original opcode, status, all 16-bit
// little-endian. Notifications with a different leading type are not
// command acknowledgements and are reported as an error for the caller to
// drop.
func DecodeCommandAck(data []byte) (*CommandAck, error) {
	if len(data) < 6 {
		return nil, fmt.Errorf("command notification too short: %d bytes", len(data))
	}

	ackType := binary.LittleEndian.Uint16(data[0:2])
	if ackType != AckTypeCommand {
		return nil, fmt.Errorf("unexpected notification type 0x%04X", ackType)
	}

	return &CommandAck{
		Opcode: binary.LittleEndian.Uint16(data[2:4]),
		Status: binary.LittleEndian.Uint16(data[4:6]),
	}, nil
}

// DecodeSectorAck parses a data-channel notification.
// Format: 16-bit sector index, 16-bit status, little-endian.
func DecodeSectorAck(data []byte) (*SectorAck, error) {
	if len(data) < 4 {
		return nil, fmt.Errorf("sector notification too short: %d bytes", len(data))
	}

	return &SectorAck{
		SectorIndex: binary.LittleEndian.Uint16(data[0:2]),
		Status:      binary.LittleEndian.Uint16(data[2:4]),
	}, nil
}
