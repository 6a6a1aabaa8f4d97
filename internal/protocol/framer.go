package protocol

import (
	"encoding/binary"
	"fmt"
	"math"
)

// Sector is a contiguous slice of the firmware image, the unit of
// end-to-end acknowledgement. Data aliases the image buffer; it is never
// mutated.
type Sector struct {
	Index uint16
	Data  []byte
}

// Packet is a link-sized slice of a sector, the unit of raw transmission.
// The last packet of a sector carries SeqTerminal instead of a sequence
// number.
type Packet struct {
	SectorIndex uint16
	Seq         byte
	Payload     []byte
}

// Sectors partitions an image into sectors of at most sectorSize bytes.
// Indices are contiguous from 0 and the lengths sum to len(image); the
// last sector may be shorter. A zero-length image yields no sectors.
func Sectors(image []byte, sectorSize int) []Sector {
	if sectorSize <= 0 {
		return nil
	}

	count := (len(image) + sectorSize - 1) / sectorSize
	sectors := make([]Sector, 0, count)

	for i := 0; i < count; i++ {
		start := i * sectorSize
		end := start + sectorSize
		if end > len(image) {
			end = len(image)
		}
		sectors = append(sectors, Sector{
			Index: uint16(i),
			Data:  image[start:end],
		})
	}

	return sectors
}

// Packets partitions the sector into packets of at most payloadSize bytes.
// Sequence numbers are assigned in transmission order from 0; the final
// packet carries SeqTerminal and may be shorter than payloadSize.
func (s Sector) Packets(payloadSize int) []Packet {
	if payloadSize <= 0 || len(s.Data) == 0 {
		return nil
	}

	count := (len(s.Data) + payloadSize - 1) / payloadSize
	packets := make([]Packet, 0, count)

	for i := 0; i < count; i++ {
		start := i * payloadSize
		end := start + payloadSize
		if end > len(s.Data) {
			end = len(s.Data)
		}

		seq := byte(i)
		if i == count-1 {
			seq = SeqTerminal
		}

		packets = append(packets, Packet{
			SectorIndex: s.Index,
			Seq:         seq,
			Payload:     s.Data[start:end],
		})
	}

	return packets
}

// Encode serializes the packet for the data channel.
// Format: 16-bit little-endian sector index, sequence byte, payload.
func (p Packet) Encode() []byte {
	buf := make([]byte, PacketHeaderSize+len(p.Payload))
	binary.LittleEndian.PutUint16(buf[0:2], p.SectorIndex)
	buf[2] = p.Seq
	copy(buf[3:], p.Payload)
	return buf
}

// ValidatePayloadSize rejects payload sizes that could require 256 or more
// packets in a full sector. The 8-bit sequence counter reserves 0xFF for
// the terminal marker, so a sector is limited to 255 packets; transfers
// that would exceed it are refused rather than silently truncated.
func ValidatePayloadSize(payloadSize, sectorSize int) error {
	if payloadSize <= 0 {
		return fmt.Errorf("invalid packet payload size %d", payloadSize)
	}
	packets := (sectorSize + payloadSize - 1) / payloadSize
	if packets > 255 {
		return fmt.Errorf("payload size %d requires %d packets per %d-byte sector, limit is 255",
			payloadSize, packets, sectorSize)
	}
	return nil
}

// ValidateImageSize rejects images whose length does not fit the start
// command's 32-bit length field or whose sector count overflows the
// 16-bit sector index.
func ValidateImageSize(imageLen, sectorSize int) error {
	if imageLen > math.MaxUint32 {
		return fmt.Errorf("image length %d exceeds 32-bit limit", imageLen)
	}
	count := (imageLen + sectorSize - 1) / sectorSize
	if count > math.MaxUint16+1 {
		return fmt.Errorf("image requires %d sectors, limit is %d", count, math.MaxUint16+1)
	}
	return nil
}
