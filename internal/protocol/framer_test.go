package protocol

import (
	"bytes"
	"testing"
)

func makeImage(n int) []byte {
	img := make([]byte, n)
	for i := range img {
		img[i] = byte(i % 251)
	}
	return img
}

func TestSectors_Count(t *testing.T) {
	tests := []struct {
		imageLen int
		expected int
	}{
		{0, 0},
		{1, 1},
		{SectorSize - 1, 1},
		{SectorSize, 1},
		{SectorSize + 1, 2},
		{5000, 2},
		{3 * SectorSize, 3},
	}

	for _, tc := range tests {
		sectors := Sectors(makeImage(tc.imageLen), SectorSize)
		if len(sectors) != tc.expected {
			t.Errorf("Sectors(len=%d) count = %d, want %d", tc.imageLen, len(sectors), tc.expected)
		}
	}
}

func TestSectors_LengthsSumToImage(t *testing.T) {
	for _, imageLen := range []int{0, 1, 20, SectorSize, 5000, 2*SectorSize + 17} {
		image := makeImage(imageLen)
		sectors := Sectors(image, SectorSize)

		total := 0
		for i, s := range sectors {
			if int(s.Index) != i {
				t.Errorf("Sectors(len=%d)[%d].Index = %d, want %d", imageLen, i, s.Index, i)
			}
			total += len(s.Data)
		}
		if total != imageLen {
			t.Errorf("Sectors(len=%d) lengths sum = %d, want %d", imageLen, total, imageLen)
		}
	}
}

func TestSectors_LastSectorShorter(t *testing.T) {
	sectors := Sectors(makeImage(5000), SectorSize)
	if len(sectors) != 2 {
		t.Fatalf("Sectors(5000) count = %d, want 2", len(sectors))
	}
	if len(sectors[0].Data) != 4096 {
		t.Errorf("sector 0 length = %d, want 4096", len(sectors[0].Data))
	}
	if len(sectors[1].Data) != 904 {
		t.Errorf("sector 1 length = %d, want 904", len(sectors[1].Data))
	}
}

func TestPackets_ReconstructSector(t *testing.T) {
	for _, sectorLen := range []int{1, 19, 20, 21, 904, 4096} {
		sector := Sector{Index: 7, Data: makeImage(sectorLen)}
		packets := sector.Packets(PayloadSizeSafe)

		var rebuilt []byte
		for _, p := range packets {
			if p.SectorIndex != 7 {
				t.Errorf("packet sector index = %d, want 7", p.SectorIndex)
			}
			rebuilt = append(rebuilt, p.Payload...)
		}
		if !bytes.Equal(rebuilt, sector.Data) {
			t.Errorf("packets of %d-byte sector do not reconstruct it", sectorLen)
		}
	}
}

func TestPackets_TerminalSentinel(t *testing.T) {
	for _, sectorLen := range []int{1, 20, 904, 4096} {
		sector := Sector{Data: makeImage(sectorLen)}
		packets := sector.Packets(PayloadSizeSafe)

		sentinels := 0
		for i, p := range packets {
			if p.Seq == SeqTerminal {
				sentinels++
				if i != len(packets)-1 {
					t.Errorf("sector len %d: sentinel at packet %d, want last (%d)",
						sectorLen, i, len(packets)-1)
				}
			} else if int(p.Seq) != i {
				t.Errorf("sector len %d: packet %d seq = %d, want %d", sectorLen, i, p.Seq, i)
			}
		}
		if sentinels != 1 {
			t.Errorf("sector len %d: %d sentinel packets, want 1", sectorLen, sentinels)
		}
	}
}

func TestPackets_ScenarioCounts(t *testing.T) {
	// 5000-byte image, safe-mode payload: 205 packets for the full sector,
	// 46 for the 904-byte tail.
	sectors := Sectors(makeImage(5000), SectorSize)

	tests := []struct {
		sector   int
		expected int
	}{
		{0, 205},
		{1, 46},
	}

	for _, tc := range tests {
		packets := sectors[tc.sector].Packets(PayloadSizeSafe)
		if len(packets) != tc.expected {
			t.Errorf("sector %d packet count = %d, want %d", tc.sector, len(packets), tc.expected)
		}
	}
}

func TestPackets_Deterministic(t *testing.T) {
	image := makeImage(5000)

	first := Sectors(image, SectorSize)
	second := Sectors(image, SectorSize)

	for i := range first {
		a := first[i].Packets(PayloadSizeSafe)
		b := second[i].Packets(PayloadSizeSafe)
		if len(a) != len(b) {
			t.Fatalf("sector %d packet counts differ: %d vs %d", i, len(a), len(b))
		}
		for j := range a {
			if !bytes.Equal(a[j].Encode(), b[j].Encode()) {
				t.Errorf("sector %d packet %d differs between runs", i, j)
			}
		}
	}
}

func TestPacket_Encode(t *testing.T) {
	p := Packet{SectorIndex: 0x0102, Seq: 0x05, Payload: []byte{0xAA, 0xBB, 0xCC}}
	encoded := p.Encode()

	expected := []byte{0x02, 0x01, 0x05, 0xAA, 0xBB, 0xCC}
	if !bytes.Equal(encoded, expected) {
		t.Errorf("Encode() = %v, want %v", encoded, expected)
	}
}

func TestPacket_Encode_MaxSize(t *testing.T) {
	sector := Sector{Data: makeImage(SectorSize)}
	for _, p := range sector.Packets(PayloadSizeFast) {
		if len(p.Encode()) > PacketHeaderSize+PayloadSizeFast {
			t.Errorf("packet exceeds %d bytes", PacketHeaderSize+PayloadSizeFast)
		}
	}
}

func TestValidatePayloadSize(t *testing.T) {
	tests := []struct {
		payload int
		wantErr bool
	}{
		{PayloadSizeSafe, false},
		{PayloadSizeFast, false},
		{17, false}, // ceil(4096/17) = 241
		{16, true},  // ceil(4096/16) = 256, collides with the sentinel
		{1, true},
		{0, true},
		{-1, true},
	}

	for _, tc := range tests {
		err := ValidatePayloadSize(tc.payload, SectorSize)
		if (err != nil) != tc.wantErr {
			t.Errorf("ValidatePayloadSize(%d) error = %v, wantErr %v", tc.payload, err, tc.wantErr)
		}
	}
}

func TestValidateImageSize(t *testing.T) {
	if err := ValidateImageSize(5000, SectorSize); err != nil {
		t.Errorf("ValidateImageSize(5000) error = %v", err)
	}
	if err := ValidateImageSize(0, SectorSize); err != nil {
		t.Errorf("ValidateImageSize(0) error = %v", err)
	}
	// 65537 sectors overflow the 16-bit index.
	if err := ValidateImageSize(65537*SectorSize, SectorSize); err == nil {
		t.Error("ValidateImageSize over sector-index limit expected error, got nil")
	}
}
