package slip

import (
	"bytes"
	"testing"
)

func TestEncode_NoSpecialBytes(t *testing.T) {
	input := []byte{0x01, 0x02, 0x03}
	expected := []byte{End, 0x01, 0x02, 0x03, End}
	if result := Encode(input); !bytes.Equal(result, expected) {
		t.Errorf("Encode(%v) = %v, want %v", input, result, expected)
	}
}

func TestEncode_Empty(t *testing.T) {
	expected := []byte{End, End}
	if result := Encode(nil); !bytes.Equal(result, expected) {
		t.Errorf("Encode(nil) = %v, want %v", result, expected)
	}
}

func TestEncode_Escaping(t *testing.T) {
	tests := []struct {
		input    []byte
		expected []byte
	}{
		{[]byte{End}, []byte{End, Esc, EscEnd, End}},
		{[]byte{Esc}, []byte{End, Esc, EscEsc, End}},
		{[]byte{0x01, End, Esc, 0x02}, []byte{End, 0x01, Esc, EscEnd, Esc, EscEsc, 0x02, End}},
	}

	for _, tc := range tests {
		if result := Encode(tc.input); !bytes.Equal(result, tc.expected) {
			t.Errorf("Encode(%v) = %v, want %v", tc.input, result, tc.expected)
		}
	}
}

func TestDecode_RoundTrip(t *testing.T) {
	inputs := [][]byte{
		{0x01, 0x02, 0x03},
		{End, Esc, End, Esc},
		{0x00, 0xFF, End},
	}

	for _, input := range inputs {
		if result := Decode(Encode(input)); !bytes.Equal(result, input) {
			t.Errorf("Decode(Encode(%v)) = %v", input, result)
		}
	}
}

func TestDecode_WithoutDelimiters(t *testing.T) {
	input := []byte{0x01, Esc, EscEnd, 0x02}
	expected := []byte{0x01, End, 0x02}
	if result := Decode(input); !bytes.Equal(result, expected) {
		t.Errorf("Decode(%v) = %v, want %v", input, result, expected)
	}
}

func TestDecode_Empty(t *testing.T) {
	for _, input := range [][]byte{nil, {}, {End}, {End, End}} {
		if result := Decode(input); result != nil {
			t.Errorf("Decode(%v) = %v, want nil", input, result)
		}
	}
}

func TestFeed_SingleFrame(t *testing.T) {
	frames, rest := Feed(nil, Encode([]byte{0x01, 0x02}))

	if len(frames) != 1 || !bytes.Equal(frames[0], []byte{0x01, 0x02}) {
		t.Fatalf("Feed frames = %v, want [[1 2]]", frames)
	}
	if len(rest) != 1 || rest[0] != End {
		t.Errorf("Feed rest = %v, want trailing END", rest)
	}
}

func TestFeed_PartialFrame(t *testing.T) {
	encoded := Encode([]byte{0x01, 0x02, 0x03})

	frames, rest := Feed(nil, encoded[:3])
	if len(frames) != 0 {
		t.Fatalf("Feed of partial frame produced %v", frames)
	}

	frames, _ = Feed(rest, encoded[3:])
	if len(frames) != 1 || !bytes.Equal(frames[0], []byte{0x01, 0x02, 0x03}) {
		t.Errorf("Feed after completion = %v, want [[1 2 3]]", frames)
	}
}

func TestFeed_MultipleFrames(t *testing.T) {
	stream := append(Encode([]byte{0x01}), Encode([]byte{0x02, End})...)

	frames, _ := Feed(nil, stream)
	if len(frames) != 2 {
		t.Fatalf("Feed frame count = %d, want 2", len(frames))
	}
	if !bytes.Equal(frames[0], []byte{0x01}) || !bytes.Equal(frames[1], []byte{0x02, End}) {
		t.Errorf("Feed frames = %v", frames)
	}
}

func TestFeed_DropsIdleNoise(t *testing.T) {
	stream := []byte{End, End, End}
	frames, _ := Feed(nil, stream)
	if len(frames) != 0 {
		t.Errorf("Feed of idle line produced %v", frames)
	}
}

func TestFeed_ByteAtATime(t *testing.T) {
	encoded := Encode([]byte{0x0A, End, 0x0B})

	var buf []byte
	var got [][]byte
	for _, b := range encoded {
		var frames [][]byte
		frames, buf = Feed(buf, []byte{b})
		got = append(got, frames...)
	}

	if len(got) != 1 || !bytes.Equal(got[0], []byte{0x0A, End, 0x0B}) {
		t.Errorf("byte-at-a-time Feed = %v, want [[10 192 11]]", got)
	}
}
