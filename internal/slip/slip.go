// Package slip implements RFC 1055 byte framing for the Lumen UART
// bridge. Each command or data frame travels as one SLIP frame.
package slip

const (
	End    = 0xC0
	Esc    = 0xDB
	EscEnd = 0xDC
	EscEsc = 0xDD
)

// Encode wraps data in SLIP framing: an END delimiter on both sides, with
// END and ESC bytes in the payload escaped.
func Encode(data []byte) []byte {
	result := make([]byte, 0, len(data)+8)
	result = append(result, End)

	for _, b := range data {
		switch b {
		case End:
			result = append(result, Esc, EscEnd)
		case Esc:
			result = append(result, Esc, EscEsc)
		default:
			result = append(result, b)
		}
	}

	return append(result, End)
}

// Decode unescapes the body of a single frame. Delimiters, if present,
// are stripped first. An ESC byte followed by anything other than the two
// escape codes passes the following byte through unchanged.
func Decode(frame []byte) []byte {
	start, end := 0, len(frame)
	for start < end && frame[start] == End {
		start++
	}
	for end > start && frame[end-1] == End {
		end--
	}
	if start >= end {
		return nil
	}

	body := frame[start:end]
	result := make([]byte, 0, len(body))
	for i := 0; i < len(body); i++ {
		if body[i] != Esc || i+1 >= len(body) {
			result = append(result, body[i])
			continue
		}
		i++
		switch body[i] {
		case EscEnd:
			result = append(result, End)
		case EscEsc:
			result = append(result, Esc)
		default:
			result = append(result, body[i])
		}
	}
	return result
}

// Feed appends stream bytes to buf, extracts every complete frame, and
// returns the decoded frame bodies together with the unconsumed tail.
// Empty frames (consecutive END bytes from an idle line) are dropped.
// The caller keeps rest as the buffer for its next read.
func Feed(buf, stream []byte) (frames [][]byte, rest []byte) {
	rest = append(buf, stream...)

	for {
		start := -1
		for i, b := range rest {
			if b == End {
				start = i
				break
			}
		}
		if start == -1 {
			return frames, rest
		}

		closing := -1
		for i := start + 1; i < len(rest); i++ {
			if rest[i] == End {
				closing = i
				break
			}
		}
		if closing == -1 {
			return frames, rest[start:]
		}

		if body := Decode(rest[start : closing+1]); len(body) > 0 {
			frames = append(frames, body)
		}
		// The closing END doubles as the next frame's opening delimiter.
		rest = rest[closing:]
	}
}
