package frame

import (
	"encoding/binary"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Format selects one of the three wire layouts.
type Format uint8

const (
	FormatASCII   Format = 0 // ASCII/hex terminated by CR LF, no checksum
	FormatBinary  Format = 1 // binary with count byte and CRC
	FormatFlagged Format = 2 // FormatBinary wrapped in Delimiter bytes
)

const (
	// Delimiter is the start/stop flag of FormatFlagged.
	Delimiter byte = 0x7E

	// NAKBit is set in the command byte of a negative-acknowledge reply.
	NAKBit byte = 0x80

	// MaxPayloadSize is the largest payload whose count still fits in one byte.
	MaxPayloadSize = 0xFF - 3

	// MaxFrameSize bounds any encoded frame: flags + count + target + command + payload + crc.
	MaxFrameSize = 1 + 0xFF + crcSize + 1
)

const (
	crcSize       = 2
	headerSize    = 3 // count, target, command
	binaryWithVal = headerSize + 2
	asciiWithVal  = 6 // target, command, 4 hex digits
)

var (
	// ErrMalformed is wrapped by every decode failure.
	ErrMalformed = errors.New("frame: malformed frame")

	ErrShortFrame        = fmt.Errorf("%w: frame too short", ErrMalformed)
	ErrFlagMismatch      = fmt.Errorf("%w: missing start/stop flag", ErrMalformed)
	ErrCountMismatch     = fmt.Errorf("%w: count byte mismatch", ErrMalformed)
	ErrChecksumMismatch  = fmt.Errorf("%w: checksum mismatch", ErrMalformed)
	ErrMissingTerminator = fmt.Errorf("%w: missing CR LF terminator", ErrMalformed)
	ErrBadHexDigit       = fmt.Errorf("%w: invalid hex digit", ErrMalformed)

	ErrUnknownFormat   = errors.New("frame: unknown format")
	ErrPayloadTooLarge = errors.New("frame: payload too large")
)

func (f Format) String() string {
	switch f {
	case FormatASCII:
		return "ascii"
	case FormatBinary:
		return "binary"
	case FormatFlagged:
		return "flagged"
	default:
		return "format(" + strconv.Itoa(int(f)) + ")"
	}
}

// Valid reports whether f is one of the known formats.
func (f Format) Valid() bool {
	return f <= FormatFlagged
}

// ParseFormat accepts a format number ("0", "1", "2") or name ("ascii", "hex",
// "binary", "flagged", "hdlc").
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "0", "ascii", "hex":
		return FormatASCII, nil
	case "1", "binary":
		return FormatBinary, nil
	case "2", "flagged", "hdlc":
		return FormatFlagged, nil
	}

	return 0, fmt.Errorf("%w: %q", ErrUnknownFormat, s)
}

// Frame is one decoded protocol message.
type Frame struct {
	Target   byte
	Command  byte
	HasValue bool
	Value    uint16
}

// IsNAK reports whether the negative-acknowledge bit is set in the command byte.
func (f Frame) IsNAK() bool {
	return f.Command&NAKBit != 0
}

// NAK returns the negative-acknowledge reply for f: same target and command with
// NAKBit set, and no value.
func (f Frame) NAK() Frame {
	return Frame{Target: f.Target, Command: f.Command | NAKBit}
}

func (f Frame) String() string {
	if f.HasValue {
		return fmt.Sprintf("%s/0x%02X=0x%04X", printable(f.Target), f.Command, f.Value)
	}

	return fmt.Sprintf("%s/0x%02X", printable(f.Target), f.Command)
}

// Encode encodes f in the given format, carrying Value as the payload when HasValue is set.
func (f Frame) Encode(format Format) ([]byte, error) {
	var payload []byte
	if f.HasValue {
		payload = ValuePayload(f.Value, format)
	}

	return Encode(f.Target, f.Command, payload, format)
}

// ValuePayload returns the payload representation of a 16-bit value:
// two big-endian bytes for the binary formats, four upper-case hex digits for FormatASCII.
func ValuePayload(v uint16, format Format) []byte {
	if format == FormatASCII {
		return []byte(fmt.Sprintf("%04X", v))
	}

	return []byte{byte(v >> 8), byte(v)}
}

// Encode builds the wire representation of a frame.
func Encode(target, command byte, payload []byte, format Format) ([]byte, error) {
	if !format.Valid() {
		return nil, fmt.Errorf("%w: %d", ErrUnknownFormat, format)
	}

	if len(payload) > MaxPayloadSize {
		return nil, fmt.Errorf("%w: %d bytes, max %d", ErrPayloadTooLarge, len(payload), MaxPayloadSize)
	}

	if format == FormatASCII {
		buf := make([]byte, 0, 2+len(payload)+2)
		buf = append(buf, target, command)
		buf = append(buf, payload...)

		return append(buf, '\r', '\n'), nil
	}

	count := headerSize + len(payload)
	buf := make([]byte, 0, count+crcSize+2)

	if format == FormatFlagged {
		buf = append(buf, Delimiter)
	}

	start := len(buf)
	buf = append(buf, byte(count), target, command)
	buf = append(buf, payload...)

	crc := Checksum(buf[start:])
	buf = append(buf, byte(crc>>8), byte(crc))

	if format == FormatFlagged {
		buf = append(buf, Delimiter)
	}

	return buf, nil
}

// Decode validates and decodes buf. On failure the returned error wraps ErrMalformed
// (or ErrUnknownFormat) and the Frame is the zero value.
func Decode(buf []byte, format Format) (Frame, error) {
	switch format {
	case FormatASCII:
		return decodeASCII(buf)

	case FormatBinary:
		return decodeBinary(buf)

	case FormatFlagged:
		n := len(buf)
		if n < 2 {
			return Frame{}, fmt.Errorf("%w: %d bytes", ErrShortFrame, n)
		}

		if buf[0] != Delimiter || buf[n-1] != Delimiter {
			return Frame{}, fmt.Errorf("%w: first=0x%02X last=0x%02X", ErrFlagMismatch, buf[0], buf[n-1])
		}

		return decodeBinary(buf[1 : n-1])
	}

	return Frame{}, fmt.Errorf("%w: %d", ErrUnknownFormat, format)
}

func decodeBinary(b []byte) (Frame, error) {
	n := len(b)
	if n < headerSize+crcSize {
		return Frame{}, fmt.Errorf("%w: %d bytes", ErrShortFrame, n)
	}

	if int(b[0]) != n-crcSize {
		return Frame{}, fmt.Errorf("%w: count=%d, want %d", ErrCountMismatch, b[0], n-crcSize)
	}

	wire := binary.BigEndian.Uint16(b[n-crcSize:])
	calc := Checksum(b[:n-crcSize])
	if wire != calc {
		return Frame{}, fmt.Errorf("%w: wire=0x%04X, computed=0x%04X", ErrChecksumMismatch, wire, calc)
	}

	f := Frame{Target: b[1], Command: b[2]}
	if n-crcSize >= binaryWithVal {
		f.HasValue = true
		f.Value = binary.BigEndian.Uint16(b[headerSize:binaryWithVal])
	}

	return f, nil
}

func decodeASCII(b []byte) (Frame, error) {
	n := len(b)
	if n < 4 {
		return Frame{}, fmt.Errorf("%w: %d bytes", ErrShortFrame, n)
	}

	if b[n-2] != '\r' || b[n-1] != '\n' {
		return Frame{}, ErrMissingTerminator
	}

	f := Frame{Target: b[0], Command: b[1]}
	if n-2 >= asciiWithVal {
		var v uint16
		for _, c := range b[2:asciiWithVal] {
			d, ok := hexValue(c)
			if !ok {
				return Frame{}, fmt.Errorf("%w: %q", ErrBadHexDigit, c)
			}
			v = v<<4 | uint16(d)
		}

		f.HasValue = true
		f.Value = v
	}

	return f, nil
}

func hexValue(c byte) (byte, bool) {
	switch {
	case c >= '0' && c <= '9':
		return c - '0', true
	case c >= 'A' && c <= 'F':
		return c - 'A' + 10, true
	case c >= 'a' && c <= 'f':
		return c - 'a' + 10, true
	}

	return 0, false
}

// Peek extracts the target and command bytes from a possibly malformed buffer, without
// any validation. It is used to address a negative-acknowledge to an undecodable request.
func Peek(buf []byte, format Format) (target, command byte, ok bool) {
	switch format {
	case FormatASCII:
		if len(buf) >= 2 {
			return buf[0], buf[1], true
		}
	case FormatBinary:
		if len(buf) >= headerSize {
			return buf[1], buf[2], true
		}
	case FormatFlagged:
		if len(buf) >= headerSize+1 {
			return buf[2], buf[3], true
		}
	}

	return 0, 0, false
}

// Len reports the length of the first complete frame at the start of buf.
// It returns false while more bytes are needed. Bytes that cannot start a frame of
// the given format are reported as complete so the decoder can reject them.
func Len(buf []byte, format Format) (int, bool) {
	switch format {
	case FormatASCII:
		// The target and command bytes are raw and may themselves be CR or LF.
		for i := 3; i < len(buf); i++ {
			if buf[i] == '\n' && buf[i-1] == '\r' {
				return i + 1, true
			}
		}

		if len(buf) >= MaxFrameSize {
			return len(buf), true
		}

	case FormatBinary:
		if len(buf) > 0 {
			n := int(buf[0]) + crcSize
			if len(buf) >= n {
				return n, true
			}
		}

	case FormatFlagged:
		if len(buf) > 0 && buf[0] != Delimiter {
			return len(buf), true
		}

		if len(buf) > 1 {
			n := 1 + int(buf[1]) + crcSize + 1
			if len(buf) >= n {
				return n, true
			}
		}

	default:
		return len(buf), len(buf) > 0
	}

	return 0, false
}

const hexDigits = "0123456789ABCDEF"

// HexDump renders buf as space separated upper-case hex bytes, e.g. "05 41 01 A3 1F".
func HexDump(buf []byte) string {
	if len(buf) == 0 {
		return ""
	}

	var sb strings.Builder
	sb.Grow(3*len(buf) - 1)

	for i, b := range buf {
		if i > 0 {
			sb.WriteByte(' ')
		}
		sb.WriteByte(hexDigits[b>>4])
		sb.WriteByte(hexDigits[b&0x0F])
	}

	return sb.String()
}

func printable(b byte) string {
	if b >= 0x20 && b < 0x7F {
		return string(rune(b))
	}

	return fmt.Sprintf("0x%02X", b)
}
