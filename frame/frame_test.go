package frame

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var allFormats = []Format{FormatASCII, FormatBinary, FormatFlagged}

func sampleFrames() []Frame {
	return []Frame{
		{Target: 'A', Command: 1},
		{Target: 'A', Command: 5, HasValue: true, Value: 0x03FF},
		{Target: 'D', Command: 0, HasValue: true, Value: 0},
		{Target: 'F', Command: 12, HasValue: true, Value: 0x1FFF},
		{Target: 'S', Command: 10, HasValue: true, Value: 0xFFBC},
		{Target: 'G', Command: 'q'},
		{Target: 'T', Command: 31 | NAKBit},
		{Target: 0x00, Command: 0x00, HasValue: true, Value: 0xABCD},
		{Target: 0xFF, Command: 0x7E, HasValue: true, Value: 0x7E7E},
	}
}

func TestEncode_BinaryLayout(t *testing.T) {
	buf, err := Encode('A', 3, []byte{0x01, 0x02}, FormatBinary)
	require.NoError(t, err)
	require.Len(t, buf, 7)

	assert.Equal(t, byte(5), buf[0], "count covers count..payload")
	assert.Equal(t, []byte{'A', 3, 0x01, 0x02}, buf[1:5])

	crc := pppfcs(0xFFFF, buf[:5])
	assert.Equal(t, byte(crc>>8), buf[5], "crc high byte first")
	assert.Equal(t, byte(crc), buf[6])
}

func TestEncode_FlaggedLayout(t *testing.T) {
	plain, err := Encode('P', 8, nil, FormatBinary)
	require.NoError(t, err)

	flagged, err := Encode('P', 8, nil, FormatFlagged)
	require.NoError(t, err)

	require.Len(t, flagged, len(plain)+2)
	assert.Equal(t, Delimiter, flagged[0])
	assert.Equal(t, Delimiter, flagged[len(flagged)-1])
	assert.Equal(t, plain, flagged[1:len(flagged)-1])
}

func TestEncode_ASCIILayout(t *testing.T) {
	f := Frame{Target: 'D', Command: '1', HasValue: true, Value: 0x0550}
	buf, err := f.Encode(FormatASCII)
	require.NoError(t, err)
	assert.Equal(t, []byte("D10550\r\n"), buf)
}

func TestEncode_Errors(t *testing.T) {
	_, err := Encode('A', 0, nil, Format(7))
	require.ErrorIs(t, err, ErrUnknownFormat)

	_, err = Encode('A', 0, make([]byte, MaxPayloadSize+1), FormatBinary)
	require.ErrorIs(t, err, ErrPayloadTooLarge)

	buf, err := Encode('A', 0, make([]byte, MaxPayloadSize), FormatFlagged)
	require.NoError(t, err)
	assert.LessOrEqual(t, len(buf), MaxFrameSize)
}

func TestDecode_RoundTrip(t *testing.T) {
	for _, format := range allFormats {
		for _, f := range sampleFrames() {
			buf, err := f.Encode(format)
			require.NoError(t, err)

			got, err := Decode(buf, format)
			require.NoError(t, err, "%s %s", format, f)
			assert.Equal(t, f, got, "%s % X", format, buf)
		}
	}
}

func TestDecode_SingleBitCorruption(t *testing.T) {
	for _, format := range []Format{FormatBinary, FormatFlagged} {
		for _, f := range sampleFrames() {
			buf, err := f.Encode(format)
			require.NoError(t, err)

			for i := range buf {
				for bit := 0; bit < 8; bit++ {
					corrupt := append([]byte(nil), buf...)
					corrupt[i] ^= 1 << bit

					got, err := Decode(corrupt, format)
					require.Error(t, err, "%s byte %d bit %d", format, i, bit)
					assert.ErrorIs(t, err, ErrMalformed)
					assert.Equal(t, Frame{}, got)
				}
			}
		}
	}
}

func TestDecode_BinaryErrors(t *testing.T) {
	good, err := Encode('A', 1, nil, FormatBinary)
	require.NoError(t, err)

	_, err = Decode(good[:4], FormatBinary)
	assert.ErrorIs(t, err, ErrShortFrame)

	bad := append([]byte(nil), good...)
	bad[0]++
	_, err = Decode(bad, FormatBinary)
	assert.ErrorIs(t, err, ErrCountMismatch)

	bad = append([]byte(nil), good...)
	bad[len(bad)-1] ^= 0xFF
	_, err = Decode(bad, FormatBinary)
	assert.ErrorIs(t, err, ErrChecksumMismatch)

	// A binary frame is not a flagged frame.
	_, err = Decode(good, FormatFlagged)
	assert.ErrorIs(t, err, ErrFlagMismatch)

	_, err = Decode([]byte{Delimiter}, FormatFlagged)
	assert.ErrorIs(t, err, ErrShortFrame)

	_, err = Decode(good, Format(9))
	assert.ErrorIs(t, err, ErrUnknownFormat)
	assert.False(t, errors.Is(err, ErrMalformed))
}

func TestDecode_ASCII(t *testing.T) {
	f, err := Decode([]byte("A3abcd\r\n"), FormatASCII)
	require.NoError(t, err)
	assert.Equal(t, Frame{Target: 'A', Command: '3', HasValue: true, Value: 0xABCD}, f)

	f, err = Decode([]byte("A3\r\n"), FormatASCII)
	require.NoError(t, err)
	assert.False(t, f.HasValue)

	// Fewer than four digits do not carry a value.
	f, err = Decode([]byte("A3AB\r\n"), FormatASCII)
	require.NoError(t, err)
	assert.False(t, f.HasValue)

	_, err = Decode([]byte("A30G12\r\n"), FormatASCII)
	assert.ErrorIs(t, err, ErrBadHexDigit)

	_, err = Decode([]byte("A30012\n"), FormatASCII)
	assert.ErrorIs(t, err, ErrMissingTerminator)

	_, err = Decode([]byte("\r\n"), FormatASCII)
	assert.ErrorIs(t, err, ErrShortFrame)
}

func TestFrame_NAK(t *testing.T) {
	f := Frame{Target: 'A', Command: 9, HasValue: true, Value: 1}
	nak := f.NAK()

	assert.True(t, nak.IsNAK())
	assert.False(t, f.IsNAK())
	assert.Equal(t, byte('A'), nak.Target)
	assert.Equal(t, byte(9|NAKBit), nak.Command)
	assert.False(t, nak.HasValue)
}

func TestPeek(t *testing.T) {
	for _, format := range allFormats {
		buf, err := Frame{Target: 'T', Command: 4}.Encode(format)
		require.NoError(t, err)

		target, command, ok := Peek(buf, format)
		require.True(t, ok, format.String())
		assert.Equal(t, byte('T'), target)
		assert.Equal(t, byte(4), command)
	}

	_, _, ok := Peek([]byte{0x03}, FormatBinary)
	assert.False(t, ok)
}

func TestParseFormat(t *testing.T) {
	for in, want := range map[string]Format{
		"0": FormatASCII, "hex": FormatASCII,
		"1": FormatBinary, "Binary": FormatBinary,
		"2": FormatFlagged, "hdlc": FormatFlagged,
	} {
		got, err := ParseFormat(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	_, err := ParseFormat("3")
	assert.ErrorIs(t, err, ErrUnknownFormat)
}

func TestHexDump(t *testing.T) {
	assert.Equal(t, "", HexDump(nil))
	assert.Equal(t, "7E 05 41 0A FF", HexDump([]byte{0x7E, 0x05, 0x41, 0x0A, 0xFF}))
}

func TestLen(t *testing.T) {
	for _, format := range allFormats {
		a, err := Frame{Target: 'A', Command: 2, HasValue: true, Value: 7}.Encode(format)
		require.NoError(t, err)
		b, err := Frame{Target: 'G', Command: 'q'}.Encode(format)
		require.NoError(t, err)

		for i := 0; i < len(a); i++ {
			_, ok := Len(a[:i], format)
			assert.False(t, ok, "%s prefix %d", format, i)
		}

		stream := append(append([]byte(nil), a...), b...)
		n, ok := Len(stream, format)
		require.True(t, ok, format.String())
		assert.Equal(t, len(a), n)

		n, ok = Len(stream[n:], format)
		require.True(t, ok, format.String())
		assert.Equal(t, len(b), n)
	}

	// Garbage that cannot start a flagged frame is handed to the decoder as-is.
	n, ok := Len([]byte{0x01, 0x02}, FormatFlagged)
	assert.True(t, ok)
	assert.Equal(t, 2, n)
}

func TestLen_ASCIIRawLineFeedCommand(t *testing.T) {
	buf, err := Frame{Target: 'S', Command: '\n', HasValue: true, Value: 0x000A}.Encode(FormatASCII)
	require.NoError(t, err)

	n, ok := Len(buf, FormatASCII)
	require.True(t, ok)
	assert.Equal(t, len(buf), n)

	_, ok = Len([]byte("S\n\r"), FormatASCII)
	assert.False(t, ok)
}
