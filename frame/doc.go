// Package frame implements the byte-exact wire codec of the instrument link.
//
// Three wire formats are supported:
//
//	FormatASCII   [target][command][payload...]['\r']['\n']
//	FormatBinary  [count][target][command][payload...][crc_hi][crc_lo]
//	FormatFlagged 0x7E [count][target][command][payload...][crc_hi][crc_lo] 0x7E
//
// In the binary formats count = 3 + len(payload) and the CRC is the X.25 frame check
// sequence (polynomial 0x1021 reflected, initial value 0xFFFF) computed over count
// through the end of the payload and emitted without the final complement, high byte
// first. The flagged format does not byte-stuff the delimiter.
//
// A value payload is two big-endian bytes in the binary formats and four hex digits in
// the ASCII format.
package frame
