package frame

import (
	"github.com/sigurn/crc16"
)

// fcsParams describes the X.25 FCS as used on this link: the PPP/HDLC table-driven
// update with initial value 0xFFFF and no final complement.
var fcsParams = crc16.Params{
	Poly:   0x1021,
	Init:   0xFFFF,
	RefIn:  true,
	RefOut: true,
	XorOut: 0x0000,
	Check:  0x6F91,
	Name:   "CRC-16/X-25-NOXOR",
}

var fcsTable = crc16.MakeTable(fcsParams)

// Checksum returns the frame check sequence of data.
func Checksum(data []byte) uint16 {
	return crc16.Checksum(data, fcsTable)
}
