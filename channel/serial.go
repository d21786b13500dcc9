package channel

import (
	"fmt"
	"time"

	"go.bug.st/serial"
)

// DefaultBaudRate is the line speed of the instrument's serial port.
const DefaultBaudRate = 19200

type serialTransport struct {
	port    serial.Port
	path    string
	timeout time.Duration
}

var _ Transport = (*serialTransport)(nil)

// OpenSerial opens a serial device at 8N1 and the given baud rate.
// A non-positive baud selects DefaultBaudRate.
func OpenSerial(path string, baud int) (Transport, error) {
	if baud <= 0 {
		baud = DefaultBaudRate
	}

	mode := &serial.Mode{
		BaudRate: baud,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}

	port, err := serial.Open(path, mode)
	if err != nil {
		return nil, fmt.Errorf("channel: open serial %s: %w", path, err)
	}

	return &serialTransport{port: port, path: path}, nil
}

func (t *serialTransport) ReadTimeout(buf []byte, d time.Duration) (int, error) {
	if d != t.timeout {
		if err := t.port.SetReadTimeout(d); err != nil {
			return 0, err
		}
		t.timeout = d
	}

	// go.bug.st/serial reports an expired read timeout as 0, nil.
	return t.port.Read(buf)
}

// WriteTimeout writes p. The serial driver has no write deadline, so d is unused.
func (t *serialTransport) WriteTimeout(p []byte, _ time.Duration) (int, error) {
	return t.port.Write(p)
}

// Available is not queryable on a serial port.
func (t *serialTransport) Available() (int, bool) {
	return 0, false
}

func (t *serialTransport) Close() error {
	return t.port.Close()
}
