//go:build !linux

package channel

import "net"

// Pair returns the two connected ends of an in-memory duplex link.
func Pair() (controller, device Transport, err error) {
	a, b := net.Pipe()

	return NewConnTransport(a), NewConnTransport(b), nil
}
