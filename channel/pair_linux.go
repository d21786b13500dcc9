//go:build linux

package channel

import (
	"fmt"
	"net"
	"os"

	"golang.org/x/sys/unix"
)

// Pair returns the two connected ends of a local duplex link: a unix stream
// socketpair, so that both ends support deadlines and FIONREAD.
func Pair() (controller, device Transport, err error) {
	fds, err := unix.Socketpair(unix.AF_UNIX, unix.SOCK_STREAM|unix.SOCK_CLOEXEC, 0)
	if err != nil {
		return nil, nil, fmt.Errorf("channel: socketpair: %w", err)
	}

	a, err := fileConn(fds[0], "urg-controller")
	if err != nil {
		_ = unix.Close(fds[1])
		return nil, nil, err
	}

	b, err := fileConn(fds[1], "urg-device")
	if err != nil {
		_ = a.Close()
		return nil, nil, err
	}

	return NewConnTransport(a), NewConnTransport(b), nil
}

// fileConn turns fd into a net.Conn. The descriptor is duplicated by
// net.FileConn, so the original is always closed here.
func fileConn(fd int, name string) (net.Conn, error) {
	f := os.NewFile(uintptr(fd), name)
	defer f.Close()

	conn, err := net.FileConn(f)
	if err != nil {
		return nil, fmt.Errorf("channel: %s: %w", name, err)
	}

	return conn, nil
}
