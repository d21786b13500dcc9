//go:build linux

package channel

import (
	"net"
	"syscall"

	"golang.org/x/sys/unix"
)

// available queries the input queue length (TIOCINQ, alias FIONREAD) of the connection's descriptor.
func available(conn net.Conn) (int, bool) {
	sc, ok := conn.(syscall.Conn)
	if !ok {
		return 0, false
	}

	raw, err := sc.SyscallConn()
	if err != nil {
		return 0, false
	}

	var (
		n    int
		ierr error
	)
	err = raw.Control(func(fd uintptr) {
		n, ierr = unix.IoctlGetInt(int(fd), unix.TIOCINQ)
	})
	if err != nil || ierr != nil {
		return 0, false
	}

	return n, true
}
