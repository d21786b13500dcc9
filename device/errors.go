package device

import (
	"errors"
	"fmt"
)

var (
	// ErrUnsupported is returned for an unknown target, an unknown verb or an
	// index outside the addressed bank.
	ErrUnsupported = errors.New("device: unsupported operation")

	// ErrNegativeAck is returned by ApplyReply for a reply carrying the NAK bit.
	ErrNegativeAck = fmt.Errorf("%w: negative acknowledge", ErrUnsupported)
)
