package channel

import (
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/arloliu/go-urg/frame"
	"github.com/arloliu/go-urg/internal/pool"
	"github.com/arloliu/go-urg/logger"
)

// Channel is one end of the link, owned by a single role.
type Channel struct {
	cfg       *Config
	transport Transport
	logger    logger.Logger

	// pending holds received bytes not yet handed out as a frame.
	pending []byte

	lastRead  time.Time
	lastWrite time.Time
	last      frame.Frame

	// Outcome of the last exchange on this end.
	respValid bool
	respValue uint16

	closed atomic.Bool
}

// Open binds a transport to a Channel using cfg. A nil cfg selects the defaults.
func Open(t Transport, cfg *Config) (*Channel, error) {
	if t == nil {
		return nil, errors.New("channel: transport must not be nil")
	}

	if cfg == nil {
		var err error
		if cfg, err = NewConfig(); err != nil {
			return nil, err
		}
	}

	c := &Channel{
		cfg:       cfg,
		transport: t,
		logger:    cfg.GetLogger().With("channel", cfg.Name()),
	}
	c.logger.Debug("channel: opened", "format", cfg.Format().String(), "pollInterval", cfg.PollInterval())

	return c, nil
}

// Config returns the channel configuration.
func (c *Channel) Config() *Config { return c.cfg }

// Close closes the transport. Subsequent calls return nil.
func (c *Channel) Close() error {
	if !c.closed.CompareAndSwap(false, true) {
		return nil
	}

	c.logger.Debug("channel: closing")

	if err := c.transport.Close(); err != nil {
		c.logger.Error("channel: failed to close transport", "error", err)
		return c.ioError("close", err)
	}

	return nil
}

// IsClosed reports whether Close has been called.
func (c *Channel) IsClosed() bool { return c.closed.Load() }

// Poll blocks until one frame's worth of bytes has arrived and returns it.
//
// Every tick waits at most PollInterval. The cancel flag is checked before each
// tick. After MaxTimeouts consecutive ticks without a byte Poll returns
// ErrTimeout; with MaxTimeouts <= 0 it waits until cancelled. Bytes that never
// complete a frame are returned as they are once the line goes quiet for a tick,
// so the decoder can reject them.
func (c *Channel) Poll(cancel *CancelFlag) ([]byte, error) {
	empty := 0

	for {
		if cancel.IsSet() {
			return nil, ErrCancelled
		}

		if c.closed.Load() {
			return nil, ErrClosed
		}

		if buf, ok := c.next(); ok {
			return buf, nil
		}

		n, err := c.readTick()
		if err != nil {
			ioErr := c.ioError("read", err)
			c.logger.Error("channel: read failed", "error", err)

			return nil, ioErr
		}

		if n > 0 {
			empty = 0
			continue
		}

		if len(c.pending) > 0 {
			buf := c.pending
			c.pending = nil
			c.logger.Debug("channel: incomplete frame on quiet line", "bytes", frame.HexDump(buf))

			return buf, nil
		}

		empty++
		if limit := c.cfg.MaxTimeouts(); limit > 0 && empty >= limit {
			return nil, fmt.Errorf("%w: %d empty polls of %v", ErrTimeout, empty, c.cfg.PollInterval())
		}
	}
}

// Write sends buf in full.
func (c *Channel) Write(buf []byte) error {
	if c.closed.Load() {
		return ErrClosed
	}

	for written := 0; written < len(buf); {
		n, err := c.transport.WriteTimeout(buf[written:], c.cfg.WriteTimeout())
		written += n

		if err != nil {
			ioErr := c.ioError("write", err)
			c.logger.Error("channel: write failed", "error", err, "written", written, "size", len(buf))

			return ioErr
		}
	}

	c.lastWrite = time.Now()

	return nil
}

// Discard drops received bytes that have not been returned by Poll.
func (c *Channel) Discard() int {
	n := len(c.pending)
	c.pending = nil

	return n
}

// Record stores the most recently decoded frame on this end.
func (c *Channel) Record(f frame.Frame) { c.last = f }

// Last returns the frame stored by Record.
func (c *Channel) Last() frame.Frame { return c.last }

// RecordResponse stores the outcome of the last exchange: whether the response
// was valid and the value it carried.
func (c *Channel) RecordResponse(valid bool, v uint16) {
	c.respValid, c.respValue = valid, v
}

// Response returns the value and validity stored by RecordResponse.
func (c *Channel) Response() (uint16, bool) { return c.respValue, c.respValid }

// LastRead returns the time bytes were last received.
func (c *Channel) LastRead() time.Time { return c.lastRead }

// LastWrite returns the time of the last completed write.
func (c *Channel) LastWrite() time.Time { return c.lastWrite }

func (c *Channel) next() ([]byte, bool) {
	n, ok := frame.Len(c.pending, c.cfg.Format())
	if !ok {
		return nil, false
	}

	buf := make([]byte, n)
	copy(buf, c.pending[:n])

	c.pending = c.pending[n:]
	if len(c.pending) == 0 {
		c.pending = nil
	}

	return buf, true
}

func (c *Channel) readTick() (int, error) {
	// Size the buffer to what is queued; fall back when nothing is or the count is unknown.
	size := frame.MaxFrameSize
	if n, ok := c.transport.Available(); ok && n > 0 {
		size = n
	}

	buf := pool.GetBuffer(size)
	defer pool.PutBuffer(buf)

	n, err := c.transport.ReadTimeout(*buf, c.cfg.PollInterval())
	if n > 0 {
		c.pending = append(c.pending, (*buf)[:n]...)
		c.lastRead = time.Now()
	}

	return n, err
}

func (c *Channel) ioError(op string, err error) error {
	return &IOError{Op: op, Name: c.cfg.Name(), Time: time.Now(), Err: err}
}
