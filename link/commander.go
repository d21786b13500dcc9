package link

import (
	"errors"
	"fmt"
	"time"

	"github.com/arloliu/go-urg/channel"
	"github.com/arloliu/go-urg/device"
	"github.com/arloliu/go-urg/frame"
	"github.com/arloliu/go-urg/logger"
)

// Commander issues commands on the controller end of the link.
type Commander struct {
	ch      *channel.Channel
	proc    *device.Processor
	metrics *Metrics
	logger  logger.Logger
	sleep   func(time.Duration)
}

// NewCommander creates a Commander sending on ch and folding replies into proc.
func NewCommander(ch *channel.Channel, proc *device.Processor, opts ...Option) (*Commander, error) {
	if ch == nil || proc == nil {
		return nil, errors.New("link: commander needs a channel and a processor")
	}

	cfg, err := newRoleConfig("controller", opts)
	if err != nil {
		return nil, err
	}

	return &Commander{
		ch:      ch,
		proc:    proc,
		metrics: cfg.metrics,
		logger:  cfg.logger,
		sleep:   time.Sleep,
	}, nil
}

// Metrics returns the commander's counters.
func (c *Commander) Metrics() *Metrics { return c.metrics }

// Model returns the controller's model.
func (c *Commander) Model() *device.Model { return c.proc.Model() }

// Environment returns the readings published by the controller, or nil when it
// does not track sensors.
func (c *Commander) Environment() *device.Environment { return c.proc.Environment() }

// Logger returns the commander's logger.
func (c *Commander) Logger() logger.Logger { return c.logger }

// Processor returns the controller's processor.
func (c *Commander) Processor() *device.Processor { return c.proc }

// Format returns the wire format of the channel.
func (c *Commander) Format() frame.Format { return c.ch.Config().Format() }

// Execute sends one command and returns the value of its reply (zero when the
// reply carries none).
//
// A malformed or mismatched reply, a negative acknowledge, an I/O failure or a
// poll timeout counts as a failed attempt and the command is resent. After
// MaxRetries attempts Execute fails with ErrPermanentFailure wrapping the last
// cause; with MaxRetries <= 0 it keeps trying until cancelled.
func (c *Commander) Execute(target, command byte, payload []byte) (uint16, error) {
	cfg := c.ch.Config()
	format := cfg.Format()

	req, err := frame.Encode(target, command, payload, format)
	if err != nil {
		return 0, err
	}

	cancel := c.proc.CancelFlag()
	limit := cfg.MaxRetries()

	for attempt := 1; ; attempt++ {
		if cancel.IsSet() {
			return 0, ErrCancelled
		}

		v, err := c.exchange(req, target, command, format)
		if err == nil {
			return v, nil
		}

		switch {
		case errors.Is(err, channel.ErrCancelled):
			return 0, ErrCancelled
		case errors.Is(err, channel.ErrClosed):
			return 0, err
		}

		if limit > 0 && attempt >= limit {
			c.metrics.incPermanentFailureCount()
			c.logger.Error("link: command failed permanently",
				"attempts", attempt, "error", err, "bytes", frame.HexDump(req))

			return 0, fmt.Errorf("%w after %d attempts: %w", ErrPermanentFailure, attempt, err)
		}

		c.metrics.incRetryCount()
		c.logger.Warn("link: retrying command", "attempt", attempt, "maxRetries", limit, "error", err)

		if dropped := c.ch.Discard(); dropped > 0 {
			c.logger.Debug("link: dropped stale bytes", "count", dropped)
		}

		// A failed transport fails again at once; wait a poll tick before resending.
		var ioErr *channel.IOError
		if errors.As(err, &ioErr) {
			c.sleep(cfg.PollInterval())
		}
	}
}

func (c *Commander) exchange(req []byte, target, command byte, format frame.Format) (uint16, error) {
	if err := c.ch.Write(req); err != nil {
		return 0, err
	}
	c.metrics.incFrameSendCount()
	c.logger.Debug("link: command sent", "bytes", frame.HexDump(req))

	if d := c.ch.Config().SettleDelay(); d > 0 {
		c.sleep(d)
	}

	buf, err := c.ch.Poll(c.proc.CancelFlag())
	if err != nil {
		if errors.Is(err, channel.ErrTimeout) {
			c.metrics.incTimeoutCount()
		}

		return 0, err
	}
	c.metrics.incFrameRecvCount()

	reply, err := frame.Decode(buf, format)
	if err != nil {
		c.metrics.incFrameErrCount()
		c.logger.Warn("link: malformed reply", "error", err, "bytes", frame.HexDump(buf))

		return 0, err
	}
	c.ch.Record(reply)

	if reply.Target != target || reply.Command&^frame.NAKBit != command {
		c.logger.Warn("link: reply does not match command", "frame", reply.String(), "bytes", frame.HexDump(buf))
		return 0, fmt.Errorf("%w: %s", ErrUnexpectedReply, reply)
	}

	v, err := c.proc.ApplyReply(reply)
	c.ch.RecordResponse(err == nil, v)
	if err != nil {
		if errors.Is(err, device.ErrNegativeAck) {
			c.metrics.incNakCount()
		}
		c.logger.Warn("link: reply rejected", "frame", reply.String(), "error", err, "bytes", frame.HexDump(buf))

		return 0, err
	}

	c.logger.Debug("link: reply received", "frame", reply.String())

	return v, nil
}

// Read reads register index of a bank.
func (c *Commander) Read(target device.Target, index int) (uint16, error) {
	return c.Execute(byte(target), byte(index), nil)
}

// Write stores v in register index of a bank and returns the echoed value.
func (c *Commander) Write(target device.Target, index int, v uint16) (uint16, error) {
	return c.Execute(byte(target), byte(index), frame.ValuePayload(v, c.Format()))
}

// Stepper reads the stepper position.
func (c *Commander) Stepper() (int16, error) {
	v, err := c.Execute(byte(device.TargetStepper), 0, nil)
	return int16(v), err
}

// Move moves the stepper by delta.
func (c *Commander) Move(delta int16) error {
	_, err := c.Execute(byte(device.TargetStepper), 0, frame.ValuePayload(uint16(delta), c.Format()))
	return err
}

// Quit asks the device to stop. On success both roles' flags are raised.
func (c *Commander) Quit() error {
	_, err := c.Execute(byte(device.TargetGlobal), device.VerbQuit, nil)
	return err
}
