package device

import (
	"errors"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/arloliu/go-urg/channel"
	"github.com/arloliu/go-urg/frame"
	"github.com/arloliu/go-urg/logger"
)

const (
	// Jitter is the largest noise offset added to a device analog-in reading.
	Jitter = 2

	// MaxRaw is the clamp applied to noisy analog-in readings.
	MaxRaw = 0x0FFF
)

// Processor executes commands against a Model.
//
// The device role answers requests with HandleRequest. The controller role folds
// replies into its own model with ApplyReply. Which side effects apply is chosen
// by options, not by role: WithNoise and WithLoopback model the device hardware,
// WithSensorTracking turns analog-in replies into sensor statistics.
type Processor struct {
	model    *Model
	noise    *rand.Rand
	loopback bool
	env      *Environment
	cancel   *channel.CancelFlag
	logger   logger.Logger
	now      func() time.Time
}

// Option configures a Processor.
type Option interface {
	apply(*Processor) error
}

type optFunc func(*Processor) error

func (f optFunc) apply(p *Processor) error { return f(p) }

// WithNoise adds a uniform jitter of ±Jitter counts, drawn from r, to analog-in
// reads answered by HandleRequest. Noisy readings are clamped to [0, MaxRaw].
func WithNoise(r *rand.Rand) Option {
	return optFunc(func(p *Processor) error {
		if r == nil {
			return errors.New("device: noise source must not be nil")
		}
		p.noise = r

		return nil
	})
}

// WithLoopback ties analog-out and analog-in together: a write to either bank
// also drives the same channel of the other.
func WithLoopback() Option {
	return optFunc(func(p *Processor) error {
		p.loopback = true
		return nil
	})
}

// WithSensorTracking records analog-in replies in the sensor records and
// publishes ambient temperature and barometric pressure to env.
func WithSensorTracking(env *Environment) Option {
	return optFunc(func(p *Processor) error {
		if env == nil {
			return errors.New("device: environment must not be nil")
		}
		p.env = env

		return nil
	})
}

// WithCancelFlag sets the flag raised by a quit command.
func WithCancelFlag(f *channel.CancelFlag) Option {
	return optFunc(func(p *Processor) error {
		if f == nil {
			return errors.New("device: cancel flag must not be nil")
		}
		p.cancel = f

		return nil
	})
}

// WithLogger sets the logger.
func WithLogger(l logger.Logger) Option {
	return optFunc(func(p *Processor) error {
		if l == nil {
			return errors.New("device: logger must not be nil")
		}
		p.logger = l

		return nil
	})
}

// WithClock replaces the time source used for sensor timestamps.
func WithClock(now func() time.Time) Option {
	return optFunc(func(p *Processor) error {
		if now == nil {
			return errors.New("device: clock must not be nil")
		}
		p.now = now

		return nil
	})
}

// NewProcessor creates a Processor for model. A nil model gets the factory defaults.
func NewProcessor(model *Model, opts ...Option) (*Processor, error) {
	if model == nil {
		model = NewModel()
	}

	p := &Processor{
		model:  model,
		cancel: &channel.CancelFlag{},
		logger: logger.GetLogger(),
		now:    time.Now,
	}

	for _, opt := range opts {
		if err := opt.apply(p); err != nil {
			return nil, err
		}
	}

	return p, nil
}

// Model returns the processor's model.
func (p *Processor) Model() *Model { return p.model }

// Environment returns the environment given to WithSensorTracking, or nil.
func (p *Processor) Environment() *Environment { return p.env }

// CancelFlag returns the flag raised by a quit command.
func (p *Processor) CancelFlag() *channel.CancelFlag { return p.cancel }

// Snapshot returns a deep copy of the model including published environment readings.
func (p *Processor) Snapshot() Snapshot {
	s := p.model.Snapshot()
	if p.env != nil {
		s.Environment = p.env.Values()
	}

	return s
}

// HandleRequest executes a request on the device side and returns the reply frame.
// On failure the reply is the negative acknowledge of req and the error says why.
func (p *Processor) HandleRequest(req frame.Frame) (frame.Frame, error) {
	cmd, err := ParseCommand(req)
	if err != nil {
		p.logger.Warn("device: rejected request", "frame", req.String(), "error", err)
		return req.NAK(), err
	}

	reply := frame.Frame{Target: req.Target, Command: req.Command}

	switch c := cmd.(type) {
	case ReadRegister:
		v, err := p.read(c)
		if err != nil {
			return req.NAK(), err
		}
		reply.HasValue, reply.Value = true, v

	case WriteRegister:
		if err := p.write(c); err != nil {
			return req.NAK(), err
		}
		reply.HasValue, reply.Value = true, c.Value

	case ReadStepper:
		reply.HasValue, reply.Value = true, uint16(p.model.Stepper)

	case MoveStepper:
		p.model.Stepper += c.Delta
		p.logger.Debug("device: stepper moved", "delta", c.Delta, "position", p.model.Stepper)

	case Quit:
		p.logger.Info("device: quit requested")
		p.cancel.Set()
	}

	return reply, nil
}

// ApplyReply folds a reply into the controller's model and returns its value
// (zero when the reply carries none). A negative acknowledge fails with ErrNegativeAck.
func (p *Processor) ApplyReply(reply frame.Frame) (uint16, error) {
	cmd, err := ParseCommand(reply)
	if err != nil {
		return 0, err
	}

	switch c := cmd.(type) {
	case WriteRegister:
		if err := p.store(c); err != nil {
			return 0, err
		}

		if c.Bank == TargetAnalogIn && p.env != nil {
			p.track(c.Index, c.Value)
		}

		return c.Value, nil

	case ReadRegister:
		return p.model.Bank(c.Bank).Get(c.Index)

	case MoveStepper:
		p.model.Stepper = c.Delta
		return reply.Value, nil

	case ReadStepper:
		return uint16(p.model.Stepper), nil

	case Quit:
		p.cancel.Set()
	}

	return 0, nil
}

func (p *Processor) read(c ReadRegister) (uint16, error) {
	if c.Bank == TargetDigitalIO {
		return p.model.Flags.Word(), nil
	}

	v, err := p.model.Bank(c.Bank).Get(c.Index)
	if err != nil {
		return 0, err
	}

	if c.Bank == TargetAnalogIn && p.noise != nil {
		v = p.jitter(v)
	}

	return v, nil
}

func (p *Processor) write(c WriteRegister) error {
	if err := p.store(c); err != nil {
		return err
	}

	if p.loopback {
		switch c.Bank {
		case TargetAnalogOut:
			return p.model.AnalogIn.Set(c.Index, c.Value)
		case TargetAnalogIn:
			return p.model.AnalogOut.Set(c.Index, c.Value)
		}
	}

	return nil
}

// store writes a register; digital-IO words also set the flags.
func (p *Processor) store(c WriteRegister) error {
	bank := p.model.Bank(c.Bank)
	if bank == nil {
		return fmt.Errorf("%w: %s has no registers", ErrUnsupported, c.Bank)
	}

	if err := bank.Set(c.Index, c.Value); err != nil {
		return err
	}

	if c.Bank == TargetDigitalIO {
		p.model.Flags.SetWord(c.Value)
	}

	p.logger.Debug("device: register stored", "target", c.Bank.String(), "index", c.Index, "value", c.Value)

	return nil
}

func (p *Processor) jitter(v uint16) uint16 {
	j := int(v) + p.noise.IntN(2*Jitter+1) - Jitter

	return uint16(min(max(j, 0), MaxRaw))
}

func (p *Processor) track(idx int, raw uint16) {
	s := p.model.Sensor(idx)
	if s == nil {
		return
	}

	v := s.Record(raw, p.now())

	switch idx {
	case ChanAmbient:
		p.env.Publish(ReadingTemperature, s.Average)
	case ChanBarometer:
		p.env.Publish(ReadingPressure, s.Average)
	}

	p.logger.Debug("device: sensor sample",
		"sensor", s.Name, "raw", raw, "value", v, "count", s.Count, "average", s.Average, "min", s.Min, "max", s.Max)
}
