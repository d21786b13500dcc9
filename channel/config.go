package channel

import (
	"errors"
	"fmt"
	"time"

	"github.com/arloliu/go-urg/frame"
	"github.com/arloliu/go-urg/logger"
)

// Defaults of a freshly created Config.
const (
	DefaultFormat       = frame.FormatBinary
	DefaultPollInterval = 1 * time.Second
	DefaultMaxTimeouts  = 4
	DefaultMaxRetries   = 4
	DefaultSettleDelay  = 1 * time.Millisecond
	DefaultWriteTimeout = 3 * time.Second
)

// Range limits enforced by the options.
const (
	MinPollInterval = 1 * time.Millisecond
	MaxPollInterval = 1 * time.Minute

	MaxSettleDelay = 10 * time.Second
)

// Config holds the per-endpoint link settings shared by both roles.
type Config struct {
	name   string
	format frame.Format

	pollInterval time.Duration
	writeTimeout time.Duration
	settleDelay  time.Duration

	// maxTimeouts is the number of consecutive empty poll ticks before Poll gives up.
	// Zero or negative waits forever.
	maxTimeouts int

	// maxRetries is the total number of send attempts of one command.
	// Zero or negative retries until cancelled.
	maxRetries int

	logger logger.Logger
}

// NewConfig creates a Config with the defaults and applies opts in order.
func NewConfig(opts ...Option) (*Config, error) {
	cfg := &Config{
		name:         "link",
		format:       DefaultFormat,
		pollInterval: DefaultPollInterval,
		writeTimeout: DefaultWriteTimeout,
		settleDelay:  DefaultSettleDelay,
		maxTimeouts:  DefaultMaxTimeouts,
		maxRetries:   DefaultMaxRetries,
		logger:       logger.GetLogger(),
	}

	for _, opt := range opts {
		if err := opt.apply(cfg); err != nil {
			return nil, err
		}
	}

	return cfg, nil
}

// Clone returns a copy of cfg with opts applied on top.
func (cfg *Config) Clone(opts ...Option) (*Config, error) {
	c := *cfg
	for _, opt := range opts {
		if err := opt.apply(&c); err != nil {
			return nil, err
		}
	}

	return &c, nil
}

// Name returns the endpoint name used in log lines and errors.
func (cfg *Config) Name() string { return cfg.name }

// Format returns the wire format.
func (cfg *Config) Format() frame.Format { return cfg.format }

// PollInterval returns the length of one poll tick.
func (cfg *Config) PollInterval() time.Duration { return cfg.pollInterval }

// WriteTimeout returns the deadline applied to each write.
func (cfg *Config) WriteTimeout() time.Duration { return cfg.writeTimeout }

// SettleDelay returns the pause between sending a command and polling for its reply.
func (cfg *Config) SettleDelay() time.Duration { return cfg.settleDelay }

// MaxTimeouts returns the number of consecutive empty poll ticks tolerated by Poll.
func (cfg *Config) MaxTimeouts() int { return cfg.maxTimeouts }

// MaxRetries returns the total number of send attempts of one command.
func (cfg *Config) MaxRetries() int { return cfg.maxRetries }

// GetLogger returns the configured logger.
func (cfg *Config) GetLogger() logger.Logger { return cfg.logger }

// Option is a functional option for configuring a Config.
type Option interface {
	apply(*Config) error
}

type optFunc func(*Config) error

func (f optFunc) apply(cfg *Config) error { return f(cfg) }

// WithName sets the endpoint name.
func WithName(name string) Option {
	return optFunc(func(cfg *Config) error {
		if name == "" {
			return errors.New("channel: name must not be empty")
		}
		cfg.name = name

		return nil
	})
}

// WithFormat sets the wire format.
func WithFormat(f frame.Format) Option {
	return optFunc(func(cfg *Config) error {
		if !f.Valid() {
			return fmt.Errorf("%w: %d", frame.ErrUnknownFormat, f)
		}
		cfg.format = f

		return nil
	})
}

// WithPollInterval sets the poll tick. Must be in [1ms, 1m].
func WithPollInterval(d time.Duration) Option {
	return optFunc(func(cfg *Config) error {
		if d < MinPollInterval || d > MaxPollInterval {
			return fmt.Errorf("channel: poll interval %v out of range [%v, %v]", d, MinPollInterval, MaxPollInterval)
		}
		cfg.pollInterval = d

		return nil
	})
}

// WithWriteTimeout sets the per-write deadline.
func WithWriteTimeout(d time.Duration) Option {
	return optFunc(func(cfg *Config) error {
		if d <= 0 {
			return errors.New("channel: write timeout must be positive")
		}
		cfg.writeTimeout = d

		return nil
	})
}

// WithSettleDelay sets the pause between a send and the first poll. Must be in [0, 10s].
func WithSettleDelay(d time.Duration) Option {
	return optFunc(func(cfg *Config) error {
		if d < 0 || d > MaxSettleDelay {
			return fmt.Errorf("channel: settle delay %v out of range [0, %v]", d, MaxSettleDelay)
		}
		cfg.settleDelay = d

		return nil
	})
}

// WithMaxTimeouts sets the number of consecutive empty poll ticks before Poll
// fails with ErrTimeout. Zero or negative waits forever.
func WithMaxTimeouts(n int) Option {
	return optFunc(func(cfg *Config) error {
		cfg.maxTimeouts = n
		return nil
	})
}

// WithMaxRetries sets the total number of send attempts per command.
// Zero or negative retries until cancelled.
func WithMaxRetries(n int) Option {
	return optFunc(func(cfg *Config) error {
		cfg.maxRetries = n
		return nil
	})
}

// WithLogger sets the logger.
func WithLogger(l logger.Logger) Option {
	return optFunc(func(cfg *Config) error {
		if l == nil {
			return errors.New("channel: logger must not be nil")
		}
		cfg.logger = l

		return nil
	})
}
