// Package config loads the simulator's YAML configuration and maps it onto
// the channel and session options.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"math/rand/v2"
	"os"
	"strconv"
	"time"

	"github.com/arloliu/go-urg/channel"
	"github.com/arloliu/go-urg/device"
	"github.com/arloliu/go-urg/frame"
	"github.com/arloliu/go-urg/logger"
	"github.com/arloliu/go-urg/session"
	"gopkg.in/yaml.v3"
)

// Step kinds of a configured plan.
const (
	StepCalibrate = "calibrate"
	StepMove      = "move"
	StepWrite     = "write"
	StepQuit      = "quit"
)

// ErrInvalid is wrapped by every validation failure.
var ErrInvalid = errors.New("config: invalid configuration")

// LinkConfig holds the settings shared by both channel ends.
type LinkConfig struct {
	Format       string        `yaml:"format"` // ascii, binary or flagged
	PollInterval time.Duration `yaml:"poll_interval"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
	SettleDelay  time.Duration `yaml:"settle_delay"`
	MaxTimeouts  int           `yaml:"max_timeouts"` // <= 0 waits forever
	MaxRetries   int           `yaml:"max_retries"`  // <= 0 retries forever
}

// TransportConfig selects what carries the bytes.
type TransportConfig struct {
	Kind             string `yaml:"kind"`              // socketpair or serial
	ControllerDevice string `yaml:"controller_device"` // e.g. /dev/ttyUSB0
	DeviceDevice     string `yaml:"device_device"`     // e.g. /dev/ttyUSB1
	Baud             int    `yaml:"baud"`
}

// NoiseConfig enables analog-in jitter on the device.
type NoiseConfig struct {
	Enabled bool   `yaml:"enabled"`
	Seed    uint64 `yaml:"seed"` // 0 picks a random seed
}

type LogConfig struct {
	Level string `yaml:"level"`
}

// StepConfig is one plan step. Which fields apply depends on Kind.
type StepConfig struct {
	Kind string `yaml:"kind"`

	// calibrate
	Channel string  `yaml:"channel"` // sensor name or channel number
	Min     float64 `yaml:"min"`
	Val     float64 `yaml:"val"`
	Max     float64 `yaml:"max"`
	Units   string  `yaml:"units"`

	// move
	Delta int16 `yaml:"delta"`

	// write
	Target string `yaml:"target"` // letter or name, e.g. D or analog-out
	Index  int    `yaml:"index"`
	Value  uint16 `yaml:"value"`
}

// Config is the simulator configuration.
type Config struct {
	Link          LinkConfig      `yaml:"link"`
	Transport     TransportConfig `yaml:"transport"`
	Noise         NoiseConfig     `yaml:"noise"`
	Log           LogConfig       `yaml:"log"`
	StatsInterval time.Duration   `yaml:"stats_interval"`
	Plan          []StepConfig    `yaml:"plan"`
}

// Load reads the YAML file at path over the defaults. An empty path returns the defaults.
func Load(path string) (*Config, error) {
	if path == "" {
		return Defaults(), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: cannot read %s: %w", path, err)
	}

	cfg, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("config: %s: %w", path, err)
	}

	return cfg, nil
}

// Parse decodes YAML over the defaults and validates the result. Unknown keys are rejected.
func Parse(data []byte) (*Config, error) {
	cfg := Defaults()

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("cannot parse yaml: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks the values that the option constructors do not.
func (c *Config) Validate() error {
	if _, err := frame.ParseFormat(c.Link.Format); err != nil {
		return fmt.Errorf("%w: link.format: %w", ErrInvalid, err)
	}

	if _, err := logger.ParseLevel(c.Log.Level); err != nil {
		return fmt.Errorf("%w: log.level: %w", ErrInvalid, err)
	}

	if c.StatsInterval < 0 {
		return fmt.Errorf("%w: stats_interval must not be negative", ErrInvalid)
	}

	switch c.Transport.Kind {
	case TransportSocketPair:
	case TransportSerial:
		if c.Transport.ControllerDevice == "" || c.Transport.DeviceDevice == "" {
			return fmt.Errorf("%w: serial transport needs controller_device and device_device", ErrInvalid)
		}
	default:
		return fmt.Errorf("%w: unknown transport kind %q", ErrInvalid, c.Transport.Kind)
	}

	if _, err := c.BuildPlan(); err != nil {
		return err
	}

	return nil
}

// LogLevel returns the configured log level.
func (c *Config) LogLevel() logger.Level {
	level, err := logger.ParseLevel(c.Log.Level)
	if err != nil {
		return logger.InfoLevel
	}

	return level
}

// ChannelConfig builds the channel configuration of both link ends.
func (c *Config) ChannelConfig(l logger.Logger) (*channel.Config, error) {
	format, err := frame.ParseFormat(c.Link.Format)
	if err != nil {
		return nil, err
	}

	opts := []channel.Option{
		channel.WithFormat(format),
		channel.WithPollInterval(c.Link.PollInterval),
		channel.WithWriteTimeout(c.Link.WriteTimeout),
		channel.WithSettleDelay(c.Link.SettleDelay),
		channel.WithMaxTimeouts(c.Link.MaxTimeouts),
		channel.WithMaxRetries(c.Link.MaxRetries),
	}
	if l != nil {
		opts = append(opts, channel.WithLogger(l))
	}

	return channel.NewConfig(opts...)
}

// SessionOptions builds the session options. For the serial transport both
// ports are opened here; the session closes them when it ends.
func (c *Config) SessionOptions(l logger.Logger) ([]session.Option, error) {
	var opts []session.Option
	if l != nil {
		opts = append(opts, session.WithLogger(l))
	}

	if c.StatsInterval > 0 {
		opts = append(opts, session.WithStatsInterval(c.StatsInterval))
	}

	if c.Noise.Enabled {
		seed := c.Noise.Seed
		if seed == 0 {
			seed = rand.Uint64()
		}
		opts = append(opts, session.WithNoise(rand.New(rand.NewPCG(seed, seed^0x9E3779B97F4A7C15))))
	}

	if c.Transport.Kind == TransportSerial {
		ctrl, err := channel.OpenSerial(c.Transport.ControllerDevice, c.Transport.Baud)
		if err != nil {
			return nil, err
		}

		dev, err := channel.OpenSerial(c.Transport.DeviceDevice, c.Transport.Baud)
		if err != nil {
			_ = ctrl.Close()
			return nil, err
		}
		opts = append(opts, session.WithTransportPair(ctrl, dev))
	}

	return opts, nil
}

// BuildPlan converts the configured steps into a session plan.
func (c *Config) BuildPlan() (session.Plan, error) {
	plan := make(session.Plan, 0, len(c.Plan))

	for i, sc := range c.Plan {
		step, err := sc.build()
		if err != nil {
			return nil, fmt.Errorf("%w: plan[%d]: %w", ErrInvalid, i, err)
		}
		plan = append(plan, step)
	}

	return plan, nil
}

func (sc StepConfig) build() (session.Step, error) {
	switch sc.Kind {
	case StepCalibrate:
		ch, err := sensorChannel(sc.Channel)
		if err != nil {
			return session.Step{}, err
		}

		units, err := device.ParseUnits(sc.Units)
		if err != nil {
			return session.Step{}, err
		}

		r := device.Range{Min: sc.Min, Val: sc.Val, Max: sc.Max, Units: units}
		if !r.Valid() {
			return session.Step{}, fmt.Errorf("range min=%g val=%g max=%g", r.Min, r.Val, r.Max)
		}

		return session.Calibration(ch, r), nil

	case StepMove:
		return session.MoveStep(sc.Delta), nil

	case StepWrite:
		t, err := device.ParseTarget(sc.Target)
		if err != nil {
			return session.Step{}, err
		}

		return session.WriteStep(t, sc.Index, sc.Value), nil

	case StepQuit:
		return session.QuitStep(), nil
	}

	return session.Step{}, fmt.Errorf("unknown step kind %q", sc.Kind)
}

func sensorChannel(s string) (int, error) {
	if ch, ok := device.SensorChannel(s); ok {
		return ch, nil
	}

	ch, err := strconv.Atoi(s)
	if err != nil || ch < 0 || ch >= device.AnalogChannels {
		return 0, fmt.Errorf("unknown sensor channel %q", s)
	}

	return ch, nil
}
