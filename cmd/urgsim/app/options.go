package app

import (
	"time"

	"github.com/arloliu/go-urg/config"
	"github.com/spf13/pflag"
)

// Options are the command line flags. A flag overrides the config file only
// when it is given.
type Options struct {
	ConfigFile string

	Format        string
	PollInterval  time.Duration
	SettleDelay   time.Duration
	MaxTimeouts   int
	MaxRetries    int
	StatsInterval time.Duration

	Transport        string
	ControllerDevice string
	DeviceDevice     string
	Baud             int

	Noise bool
	Seed  uint64

	LogLevel string
}

// NewDefaultOptions returns Options holding the config defaults, so that the
// help output shows them.
func NewDefaultOptions() *Options {
	d := config.Defaults()

	return &Options{
		Format:        d.Link.Format,
		PollInterval:  d.Link.PollInterval,
		SettleDelay:   d.Link.SettleDelay,
		MaxTimeouts:   d.Link.MaxTimeouts,
		MaxRetries:    d.Link.MaxRetries,
		StatsInterval: d.StatsInterval,
		Transport:     d.Transport.Kind,
		Baud:          d.Transport.Baud,
		Seed:          d.Noise.Seed,
		LogLevel:      d.Log.Level,
	}
}

// AddFlags adds the flags of o to fs.
func (o *Options) AddFlags(fs *pflag.FlagSet) {
	fs.StringVarP(&o.ConfigFile, "config", "c", o.ConfigFile, "path to the YAML configuration file")

	fs.StringVar(&o.Format, "format", o.Format, "wire format: ascii, binary or flagged")
	fs.DurationVar(&o.PollInterval, "poll-interval", o.PollInterval, "wait per poll tick")
	fs.DurationVar(&o.SettleDelay, "settle-delay", o.SettleDelay, "pause between sending a command and polling for its reply")
	fs.IntVar(&o.MaxTimeouts, "max-timeouts", o.MaxTimeouts, "empty poll ticks before a timeout, 0 waits forever")
	fs.IntVar(&o.MaxRetries, "max-retries", o.MaxRetries, "attempts per command, 0 retries forever")
	fs.DurationVar(&o.StatsInterval, "stats-interval", o.StatsInterval, "log link counters at this interval, 0 disables")

	fs.StringVar(&o.Transport, "transport", o.Transport, "link transport: socketpair or serial")
	fs.StringVar(&o.ControllerDevice, "controller-device", o.ControllerDevice, "serial device of the controller end")
	fs.StringVar(&o.DeviceDevice, "device-device", o.DeviceDevice, "serial device of the device end")
	fs.IntVar(&o.Baud, "baud", o.Baud, "serial baud rate")

	fs.BoolVar(&o.Noise, "noise", o.Noise, "add analog-in jitter on the device")
	fs.Uint64Var(&o.Seed, "seed", o.Seed, "noise seed, 0 picks one at random")

	fs.StringVar(&o.LogLevel, "log-level", o.LogLevel, "log level: debug, info, warn or error")
}

// Config loads the config file and applies the flags set in fs.
func (o *Options) Config(fs *pflag.FlagSet) (*config.Config, error) {
	cfg, err := config.Load(o.ConfigFile)
	if err != nil {
		return nil, err
	}

	set := func(name string, apply func()) {
		if fs.Changed(name) {
			apply()
		}
	}

	set("format", func() { cfg.Link.Format = o.Format })
	set("poll-interval", func() { cfg.Link.PollInterval = o.PollInterval })
	set("settle-delay", func() { cfg.Link.SettleDelay = o.SettleDelay })
	set("max-timeouts", func() { cfg.Link.MaxTimeouts = o.MaxTimeouts })
	set("max-retries", func() { cfg.Link.MaxRetries = o.MaxRetries })
	set("stats-interval", func() { cfg.StatsInterval = o.StatsInterval })
	set("transport", func() { cfg.Transport.Kind = o.Transport })
	set("controller-device", func() { cfg.Transport.ControllerDevice = o.ControllerDevice })
	set("device-device", func() { cfg.Transport.DeviceDevice = o.DeviceDevice })
	set("baud", func() { cfg.Transport.Baud = o.Baud })
	set("noise", func() { cfg.Noise.Enabled = o.Noise })
	set("seed", func() { cfg.Noise.Seed = o.Seed })
	set("log-level", func() { cfg.Log.Level = o.LogLevel })

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}
