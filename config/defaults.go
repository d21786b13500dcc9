package config

import (
	"time"

	"github.com/arloliu/go-urg/channel"
)

// Transport kinds.
const (
	TransportSocketPair = "socketpair"
	TransportSerial     = "serial"
)

// Defaults returns the configuration used when no file is given. It runs the
// default plan over a local socket pair with the instrument's link settings.
func Defaults() *Config {
	return &Config{
		Link: LinkConfig{
			Format:       "binary",
			PollInterval: time.Second,
			WriteTimeout: 3 * time.Second,
			SettleDelay:  time.Millisecond,
			MaxTimeouts:  4,
			MaxRetries:   4,
		},
		Transport: TransportConfig{
			Kind: TransportSocketPair,
			Baud: channel.DefaultBaudRate,
		},
		Log: LogConfig{
			Level: "info",
		},
		Plan: []StepConfig{
			{Kind: StepCalibrate, Channel: "ambient", Min: -40, Val: 21, Max: 40, Units: "C"},
			{Kind: StepCalibrate, Channel: "barometer", Min: 225, Val: 760, Max: 825, Units: "torr"},
			{Kind: StepQuit},
		},
	}
}
