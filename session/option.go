package session

import (
	"errors"
	"math/rand/v2"
	"time"

	"github.com/arloliu/go-urg/channel"
	"github.com/arloliu/go-urg/logger"
	"github.com/prometheus/client_golang/prometheus"
)

// Option configures a Session.
type Option interface {
	apply(*Session) error
}

type optFunc func(*Session) error

func (f optFunc) apply(s *Session) error { return f(s) }

// WithTransportPair runs the session over the given ends instead of a fresh
// socket pair. The session closes both when Run returns.
func WithTransportPair(controller, device channel.Transport) Option {
	return optFunc(func(s *Session) error {
		if controller == nil || device == nil {
			return errors.New("session: transports must not be nil")
		}
		s.ctrlTransport, s.devTransport = controller, device

		return nil
	})
}

// WithNoise adds analog-in jitter on the device, drawn from r.
func WithNoise(r *rand.Rand) Option {
	return optFunc(func(s *Session) error {
		if r == nil {
			return errors.New("session: noise source must not be nil")
		}
		s.noise = r

		return nil
	})
}

// WithLogger sets the logger.
func WithLogger(l logger.Logger) Option {
	return optFunc(func(s *Session) error {
		if l == nil {
			return errors.New("session: logger must not be nil")
		}
		s.logger = l

		return nil
	})
}

// WithRegisterer registers both roles' link counters on reg.
func WithRegisterer(reg prometheus.Registerer) Option {
	return optFunc(func(s *Session) error {
		if reg == nil {
			return errors.New("session: registerer must not be nil")
		}
		s.registerer = reg

		return nil
	})
}

// WithStatsInterval logs the link counters every d while the session runs.
// Zero disables the periodic log.
func WithStatsInterval(d time.Duration) Option {
	return optFunc(func(s *Session) error {
		if d < 0 {
			return errors.New("session: stats interval must not be negative")
		}
		s.statsInterval = d

		return nil
	})
}
