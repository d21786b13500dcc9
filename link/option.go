package link

import (
	"errors"

	"github.com/arloliu/go-urg/logger"
)

type roleConfig struct {
	metrics *Metrics
	logger  logger.Logger
}

// Option configures a Responder or a Commander.
type Option interface {
	apply(*roleConfig) error
}

type optFunc func(*roleConfig) error

func (f optFunc) apply(cfg *roleConfig) error { return f(cfg) }

// WithMetrics sets the counters updated by the role.
func WithMetrics(m *Metrics) Option {
	return optFunc(func(cfg *roleConfig) error {
		if m == nil {
			return errors.New("link: metrics must not be nil")
		}
		cfg.metrics = m

		return nil
	})
}

// WithLogger sets the logger.
func WithLogger(l logger.Logger) Option {
	return optFunc(func(cfg *roleConfig) error {
		if l == nil {
			return errors.New("link: logger must not be nil")
		}
		cfg.logger = l

		return nil
	})
}

func newRoleConfig(role string, opts []Option) (*roleConfig, error) {
	cfg := &roleConfig{
		metrics: &Metrics{},
		logger:  logger.GetLogger(),
	}

	for _, opt := range opts {
		if err := opt.apply(cfg); err != nil {
			return nil, err
		}
	}
	cfg.logger = cfg.logger.With("role", role)

	return cfg, nil
}
