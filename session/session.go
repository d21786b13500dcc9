package session

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"sync/atomic"
	"time"

	"github.com/arloliu/go-urg/channel"
	"github.com/arloliu/go-urg/device"
	"github.com/arloliu/go-urg/internal/task"
	"github.com/arloliu/go-urg/link"
	"github.com/arloliu/go-urg/logger"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
)

// ErrAlreadyRun is returned by a second call to Run.
var ErrAlreadyRun = errors.New("session: already run")

const (
	roleDevice     = "device"
	roleController = "controller"
	taskStats      = "stats"
)

// Session wires one controller and one device over a link.
type Session struct {
	id  string
	cfg *channel.Config

	ctrlTransport channel.Transport
	devTransport  channel.Transport

	noise         *rand.Rand
	logger        logger.Logger
	registerer    prometheus.Registerer
	statsInterval time.Duration

	ran atomic.Bool
}

// New creates a Session. cfg configures both channel ends; nil selects the defaults.
func New(cfg *channel.Config, opts ...Option) (*Session, error) {
	if cfg == nil {
		var err error
		if cfg, err = channel.NewConfig(); err != nil {
			return nil, err
		}
	}

	s := &Session{
		id:     uuid.NewString(),
		cfg:    cfg,
		logger: logger.GetLogger(),
	}

	for _, opt := range opts {
		if err := opt.apply(s); err != nil {
			return nil, err
		}
	}
	s.logger = s.logger.With("session", s.id)

	return s, nil
}

// ID returns the session id attached to every log line of the session.
func (s *Session) ID() string { return s.id }

type roles struct {
	ctrlCh, devCh *channel.Channel
	ctrlProc      *device.Processor
	devProc       *device.Processor
	cmdr          *link.Commander
	resp          *link.Responder
}

// Run starts the device, runs plan on the controller and returns when both roles
// have stopped. The device is stopped once the controller is done, by the quit
// command or, when the plan ends otherwise, by raising its cancel flag.
// Cancelling ctx stops both roles; the report then has Cancelled set.
//
// The returned error is the report's Err, or a setup failure with a nil report.
// A Session runs once.
func (s *Session) Run(ctx context.Context, plan Plan) (*Report, error) {
	if !s.ran.CompareAndSwap(false, true) {
		return nil, ErrAlreadyRun
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r, err := s.setup()
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = r.ctrlCh.Close()
		_ = r.devCh.Close()
	}()

	rep := &Report{ID: s.id, Started: time.Now()}

	var cancelled atomic.Bool
	stop := context.AfterFunc(ctx, func() {
		cancelled.Store(true)
		s.logger.Info("session: cancelled, stopping roles")
		r.ctrlProc.CancelFlag().Set()
		r.devProc.CancelFlag().Set()
	})
	defer stop()

	mgr := task.NewManager(context.WithoutCancel(ctx), s.logger)

	if err := mgr.Start(roleDevice, func(context.Context) error {
		err := r.resp.Run()
		if err != nil {
			// Nobody is answering any more.
			r.ctrlProc.CancelFlag().Set()
		}

		return err
	}); err != nil {
		return nil, err
	}

	if err := mgr.Start(roleController, func(context.Context) error {
		defer r.devProc.CancelFlag().Set()
		return s.runPlan(r.cmdr, plan, rep)
	}); err != nil {
		r.devProc.CancelFlag().Set()
		mgr.Stop()
		mgr.Wait()

		return nil, err
	}

	if s.statsInterval > 0 {
		if err := mgr.StartInterval(taskStats, func() bool {
			s.logStats(r)
			return true
		}, s.statsInterval); err != nil {
			s.logger.Warn("session: periodic stats disabled", "error", err)
		}
	}

	<-mgr.Done(roleController)
	<-mgr.Done(roleDevice)
	mgr.Stop()
	results := mgr.Wait()

	rep.Finished = time.Now()
	rep.Cancelled = cancelled.Load()
	rep.ControllerErr = roleError(results[roleController])
	rep.DeviceErr = roleError(results[roleDevice])
	rep.Controller = r.ctrlProc.Snapshot()
	rep.Device = r.devProc.Snapshot()
	rep.ControllerMetrics = r.cmdr.Metrics().Snapshot()
	rep.DeviceMetrics = r.resp.Metrics().Snapshot()

	s.logStats(r)
	if err := rep.Err(); err != nil {
		s.logger.Error("session: finished with errors", "error", err, "elapsed", rep.Finished.Sub(rep.Started))
		return rep, err
	}

	s.logger.Info("session: finished", "cancelled", rep.Cancelled, "elapsed", rep.Finished.Sub(rep.Started))

	return rep, nil
}

func (s *Session) setup() (*roles, error) {
	ctrlT, devT := s.ctrlTransport, s.devTransport
	if ctrlT == nil {
		var err error
		if ctrlT, devT, err = channel.Pair(); err != nil {
			return nil, fmt.Errorf("session: create link: %w", err)
		}
	}

	closeAll := func() {
		_ = ctrlT.Close()
		_ = devT.Close()
	}

	r, err := s.build(ctrlT, devT)
	if err != nil {
		closeAll()
		return nil, err
	}

	return r, nil
}

func (s *Session) build(ctrlT, devT channel.Transport) (*roles, error) {
	ctrlLog := s.logger.With("role", roleController)
	devLog := s.logger.With("role", roleDevice)

	open := func(t channel.Transport, name string, l logger.Logger) (*channel.Channel, error) {
		cfg, err := s.cfg.Clone(channel.WithName(name), channel.WithLogger(l))
		if err != nil {
			return nil, err
		}

		return channel.Open(t, cfg)
	}

	r := &roles{}
	var err error

	if r.ctrlCh, err = open(ctrlT, roleController, ctrlLog); err != nil {
		return nil, err
	}
	if r.devCh, err = open(devT, roleDevice, devLog); err != nil {
		return nil, err
	}

	devOpts := []device.Option{device.WithLoopback(), device.WithLogger(devLog)}
	if s.noise != nil {
		devOpts = append(devOpts, device.WithNoise(s.noise))
	}
	if r.devProc, err = device.NewProcessor(device.NewModel(), devOpts...); err != nil {
		return nil, err
	}

	r.ctrlProc, err = device.NewProcessor(device.NewModel(),
		device.WithSensorTracking(device.NewEnvironment()),
		device.WithLogger(ctrlLog),
	)
	if err != nil {
		return nil, err
	}

	// link adds the role field itself.
	if r.resp, err = link.NewResponder(r.devCh, r.devProc, link.WithLogger(s.logger)); err != nil {
		return nil, err
	}
	if r.cmdr, err = link.NewCommander(r.ctrlCh, r.ctrlProc, link.WithLogger(s.logger)); err != nil {
		return nil, err
	}

	if s.registerer != nil {
		if err := link.RegisterMetrics(s.registerer, roleDevice, r.resp.Metrics()); err != nil {
			return nil, fmt.Errorf("session: register metrics: %w", err)
		}
		if err := link.RegisterMetrics(s.registerer, roleController, r.cmdr.Metrics()); err != nil {
			return nil, fmt.Errorf("session: register metrics: %w", err)
		}
	}

	return r, nil
}

func (s *Session) runPlan(cmdr *link.Commander, plan Plan, rep *Report) error {
	l := cmdr.Logger()
	cancel := cmdr.Processor().CancelFlag()

	for i, step := range plan {
		if cancel.IsSet() {
			return link.ErrCancelled
		}

		l.Info("session: step", "index", i, "name", step.Name)
		if err := step.Do(cmdr, rep); err != nil {
			return fmt.Errorf("session: step %q: %w", step.Name, err)
		}
	}

	return nil
}

func (s *Session) logStats(r *roles) {
	c := r.cmdr.Metrics().Snapshot()
	d := r.resp.Metrics().Snapshot()

	s.logger.Info("session: link stats",
		"sent", c.FramesSent, "received", c.FramesReceived, "retries", c.Retries,
		"timeouts", c.Timeouts, "failures", c.PermanentFailures,
		"deviceFrameErrors", d.FrameErrors, "deviceNaks", d.Naks)
}

// roleError drops cancellation, which only reports that the role was told to stop.
func roleError(err error) error {
	if errors.Is(err, link.ErrCancelled) || errors.Is(err, channel.ErrCancelled) {
		return nil
	}

	return err
}
