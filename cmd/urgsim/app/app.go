// Package app implements the urgsim command.
package app

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/arloliu/go-urg/config"
	"github.com/arloliu/go-urg/logger"
	"github.com/arloliu/go-urg/session"
	"github.com/spf13/cobra"
)

// CommandName is the name of the binary.
const CommandName = "urgsim"

// NewCommand creates the urgsim root command.
func NewCommand() *cobra.Command {
	return newCommand(NewDefaultOptions())
}

func newCommand(o *Options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   CommandName,
		Short: "Run a controller and a simulated instrument over a framed link",
		Long: `urgsim starts a simulated instrument and a controller on the two ends of a
link, runs the configured command plan (by default: calibrate the ambient and
barometer sensors, then stop the instrument) and logs the final state of both.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := o.Config(cmd.Flags())
			if err != nil {
				logger.Error("urgsim: invalid configuration", "error", err)
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			return Run(ctx, cfg)
		},
	}

	o.AddFlags(cmd.Flags())

	return cmd
}

// Run runs one session as configured and logs its report.
func Run(ctx context.Context, cfg *config.Config) error {
	logger.SetLevel(cfg.LogLevel())
	l := logger.GetLogger()

	ccfg, err := cfg.ChannelConfig(l)
	if err != nil {
		return err
	}

	plan, err := cfg.BuildPlan()
	if err != nil {
		return err
	}

	opts, err := cfg.SessionOptions(l)
	if err != nil {
		l.Error("urgsim: cannot open transport", "error", err)
		return err
	}

	s, err := session.New(ccfg, opts...)
	if err != nil {
		return err
	}

	l.Info("urgsim: session starting",
		"session", s.ID(), "format", ccfg.Format().String(), "transport", cfg.Transport.Kind, "steps", len(plan))

	rep, err := s.Run(ctx, plan)
	if rep != nil {
		logReport(l, rep)
	}

	if err != nil {
		return fmt.Errorf("urgsim: %w", err)
	}

	return nil
}

func logReport(l logger.Logger, rep *session.Report) {
	l = l.With("session", rep.ID)

	for _, c := range rep.Calibrations {
		l.Info("urgsim: calibration",
			"sensor", c.Sensor, "channel", c.Channel, "units", c.Range.Units.String(),
			"gain", c.Gain, "offset", c.Offset, "system", c.System, "reference", c.Reference,
			"temp", c.Temp, "pres", c.Pres)
	}

	ctrl := rep.Controller
	l.Info("urgsim: controller state",
		"flags", ctrl.FlagWord, "stepper", ctrl.Stepper, "environment", ctrl.Environment,
		"metrics", rep.ControllerMetrics)

	dev := rep.Device
	l.Info("urgsim: device state",
		"flags", dev.FlagWord, "stepper", dev.Stepper, "analogOut", dev.AnalogOut, "analogIn", dev.AnalogIn,
		"metrics", rep.DeviceMetrics)

	l.Info("urgsim: done", "cancelled", rep.Cancelled, "elapsed", rep.Finished.Sub(rep.Started))
}
