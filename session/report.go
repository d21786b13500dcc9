package session

import (
	"errors"
	"time"

	"github.com/arloliu/go-urg/calib"
	"github.com/arloliu/go-urg/device"
	"github.com/arloliu/go-urg/link"
)

// Report is the outcome of one session.
type Report struct {
	ID       string    `json:"id"`
	Started  time.Time `json:"started"`
	Finished time.Time `json:"finished"`

	// Cancelled is set when the session was stopped from outside.
	Cancelled bool `json:"cancelled"`

	// ControllerErr and DeviceErr are the roles' failures. Cancellation is not a failure.
	ControllerErr error `json:"-"`
	DeviceErr     error `json:"-"`

	Calibrations []calib.Result `json:"calibrations"`

	Controller device.Snapshot `json:"controller"`
	Device     device.Snapshot `json:"device"`

	ControllerMetrics link.MetricsSnapshot `json:"controller_metrics"`
	DeviceMetrics     link.MetricsSnapshot `json:"device_metrics"`
}

// Err joins the roles' failures, or returns nil when both succeeded.
func (r *Report) Err() error {
	return errors.Join(r.ControllerErr, r.DeviceErr)
}
