package session

import (
	"fmt"

	"github.com/arloliu/go-urg/calib"
	"github.com/arloliu/go-urg/device"
	"github.com/arloliu/go-urg/link"
)

// Step is one unit of controller work.
type Step struct {
	Name string
	Do   func(cmdr *link.Commander, rep *Report) error
}

// Plan is the ordered list of steps the controller runs.
type Plan []Step

// DefaultPlan calibrates the ambient and barometer sensors and stops the device.
func DefaultPlan() Plan {
	return Plan{
		Calibration(device.ChanAmbient, device.TemperatureCelsius),
		Calibration(device.ChanBarometer, device.BarometerTorr),
		QuitStep(),
	}
}

// Calibration calibrates analog channel ch over r and appends the result to the report.
func Calibration(ch int, r device.Range) Step {
	return Step{
		Name: fmt.Sprintf("calibrate channel %d (%s)", ch, r.Units),
		Do: func(cmdr *link.Commander, rep *Report) error {
			res, err := calib.Calibrate(cmdr, ch, r, calib.WithLogger(cmdr.Logger()))
			if err != nil {
				return err
			}
			rep.Calibrations = append(rep.Calibrations, res)

			return nil
		},
	}
}

// MoveStep moves the stepper by delta.
func MoveStep(delta int16) Step {
	return Step{
		Name: fmt.Sprintf("move stepper %+d", delta),
		Do: func(cmdr *link.Commander, _ *Report) error {
			return cmdr.Move(delta)
		},
	}
}

// WriteStep stores v in a register of the device.
func WriteStep(target device.Target, index int, v uint16) Step {
	return Step{
		Name: fmt.Sprintf("write %s[%d]=%d", target, index, v),
		Do: func(cmdr *link.Commander, _ *Report) error {
			_, err := cmdr.Write(target, index, v)
			return err
		},
	}
}

// QuitStep asks the device to stop.
func QuitStep() Step {
	return Step{
		Name: "quit",
		Do: func(cmdr *link.Commander, _ *Report) error {
			return cmdr.Quit()
		},
	}
}
