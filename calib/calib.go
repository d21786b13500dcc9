// Package calib implements the two-point sensor calibration run by the controller.
//
// For one analog channel the procedure drives the analog output to zero and to
// full scale, averaging AverageCount analog-in readings at each point to find
// the offset and the gain, then drives the output to the raw value of the
// range's reference point and records what the sensor reports there.
package calib

import (
	"errors"
	"fmt"
	"time"

	"github.com/arloliu/go-urg/device"
	"github.com/arloliu/go-urg/logger"
)

// AverageCount is the number of analog-in readings averaged per calibration point.
const AverageCount = 5

var (
	ErrInvalidRange  = errors.New("calib: invalid range")
	ErrInvalidSensor = errors.New("calib: invalid sensor")
	ErrNoSamples     = errors.New("calib: no samples recorded")
	ErrFlatResponse  = errors.New("calib: sensor does not respond to the output")
)

// Commander is the part of link.Commander the calibration needs.
type Commander interface {
	Read(target device.Target, index int) (uint16, error)
	Write(target device.Target, index int, v uint16) (uint16, error)
	Model() *device.Model
	Environment() *device.Environment
}

// Result is the outcome of one calibration.
type Result struct {
	Channel int          `json:"channel"`
	Sensor  string       `json:"sensor"`
	Range   device.Range `json:"range"`

	Low       float64 `json:"low"`
	High      float64 `json:"high"`
	RawLow    float64 `json:"raw_low"`
	RawHigh   float64 `json:"raw_high"`
	Setpoint  uint16  `json:"setpoint"`
	System    float64 `json:"system"`
	Reference float64 `json:"reference"`
	Gain      float64 `json:"gain"`
	Offset    float64 `json:"offset"`

	Temp float64 `json:"temp"`
	Pres float64 `json:"pres"`

	Duration time.Duration `json:"duration"`
}

type options struct {
	logger logger.Logger
}

// Option configures Calibrate.
type Option func(*options)

// WithLogger sets the logger.
func WithLogger(l logger.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// Calibrate runs the two-point calibration of analog channel ch over r.
//
// The sensor record is updated only when every step succeeds. On failure the
// previous record is restored and the error of the failed step is returned.
func Calibrate(cmdr Commander, ch int, r device.Range, opts ...Option) (Result, error) {
	o := options{logger: logger.GetLogger()}
	for _, opt := range opts {
		opt(&o)
	}

	if !r.Valid() {
		return Result{}, fmt.Errorf("%w: min=%g val=%g max=%g", ErrInvalidRange, r.Min, r.Val, r.Max)
	}

	s := cmdr.Model().Sensor(ch)
	if s == nil || s.RawMax == 0 {
		return Result{}, fmt.Errorf("%w: channel %d", ErrInvalidSensor, ch)
	}

	l := o.logger.With("sensor", s.Name, "channel", ch)
	start := time.Now()
	saved := *s

	res, err := run(cmdr, ch, s, r)
	if err != nil {
		*s = saved
		l.Error("calib: calibration failed, previous coefficients kept", "error", err)

		return Result{}, err
	}
	res.Duration = time.Since(start)

	l.Info("calib: calibration complete",
		"gain", res.Gain, "offset", res.Offset, "low", res.Low, "high", res.High,
		"system", res.System, "reference", res.Reference, "units", r.Units.String())

	return res, nil
}

func run(cmdr Commander, ch int, s *device.Sensor, r device.Range) (Result, error) {
	rmax := float64(s.RawMax)

	// Seed the coefficients from the range so readings come out in physical units.
	s.Gain = (r.Max - r.Min) / rmax
	s.Offset = r.Min
	s.Min, s.Max = r.Max, r.Min

	low, rawLow, err := average(cmdr, ch, s, 0)
	if err != nil {
		return Result{}, fmt.Errorf("calib: offset point: %w", err)
	}
	s.Offset = low

	high, rawHigh, err := average(cmdr, ch, s, s.RawMax)
	if err != nil {
		return Result{}, fmt.Errorf("calib: gain point: %w", err)
	}

	// The readings must rise with the output, in raw counts.
	if rawHigh <= rawLow {
		return Result{}, fmt.Errorf("%w: raw low=%g high=%g", ErrFlatResponse, rawLow, rawHigh)
	}

	s.Gain = (high - low) / rmax

	sp := setpoint(r, s)
	sys, _, err := average(cmdr, ch, s, sp)
	if err != nil {
		return Result{}, fmt.Errorf("calib: reference point: %w", err)
	}

	s.System = sys
	s.Reference = r.Val
	s.Reset()

	if env := cmdr.Environment(); env != nil {
		s.Temp = env.Temperature()
		s.Pres = env.Pressure()
	}

	return Result{
		Channel:   ch,
		Sensor:    s.Name,
		Range:     r,
		Low:       low,
		High:      high,
		RawLow:    rawLow,
		RawHigh:   rawHigh,
		Setpoint:  sp,
		System:    sys,
		Reference: r.Val,
		Gain:      s.Gain,
		Offset:    s.Offset,
		Temp:      s.Temp,
		Pres:      s.Pres,
	}, nil
}

// setpoint is the raw output expected to read as the range's reference value.
func setpoint(r device.Range, s *device.Sensor) uint16 {
	v := (r.Val - r.Min) / s.Gain
	if v <= 0 {
		return 0
	}

	if v >= float64(s.RawMax) {
		return s.RawMax
	}

	return uint16(v)
}

// average drives the output to raw and returns the mean of AverageCount
// readings, scaled by the sensor and in raw counts.
func average(cmdr Commander, ch int, s *device.Sensor, raw uint16) (scaled, counts float64, err error) {
	s.Reset()

	if _, err := cmdr.Write(device.TargetAnalogOut, ch, raw); err != nil {
		return 0, 0, err
	}

	var sum float64
	for i := 0; i < AverageCount; i++ {
		v, err := cmdr.Read(device.TargetAnalogIn, ch)
		if err != nil {
			return 0, 0, err
		}
		sum += float64(v)
	}

	if s.Count == 0 {
		return 0, 0, ErrNoSamples
	}

	return s.Average, sum / AverageCount, nil
}
