package device

import (
	"strings"
	"time"
)

// Analog channel assignment of the sensors.
const (
	ChanSensor = iota
	ChanAmbient
	ChanFilter
	ChanMeter
	ChanInactive
	ChanBarometer
	ChanMeterDrop
	ChanFlow
)

// DefaultRawMax is the full-scale raw reading of the 10-bit converters.
const DefaultRawMax = 0x03FF

// Sensor is the calibration and running-statistics record of one analog channel.
type Sensor struct {
	Name   string `json:"name"`
	Points uint16 `json:"points"` // calibration points
	Raw    uint16 `json:"raw"`
	RawMax uint16 `json:"raw_max"`

	Gain   float64 `json:"gain"`
	Offset float64 `json:"offset"`

	// System and Reference are the measured and true values at the reference point.
	System    float64 `json:"system"`
	Reference float64 `json:"reference"`

	Count   int     `json:"count"`
	Sum     float64 `json:"sum"`
	Average float64 `json:"average"`
	Min     float64 `json:"min"`
	Max     float64 `json:"max"`

	// Temp and Pres are the ambient conditions at calibration time.
	Temp float64 `json:"temp"`
	Pres float64 `json:"pres"`

	Timestamp time.Time `json:"timestamp"`
}

// Scale converts a raw reading to physical units.
func (s *Sensor) Scale(raw uint16) float64 {
	return s.Gain*float64(raw) + s.Offset
}

// Record folds one raw reading into the running statistics and returns its scaled value.
// The first reading after Reset re-seeds Min and Max.
func (s *Sensor) Record(raw uint16, ts time.Time) float64 {
	v := s.Scale(raw)

	s.Raw = raw
	s.Timestamp = ts
	s.Count++
	s.Sum += v
	s.Average = s.Sum / float64(s.Count)

	if s.Count == 1 {
		s.Min, s.Max = v, v
	} else {
		s.Min = min(s.Min, v)
		s.Max = max(s.Max, v)
	}

	return v
}

// Reset clears the sample count and sum.
func (s *Sensor) Reset() {
	s.Count = 0
	s.Sum = 0
}

// SensorChannel returns the analog channel of the sensor with the given default
// name. Matching ignores case.
func SensorChannel(name string) (int, bool) {
	for i, s := range defaultSensors() {
		if strings.EqualFold(s.Name, name) {
			return i, true
		}
	}

	return 0, false
}

func defaultSensors() [AnalogChannels]Sensor {
	cal := func(name string, points uint16, gain, off, sys, avg, hi, lo float64) Sensor {
		return Sensor{
			Name: name, Points: points, RawMax: DefaultRawMax,
			Gain: gain, Offset: off,
			System: sys, Reference: sys,
			Average: avg, Max: hi, Min: lo,
			Temp: DefaultTemperature, Pres: DefaultPressure,
		}
	}

	return [AnalogChannels]Sensor{
		ChanSensor:    {Name: "Sensor"},
		ChanAmbient:   cal("Ambient", 3, 1.50, -2019, 21.0, 21.0, 21.3, 20.8),
		ChanFilter:    cal("Filter", 3, 1.49, -2060, 21.0, 21.3, 21.6, 21.0),
		ChanMeter:     cal("Meter", 3, 1.49, -2060, 22.0, 22.0, 22.1, 21.8),
		ChanInactive:  cal("Inactive", 2, 1.49, -2060, 21.0, 21.3, 21.5, 21.0),
		ChanBarometer: cal("Barometer", 4, 34.42, -1657, 760, 736, 737, 734),
		ChanMeterDrop: cal("MeterDrop", 4, 10.35, -4238, 10.0, 19.4, 19.9, 18.8),
		ChanFlow:      cal("FlowSensor", 4, 6.27, 0, 16.7, 16.7, 16.7, 16.7),
	}
}
