package device

import (
	"fmt"
	"strings"
)

// Target is the addressed register bank, carried as the first byte of a frame.
type Target byte

const (
	TargetAnalogIn    Target = 'A'
	TargetAnalogOut   Target = 'D'
	TargetDigitalIO   Target = 'F'
	TargetGlobal      Target = 'G'
	TargetPressure    Target = 'P'
	TargetStepper     Target = 'S'
	TargetTemperature Target = 'T'
)

// Global verbs.
const (
	VerbQuit byte = 'q'
)

func (t Target) String() string {
	switch t {
	case TargetAnalogIn:
		return "analog-in"
	case TargetAnalogOut:
		return "analog-out"
	case TargetDigitalIO:
		return "digital-io"
	case TargetGlobal:
		return "global"
	case TargetPressure:
		return "pressure"
	case TargetStepper:
		return "stepper"
	case TargetTemperature:
		return "temperature"
	default:
		return fmt.Sprintf("target(0x%02X)", byte(t))
	}
}

var targets = []Target{
	TargetAnalogIn, TargetAnalogOut, TargetDigitalIO, TargetGlobal,
	TargetPressure, TargetStepper, TargetTemperature,
}

// ParseTarget accepts a target letter ("A") or name ("analog-in").
func ParseTarget(s string) (Target, error) {
	for _, t := range targets {
		if s == string(rune(t)) || strings.EqualFold(s, t.String()) {
			return t, nil
		}
	}

	return 0, fmt.Errorf("device: unknown target %q", s)
}

// Units of a measurement range.
type Units uint8

const (
	UnitsNone Units = iota
	UnitsCelsius
	UnitsTorr
	UnitsFahrenheit
	UnitsInHg
	UnitsKelvin
	UnitsAtm
	UnitsPSI
	UnitsMHz
	UnitsCycles
)

var unitNames = [...]string{"", "C", "torr", "F", "inHg", "K", "atm", "psi", "MHz", "cycles"}

func (u Units) String() string {
	if int(u) < len(unitNames) {
		return unitNames[u]
	}

	return ""
}

// ParseUnits maps a unit symbol to Units. Matching ignores case.
func ParseUnits(s string) (Units, error) {
	for i, name := range unitNames {
		if strings.EqualFold(name, s) {
			return Units(i), nil
		}
	}

	return UnitsNone, fmt.Errorf("device: unknown units %q", s)
}

// Range is the physical span of a sensor: minimum, nominal reference value and maximum.
type Range struct {
	Min   float64 `json:"min" yaml:"min"`
	Val   float64 `json:"val" yaml:"val"`
	Max   float64 `json:"max" yaml:"max"`
	Units Units   `json:"units" yaml:"units"`
}

// Calibration ranges used by the default plan.
var (
	TemperatureCelsius = Range{Min: -40, Val: 21, Max: 40, Units: UnitsCelsius}
	BarometerTorr      = Range{Min: 225, Val: 760, Max: 825, Units: UnitsTorr}
)

// Valid reports whether Min < Max and Val lies within them.
func (r Range) Valid() bool {
	return r.Min < r.Max && r.Val >= r.Min && r.Val <= r.Max
}
