package device

import "github.com/puzpuzpuz/xsync/v3"

// Published reading names.
const (
	ReadingTemperature = "temperature"
	ReadingPressure    = "pressure"
)

// Defaults before any ambient or barometer reading has been taken.
const (
	DefaultTemperature = 25.0  // C
	DefaultPressure    = 760.0 // torr
)

// Environment holds the ambient readings published by the controller while it
// tracks sensors. It is safe for concurrent use.
type Environment struct {
	readings *xsync.MapOf[string, float64]
}

// NewEnvironment creates an Environment with the default temperature and pressure.
func NewEnvironment() *Environment {
	env := &Environment{readings: xsync.NewMapOf[string, float64]()}
	env.Publish(ReadingTemperature, DefaultTemperature)
	env.Publish(ReadingPressure, DefaultPressure)

	return env
}

// Publish stores a named reading.
func (e *Environment) Publish(name string, v float64) {
	e.readings.Store(name, v)
}

// Value returns a named reading.
func (e *Environment) Value(name string) (float64, bool) {
	return e.readings.Load(name)
}

// Temperature returns the ambient temperature in C.
func (e *Environment) Temperature() float64 {
	v, _ := e.readings.Load(ReadingTemperature)
	return v
}

// Pressure returns the barometric pressure in torr.
func (e *Environment) Pressure() float64 {
	v, _ := e.readings.Load(ReadingPressure)
	return v
}

// Values returns a copy of all readings.
func (e *Environment) Values() map[string]float64 {
	out := make(map[string]float64, e.readings.Size())
	e.readings.Range(func(k string, v float64) bool {
		out[k] = v
		return true
	})

	return out
}
