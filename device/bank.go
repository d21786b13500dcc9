package device

import "fmt"

// Bank sizes.
const (
	AnalogChannels      = 8
	DigitalIOWords      = NumFlags
	PressureChannels    = 32
	TemperatureChannels = 32
)

// Bank is a fixed-capacity array of 16-bit registers.
type Bank struct {
	target Target
	vals   []uint16
}

// NewBank creates a zeroed bank of n registers.
func NewBank(target Target, n int) *Bank {
	return &Bank{target: target, vals: make([]uint16, n)}
}

// Len returns the bank capacity.
func (b *Bank) Len() int { return len(b.vals) }

// Get returns register i.
func (b *Bank) Get(i int) (uint16, error) {
	if err := b.check(i); err != nil {
		return 0, err
	}

	return b.vals[i], nil
}

// Set stores v in register i.
func (b *Bank) Set(i int, v uint16) error {
	if err := b.check(i); err != nil {
		return err
	}
	b.vals[i] = v

	return nil
}

// Values returns a copy of all registers.
func (b *Bank) Values() []uint16 {
	out := make([]uint16, len(b.vals))
	copy(out, b.vals)

	return out
}

func (b *Bank) check(i int) error {
	if i < 0 || i >= len(b.vals) {
		return fmt.Errorf("%w: %s index %d out of range [0, %d)", ErrUnsupported, b.target, i, len(b.vals))
	}

	return nil
}
