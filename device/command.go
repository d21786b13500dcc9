package device

import (
	"fmt"

	"github.com/arloliu/go-urg/frame"
)

// Command is a validated request decoded from a frame. It is one of
// ReadRegister, WriteRegister, ReadStepper, MoveStepper or Quit.
type Command interface {
	Target() Target
	isCommand()
}

// ReadRegister reads register Index of a bank.
type ReadRegister struct {
	Bank  Target
	Index int
}

// WriteRegister stores Value in register Index of a bank.
type WriteRegister struct {
	Bank  Target
	Index int
	Value uint16
}

// ReadStepper reads the stepper position.
type ReadStepper struct{}

// MoveStepper moves the stepper by a signed delta.
type MoveStepper struct {
	Delta int16
}

// Quit ends the session.
type Quit struct{}

func (c ReadRegister) Target() Target  { return c.Bank }
func (c WriteRegister) Target() Target { return c.Bank }
func (ReadStepper) Target() Target     { return TargetStepper }
func (MoveStepper) Target() Target     { return TargetStepper }
func (Quit) Target() Target            { return TargetGlobal }

func (ReadRegister) isCommand()  {}
func (WriteRegister) isCommand() {}
func (ReadStepper) isCommand()   {}
func (MoveStepper) isCommand()   {}
func (Quit) isCommand()          {}

// ParseCommand validates a frame and turns it into a Command. The command byte
// is the register index for bank targets and the verb for the global target.
// Unknown targets, unknown verbs and out-of-range indexes fail with ErrUnsupported.
func ParseCommand(f frame.Frame) (Command, error) {
	if f.IsNAK() {
		return nil, fmt.Errorf("%w: %s", ErrNegativeAck, f)
	}

	t := Target(f.Target)

	switch t {
	case TargetAnalogIn, TargetAnalogOut, TargetDigitalIO, TargetPressure, TargetTemperature:
		idx := int(f.Command)
		if n := bankSize(t); idx >= n {
			return nil, fmt.Errorf("%w: %s index %d out of range [0, %d)", ErrUnsupported, t, idx, n)
		}

		if f.HasValue {
			return WriteRegister{Bank: t, Index: idx, Value: f.Value}, nil
		}

		return ReadRegister{Bank: t, Index: idx}, nil

	case TargetStepper:
		if f.HasValue {
			return MoveStepper{Delta: int16(f.Value)}, nil
		}

		return ReadStepper{}, nil

	case TargetGlobal:
		if f.Command == VerbQuit {
			return Quit{}, nil
		}

		return nil, fmt.Errorf("%w: global verb 0x%02X", ErrUnsupported, f.Command)
	}

	return nil, fmt.Errorf("%w: target 0x%02X", ErrUnsupported, f.Target)
}

func bankSize(t Target) int {
	switch t {
	case TargetAnalogIn, TargetAnalogOut:
		return AnalogChannels
	case TargetDigitalIO:
		return DigitalIOWords
	case TargetPressure:
		return PressureChannels
	case TargetTemperature:
		return TemperatureChannels
	}

	return 0
}
