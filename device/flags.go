package device

// Flag positions in the digital-IO word.
const (
	FlagPowerFail = iota
	FlagFieldBlank
	FlagEventExecuting
	FlagEventPaused
	FlagEventExpired
	FlagEventAborted
	FlagDurationError
	FlagFilterTempError
	FlagInactiveTempError
	FlagFlowVariationError
	FlagOutOfRangeError
	FlagFilterLoadError
	FlagDoorOpen

	NumFlags
)

// FlagMask covers every defined flag bit.
const FlagMask uint16 = 1<<NumFlags - 1

var flagNames = [NumFlags]string{
	"power_fail",
	"field_blank",
	"event_executing",
	"event_paused",
	"event_expired",
	"event_aborted",
	"duration_error",
	"filter_temp_error",
	"inactive_temp_error",
	"flow_variation_error",
	"out_of_range_error",
	"filter_load_error",
	"door_open",
}

// Flags is the instrument status flag set.
type Flags [NumFlags]bool

// SetWord sets flag i from bit i of w. Bits above the last flag are ignored.
func (f *Flags) SetWord(w uint16) {
	for i := range f {
		f[i] = w&(1<<i) != 0
	}
}

// Word packs the flags into a digital-IO word.
func (f *Flags) Word() uint16 {
	var w uint16
	for i, set := range f {
		if set {
			w |= 1 << i
		}
	}

	return w
}

// Map returns the flags keyed by name.
func (f *Flags) Map() map[string]bool {
	m := make(map[string]bool, NumFlags)
	for i, name := range flagNames {
		m[name] = f[i]
	}

	return m
}

// FlagName returns the name of flag i, or "" when i is not a flag.
func FlagName(i int) string {
	if i < 0 || i >= NumFlags {
		return ""
	}

	return flagNames[i]
}
