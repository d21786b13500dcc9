package device

import "time"

// Version is a major.minor.build firmware version.
type Version struct {
	Major uint16 `json:"major"`
	Minor uint16 `json:"minor"`
	Build uint16 `json:"build"`
}

// SiteInfo is the instrument's site metadata.
type SiteInfo struct {
	Model    uint16  `json:"model"`
	Serial   string  `json:"serial"`
	Firmware Version `json:"firmware"`
	Boot     Version `json:"boot"`

	BaudRate   uint32        `json:"baud_rate"`
	LogPeriod  time.Duration `json:"log_period"`
	LogVersion uint16        `json:"log_version"`
	TxPeriod   time.Duration `json:"tx_period"`

	TempMinCalPoints uint16 `json:"temp_min_cal_points"`
	PresMinCalPoints uint16 `json:"pres_min_cal_points"`
	FlowMinCalPoints uint16 `json:"flow_min_cal_points"`
}

// EventLog holds the event fields of the sampling log.
type EventLog struct {
	SetDuration    time.Duration `json:"set_duration"`
	Volume         float64       `json:"volume"`
	SetFlowRate    float64       `json:"set_flow_rate"`
	AvgFlowRate    float64       `json:"avg_flow_rate"`
	FlowCV         float64       `json:"flow_cv"`
	MaxDiff        float64       `json:"max_diff"`
	PowerFailCount uint16        `json:"power_fail_count"`
	FilterID       string        `json:"filter_id"`
	FilterPosition uint32        `json:"filter_position"`
}

// Model is the register model of one role. It is owned by a single goroutine.
type Model struct {
	AnalogIn    *Bank
	AnalogOut   *Bank
	DigitalIO   *Bank
	Pressure    *Bank
	Temperature *Bank

	Flags   Flags
	Stepper int16
	Sensors [AnalogChannels]Sensor

	Site  SiteInfo
	Event EventLog
}

// NewModel creates a Model with the instrument's factory defaults.
func NewModel() *Model {
	m := &Model{
		AnalogIn:    NewBank(TargetAnalogIn, AnalogChannels),
		AnalogOut:   NewBank(TargetAnalogOut, AnalogChannels),
		DigitalIO:   NewBank(TargetDigitalIO, DigitalIOWords),
		Pressure:    NewBank(TargetPressure, PressureChannels),
		Temperature: NewBank(TargetTemperature, TemperatureChannels),
		Sensors:     defaultSensors(),
		Site: SiteInfo{
			Model:            2,
			Serial:           "2.5-300-00498",
			Firmware:         Version{Major: 6, Minor: 4, Build: 4},
			Boot:             Version{Major: 2, Minor: 5, Build: 300},
			BaudRate:         19200,
			LogPeriod:        5 * time.Minute,
			LogVersion:       6,
			TxPeriod:         2 * time.Hour,
			TempMinCalPoints: 2,
			PresMinCalPoints: 2,
			FlowMinCalPoints: 3,
		},
		Event: EventLog{
			SetDuration:    24 * time.Hour,
			Volume:         0.0833,
			SetFlowRate:    16.7,
			AvgFlowRate:    16.7,
			FlowCV:         0.16,
			MaxDiff:        0.4,
			FilterID:       "111111",
			FilterPosition: 1,
		},
	}
	m.Flags[FlagEventAborted] = true

	return m
}

// Bank returns the register bank addressed by t, or nil for the stepper and global targets.
func (m *Model) Bank(t Target) *Bank {
	switch t {
	case TargetAnalogIn:
		return m.AnalogIn
	case TargetAnalogOut:
		return m.AnalogOut
	case TargetDigitalIO:
		return m.DigitalIO
	case TargetPressure:
		return m.Pressure
	case TargetTemperature:
		return m.Temperature
	}

	return nil
}

// Sensor returns the sensor record of analog channel i, or nil when out of range.
func (m *Model) Sensor(i int) *Sensor {
	if i < 0 || i >= len(m.Sensors) {
		return nil
	}

	return &m.Sensors[i]
}

// Snapshot is a read-only copy of a Model handed to the reporting layer.
type Snapshot struct {
	Taken time.Time `json:"taken"`

	AnalogIn    []uint16 `json:"analog_in"`
	AnalogOut   []uint16 `json:"analog_out"`
	DigitalIO   []uint16 `json:"digital_io"`
	Pressure    []uint16 `json:"pressure"`
	Temperature []uint16 `json:"temperature"`

	FlagWord uint16          `json:"flag_word"`
	Flags    map[string]bool `json:"flags"`
	Stepper  int16           `json:"stepper"`
	Sensors  []Sensor        `json:"sensors"`

	Site        SiteInfo           `json:"site"`
	Event       EventLog           `json:"event"`
	Environment map[string]float64 `json:"environment,omitempty"`
}

// Snapshot returns a deep copy of m.
func (m *Model) Snapshot() Snapshot {
	sensors := make([]Sensor, len(m.Sensors))
	copy(sensors, m.Sensors[:])

	return Snapshot{
		Taken:       time.Now(),
		AnalogIn:    m.AnalogIn.Values(),
		AnalogOut:   m.AnalogOut.Values(),
		DigitalIO:   m.DigitalIO.Values(),
		Pressure:    m.Pressure.Values(),
		Temperature: m.Temperature.Values(),
		FlagWord:    m.Flags.Word(),
		Flags:       m.Flags.Map(),
		Stepper:     m.Stepper,
		Sensors:     sensors,
		Site:        m.Site,
		Event:       m.Event,
	}
}
