package calib

import (
	"errors"
	"net"
	"os"
	"testing"
	"time"

	"github.com/arloliu/go-urg/channel"
	"github.com/arloliu/go-urg/device"
	"github.com/arloliu/go-urg/frame"
	"github.com/arloliu/go-urg/link"
	"github.com/arloliu/go-urg/logger"
	"github.com/stretchr/testify/require"
)

func TestMain(m *testing.M) {
	level, err := logger.ParseLevel(os.Getenv("LOG_LEVEL"))
	if err != nil {
		level = logger.InfoLevel
	}
	logger.SetLevel(level)

	os.Exit(m.Run())
}

var errLineDown = errors.New("line down")

// loopCommander answers commands locally: analog-in reads return the last
// analog-out value of the channel, offset by skew.
type loopCommander struct {
	proc   *device.Processor
	out    [device.AnalogChannels]uint16
	skew   int
	reads  int
	writes int
	failAt int // 1-based read that fails, 0 for never
}

func newLoopCommander(t *testing.T) *loopCommander {
	t.Helper()

	proc, err := device.NewProcessor(device.NewModel(), device.WithSensorTracking(device.NewEnvironment()))
	require.NoError(t, err)

	return &loopCommander{proc: proc}
}

func (c *loopCommander) Write(target device.Target, index int, v uint16) (uint16, error) {
	c.writes++
	c.out[index] = v

	return c.proc.ApplyReply(frame.Frame{Target: byte(target), Command: byte(index), HasValue: true, Value: v})
}

func (c *loopCommander) Read(target device.Target, index int) (uint16, error) {
	c.reads++
	if c.failAt > 0 && c.reads == c.failAt {
		return 0, errLineDown
	}

	v := uint16(int(c.out[index]) + c.skew)

	return c.proc.ApplyReply(frame.Frame{Target: byte(target), Command: byte(index), HasValue: true, Value: v})
}

func (c *loopCommander) Model() *device.Model { return c.proc.Model() }

func (c *loopCommander) Environment() *device.Environment { return c.proc.Environment() }

func TestCalibrate_Temperature(t *testing.T) {
	require := require.New(t)

	cmdr := newLoopCommander(t)
	res, err := Calibrate(cmdr, device.ChanAmbient, device.TemperatureCelsius)
	require.NoError(err)

	require.Equal(device.ChanAmbient, res.Channel)
	require.Equal("Ambient", res.Sensor)
	require.InDelta(-40.0, res.Low, 1e-9)
	require.InDelta(40.0, res.High, 1e-9)
	require.InDelta(0.0, res.RawLow, 1e-12)
	require.InDelta(1023.0, res.RawHigh, 1e-12)
	require.InDelta(-40.0, res.Offset, 1e-9)
	require.InDelta(80.0/1023, res.Gain, 1e-12)
	require.Equal(uint16(780), res.Setpoint)
	require.InDelta(780*80.0/1023-40, res.System, 1e-9)
	require.InDelta(21.0, res.System, 0.1)
	require.InDelta(21.0, res.Reference, 1e-12)

	// One write and AverageCount reads per point.
	require.Equal(3, cmdr.writes)
	require.Equal(3*AverageCount, cmdr.reads)

	s := cmdr.Model().Sensor(device.ChanAmbient)
	require.InDelta(res.Gain, s.Gain, 1e-12)
	require.InDelta(res.Offset, s.Offset, 1e-12)
	require.InDelta(res.System, s.System, 1e-12)
	require.InDelta(21.0, s.Reference, 1e-12)
	require.Zero(s.Count)
	require.Zero(s.Sum)

	// The ambient channel publishes its readings as the temperature.
	require.InDelta(res.System, res.Temp, 1e-9)
	require.InDelta(res.Temp, s.Temp, 1e-12)
	require.InDelta(device.DefaultPressure, res.Pres, 1e-12)
}

func TestCalibrate_OffsetSkew(t *testing.T) {
	require := require.New(t)

	cmdr := newLoopCommander(t)
	cmdr.skew = 3

	res, err := Calibrate(cmdr, device.ChanBarometer, device.BarometerTorr)
	require.NoError(err)

	seedGain := (825.0 - 225.0) / 1023
	require.InDelta(225+3*seedGain, res.Low, 1e-9)
	require.InDelta(res.Low, res.Offset, 1e-12)
	require.InDelta((res.High-res.Low)/1023, res.Gain, 1e-12)
	require.InDelta(760.0, res.Reference, 1e-12)
	require.InDelta(res.System, res.Pres, 1e-9)
}

func TestCalibrate_RollbackOnFailure(t *testing.T) {
	for _, failAt := range []int{1, AverageCount + 1, 3 * AverageCount} {
		cmdr := newLoopCommander(t)
		cmdr.failAt = failAt

		before := *cmdr.Model().Sensor(device.ChanFilter)

		_, err := Calibrate(cmdr, device.ChanFilter, device.TemperatureCelsius)
		require.ErrorIs(t, err, errLineDown, "failAt=%d", failAt)
		require.Equal(t, before, *cmdr.Model().Sensor(device.ChanFilter), "failAt=%d", failAt)
	}
}

func TestCalibrate_FlatResponse(t *testing.T) {
	tests := []struct {
		name string
		read func(out uint16) uint16
	}{
		{"stuck at zero", func(uint16) uint16 { return 0 }},
		{"stuck mid scale", func(uint16) uint16 { return 512 }},
		{"stuck at full scale", func(uint16) uint16 { return device.DefaultRawMax }},
		{"inverted", func(out uint16) uint16 { return device.DefaultRawMax - out }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cmdr := newLoopCommander(t)
			before := *cmdr.Model().Sensor(device.ChanMeter)

			_, err := Calibrate(&fixedCommander{loopCommander: cmdr, read: tt.read}, device.ChanMeter, device.TemperatureCelsius)
			require.ErrorIs(t, err, ErrFlatResponse)
			require.Equal(t, before, *cmdr.Model().Sensor(device.ChanMeter))
		})
	}
}

// fixedCommander answers analog-in reads with read applied to the last output.
type fixedCommander struct {
	*loopCommander
	read func(out uint16) uint16
}

func (c *fixedCommander) Read(target device.Target, index int) (uint16, error) {
	v := c.read(c.out[index])
	return c.proc.ApplyReply(frame.Frame{Target: byte(target), Command: byte(index), HasValue: true, Value: v})
}

func TestCalibrate_InvalidInput(t *testing.T) {
	require := require.New(t)

	cmdr := newLoopCommander(t)

	_, err := Calibrate(cmdr, device.ChanSensor, device.TemperatureCelsius)
	require.ErrorIs(err, ErrInvalidSensor)

	_, err = Calibrate(cmdr, device.AnalogChannels, device.TemperatureCelsius)
	require.ErrorIs(err, ErrInvalidSensor)

	_, err = Calibrate(cmdr, device.ChanAmbient, device.Range{Min: 10, Val: 5, Max: 20})
	require.ErrorIs(err, ErrInvalidRange)

	require.Zero(cmdr.reads)
	require.Zero(cmdr.writes)
}

func TestCalibrate_NoSamples(t *testing.T) {
	proc, err := device.NewProcessor(device.NewModel())
	require.NoError(t, err)

	// Without sensor tracking nothing is recorded.
	cmdr := &loopCommander{proc: proc}
	_, err = Calibrate(cmdr, device.ChanAmbient, device.TemperatureCelsius)
	require.ErrorIs(t, err, ErrNoSamples)
}

func TestCalibrate_OverLink(t *testing.T) {
	require := require.New(t)

	a, b := net.Pipe()
	open := func(conn net.Conn, name string) *channel.Channel {
		cfg, err := channel.NewConfig(
			channel.WithName(name),
			channel.WithPollInterval(5*time.Millisecond),
			channel.WithMaxTimeouts(400),
		)
		require.NoError(err)

		ch, err := channel.Open(channel.NewConnTransport(conn), cfg)
		require.NoError(err)
		t.Cleanup(func() { _ = ch.Close() })

		return ch
	}
	ctrlCh, devCh := open(a, "controller"), open(b, "device")

	devProc, err := device.NewProcessor(device.NewModel(), device.WithLoopback())
	require.NoError(err)
	resp, err := link.NewResponder(devCh, devProc)
	require.NoError(err)

	done := make(chan error, 1)
	go func() { done <- resp.Run() }()

	ctrlProc, err := device.NewProcessor(device.NewModel(), device.WithSensorTracking(device.NewEnvironment()))
	require.NoError(err)
	cmdr, err := link.NewCommander(ctrlCh, ctrlProc)
	require.NoError(err)

	res, err := Calibrate(cmdr, device.ChanAmbient, device.TemperatureCelsius)
	require.NoError(err)
	require.InDelta(-40.0, res.Offset, 1e-9)
	require.InDelta(80.0/1023, res.Gain, 1e-12)
	require.InDelta(20.997, res.System, 1e-3)

	require.NoError(cmdr.Quit())
	require.NoError(<-done)

	require.Equal(uint16(780), devProc.Model().AnalogOut.Values()[device.ChanAmbient])
}
