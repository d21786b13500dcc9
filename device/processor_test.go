package device

import (
	"math/rand/v2"
	"testing"
	"time"

	"github.com/arloliu/go-urg/channel"
	"github.com/arloliu/go-urg/frame"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newDevice(t *testing.T, opts ...Option) *Processor {
	t.Helper()

	p, err := NewProcessor(NewModel(), append([]Option{WithLoopback()}, opts...)...)
	require.NoError(t, err)

	return p
}

func newController(t *testing.T, opts ...Option) *Processor {
	t.Helper()

	p, err := NewProcessor(NewModel(), append([]Option{WithSensorTracking(NewEnvironment())}, opts...)...)
	require.NoError(t, err)

	return p
}

func TestNewProcessor_InvalidOptions(t *testing.T) {
	for _, opt := range []Option{WithNoise(nil), WithSensorTracking(nil), WithCancelFlag(nil), WithLogger(nil), WithClock(nil)} {
		_, err := NewProcessor(nil, opt)
		assert.Error(t, err)
	}

	p, err := NewProcessor(nil)
	require.NoError(t, err)
	assert.NotNil(t, p.Model())
	assert.NotNil(t, p.CancelFlag())
	assert.Nil(t, p.Environment())
}

func TestHandleRequest_WriteEchoesAndLoopsBack(t *testing.T) {
	p := newDevice(t)

	reply, err := p.HandleRequest(frame.Frame{Target: 'D', Command: 1, HasValue: true, Value: 0x0200})
	require.NoError(t, err)
	assert.Equal(t, frame.Frame{Target: 'D', Command: 1, HasValue: true, Value: 0x0200}, reply)

	reply, err = p.HandleRequest(frame.Frame{Target: 'A', Command: 1})
	require.NoError(t, err)
	assert.True(t, reply.HasValue)
	assert.Equal(t, uint16(0x0200), reply.Value)

	reply, err = p.HandleRequest(frame.Frame{Target: 'D', Command: 1})
	require.NoError(t, err)
	assert.Equal(t, uint16(0x0200), reply.Value)
}

func TestHandleRequest_NoLoopback(t *testing.T) {
	p, err := NewProcessor(NewModel())
	require.NoError(t, err)

	_, err = p.HandleRequest(frame.Frame{Target: 'D', Command: 2, HasValue: true, Value: 9})
	require.NoError(t, err)

	reply, err := p.HandleRequest(frame.Frame{Target: 'A', Command: 2})
	require.NoError(t, err)
	assert.Equal(t, uint16(0), reply.Value)
}

func TestHandleRequest_DigitalIO(t *testing.T) {
	p := newDevice(t)

	_, err := p.HandleRequest(frame.Frame{Target: 'F', Command: 0, HasValue: true, Value: 0x0001})
	require.NoError(t, err)
	assert.True(t, p.Model().Flags[FlagPowerFail])
	for i := 1; i < NumFlags; i++ {
		assert.False(t, p.Model().Flags[i], FlagName(i))
	}

	_, err = p.HandleRequest(frame.Frame{Target: 'F', Command: 3, HasValue: true, Value: 0x1FFF})
	require.NoError(t, err)
	for i := 0; i < NumFlags; i++ {
		assert.True(t, p.Model().Flags[i], FlagName(i))
	}

	reply, err := p.HandleRequest(frame.Frame{Target: 'F', Command: 0})
	require.NoError(t, err)
	assert.Equal(t, uint16(0x1FFF), reply.Value, "read returns the current flag word")
}

func TestHandleRequest_Stepper(t *testing.T) {
	p := newDevice(t)

	reply, err := p.HandleRequest(frame.Frame{Target: 'S', Command: 10, HasValue: true, Value: 0xFFBC})
	require.NoError(t, err)
	assert.False(t, reply.HasValue, "a move is acknowledged without a value")

	_, err = p.HandleRequest(frame.Frame{Target: 'S', Command: 10, HasValue: true, Value: 100})
	require.NoError(t, err)

	reply, err = p.HandleRequest(frame.Frame{Target: 'S', Command: 10})
	require.NoError(t, err)
	require.True(t, reply.HasValue)
	assert.Equal(t, int16(32), int16(reply.Value))
	assert.Equal(t, int16(32), p.Model().Stepper)
}

func TestHandleRequest_PressureAndTemperature(t *testing.T) {
	p := newDevice(t)

	for _, target := range []byte{'P', 'T'} {
		reply, err := p.HandleRequest(frame.Frame{Target: target, Command: 8, HasValue: true, Value: 0x9AFF})
		require.NoError(t, err)
		assert.Equal(t, uint16(0x9AFF), reply.Value)

		reply, err = p.HandleRequest(frame.Frame{Target: target, Command: 8})
		require.NoError(t, err)
		assert.Equal(t, uint16(0x9AFF), reply.Value)
	}
}

func TestHandleRequest_Unsupported(t *testing.T) {
	p := newDevice(t)
	before := p.Model().Snapshot()

	for _, req := range []frame.Frame{
		{Target: 'Z', Command: 1, HasValue: true, Value: 5},
		{Target: 'G', Command: 'x'},
		{Target: 'A', Command: 40},
		{Target: 'D', Command: 8, HasValue: true, Value: 1},
	} {
		reply, err := p.HandleRequest(req)
		require.ErrorIs(t, err, ErrUnsupported, req.String())
		assert.True(t, reply.IsNAK())
		assert.Equal(t, req.Target, reply.Target)
		assert.Equal(t, req.Command|frame.NAKBit, reply.Command)
		assert.False(t, reply.HasValue)
	}

	after := p.Model().Snapshot()
	assert.Equal(t, before.AnalogIn, after.AnalogIn)
	assert.Equal(t, before.AnalogOut, after.AnalogOut)
	assert.False(t, p.CancelFlag().IsSet())
}

func TestHandleRequest_Quit(t *testing.T) {
	flag := &channel.CancelFlag{}
	p := newDevice(t, WithCancelFlag(flag))

	reply, err := p.HandleRequest(frame.Frame{Target: 'G', Command: 'q'})
	require.NoError(t, err)
	assert.Equal(t, frame.Frame{Target: 'G', Command: 'q'}, reply)
	assert.True(t, flag.IsSet())
}

func TestHandleRequest_NoiseClamped(t *testing.T) {
	p := newDevice(t, WithNoise(rand.New(rand.NewPCG(7, 11))))

	seen := map[int]bool{}
	for _, stored := range []uint16{0, 1, 0x0400, 0x0FFE, 0x0FFF, 0xFFFF} {
		_, err := p.HandleRequest(frame.Frame{Target: 'A', Command: 0, HasValue: true, Value: stored})
		require.NoError(t, err)

		for i := 0; i < 200; i++ {
			reply, err := p.HandleRequest(frame.Frame{Target: 'A', Command: 0})
			require.NoError(t, err)

			got := int(reply.Value)
			assert.GreaterOrEqual(t, got, 0)
			assert.LessOrEqual(t, got, MaxRaw)

			if stored == 0x0400 {
				d := got - int(stored)
				assert.True(t, d >= -Jitter && d <= Jitter, "jitter %d", d)
				seen[d] = true
			}
		}
	}

	assert.Len(t, seen, 2*Jitter+1, "every offset in [-2, 2] occurs")

	// Only analog-in reads are noisy.
	_, err := p.HandleRequest(frame.Frame{Target: 'P', Command: 0, HasValue: true, Value: 0x0400})
	require.NoError(t, err)
	reply, err := p.HandleRequest(frame.Frame{Target: 'P', Command: 0})
	require.NoError(t, err)
	assert.Equal(t, uint16(0x0400), reply.Value)
}

func TestApplyReply_SensorTracking(t *testing.T) {
	ts := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	p := newController(t, WithClock(func() time.Time { return ts }))

	s := p.Model().Sensor(ChanAmbient)
	s.Gain, s.Offset = 1, 0
	s.Reset()

	for _, raw := range []uint16{10, 20, 30} {
		v, err := p.ApplyReply(frame.Frame{Target: 'A', Command: ChanAmbient, HasValue: true, Value: raw})
		require.NoError(t, err)
		assert.Equal(t, raw, v)
	}

	assert.Equal(t, 3, s.Count)
	assert.InDelta(t, 20.0, s.Average, 1e-9)
	assert.InDelta(t, 10.0, s.Min, 1e-9)
	assert.InDelta(t, 30.0, s.Max, 1e-9)
	assert.Equal(t, ts, s.Timestamp)
	assert.InDelta(t, 20.0, p.Environment().Temperature(), 1e-9)
	assert.InDelta(t, DefaultPressure, p.Environment().Pressure(), 1e-9)

	b := p.Model().Sensor(ChanBarometer)
	b.Gain, b.Offset = 2, 100
	b.Reset()
	_, err := p.ApplyReply(frame.Frame{Target: 'A', Command: ChanBarometer, HasValue: true, Value: 300})
	require.NoError(t, err)
	assert.InDelta(t, 700.0, p.Environment().Pressure(), 1e-9)

	snap := p.Snapshot()
	assert.InDelta(t, 700.0, snap.Environment[ReadingPressure], 1e-9)
}

func TestApplyReply_Mirrors(t *testing.T) {
	flag := &channel.CancelFlag{}
	p := newController(t, WithCancelFlag(flag))

	v, err := p.ApplyReply(frame.Frame{Target: 'D', Command: 1, HasValue: true, Value: 0x03FF})
	require.NoError(t, err)
	assert.Equal(t, uint16(0x03FF), v)
	got, _ := p.Model().AnalogOut.Get(1)
	assert.Equal(t, uint16(0x03FF), got)
	assert.Equal(t, 0, p.Model().Sensor(1).Count, "analog-out echoes are not samples")

	_, err = p.ApplyReply(frame.Frame{Target: 'S', Command: 10, HasValue: true, Value: uint16(0xFFF6)})
	require.NoError(t, err)
	assert.Equal(t, int16(-10), p.Model().Stepper)

	v, err = p.ApplyReply(frame.Frame{Target: 'S', Command: 10})
	require.NoError(t, err)
	assert.Equal(t, int16(-10), int16(v))

	_, err = p.ApplyReply(frame.Frame{Target: 'F', Command: 0, HasValue: true, Value: 0x0003})
	require.NoError(t, err)
	assert.Equal(t, uint16(0x0003), p.Model().Flags.Word())

	_, err = p.ApplyReply(frame.Frame{Target: 'G', Command: 'q'})
	require.NoError(t, err)
	assert.True(t, flag.IsSet())
}

func TestApplyReply_NegativeAck(t *testing.T) {
	p := newController(t)

	_, err := p.ApplyReply(frame.Frame{Target: 'A', Command: 1 | frame.NAKBit})
	require.ErrorIs(t, err, ErrNegativeAck)
	assert.Equal(t, 0, p.Model().Sensor(1).Count)
}
