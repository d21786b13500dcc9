package link

import (
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics contains atomic counters of one link role.
// Metrics can be used as the value of a prometheus CounterFunc, see RegisterMetrics.
type Metrics struct {
	// FrameSendCount indicates the number of frames written.
	FrameSendCount atomic.Uint64
	// FrameRecvCount indicates the number of frames read.
	FrameRecvCount atomic.Uint64
	// RetryCount indicates the number of command resends.
	RetryCount atomic.Uint64
	// FrameErrCount indicates the number of frames rejected by the decoder.
	FrameErrCount atomic.Uint64
	// NakCount indicates negative acknowledges sent (responder) or received (commander).
	NakCount atomic.Uint64
	// TimeoutCount indicates the number of polls that ended without a frame.
	TimeoutCount atomic.Uint64
	// PermanentFailureCount indicates the number of commands given up on.
	PermanentFailureCount atomic.Uint64
}

func (m *Metrics) incFrameSendCount()        { m.FrameSendCount.Add(1) }
func (m *Metrics) incFrameRecvCount()        { m.FrameRecvCount.Add(1) }
func (m *Metrics) incRetryCount()            { m.RetryCount.Add(1) }
func (m *Metrics) incFrameErrCount()         { m.FrameErrCount.Add(1) }
func (m *Metrics) incNakCount()              { m.NakCount.Add(1) }
func (m *Metrics) incTimeoutCount()          { m.TimeoutCount.Add(1) }
func (m *Metrics) incPermanentFailureCount() { m.PermanentFailureCount.Add(1) }

// MetricsSnapshot is a point-in-time copy of Metrics.
type MetricsSnapshot struct {
	FramesSent        uint64 `json:"frames_sent"`
	FramesReceived    uint64 `json:"frames_received"`
	Retries           uint64 `json:"retries"`
	FrameErrors       uint64 `json:"frame_errors"`
	Naks              uint64 `json:"naks"`
	Timeouts          uint64 `json:"timeouts"`
	PermanentFailures uint64 `json:"permanent_failures"`
}

// Snapshot returns the current counter values.
func (m *Metrics) Snapshot() MetricsSnapshot {
	return MetricsSnapshot{
		FramesSent:        m.FrameSendCount.Load(),
		FramesReceived:    m.FrameRecvCount.Load(),
		Retries:           m.RetryCount.Load(),
		FrameErrors:       m.FrameErrCount.Load(),
		Naks:              m.NakCount.Load(),
		Timeouts:          m.TimeoutCount.Load(),
		PermanentFailures: m.PermanentFailureCount.Load(),
	}
}

// RegisterMetrics exposes m on reg as counters labelled with the role name.
func RegisterMetrics(reg prometheus.Registerer, role string, m *Metrics) error {
	counters := []struct {
		name string
		help string
		v    *atomic.Uint64
	}{
		{"frames_sent_total", "Frames written to the link.", &m.FrameSendCount},
		{"frames_received_total", "Frames read from the link.", &m.FrameRecvCount},
		{"retries_total", "Command resends.", &m.RetryCount},
		{"frame_errors_total", "Frames rejected by the decoder.", &m.FrameErrCount},
		{"naks_total", "Negative acknowledges sent or received.", &m.NakCount},
		{"timeouts_total", "Polls that ended without a frame.", &m.TimeoutCount},
		{"permanent_failures_total", "Commands given up after the last attempt.", &m.PermanentFailureCount},
	}

	for _, c := range counters {
		v := c.v
		cf := prometheus.NewCounterFunc(prometheus.CounterOpts{
			Namespace:   "urg",
			Subsystem:   "link",
			Name:        c.name,
			Help:        c.help,
			ConstLabels: prometheus.Labels{"role": role},
		}, func() float64 { return float64(v.Load()) })

		if err := reg.Register(cf); err != nil {
			return err
		}
	}

	return nil
}
