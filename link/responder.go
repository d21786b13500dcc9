package link

import (
	"errors"

	"github.com/arloliu/go-urg/channel"
	"github.com/arloliu/go-urg/device"
	"github.com/arloliu/go-urg/frame"
	"github.com/arloliu/go-urg/logger"
)

// Responder answers requests arriving on the device end of the link.
type Responder struct {
	ch      *channel.Channel
	proc    *device.Processor
	metrics *Metrics
	logger  logger.Logger
}

// NewResponder creates a Responder serving ch with proc. The loop stops when
// proc's cancellation flag is raised.
func NewResponder(ch *channel.Channel, proc *device.Processor, opts ...Option) (*Responder, error) {
	if ch == nil || proc == nil {
		return nil, errors.New("link: responder needs a channel and a processor")
	}

	cfg, err := newRoleConfig("device", opts)
	if err != nil {
		return nil, err
	}

	return &Responder{ch: ch, proc: proc, metrics: cfg.metrics, logger: cfg.logger}, nil
}

// Metrics returns the responder's counters.
func (r *Responder) Metrics() *Metrics { return r.metrics }

// Run serves requests until the cancellation flag is raised, returning nil.
// It returns channel.ErrTimeout when no request arrives within the channel's
// poll budget, and the I/O error when the channel fails.
func (r *Responder) Run() error {
	cancel := r.proc.CancelFlag()
	format := r.ch.Config().Format()

	r.logger.Debug("link: responder started", "format", format.String())

	for {
		buf, err := r.ch.Poll(cancel)
		if err != nil {
			switch {
			case errors.Is(err, channel.ErrCancelled):
				r.logger.Debug("link: responder stopped")
				return nil
			case errors.Is(err, channel.ErrTimeout):
				r.metrics.incTimeoutCount()
				r.logger.Warn("link: responder timed out waiting for a request", "error", err)
			}

			return err
		}
		r.metrics.incFrameRecvCount()

		reply := r.serve(buf, format)
		r.ch.RecordResponse(!reply.IsNAK(), reply.Value)

		out, err := reply.Encode(format)
		if err != nil {
			r.logger.Error("link: failed to encode reply", "frame", reply.String(), "error", err)
			return err
		}

		if err := r.ch.Write(out); err != nil {
			return err
		}
		r.metrics.incFrameSendCount()

		r.logger.Debug("link: reply sent", "frame", reply.String(), "bytes", frame.HexDump(out))
	}
}

// serve decodes and executes one request and returns the reply to send.
func (r *Responder) serve(buf []byte, format frame.Format) frame.Frame {
	req, err := frame.Decode(buf, format)
	if err != nil {
		r.metrics.incFrameErrCount()
		r.logger.Warn("link: malformed request", "error", err, "bytes", frame.HexDump(buf))

		// Too short to address: answer for the last request seen instead.
		addr := r.ch.Last()
		if target, command, ok := frame.Peek(buf, format); ok {
			addr = frame.Frame{Target: target, Command: command}
		}
		r.metrics.incNakCount()

		return addr.NAK()
	}

	r.ch.Record(req)
	r.logger.Debug("link: request received", "frame", req.String(), "bytes", frame.HexDump(buf))

	reply, err := r.proc.HandleRequest(req)
	if err != nil {
		r.metrics.incNakCount()
		r.logger.Warn("link: unsupported request", "frame", req.String(), "error", err, "bytes", frame.HexDump(buf))
	}

	return reply
}
