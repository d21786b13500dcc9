// Package channel provides one end of the duplex byte link between the
// controller and the device.
//
// A Channel owns a Transport (a socketpair end, a net.Conn or a serial port),
// the wire format in use and the polling policy of its role. Reads are done in
// poll ticks: every tick waits at most PollInterval for bytes, observes the
// role's CancelFlag, and counts consecutive empty ticks. When MaxTimeouts
// consecutive ticks pass without a byte, Poll fails with ErrTimeout.
//
// Incoming bytes are split on frame boundaries for the configured format, so a
// frame delivered in several reads, or two frames delivered in one read, are
// both handed to the caller one frame at a time.
//
// Channels are not goroutine-safe. Each role owns exactly one end and drives it
// from a single goroutine.
package channel
