// Package link implements the two roles that drive a Channel.
//
// The Responder runs on the device end: it polls for requests, executes them
// with a device.Processor and writes back the reply, answering undecodable or
// unsupported requests with a negative acknowledge.
//
// The Commander runs on the controller end: it sends one command at a time,
// waits for the reply and folds it into the controller's model. Failed
// exchanges (a malformed reply, a negative acknowledge, an I/O error or no
// reply) are resent until the channel's MaxRetries attempts are used up.
//
// Both roles are strictly synchronous and stop when their processor's
// cancellation flag is raised.
package link
