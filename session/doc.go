// Package session runs a controller and a device against the two ends of one
// link and reports what happened.
//
// The device role answers requests with a link.Responder, the controller
// works through a Plan with a link.Commander. Each role owns its channel end,
// processor and model; the roles only meet on the wire.
//
//	s, err := session.New(cfg)
//	report, err := s.Run(ctx, session.DefaultPlan())
package session
