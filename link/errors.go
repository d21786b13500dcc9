package link

import "errors"

var (
	// ErrPermanentFailure is returned by Commander.Execute once every send attempt has failed.
	ErrPermanentFailure = errors.New("link: permanent failure")

	// ErrCancelled is returned by Commander.Execute when the controller's flag is raised.
	ErrCancelled = errors.New("link: cancelled")

	// ErrUnexpectedReply is a reply that does not answer the outstanding command.
	ErrUnexpectedReply = errors.New("link: unexpected reply")
)
