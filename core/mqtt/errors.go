package mqtt

import "errors"

var (
	// ErrAckTimeout is returned when the asset controller does not
	// acknowledge a command before the timeout.
	ErrAckTimeout = errors.New("timeout waiting for ack")
	// ErrUnknownCommand is returned when waiting on a command that was not
	// sent, was already acknowledged, or is not tracked because no ack
	// topic is configured.
	ErrUnknownCommand = errors.New("unknown command")
)
