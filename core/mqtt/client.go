package mqtt

import "time"

// Client sends dispatch commands to asset controllers and tracks their
// acknowledgments. Powers are in watts, positive for discharge.
type Client interface {
	// SendCommand publishes a setpoint for the asset and returns the command
	// identifier used to track the acknowledgment.
	SendCommand(assetID string, powerW float64) (commandID string, err error)

	// WaitForAck waits for an acknowledgment for the provided command
	// identifier or until the timeout expires.
	WaitForAck(commandID string, timeout time.Duration) (bool, error)
}
