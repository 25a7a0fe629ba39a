package rcon

import "errors"

// Sentinel errors for the RCON layer. Callers match with errors.Is.
var (
	// ErrAuthFailed is returned when the server rejects the password.
	ErrAuthFailed = errors.New("rcon: authentication failed")

	// ErrMalformedPacket is returned when a received frame is too short
	// or its size prefix is inconsistent.
	ErrMalformedPacket = errors.New("rcon: malformed packet")

	// ErrNotConnected is returned by Command when the session is down and
	// auto-reconnect was not requested.
	ErrNotConnected = errors.New("rcon: not connected")

	// ErrUnavailable is returned once bounded reconnect attempts are
	// exhausted.
	ErrUnavailable = errors.New("rcon: connection unavailable")

	// ErrTimeout is returned when a read or write misses its deadline.
	ErrTimeout = errors.New("rcon: protocol timeout")

	// ErrCooldown is returned by WithSession when a connect attempt is
	// suppressed by the per-client cooldown window.
	ErrCooldown = errors.New("rcon: connect attempt throttled")
)
