package vcas

import "errors"

var (
	// ErrServerError wraps a protocol-level error the server reported for
	// one request. It never affects connection state.
	ErrServerError = errors.New("server reported error")

	// ErrMalformedHistory is reported when a gethistory response carries
	// timestamp and value lists of different lengths.
	ErrMalformedHistory = errors.New("malformed history response")

	// ErrAlreadyStarted is returned when starting a client or server that
	// is already running.
	ErrAlreadyStarted = errors.New("already started")
)
