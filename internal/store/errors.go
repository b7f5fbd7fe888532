package store

import "errors"

// Sentinel errors for the session binding state machine and queries. The API
// layer maps these onto HTTP status codes; everything else is treated as a
// transient storage error.
var (
	ErrDeviceNotFound     = errors.New("device not found")
	ErrDeviceAlreadyBound = errors.New("device already bound to an active session")
	ErrDeviceUnavailable  = errors.New("device is under maintenance or decommissioned")
	ErrDeviceExists       = errors.New("device already registered")
	ErrSessionNotFound    = errors.New("session not found")
	ErrNoActiveSession    = errors.New("no active session for device")
)
