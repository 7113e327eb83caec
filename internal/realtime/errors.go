package realtime

import "errors"

var (
	ErrNoToken   = errors.New("realtime: empty token")
	ErrNoURL     = errors.New("realtime: no server url configured")
	ErrClosed    = errors.New("realtime: connection closed")
	ErrHandshake = errors.New("realtime: handshake failed")
)
