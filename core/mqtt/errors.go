package mqtt

import "errors"

// ErrUnknownAction is returned for commands outside start, complete and cancel.
var ErrUnknownAction = errors.New("unknown duty action")

// ErrNotConnected is returned when publishing without a broker connection.
var ErrNotConnected = errors.New("mqtt client not connected")
