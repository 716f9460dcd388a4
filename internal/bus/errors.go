package bus

import "errors"

var (
	ErrEmptyNamespace   = errors.New("bus: namespace must not be empty")
	ErrEmptyType        = errors.New("bus: message type must not be empty")
	ErrNilHandler       = errors.New("bus: handler must not be nil")
	ErrSystemNamespace  = errors.New("bus: the system namespace is reserved")
	ErrNotSubscribed    = errors.New("bus: namespace not subscribed")
	ErrNotConnected     = errors.New("bus: connection is not open")
	ErrConsumerFinished = errors.New("bus: consumer already finished")
	ErrMalformedFrame   = errors.New("bus: malformed frame")
)
