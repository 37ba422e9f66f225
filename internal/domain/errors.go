package domain

import "errors"

var (
	ErrProducerNotFound = errors.New("producer not found")
	ErrNoTransport      = errors.New("transport not created")

	// ErrChannelClosed fails every pending RPC continuation when the
	// connection to an external process is lost.
	ErrChannelClosed = errors.New("rpc channel closed")

	ErrRecorderRejected  = errors.New("recorder rejected capture start")
	ErrInvalidCredential = errors.New("invalid credential")
)
