package transport

import "errors"

var (
	ErrConnectFailed = errors.New("transport: connect failed")
	ErrPublishFailed = errors.New("transport: publish failed")
	ErrConsumeFailed = errors.New("transport: consume failed")
	ErrNotConnected  = errors.New("transport: not connected")
	ErrClosed        = errors.New("transport: session closed")
	ErrInvalidURL    = errors.New("transport: invalid broker url")
)
