package rfraw

import "errors"

var (
	ErrNotEncodable   = errors.New("rfraw: pulse train not encodable")
	ErrMalformedInput = errors.New("rfraw: malformed hex input")
	ErrTruncated      = errors.New("rfraw: decoded pulses truncated")
)
