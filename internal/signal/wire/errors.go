package wire

import "errors"

var (
	ErrInvalidMagic       = errors.New("wire: invalid magic")
	ErrUnsupportedVersion = errors.New("wire: unsupported version")
	ErrInvalidHeaderLen   = errors.New("wire: invalid header length")
	ErrPayloadTooLarge    = errors.New("wire: payload too large")
	ErrTruncated          = errors.New("wire: truncated data")
	ErrInvalidLength      = errors.New("wire: invalid length")
	ErrFieldTypeMismatch  = errors.New("wire: field type mismatch")
	ErrUnknownKind        = errors.New("wire: unknown message kind")
	ErrVariantMismatch    = errors.New("wire: payload variant mismatch")
	ErrTooManySegments    = errors.New("wire: too many hex segments")
	ErrSegmentTooLong     = errors.New("wire: hex segment too long")
	ErrTooManyPulses      = errors.New("wire: too many pulses")
)
