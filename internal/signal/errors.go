package signal

import "errors"

var (
	ErrBelowMinimumLength = errors.New("signal: pulse train below minimum length")
	ErrInvalidVariant     = errors.New("signal: invalid payload variant")
	ErrSampleRateMissing  = errors.New("signal: sample rate missing")
	ErrInvalidMessage     = errors.New("signal: invalid message")
	ErrImplausibleTrain   = errors.New("signal: implausible pulse train")
)
