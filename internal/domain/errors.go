package domain

import "errors"

var (
	ErrNotFound            = errors.New("not found")
	ErrUnauthenticated     = errors.New("unauthenticated")
	ErrInvalidRequest      = errors.New("invalid request")
	ErrUnknownStyle        = errors.New("unknown style")
	ErrInsufficientCredits = errors.New("insufficient credits")
	ErrSynthesis           = errors.New("prompt synthesis failed")
	ErrConversionFailed    = errors.New("conversion failed")
)
