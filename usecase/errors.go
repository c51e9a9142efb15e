package usecase

import "errors"

var (
	ErrInspectionLimit     = errors.New("you can only select up to 2 properties for inspection")
	ErrCounterLimitReached = errors.New("counter limit reached")
	ErrPersistFailed       = errors.New("failed to persist selection")
	ErrNoSnapshot          = errors.New("negotiation has not been loaded")
	ErrInvalidCounterType  = errors.New("invalid counter type")
)

var ErrMissingPropertyID = errors.New("property id is required")
