package game

import "errors"

var (
	ErrInvalidRequest = errors.New("invalid_request")
	ErrInvalidPhase   = errors.New("invalid_phase")
	ErrClosed         = errors.New("service_closed")
)
