package domain

import "errors"

var (
	// ErrNoDetection signals absence: a producer had nothing to report this tick.
	ErrNoDetection     = errors.New("no detection")
	ErrInvalidVector   = errors.New("invalid emotion vector")
	ErrInvalidWeights  = errors.New("invalid weight config")
	ErrSessionNotFound = errors.New("session not found")
	ErrTooManySessions = errors.New("too many sessions")
	ErrUnsupported     = errors.New("operation not supported for this session")
)
