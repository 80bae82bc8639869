package core

import "errors"

var (
	// ErrContractViolation marks a malformed symptom vector handed to the
	// classifier.  It is a programming error between components and is
	// never retried.
	ErrContractViolation = errors.New("contract violation")

	// ErrInvalidImage is returned when an attached image cannot be decoded.
	ErrInvalidImage = errors.New("invalid image")

	// ErrNoTrainingRows is returned by the nearest-row predictor when the
	// training table is empty.
	ErrNoTrainingRows = errors.New("no training rows")
)
