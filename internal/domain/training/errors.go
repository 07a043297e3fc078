package training

import "errors"

// Sentinel kinds for training errors.
var (
	// ErrInvalidInput reports a malformed or empty dataset, split or grid.
	ErrInvalidInput = errors.New("invalid training input")
	// ErrTrainingFailure reports a fit that could not complete.
	ErrTrainingFailure = errors.New("training failed")
)
