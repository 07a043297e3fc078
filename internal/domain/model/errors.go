package model

import "errors"

// Sentinel error kinds for this package.
var (
	ErrUnknownLabel      = errors.New("unknown fetal health label")
	ErrInvalidVector     = errors.New("invalid feature vector")
	ErrValidationFailed  = errors.New("observation failed validation")
	ErrMissingLabelValue = errors.New("observation has no label")
)
