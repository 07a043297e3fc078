package repository

import "errors"

// Sentinel kinds for datastore errors.
var (
	ErrInvalidObservation = errors.New("invalid observation")
	ErrUnauthorized       = errors.New("invalid credentials")
	ErrClosed             = errors.New("store closed")
	ErrInvalidUser        = errors.New("invalid user")
)
