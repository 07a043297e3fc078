package service

import "errors"

// Sentinel kinds for service errors.
var (
	ErrNotStarted       = errors.New("service not started")
	ErrSessionNotFound  = errors.New("session not found or expired")
	ErrNoCurrentPatient = errors.New("no current patient in session")
	ErrJobNotFound      = errors.New("training job not found")
	ErrJobNotSucceeded  = errors.New("training job has not succeeded")
	ErrQueueFull        = errors.New("training queue is full")
	ErrDuplicateRequest = errors.New("request already processed")
)
