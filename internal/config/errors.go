package config

import "errors"

// Sentinel error kinds for this package.
var (
	// ErrInvalidConfig reports a setting that fails validation or cannot be decoded.
	ErrInvalidConfig = errors.New("invalid config")
	// ErrLoadConfig reports an unreadable config file or environment.
	ErrLoadConfig = errors.New("load config failed")
)
