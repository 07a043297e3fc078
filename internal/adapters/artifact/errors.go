package artifact

import "errors"

// Sentinel kinds for artifact errors.
var (
	ErrPersistenceFailure = errors.New("model artifact could not be persisted or loaded")
	ErrModelUnavailable   = errors.New("no model loaded")
)
