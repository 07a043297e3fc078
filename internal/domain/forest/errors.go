package forest

import "errors"

// Sentinel kinds for classifier fitting and prediction.
var (
	ErrEmptyInput       = errors.New("no training rows")
	ErrShape            = errors.New("feature matrix shape mismatch")
	ErrDegenerateLabels = errors.New("training labels contain fewer than two classes")
	ErrInvalidParams    = errors.New("invalid forest parameters")
	ErrNotFitted        = errors.New("forest has no trees")
)
