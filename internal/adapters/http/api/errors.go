package api

import (
	"errors"
	"net/http"

	"github.com/okian/fetalhealth/internal/adapters/artifact"
	"github.com/okian/fetalhealth/internal/adapters/repository"
	service "github.com/okian/fetalhealth/internal/app"
	"github.com/okian/fetalhealth/internal/domain/model"
	"github.com/okian/fetalhealth/internal/domain/training"
)

// Sentinel kinds for API errors.
var (
	ErrBadRequest    = errors.New("bad request")
	ErrUnauthorized  = errors.New("unauthorized")
	ErrNotFound      = errors.New("not found")
	ErrConflict      = errors.New("conflict")
	ErrBackpressure  = errors.New("backpressure")
	ErrUnavailable   = errors.New("unavailable")
	ErrMissingHeader = errors.New("missing session header")
)

// Error is an API failure tagged with the operation and the kind used to
// pick the response status.
type Error struct {
	Op   string
	Kind error
	Err  error
}

func (e *Error) Error() string {
	switch {
	case e.Err == nil:
		return e.Op + ": " + e.Kind.Error()
	case e.Kind == nil:
		return e.Op + ": " + e.Err.Error()
	default:
		return e.Op + ": " + e.Kind.Error() + ": " + e.Err.Error()
	}
}

// Unwrap exposes both the kind and the cause to errors.Is.
func (e *Error) Unwrap() []error {
	out := make([]error, 0, 2)
	if e.Kind != nil {
		out = append(out, e.Kind)
	}
	if e.Err != nil {
		out = append(out, e.Err)
	}
	return out
}

// Wrap tags err with op and a kind derived from the cause.
func Wrap(op string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Op: op, Kind: kindOf(err), Err: err}
}

// WrapKind tags err with op and an explicit kind.
func WrapKind(op string, kind, err error) error {
	return &Error{Op: op, Kind: kind, Err: err}
}

// NewKind returns an error of the given kind with no further cause.
func NewKind(op string, kind error) error {
	return &Error{Op: op, Kind: kind}
}

// kindOf maps errors from lower layers onto API kinds. Unknown errors have no kind.
func kindOf(err error) error {
	switch {
	case errors.Is(err, model.ErrValidationFailed),
		errors.Is(err, model.ErrUnknownLabel),
		errors.Is(err, model.ErrMissingLabelValue),
		errors.Is(err, repository.ErrInvalidObservation),
		errors.Is(err, repository.ErrInvalidUser),
		errors.Is(err, training.ErrInvalidInput):
		return ErrBadRequest
	case errors.Is(err, repository.ErrUnauthorized),
		errors.Is(err, service.ErrSessionNotFound):
		return ErrUnauthorized
	case errors.Is(err, service.ErrJobNotFound):
		return ErrNotFound
	case errors.Is(err, service.ErrJobNotSucceeded),
		errors.Is(err, service.ErrNoCurrentPatient),
		errors.Is(err, service.ErrDuplicateRequest):
		return ErrConflict
	case errors.Is(err, service.ErrQueueFull):
		return ErrBackpressure
	case errors.Is(err, artifact.ErrModelUnavailable),
		errors.Is(err, service.ErrNotStarted):
		return ErrUnavailable
	}
	return nil
}

// status returns the HTTP status and the machine readable code for err.
func status(err error) (int, string) {
	switch {
	case errors.Is(err, artifact.ErrModelUnavailable):
		return http.StatusServiceUnavailable, "model_unavailable"
	case errors.Is(err, service.ErrDuplicateRequest):
		return http.StatusConflict, "duplicate"
	case errors.Is(err, ErrMissingHeader), errors.Is(err, ErrUnauthorized):
		return http.StatusUnauthorized, "unauthorized"
	case errors.Is(err, ErrBadRequest):
		return http.StatusBadRequest, "bad_request"
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, ErrConflict):
		return http.StatusConflict, "conflict"
	case errors.Is(err, ErrBackpressure):
		return http.StatusTooManyRequests, "backpressure"
	case errors.Is(err, ErrUnavailable):
		return http.StatusServiceUnavailable, "unavailable"
	}
	return http.StatusInternalServerError, "internal_error"
}
