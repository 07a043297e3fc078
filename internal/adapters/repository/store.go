// Package repository persists observations and clinic users in an embedded ql database.
package repository

import (
	"context"

	"github.com/okian/fetalhealth/internal/domain/model"
)

// DatasetProvider returns the stored dataset.
type DatasetProvider interface {
	// LoadTable returns every stored row in insertion order, feature columns
	// first and the label column last.
	LoadTable(ctx context.Context) (model.Table, error)
	// LoadObservations returns every stored row as an Observation.
	LoadObservations(ctx context.Context) ([]model.Observation, error)
	// Count returns the number of stored rows.
	Count(ctx context.Context) (int, error)
}

// ObservationWriter appends confirmed cases.
type ObservationWriter interface {
	// Insert validates obs and appends it. Returns ErrInvalidObservation when
	// obs does not carry a valid label and in-range features.
	Insert(ctx context.Context, obs model.Observation) error
}

// UserStore authenticates clinic staff.
type UserStore interface {
	// Authenticate returns ErrUnauthorized unless user is active and password matches.
	Authenticate(ctx context.Context, user, password string) error
	// CreateUser adds user or replaces its password.
	CreateUser(ctx context.Context, user, password string) error
}

// Store is everything the service needs from the datastore.
type Store interface {
	DatasetProvider
	ObservationWriter
	UserStore
	Close() error
}
