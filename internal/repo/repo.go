package repo

import (
	"context"
	"errors"
	"time"

	"github.com/richardliu001/appointment-service/internal/model"
)

var (
	// ErrNotFound is returned when no record exists for the key.
	ErrNotFound = errors.New("record not found")
	// ErrConditionFailed is returned when a conditional update finds the record in another state.
	ErrConditionFailed = errors.New("conditional update failed")
	// ErrDuplicate is returned when a unique key already exists.
	ErrDuplicate = errors.New("duplicate record")
)

// AppointmentRepository is the fast-path store written on the client request.
type AppointmentRepository interface {
	Put(ctx context.Context, a *model.Appointment) error
	GetByID(ctx context.Context, id string) (*model.Appointment, error)
	// QueryByInsuredID returns appointments newest first.
	QueryByInsuredID(ctx context.Context, insuredID string) ([]model.Appointment, error)
	// UpdateStatus applies a pending -> to transition atomically per id.
	// reason is stored as errorMessage when to is failed.
	UpdateStatus(ctx context.Context, id string, to model.Status, at time.Time, reason string) error
}

// CountryRepository is one country's system-of-record.
type CountryRepository interface {
	// Upsert inserts the record or overwrites status and updatedAt of an existing id.
	Upsert(ctx context.Context, r *model.CountryRecord) error
	QueryByInsuredID(ctx context.Context, insuredID string) ([]model.CountryRecord, error)
}

// UserRepository is the credential store used by registration and login.
type UserRepository interface {
	Create(ctx context.Context, u *model.User) error
	FindByEmail(ctx context.Context, email string) (*model.User, error)
	FindByInsuredID(ctx context.Context, insuredID string) (*model.User, error)
}
