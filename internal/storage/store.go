package storage

import (
	"context"
	"errors"
	"time"

	"github.com/afroash/holdtrack/internal/models"
)

var (
	// ErrNotFound is returned by updates and deletes that matched no row
	ErrNotFound = errors.New("record not found")
	// ErrDuplicate is returned when a write violates a uniqueness rule,
	// including the one-active-hold-per-device and per-label indexes
	ErrDuplicate = errors.New("duplicate record")
)

// Repository is the account, device and hold persistence contract.
// Find methods return (nil, nil) when the record does not exist.
type Repository interface {
	CreateAccount(ctx context.Context, id string, apiKey *string, createdAt *time.Time) error
	FindAccount(ctx context.Context, id string) (*models.Account, error)
	DeleteAccount(ctx context.Context, id string) error

	CreateDevice(ctx context.Context, id, accountID string, createdAt *time.Time) error
	FindDevice(ctx context.Context, id string) (*models.Device, error)
	FindDevicesByAccount(ctx context.Context, accountID string) ([]*models.Device, error)
	DeleteDevice(ctx context.Context, id string) error

	CreateHold(ctx context.Context, hold *models.Hold) (int64, error)
	FindHold(ctx context.Context, id int64) (*models.Hold, error)
	FindHoldsByDevice(ctx context.Context, deviceID string) ([]*models.Hold, error)
	FindHoldsByLabel(ctx context.Context, label string) ([]*models.Hold, error)
	SetHoldEnd(ctx context.Context, id int64, end time.Time) error
	UpdateHold(ctx context.Context, id int64, start, end *time.Time) error
	DeleteHold(ctx context.Context, id int64) error
}

// Store is a Repository that can also run a unit of work serialised
// against one device's hold timeline
type Store interface {
	Repository
	Migrate(ctx context.Context) error
	WithinDevice(ctx context.Context, deviceID string, fn func(repo Repository) error) error
	DeleteOrphanHolds(ctx context.Context) (int64, error)
	Stats(ctx context.Context) (*StorageStats, error)
	Close() error
}

// StorageStats contains row counts for the stats endpoint
type StorageStats struct {
	Accounts    int64 `json:"accounts" db:"accounts"`
	Devices     int64 `json:"devices" db:"devices"`
	Holds       int64 `json:"holds" db:"holds"`
	ActiveHolds int64 `json:"active_holds" db:"active_holds"`
}
