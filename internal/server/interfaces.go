package server

import (
	"context"
	"time"

	"github.com/afroash/holdtrack/internal/models"
	"github.com/afroash/holdtrack/internal/service"
	"github.com/afroash/holdtrack/internal/storage"
)

// HoldService is the set of operations exposed over HTTP.
// service.Service implements this interface.
type HoldService interface {
	CreateAccount(ctx context.Context, id string, apiKey *string, createdAt *time.Time) error
	DeleteAccount(ctx context.Context, id string) error

	CreateDevice(ctx context.Context, accountID, id string, createdAt *time.Time) error
	DeleteDevice(ctx context.Context, id string) error
	ListDevices(ctx context.Context, accountID string) ([]*models.Device, error)

	CreateHold(ctx context.Context, deviceID string, req service.CreateHoldRequest) (*models.Hold, error)
	ReleaseHold(ctx context.Context, deviceID string, req service.ReleaseHoldRequest) (*models.Hold, error)
	ReplaceHold(ctx context.Context, deviceID string, req service.ReplaceHoldRequest) (*models.Hold, error)
	AdjustHoldTimeframe(ctx context.Context, holdID int64, req service.AdjustTimeframeRequest) (*models.Hold, error)
	DeleteHold(ctx context.Context, holdID int64) error
	GetHold(ctx context.Context, holdID int64) (*models.Hold, error)
	ListHolds(ctx context.Context, deviceID string) ([]*models.Hold, error)

	GetMeasurements(ctx context.Context, deviceID string, q service.MeasurementQuery) (*service.MeasurementSeries, error)
}

// StatsProvider reports persisted row counts
// storage.Store implements this interface
type StatsProvider interface {
	Stats(ctx context.Context) (*storage.StorageStats, error)
}

// CleanerStatsProvider reports orphan cleanup activity
// storage.OrphanCleaner implements this interface
type CleanerStatsProvider interface {
	Stats() storage.OrphanCleanerStats
}
