// Package service implements the hold timeline and measurement query
// operations on top of the storage, catalog and measurement collaborators.
package service

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"github.com/afroash/holdtrack/internal/apperr"
	"github.com/afroash/holdtrack/internal/catalog"
	"github.com/afroash/holdtrack/internal/measurements"
	"github.com/afroash/holdtrack/internal/models"
	"github.com/afroash/holdtrack/internal/storage"
)

// Publisher receives a notification after every committed hold mutation
type Publisher interface {
	Publish(event models.HoldEvent)
}

// Service is the entry point for account, device, hold and measurement operations
type Service struct {
	store     storage.Store
	catalog   catalog.Catalog
	combiner  *measurements.Combiner
	publisher Publisher
	now       func() time.Time
	logger    zerolog.Logger
}

// Option customises a Service
type Option func(*Service)

// WithClock replaces time.Now, used as the effective end of active holds
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
	}
}

// WithPublisher registers a receiver for hold events
func WithPublisher(p Publisher) Option {
	return func(s *Service) {
		s.publisher = p
	}
}

// New creates a Service
func New(store storage.Store, cat catalog.Catalog, source measurements.Source, logger zerolog.Logger, opts ...Option) *Service {
	s := &Service{
		store:   store,
		catalog: cat,
		now:     time.Now,
		logger:  logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.combiner = measurements.NewCombiner(source, s.now, logger)
	return s
}

// CreateAccount registers an account; a duplicate id is a conflict
func (s *Service) CreateAccount(ctx context.Context, id string, apiKey *string, createdAt *time.Time) error {
	if id == "" {
		return apperr.BadRequest("Account id is required.")
	}
	if err := s.store.CreateAccount(ctx, id, apiKey, createdAt); err != nil {
		if errors.Is(err, storage.ErrDuplicate) {
			return apperr.Conflict("Account already exists.")
		}
		return s.internal("create account", err)
	}
	s.logger.Info().Str("account_id", id).Msg("Account created")
	return nil
}

// DeleteAccount removes an account
func (s *Service) DeleteAccount(ctx context.Context, id string) error {
	account, err := s.store.FindAccount(ctx, id)
	if err != nil {
		return s.internal("find account", err)
	}
	if account == nil {
		return apperr.NotFound("Account not found.")
	}
	if err := s.store.DeleteAccount(ctx, id); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return apperr.NotFound("Account not found.")
		}
		return s.internal("delete account", err)
	}
	s.logger.Info().Str("account_id", id).Msg("Account deleted")
	return nil
}

// CreateDevice registers a device under an existing account
func (s *Service) CreateDevice(ctx context.Context, accountID, id string, createdAt *time.Time) error {
	if id == "" {
		return apperr.BadRequest("Device id is required.")
	}
	account, err := s.store.FindAccount(ctx, accountID)
	if err != nil {
		return s.internal("find account", err)
	}
	if account == nil {
		return apperr.NotFound("Account not found.")
	}
	if err := s.store.CreateDevice(ctx, id, accountID, createdAt); err != nil {
		if errors.Is(err, storage.ErrDuplicate) {
			return apperr.Conflict("Device already exists.")
		}
		return s.internal("create device", err)
	}
	s.logger.Info().Str("account_id", accountID).Str("device_id", id).Msg("Device created")
	return nil
}

// DeleteDevice removes a device. Its holds are kept.
func (s *Service) DeleteDevice(ctx context.Context, id string) error {
	device, err := s.store.FindDevice(ctx, id)
	if err != nil {
		return s.internal("find device", err)
	}
	if device == nil {
		return apperr.NotFound("Device not found.")
	}
	if err := s.store.DeleteDevice(ctx, id); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return apperr.NotFound("Device not found.")
		}
		return s.internal("delete device", err)
	}
	s.logger.Info().Str("device_id", id).Msg("Device deleted")
	return nil
}

// ListDevices returns an account's devices
func (s *Service) ListDevices(ctx context.Context, accountID string) ([]*models.Device, error) {
	account, err := s.store.FindAccount(ctx, accountID)
	if err != nil {
		return nil, s.internal("find account", err)
	}
	if account == nil {
		return nil, apperr.NotFound("Account not found.")
	}
	devices, err := s.store.FindDevicesByAccount(ctx, accountID)
	if err != nil {
		return nil, s.internal("list devices", err)
	}
	return devices, nil
}

// fail converts an error escaping a device transaction into a domain error
func (s *Service) fail(op string, err error) error {
	if _, ok := apperr.As(err); ok {
		return err
	}
	switch {
	case errors.Is(err, storage.ErrDuplicate):
		return apperr.Conflict("Hold conflicts with an active hold.")
	case errors.Is(err, storage.ErrNotFound):
		return apperr.NotFound("Hold not found.")
	}
	return s.internal(op, err)
}

func (s *Service) internal(op string, err error) error {
	s.logger.Error().Err(err).Str("op", op).Msg("Storage operation failed")
	return apperr.Internal("failed to "+op, err)
}

func (s *Service) publish(action models.HoldAction, hold, previous *models.Hold) {
	if s.publisher == nil || hold == nil {
		return
	}
	s.publisher.Publish(models.HoldEvent{
		Action:     action,
		DeviceID:   hold.DeviceID,
		Hold:       hold.Copy(),
		Previous:   previous.Copy(),
		OccurredAt: s.now().UTC(),
	})
}
