package service

import (
	"context"
	"time"

	"github.com/afroash/holdtrack/internal/apperr"
	"github.com/afroash/holdtrack/internal/models"
	"github.com/afroash/holdtrack/internal/storage"
)

// CreateHoldRequest opens a hold on a device
type CreateHoldRequest struct {
	Label string    `json:"label"`
	Start time.Time `json:"start"`
}

// ReleaseHoldRequest closes a device's active hold
type ReleaseHoldRequest struct {
	End time.Time `json:"end"`
}

// ReplaceHoldRequest closes the active hold and opens another in one step
type ReplaceHoldRequest struct {
	RetiredSince     time.Time `json:"retiredSince"`
	ReplacementLabel string    `json:"replacementLabel"`
	IMEI             *string   `json:"imei"`
	ClaimedSince     time.Time `json:"claimedSince"`
}

// AdjustTimeframeRequest moves a hold's start, end or both
type AdjustTimeframeRequest struct {
	Start *time.Time `json:"start"`
	End   *time.Time `json:"end"`
}

// CreateHold opens a hold for label on deviceID starting at req.Start
func (s *Service) CreateHold(ctx context.Context, deviceID string, req CreateHoldRequest) (*models.Hold, error) {
	if req.Start.IsZero() {
		return nil, apperr.BadRequest("Start is required.")
	}
	if len(req.Label) != models.LabelLength {
		return nil, apperr.Validation("Label must have 8 characters.")
	}
	if _, ok := s.catalog.FindLabel(req.Label); !ok {
		return nil, apperr.NotFound("Label not found.")
	}
	imei, ok := s.catalog.FindImeiByLabel(req.Label)
	if !ok {
		return nil, apperr.NotFound("Label has no station imei.")
	}

	var created *models.Hold
	err := s.store.WithinDevice(ctx, deviceID, func(repo storage.Repository) error {
		inUse, err := NewActiveLabelChecker(repo).Check(ctx, req.Label)
		if err != nil {
			return err
		}
		if inUse {
			return apperr.Conflict("Label in use.")
		}

		device, err := repo.FindDevice(ctx, deviceID)
		if err != nil {
			return err
		}
		if device == nil {
			return apperr.NotFound("Device not found.")
		}

		holds, err := repo.FindHoldsByDevice(ctx, deviceID)
		if err != nil {
			return err
		}
		if FindActiveHold(holds) != nil {
			return apperr.Conflict("Device has active hold.")
		}
		if latest := FindLatestEnd(holds); latest != nil && !req.Start.After(*latest) {
			return apperr.Validation("Start must be after previous hold's end.")
		}

		hold := &models.Hold{
			DeviceID: deviceID,
			Label:    req.Label,
			IMEI:     &imei,
			Start:    req.Start.UTC(),
		}
		id, err := repo.CreateHold(ctx, hold)
		if err != nil {
			return err
		}
		hold.ID = id
		created = hold
		return nil
	})
	if err != nil {
		return nil, s.fail("create hold", err)
	}

	s.logger.Info().
		Int64("hold_id", created.ID).
		Str("device_id", deviceID).
		Str("label", created.Label).
		Msg("Hold created")
	s.publish(models.HoldCreated, created, nil)
	return created, nil
}

// ReleaseHold closes the device's active hold at req.End
func (s *Service) ReleaseHold(ctx context.Context, deviceID string, req ReleaseHoldRequest) (*models.Hold, error) {
	if req.End.IsZero() {
		return nil, apperr.BadRequest("End is required.")
	}

	var released *models.Hold
	err := s.store.WithinDevice(ctx, deviceID, func(repo storage.Repository) error {
		active, err := s.requireActiveHold(ctx, repo, deviceID)
		if err != nil {
			return err
		}
		if !req.End.After(active.Start) {
			return apperr.Validation("End must be after start.")
		}

		end := req.End.UTC()
		if err := repo.SetHoldEnd(ctx, active.ID, end); err != nil {
			return err
		}
		active.End = &end
		released = active
		return nil
	})
	if err != nil {
		return nil, s.fail("release hold", err)
	}

	s.logger.Info().
		Int64("hold_id", released.ID).
		Str("device_id", deviceID).
		Msg("Hold released")
	s.publish(models.HoldReleased, released, nil)
	return released, nil
}

// ReplaceHold retires the device's active hold at req.RetiredSince and opens
// a hold on req.ReplacementLabel at req.ClaimedSince
func (s *Service) ReplaceHold(ctx context.Context, deviceID string, req ReplaceHoldRequest) (*models.Hold, error) {
	if req.RetiredSince.IsZero() || req.ClaimedSince.IsZero() {
		return nil, apperr.BadRequest("retiredSince and claimedSince are required.")
	}

	var retired, replacement *models.Hold
	err := s.store.WithinDevice(ctx, deviceID, func(repo storage.Repository) error {
		active, err := s.requireActiveHold(ctx, repo, deviceID)
		if err != nil {
			return err
		}
		if !req.RetiredSince.After(active.Start) {
			return apperr.Validation("retiredSince must be after the hold's start.")
		}
		if len(req.ReplacementLabel) != models.LabelLength {
			return apperr.Validation("Label must have 8 characters.")
		}
		if _, ok := s.catalog.FindLabel(req.ReplacementLabel); !ok {
			return apperr.NotFound("Label not found.")
		}
		inUse, err := NewActiveLabelChecker(repo).Check(ctx, req.ReplacementLabel)
		if err != nil {
			return err
		}
		if inUse {
			return apperr.Conflict("Label in use.")
		}
		if !req.ClaimedSince.After(req.RetiredSince) {
			return apperr.Validation("claimedSince must be after retiredSince.")
		}

		imei := req.IMEI
		if imei == nil {
			if found, ok := s.catalog.FindImeiByLabel(req.ReplacementLabel); ok {
				imei = &found
			}
		}

		end := req.RetiredSince.UTC()
		if err := repo.SetHoldEnd(ctx, active.ID, end); err != nil {
			return err
		}
		active.End = &end

		hold := &models.Hold{
			DeviceID: deviceID,
			Label:    req.ReplacementLabel,
			IMEI:     imei,
			Start:    req.ClaimedSince.UTC(),
		}
		id, err := repo.CreateHold(ctx, hold)
		if err != nil {
			return err
		}
		hold.ID = id
		retired, replacement = active, hold
		return nil
	})
	if err != nil {
		return nil, s.fail("replace hold", err)
	}

	s.logger.Info().
		Int64("retired_hold_id", retired.ID).
		Int64("hold_id", replacement.ID).
		Str("device_id", deviceID).
		Msg("Hold replaced")
	s.publish(models.HoldReplaced, replacement, retired)
	return replacement, nil
}

// requireActiveHold loads the device and its active hold, failing with the
// release/replace error ladder
func (s *Service) requireActiveHold(ctx context.Context, repo storage.Repository, deviceID string) (*models.Hold, error) {
	device, err := repo.FindDevice(ctx, deviceID)
	if err != nil {
		return nil, err
	}
	if device == nil {
		return nil, apperr.NotFound("Device not found.")
	}
	holds, err := repo.FindHoldsByDevice(ctx, deviceID)
	if err != nil {
		return nil, err
	}
	if len(holds) == 0 {
		return nil, apperr.NotFound("Device has no holds.")
	}
	active := FindActiveHold(holds)
	if active == nil {
		return nil, apperr.Conflict("There is no active hold on the device.")
	}
	return active, nil
}

// AdjustHoldTimeframe moves the start and/or end of a hold without letting it
// overlap its neighbours. Both fields nil is a no-op.
func (s *Service) AdjustHoldTimeframe(ctx context.Context, holdID int64, req AdjustTimeframeRequest) (*models.Hold, error) {
	hold, err := s.store.FindHold(ctx, holdID)
	if err != nil {
		return nil, s.internal("find hold", err)
	}
	if hold == nil {
		return nil, apperr.NotFound("Hold not found.")
	}
	if req.Start == nil && req.End == nil {
		return hold, nil
	}
	if req.Start != nil && req.End != nil && !req.Start.Before(*req.End) {
		return nil, apperr.Validation("Start parameter must be before end parameter.")
	}

	var adjusted *models.Hold
	err = s.store.WithinDevice(ctx, hold.DeviceID, func(repo storage.Repository) error {
		holds, err := repo.FindHoldsByDevice(ctx, hold.DeviceID)
		if err != nil {
			return err
		}
		holds = models.SortHoldsByStart(holds)

		index := -1
		for i, h := range holds {
			if h.ID == holdID {
				index = i
				break
			}
		}
		if index < 0 {
			return apperr.NotFound("Hold not found.")
		}
		target := holds[index]

		if req.Start != nil {
			if target.End != nil && !req.Start.Before(*target.End) {
				return apperr.Conflict("Start parameter must be before the hold's end.")
			}
			if index > 0 {
				previousEnd := holds[index-1].End
				if previousEnd == nil {
					s.logger.Error().
						Int64("hold_id", holds[index-1].ID).
						Str("device_id", hold.DeviceID).
						Msg("Hold preceding another has no end")
					return apperr.Consistency("Critical internal error: Previous hold's 'end' is null.")
				}
				if !req.Start.After(*previousEnd) {
					return apperr.Conflict("Start parameter overlaps previous hold.")
				}
			}
		}

		if req.End != nil {
			if target.End == nil {
				return apperr.Validation("Setting an active hold's end is not allowed here.")
			}
			if !req.End.After(target.Start) {
				return apperr.Conflict("End parameter must be after the hold's start.")
			}
			if index < len(holds)-1 && !req.End.Before(holds[index+1].Start) {
				return apperr.Conflict("End parameter overlaps next hold.")
			}
		}

		var start, end *time.Time
		if req.Start != nil {
			u := req.Start.UTC()
			start = &u
			target.Start = u
		}
		if req.End != nil {
			u := req.End.UTC()
			end = &u
			target.End = &u
		}
		if err := repo.UpdateHold(ctx, holdID, start, end); err != nil {
			return err
		}
		adjusted = target
		return nil
	})
	if err != nil {
		return nil, s.fail("adjust hold", err)
	}

	s.logger.Info().
		Int64("hold_id", holdID).
		Str("device_id", adjusted.DeviceID).
		Msg("Hold timeframe adjusted")
	s.publish(models.HoldAdjusted, adjusted, hold)
	return adjusted, nil
}

// DeleteHold removes a hold. Neighbouring holds are not revalidated, so a
// gap may be left in the device timeline.
func (s *Service) DeleteHold(ctx context.Context, holdID int64) error {
	hold, err := s.store.FindHold(ctx, holdID)
	if err != nil {
		return s.internal("find hold", err)
	}
	if hold == nil {
		return apperr.NotFound("Hold not found.")
	}

	err = s.store.WithinDevice(ctx, hold.DeviceID, func(repo storage.Repository) error {
		return repo.DeleteHold(ctx, holdID)
	})
	if err != nil {
		return s.fail("delete hold", err)
	}

	s.logger.Info().
		Int64("hold_id", holdID).
		Str("device_id", hold.DeviceID).
		Msg("Hold deleted")
	s.publish(models.HoldDeleted, hold, nil)
	return nil
}

// GetHold returns a single hold
func (s *Service) GetHold(ctx context.Context, holdID int64) (*models.Hold, error) {
	hold, err := s.store.FindHold(ctx, holdID)
	if err != nil {
		return nil, s.internal("find hold", err)
	}
	if hold == nil {
		return nil, apperr.NotFound("Hold not found.")
	}
	return hold, nil
}

// ListHolds returns a device's holds ordered by start
func (s *Service) ListHolds(ctx context.Context, deviceID string) ([]*models.Hold, error) {
	device, err := s.store.FindDevice(ctx, deviceID)
	if err != nil {
		return nil, s.internal("find device", err)
	}
	if device == nil {
		return nil, apperr.NotFound("Device not found.")
	}
	holds, err := s.store.FindHoldsByDevice(ctx, deviceID)
	if err != nil {
		return nil, s.internal("list holds", err)
	}
	return models.SortHoldsByStart(holds), nil
}
