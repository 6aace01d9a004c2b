package measurements

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/afroash/holdtrack/internal/models"
)

// Combiner stitches per-hold measurement queries across a device's hold timeline
type Combiner struct {
	source Source
	now    func() time.Time
	logger zerolog.Logger
}

// NewCombiner creates a combiner reading from source. A nil now uses time.Now.
func NewCombiner(source Source, now func() time.Time, logger zerolog.Logger) *Combiner {
	if now == nil {
		now = time.Now
	}
	return &Combiner{
		source: source,
		now:    now,
		logger: logger,
	}
}

// Combine queries the source once per hold overlapping [since, until],
// clipped to the window, and concatenates results in hold start order.
// Overlap is inclusive on both bounds. Holds without an imei are skipped.
func (c *Combiner) Combine(ctx context.Context, holds []*models.Hold, sensor models.Sensor, since, until time.Time) ([]models.TimeAndValue, error) {
	now := c.now()
	var result []models.TimeAndValue

	for _, hold := range models.SortHoldsByStart(holds) {
		holdEnd := hold.EffectiveEnd(now)
		if !overlaps(hold.Start, holdEnd, since, until) {
			continue
		}
		if hold.IMEI == nil || *hold.IMEI == "" {
			c.logger.Warn().
				Int64("hold_id", hold.ID).
				Str("label", hold.Label).
				Msg("Hold has no imei, skipping measurements")
			continue
		}

		clippedStart := clip(hold.Start, since, until, since)
		clippedEnd := clip(holdEnd, since, until, until)

		samples, err := c.source.Query(ctx, *hold.IMEI, sensor, clippedStart, clippedEnd)
		if err != nil {
			return nil, fmt.Errorf("query measurements for hold %d: %w", hold.ID, err)
		}
		c.logger.Debug().
			Int64("hold_id", hold.ID).
			Time("since", clippedStart).
			Time("until", clippedEnd).
			Int("samples", len(samples)).
			Msg("Hold measurements fetched")
		result = append(result, samples...)
	}

	return result, nil
}

func overlaps(holdStart, holdEnd, since, until time.Time) bool {
	return !holdStart.After(until) && !holdEnd.Before(since)
}

func inTimeframe(t, since, until time.Time) bool {
	return !t.Before(since) && !t.After(until)
}

// clip keeps t when it lies within [since, until] and otherwise returns bound
func clip(t, since, until, bound time.Time) time.Time {
	if inTimeframe(t, since, until) {
		return t
	}
	return bound
}
