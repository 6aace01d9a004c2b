package service

import (
	"context"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/afroash/holdtrack/internal/apperr"
	"github.com/afroash/holdtrack/internal/measurements"
	"github.com/afroash/holdtrack/internal/models"
)

const (
	// MinWindow is the span a measurement query must exceed
	MinWindow = 10 * time.Minute
	// MinResolutionMinutes is the narrowest bucket a query may ask for
	MinResolutionMinutes = 10
	// MaxBuckets caps the number of buckets a single query may produce
	MaxBuckets = 1825

	maxResolutionMinutes = int64(math.MaxInt64 / time.Minute)
)

// MeasurementQuery carries the raw query parameters of a measurement request
type MeasurementQuery struct {
	Sensor     string
	Since      string
	Until      string
	Resolution string
}

// MeasurementSeries is the aggregated answer to a measurement query
type MeasurementSeries struct {
	DeviceID     string                `json:"deviceId"`
	Sensor       models.Sensor         `json:"sensor"`
	Resolution   int                   `json:"resolution"`
	Measurements []models.TimeAndValue `json:"measurements"`
}

type parsedQuery struct {
	sensor     models.Sensor
	since      time.Time
	until      time.Time
	resolution int
}

func parseMeasurementQuery(q MeasurementQuery) (*parsedQuery, error) {
	sensor, err := models.ParseSensor(q.Sensor)
	if err != nil {
		return nil, apperr.BadRequest("Invalid sensor.")
	}
	since, err := time.Parse(time.RFC3339, strings.TrimSpace(q.Since))
	if err != nil {
		return nil, apperr.BadRequest("Since cannot be parsed as an Instant.")
	}
	until, err := time.Parse(time.RFC3339, strings.TrimSpace(q.Until))
	if err != nil {
		return nil, apperr.BadRequest("Until cannot be parsed as an Instant.")
	}
	resolution, err := strconv.Atoi(strings.TrimSpace(q.Resolution))
	if err != nil {
		return nil, apperr.BadRequest("Resolution must be a whole number of minutes.")
	}

	if !until.After(since.Add(MinWindow)) {
		return nil, apperr.Validation("Until must be over 10 minutes after since.")
	}
	if resolution < MinResolutionMinutes {
		return nil, apperr.Validation("Resolution must be at least 10 minutes.")
	}
	// Unix seconds, since time.Duration saturates past ~292 years
	windowMinutes := (until.Unix() - since.Unix()) / 60
	if int64(resolution) > windowMinutes {
		return nil, apperr.Validation("Resolution can't be greater than the time between since and until.")
	}
	if windowMinutes/int64(resolution) >= MaxBuckets || int64(resolution) > maxResolutionMinutes {
		return nil, apperr.BadRequest("Request too big.")
	}

	return &parsedQuery{
		sensor:     sensor,
		since:      since.UTC(),
		until:      until.UTC(),
		resolution: resolution,
	}, nil
}

// GetMeasurements validates q, combines the device's holds into one raw
// series and reduces it into resolution-wide buckets
func (s *Service) GetMeasurements(ctx context.Context, deviceID string, q MeasurementQuery) (*MeasurementSeries, error) {
	query, err := parseMeasurementQuery(q)
	if err != nil {
		return nil, err
	}

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
	if len(holds) == 0 {
		return nil, apperr.NotFound("Device has no holds.")
	}

	raw, err := s.combiner.Combine(ctx, holds, query.sensor, query.since, query.until)
	if err != nil {
		return nil, s.internal("query measurements", err)
	}
	intervals, err := measurements.CreateIntervals(time.Duration(query.resolution)*time.Minute, query.since, query.until)
	if err != nil {
		return nil, apperr.Validation(err.Error())
	}
	aggregated := measurements.Aggregate(intervals, raw, query.sensor)
	if aggregated == nil {
		aggregated = []models.TimeAndValue{}
	}

	s.logger.Debug().
		Str("device_id", deviceID).
		Str("sensor", query.sensor.String()).
		Int("samples", len(raw)).
		Int("buckets", len(aggregated)).
		Msg("Measurements aggregated")

	return &MeasurementSeries{
		DeviceID:     deviceID,
		Sensor:       query.sensor,
		Resolution:   query.resolution,
		Measurements: aggregated,
	}, nil
}
