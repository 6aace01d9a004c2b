package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/afroash/holdtrack/internal/apperr"
	"github.com/afroash/holdtrack/internal/models"
)

func TestGetMeasurements_Validation(t *testing.T) {
	valid := MeasurementQuery{
		Sensor:     "rain",
		Since:      "2023-01-01T00:00:00Z",
		Until:      "2023-01-02T00:00:00Z",
		Resolution: "60",
	}

	tests := []struct {
		name   string
		mutate func(q *MeasurementQuery)
		kind   apperr.Kind
		msg    string
	}{
		{"unknown sensor", func(q *MeasurementQuery) { q.Sensor = "snow" }, apperr.KindBadRequest, "Invalid sensor."},
		{"bad since", func(q *MeasurementQuery) { q.Since = "yesterday" }, apperr.KindBadRequest, "Since cannot be parsed as an Instant."},
		{"bad until", func(q *MeasurementQuery) { q.Until = "2023-13-01" }, apperr.KindBadRequest, "Until cannot be parsed as an Instant."},
		{"bad resolution", func(q *MeasurementQuery) { q.Resolution = "hourly" }, apperr.KindBadRequest, ""},
		{"window exactly ten minutes", func(q *MeasurementQuery) { q.Until = "2023-01-01T00:10:00Z"; q.Resolution = "10" }, apperr.KindValidation, "Until must be over 10 minutes after since."},
		{"until before since", func(q *MeasurementQuery) { q.Until = "2022-12-31T00:00:00Z" }, apperr.KindValidation, "Until must be over 10 minutes after since."},
		{"resolution below ten", func(q *MeasurementQuery) { q.Resolution = "9" }, apperr.KindValidation, "Resolution must be at least 10 minutes."},
		{"resolution wider than window", func(q *MeasurementQuery) { q.Resolution = "1441" }, apperr.KindValidation, ""},
		{"too many buckets", func(q *MeasurementQuery) { q.Until = "2023-01-13T16:30:00Z"; q.Resolution = "10" }, apperr.KindBadRequest, "Request too big."},
		{"window beyond duration range", func(q *MeasurementQuery) {
			q.Since = "1000-01-01T00:00:00Z"
			q.Until = "3000-01-01T00:00:00Z"
			q.Resolution = "525600"
		}, apperr.KindBadRequest, "Request too big."},
		{"resolution beyond duration range", func(q *MeasurementQuery) {
			q.Since = "1000-01-01T00:00:00Z"
			q.Until = "3000-01-01T00:00:00Z"
			q.Resolution = "600000000"
		}, apperr.KindBadRequest, "Request too big."},
		{"sensor checked before device", func(q *MeasurementQuery) { q.Sensor = "" }, apperr.KindBadRequest, "Invalid sensor."},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			q := valid
			tt.mutate(&q)
			_, err := f.svc.GetMeasurements(f.ctx, "no-such-device", q)
			assertKind(t, err, tt.kind, tt.msg)
		})
	}
}

func TestGetMeasurements_BucketCap(t *testing.T) {
	f := newFixture(t)
	f.withDevice(t, "D1")
	f.seedHold(t, "D1", "QWER0001", "2023-01-01T00:00:00Z", nil)

	// 1824 buckets of 10 minutes is the largest accepted query
	q := MeasurementQuery{Sensor: "rain", Since: "2023-01-01T00:00:00Z", Until: "2023-01-13T16:00:00Z", Resolution: "10"}
	_, err := f.svc.GetMeasurements(f.ctx, "D1", q)
	require.NoError(t, err)
}

func TestGetMeasurements_DeviceChecks(t *testing.T) {
	f := newFixture(t)
	q := MeasurementQuery{Sensor: "rain", Since: "2023-01-01T00:00:00Z", Until: "2023-01-02T00:00:00Z", Resolution: "60"}

	_, err := f.svc.GetMeasurements(f.ctx, "D1", q)
	assertKind(t, err, apperr.KindNotFound, "Device not found.")

	f.withDevice(t, "D1")
	_, err = f.svc.GetMeasurements(f.ctx, "D1", q)
	assertKind(t, err, apperr.KindNotFound, "Device has no holds.")
}

func TestGetMeasurements_Aggregates(t *testing.T) {
	f := newFixture(t)
	f.withDevice(t, "D1")
	f.seedHold(t, "D1", "QWER0001", "2022-12-01T00:00:00Z", nil)

	series, err := f.svc.GetMeasurements(f.ctx, "D1", MeasurementQuery{
		Sensor:     "RAIN",
		Since:      "2023-01-01T00:00:00Z",
		Until:      "2023-01-02T00:00:00Z",
		Resolution: "60",
	})
	require.NoError(t, err)
	assert.Equal(t, "D1", series.DeviceID)
	assert.Equal(t, models.SensorRain, series.Sensor)
	assert.Equal(t, 60, series.Resolution)
	require.Len(t, series.Measurements, 24)

	first := series.Measurements[0]
	assert.True(t, first.Timestamp.Equal(mustParse("2023-01-01T01:00:00Z")), "bucket is stamped with its upper bound")
	for _, m := range series.Measurements {
		assert.InDelta(t, 2.0, m.Value, 1e-9, "two half-hourly samples summed per hour")
	}

	series, err = f.svc.GetMeasurements(f.ctx, "D1", MeasurementQuery{
		Sensor:     "humidity",
		Since:      "2023-01-01T00:00:00Z",
		Until:      "2023-01-02T00:00:00Z",
		Resolution: "60",
	})
	require.NoError(t, err)
	for _, m := range series.Measurements {
		assert.InDelta(t, 1.0, m.Value, 1e-9)
	}
}

func TestGetMeasurements_GapsAreSkipped(t *testing.T) {
	f := newFixture(t)
	f.withDevice(t, "D1")
	f.seedHold(t, "D1", "QWER0001", "2023-01-01T00:00:00Z", timePtr(mustParse("2023-01-01T06:00:00Z")))
	f.seedHold(t, "D1", "QWER0002", "2023-01-01T18:00:00Z", nil)

	series, err := f.svc.GetMeasurements(f.ctx, "D1", MeasurementQuery{
		Sensor:     "air_temp",
		Since:      "2023-01-01T00:00:00Z",
		Until:      "2023-01-02T00:00:00Z",
		Resolution: "360",
	})
	require.NoError(t, err)

	require.Len(t, series.Measurements, 2)
	assert.True(t, series.Measurements[0].Timestamp.Equal(mustParse("2023-01-01T06:00:00Z")))
	assert.True(t, series.Measurements[1].Timestamp.Equal(mustParse("2023-01-02T00:00:00Z")))
}

func TestGetMeasurements_ActiveHoldEndsNow(t *testing.T) {
	f := newFixture(t)
	f.withDevice(t, "D1")
	f.seedHold(t, "D1", "QWER0001", "2023-05-31T00:00:00Z", nil)

	series, err := f.svc.GetMeasurements(f.ctx, "D1", MeasurementQuery{
		Sensor:     "wind",
		Since:      testNow.Add(-12 * time.Hour).Format(time.RFC3339),
		Until:      testNow.Add(12 * time.Hour).Format(time.RFC3339),
		Resolution: "60",
	})
	require.NoError(t, err)
	assert.Len(t, series.Measurements, 12, "no samples after the injected clock")
}
