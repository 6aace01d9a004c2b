package measurements

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/afroash/holdtrack/internal/models"
)

func mustTime(t *testing.T, s string) time.Time {
	t.Helper()
	ts, err := time.Parse(time.RFC3339, s)
	require.NoError(t, err)
	return ts
}

func strPtr(s string) *string { return &s }

func timePtr(t time.Time) *time.Time { return &t }

type call struct {
	imei         string
	sensor       models.Sensor
	since, until time.Time
}

type recordingSource struct {
	calls []call
	err   error
}

func (r *recordingSource) Query(ctx context.Context, imei string, sensor models.Sensor, since, until time.Time) ([]models.TimeAndValue, error) {
	r.calls = append(r.calls, call{imei: imei, sensor: sensor, since: since, until: until})
	if r.err != nil {
		return nil, r.err
	}
	return []models.TimeAndValue{{Timestamp: since, Value: float64(len(r.calls))}}, nil
}

func newTestCombiner(source Source, now time.Time) *Combiner {
	return NewCombiner(source, func() time.Time { return now }, zerolog.New(io.Discard))
}

func TestCreateIntervals_Daily(t *testing.T) {
	since := mustTime(t, "2022-12-14T15:00:00Z")
	until := mustTime(t, "2022-12-15T15:00:00Z")

	intervals, err := CreateIntervals(60*time.Minute, since, until)
	require.NoError(t, err)
	require.Len(t, intervals, 24)

	assert.Equal(t, since, intervals[0].Since)
	assert.Equal(t, since.Add(time.Hour), intervals[0].Until)
	for _, iv := range intervals {
		assert.Equal(t, time.Hour, iv.Until.Sub(iv.Since))
	}
	assert.Equal(t, until, intervals[23].Until)
}

func TestCreateIntervals_LastBucketNotClipped(t *testing.T) {
	since := mustTime(t, "2023-01-01T00:00:00Z")
	until := since.Add(50 * time.Minute)

	intervals, err := CreateIntervals(20*time.Minute, since, until)
	require.NoError(t, err)
	require.Len(t, intervals, 3)
	assert.Equal(t, since.Add(60*time.Minute), intervals[2].Until)
}

func TestCreateIntervals_InvalidResolution(t *testing.T) {
	now := time.Now()
	_, err := CreateIntervals(0, now, now.Add(time.Hour))
	assert.Error(t, err)
}

func TestAggregate_RainSumsOthersAverage(t *testing.T) {
	since := mustTime(t, "2023-01-01T12:00:00Z")
	until := mustTime(t, "2023-01-02T12:00:00Z")
	samples := []models.TimeAndValue{
		{Timestamp: since.Add(time.Hour), Value: 8.1},
		{Timestamp: since.Add(2 * time.Hour), Value: 3.7},
	}

	for _, sensor := range models.AllSensors {
		intervals := []*models.Interval{{Since: since, Until: until}}
		rows := Aggregate(intervals, samples, sensor)
		require.Len(t, rows, 1, sensor)
		assert.Equal(t, until, rows[0].Timestamp)
		if sensor == models.SensorRain {
			assert.InDelta(t, 11.8, rows[0].Value, 1e-9)
		} else {
			assert.InDelta(t, 5.9, rows[0].Value, 1e-9, sensor)
		}
	}
}

func TestAggregate_BoundaryMembership(t *testing.T) {
	since := mustTime(t, "2023-01-01T00:00:00Z")
	until := since.Add(time.Hour)
	intervals := []*models.Interval{{Since: since, Until: until}}

	rows := Aggregate(intervals, []models.TimeAndValue{
		{Timestamp: since, Value: 4},
		{Timestamp: until, Value: 100},
	}, models.SensorRain)

	require.Len(t, rows, 1)
	assert.Equal(t, 4.0, rows[0].Value)
}

func TestAggregate_SkipsEmptyIntervals(t *testing.T) {
	since := mustTime(t, "2023-01-01T00:00:00Z")
	intervals, err := CreateIntervals(time.Hour, since, since.Add(3*time.Hour))
	require.NoError(t, err)

	rows := Aggregate(intervals, []models.TimeAndValue{
		{Timestamp: since.Add(2*time.Hour + time.Minute), Value: 1},
		{Timestamp: since.Add(10 * time.Minute), Value: 3},
	}, models.SensorWind)

	require.Len(t, rows, 2)
	assert.Equal(t, since.Add(time.Hour), rows[0].Timestamp)
	assert.Equal(t, 3.0, rows[0].Value)
	assert.Equal(t, since.Add(3*time.Hour), rows[1].Timestamp)
}

func TestCombiner_NoOverlapIssuesNoCalls(t *testing.T) {
	source := &recordingSource{}
	c := newTestCombiner(source, mustTime(t, "2023-06-01T00:00:00Z"))

	holds := []*models.Hold{{
		ID:    1,
		IMEI:  strPtr("imei-0000000001"),
		Start: mustTime(t, "2023-01-01T12:00:00Z"),
		End:   timePtr(mustTime(t, "2023-01-02T12:00:00Z")),
	}}

	out, err := c.Combine(context.Background(), holds, models.SensorRain,
		mustTime(t, "2023-01-03T12:00:00Z"), mustTime(t, "2023-01-05T12:00:00Z"))
	require.NoError(t, err)
	assert.Empty(t, out)
	assert.Empty(t, source.calls)
}

func TestCombiner_ClipsToWindow(t *testing.T) {
	source := &recordingSource{}
	c := newTestCombiner(source, mustTime(t, "2023-06-01T00:00:00Z"))

	holds := []*models.Hold{{
		ID:    1,
		IMEI:  strPtr("imei-0000000001"),
		Start: mustTime(t, "2023-01-01T12:00:00Z"),
		End:   timePtr(mustTime(t, "2023-01-04T12:00:00Z")),
	}}

	_, err := c.Combine(context.Background(), holds, models.SensorAirTemp,
		mustTime(t, "2023-01-03T12:00:00Z"), mustTime(t, "2023-01-05T12:00:00Z"))
	require.NoError(t, err)
	require.Len(t, source.calls, 1)
	assert.Equal(t, mustTime(t, "2023-01-03T12:00:00Z"), source.calls[0].since)
	assert.Equal(t, mustTime(t, "2023-01-04T12:00:00Z"), source.calls[0].until)
	assert.Equal(t, "imei-0000000001", source.calls[0].imei)
}

func TestCombiner_TouchingBoundaryOverlaps(t *testing.T) {
	source := &recordingSource{}
	c := newTestCombiner(source, mustTime(t, "2023-06-01T00:00:00Z"))
	since := mustTime(t, "2023-01-03T12:00:00Z")

	holds := []*models.Hold{{
		ID:    1,
		IMEI:  strPtr("imei-0000000001"),
		Start: mustTime(t, "2023-01-01T12:00:00Z"),
		End:   timePtr(since),
	}}

	_, err := c.Combine(context.Background(), holds, models.SensorWind, since, since.Add(48*time.Hour))
	require.NoError(t, err)
	require.Len(t, source.calls, 1)
	assert.Equal(t, since, source.calls[0].since)
	assert.Equal(t, since, source.calls[0].until)
}

func TestCombiner_ActiveHoldUsesNowAndPreservesOrder(t *testing.T) {
	source := &recordingSource{}
	now := mustTime(t, "2023-01-10T00:00:00Z")
	c := newTestCombiner(source, now)

	holds := []*models.Hold{
		{ID: 2, IMEI: strPtr("imei-b"), Start: mustTime(t, "2023-01-05T00:00:00Z")},
		{ID: 1, IMEI: strPtr("imei-a"), Start: mustTime(t, "2023-01-01T00:00:00Z"), End: timePtr(mustTime(t, "2023-01-04T00:00:00Z"))},
	}

	out, err := c.Combine(context.Background(), holds, models.SensorHumidity,
		mustTime(t, "2023-01-02T00:00:00Z"), mustTime(t, "2023-01-20T00:00:00Z"))
	require.NoError(t, err)
	require.Len(t, source.calls, 2)
	assert.Equal(t, "imei-a", source.calls[0].imei)
	assert.Equal(t, "imei-b", source.calls[1].imei)
	assert.Equal(t, now, source.calls[1].until)
	require.Len(t, out, 2)
	assert.Equal(t, mustTime(t, "2023-01-02T00:00:00Z"), out[0].Timestamp)
}

func TestCombiner_SkipsHoldsWithoutImei(t *testing.T) {
	source := &recordingSource{}
	c := newTestCombiner(source, mustTime(t, "2023-06-01T00:00:00Z"))

	holds := []*models.Hold{{ID: 1, Start: mustTime(t, "2023-01-01T00:00:00Z")}}

	_, err := c.Combine(context.Background(), holds, models.SensorRain,
		mustTime(t, "2023-01-01T00:00:00Z"), mustTime(t, "2023-01-02T00:00:00Z"))
	require.NoError(t, err)
	assert.Empty(t, source.calls)
}

func TestCombiner_SourceError(t *testing.T) {
	source := &recordingSource{err: errors.New("upstream down")}
	c := newTestCombiner(source, mustTime(t, "2023-06-01T00:00:00Z"))

	holds := []*models.Hold{{ID: 1, IMEI: strPtr("imei-a"), Start: mustTime(t, "2023-01-01T00:00:00Z")}}

	_, err := c.Combine(context.Background(), holds, models.SensorRain,
		mustTime(t, "2023-01-01T00:00:00Z"), mustTime(t, "2023-01-02T00:00:00Z"))
	assert.ErrorIs(t, err, source.err)
}

func TestSyntheticSource_Deterministic(t *testing.T) {
	src := NewSyntheticSource(0, 0)
	since := mustTime(t, "2023-01-01T00:00:00Z")
	until := since.Add(time.Hour)

	a, err := src.Query(context.Background(), "imei-0000000001", models.SensorPressure, since, until)
	require.NoError(t, err)
	b, err := src.Query(context.Background(), "imei-0000000001", models.SensorPressure, since, until)
	require.NoError(t, err)

	require.Len(t, a, 6)
	assert.Equal(t, a, b)
	assert.Equal(t, since, a[0].Timestamp)
	assert.Equal(t, since.Add(50*time.Minute), a[5].Timestamp)

	c, err := src.Query(context.Background(), "imei-0000000002", models.SensorPressure, since, until)
	require.NoError(t, err)
	assert.NotEqual(t, a, c)
}

func TestSyntheticSource_Ranges(t *testing.T) {
	src := NewSyntheticSource(10*time.Minute, 7)
	since := mustTime(t, "2023-01-01T00:00:00Z")
	until := since.Add(7 * 24 * time.Hour)

	bounds := map[models.Sensor][2]float64{
		models.SensorAirTemp:  {-10, 30},
		models.SensorHumidity: {25, 95},
		models.SensorPressure: {900, 1100},
		models.SensorSoilTemp: {-5, 25},
		models.SensorRain:     {0, 10.0 / 9},
		models.SensorWind:     {0, 30},
	}

	for sensor, b := range bounds {
		samples, err := src.Query(context.Background(), "imei-0000000003", sensor, since, until)
		require.NoError(t, err)
		for _, s := range samples {
			assert.GreaterOrEqual(t, s.Value, b[0], sensor)
			assert.Less(t, s.Value, b[1], sensor)
		}
	}
}

func TestSyntheticSource_EmptySpan(t *testing.T) {
	src := NewSyntheticSource(DefaultStep, 0)
	ts := mustTime(t, "2023-01-01T00:00:00Z")

	samples, err := src.Query(context.Background(), "imei-0000000001", models.SensorRain, ts, ts)
	require.NoError(t, err)
	assert.Empty(t, samples)
}

func TestSyntheticSource_Cancelled(t *testing.T) {
	src := NewSyntheticSource(DefaultStep, 0)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	ts := mustTime(t, "2023-01-01T00:00:00Z")
	_, err := src.Query(ctx, "imei-0000000001", models.SensorRain, ts, ts.Add(time.Hour))
	assert.ErrorIs(t, err, context.Canceled)
}
