package measurements

import (
	"context"
	"hash/fnv"
	"math/rand"
	"time"

	"github.com/afroash/holdtrack/internal/models"
)

// Source returns raw samples for one station and sensor within [since, until]
type Source interface {
	Query(ctx context.Context, imei string, sensor models.Sensor, since, until time.Time) ([]models.TimeAndValue, error)
}

// SourceFunc adapts a function to the Source interface
type SourceFunc func(ctx context.Context, imei string, sensor models.Sensor, since, until time.Time) ([]models.TimeAndValue, error)

// Query calls f
func (f SourceFunc) Query(ctx context.Context, imei string, sensor models.Sensor, since, until time.Time) ([]models.TimeAndValue, error) {
	return f(ctx, imei, sensor, since, until)
}

// SyntheticSource generates deterministic pseudo-random samples seeded by
// the station imei, one every Step starting at since while before until
type SyntheticSource struct {
	step time.Duration
	seed int64
}

var _ Source = (*SyntheticSource)(nil)

// DefaultStep is the sample spacing of the synthetic source
const DefaultStep = 10 * time.Minute

// NewSyntheticSource creates a synthetic source. A non-positive step falls
// back to DefaultStep.
func NewSyntheticSource(step time.Duration, seed int64) *SyntheticSource {
	if step <= 0 {
		step = DefaultStep
	}
	return &SyntheticSource{step: step, seed: seed}
}

// Query generates samples for the span
func (s *SyntheticSource) Query(ctx context.Context, imei string, sensor models.Sensor, since, until time.Time) ([]models.TimeAndValue, error) {
	random := rand.New(rand.NewSource(s.seedFor(imei)))

	var result []models.TimeAndValue
	for current := since; current.Before(until); current = current.Add(s.step) {
		if len(result)%1024 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		result = append(result, models.TimeAndValue{
			Timestamp: current,
			Value:     sample(random, sensor),
		})
	}
	return result, nil
}

func (s *SyntheticSource) seedFor(imei string) int64 {
	h := fnv.New64a()
	h.Write([]byte(imei))
	return int64(h.Sum64()) ^ s.seed
}

func between(r *rand.Rand, lo, hi float64) float64 {
	return lo + r.Float64()*(hi-lo)
}

func sample(r *rand.Rand, sensor models.Sensor) float64 {
	switch sensor {
	case models.SensorAirTemp:
		return between(r, -10, 30)
	case models.SensorHumidity:
		return between(r, 25, 95)
	case models.SensorPressure:
		return between(r, 900, 1100)
	case models.SensorSoilTemp:
		return between(r, -5, 25)
	case models.SensorRain:
		return between(r, 0, 10) / 9
	case models.SensorWind:
		return between(r, 0, 30)
	default:
		return 0
	}
}
