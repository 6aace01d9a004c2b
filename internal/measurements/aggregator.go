package measurements

import (
	"sort"

	"github.com/afroash/holdtrack/internal/models"
)

// Aggregate assigns samples to intervals (left-inclusive, right-exclusive) and
// reduces each non-empty interval with the sensor's reduction. Each output row
// is stamped with its interval's Until. Empty intervals produce no row.
func Aggregate(intervals []*models.Interval, measurements []models.TimeAndValue, sensor models.Sensor) []models.TimeAndValue {
	sorted := make([]models.TimeAndValue, len(measurements))
	copy(sorted, measurements)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Timestamp.Before(sorted[j].Timestamp)
	})

	result := make([]models.TimeAndValue, 0, len(intervals))
	for _, interval := range intervals {
		first := sort.Search(len(sorted), func(i int) bool {
			return !sorted[i].Timestamp.Before(interval.Since)
		})
		interval.Measurements = interval.Measurements[:0]
		for i := first; i < len(sorted) && interval.Contains(sorted[i].Timestamp); i++ {
			interval.Measurements = append(interval.Measurements, sorted[i])
		}
		if len(interval.Measurements) == 0 {
			continue
		}
		result = append(result, models.TimeAndValue{
			Timestamp: interval.Until,
			Value:     sensor.Reduce(interval.Values()),
		})
	}

	return result
}
