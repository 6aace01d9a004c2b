package measurements

import (
	"fmt"
	"time"

	"github.com/afroash/holdtrack/internal/models"
)

// CreateIntervals partitions [since, until) into buckets of width resolution.
// The last bucket is not clipped and may end after until.
func CreateIntervals(resolution time.Duration, since, until time.Time) ([]*models.Interval, error) {
	if resolution <= 0 {
		return nil, fmt.Errorf("resolution must be positive, got %s", resolution)
	}

	var intervals []*models.Interval
	for current := since; current.Before(until); current = current.Add(resolution) {
		intervals = append(intervals, &models.Interval{
			Since: current,
			Until: current.Add(resolution),
		})
	}
	return intervals, nil
}
