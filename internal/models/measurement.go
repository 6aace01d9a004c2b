package models

import "time"

// TimeAndValue is a single timestamped sample or aggregate
type TimeAndValue struct {
	Timestamp time.Time `json:"timestamp"`
	Value     float64   `json:"value"`
}

// Interval is a half-open [Since, Until) bucket collecting samples for one query
type Interval struct {
	Since        time.Time
	Until        time.Time
	Measurements []TimeAndValue
}

// Contains reports whether ts falls inside the bucket, left-inclusive and right-exclusive
func (i *Interval) Contains(ts time.Time) bool {
	return !ts.Before(i.Since) && ts.Before(i.Until)
}

// Values returns the raw values assigned to the bucket
func (i *Interval) Values() []float64 {
	values := make([]float64, len(i.Measurements))
	for idx, m := range i.Measurements {
		values[idx] = m.Value
	}
	return values
}
