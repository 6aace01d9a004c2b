package models

import (
	"fmt"
	"strings"
)

// Sensor identifies one measurement channel of a station
type Sensor string

const (
	SensorAirTemp  Sensor = "air_temp"
	SensorHumidity Sensor = "humidity"
	SensorPressure Sensor = "pressure"
	SensorSoilTemp Sensor = "soil_temp"
	SensorRain     Sensor = "rain"
	SensorWind     Sensor = "wind"
)

// Reduction is how the samples of one bucket collapse into a single value
type Reduction int

const (
	ReduceMean Reduction = iota
	ReduceSum
)

// AllSensors lists every known sensor in a stable order
var AllSensors = []Sensor{
	SensorAirTemp,
	SensorHumidity,
	SensorPressure,
	SensorSoilTemp,
	SensorRain,
	SensorWind,
}

// ParseSensor resolves a sensor name case-insensitively
func ParseSensor(name string) (Sensor, error) {
	candidate := Sensor(strings.ToLower(strings.TrimSpace(name)))
	for _, s := range AllSensors {
		if s == candidate {
			return s, nil
		}
	}
	return "", fmt.Errorf("unknown sensor %q", name)
}

// Reduction returns the aggregation strategy for the sensor.
// Precipitation accumulates, everything else is averaged.
func (s Sensor) Reduction() Reduction {
	if s == SensorRain {
		return ReduceSum
	}
	return ReduceMean
}

// Reduce collapses values using the sensor's reduction. Empty input yields 0.
func (s Sensor) Reduce(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	if s.Reduction() == ReduceSum {
		return sum
	}
	return sum / float64(len(values))
}

func (s Sensor) String() string {
	return string(s)
}
