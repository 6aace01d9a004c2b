package models

import (
	"math"
	"testing"
)

func TestParseSensor(t *testing.T) {
	tests := []struct {
		input   string
		want    Sensor
		wantErr bool
	}{
		{"air_temp", SensorAirTemp, false},
		{"AIR_TEMP", SensorAirTemp, false},
		{"Humidity", SensorHumidity, false},
		{"pressure", SensorPressure, false},
		{"soil_temp", SensorSoilTemp, false},
		{"RAIN", SensorRain, false},
		{"wind", SensorWind, false},
		{"snow", "", true},
		{"", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseSensor(tt.input)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseSensor(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("ParseSensor(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

func TestSensor_Reduce(t *testing.T) {
	values := []float64{8.1, 3.7}

	if got := SensorRain.Reduce(values); math.Abs(got-11.8) > 1e-9 {
		t.Errorf("rain Reduce = %v, want 11.8", got)
	}
	for _, s := range AllSensors {
		if s == SensorRain {
			continue
		}
		if got := s.Reduce(values); math.Abs(got-5.9) > 1e-9 {
			t.Errorf("%s Reduce = %v, want 5.9", s, got)
		}
	}
	if got := SensorWind.Reduce(nil); got != 0 {
		t.Errorf("Reduce(nil) = %v, want 0", got)
	}
}
