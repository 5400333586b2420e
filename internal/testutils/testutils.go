package testutils

import (
	"context"
	"fmt"
	"time"

	"github.com/climsense/climate-logger/internal/types"
)

// MockReading creates a mock sensor reading for testing
func MockReading(sensorID, city, country string) *types.Reading {
	return &types.Reading{
		SensorID:    sensorID,
		Timestamp:   time.Now().UTC(),
		Temperature: types.Float64Ptr(21.5),
		Humidity:    types.Float64Ptr(0.55),
		City:        city,
		Country:     country,
	}
}

// MockSensor creates a mock sensor for testing
func MockSensor(sensorID, city, country string) *types.Sensor {
	return &types.Sensor{
		SensorID:  sensorID,
		Name:      "Sensor " + sensorID,
		Type:      "temp-hum",
		City:      city,
		Country:   country,
		Status:    types.SensorStatusActive,
		StartedAt: time.Now().UTC(),
	}
}

// WaitForCondition waits for a condition to be true with timeout
func WaitForCondition(condition func() bool, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return fmt.Errorf("timeout waiting for condition")
		case <-ticker.C:
			if condition() {
				return nil
			}
		}
	}
}
