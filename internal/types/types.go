package types

import (
	"fmt"
	"time"
)

// Sensor statuses
const (
	SensorStatusActive   = "active"
	SensorStatusInactive = "inactive"
)

// Alert types and statuses
const (
	AlertTypeSensor  = "sensor"
	AlertTypeClimate = "climate"

	AlertSubtypeInactivity  = "inactivity"
	AlertSubtypeTemperature = "temperature_out_of_range"
	AlertSubtypeHumidity    = "humidity_out_of_range"

	AlertStatusActive   = "active"
	AlertStatusResolved = "resolved"
)

// Sensor represents registered sensor metadata
type Sensor struct {
	SensorID  string    `json:"sensor_id"`
	Name      string    `json:"name"`
	Type      string    `json:"type"`
	Latitude  float64   `json:"lat"`
	Longitude float64   `json:"lon"`
	City      string    `json:"city"`
	Country   string    `json:"country"`
	Status    string    `json:"status"`
	StartedAt time.Time `json:"started_at"`
}

// Reading is the ingestion envelope published by sensor gateways.
// Temperature and humidity are each optional; humidity may arrive as a
// ratio in [0,1] or as a percentage in (1,100] and is normalized before
// storage.
type Reading struct {
	SensorID    string    `json:"sensor_id"`
	Timestamp   time.Time `json:"timestamp"`
	Temperature *float64  `json:"temperature,omitempty"`
	Humidity    *float64  `json:"humidity,omitempty"`
	City        string    `json:"city"`
	Country     string    `json:"country"`
	Source      string    `json:"source,omitempty"`
}

// Measurement is a stored reading as persisted in both denormalized views.
// Humidity is always a normalized ratio in [0,1].
type Measurement struct {
	SensorID    string    `json:"sensor_id"`
	Timestamp   time.Time `json:"timestamp"`
	Temperature *float64  `json:"temperature,omitempty"`
	Humidity    *float64  `json:"humidity,omitempty"`
	City        string    `json:"city,omitempty"`
	Country     string    `json:"country,omitempty"`
}

// DailyCityStats is one rolled-up day for a city. A channel with zero
// samples has all three of its statistics absent.
type DailyCityStats struct {
	Country string   `json:"country"`
	City    string   `json:"city"`
	Day     int      `json:"yyyymmdd"`
	TempMin *float64 `json:"temp_min,omitempty"`
	TempMax *float64 `json:"temp_max,omitempty"`
	TempAvg *float64 `json:"temp_avg,omitempty"`
	HumMin  *float64 `json:"hum_min,omitempty"`
	HumMax  *float64 `json:"hum_max,omitempty"`
	HumAvg  *float64 `json:"hum_avg,omitempty"`
	Samples int      `json:"samples"`
}

// Alert is an append-only record of a point-in-time condition.
type Alert struct {
	AlertID      string    `json:"alert_id"`
	Type         string    `json:"type"`
	Subtype      string    `json:"subtype,omitempty"`
	SensorID     string    `json:"sensor_id"`
	Country      string    `json:"country,omitempty"`
	City         string    `json:"city,omitempty"`
	Value        *float64  `json:"value,omitempty"`
	ThresholdMin *float64  `json:"threshold_min,omitempty"`
	ThresholdMax *float64  `json:"threshold_max,omitempty"`
	Description  string    `json:"description"`
	Status       string    `json:"status"`
	CreatedAt    time.Time `json:"created_at"`
}

// MonthAggregates holds month-wide channel averages and sample counts
// for one city, computed in a single pass over the raw readings.
type MonthAggregates struct {
	TempAvg     *float64 `json:"temp_avg,omitempty"`
	TempSamples int      `json:"temp_samples"`
	HumAvg      *float64 `json:"hum_avg,omitempty"`
	HumSamples  int      `json:"hum_samples"`
}

// SensorHealth is one health-check observation for a sensor.
type SensorHealth struct {
	SensorID  string    `json:"sensor_id"`
	CheckedAt time.Time `json:"checked_at"`
	Status    string    `json:"status"`
	Notes     string    `json:"notes,omitempty"`
}

// YYYYMM returns the by-sensor-month partition key for t (UTC).
func YYYYMM(t time.Time) int {
	t = t.UTC()
	return t.Year()*100 + int(t.Month())
}

// YYYYMMDD returns the by-city-day partition key for t (UTC).
func YYYYMMDD(t time.Time) int {
	t = t.UTC()
	return t.Year()*10000 + int(t.Month())*100 + t.Day()
}

// ErrHumidityOutOfRange is returned when a humidity value cannot be
// normalized to [0,1].
type ErrHumidityOutOfRange struct {
	Value float64
}

func (e ErrHumidityOutOfRange) Error() string {
	return fmt.Sprintf("humidity %v outside normalizable range", e.Value)
}

// NormalizeHumidity maps a raw humidity value to a ratio in [0,1].
// Values already in [0,1] pass through, values in (1,100] are treated
// as percentages. Anything else is invalid.
func NormalizeHumidity(h float64) (float64, error) {
	switch {
	case h >= 0 && h <= 1:
		return h, nil
	case h > 1 && h <= 100:
		return h / 100, nil
	default:
		return 0, ErrHumidityOutOfRange{Value: h}
	}
}

// Float64Ptr returns a pointer to v.
func Float64Ptr(v float64) *float64 {
	return &v
}
