// Package alerts runs threshold checks against stored readings and
// sensor metadata. Checks are read-only and append-only: nothing here
// deduplicates against previously emitted alerts, so re-running a check
// while a condition persists emits the alert again.
package alerts

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/climsense/climate-logger/internal/types"
)

const (
	InactivityLimit = 6 * time.Hour

	TempAlertMax = 45.0
	TempAlertMin = -10.0

	// Defaults for the humidity band, in percent
	DefaultHumAlertMin = 10.0
	DefaultHumAlertMax = 85.0
)

// Store is the read surface the checks scan
type Store interface {
	ListSensors() ([]*types.Sensor, error)
	LastMeasurement(sensorID string) (*types.Measurement, error)
	RecentMeasurements(since time.Time) ([]types.Measurement, error)
	RecordSensorHealth(h *types.SensorHealth) error
}

// Sink persists emitted alert records
type Sink interface {
	InsertAlerts(alerts []*types.Alert) error
}

// Queue ranks and streams emitted alerts for consumers. Best-effort:
// queue failures are logged, the persisted alerts stand.
type Queue interface {
	PushAlert(ctx context.Context, alert *types.Alert) error
}

// Engine runs the threshold checks
type Engine struct {
	store Store
	sink  Sink
	queue Queue

	humMin float64 // percent
	humMax float64 // percent
}

// NewEngine creates a new alert engine. queue may be nil when no alert
// queue is wired. humMin/humMax configure the humidity band in percent;
// an empty band (humMin >= humMax, including the zero values) falls back
// to the defaults.
func NewEngine(store Store, sink Sink, queue Queue, humMin, humMax float64) *Engine {
	if humMin >= humMax {
		humMin, humMax = DefaultHumAlertMin, DefaultHumAlertMax
	}
	return &Engine{store: store, sink: sink, queue: queue, humMin: humMin, humMax: humMax}
}

func (e *Engine) emit(ctx context.Context, alerts []*types.Alert) error {
	if len(alerts) == 0 {
		return nil
	}
	if err := e.sink.InsertAlerts(alerts); err != nil {
		return fmt.Errorf("failed to persist alerts: %w", err)
	}
	if e.queue != nil {
		for _, a := range alerts {
			if err := e.queue.PushAlert(ctx, a); err != nil {
				log.Printf("Warning: failed to enqueue alert %s: %v", a.AlertID, err)
			}
		}
	}
	return nil
}

// CheckInactivity flags every sensor whose most recent reading is older
// than the inactivity limit relative to now, or that never reported at
// all. Stored timestamps are treated as UTC instants. One sensor_health
// observation is recorded per sensor per run.
func (e *Engine) CheckInactivity(ctx context.Context, now time.Time) ([]*types.Alert, int, error) {
	sensors, err := e.store.ListSensors()
	if err != nil {
		return nil, 0, err
	}
	now = now.UTC()

	var alerts []*types.Alert
	for _, s := range sensors {
		last, err := e.store.LastMeasurement(s.SensorID)
		if err != nil {
			return nil, 0, err
		}

		lastSeen := "unknown"
		inactive := true
		if last != nil {
			ts := last.Timestamp.UTC()
			lastSeen = ts.Format(time.RFC3339)
			inactive = now.Sub(ts) > InactivityLimit
		}

		health := &types.SensorHealth{
			SensorID:  s.SensorID,
			CheckedAt: now,
			Status:    "ok",
			Notes:     fmt.Sprintf("last seen %s", lastSeen),
		}
		if inactive {
			health.Status = types.SensorStatusInactive
			alerts = append(alerts, &types.Alert{
				AlertID:     "alr_" + uuid.New().String(),
				Type:        types.AlertTypeSensor,
				Subtype:     types.AlertSubtypeInactivity,
				SensorID:    s.SensorID,
				Country:     s.Country,
				City:        s.City,
				Description: fmt.Sprintf("Sensor %s inactive since %s", s.Name, lastSeen),
				Status:      types.AlertStatusActive,
				CreatedAt:   now,
			})
		}
		if err := e.store.RecordSensorHealth(health); err != nil {
			log.Printf("Warning: failed to record health for sensor %s: %v", s.SensorID, err)
		}
	}

	if err := e.emit(ctx, alerts); err != nil {
		return nil, 0, err
	}
	return alerts, len(alerts), nil
}

// CheckTemperatureBounds scans readings from the last hour and emits
// one climatic alert per reading whose temperature lies outside the
// fixed band. Older out-of-band readings are not scanned and produce
// nothing.
func (e *Engine) CheckTemperatureBounds(ctx context.Context, now time.Time) ([]*types.Alert, int, error) {
	now = now.UTC()
	readings, err := e.store.RecentMeasurements(now.Add(-1 * time.Hour))
	if err != nil {
		return nil, 0, err
	}

	var alerts []*types.Alert
	for _, r := range readings {
		if r.Temperature == nil {
			continue
		}
		t := *r.Temperature

		var desc string
		switch {
		case t > TempAlertMax:
			desc = fmt.Sprintf("Extreme high temperature (%.1f°C, %.1f above %.1f°C limit)",
				t, t-TempAlertMax, TempAlertMax)
		case t < TempAlertMin:
			desc = fmt.Sprintf("Extreme low temperature (%.1f°C, %.1f below %.1f°C limit)",
				t, TempAlertMin-t, TempAlertMin)
		default:
			continue
		}

		alerts = append(alerts, &types.Alert{
			AlertID:      "alr_" + uuid.New().String(),
			Type:         types.AlertTypeClimate,
			Subtype:      types.AlertSubtypeTemperature,
			SensorID:     r.SensorID,
			Country:      r.Country,
			City:         r.City,
			Value:        types.Float64Ptr(t),
			ThresholdMin: types.Float64Ptr(TempAlertMin),
			ThresholdMax: types.Float64Ptr(TempAlertMax),
			Description:  desc,
			Status:       types.AlertStatusActive,
			CreatedAt:    now,
		})
	}

	if err := e.emit(ctx, alerts); err != nil {
		return nil, 0, err
	}
	return alerts, len(alerts), nil
}

// CheckHumidityBounds inspects only the single most recent reading of
// every sensor and emits one alert per sensor whose normalized humidity
// falls outside the configured band.
func (e *Engine) CheckHumidityBounds(ctx context.Context, now time.Time) ([]*types.Alert, int, error) {
	sensors, err := e.store.ListSensors()
	if err != nil {
		return nil, 0, err
	}
	now = now.UTC()

	var alerts []*types.Alert
	for _, s := range sensors {
		last, err := e.store.LastMeasurement(s.SensorID)
		if err != nil {
			return nil, 0, err
		}
		if last == nil || last.Humidity == nil {
			continue
		}

		// Stored humidity is already a ratio, but re-normalize so a
		// value that slipped in as a percentage cannot skew the check.
		h, err := types.NormalizeHumidity(*last.Humidity)
		if err != nil {
			log.Printf("Skipping sensor %s: %v", s.SensorID, err)
			continue
		}
		pct := h * 100

		if pct >= e.humMin && pct <= e.humMax {
			continue
		}

		alerts = append(alerts, &types.Alert{
			AlertID:      "alr_" + uuid.New().String(),
			Type:         types.AlertTypeClimate,
			Subtype:      types.AlertSubtypeHumidity,
			SensorID:     s.SensorID,
			Country:      s.Country,
			City:         s.City,
			Value:        types.Float64Ptr(pct),
			ThresholdMin: types.Float64Ptr(e.humMin),
			ThresholdMax: types.Float64Ptr(e.humMax),
			Description: fmt.Sprintf("Humidity out of range: %.1f%% (band %.1f%%-%.1f%%)",
				pct, e.humMin, e.humMax),
			Status:    types.AlertStatusActive,
			CreatedAt: now,
		})
	}

	if err := e.emit(ctx, alerts); err != nil {
		return nil, 0, err
	}
	return alerts, len(alerts), nil
}
