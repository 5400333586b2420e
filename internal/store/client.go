package store

import (
	"database/sql"
	"errors"
	"fmt"
	"log"
	"time"

	_ "github.com/lib/pq"

	"github.com/climsense/climate-logger/internal/types"
)

// ErrPartialWrite marks a measurement that landed in the by-sensor-month
// view but failed to land in the by-city-day view. The two views are
// divergent for that reading until reconciled out-of-band.
var ErrPartialWrite = errors.New("measurement written to by-sensor view only")

// Client manages measurement storage across the denormalized views
type Client struct {
	db *sql.DB
}

// New creates a new store client
func New(connStr string) (*Client, error) {
	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, err
	}
	return &Client{db: db}, nil
}

// Close closes the database connection
func (c *Client) Close() error {
	return c.db.Close()
}

// UpsertSensor writes sensor metadata keyed by sensor_id. Repeating the
// call with the same sensor is a no-op beyond refreshing the attributes.
func (c *Client) UpsertSensor(sensor *types.Sensor) error {
	query := `
		INSERT INTO sensors (
			sensor_id, name, type, lat, lon, city, country, status, started_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (sensor_id) DO UPDATE SET
			name = EXCLUDED.name, type = EXCLUDED.type,
			lat = EXCLUDED.lat, lon = EXCLUDED.lon,
			city = EXCLUDED.city, country = EXCLUDED.country,
			status = EXCLUDED.status, started_at = EXCLUDED.started_at
	`
	_, err := c.db.Exec(query,
		sensor.SensorID, sensor.Name, sensor.Type, sensor.Latitude, sensor.Longitude,
		sensor.City, sensor.Country, sensor.Status, sensor.StartedAt.UTC(),
	)
	return err
}

// InsertMeasurement writes one reading into both denormalized views.
// Temperature and humidity are each optional; an out-of-range humidity
// value drops that channel and the rest of the reading still lands.
// The two writes are not atomic: a failure of the second write returns
// an error wrapping ErrPartialWrite and leaves an orphan row in the
// by-sensor view.
func (c *Client) InsertMeasurement(sensorID string, ts time.Time, temperature, humidity *float64, city, country string) error {
	ts = ts.UTC()

	if humidity != nil {
		h, err := types.NormalizeHumidity(*humidity)
		if err != nil {
			log.Printf("Dropping humidity channel for sensor %s: %v", sensorID, err)
			humidity = nil
		} else {
			humidity = &h
		}
	}

	// Writes land on the full partition+clustering key, so retrying an
	// ingestion (including the repair path after a partial write) is safe.
	_, err := c.db.Exec(`
		INSERT INTO measurements_by_sensor_month (sensor_id, yyyymm, ts, temperature, humidity)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (sensor_id, yyyymm, ts) DO UPDATE SET
			temperature = EXCLUDED.temperature, humidity = EXCLUDED.humidity
	`, sensorID, types.YYYYMM(ts), ts, temperature, humidity)
	if err != nil {
		return fmt.Errorf("failed to write by-sensor view: %w", err)
	}

	_, err = c.db.Exec(`
		INSERT INTO measurements_by_city_day (country, city, yyyymmdd, ts, sensor_id, temperature, humidity)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (country, city, yyyymmdd, ts, sensor_id) DO UPDATE SET
			temperature = EXCLUDED.temperature, humidity = EXCLUDED.humidity
	`, country, city, types.YYYYMMDD(ts), ts, sensorID, temperature, humidity)
	if err != nil {
		log.Printf("DIVERGENCE: by-city write failed for sensor %s at %s after by-sensor write succeeded: %v",
			sensorID, ts.Format(time.RFC3339), err)
		return fmt.Errorf("failed to write by-city view for sensor %s at %s: %w: %w",
			sensorID, ts.Format(time.RFC3339), ErrPartialWrite, err)
	}

	return nil
}

// monthKeys returns every yyyymm partition key touched by [start, end],
// in ascending order. It walks month-by-month from start's first-of-month
// until the cursor passes end.
func monthKeys(start, end time.Time) []int {
	start, end = start.UTC(), end.UTC()

	var keys []int
	cursor := time.Date(start.Year(), start.Month(), 1, 0, 0, 0, 0, time.UTC)
	for !cursor.After(end) {
		keys = append(keys, types.YYYYMM(cursor))
		cursor = cursor.AddDate(0, 1, 0)
	}
	return keys
}

// QueryRange returns the time-ordered readings for one sensor in
// [start, end]. The by-sensor view is partitioned by calendar month, so
// the range is stitched from one sub-query per touched partition,
// visited in ascending month order; each partition is already clustered
// by timestamp, so concatenation preserves the overall order.
func (c *Client) QueryRange(sensorID string, start, end time.Time) ([]types.Measurement, error) {
	start, end = start.UTC(), end.UTC()

	var result []types.Measurement
	for _, key := range monthKeys(start, end) {
		rows, err := c.db.Query(`
			SELECT ts, temperature, humidity
			FROM measurements_by_sensor_month
			WHERE sensor_id = $1 AND yyyymm = $2 AND ts >= $3 AND ts <= $4
			ORDER BY ts ASC
		`, sensorID, key, start, end)
		if err != nil {
			return nil, fmt.Errorf("failed to query partition %d: %w", key, err)
		}

		for rows.Next() {
			m := types.Measurement{SensorID: sensorID}
			var temp, hum sql.NullFloat64
			if err := rows.Scan(&m.Timestamp, &temp, &hum); err != nil {
				rows.Close()
				return nil, err
			}
			if temp.Valid {
				m.Temperature = &temp.Float64
			}
			if hum.Valid {
				m.Humidity = &hum.Float64
			}
			m.Timestamp = m.Timestamp.UTC()
			result = append(result, m)
		}
		if err := rows.Err(); err != nil {
			rows.Close()
			return nil, err
		}
		rows.Close()
	}
	return result, nil
}

// ListSensors retrieves all registered sensors
func (c *Client) ListSensors() ([]*types.Sensor, error) {
	rows, err := c.db.Query(`
		SELECT sensor_id, name, type, lat, lon, city, country, status, started_at
		FROM sensors
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sensors []*types.Sensor
	for rows.Next() {
		var s types.Sensor
		if err := rows.Scan(
			&s.SensorID, &s.Name, &s.Type, &s.Latitude, &s.Longitude,
			&s.City, &s.Country, &s.Status, &s.StartedAt,
		); err != nil {
			return nil, err
		}
		sensors = append(sensors, &s)
	}
	return sensors, rows.Err()
}

// LastMeasurement returns the most recent reading for a sensor, or nil
// if the sensor has never reported.
func (c *Client) LastMeasurement(sensorID string) (*types.Measurement, error) {
	row := c.db.QueryRow(`
		SELECT ts, temperature, humidity
		FROM measurements_by_sensor_month
		WHERE sensor_id = $1
		ORDER BY yyyymm DESC, ts DESC
		LIMIT 1
	`, sensorID)

	m := types.Measurement{SensorID: sensorID}
	var temp, hum sql.NullFloat64
	if err := row.Scan(&m.Timestamp, &temp, &hum); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	if temp.Valid {
		m.Temperature = &temp.Float64
	}
	if hum.Valid {
		m.Humidity = &hum.Float64
	}
	m.Timestamp = m.Timestamp.UTC()
	return &m, nil
}

// RecentMeasurements returns all readings with a timestamp at or after
// since, across every city, ordered by timestamp.
func (c *Client) RecentMeasurements(since time.Time) ([]types.Measurement, error) {
	rows, err := c.db.Query(`
		SELECT country, city, ts, sensor_id, temperature, humidity
		FROM measurements_by_city_day
		WHERE ts >= $1
		ORDER BY ts ASC
	`, since.UTC())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []types.Measurement
	for rows.Next() {
		var m types.Measurement
		var temp, hum sql.NullFloat64
		if err := rows.Scan(&m.Country, &m.City, &m.Timestamp, &m.SensorID, &temp, &hum); err != nil {
			return nil, err
		}
		if temp.Valid {
			m.Temperature = &temp.Float64
		}
		if hum.Valid {
			m.Humidity = &hum.Float64
		}
		m.Timestamp = m.Timestamp.UTC()
		result = append(result, m)
	}
	return result, rows.Err()
}

// RecordSensorHealth appends one health-check observation
func (c *Client) RecordSensorHealth(h *types.SensorHealth) error {
	_, err := c.db.Exec(`
		INSERT INTO sensor_health (sensor_id, checked_at, status, notes)
		VALUES ($1, $2, $3, $4)
	`, h.SensorID, h.CheckedAt.UTC(), h.Status, h.Notes)
	return err
}

// InsertAlerts appends alert records to the alerts relation
func (c *Client) InsertAlerts(alerts []*types.Alert) error {
	for _, a := range alerts {
		_, err := c.db.Exec(`
			INSERT INTO alerts (
				alert_id, type, subtype, sensor_id, country, city,
				value, threshold_min, threshold_max, description, status, created_at
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		`, a.AlertID, a.Type, a.Subtype, a.SensorID, a.Country, a.City,
			a.Value, a.ThresholdMin, a.ThresholdMax, a.Description, a.Status, a.CreatedAt.UTC())
		if err != nil {
			return fmt.Errorf("failed to insert alert %s: %w", a.AlertID, err)
		}
	}
	return nil
}
