package store

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/climsense/climate-logger/internal/types"
)

// reduceDaily computes per-channel min/max/avg over the present samples
// of each channel. A channel with zero samples keeps all three of its
// statistics absent. Returns nil when both channels are empty.
func reduceDaily(country, city string, day int, temps, hums []float64) *types.DailyCityStats {
	if len(temps) == 0 && len(hums) == 0 {
		return nil
	}

	stats := &types.DailyCityStats{
		Country: country,
		City:    city,
		Day:     day,
		Samples: len(temps) + len(hums),
	}
	if len(temps) > 0 {
		min, max, avg := minMaxAvg(temps)
		stats.TempMin, stats.TempMax, stats.TempAvg = &min, &max, &avg
	}
	if len(hums) > 0 {
		min, max, avg := minMaxAvg(hums)
		stats.HumMin, stats.HumMax, stats.HumAvg = &min, &max, &avg
	}
	return stats
}

func minMaxAvg(samples []float64) (min, max, avg float64) {
	min, max = samples[0], samples[0]
	var sum float64
	for _, v := range samples {
		if v < min {
			min = v
		}
		if v > max {
			max = v
		}
		sum += v
	}
	return min, max, sum / float64(len(samples))
}

// RollupDay reduces one city-day's raw readings into daily statistics
// and overwrites the stored row. Returns nil with no write when the day
// has no samples on either channel. Repeating the call with no
// intervening writes stores the same row, so retries are safe.
func (c *Client) RollupDay(country, city string, day int) (*types.DailyCityStats, error) {
	rows, err := c.db.Query(`
		SELECT temperature, humidity
		FROM measurements_by_city_day
		WHERE country = $1 AND city = $2 AND yyyymmdd = $3
	`, country, city, day)
	if err != nil {
		return nil, fmt.Errorf("failed to read city-day partition %s/%s/%d: %w", country, city, day, err)
	}
	defer rows.Close()

	var temps, hums []float64
	for rows.Next() {
		var temp, hum sql.NullFloat64
		if err := rows.Scan(&temp, &hum); err != nil {
			return nil, err
		}
		if temp.Valid {
			temps = append(temps, temp.Float64)
		}
		if hum.Valid {
			hums = append(hums, hum.Float64)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	stats := reduceDaily(country, city, day, temps, hums)
	if stats == nil {
		return nil, nil
	}

	_, err = c.db.Exec(`
		INSERT INTO daily_city_stats (
			country, city, yyyymmdd,
			temp_min, temp_max, temp_avg, hum_min, hum_max, hum_avg, samples
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (country, city, yyyymmdd) DO UPDATE SET
			temp_min = EXCLUDED.temp_min, temp_max = EXCLUDED.temp_max, temp_avg = EXCLUDED.temp_avg,
			hum_min = EXCLUDED.hum_min, hum_max = EXCLUDED.hum_max, hum_avg = EXCLUDED.hum_avg,
			samples = EXCLUDED.samples
	`, country, city, day,
		stats.TempMin, stats.TempMax, stats.TempAvg,
		stats.HumMin, stats.HumMax, stats.HumAvg, stats.Samples)
	if err != nil {
		return nil, fmt.Errorf("failed to write daily stats for %s/%s/%d: %w", country, city, day, err)
	}
	return stats, nil
}

// GetDailyStats reads the stored rollup row for one city-day, or nil if
// none exists.
func (c *Client) GetDailyStats(country, city string, day int) (*types.DailyCityStats, error) {
	row := c.db.QueryRow(`
		SELECT temp_min, temp_max, temp_avg, hum_min, hum_max, hum_avg, samples
		FROM daily_city_stats
		WHERE country = $1 AND city = $2 AND yyyymmdd = $3
	`, country, city, day)

	stats := types.DailyCityStats{Country: country, City: city, Day: day}
	var tMin, tMax, tAvg, hMin, hMax, hAvg sql.NullFloat64
	if err := row.Scan(&tMin, &tMax, &tAvg, &hMin, &hMax, &hAvg, &stats.Samples); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	if tMin.Valid {
		stats.TempMin = &tMin.Float64
	}
	if tMax.Valid {
		stats.TempMax = &tMax.Float64
	}
	if tAvg.Valid {
		stats.TempAvg = &tAvg.Float64
	}
	if hMin.Valid {
		stats.HumMin = &hMin.Float64
	}
	if hMax.Valid {
		stats.HumMax = &hMax.Float64
	}
	if hAvg.Valid {
		stats.HumAvg = &hAvg.Float64
	}
	return &stats, nil
}

// MonthlyAverages computes month-wide channel averages and sample
// counts for one city in a single query over the raw readings. The
// yyyymm key selects every city-day partition of that month.
func (c *Client) MonthlyAverages(country, city string, yyyymm int) (*types.MonthAggregates, error) {
	row := c.db.QueryRow(`
		SELECT AVG(temperature), COUNT(temperature), AVG(humidity), COUNT(humidity)
		FROM measurements_by_city_day
		WHERE country = $1 AND city = $2 AND yyyymmdd BETWEEN $3 AND $4
	`, country, city, yyyymm*100+1, yyyymm*100+31)

	var agg types.MonthAggregates
	var tAvg, hAvg sql.NullFloat64
	if err := row.Scan(&tAvg, &agg.TempSamples, &hAvg, &agg.HumSamples); err != nil {
		return nil, fmt.Errorf("failed to aggregate month %d for %s/%s: %w", yyyymm, country, city, err)
	}
	if tAvg.Valid {
		agg.TempAvg = &tAvg.Float64
	}
	if hAvg.Valid {
		agg.HumAvg = &hAvg.Float64
	}
	return &agg, nil
}
