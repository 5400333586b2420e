// Package rollup drives daily rollups across calendar months and
// reduces them into monthly reports.
package rollup

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/climsense/climate-logger/internal/types"
)

const (
	ProcessExtremes = "proc_temp_max_min"
	ProcessAverages = "proc_temp_hum_avg"
)

// Store is the measurement-store surface the reducers need
type Store interface {
	RollupDay(country, city string, day int) (*types.DailyCityStats, error)
	MonthlyAverages(country, city string, yyyymm int) (*types.MonthAggregates, error)
}

// Tracker records report requests and executions; its failures
// propagate because the audit trail must not be lost.
type Tracker interface {
	CreateRequest(userID, processID string, params map[string]interface{}) (string, error)
	RecordExecution(requestID string, ok bool, resultLocation string, meteredUnits int, notes string) (string, error)
}

// Meter counts billable report units. Best-effort: failures are logged
// and never abort the owning report.
type Meter interface {
	IncrementUsage(ctx context.Context, userID, periodKey string, units int64) error
}

// NoDataError reports that a requested range held no qualifying
// samples. It is a normal outcome, distinct from infrastructure
// failure, and carries the range so the caller can tell the two apart.
type NoDataError struct {
	Country string
	City    string
	Year    int
	Month   time.Month
}

func (e NoDataError) Error() string {
	return fmt.Sprintf("no data in range %d-%02d for %s/%s", e.Year, e.Month, e.Country, e.City)
}

// ExtremesReport is the month-level min/max reduction over daily rollups
type ExtremesReport struct {
	RequestID    string   `json:"request_id"`
	ExecutionID  string   `json:"execution_id"`
	Country      string   `json:"country"`
	City         string   `json:"city"`
	Year         int      `json:"year"`
	Month        int      `json:"month"`
	TempMin      *float64 `json:"temp_min,omitempty"`
	TempMax      *float64 `json:"temp_max,omitempty"`
	DaysWithData int      `json:"days_with_data"`
}

// AveragesReport is the month-wide channel averages
type AveragesReport struct {
	RequestID   string   `json:"request_id"`
	ExecutionID string   `json:"execution_id"`
	Country     string   `json:"country"`
	City        string   `json:"city"`
	Year        int      `json:"year"`
	Month       int      `json:"month"`
	TempAvg     *float64 `json:"temp_avg,omitempty"`
	TempSamples int      `json:"temp_samples"`
	HumAvg      *float64 `json:"hum_avg,omitempty"`
	HumSamples  int      `json:"hum_samples"`
}

// Engine reduces daily rollups into monthly reports
type Engine struct {
	store    Store
	tracking Tracker
	meter    Meter
}

// NewEngine creates a new report engine. meter may be nil when no usage
// accounting is wired.
func NewEngine(store Store, tracking Tracker, meter Meter) *Engine {
	return &Engine{store: store, tracking: tracking, meter: meter}
}

// daysIn returns the number of calendar days in a month. The zeroth day
// of the following month normalizes to this month's last day.
func daysIn(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

func reportParams(country, city string, year int, month time.Month, granularity string) map[string]interface{} {
	return map[string]interface{}{
		"country":     country,
		"city":        city,
		"from":        fmt.Sprintf("%04d-%02d-01", year, month),
		"to":          fmt.Sprintf("%04d-%02d-%02d", year, month, daysIn(year, month)),
		"granularity": granularity,
	}
}

func (e *Engine) meterUsage(ctx context.Context, userID string, year int, month time.Month, units int64) {
	if e.meter == nil {
		return
	}
	periodKey := fmt.Sprintf("%04d%02d", year, month)
	if err := e.meter.IncrementUsage(ctx, userID, periodKey, units); err != nil {
		log.Printf("Warning: failed to meter %d units for user %s: %v", units, userID, err)
	}
}

// BuildMonthlyExtremesReport rolls up every day of the month and
// reduces the daily rows to month-level temperature extremes. The
// report fails with NoDataError only when no day at all produced a
// rollup row; a day with humidity-only data still counts as a
// contributing day even though it adds nothing to the extremes. (The
// averages report applies a different no-data rule; the two are
// deliberately not unified.)
func (e *Engine) BuildMonthlyExtremesReport(ctx context.Context, userID, country, city string, year int, month time.Month) (*ExtremesReport, error) {
	requestID, err := e.tracking.CreateRequest(userID, ProcessExtremes,
		reportParams(country, city, year, month, "monthly"))
	if err != nil {
		return nil, err
	}

	var daily []*types.DailyCityStats
	for day := 1; day <= daysIn(year, month); day++ {
		dayKey := year*10000 + int(month)*100 + day
		stats, err := e.store.RollupDay(country, city, dayKey)
		if err != nil {
			if _, rerr := e.tracking.RecordExecution(requestID, false, "", 0, err.Error()); rerr != nil {
				log.Printf("Warning: failed to record failed execution for %s: %v", requestID, rerr)
			}
			return nil, fmt.Errorf("rollup failed for day %d: %w", dayKey, err)
		}
		if stats != nil {
			daily = append(daily, stats)
		}
	}

	if len(daily) == 0 {
		if _, err := e.tracking.RecordExecution(requestID, false, "", 0, "no data in range"); err != nil {
			return nil, err
		}
		return nil, NoDataError{Country: country, City: city, Year: year, Month: month}
	}

	report := &ExtremesReport{
		RequestID:    requestID,
		Country:      country,
		City:         city,
		Year:         year,
		Month:        int(month),
		DaysWithData: len(daily),
	}
	for _, d := range daily {
		if d.TempMax != nil && (report.TempMax == nil || *d.TempMax > *report.TempMax) {
			report.TempMax = d.TempMax
		}
		if d.TempMin != nil && (report.TempMin == nil || *d.TempMin < *report.TempMin) {
			report.TempMin = d.TempMin
		}
	}

	executionID, err := e.tracking.RecordExecution(requestID, true, "", len(daily), "")
	if err != nil {
		return nil, err
	}
	report.ExecutionID = executionID

	e.meterUsage(ctx, userID, year, month, int64(len(daily)))

	return report, nil
}

// BuildMonthlyAveragesReport computes month-wide temperature and
// humidity averages in a single query over the raw readings. It fails
// with NoDataError only when BOTH channel sample counts are zero, so a
// month of temperature-only sensors still succeeds with HumSamples=0.
func (e *Engine) BuildMonthlyAveragesReport(ctx context.Context, userID, country, city string, year int, month time.Month) (*AveragesReport, error) {
	requestID, err := e.tracking.CreateRequest(userID, ProcessAverages,
		reportParams(country, city, year, month, "monthly"))
	if err != nil {
		return nil, err
	}

	agg, err := e.store.MonthlyAverages(country, city, year*100+int(month))
	if err != nil {
		if _, rerr := e.tracking.RecordExecution(requestID, false, "", 0, err.Error()); rerr != nil {
			log.Printf("Warning: failed to record failed execution for %s: %v", requestID, rerr)
		}
		return nil, err
	}

	if agg.TempSamples == 0 && agg.HumSamples == 0 {
		if _, err := e.tracking.RecordExecution(requestID, false, "", 0, "no data in range"); err != nil {
			return nil, err
		}
		return nil, NoDataError{Country: country, City: city, Year: year, Month: month}
	}

	units := agg.TempSamples + agg.HumSamples
	executionID, err := e.tracking.RecordExecution(requestID, true, "", units, "")
	if err != nil {
		return nil, err
	}

	e.meterUsage(ctx, userID, year, month, int64(units))

	return &AveragesReport{
		RequestID:   requestID,
		ExecutionID: executionID,
		Country:     country,
		City:        city,
		Year:        year,
		Month:       int(month),
		TempAvg:     agg.TempAvg,
		TempSamples: agg.TempSamples,
		HumAvg:      agg.HumAvg,
		HumSamples:  agg.HumSamples,
	}, nil
}
