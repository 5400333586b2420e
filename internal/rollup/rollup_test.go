package rollup

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/climsense/climate-logger/internal/types"
)

type fakeStore struct {
	daily       map[int]*types.DailyCityStats
	rollupErr   error
	rollupCalls []int

	aggregates *types.MonthAggregates
	aggErr     error
}

func (s *fakeStore) RollupDay(country, city string, day int) (*types.DailyCityStats, error) {
	s.rollupCalls = append(s.rollupCalls, day)
	if s.rollupErr != nil {
		return nil, s.rollupErr
	}
	return s.daily[day], nil
}

func (s *fakeStore) MonthlyAverages(country, city string, yyyymm int) (*types.MonthAggregates, error) {
	if s.aggErr != nil {
		return nil, s.aggErr
	}
	return s.aggregates, nil
}

type fakeTracker struct {
	createErr error
	recordErr error

	requests   int
	executions []struct {
		ok    bool
		units int
		notes string
	}
}

func (t *fakeTracker) CreateRequest(userID, processID string, params map[string]interface{}) (string, error) {
	if t.createErr != nil {
		return "", t.createErr
	}
	t.requests++
	return fmt.Sprintf("req_%d", t.requests), nil
}

func (t *fakeTracker) RecordExecution(requestID string, ok bool, resultLocation string, meteredUnits int, notes string) (string, error) {
	if t.recordErr != nil {
		return "", t.recordErr
	}
	t.executions = append(t.executions, struct {
		ok    bool
		units int
		notes string
	}{ok, meteredUnits, notes})
	return "exec_1", nil
}

type fakeMeter struct {
	err   error
	calls int
	units int64
}

func (m *fakeMeter) IncrementUsage(ctx context.Context, userID, periodKey string, units int64) error {
	m.calls++
	m.units += units
	return m.err
}

func f(v float64) *float64 { return &v }

func dayStats(day int, tempMin, tempMax *float64) *types.DailyCityStats {
	return &types.DailyCityStats{
		Country: "AR", City: "Buenos Aires", Day: day,
		TempMin: tempMin, TempMax: tempMax, Samples: 1,
	}
}

func TestDaysIn(t *testing.T) {
	tests := []struct {
		year  int
		month time.Month
		want  int
	}{
		{2025, time.February, 28},
		{2024, time.February, 29},
		{2000, time.February, 29},
		{1900, time.February, 28},
		{2025, time.January, 31},
		{2025, time.April, 30},
		{2025, time.December, 31},
	}
	for _, tt := range tests {
		if got := daysIn(tt.year, tt.month); got != tt.want {
			t.Errorf("daysIn(%d, %v) = %d, want %d", tt.year, tt.month, got, tt.want)
		}
	}
}

func TestExtremesReport_IteratesCalendarDays(t *testing.T) {
	tests := []struct {
		name     string
		year     int
		month    time.Month
		wantDays int
	}{
		{name: "non-leap February", year: 2025, month: time.February, wantDays: 28},
		{name: "leap February", year: 2024, month: time.February, wantDays: 29},
		{name: "October", year: 2025, month: time.October, wantDays: 31},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := &fakeStore{daily: map[int]*types.DailyCityStats{
				tt.year*10000 + int(tt.month)*100 + 1: dayStats(1, f(10), f(20)),
			}}
			engine := NewEngine(store, &fakeTracker{}, nil)

			_, err := engine.BuildMonthlyExtremesReport(context.Background(),
				"usr_1", "AR", "Buenos Aires", tt.year, tt.month)
			if err != nil {
				t.Fatalf("Report failed: %v", err)
			}
			if len(store.rollupCalls) != tt.wantDays {
				t.Errorf("Rolled up %d days, want %d", len(store.rollupCalls), tt.wantDays)
			}
		})
	}
}

func TestExtremesReport_ReducesOverDaysWithData(t *testing.T) {
	store := &fakeStore{daily: map[int]*types.DailyCityStats{
		20251003: dayStats(20251003, f(5.0), f(30.0)),
		20251010: dayStats(20251010, f(-2.0), f(18.0)),
		20251020: dayStats(20251020, f(8.0), f(46.0)),
	}}
	tracker := &fakeTracker{}
	meter := &fakeMeter{}
	engine := NewEngine(store, tracker, meter)

	report, err := engine.BuildMonthlyExtremesReport(context.Background(),
		"usr_1", "AR", "Buenos Aires", 2025, time.October)
	if err != nil {
		t.Fatalf("Report failed: %v", err)
	}

	if *report.TempMin != -2.0 {
		t.Errorf("TempMin = %v, want -2.0", *report.TempMin)
	}
	if *report.TempMax != 46.0 {
		t.Errorf("TempMax = %v, want 46.0", *report.TempMax)
	}
	if report.DaysWithData != 3 {
		t.Errorf("DaysWithData = %d, want 3 (contributing days, not calendar days)", report.DaysWithData)
	}
	if len(tracker.executions) != 1 || !tracker.executions[0].ok || tracker.executions[0].units != 3 {
		t.Errorf("Unexpected execution record: %+v", tracker.executions)
	}
	if meter.calls != 1 || meter.units != 3 {
		t.Errorf("Metered %d units in %d calls, want 3 in 1", meter.units, meter.calls)
	}
}

func TestExtremesReport_NoData(t *testing.T) {
	store := &fakeStore{daily: map[int]*types.DailyCityStats{}}
	tracker := &fakeTracker{}
	engine := NewEngine(store, tracker, nil)

	_, err := engine.BuildMonthlyExtremesReport(context.Background(),
		"usr_1", "AR", "Buenos Aires", 2025, time.October)

	var noData NoDataError
	if !errors.As(err, &noData) {
		t.Fatalf("Expected NoDataError, got: %v", err)
	}
	if noData.City != "Buenos Aires" || noData.Year != 2025 || noData.Month != time.October {
		t.Errorf("NoDataError should carry the requested range: %+v", noData)
	}
	if len(tracker.executions) != 1 || tracker.executions[0].ok {
		t.Errorf("Failure should still be recorded: %+v", tracker.executions)
	}
}

func TestExtremesReport_HumidityOnlyDayCountsAsData(t *testing.T) {
	// A day whose rollup carries only humidity still makes the month
	// report succeed, even though it contributes nothing to the
	// temperature extremes.
	store := &fakeStore{daily: map[int]*types.DailyCityStats{
		20251005: {Country: "AR", City: "Buenos Aires", Day: 20251005,
			HumMin: f(0.4), HumMax: f(0.6), HumAvg: f(0.5), Samples: 2},
	}}
	engine := NewEngine(store, &fakeTracker{}, nil)

	report, err := engine.BuildMonthlyExtremesReport(context.Background(),
		"usr_1", "AR", "Buenos Aires", 2025, time.October)
	if err != nil {
		t.Fatalf("Report failed: %v", err)
	}
	if report.DaysWithData != 1 {
		t.Errorf("DaysWithData = %d, want 1", report.DaysWithData)
	}
	if report.TempMin != nil || report.TempMax != nil {
		t.Errorf("Extremes should be absent without temperature data: %+v", report)
	}
}

func TestExtremesReport_TrackingFailures(t *testing.T) {
	t.Run("request creation failure propagates before any rollup", func(t *testing.T) {
		store := &fakeStore{}
		tracker := &fakeTracker{createErr: errors.New("tracking down")}
		engine := NewEngine(store, tracker, nil)

		_, err := engine.BuildMonthlyExtremesReport(context.Background(),
			"usr_1", "AR", "Buenos Aires", 2025, time.October)
		if err == nil {
			t.Fatal("Expected error")
		}
		if len(store.rollupCalls) != 0 {
			t.Errorf("No rollup should run without a request record")
		}
	})

	t.Run("execution record failure propagates", func(t *testing.T) {
		store := &fakeStore{daily: map[int]*types.DailyCityStats{
			20251001: dayStats(20251001, f(1), f(2)),
		}}
		tracker := &fakeTracker{recordErr: errors.New("tracking down")}
		engine := NewEngine(store, tracker, nil)

		_, err := engine.BuildMonthlyExtremesReport(context.Background(),
			"usr_1", "AR", "Buenos Aires", 2025, time.October)
		if err == nil {
			t.Fatal("Expected error when execution cannot be recorded")
		}
	})
}

func TestExtremesReport_MeteringFailureIsSwallowed(t *testing.T) {
	store := &fakeStore{daily: map[int]*types.DailyCityStats{
		20251001: dayStats(20251001, f(1), f(2)),
	}}
	meter := &fakeMeter{err: errors.New("redis down")}
	engine := NewEngine(store, &fakeTracker{}, meter)

	report, err := engine.BuildMonthlyExtremesReport(context.Background(),
		"usr_1", "AR", "Buenos Aires", 2025, time.October)
	if err != nil {
		t.Fatalf("Metering failure must not abort the report: %v", err)
	}
	if report == nil || report.DaysWithData != 1 {
		t.Errorf("Unexpected report: %+v", report)
	}
}

func TestAveragesReport_Success(t *testing.T) {
	store := &fakeStore{aggregates: &types.MonthAggregates{
		TempAvg: f(23.5), TempSamples: 120,
		HumAvg: f(0.55), HumSamples: 80,
	}}
	tracker := &fakeTracker{}
	meter := &fakeMeter{}
	engine := NewEngine(store, tracker, meter)

	report, err := engine.BuildMonthlyAveragesReport(context.Background(),
		"usr_1", "AR", "Buenos Aires", 2025, time.October)
	if err != nil {
		t.Fatalf("Report failed: %v", err)
	}
	if *report.TempAvg != 23.5 || report.TempSamples != 120 {
		t.Errorf("Unexpected temperature aggregates: %+v", report)
	}
	if tracker.executions[0].units != 200 {
		t.Errorf("Metered units = %d, want 200", tracker.executions[0].units)
	}
	if meter.units != 200 {
		t.Errorf("Usage units = %d, want 200", meter.units)
	}
}

func TestAveragesReport_TemperatureOnlyMonthSucceeds(t *testing.T) {
	store := &fakeStore{aggregates: &types.MonthAggregates{
		TempAvg: f(18.0), TempSamples: 50,
	}}
	engine := NewEngine(store, &fakeTracker{}, nil)

	report, err := engine.BuildMonthlyAveragesReport(context.Background(),
		"usr_1", "AR", "Buenos Aires", 2025, time.October)
	if err != nil {
		t.Fatalf("Temperature-only month must succeed: %v", err)
	}
	if report.HumSamples != 0 {
		t.Errorf("HumSamples = %d, want 0", report.HumSamples)
	}
	if report.TempAvg == nil || *report.TempAvg != 18.0 {
		t.Errorf("TempAvg = %v, want 18.0", report.TempAvg)
	}
}

func TestAveragesReport_NoData(t *testing.T) {
	// Unlike the extremes report, the averages report fails only when
	// BOTH channels have zero samples month-wide.
	store := &fakeStore{aggregates: &types.MonthAggregates{}}
	tracker := &fakeTracker{}
	engine := NewEngine(store, tracker, nil)

	_, err := engine.BuildMonthlyAveragesReport(context.Background(),
		"usr_1", "AR", "Buenos Aires", 2025, time.October)

	var noData NoDataError
	if !errors.As(err, &noData) {
		t.Fatalf("Expected NoDataError, got: %v", err)
	}
	if len(tracker.executions) != 1 || tracker.executions[0].ok {
		t.Errorf("Failure should still be recorded: %+v", tracker.executions)
	}
}

func TestExtremesReport_RollupErrorRecordsFailure(t *testing.T) {
	store := &fakeStore{rollupErr: errors.New("connection lost")}
	tracker := &fakeTracker{}
	engine := NewEngine(store, tracker, nil)

	_, err := engine.BuildMonthlyExtremesReport(context.Background(),
		"usr_1", "AR", "Buenos Aires", 2025, time.October)
	if err == nil {
		t.Fatal("Expected infrastructure error to propagate")
	}
	var noData NoDataError
	if errors.As(err, &noData) {
		t.Error("Infrastructure failure must not be reported as no-data")
	}
	if len(tracker.executions) != 1 || tracker.executions[0].ok {
		t.Errorf("Failed execution should be recorded: %+v", tracker.executions)
	}
}
