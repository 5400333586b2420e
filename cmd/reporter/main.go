package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/climsense/climate-logger/internal/config"
	"github.com/climsense/climate-logger/internal/redisx"
	"github.com/climsense/climate-logger/internal/rollup"
	"github.com/climsense/climate-logger/internal/store"
	"github.com/climsense/climate-logger/internal/tracking"
)

func main() {
	report := flag.String("report", "extremes", "Report to build: extremes, averages or rollup")
	user := flag.String("user", "", "Requesting user id")
	country := flag.String("country", "", "Country code")
	city := flag.String("city", "", "City name")
	year := flag.Int("year", 0, "Report year")
	month := flag.Int("month", 0, "Report month (1-12)")
	day := flag.Int("day", 0, "Day of month, only for -report=rollup")
	flag.Parse()

	if err := runReporter(*report, *user, *country, *city, *year, *month, *day); err != nil {
		var noData rollup.NoDataError
		if errors.As(err, &noData) {
			log.Printf("Report produced no data: %v", noData)
			os.Exit(0)
		}
		log.Printf("Reporter failed: %v", err)
		os.Exit(1)
	}
}

func runReporter(report, user, country, city string, year, month, day int) error {
	if country == "" || city == "" || year == 0 || month < 1 || month > 12 {
		return fmt.Errorf("country, city, year and month are required")
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	st, err := store.New(cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to create store client: %w", err)
	}
	defer st.Close()

	if report == "rollup" {
		if day < 1 || day > 31 {
			return fmt.Errorf("day is required for -report=rollup")
		}
		stats, err := st.RollupDay(country, city, year*10000+month*100+day)
		if err != nil {
			return err
		}
		if stats == nil {
			log.Printf("No readings for %s/%s on %04d-%02d-%02d", country, city, year, month, day)
			return nil
		}
		return printJSON(stats)
	}

	trk, err := tracking.New(cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to create tracking client: %w", err)
	}
	defer trk.Close()

	// Metering is best-effort: without Redis the report still runs.
	var meter rollup.Meter
	if rds, err := redisx.New(cfg.RedisAddr); err != nil {
		log.Printf("Warning: usage metering disabled: %v", err)
	} else {
		defer rds.Close()
		meter = rds
	}

	engine := rollup.NewEngine(st, trk, meter)
	ctx := context.Background()

	switch report {
	case "extremes":
		out, err := engine.BuildMonthlyExtremesReport(ctx, user, country, city, year, time.Month(month))
		if err != nil {
			return err
		}
		return printJSON(out)
	case "averages":
		out, err := engine.BuildMonthlyAveragesReport(ctx, user, country, city, year, time.Month(month))
		if err != nil {
			return err
		}
		return printJSON(out)
	default:
		return fmt.Errorf("unknown report %q", report)
	}
}

func printJSON(v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(data))
	return nil
}
