package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/climsense/climate-logger/internal/alerts"
	"github.com/climsense/climate-logger/internal/config"
	"github.com/climsense/climate-logger/internal/redisx"
	"github.com/climsense/climate-logger/internal/store"
	"github.com/climsense/climate-logger/internal/types"
)

func main() {
	check := flag.String("check", "all", "Check to run: all, inactivity, temperature or humidity")
	flag.Parse()

	if err := runAlerter(*check); err != nil {
		log.Printf("Alerter failed: %v", err)
		os.Exit(1)
	}
}

var checkNames = []string{"inactivity", "temperature", "humidity"}

func validCheck(check string) bool {
	if check == "all" {
		return true
	}
	for _, name := range checkNames {
		if check == name {
			return true
		}
	}
	return false
}

func runAlerter(check string) error {
	if !validCheck(check) {
		return fmt.Errorf("unknown check %q", check)
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

	// The alert queue is best-effort: without Redis the checks still
	// run and alerts still persist.
	var queue alerts.Queue
	if rds, err := redisx.New(cfg.RedisAddr); err != nil {
		log.Printf("Warning: alert queue disabled: %v", err)
	} else {
		defer rds.Close()
		queue = rds
	}

	engine := alerts.NewEngine(st, st, queue, cfg.HumAlertMin, cfg.HumAlertMax)
	ctx := context.Background()
	now := time.Now().UTC()

	checks := map[string]func(context.Context, time.Time) ([]*types.Alert, int, error){
		"inactivity":  engine.CheckInactivity,
		"temperature": engine.CheckTemperatureBounds,
		"humidity":    engine.CheckHumidityBounds,
	}

	names := checkNames
	if check != "all" {
		names = []string{check}
	}

	for _, name := range names {
		_, count, err := checks[name](ctx, now)
		if err != nil {
			return fmt.Errorf("%s check failed: %w", name, err)
		}
		log.Printf("%s check: %d alert(s) emitted", name, count)
	}
	return nil
}
