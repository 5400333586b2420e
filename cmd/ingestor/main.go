package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/climsense/climate-logger/internal/config"
	"github.com/climsense/climate-logger/internal/natsx"
	"github.com/climsense/climate-logger/internal/redisx"
	"github.com/climsense/climate-logger/internal/store"
	"github.com/climsense/climate-logger/internal/types"
)

// StoreClient interface for testability
type StoreClient interface {
	InsertMeasurement(sensorID string, ts time.Time, temperature, humidity *float64, city, country string) error
	Close() error
}

// CacheClient interface for testability
type CacheClient interface {
	StoreLastReading(ctx context.Context, m *types.Measurement) error
	Close() error
}

// Ingestor consumes readings off the broker and lands them in both
// denormalized views, caching each accepted reading as the sensor's
// latest.
type Ingestor struct {
	store StoreClient
	cache CacheClient
}

// NewIngestor creates a new ingestor
func NewIngestor(store StoreClient, cache CacheClient) *Ingestor {
	return &Ingestor{store: store, cache: cache}
}

// Process validates and stores one reading
func (i *Ingestor) Process(ctx context.Context, r *types.Reading) error {
	if r.SensorID == "" || r.City == "" || r.Country == "" {
		return fmt.Errorf("reading missing sensor or location identity: %+v", r)
	}
	if r.Timestamp.IsZero() {
		return fmt.Errorf("reading for sensor %s has no timestamp", r.SensorID)
	}

	// Normalize once here so the cached reading matches what the store
	// persists; a rejected humidity drops the channel everywhere.
	humidity := r.Humidity
	if humidity != nil {
		h, err := types.NormalizeHumidity(*humidity)
		if err != nil {
			log.Printf("Dropping humidity channel for sensor %s: %v", r.SensorID, err)
			humidity = nil
		} else {
			humidity = &h
		}
	}

	if err := i.store.InsertMeasurement(r.SensorID, r.Timestamp, r.Temperature, humidity, r.City, r.Country); err != nil {
		return err
	}

	cached := &types.Measurement{
		SensorID:    r.SensorID,
		Timestamp:   r.Timestamp.UTC(),
		Temperature: r.Temperature,
		Humidity:    humidity,
		City:        r.City,
		Country:     r.Country,
	}
	if err := i.cache.StoreLastReading(ctx, cached); err != nil {
		log.Printf("Warning: failed to cache reading for sensor %s: %v", r.SensorID, err)
	}

	return nil
}

func main() {
	if err := runIngestor(); err != nil {
		log.Printf("Ingestor failed: %v", err)
		os.Exit(1)
	}
}

// runIngestor contains the main application logic and can be tested
func runIngestor() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	st, err := store.New(cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to create store client: %w", err)
	}

	cache, err := redisx.New(cfg.RedisAddr)
	if err != nil {
		st.Close()
		return fmt.Errorf("failed to create Redis client: %w", err)
	}

	client, err := natsx.New(cfg.NATSURL)
	if err != nil {
		st.Close()
		cache.Close()
		return fmt.Errorf("failed to create NATS client: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	ingestor := NewIngestor(st, cache)

	if err := client.SubscribeReadings(func(r *types.Reading) {
		if err := ingestor.Process(ctx, r); err != nil {
			log.Printf("Failed to process reading: %v", err)
		}
	}); err != nil {
		client.Close()
		cache.Close()
		st.Close()
		cancel()
		return fmt.Errorf("failed to subscribe to readings: %w", err)
	}

	log.Println("Ingestor started")

	// Wait for shutdown signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	log.Println("Shutting down...")
	client.Close()
	cancel()
	cache.Close()
	st.Close()

	return nil
}
