package natsx

import (
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/climsense/climate-logger/internal/types"
)

const (
	SubjectReadings = "measurements.raw"
)

// Client represents a NATS client
type Client struct {
	conn *nats.Conn
	js   nats.JetStreamContext
}

// New creates a new NATS client
func New(url string) (*Client, error) {
	nc, err := nats.Connect(url)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	js, err := nc.JetStream()
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("failed to get JetStream context: %w", err)
	}

	// Create stream if it doesn't exist
	_, err = js.AddStream(&nats.StreamConfig{
		Name:     "MEASUREMENTS",
		Subjects: []string{SubjectReadings},
		Storage:  nats.FileStorage,
		MaxAge:   24 * time.Hour,
	})
	if err != nil && !strings.Contains(err.Error(), "stream name already in use") {
		nc.Close()
		return nil, fmt.Errorf("failed to create stream: %w", err)
	}

	return &Client{
		conn: nc,
		js:   js,
	}, nil
}

// PublishReading publishes a sensor reading to NATS
func (c *Client) PublishReading(r *types.Reading) error {
	data, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("failed to marshal reading: %w", err)
	}

	_, err = c.js.Publish(SubjectReadings, data)
	if err != nil {
		return fmt.Errorf("failed to publish reading: %w", err)
	}

	return nil
}

// SubscribeReadings subscribes to raw sensor readings
func (c *Client) SubscribeReadings(handler func(*types.Reading)) error {
	_, err := c.js.Subscribe(SubjectReadings, func(msg *nats.Msg) {
		var reading types.Reading
		if err := json.Unmarshal(msg.Data, &reading); err != nil {
			log.Printf("Error unmarshaling reading: %v", err)
			return
		}
		handler(&reading)
	})
	if err != nil {
		return fmt.Errorf("failed to subscribe: %w", err)
	}

	return nil
}

// Close closes the NATS connection
func (c *Client) Close() {
	c.conn.Close()
}
