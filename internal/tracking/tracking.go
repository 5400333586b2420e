package tracking

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "github.com/lib/pq"
)

// Request states
const (
	StatePending   = "pending"
	StateCompleted = "completed"
	StateFailed    = "failed"
)

// Client records report requests and their executions. Losing this
// audit trail is not acceptable, so unlike usage metering its failures
// propagate to the caller.
type Client struct {
	db *sql.DB
}

// New creates a new tracking client
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

// CreateRequest registers a pending request and returns its id
func (c *Client) CreateRequest(userID, processID string, params map[string]interface{}) (string, error) {
	data, err := json.Marshal(params)
	if err != nil {
		return "", fmt.Errorf("failed to encode request params: %w", err)
	}

	requestID := "req_" + uuid.New().String()
	_, err = c.db.Exec(`
		INSERT INTO requests (request_id, user_id, process_id, params, status, requested_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, requestID, userID, processID, data, StatePending, time.Now().UTC())
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	return requestID, nil
}

// RecordExecution stores one execution outcome for a request and moves
// the request to its terminal state.
func (c *Client) RecordExecution(requestID string, ok bool, resultLocation string, meteredUnits int, notes string) (string, error) {
	executionID := "exec_" + uuid.New().String()
	now := time.Now().UTC()

	_, err := c.db.Exec(`
		INSERT INTO executions (
			execution_id, request_id, ok, result_location, metered_units, notes,
			started_at, finished_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, executionID, requestID, ok, resultLocation, meteredUnits, notes, now, now)
	if err != nil {
		return "", fmt.Errorf("failed to record execution: %w", err)
	}

	state := StateCompleted
	if !ok {
		state = StateFailed
	}
	if err := c.UpdateRequestState(requestID, state, nil); err != nil {
		return "", err
	}
	return executionID, nil
}

// UpdateRequestState moves a request to a new state, optionally
// replacing its params payload.
func (c *Client) UpdateRequestState(requestID, state string, payload map[string]interface{}) error {
	if payload == nil {
		_, err := c.db.Exec(`UPDATE requests SET status = $1 WHERE request_id = $2`, state, requestID)
		if err != nil {
			return fmt.Errorf("failed to update request %s: %w", requestID, err)
		}
		return nil
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to encode request payload: %w", err)
	}
	_, err = c.db.Exec(`
		UPDATE requests SET status = $1, params = $2 WHERE request_id = $3
	`, state, data, requestID)
	if err != nil {
		return fmt.Errorf("failed to update request %s: %w", requestID, err)
	}
	return nil
}
