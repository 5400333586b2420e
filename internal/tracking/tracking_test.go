package tracking

import (
	"errors"
	"strings"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
)

func newMockClient(t *testing.T) (*Client, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("Failed to create mock DB: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return &Client{db: db}, mock
}

func TestCreateRequest_Unit(t *testing.T) {
	client, mock := newMockClient(t)

	mock.ExpectExec("INSERT INTO requests").
		WithArgs(sqlmock.AnyArg(), "usr_1", "proc_temp_max_min", sqlmock.AnyArg(), StatePending, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	requestID, err := client.CreateRequest("usr_1", "proc_temp_max_min", map[string]interface{}{
		"country": "AR",
		"city":    "Buenos Aires",
	})
	if err != nil {
		t.Fatalf("CreateRequest failed: %v", err)
	}
	if !strings.HasPrefix(requestID, "req_") {
		t.Errorf("Request id should carry the req_ prefix: %q", requestID)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("Unmet expectations: %v", err)
	}
}

func TestCreateRequest_Failure(t *testing.T) {
	client, mock := newMockClient(t)

	mock.ExpectExec("INSERT INTO requests").
		WillReturnError(errors.New("connection refused"))

	if _, err := client.CreateRequest("usr_1", "proc_temp_max_min", nil); err == nil {
		t.Fatal("Expected error to propagate, losing the audit trail is not acceptable")
	}
}

func TestRecordExecution_Unit(t *testing.T) {
	tests := []struct {
		name      string
		ok        bool
		wantState string
	}{
		{name: "successful execution completes the request", ok: true, wantState: StateCompleted},
		{name: "failed execution fails the request", ok: false, wantState: StateFailed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client, mock := newMockClient(t)

			mock.ExpectExec("INSERT INTO executions").
				WithArgs(sqlmock.AnyArg(), "req_1", tt.ok, "", 28, "", sqlmock.AnyArg(), sqlmock.AnyArg()).
				WillReturnResult(sqlmock.NewResult(0, 1))
			mock.ExpectExec("UPDATE requests SET status").
				WithArgs(tt.wantState, "req_1").
				WillReturnResult(sqlmock.NewResult(0, 1))

			executionID, err := client.RecordExecution("req_1", tt.ok, "", 28, "")
			if err != nil {
				t.Fatalf("RecordExecution failed: %v", err)
			}
			if !strings.HasPrefix(executionID, "exec_") {
				t.Errorf("Execution id should carry the exec_ prefix: %q", executionID)
			}
			if err := mock.ExpectationsWereMet(); err != nil {
				t.Errorf("Unmet expectations: %v", err)
			}
		})
	}
}

func TestUpdateRequestState_WithPayload(t *testing.T) {
	client, mock := newMockClient(t)

	mock.ExpectExec("UPDATE requests SET status").
		WithArgs(StateCompleted, sqlmock.AnyArg(), "req_1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := client.UpdateRequestState("req_1", StateCompleted, map[string]interface{}{
		"result": "s3://reports/req_1.pdf",
	})
	if err != nil {
		t.Fatalf("UpdateRequestState failed: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("Unmet expectations: %v", err)
	}
}
