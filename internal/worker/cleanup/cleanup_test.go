package cleanup

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"testing"
)

type fakeResult struct {
	rowsAffected int64
}

func (r *fakeResult) LastInsertId() (int64, error) { return 0, nil }
func (r *fakeResult) RowsAffected() (int64, error) { return r.rowsAffected, nil }

// Executor インターフェースに対するモック実装
type mockExecutor struct {
	execCalled bool
	query      string
	args       []interface{}
	result     sql.Result
	err        error
}

func (m *mockExecutor) ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error) {
	m.execCalled = true
	m.query = query
	m.args = args
	return m.result, m.err
}

func newTestLogger(buf *bytes.Buffer) *slog.Logger {
	return slog.New(slog.NewJSONHandler(buf, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
}

func TestRun_DeletesExpiredSessions(t *testing.T) {
	var buf bytes.Buffer
	mock := &mockExecutor{
		result: &fakeResult{rowsAffected: 12},
	}
	job := NewSessionCleanupJob(mock, newTestLogger(&buf))

	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if !mock.execCalled {
		t.Fatal("ExecContext was not called")
	}
	if !strings.Contains(mock.query, "DELETE FROM sessions") {
		t.Errorf("query = %q, want DELETE FROM sessions", mock.query)
	}
	if !strings.Contains(mock.query, "expires_at < now()") {
		t.Errorf("query = %q, want expires_at filter", mock.query)
	}
}

func TestRun_NoExpiredSessionsIsNotAnError(t *testing.T) {
	var buf bytes.Buffer
	mock := &mockExecutor{
		result: &fakeResult{rowsAffected: 0},
	}
	job := NewSessionCleanupJob(mock, newTestLogger(&buf))

	if err := job.Run(context.Background()); err != nil {
		t.Errorf("Run() error = %v, want nil for empty delete", err)
	}
}

func TestRun_LogsDeletedCount(t *testing.T) {
	var buf bytes.Buffer
	mock := &mockExecutor{
		result: &fakeResult{rowsAffected: 3},
	}
	job := NewSessionCleanupJob(mock, newTestLogger(&buf))

	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	var entry map[string]interface{}
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if err := json.Unmarshal([]byte(lines[len(lines)-1]), &entry); err != nil {
		t.Fatalf("failed to parse log: %v", err)
	}
	if entry["deleted_count"] != float64(3) {
		t.Errorf("deleted_count = %v, want 3", entry["deleted_count"])
	}
}

func TestRun_ExecErrorIsReturned(t *testing.T) {
	var buf bytes.Buffer
	mock := &mockExecutor{
		err: errors.New("connection refused"),
	}
	job := NewSessionCleanupJob(mock, newTestLogger(&buf))

	if err := job.Run(context.Background()); err == nil {
		t.Error("Run() should return the exec error")
	}
}
