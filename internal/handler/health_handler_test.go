package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

// stubCounter はCounterのスタブ実装。
type stubCounter struct {
	count int
	err   error
}

func (s *stubCounter) Count(ctx context.Context) (int, error) {
	return s.count, s.err
}

// stubSessionCounter はSessionCounterのスタブ実装。
type stubSessionCounter struct {
	count int
}

func (s *stubSessionCounter) Count() int {
	return s.count
}

// DB接続時のヘルスレポートを検証
func TestHealthHandler_Healthy(t *testing.T) {
	h := NewHealthHandler(
		&stubCounter{count: 3},
		&stubCounter{count: 7},
		&stubSessionCounter{count: 2},
		"1.2.0",
	)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()
	h.Health(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}

	var body healthResponse
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("response is not JSON: %v", err)
	}

	want := healthResponse{
		Status:         "healthy",
		Database:       "connected",
		UsersCount:     3,
		PlacesCount:    7,
		ActiveSessions: 2,
		Version:        "1.2.0",
	}
	if body != want {
		t.Errorf("body = %+v, want %+v", body, want)
	}
}

// DB障害時も200で、カウントが0・database=disconnectedになることを検証
func TestHealthHandler_DatabaseDown(t *testing.T) {
	h := NewHealthHandler(
		&stubCounter{err: errors.New("connection refused")},
		&stubCounter{err: errors.New("connection refused")},
		&stubSessionCounter{count: 5},
		"1.2.0",
	)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()
	h.Health(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200 even when DB is down", w.Code)
	}

	var body healthResponse
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("response is not JSON: %v", err)
	}

	if body.Database != "disconnected" {
		t.Errorf("database = %q, want disconnected", body.Database)
	}
	if body.UsersCount != 0 || body.PlacesCount != 0 || body.ActiveSessions != 0 {
		t.Errorf("counters should be zeroed: %+v", body)
	}
	if body.Status != "healthy" {
		t.Errorf("status = %q, want healthy", body.Status)
	}
}
