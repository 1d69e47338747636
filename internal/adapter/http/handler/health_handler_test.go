package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestHealthHandler_Liveness(t *testing.T) {
	rr := httptest.NewRecorder()
	NewHealthHandler(nil).Liveness(rr, httptest.NewRequest(http.MethodGet, "/health", nil))

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
}

func TestHealthHandler_Readiness(t *testing.T) {
	ok := func(context.Context) error { return nil }
	down := func(context.Context) error { return errors.New("dial tcp: refused") }

	rr := httptest.NewRecorder()
	NewHealthHandler(map[string]HealthCheck{"postgres": ok, "redis": ok}).
		Readiness(rr, httptest.NewRequest(http.MethodGet, "/ready", nil))

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}

	var body map[string]string
	if err := json.NewDecoder(rr.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body["postgres"] != "ok" || body["redis"] != "ok" {
		t.Fatalf("unexpected body %v", body)
	}

	rr = httptest.NewRecorder()
	NewHealthHandler(map[string]HealthCheck{"postgres": ok, "redis": down}).
		Readiness(rr, httptest.NewRequest(http.MethodGet, "/ready", nil))

	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rr.Code)
	}
}
