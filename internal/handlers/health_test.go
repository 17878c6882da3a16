package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestHealthzReportsBuildInfo(t *testing.T) {
	started := time.Date(2026, 5, 10, 12, 0, 0, 0, time.UTC)
	now := started.Add(90 * time.Minute)

	handler := NewHealthHandlers(
		WithHealthBuildInfo(BuildInfo{
			Version:     "1.4.0",
			CommitSHA:   "abc1234",
			Environment: "staging",
			StartedAt:   started,
		}),
		WithHealthClock(func() time.Time { return now }),
	)

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rr := httptest.NewRecorder()
	handler.Healthz(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}

	var payload map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &payload); err != nil {
		t.Fatalf("parse response: %v", err)
	}
	if payload["status"] != "ok" {
		t.Fatalf("expected status ok, got %v", payload["status"])
	}
	if payload["version"] != "1.4.0" || payload["commitSha"] != "abc1234" || payload["environment"] != "staging" {
		t.Fatalf("unexpected build info %v", payload)
	}
	if payload["uptime"] != "1h30m0s" {
		t.Fatalf("unexpected uptime %v", payload["uptime"])
	}
}

func TestReadyzAllChecksPass(t *testing.T) {
	handler := NewHealthHandlers(
		WithHealthReadinessCheck("firestore", func(context.Context) error { return nil }),
		WithHealthReadinessCheck("pubsub", func(context.Context) error { return nil }),
	)

	req := httptest.NewRequest(http.MethodGet, "/readyz", nil)
	rr := httptest.NewRecorder()
	handler.Readyz(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rr.Code, rr.Body.String())
	}

	var payload struct {
		Status string                    `json:"status"`
		Checks map[string]map[string]any `json:"checks"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &payload); err != nil {
		t.Fatalf("parse response: %v", err)
	}
	if payload.Status != "ok" || len(payload.Checks) != 2 {
		t.Fatalf("unexpected payload %+v", payload)
	}
}

func TestReadyzFailingCheckReturns503(t *testing.T) {
	handler := NewHealthHandlers(
		WithHealthReadinessCheck("firestore", func(context.Context) error { return nil }),
		WithHealthReadinessCheck("pubsub", func(context.Context) error {
			return errors.New("topic unreachable")
		}),
	)

	req := httptest.NewRequest(http.MethodGet, "/readyz", nil)
	rr := httptest.NewRecorder()
	handler.Readyz(rr, req)

	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected status 503, got %d", rr.Code)
	}

	var payload struct {
		Status string                    `json:"status"`
		Checks map[string]map[string]any `json:"checks"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &payload); err != nil {
		t.Fatalf("parse response: %v", err)
	}
	if payload.Status != "error" {
		t.Fatalf("expected error status, got %q", payload.Status)
	}
	if payload.Checks["pubsub"]["error"] != "topic unreachable" {
		t.Fatalf("unexpected check detail %+v", payload.Checks["pubsub"])
	}
	if payload.Checks["firestore"]["status"] != "ok" {
		t.Fatalf("expected firestore check to pass, got %+v", payload.Checks["firestore"])
	}
}
