package httpx

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/meridianmart/api/internal/platform/requestctx"
)

func TestWriteErrorFillsIdentifiersFromContext(t *testing.T) {
	ctx := context.WithValue(context.Background(), middleware.RequestIDKey, "req-42")
	ctx = requestctx.WithTrace(ctx, requestctx.TraceInfo{TraceID: "abc123"})

	rec := httptest.NewRecorder()
	WriteError(ctx, rec, NewError("invalid_request", "quantity must be positive", http.StatusBadRequest))

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("unexpected status %d", rec.Code)
	}
	if got := rec.Header().Get("Content-Type"); got != "application/json" {
		t.Fatalf("unexpected content type %q", got)
	}

	var payload map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if payload["error"] != "invalid_request" {
		t.Fatalf("unexpected code %v", payload["error"])
	}
	if payload["message"] != "quantity must be positive" {
		t.Fatalf("unexpected message %v", payload["message"])
	}
	if payload["status"] != float64(http.StatusBadRequest) {
		t.Fatalf("unexpected status field %v", payload["status"])
	}
	if payload["request_id"] != "req-42" {
		t.Fatalf("unexpected request id %v", payload["request_id"])
	}
	if payload["trace_id"] != "abc123" {
		t.Fatalf("unexpected trace id %v", payload["trace_id"])
	}
}

func TestWriteErrorOmitsMissingIdentifiers(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteError(context.Background(), rec, Error{Code: "order_error"})

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected fallback 500, got %d", rec.Code)
	}

	var payload map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if _, ok := payload["request_id"]; ok {
		t.Fatal("request_id should be omitted when absent")
	}
	if _, ok := payload["trace_id"]; ok {
		t.Fatal("trace_id should be omitted when absent")
	}
}

func TestNewErrorSanitisesInput(t *testing.T) {
	err := NewError("bad\ncode", strings.Repeat("m", 600), http.StatusConflict)
	if strings.Contains(err.Code, "\n") {
		t.Fatal("newlines should be stripped from the code")
	}
	if len(err.Message) != 512 {
		t.Fatalf("message should be clamped to 512 bytes, got %d", len(err.Message))
	}
}
