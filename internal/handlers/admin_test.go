package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"

	domain "github.com/meridianmart/api/internal/domain"
	"github.com/meridianmart/api/internal/services"
)

func newAdminRouter(service services.OrderService) chi.Router {
	router := chi.NewRouter()
	router.Route("/admin", NewAdminHandlers(nil, service).Routes)
	return router
}

func TestAdminHandlersTransitionOrderStatus(t *testing.T) {
	var captured services.OrderStatusTransitionCommand
	service := &stubOrderService{
		transitionFn: func(_ context.Context, cmd services.OrderStatusTransitionCommand) (services.Order, error) {
			captured = cmd
			return services.Order{ID: cmd.OrderID, Status: cmd.TargetStatus}, nil
		},
	}

	router := newAdminRouter(service)
	body := `{"status":"shipped","expected_status":"paid","notes":"dispatched via carrier"}`
	req := httptest.NewRequest(http.MethodPut, "/admin/orders/ord_1/status", strings.NewReader(body))
	req = adminContext(req)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rr.Code, rr.Body.String())
	}
	if captured.OrderID != "ord_1" || captured.TargetStatus != domain.OrderStatusShipped {
		t.Fatalf("unexpected command %+v", captured)
	}
	if captured.ExpectedStatus == nil || *captured.ExpectedStatus != domain.OrderStatusPaid {
		t.Fatalf("unexpected expected status %+v", captured.ExpectedStatus)
	}
	if captured.ActorID != "admin-1" || captured.AdminNotes != "dispatched via carrier" {
		t.Fatalf("unexpected actor fields %+v", captured)
	}

	var resp orderResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("parse response: %v", err)
	}
	if resp.Order.Status != string(domain.OrderStatusShipped) {
		t.Fatalf("unexpected order payload %+v", resp.Order)
	}
}

func TestAdminHandlersTransitionRejectsUnknownStatus(t *testing.T) {
	router := newAdminRouter(&stubOrderService{})
	req := httptest.NewRequest(http.MethodPut, "/admin/orders/ord_1/status", strings.NewReader(`{"status":"limbo"}`))
	req = adminContext(req)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", rr.Code)
	}
}

func TestAdminHandlersTransitionRejectsUnknownExpectedStatus(t *testing.T) {
	router := newAdminRouter(&stubOrderService{})
	body := `{"status":"shipped","expected_status":"limbo"}`
	req := httptest.NewRequest(http.MethodPut, "/admin/orders/ord_1/status", strings.NewReader(body))
	req = adminContext(req)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", rr.Code)
	}
}

func TestAdminHandlersTransitionIllegalMove(t *testing.T) {
	service := &stubOrderService{
		transitionFn: func(context.Context, services.OrderStatusTransitionCommand) (services.Order, error) {
			return services.Order{}, fmt.Errorf("%w: cannot move from pending to delivered", services.ErrOrderInvalidState)
		},
	}

	router := newAdminRouter(service)
	req := httptest.NewRequest(http.MethodPut, "/admin/orders/ord_1/status", strings.NewReader(`{"status":"delivered"}`))
	req = adminContext(req)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", rr.Code)
	}
}

func TestAdminHandlersTransitionUnauthenticated(t *testing.T) {
	router := newAdminRouter(&stubOrderService{})
	req := httptest.NewRequest(http.MethodPut, "/admin/orders/ord_1/status", strings.NewReader(`{"status":"shipped"}`))
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected status 401, got %d", rr.Code)
	}
}
