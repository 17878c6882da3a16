package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	domain "github.com/meridianmart/api/internal/domain"
	"github.com/meridianmart/api/internal/platform/auth"
	"github.com/meridianmart/api/internal/services"
)

type stubNotificationService struct {
	listFn     func(context.Context, services.ListNotificationsCommand) (domain.CursorPage[services.Notification], error)
	markReadFn func(context.Context, services.MarkReadCommand) (services.Notification, error)
	registerFn func(context.Context, services.RegisterPushTokenCommand) (services.PushToken, error)
	removeFn   func(context.Context, services.RemovePushTokenCommand) error
}

func (s *stubNotificationService) NotifyAdmins(context.Context, services.NotifyCommand) (services.Notification, error) {
	return services.Notification{}, fmt.Errorf("not implemented")
}

func (s *stubNotificationService) NotifyCustomer(context.Context, string, services.NotifyCommand) (services.Notification, error) {
	return services.Notification{}, fmt.Errorf("not implemented")
}

func (s *stubNotificationService) List(ctx context.Context, cmd services.ListNotificationsCommand) (domain.CursorPage[services.Notification], error) {
	if s.listFn != nil {
		return s.listFn(ctx, cmd)
	}
	return domain.CursorPage[services.Notification]{}, nil
}

func (s *stubNotificationService) MarkRead(ctx context.Context, cmd services.MarkReadCommand) (services.Notification, error) {
	if s.markReadFn != nil {
		return s.markReadFn(ctx, cmd)
	}
	return services.Notification{}, fmt.Errorf("not implemented")
}

func (s *stubNotificationService) RegisterPushToken(ctx context.Context, cmd services.RegisterPushTokenCommand) (services.PushToken, error) {
	if s.registerFn != nil {
		return s.registerFn(ctx, cmd)
	}
	return services.PushToken{}, fmt.Errorf("not implemented")
}

func (s *stubNotificationService) RemovePushToken(ctx context.Context, cmd services.RemovePushTokenCommand) error {
	if s.removeFn != nil {
		return s.removeFn(ctx, cmd)
	}
	return fmt.Errorf("not implemented")
}

func newNotificationRouter(service services.NotificationService) chi.Router {
	router := chi.NewRouter()
	router.Route("/notifications", NewNotificationHandlers(nil, service).Routes)
	return router
}

func TestNotificationHandlersList(t *testing.T) {
	var captured services.ListNotificationsCommand
	service := &stubNotificationService{
		listFn: func(_ context.Context, cmd services.ListNotificationsCommand) (domain.CursorPage[services.Notification], error) {
			captured = cmd
			return domain.CursorPage[services.Notification]{
				Items: []services.Notification{
					{
						ID:        "ntf_1",
						Recipient: domain.UserRecipient("user-1"),
						Type:      "order_status",
						Title:     "Order shipped",
						Link:      "/orders/ord_1",
						CreatedAt: time.Date(2026, 5, 10, 14, 0, 0, 0, time.UTC),
					},
				},
				NextPageToken: "tok-1",
			}, nil
		},
	}

	router := newNotificationRouter(service)
	req := httptest.NewRequest(http.MethodGet, "/notifications?unread=true&page_size=10", nil)
	req = req.WithContext(auth.WithIdentity(req.Context(), &auth.Identity{UID: "user-1"}))
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rr.Code, rr.Body.String())
	}
	if captured.ActorID != "user-1" || !captured.UnreadOnly || captured.IsAdmin {
		t.Fatalf("unexpected command %+v", captured)
	}
	if captured.Pagination.PageSize != 10 {
		t.Fatalf("unexpected pagination %+v", captured.Pagination)
	}

	var resp struct {
		Items         []notificationPayload `json:"items"`
		NextPageToken string                `json:"next_page_token"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("parse response: %v", err)
	}
	if len(resp.Items) != 1 || resp.Items[0].ID != "ntf_1" || resp.NextPageToken != "tok-1" {
		t.Fatalf("unexpected response %+v", resp)
	}
}

func TestNotificationHandlersListPassesAdminFlag(t *testing.T) {
	var captured services.ListNotificationsCommand
	service := &stubNotificationService{
		listFn: func(_ context.Context, cmd services.ListNotificationsCommand) (domain.CursorPage[services.Notification], error) {
			captured = cmd
			return domain.CursorPage[services.Notification]{}, nil
		},
	}

	router := newNotificationRouter(service)
	req := httptest.NewRequest(http.MethodGet, "/notifications", nil)
	req = req.WithContext(auth.WithIdentity(req.Context(), &auth.Identity{UID: "admin-1", Roles: []string{auth.RoleAdmin}}))
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}
	if !captured.IsAdmin {
		t.Fatalf("expected admin flag, got %+v", captured)
	}
}

func TestNotificationHandlersListUnauthenticated(t *testing.T) {
	router := newNotificationRouter(&stubNotificationService{})
	req := httptest.NewRequest(http.MethodGet, "/notifications", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected status 401, got %d", rr.Code)
	}
}

func TestNotificationHandlersMarkRead(t *testing.T) {
	var captured services.MarkReadCommand
	service := &stubNotificationService{
		markReadFn: func(_ context.Context, cmd services.MarkReadCommand) (services.Notification, error) {
			captured = cmd
			return services.Notification{ID: cmd.NotificationID, Read: true}, nil
		},
	}

	router := newNotificationRouter(service)
	req := httptest.NewRequest(http.MethodPost, "/notifications/ntf_1/read", nil)
	req = req.WithContext(auth.WithIdentity(req.Context(), &auth.Identity{UID: "user-1"}))
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}
	if captured.NotificationID != "ntf_1" || captured.ActorID != "user-1" {
		t.Fatalf("unexpected command %+v", captured)
	}

	var resp struct {
		Notification notificationPayload `json:"notification"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("parse response: %v", err)
	}
	if !resp.Notification.Read {
		t.Fatalf("expected read notification, got %+v", resp.Notification)
	}
}

func TestNotificationHandlersMarkReadNotFound(t *testing.T) {
	service := &stubNotificationService{
		markReadFn: func(context.Context, services.MarkReadCommand) (services.Notification, error) {
			return services.Notification{}, fmt.Errorf("%w: ntf_x", services.ErrNotificationNotFound)
		},
	}

	router := newNotificationRouter(service)
	req := httptest.NewRequest(http.MethodPost, "/notifications/ntf_x/read", nil)
	req = req.WithContext(auth.WithIdentity(req.Context(), &auth.Identity{UID: "user-1"}))
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected status 404, got %d", rr.Code)
	}
}

func TestNotificationHandlersRegisterPushToken(t *testing.T) {
	var captured services.RegisterPushTokenCommand
	service := &stubNotificationService{
		registerFn: func(_ context.Context, cmd services.RegisterPushTokenCommand) (services.PushToken, error) {
			captured = cmd
			return services.PushToken{
				ID:        "ptk_1",
				UserID:    cmd.UserID,
				Platform:  cmd.Platform,
				CreatedAt: time.Date(2026, 5, 10, 14, 0, 0, 0, time.UTC),
			}, nil
		},
	}

	router := newNotificationRouter(service)
	body := strings.NewReader(`{"token":"fcm-token-abc","platform":"android"}`)
	req := httptest.NewRequest(http.MethodPost, "/notifications/push-tokens", body)
	req = req.WithContext(auth.WithIdentity(req.Context(), &auth.Identity{UID: "user-1"}))
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusCreated {
		t.Fatalf("expected status 201, got %d: %s", rr.Code, rr.Body.String())
	}
	if captured.UserID != "user-1" || captured.Token != "fcm-token-abc" || captured.Platform != "android" {
		t.Fatalf("unexpected command %+v", captured)
	}

	var resp struct {
		PushToken pushTokenPayload `json:"push_token"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("parse response: %v", err)
	}
	if resp.PushToken.ID != "ptk_1" || resp.PushToken.Platform != "android" {
		t.Fatalf("unexpected response %+v", resp)
	}
}

func TestNotificationHandlersRegisterPushTokenInvalid(t *testing.T) {
	service := &stubNotificationService{
		registerFn: func(context.Context, services.RegisterPushTokenCommand) (services.PushToken, error) {
			return services.PushToken{}, fmt.Errorf("%w: token is required", services.ErrNotificationInvalidInput)
		},
	}

	router := newNotificationRouter(service)
	req := httptest.NewRequest(http.MethodPost, "/notifications/push-tokens", strings.NewReader(`{"token":""}`))
	req = req.WithContext(auth.WithIdentity(req.Context(), &auth.Identity{UID: "user-1"}))
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", rr.Code)
	}
}

func TestNotificationHandlersRemovePushToken(t *testing.T) {
	var captured services.RemovePushTokenCommand
	service := &stubNotificationService{
		removeFn: func(_ context.Context, cmd services.RemovePushTokenCommand) error {
			captured = cmd
			return nil
		},
	}

	router := newNotificationRouter(service)
	req := httptest.NewRequest(http.MethodDelete, "/notifications/push-tokens/ptk_1", nil)
	req = req.WithContext(auth.WithIdentity(req.Context(), &auth.Identity{UID: "user-1"}))
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusNoContent {
		t.Fatalf("expected status 204, got %d", rr.Code)
	}
	if captured.TokenID != "ptk_1" || captured.UserID != "user-1" {
		t.Fatalf("unexpected command %+v", captured)
	}
}
