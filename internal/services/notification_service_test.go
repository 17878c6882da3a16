package services

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	domain "github.com/meridianmart/api/internal/domain"
	"github.com/meridianmart/api/internal/platform/push"
	"github.com/meridianmart/api/internal/repositories"
)

type stubNotificationRepo struct {
	insertFn      func(ctx context.Context, notification domain.Notification) error
	findFn        func(ctx context.Context, notificationID string) (domain.Notification, error)
	listFn        func(ctx context.Context, filter repositories.NotificationListFilter) (domain.CursorPage[domain.Notification], error)
	markReadFn    func(ctx context.Context, notificationID string, now time.Time) (domain.Notification, error)
	markReadCalls int
}

func (s *stubNotificationRepo) Insert(ctx context.Context, notification domain.Notification) error {
	if s.insertFn != nil {
		return s.insertFn(ctx, notification)
	}
	return nil
}

func (s *stubNotificationRepo) ListByRecipient(ctx context.Context, filter repositories.NotificationListFilter) (domain.CursorPage[domain.Notification], error) {
	if s.listFn != nil {
		return s.listFn(ctx, filter)
	}
	return domain.CursorPage[domain.Notification]{}, nil
}

func (s *stubNotificationRepo) Find(ctx context.Context, notificationID string) (domain.Notification, error) {
	if s.findFn != nil {
		return s.findFn(ctx, notificationID)
	}
	return domain.Notification{}, notFoundRepoError{}
}

func (s *stubNotificationRepo) MarkRead(ctx context.Context, notificationID string, now time.Time) (domain.Notification, error) {
	s.markReadCalls++
	if s.markReadFn != nil {
		return s.markReadFn(ctx, notificationID, now)
	}
	return domain.Notification{}, notFoundRepoError{}
}

type stubPushTokenRepo struct {
	saveFn     func(ctx context.Context, token domain.PushToken) (domain.PushToken, error)
	admin      []domain.PushToken
	byUser     map[string][]domain.PushToken
	deletedIDs []string
}

func (s *stubPushTokenRepo) Save(ctx context.Context, token domain.PushToken) (domain.PushToken, error) {
	if s.saveFn != nil {
		return s.saveFn(ctx, token)
	}
	return token, nil
}

func (s *stubPushTokenRepo) Delete(_ context.Context, tokenID string) error {
	s.deletedIDs = append(s.deletedIDs, tokenID)
	return nil
}

func (s *stubPushTokenRepo) ListAdmin(context.Context) ([]domain.PushToken, error) {
	return s.admin, nil
}

func (s *stubPushTokenRepo) ListByUser(_ context.Context, userID string) ([]domain.PushToken, error) {
	return s.byUser[userID], nil
}

type capturePushSender struct {
	tokens  []domain.PushToken
	message push.Message
	calls   int
	report  push.Report
	err     error
}

func (c *capturePushSender) Send(_ context.Context, tokens []domain.PushToken, message push.Message) (push.Report, error) {
	c.calls++
	c.tokens = tokens
	c.message = message
	if c.err != nil {
		return push.Report{}, c.err
	}
	return c.report, nil
}

func newNotificationService(t *testing.T, notifications *stubNotificationRepo, tokens *stubPushTokenRepo, pusher push.Sender) NotificationService {
	t.Helper()
	svc, err := NewNotificationService(NotificationServiceDeps{
		Notifications: notifications,
		PushTokens:    tokens,
		Pusher:        pusher,
		Clock: func() time.Time {
			return time.Date(2026, 5, 10, 14, 0, 0, 0, time.UTC)
		},
	})
	if err != nil {
		t.Fatalf("new notification service: %v", err)
	}
	return svc
}

func TestNotificationServiceNotifyAdminsPersistsAndPushes(t *testing.T) {
	var inserted domain.Notification
	notifications := &stubNotificationRepo{
		insertFn: func(_ context.Context, n domain.Notification) error {
			inserted = n
			return nil
		},
	}
	tokens := &stubPushTokenRepo{
		admin: []domain.PushToken{
			{ID: "ptk_a", UserID: "admin-1", Token: "tok-a", IsAdmin: true},
			{ID: "ptk_b", UserID: "admin-2", Token: "tok-b", IsAdmin: true},
		},
	}
	pusher := &capturePushSender{report: push.Report{Delivered: 2}}

	svc := newNotificationService(t, notifications, tokens, pusher)
	notification, err := svc.NotifyAdmins(context.Background(), NotifyCommand{
		Type:    "order_created",
		Title:   "  New order placed  ",
		Message: "Order MM-2026-000042 for 3 items",
		Link:    "/admin/orders/ord_42",
	})
	if err != nil {
		t.Fatalf("notify admins: %v", err)
	}

	if !strings.HasPrefix(notification.ID, "ntf_") {
		t.Fatalf("unexpected notification id %q", notification.ID)
	}
	if notification.Recipient.Kind != domain.RecipientKindAdmin {
		t.Fatalf("expected admin recipient, got %+v", notification.Recipient)
	}
	if notification.Title != "New order placed" {
		t.Fatalf("expected trimmed title, got %q", notification.Title)
	}
	if inserted.ID != notification.ID {
		t.Fatalf("expected persisted notification %q, got %q", notification.ID, inserted.ID)
	}
	if pusher.calls != 1 || len(pusher.tokens) != 2 {
		t.Fatalf("expected one push to two tokens, got calls=%d tokens=%d", pusher.calls, len(pusher.tokens))
	}
	if pusher.message.Data["notificationId"] != notification.ID || pusher.message.Data["link"] != "/admin/orders/ord_42" {
		t.Fatalf("unexpected push data %+v", pusher.message.Data)
	}
}

func TestNotificationServiceNotifyCustomerTargetsUserTokens(t *testing.T) {
	notifications := &stubNotificationRepo{}
	tokens := &stubPushTokenRepo{
		admin: []domain.PushToken{{ID: "ptk_a", Token: "tok-a", IsAdmin: true}},
		byUser: map[string][]domain.PushToken{
			"user-1": {{ID: "ptk_u", UserID: "user-1", Token: "tok-u"}},
		},
	}
	pusher := &capturePushSender{report: push.Report{Delivered: 1}}

	svc := newNotificationService(t, notifications, tokens, pusher)
	notification, err := svc.NotifyCustomer(context.Background(), "user-1", NotifyCommand{
		Type:  "order_status",
		Title: "Order update",
	})
	if err != nil {
		t.Fatalf("notify customer: %v", err)
	}
	if notification.Recipient != domain.UserRecipient("user-1") {
		t.Fatalf("unexpected recipient %+v", notification.Recipient)
	}
	if len(pusher.tokens) != 1 || pusher.tokens[0].ID != "ptk_u" {
		t.Fatalf("expected the user's token only, got %+v", pusher.tokens)
	}
}

func TestNotificationServiceNotifyValidation(t *testing.T) {
	svc := newNotificationService(t, &stubNotificationRepo{}, &stubPushTokenRepo{}, nil)

	if _, err := svc.NotifyAdmins(context.Background(), NotifyCommand{Type: "x"}); !errors.Is(err, ErrNotificationInvalidInput) {
		t.Fatalf("expected invalid input for missing title, got %v", err)
	}
	if _, err := svc.NotifyCustomer(context.Background(), "  ", NotifyCommand{Title: "hi"}); !errors.Is(err, ErrNotificationInvalidInput) {
		t.Fatalf("expected invalid input for blank user, got %v", err)
	}
}

func TestNotificationServicePushFailureDoesNotFailDispatch(t *testing.T) {
	notifications := &stubNotificationRepo{}
	tokens := &stubPushTokenRepo{
		admin: []domain.PushToken{{ID: "ptk_a", Token: "tok-a", IsAdmin: true}},
	}
	pusher := &capturePushSender{err: errors.New("fcm unreachable")}

	svc := newNotificationService(t, notifications, tokens, pusher)
	if _, err := svc.NotifyAdmins(context.Background(), NotifyCommand{Title: "Order cancelled"}); err != nil {
		t.Fatalf("push failure must be swallowed, got %v", err)
	}
}

func TestNotificationServiceStaleTokensAreDeleted(t *testing.T) {
	tokens := &stubPushTokenRepo{
		admin: []domain.PushToken{
			{ID: "ptk_live", Token: "tok-live", IsAdmin: true},
			{ID: "ptk_stale", Token: "tok-stale", IsAdmin: true},
		},
	}
	pusher := &capturePushSender{report: push.Report{Delivered: 1, Failed: 1, StaleTokenIDs: []string{"ptk_stale"}}}

	svc := newNotificationService(t, &stubNotificationRepo{}, tokens, pusher)
	if _, err := svc.NotifyAdmins(context.Background(), NotifyCommand{Title: "Return requested"}); err != nil {
		t.Fatalf("notify admins: %v", err)
	}
	if len(tokens.deletedIDs) != 1 || tokens.deletedIDs[0] != "ptk_stale" {
		t.Fatalf("expected stale token deleted, got %+v", tokens.deletedIDs)
	}
}

func TestNotificationServiceListScopesRecipient(t *testing.T) {
	var captured repositories.NotificationListFilter
	notifications := &stubNotificationRepo{
		listFn: func(_ context.Context, filter repositories.NotificationListFilter) (domain.CursorPage[domain.Notification], error) {
			captured = filter
			return domain.CursorPage[domain.Notification]{NextPageToken: "next"}, nil
		},
	}
	svc := newNotificationService(t, notifications, &stubPushTokenRepo{}, nil)

	page, err := svc.List(context.Background(), ListNotificationsCommand{ActorID: "staff-1", IsAdmin: true, UnreadOnly: true})
	if err != nil {
		t.Fatalf("admin list: %v", err)
	}
	if captured.Recipient.Kind != domain.RecipientKindAdmin || !captured.UnreadOnly {
		t.Fatalf("unexpected filter %+v", captured)
	}
	if page.NextPageToken != "next" {
		t.Fatalf("expected token passthrough, got %q", page.NextPageToken)
	}

	if _, err := svc.List(context.Background(), ListNotificationsCommand{ActorID: "user-1"}); err != nil {
		t.Fatalf("user list: %v", err)
	}
	if captured.Recipient != domain.UserRecipient("user-1") {
		t.Fatalf("unexpected filter %+v", captured)
	}

	if _, err := svc.List(context.Background(), ListNotificationsCommand{}); !errors.Is(err, ErrNotificationInvalidInput) {
		t.Fatalf("expected invalid input for anonymous list, got %v", err)
	}
}

func TestNotificationServiceMarkReadHidesForeignRecords(t *testing.T) {
	notifications := &stubNotificationRepo{
		findFn: func(_ context.Context, notificationID string) (domain.Notification, error) {
			return domain.Notification{
				ID:        notificationID,
				Recipient: domain.UserRecipient("user-1"),
			}, nil
		},
		markReadFn: func(_ context.Context, notificationID string, _ time.Time) (domain.Notification, error) {
			return domain.Notification{
				ID:        notificationID,
				Recipient: domain.UserRecipient("user-1"),
				Read:      true,
			}, nil
		},
	}
	svc := newNotificationService(t, notifications, &stubPushTokenRepo{}, nil)

	notification, err := svc.MarkRead(context.Background(), MarkReadCommand{NotificationID: "ntf_1", ActorID: "user-1"})
	if err != nil {
		t.Fatalf("owner mark read: %v", err)
	}
	if !notification.Read {
		t.Fatal("expected read flag set")
	}

	// A foreign caller learns nothing beyond not-found.
	if _, err := svc.MarkRead(context.Background(), MarkReadCommand{NotificationID: "ntf_1", ActorID: "user-2"}); !errors.Is(err, ErrNotificationNotFound) {
		t.Fatalf("expected not found for foreign actor, got %v", err)
	}

	if _, err := svc.MarkRead(context.Background(), MarkReadCommand{NotificationID: "ntf_1", ActorID: "staff-1", IsAdmin: true}); err != nil {
		t.Fatalf("admin mark read: %v", err)
	}
}

func TestNotificationServiceMarkReadForeignActorDoesNotMutate(t *testing.T) {
	notifications := &stubNotificationRepo{
		findFn: func(_ context.Context, notificationID string) (domain.Notification, error) {
			return domain.Notification{
				ID:        notificationID,
				Recipient: domain.UserRecipient("user-1"),
			}, nil
		},
	}
	svc := newNotificationService(t, notifications, &stubPushTokenRepo{}, nil)

	if _, err := svc.MarkRead(context.Background(), MarkReadCommand{NotificationID: "ntf_1", ActorID: "user-2"}); !errors.Is(err, ErrNotificationNotFound) {
		t.Fatalf("expected not found for foreign actor, got %v", err)
	}
	if notifications.markReadCalls != 0 {
		t.Fatalf("expected no writes for a foreign actor, repository MarkRead ran %d time(s)", notifications.markReadCalls)
	}

	// The admin feed is equally protected from non-admin callers.
	notifications.findFn = func(_ context.Context, notificationID string) (domain.Notification, error) {
		return domain.Notification{ID: notificationID, Recipient: domain.AdminRecipient()}, nil
	}
	if _, err := svc.MarkRead(context.Background(), MarkReadCommand{NotificationID: "ntf_2", ActorID: "user-2"}); !errors.Is(err, ErrNotificationNotFound) {
		t.Fatalf("expected not found for non-admin actor, got %v", err)
	}
	if notifications.markReadCalls != 0 {
		t.Fatalf("expected no writes for a non-admin actor, repository MarkRead ran %d time(s)", notifications.markReadCalls)
	}
}

func TestNotificationServiceRegisterPushToken(t *testing.T) {
	tokens := &stubPushTokenRepo{}
	svc := newNotificationService(t, &stubNotificationRepo{}, tokens, nil)

	token, err := svc.RegisterPushToken(context.Background(), RegisterPushTokenCommand{
		UserID:   "user-1",
		Token:    " device-token ",
		Platform: "android",
	})
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if !strings.HasPrefix(token.ID, "ptk_") {
		t.Fatalf("unexpected token id %q", token.ID)
	}
	if token.Token != "device-token" || token.Platform != "android" {
		t.Fatalf("unexpected token %+v", token)
	}

	if _, err := svc.RegisterPushToken(context.Background(), RegisterPushTokenCommand{UserID: "user-1"}); !errors.Is(err, ErrNotificationInvalidInput) {
		t.Fatalf("expected invalid input for blank token, got %v", err)
	}
}

func TestNotificationServiceRemovePushToken(t *testing.T) {
	tokens := &stubPushTokenRepo{}
	svc := newNotificationService(t, &stubNotificationRepo{}, tokens, nil)

	if err := svc.RemovePushToken(context.Background(), RemovePushTokenCommand{TokenID: "ptk_1", UserID: "user-1"}); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if len(tokens.deletedIDs) != 1 || tokens.deletedIDs[0] != "ptk_1" {
		t.Fatalf("expected token deleted, got %+v", tokens.deletedIDs)
	}

	if err := svc.RemovePushToken(context.Background(), RemovePushTokenCommand{UserID: "user-1"}); !errors.Is(err, ErrNotificationInvalidInput) {
		t.Fatalf("expected invalid input for blank id, got %v", err)
	}
}
