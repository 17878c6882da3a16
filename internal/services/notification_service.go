package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	domain "github.com/meridianmart/api/internal/domain"
	"github.com/meridianmart/api/internal/platform/push"
	"github.com/meridianmart/api/internal/repositories"
)

const (
	notificationIDPrefix = "ntf_"
	pushTokenIDPrefix    = "ptk_"
)

var (
	// ErrNotificationInvalidInput signals the caller provided invalid data.
	ErrNotificationInvalidInput = errors.New("notification: invalid input")
	// ErrNotificationNotFound indicates the notification could not be located.
	ErrNotificationNotFound = errors.New("notification: not found")
)

// NotificationServiceDeps bundles collaborators required to construct the notification service.
type NotificationServiceDeps struct {
	Notifications repositories.NotificationRepository
	PushTokens    repositories.PushTokenRepository
	Pusher        push.Sender
	Clock         func() time.Time
	IDGenerator   func() string
	Logger        func(ctx context.Context, event string, fields map[string]any)
}

type notificationService struct {
	notifications repositories.NotificationRepository
	pushTokens    repositories.PushTokenRepository
	pusher        push.Sender
	clock         func() time.Time
	newID         func() string
	logger        func(context.Context, string, map[string]any)
}

// NewNotificationService wires dependencies into a concrete NotificationService implementation.
func NewNotificationService(deps NotificationServiceDeps) (NotificationService, error) {
	if deps.Notifications == nil {
		return nil, errors.New("notification service: notification repository is required")
	}
	if deps.PushTokens == nil {
		return nil, errors.New("notification service: push token repository is required")
	}

	pusher := deps.Pusher
	if pusher == nil {
		pusher = push.NoopSender{}
	}

	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}

	idGen := deps.IDGenerator
	if idGen == nil {
		idGen = func() string {
			return ulid.Make().String()
		}
	}

	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}

	return &notificationService{
		notifications: deps.Notifications,
		pushTokens:    deps.PushTokens,
		pusher:        pusher,
		clock: func() time.Time {
			return clock().UTC()
		},
		newID:  idGen,
		logger: logger,
	}, nil
}

func (s *notificationService) NotifyAdmins(ctx context.Context, cmd NotifyCommand) (Notification, error) {
	return s.dispatch(ctx, domain.AdminRecipient(), cmd)
}

func (s *notificationService) NotifyCustomer(ctx context.Context, userID string, cmd NotifyCommand) (Notification, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return Notification{}, fmt.Errorf("%w: user id is required", ErrNotificationInvalidInput)
	}
	return s.dispatch(ctx, domain.UserRecipient(userID), cmd)
}

// dispatch persists the in-app record, then pushes best-effort. Push failures
// are logged and swallowed so the triggering operation never fails on them.
func (s *notificationService) dispatch(ctx context.Context, recipient Recipient, cmd NotifyCommand) (Notification, error) {
	title := strings.TrimSpace(cmd.Title)
	if title == "" {
		return Notification{}, fmt.Errorf("%w: title is required", ErrNotificationInvalidInput)
	}

	notification := Notification{
		ID:        notificationIDPrefix + s.newID(),
		Recipient: recipient,
		Type:      strings.TrimSpace(cmd.Type),
		Title:     title,
		Message:   strings.TrimSpace(cmd.Message),
		Link:      strings.TrimSpace(cmd.Link),
		CreatedAt: s.clock(),
	}

	if err := s.notifications.Insert(ctx, notification); err != nil {
		return Notification{}, mapNotificationError(err)
	}

	s.pushBestEffort(ctx, recipient, notification)

	return notification, nil
}

func (s *notificationService) pushBestEffort(ctx context.Context, recipient Recipient, notification Notification) {
	var (
		tokens []PushToken
		err    error
	)
	switch recipient.Kind {
	case domain.RecipientKindAdmin:
		tokens, err = s.pushTokens.ListAdmin(ctx)
	case domain.RecipientKindUser:
		tokens, err = s.pushTokens.ListByUser(ctx, recipient.UserID)
	default:
		return
	}
	if err != nil {
		s.logger(ctx, "notification.push.tokens.failed", map[string]any{
			"notification": notification.ID,
			"error":        err.Error(),
		})
		return
	}
	if len(tokens) == 0 {
		return
	}

	report, err := s.pusher.Send(ctx, tokens, push.Message{
		Title: notification.Title,
		Body:  notification.Message,
		Data: map[string]string{
			"notificationId": notification.ID,
			"type":           notification.Type,
			"link":           notification.Link,
		},
	})
	if err != nil {
		s.logger(ctx, "notification.push.failed", map[string]any{
			"notification": notification.ID,
			"error":        err.Error(),
		})
		return
	}

	for _, tokenID := range report.StaleTokenIDs {
		if err := s.pushTokens.Delete(ctx, tokenID); err != nil {
			s.logger(ctx, "notification.push.token.cleanup.failed", map[string]any{
				"token": tokenID,
				"error": err.Error(),
			})
		}
	}

	if report.Failed > 0 {
		s.logger(ctx, "notification.push.partial", map[string]any{
			"notification": notification.ID,
			"delivered":    report.Delivered,
			"failed":       report.Failed,
		})
	}
}

func (s *notificationService) List(ctx context.Context, cmd ListNotificationsCommand) (domain.CursorPage[Notification], error) {
	recipient := domain.UserRecipient(strings.TrimSpace(cmd.ActorID))
	if cmd.IsAdmin {
		recipient = domain.AdminRecipient()
	} else if recipient.UserID == "" {
		return domain.CursorPage[Notification]{}, fmt.Errorf("%w: actor id is required", ErrNotificationInvalidInput)
	}

	page, err := s.notifications.ListByRecipient(ctx, repositories.NotificationListFilter{
		Recipient:  recipient,
		UnreadOnly: cmd.UnreadOnly,
		Pagination: cmd.Pagination,
	})
	if err != nil {
		return domain.CursorPage[Notification]{}, mapNotificationError(err)
	}
	return page, nil
}

func (s *notificationService) MarkRead(ctx context.Context, cmd MarkReadCommand) (Notification, error) {
	notificationID := strings.TrimSpace(cmd.NotificationID)
	if notificationID == "" {
		return Notification{}, fmt.Errorf("%w: notification id is required", ErrNotificationInvalidInput)
	}

	// Ownership is checked on a read before the write so a foreign caller
	// never flips another recipient's read flag.
	existing, err := s.notifications.Find(ctx, notificationID)
	if err != nil {
		return Notification{}, mapNotificationError(err)
	}
	if !recipientMatches(existing.Recipient, strings.TrimSpace(cmd.ActorID), cmd.IsAdmin) {
		return Notification{}, fmt.Errorf("%w: %s", ErrNotificationNotFound, notificationID)
	}

	notification, err := s.notifications.MarkRead(ctx, notificationID, s.clock())
	if err != nil {
		return Notification{}, mapNotificationError(err)
	}
	return notification, nil
}

func (s *notificationService) RegisterPushToken(ctx context.Context, cmd RegisterPushTokenCommand) (PushToken, error) {
	userID := strings.TrimSpace(cmd.UserID)
	if userID == "" {
		return PushToken{}, fmt.Errorf("%w: user id is required", ErrNotificationInvalidInput)
	}
	tokenValue := strings.TrimSpace(cmd.Token)
	if tokenValue == "" {
		return PushToken{}, fmt.Errorf("%w: token is required", ErrNotificationInvalidInput)
	}

	token := PushToken{
		ID:        pushTokenIDPrefix + s.newID(),
		UserID:    userID,
		Token:     tokenValue,
		Platform:  strings.TrimSpace(cmd.Platform),
		IsAdmin:   cmd.IsAdmin,
		CreatedAt: s.clock(),
	}

	saved, err := s.pushTokens.Save(ctx, token)
	if err != nil {
		return PushToken{}, mapNotificationError(err)
	}
	return saved, nil
}

func (s *notificationService) RemovePushToken(ctx context.Context, cmd RemovePushTokenCommand) error {
	tokenID := strings.TrimSpace(cmd.TokenID)
	if tokenID == "" {
		return fmt.Errorf("%w: token id is required", ErrNotificationInvalidInput)
	}
	if err := s.pushTokens.Delete(ctx, tokenID); err != nil {
		return mapNotificationError(err)
	}
	return nil
}

func recipientMatches(recipient Recipient, actorID string, isAdmin bool) bool {
	switch recipient.Kind {
	case domain.RecipientKindAdmin:
		return isAdmin
	case domain.RecipientKindUser:
		return recipient.UserID == actorID || isAdmin
	default:
		return false
	}
}

func mapNotificationError(err error) error {
	if err == nil {
		return nil
	}

	var repoErr repositories.RepositoryError
	if errors.As(err, &repoErr) {
		switch {
		case repoErr.IsNotFound():
			return fmt.Errorf("%w: %v", ErrNotificationNotFound, err)
		case repoErr.IsUnavailable():
			return fmt.Errorf("notification: repository unavailable: %w", err)
		}
	}

	return err
}
