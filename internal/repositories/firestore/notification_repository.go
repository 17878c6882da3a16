package firestore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"cloud.google.com/go/firestore"

	domain "github.com/meridianmart/api/internal/domain"
	pfirestore "github.com/meridianmart/api/internal/platform/firestore"
	"github.com/meridianmart/api/internal/repositories"
)

const notificationsCollection = "notifications"

// Admin notifications are stored under this sentinel recipient id so the
// admin inbox is one indexed query rather than a fan-out per administrator.
const adminRecipientID = "admin"

type notificationDocument struct {
	RecipientID string    `firestore:"recipientId"`
	Type        string    `firestore:"type"`
	Title       string    `firestore:"title"`
	Message     string    `firestore:"message"`
	Link        string    `firestore:"link,omitempty"`
	Read        bool      `firestore:"read"`
	CreatedAt   time.Time `firestore:"createdAt"`
}

// NotificationRepository implements repositories.NotificationRepository backed by Firestore.
type NotificationRepository struct {
	base *pfirestore.BaseRepository[notificationDocument]
}

// NewNotificationRepository constructs a Firestore-backed notification repository.
func NewNotificationRepository(provider *pfirestore.Provider) (*NotificationRepository, error) {
	if provider == nil {
		return nil, errors.New("notification repository: firestore provider is required")
	}
	base := pfirestore.NewBaseRepository[notificationDocument](provider, notificationsCollection, nil, nil)
	return &NotificationRepository{base: base}, nil
}

// Insert stores a new notification record.
func (r *NotificationRepository) Insert(ctx context.Context, notification domain.Notification) error {
	if r == nil || r.base == nil {
		return errors.New("notification repository not initialised")
	}
	notificationID := strings.TrimSpace(notification.ID)
	if notificationID == "" {
		return errors.New("notification repository: notification id is required")
	}
	recipientID := recipientDocID(notification.Recipient)
	if recipientID == "" {
		return errors.New("notification repository: recipient is required")
	}
	doc := notificationDocument{
		RecipientID: recipientID,
		Type:        strings.TrimSpace(notification.Type),
		Title:       strings.TrimSpace(notification.Title),
		Message:     notification.Message,
		Link:        strings.TrimSpace(notification.Link),
		Read:        notification.Read,
		CreatedAt:   notification.CreatedAt.UTC(),
	}
	if _, err := r.base.Create(ctx, notificationID, doc); err != nil {
		return err
	}
	return nil
}

// Find loads a single notification by id.
func (r *NotificationRepository) Find(ctx context.Context, notificationID string) (domain.Notification, error) {
	if r == nil || r.base == nil {
		return domain.Notification{}, errors.New("notification repository not initialised")
	}
	notificationID = strings.TrimSpace(notificationID)
	if notificationID == "" {
		return domain.Notification{}, errors.New("notification repository: notification id is required")
	}
	doc, err := r.base.Get(ctx, notificationID)
	if err != nil {
		return domain.Notification{}, err
	}
	return decodeNotificationDocument(notificationID, doc.Data), nil
}

// ListByRecipient returns notifications for one recipient, newest first.
func (r *NotificationRepository) ListByRecipient(ctx context.Context, filter repositories.NotificationListFilter) (domain.CursorPage[domain.Notification], error) {
	if r == nil || r.base == nil {
		return domain.CursorPage[domain.Notification]{}, errors.New("notification repository not initialised")
	}
	recipientID := recipientDocID(filter.Recipient)
	if recipientID == "" {
		return domain.CursorPage[domain.Notification]{}, errors.New("notification repository: recipient is required")
	}

	limit := filter.Pagination.PageSize
	if limit < 0 {
		limit = 0
	}
	fetchLimit := limit
	if limit > 0 {
		fetchLimit = limit + 1
	}

	var startAfter []any
	if token := strings.TrimSpace(filter.Pagination.PageToken); token != "" {
		tokenTime, tokenID, err := decodeOrderListToken(token)
		if err != nil {
			return domain.CursorPage[domain.Notification]{}, fmt.Errorf("notification repository: invalid page token: %w", err)
		}
		startAfter = []any{tokenTime, tokenID}
	}

	docs, err := r.base.Query(ctx, func(q firestore.Query) firestore.Query {
		q = q.Where("recipientId", "==", recipientID)
		if filter.UnreadOnly {
			q = q.Where("read", "==", false)
		}
		q = q.OrderBy("createdAt", firestore.Desc).OrderBy(firestore.DocumentID, firestore.Desc)
		if len(startAfter) == 2 {
			q = q.StartAfter(startAfter...)
		}
		if fetchLimit > 0 {
			q = q.Limit(fetchLimit)
		}
		return q
	})
	if err != nil {
		return domain.CursorPage[domain.Notification]{}, err
	}

	valueDocs := docs
	nextToken := ""
	if limit > 0 && len(valueDocs) == fetchLimit {
		last := valueDocs[len(valueDocs)-1]
		tokenTime := last.Data.CreatedAt
		if tokenTime.IsZero() {
			tokenTime = last.CreateTime
		}
		nextToken = encodeOrderListToken(tokenTime, last.ID)
		valueDocs = valueDocs[:len(valueDocs)-1]
	}

	items := make([]domain.Notification, 0, len(valueDocs))
	for _, doc := range valueDocs {
		items = append(items, decodeNotificationDocument(doc.ID, doc.Data))
	}

	return domain.CursorPage[domain.Notification]{
		Items:         items,
		NextPageToken: nextToken,
	}, nil
}

// MarkRead flips the read flag, the only field that mutates after insert.
func (r *NotificationRepository) MarkRead(ctx context.Context, notificationID string, now time.Time) (domain.Notification, error) {
	if r == nil || r.base == nil {
		return domain.Notification{}, errors.New("notification repository not initialised")
	}
	notificationID = strings.TrimSpace(notificationID)
	if notificationID == "" {
		return domain.Notification{}, errors.New("notification repository: notification id is required")
	}
	updates := []firestore.Update{
		{Path: "read", Value: true},
	}
	if _, err := r.base.Update(ctx, notificationID, updates); err != nil {
		return domain.Notification{}, err
	}
	doc, err := r.base.Get(ctx, notificationID)
	if err != nil {
		return domain.Notification{}, err
	}
	return decodeNotificationDocument(notificationID, doc.Data), nil
}

func recipientDocID(recipient domain.Recipient) string {
	switch recipient.Kind {
	case domain.RecipientKindAdmin:
		return adminRecipientID
	case domain.RecipientKindUser:
		return strings.TrimSpace(recipient.UserID)
	}
	return ""
}

func decodeNotificationDocument(id string, doc notificationDocument) domain.Notification {
	recipient := domain.AdminRecipient()
	if doc.RecipientID != adminRecipientID {
		recipient = domain.UserRecipient(doc.RecipientID)
	}
	return domain.Notification{
		ID:        strings.TrimSpace(id),
		Recipient: recipient,
		Type:      strings.TrimSpace(doc.Type),
		Title:     strings.TrimSpace(doc.Title),
		Message:   doc.Message,
		Link:      strings.TrimSpace(doc.Link),
		Read:      doc.Read,
		CreatedAt: doc.CreatedAt.UTC(),
	}
}
