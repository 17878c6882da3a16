package firestore

import (
	"context"
	"errors"
	"strings"
	"time"

	"cloud.google.com/go/firestore"

	domain "github.com/meridianmart/api/internal/domain"
	pfirestore "github.com/meridianmart/api/internal/platform/firestore"
)

const pushTokensCollection = "pushTokens"

type pushTokenDocument struct {
	UserID    string    `firestore:"userId"`
	Token     string    `firestore:"token"`
	Platform  string    `firestore:"platform,omitempty"`
	IsAdmin   bool      `firestore:"isAdmin"`
	CreatedAt time.Time `firestore:"createdAt"`
}

// PushTokenRepository implements repositories.PushTokenRepository backed by Firestore.
type PushTokenRepository struct {
	base *pfirestore.BaseRepository[pushTokenDocument]
}

// NewPushTokenRepository constructs a Firestore-backed push token repository.
func NewPushTokenRepository(provider *pfirestore.Provider) (*PushTokenRepository, error) {
	if provider == nil {
		return nil, errors.New("push token repository: firestore provider is required")
	}
	base := pfirestore.NewBaseRepository[pushTokenDocument](provider, pushTokensCollection, nil, nil)
	return &PushTokenRepository{base: base}, nil
}

// Save upserts the registered endpoint under its ID.
func (r *PushTokenRepository) Save(ctx context.Context, token domain.PushToken) (domain.PushToken, error) {
	if r == nil || r.base == nil {
		return domain.PushToken{}, errors.New("push token repository not initialised")
	}
	tokenID := strings.TrimSpace(token.ID)
	if tokenID == "" {
		return domain.PushToken{}, errors.New("push token repository: token id is required")
	}
	doc := pushTokenDocument{
		UserID:    strings.TrimSpace(token.UserID),
		Token:     strings.TrimSpace(token.Token),
		Platform:  strings.TrimSpace(token.Platform),
		IsAdmin:   token.IsAdmin,
		CreatedAt: token.CreatedAt.UTC(),
	}
	if _, err := r.base.Set(ctx, tokenID, doc); err != nil {
		return domain.PushToken{}, err
	}
	return decodePushTokenDocument(tokenID, doc), nil
}

// Delete removes a registered endpoint, typically after the push provider
// reports it stale.
func (r *PushTokenRepository) Delete(ctx context.Context, tokenID string) error {
	if r == nil || r.base == nil {
		return errors.New("push token repository not initialised")
	}
	tokenID = strings.TrimSpace(tokenID)
	if tokenID == "" {
		return errors.New("push token repository: token id is required")
	}
	if _, err := r.base.Delete(ctx, tokenID); err != nil {
		return err
	}
	return nil
}

// ListAdmin returns every endpoint registered by an administrator device.
func (r *PushTokenRepository) ListAdmin(ctx context.Context) ([]domain.PushToken, error) {
	if r == nil || r.base == nil {
		return nil, errors.New("push token repository not initialised")
	}
	docs, err := r.base.Query(ctx, func(q firestore.Query) firestore.Query {
		return q.Where("isAdmin", "==", true)
	})
	if err != nil {
		return nil, err
	}
	tokens := make([]domain.PushToken, 0, len(docs))
	for _, doc := range docs {
		tokens = append(tokens, decodePushTokenDocument(doc.ID, doc.Data))
	}
	return tokens, nil
}

// ListByUser returns every endpoint registered by one customer.
func (r *PushTokenRepository) ListByUser(ctx context.Context, userID string) ([]domain.PushToken, error) {
	if r == nil || r.base == nil {
		return nil, errors.New("push token repository not initialised")
	}
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, errors.New("push token repository: user id is required")
	}
	docs, err := r.base.Query(ctx, func(q firestore.Query) firestore.Query {
		return q.Where("userId", "==", userID)
	})
	if err != nil {
		return nil, err
	}
	tokens := make([]domain.PushToken, 0, len(docs))
	for _, doc := range docs {
		tokens = append(tokens, decodePushTokenDocument(doc.ID, doc.Data))
	}
	return tokens, nil
}

func decodePushTokenDocument(id string, doc pushTokenDocument) domain.PushToken {
	return domain.PushToken{
		ID:        strings.TrimSpace(id),
		UserID:    strings.TrimSpace(doc.UserID),
		Token:     strings.TrimSpace(doc.Token),
		Platform:  strings.TrimSpace(doc.Platform),
		IsAdmin:   doc.IsAdmin,
		CreatedAt: doc.CreatedAt.UTC(),
	}
}
