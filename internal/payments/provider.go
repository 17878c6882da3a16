package payments

import (
	"context"
	"errors"
	"time"
)

// Status enumerates the normalised payment states returned by providers.
type Status string

const (
	// StatusPending indicates the payment is awaiting customer action or provider confirmation.
	StatusPending Status = "pending"
	// StatusSucceeded indicates the provider reports the payment as captured.
	StatusSucceeded Status = "succeeded"
	// StatusFailed indicates the payment can no longer succeed.
	StatusFailed Status = "failed"
	// StatusRefunded indicates the captured amount has been returned.
	StatusRefunded Status = "refunded"
)

// ErrProviderUnavailable is returned when no provider has been configured.
var ErrProviderUnavailable = errors.New("payments: provider not configured")

// PaymentDetails normalises provider specific fields for verification.
type PaymentDetails struct {
	Provider   string
	IntentID   string
	Status     Status
	Amount     int64
	Currency   string
	Captured   bool
	CapturedAt *time.Time
}

// Provider verifies payments the storefront client completed against the
// provider's own checkout flow. Intent creation and refunds are owned by the
// client and the back office respectively, so the order core only ever needs
// the captured-state lookup.
type Provider interface {
	VerifyIntent(ctx context.Context, intentID string) (PaymentDetails, error)
}
