package payments

import (
	"context"
	"errors"
	"testing"

	"github.com/stripe/stripe-go/v78"
)

type stubIntentAPI struct {
	getFn func(id string, params *stripe.PaymentIntentParams) (*stripe.PaymentIntent, error)
}

func (s *stubIntentAPI) Get(id string, params *stripe.PaymentIntentParams) (*stripe.PaymentIntent, error) {
	if s.getFn != nil {
		return s.getFn(id, params)
	}
	return nil, errors.New("not implemented")
}

func TestNewStripeProviderRequiresAPIKey(t *testing.T) {
	if _, err := NewStripeProvider(StripeProviderConfig{}); err == nil {
		t.Fatal("expected error without api key or injected client")
	}
}

func TestStripeProviderVerifyIntentReportsCapture(t *testing.T) {
	intents := &stubIntentAPI{
		getFn: func(id string, _ *stripe.PaymentIntentParams) (*stripe.PaymentIntent, error) {
			if id != "pi_123" {
				t.Fatalf("unexpected intent id %q", id)
			}
			return &stripe.PaymentIntent{
				ID:       "pi_123",
				Status:   stripe.PaymentIntentStatusSucceeded,
				Amount:   4600,
				Currency: "usd",
				LatestCharge: &stripe.Charge{
					Paid:    true,
					Created: 1700000000,
					Amount:  4600,
				},
			}, nil
		},
	}
	provider, err := NewStripeProvider(StripeProviderConfig{Intents: intents})
	if err != nil {
		t.Fatalf("new provider: %v", err)
	}

	details, err := provider.VerifyIntent(context.Background(), " pi_123 ")
	if err != nil {
		t.Fatalf("verify intent: %v", err)
	}
	if !details.Captured || details.Status != StatusSucceeded {
		t.Fatalf("expected captured success, got %+v", details)
	}
	if details.Amount != 4600 || details.Currency != "USD" {
		t.Fatalf("unexpected amount/currency %d %s", details.Amount, details.Currency)
	}
	if details.CapturedAt == nil {
		t.Fatal("expected capture timestamp from the latest charge")
	}
}

func TestStripeProviderVerifyIntentFlagsRefunds(t *testing.T) {
	intents := &stubIntentAPI{
		getFn: func(string, *stripe.PaymentIntentParams) (*stripe.PaymentIntent, error) {
			return &stripe.PaymentIntent{
				ID:     "pi_9",
				Status: stripe.PaymentIntentStatusSucceeded,
				LatestCharge: &stripe.Charge{
					Paid:     true,
					Refunded: true,
					Amount:   1000,
				},
			}, nil
		},
	}
	provider, err := NewStripeProvider(StripeProviderConfig{Intents: intents})
	if err != nil {
		t.Fatalf("new provider: %v", err)
	}

	details, err := provider.VerifyIntent(context.Background(), "pi_9")
	if err != nil {
		t.Fatalf("verify intent: %v", err)
	}
	if details.Status != StatusRefunded {
		t.Fatalf("expected refunded status, got %s", details.Status)
	}
}

func TestStripeProviderVerifyIntentRequiresID(t *testing.T) {
	provider, err := NewStripeProvider(StripeProviderConfig{Intents: &stubIntentAPI{}})
	if err != nil {
		t.Fatalf("new provider: %v", err)
	}
	if _, err := provider.VerifyIntent(context.Background(), "   "); err == nil {
		t.Fatal("expected error for blank intent id")
	}
}
