package push

import (
	"context"
	"strings"
	"time"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/messaging"

	"github.com/meridianmart/api/internal/domain"
)

// Message is the payload delivered to registered devices.
type Message struct {
	Title string
	Body  string
	Data  map[string]string
}

// Report summarises a best-effort delivery attempt. StaleTokenIDs lists
// registrations the provider rejected as no longer valid; callers should
// drop them from storage.
type Report struct {
	Delivered     int
	Failed        int
	StaleTokenIDs []string
}

// Sender delivers a message to a set of device tokens.
type Sender interface {
	Send(ctx context.Context, tokens []domain.PushToken, msg Message) (Report, error)
}

// FCMSender implements Sender on top of Firebase Cloud Messaging.
type FCMSender struct {
	client  *messaging.Client
	timeout time.Duration
}

// Option customises FCMSender construction.
type Option func(*FCMSender)

// WithSendTimeout bounds each delivery batch.
func WithSendTimeout(timeout time.Duration) Option {
	return func(s *FCMSender) {
		if timeout > 0 {
			s.timeout = timeout
		}
	}
}

// NewFCMSender builds a sender from an initialised Firebase app.
func NewFCMSender(ctx context.Context, app *firebase.App, opts ...Option) (*FCMSender, error) {
	client, err := app.Messaging(ctx)
	if err != nil {
		return nil, err
	}
	sender := &FCMSender{
		client:  client,
		timeout: 10 * time.Second,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(sender)
		}
	}
	return sender, nil
}

// Send delivers msg to every token in one multicast batch. Individual
// delivery failures never fail the call; permanently invalid tokens are
// reported back for cleanup.
func (s *FCMSender) Send(ctx context.Context, tokens []domain.PushToken, msg Message) (Report, error) {
	if s == nil || s.client == nil {
		return Report{}, nil
	}
	registrations := make([]string, 0, len(tokens))
	ids := make([]string, 0, len(tokens))
	for _, token := range tokens {
		value := strings.TrimSpace(token.Token)
		if value == "" {
			continue
		}
		registrations = append(registrations, value)
		ids = append(ids, token.ID)
	}
	if len(registrations) == 0 {
		return Report{}, nil
	}

	sendCtx := ctx
	if s.timeout > 0 {
		var cancel context.CancelFunc
		sendCtx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	multicast := &messaging.MulticastMessage{
		Tokens: registrations,
		Notification: &messaging.Notification{
			Title: msg.Title,
			Body:  msg.Body,
		},
		Data: msg.Data,
	}

	response, err := s.client.SendEachForMulticast(sendCtx, multicast)
	if err != nil {
		return Report{Failed: len(registrations)}, err
	}

	report := Report{
		Delivered: response.SuccessCount,
		Failed:    response.FailureCount,
	}
	for i, result := range response.Responses {
		if result.Success || result.Error == nil {
			continue
		}
		if messaging.IsRegistrationTokenNotRegistered(result.Error) || messaging.IsInvalidArgument(result.Error) {
			report.StaleTokenIDs = append(report.StaleTokenIDs, ids[i])
		}
	}
	return report, nil
}

// NoopSender drops every message. Used when push delivery is disabled.
type NoopSender struct{}

// Send implements Sender.
func (NoopSender) Send(context.Context, []domain.PushToken, Message) (Report, error) {
	return Report{}, nil
}
