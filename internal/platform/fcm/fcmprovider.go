// Package fcm provides a delivery provider backed by Firebase Cloud Messaging.
package fcm

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"firebase.google.com/go/v4/messaging"
	"github.com/tinywideclouds/go-notification-dispatcher/pkg/dispatch"
	"github.com/tinywideclouds/go-notification-dispatcher/pkg/notification"
)

// MaxTokens is the largest token list FCM accepts in one multicast call.
const MaxTokens = 500

// MessagingClient defines the subset of the Firebase Messaging API we use.
// *messaging.Client satisfies it.
type MessagingClient interface {
	SendEachForMulticast(ctx context.Context, msg *messaging.MulticastMessage) (*messaging.BatchResponse, error)
}

// Provider delivers a payload with a single multicast call.
type Provider struct {
	client  MessagingClient
	initErr error
	logger  *slog.Logger
}

// NewProvider wraps a messaging client as a dispatch.Provider.
func NewProvider(client MessagingClient, logger *slog.Logger) *Provider {
	return &Provider{
		client: client,
		logger: logger.With("component", "FCMProvider"),
	}
}

// Name implements dispatch.Provider.
func (p *Provider) Name() string { return "fcm" }

type batchReceipt struct {
	SuccessCount  int      `json:"success_count"`
	FailureCount  int      `json:"failure_count"`
	InvalidTokens []string `json:"invalid_tokens"`
}

type rejection struct {
	Errors []string `json:"errors"`
}

// Send converts the payload into a MulticastMessage and synthesizes a
// DeliveryResult from the batch response.
func (p *Provider) Send(ctx context.Context, payload notification.DeliveryPayload) (*notification.DeliveryResult, error) {
	if p.initErr != nil {
		return nil, fmt.Errorf("firebase messaging unavailable: %w", p.initErr)
	}
	tokens := payload.IncludePlayerIDs
	if len(tokens) > MaxTokens {
		return nil, fmt.Errorf("fcm multicast accepts at most %d tokens, got %d", MaxTokens, len(tokens))
	}

	msg := &messaging.MulticastMessage{
		Tokens: tokens,
		Notification: &messaging.Notification{
			Title: payload.Title(),
			Body:  payload.Body(),
		},
		Webpush: &messaging.WebpushConfig{
			Notification: &messaging.WebpushNotification{
				Title: payload.Title(),
				Body:  payload.Body(),
				Icon:  "/assets/icons/icon-192x192.png",
			},
		},
	}

	br, err := p.client.SendEachForMulticast(ctx, msg)
	if err != nil {
		// The whole batch was rejected as malformed: relay it like a provider 400.
		if messaging.IsInvalidArgument(err) {
			p.logger.Warn("FCM rejected batch as InvalidArgument", "err", err)
			return result(http.StatusBadRequest, rejection{Errors: []string{err.Error()}})
		}
		return nil, fmt.Errorf("%w: fcm: %w", dispatch.ErrTransport, err)
	}

	receipt := batchReceipt{
		SuccessCount:  br.SuccessCount,
		FailureCount:  br.FailureCount,
		InvalidTokens: []string{},
	}
	for idx, resp := range br.Responses {
		if resp.Success || idx >= len(tokens) {
			continue
		}
		if messaging.IsInvalidArgument(resp.Error) || messaging.IsRegistrationTokenNotRegistered(resp.Error) {
			receipt.InvalidTokens = append(receipt.InvalidTokens, tokens[idx])
		}
	}

	p.logger.Debug("FCM batch complete",
		"success", receipt.SuccessCount,
		"failure", receipt.FailureCount,
		"invalid", len(receipt.InvalidTokens),
	)
	return result(http.StatusOK, receipt)
}

func result(status int, v any) (*notification.DeliveryResult, error) {
	body, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to encode fcm result: %w", err)
	}
	return &notification.DeliveryResult{StatusCode: status, Body: body}, nil
}

// Unavailable returns a provider whose every Send fails with err. It keeps
// the process serving when Firebase credentials could not be loaded.
func Unavailable(err error, logger *slog.Logger) *Provider {
	return &Provider{
		initErr: err,
		logger:  logger.With("component", "FCMProvider"),
	}
}
