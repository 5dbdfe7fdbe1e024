package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/google/uuid"
	"github.com/tinywideclouds/go-notification-dispatcher/internal/metrics"
	"github.com/tinywideclouds/go-notification-dispatcher/pkg/dispatch"
	"github.com/tinywideclouds/go-notification-dispatcher/pkg/notification"
)

// ErrDeliveryFailed is returned when the provider could not be reached.
var ErrDeliveryFailed = errors.New("failed to send notification")

// NoRecipientsMessage is returned when the recipient set resolves to nothing.
const NoRecipientsMessage = "No subscribed players to notify."

// Settings are the fixed payload parameters shared by every dispatch.
type Settings struct {
	AppID  string
	Locale string
}

// Result is the caller-visible outcome of a successful dispatch.
type Result struct {
	StatusCode int
	Body       json.RawMessage
	// Recipients is the number of distinct device tokens targeted.
	Recipients int
}

// Dispatcher validates a request, resolves its recipients and forwards a
// single delivery request to the provider.
type Dispatcher struct {
	directory dispatch.UserDirectory
	provider  dispatch.Provider
	settings  Settings
	logger    *slog.Logger
}

// NewDispatcher wires the directory and provider into a Dispatcher.
func NewDispatcher(
	directory dispatch.UserDirectory,
	provider dispatch.Provider,
	settings Settings,
	logger *slog.Logger,
) *Dispatcher {
	return &Dispatcher{
		directory: directory,
		provider:  provider,
		settings:  settings,
		logger:    logger.With("component", "Dispatcher", "provider", provider.Name()),
	}
}

// Dispatch runs one request through Validate -> Resolve -> Deliver -> Relay.
//
// It returns ErrInvalidRequest for validation failures and ErrDeliveryFailed
// when the provider was unreachable. Any other error is internal. At most one
// delivery call is made and it is never retried.
func (d *Dispatcher) Dispatch(ctx context.Context, req notification.NotificationRequest) (*Result, error) {
	target := req.RecipientID
	if req.IsBroadcast() {
		target = notification.AllRecipients
	}
	log := d.logger.With("dispatch_id", uuid.NewString(), "recipient", target)
	providerName := d.provider.Name()

	// 1. Validate
	if err := ValidateRequest(req); err != nil {
		log.Debug("Rejected notification request", "err", err)
		metrics.ObserveDispatch(providerName, metrics.OutcomeInvalid)
		return nil, err
	}

	// 2. Resolve
	tokens, err := ResolveRecipients(ctx, d.directory, req.RecipientID)
	if err != nil {
		log.Error("Failed to resolve recipients", "err", err)
		metrics.ObserveDispatch(providerName, metrics.OutcomeInternal)
		return nil, err
	}
	metrics.ObserveRecipients(len(tokens))

	// 3. Short-circuit
	if len(tokens) == 0 {
		log.Info("No subscribed recipients; skipping delivery.")
		metrics.ObserveDispatch(providerName, metrics.OutcomeNoTargets)
		return &Result{
			StatusCode: http.StatusOK,
			Body:       messageBody(NoRecipientsMessage),
			Recipients: 0,
		}, nil
	}

	// 4. Build & 5. Deliver
	payload := BuildPayload(d.settings.AppID, d.settings.Locale, req, tokens)
	res, err := d.provider.Send(ctx, payload)
	if err != nil {
		if errors.Is(err, dispatch.ErrTransport) {
			log.Error("Error sending notification", "tokens", len(tokens), "err", err)
			metrics.ObserveDispatch(providerName, metrics.OutcomeFailed)
			return nil, fmt.Errorf("%w: %w", ErrDeliveryFailed, err)
		}
		log.Error("Delivery returned an unusable response", "tokens", len(tokens), "err", err)
		metrics.ObserveDispatch(providerName, metrics.OutcomeInternal)
		return nil, fmt.Errorf("delivery via %s failed: %w", providerName, err)
	}

	// 6. Relay
	log.Info("Notification handed to provider", "tokens", len(tokens), "status", res.StatusCode)
	metrics.ObserveDispatch(providerName, metrics.OutcomeDelivered)
	return &Result{
		StatusCode: res.StatusCode,
		Body:       res.Body,
		Recipients: len(tokens),
	}, nil
}

func messageBody(msg string) json.RawMessage {
	b, _ := json.Marshal(map[string]string{"message": msg})
	return b
}
