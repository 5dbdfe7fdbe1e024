// Package onesignal provides the delivery provider for the OneSignal REST API.
package onesignal

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/tinywideclouds/go-notification-dispatcher/pkg/dispatch"
	"github.com/tinywideclouds/go-notification-dispatcher/pkg/notification"
)

// DefaultBaseURL is the production OneSignal API host.
const DefaultBaseURL = "https://onesignal.com"

const notificationsPath = "/api/v1/notifications"

// ErrMalformedResponse is returned when the provider answers with a body that is not JSON.
var ErrMalformedResponse = errors.New("onesignal returned a malformed response")

// Config holds the connection settings for the OneSignal API.
type Config struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration
}

// Client sends one notification per call to OneSignal.
type Client struct {
	endpoint   string
	apiKey     string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewClient creates a OneSignal client. If httpClient is nil a default client
// is used. cfg.Timeout, when set, bounds each delivery call.
func NewClient(cfg Config, httpClient *http.Client, logger *slog.Logger) *Client {
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	if cfg.Timeout > 0 {
		c := *httpClient
		c.Timeout = cfg.Timeout
		httpClient = &c
	}
	base := cfg.BaseURL
	if base == "" {
		base = DefaultBaseURL
	}

	return &Client{
		endpoint:   strings.TrimRight(base, "/") + notificationsPath,
		apiKey:     cfg.APIKey,
		httpClient: httpClient,
		logger:     logger.With("component", "OneSignalClient"),
	}
}

// Name implements dispatch.Provider.
func (c *Client) Name() string { return "onesignal" }

// Send posts the payload and returns the provider's status and raw JSON body.
// Failures before a response arrives are wrapped with dispatch.ErrTransport.
func (c *Client) Send(ctx context.Context, payload notification.DeliveryPayload) (*notification.DeliveryResult, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json; charset=utf-8")
	req.Header.Set("Authorization", "Basic "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", dispatch.ErrTransport, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: reading response: %w", dispatch.ErrTransport, err)
	}
	if !json.Valid(raw) {
		c.logger.Warn("OneSignal returned non-JSON body", "status", resp.StatusCode, "bytes", len(raw))
		return nil, fmt.Errorf("%w (status %d)", ErrMalformedResponse, resp.StatusCode)
	}

	c.logger.Debug("OneSignal responded", "status", resp.StatusCode, "tokens", len(payload.IncludePlayerIDs))
	return &notification.DeliveryResult{
		StatusCode: resp.StatusCode,
		Body:       json.RawMessage(raw),
	}, nil
}
