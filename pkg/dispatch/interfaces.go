package dispatch

import (
	"context"
	"errors"

	"github.com/tinywideclouds/go-notification-dispatcher/pkg/notification"
)

// ErrTransport marks a delivery attempt that never produced a provider response
// (connection refused, DNS failure, timeout). Providers wrap it with %w.
var ErrTransport = errors.New("delivery transport failed")

// UserDirectory defines the read-only contract for the user document store.
type UserDirectory interface {
	// Get returns the user document with the given id, or nil if it does not exist.
	Get(ctx context.Context, id string) (*notification.UserRecord, error)

	// All returns every user document in the directory.
	All(ctx context.Context) ([]notification.UserRecord, error)
}

// Provider defines the contract for a third-party push delivery service.
// Implementations must be safe for concurrent use.
type Provider interface {
	// Name identifies the provider in logs and metrics.
	Name() string

	// Send issues exactly one delivery request for the payload.
	Send(ctx context.Context, payload notification.DeliveryPayload) (*notification.DeliveryResult, error)
}
