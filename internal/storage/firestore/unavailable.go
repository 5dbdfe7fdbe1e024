package firestore

import (
	"context"
	"fmt"

	"github.com/tinywideclouds/go-notification-dispatcher/pkg/notification"
)

// Unavailable is a directory that fails every read with the error that
// prevented the Firestore client from being created. It lets the process
// start and serve when credentials are misconfigured.
type Unavailable struct {
	Err error
}

// Get implements dispatch.UserDirectory.
func (u Unavailable) Get(context.Context, string) (*notification.UserRecord, error) {
	return nil, u.err()
}

// All implements dispatch.UserDirectory.
func (u Unavailable) All(context.Context) ([]notification.UserRecord, error) {
	return nil, u.err()
}

func (u Unavailable) err() error {
	return fmt.Errorf("user directory unavailable: %w", u.Err)
}
