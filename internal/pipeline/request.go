// Package pipeline contains the recipient-resolution-and-dispatch pipeline.
package pipeline

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/go-playground/validator/v10"
	"github.com/tinywideclouds/go-notification-dispatcher/pkg/notification"
)

// ErrInvalidRequest is returned when the title or description is missing.
var ErrInvalidRequest = errors.New("missing title or description")

var validate = validator.New()

// DecodeRequest reads a JSON notification request from r and validates it.
// Any body that cannot be decoded into a request is an invalid request.
func DecodeRequest(r io.Reader) (notification.NotificationRequest, error) {
	var req notification.NotificationRequest
	if err := json.NewDecoder(r).Decode(&req); err != nil {
		return req, fmt.Errorf("%w: undecodable body: %w", ErrInvalidRequest, err)
	}
	return req, ValidateRequest(req)
}

// ValidateRequest checks that both title and description are non-empty.
func ValidateRequest(req notification.NotificationRequest) error {
	if err := validate.Struct(req); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidRequest, err)
	}
	return nil
}

func isBroadcast(recipientID string) bool {
	return notification.NotificationRequest{RecipientID: recipientID}.IsBroadcast()
}
