package pipeline

import "github.com/tinywideclouds/go-notification-dispatcher/pkg/notification"

// BuildPayload constructs the single delivery payload for a request.
// The token slice is copied so the payload does not alias the caller's slice.
func BuildPayload(appID, locale string, req notification.NotificationRequest, tokens []string) notification.DeliveryPayload {
	ids := make([]string, len(tokens))
	copy(ids, tokens)

	return notification.DeliveryPayload{
		AppID:            appID,
		Contents:         map[string]string{locale: req.Description},
		Headings:         map[string]string{locale: req.Title},
		IncludePlayerIDs: ids,
		Locale:           locale,
	}
}
